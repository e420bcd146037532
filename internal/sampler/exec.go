package sampler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// CommandSampler runs an external sampler binary. The protocol is file-based:
// the flattened data is written to an Arrow IPC file in a scratch directory,
// the binary is invoked with the data path, an output path, and the control
// flags, and the draws are read back from the output file. Any failure of the
// process is wrapped as an ExternalError and surfaced unchanged.
type CommandSampler struct {
	// Path is the sampler executable.
	Path string
	// Args are extra arguments placed before the generated flags.
	Args []string
	// Logger receives per-run trace output; nil disables logging.
	Logger *slog.Logger
}

var _ Sampler = (*CommandSampler)(nil)

// Sample flattens nothing itself; it transports data already flattened by
// FlattenExposure or FlattenOutcome through the external binary.
func (s *CommandSampler) Sample(ctx context.Context, data FlatData, ctl Control) (*Draws, error) {
	if s.Path == "" {
		return nil, hierr.Validationf("sampler path", "not configured")
	}
	ctl = ctl.withDefaults()
	if err := ctl.Validate(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "hierfit-sample-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dataPath := filepath.Join(dir, "data.arrow")
	drawsPath := filepath.Join(dir, "draws.arrow")

	df, err := os.Create(dataPath)
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}
	if err := WriteData(df, data); err != nil {
		df.Close()
		return nil, err
	}
	if err := df.Close(); err != nil {
		return nil, fmt.Errorf("closing data file: %w", err)
	}

	args := append([]string{}, s.Args...)
	args = append(args,
		"--data", dataPath,
		"--output", drawsPath,
		"--iter", strconv.Itoa(ctl.Iter),
		"--warmup", strconv.Itoa(ctl.Warmup),
		"--chains", strconv.Itoa(ctl.Chains),
		"--adapt-delta", strconv.FormatFloat(ctl.AdaptDelta, 'g', -1, 64),
		"--max-treedepth", strconv.Itoa(ctl.MaxTreedepth),
	)

	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "invoking sampler",
			"path", s.Path,
			"chains", ctl.Chains,
			"iter", ctl.Iter,
			"observations", data.NumObs())
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Path, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &hierr.ExternalError{Op: "sampler", Err: err}
	}

	rf, err := os.Open(drawsPath)
	if err != nil {
		return nil, &hierr.ExternalError{Op: "sampler", Err: fmt.Errorf("no draws produced: %w", err)}
	}
	defer rf.Close()

	draws, err := ReadDraws(rf)
	if err != nil {
		return nil, &hierr.ExternalError{Op: "sampler", Err: err}
	}
	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "sampler finished", "parameters", len(draws.Names()))
	}
	return draws, nil
}
