package simulate

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/standata"
)

// ExposureSkeleton is the generative-model state machine for the exposure
// (concentration) model. The conditional mean at observation o is
//
//	mean[o] = groupMean[group(o)] + clusterRE[cluster(o)] + unitRE[unit(o)] + timefn(time[o])
//
// with the cluster term present only when the dataset's cluster level is
// active, and the observation drawn from Normal(mean[o], obsSD).
type ExposureSkeleton struct {
	// Data is the embedded dataset being populated. SampleObservations
	// writes the drawn concentration vector into Data.Conc.
	Data *standata.ExposureData

	// MeanW is the conditional mean per observation, set by the most recent
	// SampleObservations call.
	MeanW []float64

	groupMean vectorSlot
	clusterSD scalarSlot
	clusterRE vectorSlot
	unitSD    scalarSlot
	unitRE    vectorSlot
	obsSD     scalarSlot
	timeFn    fnSlot

	src     rand.Source
	sampled bool
}

// NewExposureSkeleton wraps an exposure dataset in an unconfigured skeleton.
// All draws flow from the given seed.
func NewExposureSkeleton(data *standata.ExposureData, seed uint64) *ExposureSkeleton {
	return &ExposureSkeleton{
		Data: data,
		src:  rand.NewSource(seed),
	}
}

// Set updates one parameter of the generative model. Updates are idempotent:
// setting the same level/param again overwrites the previous value. Setting
// a level/param combination the exposure model does not declare, or a value
// of the wrong shape, fails with a ValidationError and leaves the skeleton
// unchanged.
func (s *ExposureSkeleton) Set(level Level, param Param, v Value) error {
	item := string(level) + "/" + string(param)
	switch {
	case level == LevelGroup && param == ParamMean:
		if v.vector == nil {
			return hierr.Validationf(item, "group means must be a vector")
		}
		if len(v.vector) != s.Data.Groups {
			return hierr.Validationf(item, "vector length %d does not match group count %d", len(v.vector), s.Data.Groups)
		}
		s.groupMean = vectorSlot{val: slices.Clone(v.vector), set: true}

	case level == LevelCluster && param == ParamSD:
		if err := s.requireClusterActive(item); err != nil {
			return err
		}
		return setScale(&s.clusterSD, item, v)

	case level == LevelCluster && param == ParamRE:
		if err := s.requireClusterActive(item); err != nil {
			return err
		}
		if v.vector == nil || len(v.vector) != s.Data.Clusters {
			return hierr.Validationf(item, "cluster effects must be a vector of length %d", s.Data.Clusters)
		}
		s.clusterRE = vectorSlot{val: slices.Clone(v.vector), set: true}

	case level == LevelUnit && param == ParamSD:
		return setScale(&s.unitSD, item, v)

	case level == LevelUnit && param == ParamRE:
		if v.vector == nil || len(v.vector) != s.Data.Units {
			return hierr.Validationf(item, "unit effects must be a vector of length %d", s.Data.Units)
		}
		s.unitRE = vectorSlot{val: slices.Clone(v.vector), set: true}

	case level == LevelObservation && param == ParamSD:
		return setScale(&s.obsSD, item, v)

	case level == LevelObservation && param == ParamTimeFn:
		if v.fn == nil {
			return hierr.Validationf(item, "time response must be a function")
		}
		s.timeFn = fnSlot{fn: v.fn, set: true}

	default:
		return hierr.Validationf(item, "not a parameter of the exposure model")
	}
	return nil
}

// setScale validates and stores a nonnegative scalar scale parameter.
func setScale(slot *scalarSlot, item string, v Value) error {
	if v.scalar == nil {
		return hierr.Validationf(item, "scale must be a scalar")
	}
	if *v.scalar < 0 || math.IsNaN(*v.scalar) {
		return hierr.Validationf(item, "scale %g must be nonnegative", *v.scalar)
	}
	*slot = scalarSlot{val: *v.scalar, set: true}
	return nil
}

func (s *ExposureSkeleton) requireClusterActive(item string) error {
	if s.Data.Clusters == 0 {
		return hierr.Validationf(item, "cluster level is inactive in the dataset")
	}
	return nil
}

// DrawRE draws the random-effect vector for a level from Normal(0, sd) and
// caches it until explicitly re-drawn or overwritten by Set. The level's sd
// must already be set.
func (s *ExposureSkeleton) DrawRE(level Level) ([]float64, error) {
	switch level {
	case LevelCluster:
		if err := s.requireClusterActive("cluster/re"); err != nil {
			return nil, err
		}
		if !s.clusterSD.set {
			return nil, hierr.Missing("cluster/sd")
		}
		s.clusterRE = vectorSlot{val: drawNormal(s.src, s.Data.Clusters, s.clusterSD.val), set: true}
		return slices.Clone(s.clusterRE.val), nil
	case LevelUnit:
		if !s.unitSD.set {
			return nil, hierr.Missing("unit/sd")
		}
		s.unitRE = vectorSlot{val: drawNormal(s.src, s.Data.Units, s.unitSD.val), set: true}
		return slices.Clone(s.unitRE.val), nil
	default:
		return nil, hierr.Validationf(string(level)+"/re", "level has no random effect")
	}
}

// drawNormal draws n values from Normal(0, sd). A zero sd yields zeros.
func drawNormal(src rand.Source, n int, sd float64) []float64 {
	out := make([]float64, n)
	if sd == 0 {
		return out
	}
	dist := distuv.Normal{Mu: 0, Sigma: sd, Src: src}
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// missingPrereqs returns the prerequisite parameters not yet set, in a
// stable order.
func (s *ExposureSkeleton) missingPrereqs() []string {
	var missing []string
	if !s.groupMean.set {
		missing = append(missing, "group/mean")
	}
	if s.Data.Clusters > 0 && !s.clusterSD.set {
		missing = append(missing, "cluster/sd")
	}
	if !s.unitSD.set {
		missing = append(missing, "unit/sd")
	}
	if !s.obsSD.set {
		missing = append(missing, "observation/sd")
	}
	if !s.timeFn.set {
		missing = append(missing, "observation/timefn")
	}
	return missing
}

// State reports the skeleton's lifecycle position.
func (s *ExposureSkeleton) State() State {
	if s.sampled {
		return Sampled
	}
	missing := s.missingPrereqs()
	if len(missing) == 0 {
		return Configured
	}
	if s.anySet() {
		return PartiallyConfigured
	}
	return Unconfigured
}

func (s *ExposureSkeleton) anySet() bool {
	return s.groupMean.set || s.clusterSD.set || s.clusterRE.set ||
		s.unitSD.set || s.unitRE.set || s.obsSD.set || s.timeFn.set
}

// SampleObservations computes the conditional mean at every observation and
// draws the concentration vector around it, writing both back into the
// skeleton (MeanW) and the embedded dataset (Data.Conc). Random-effect
// vectors not yet cached are drawn first from their configured scales.
// Sampling with any prerequisite unset fails with a StateError naming the
// missing item and leaves the skeleton unchanged. Re-sampling an
// already-sampled skeleton overwrites the previous draw.
func (s *ExposureSkeleton) SampleObservations() error {
	if missing := s.missingPrereqs(); len(missing) > 0 {
		return hierr.Missing(missing[0])
	}
	if s.Data.Clusters > 0 && !s.clusterRE.set {
		if _, err := s.DrawRE(LevelCluster); err != nil {
			return err
		}
	}
	if !s.unitRE.set {
		if _, err := s.DrawRE(LevelUnit); err != nil {
			return err
		}
	}

	n := s.Data.N
	mean := make([]float64, n)
	conc := make([]float64, n)
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: s.src}
	for o := 0; o < n; o++ {
		m := s.groupMean.val[s.Data.GroupOfObs[o]-1]
		if c := s.Data.ClusterOfObs[o]; c > 0 {
			m += s.clusterRE.val[c-1]
		}
		m += s.unitRE.val[s.Data.UnitOfObs[o]-1]
		m += s.timeFn.fn(s.Data.Time[o])
		mean[o] = m
		conc[o] = m + s.obsSD.val*noise.Rand()
	}

	s.MeanW = mean
	s.Data.Conc = conc
	s.sampled = true
	return nil
}

// Structure returns a readable snapshot of the parameter slots, mainly for
// trace logging and debugging output.
func (s *ExposureSkeleton) Structure() map[string]any {
	out := make(map[string]any)
	put := func(item string, set bool, v any) {
		if set {
			out[item] = v
		}
	}
	put("group/mean", s.groupMean.set, s.groupMean.val)
	put("cluster/sd", s.clusterSD.set, s.clusterSD.val)
	put("cluster/re", s.clusterRE.set, s.clusterRE.val)
	put("unit/sd", s.unitSD.set, s.unitSD.val)
	put("unit/re", s.unitRE.set, s.unitRE.val)
	put("observation/sd", s.obsSD.set, s.obsSD.val)
	put("observation/timefn", s.timeFn.set, "set")
	if s.sampled {
		out["state"] = fmt.Sprintf("sampled (%d observations)", s.Data.N)
	} else {
		out["state"] = s.State().String()
	}
	return out
}
