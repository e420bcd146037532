package simulate

import (
	"math"
	"slices"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hierbayes/hierfit/internal/hierr"
	"github.com/hierbayes/hierfit/internal/standata"
)

// OutcomeSkeleton is the generative-model state machine for the binary
// outcome model. The logit-scale linear predictor at observation o is
//
//	eta[o] = intercept[study(o)] + xfn(exposure[o]) + unitRE[unit(o)] + log(atRisk[o])
//
// with the unit term present only when a unit random effect is configured,
// and the response drawn from Bernoulli(invlogit(eta[o])).
type OutcomeSkeleton struct {
	// Data is the embedded dataset being populated. SampleObservations
	// writes the drawn binary response into Data.Y.
	Data *standata.OutcomeData

	// EtaW is the logit-scale linear predictor per observation, set by the
	// most recent SampleObservations call.
	EtaW []float64

	intercept  vectorSlot
	exposureFn fnSlot
	unitSD     scalarSlot
	unitRE     vectorSlot
	offset     vectorSlot

	src     rand.Source
	sampled bool
}

// NewOutcomeSkeleton wraps an outcome dataset in an unconfigured skeleton.
// All draws flow from the given seed.
func NewOutcomeSkeleton(data *standata.OutcomeData, seed uint64) *OutcomeSkeleton {
	return &OutcomeSkeleton{
		Data: data,
		src:  rand.NewSource(seed),
	}
}

// Set updates one parameter of the outcome model. The same state-machine
// discipline as the exposure skeleton applies: idempotent overwrites,
// ValidationError on undeclared level/param combinations or wrong shapes.
func (s *OutcomeSkeleton) Set(level Level, param Param, v Value) error {
	item := string(level) + "/" + string(param)
	switch {
	case level == LevelGroup && param == ParamMean:
		if v.vector == nil || len(v.vector) != s.Data.Studies {
			return hierr.Validationf(item, "study intercepts must be a vector of length %d", s.Data.Studies)
		}
		s.intercept = vectorSlot{val: slices.Clone(v.vector), set: true}

	case level == LevelObservation && param == ParamExposureFn:
		if v.fn == nil {
			return hierr.Validationf(item, "exposure response must be a function")
		}
		s.exposureFn = fnSlot{fn: v.fn, set: true}

	case level == LevelUnit && param == ParamSD:
		if s.Data.Units == 0 {
			return hierr.Validationf(item, "unit level is inactive in the dataset")
		}
		return setScale(&s.unitSD, item, v)

	case level == LevelUnit && param == ParamRE:
		if s.Data.Units == 0 {
			return hierr.Validationf(item, "unit level is inactive in the dataset")
		}
		if v.vector == nil || len(v.vector) != s.Data.Units {
			return hierr.Validationf(item, "unit effects must be a vector of length %d", s.Data.Units)
		}
		s.unitRE = vectorSlot{val: slices.Clone(v.vector), set: true}

	case level == LevelObservation && param == ParamOffset:
		if v.vector == nil || len(v.vector) != s.Data.N {
			return hierr.Validationf(item, "at-risk offset must be a vector of length %d", s.Data.N)
		}
		for i, t := range v.vector {
			if t <= 0 {
				return hierr.Validationf(item, "observation %d: at-risk time %g must be positive", i, t)
			}
		}
		s.offset = vectorSlot{val: slices.Clone(v.vector), set: true}

	default:
		return hierr.Validationf(item, "not a parameter of the outcome model")
	}
	return nil
}

// DrawRE draws the unit random-effect vector from Normal(0, sd) and caches
// it until re-drawn or overwritten.
func (s *OutcomeSkeleton) DrawRE(level Level) ([]float64, error) {
	if level != LevelUnit {
		return nil, hierr.Validationf(string(level)+"/re", "level has no random effect")
	}
	if s.Data.Units == 0 {
		return nil, hierr.Validationf("unit/re", "unit level is inactive in the dataset")
	}
	if !s.unitSD.set {
		return nil, hierr.Missing("unit/sd")
	}
	s.unitRE = vectorSlot{val: drawNormal(s.src, s.Data.Units, s.unitSD.val), set: true}
	return slices.Clone(s.unitRE.val), nil
}

// missingPrereqs returns the prerequisite parameters not yet set. The unit
// random effect is optional; the at-risk offset defaults to the dataset's
// AtRisk vector.
func (s *OutcomeSkeleton) missingPrereqs() []string {
	var missing []string
	if !s.intercept.set {
		missing = append(missing, "group/mean")
	}
	if !s.exposureFn.set {
		missing = append(missing, "observation/xfn")
	}
	return missing
}

// State reports the skeleton's lifecycle position.
func (s *OutcomeSkeleton) State() State {
	if s.sampled {
		return Sampled
	}
	if len(s.missingPrereqs()) == 0 {
		return Configured
	}
	if s.intercept.set || s.exposureFn.set || s.unitSD.set || s.unitRE.set || s.offset.set {
		return PartiallyConfigured
	}
	return Unconfigured
}

// SampleObservations computes the logit-scale predictor at every observation
// and draws the binary response, writing EtaW back into the skeleton and the
// response into Data.Y. Re-sampling overwrites the previous draw.
func (s *OutcomeSkeleton) SampleObservations() error {
	if missing := s.missingPrereqs(); len(missing) > 0 {
		return hierr.Missing(missing[0])
	}
	if s.unitSD.set && !s.unitRE.set {
		if _, err := s.DrawRE(LevelUnit); err != nil {
			return err
		}
	}

	atRisk := s.Data.AtRisk
	if s.offset.set {
		atRisk = s.offset.val
	}

	n := s.Data.N
	eta := make([]float64, n)
	y := make([]int, n)
	for o := 0; o < n; o++ {
		e := s.intercept.val[s.Data.StudyOfObs[o]-1]
		e += s.exposureFn.fn(s.Data.Exposure[o])
		if u := s.Data.UnitOfObs[o]; u > 0 && s.unitRE.set {
			e += s.unitRE.val[u-1]
		}
		e += math.Log(atRisk[o])
		eta[o] = e

		p := 1 / (1 + math.Exp(-e))
		draw := distuv.Bernoulli{P: p, Src: s.src}
		y[o] = int(draw.Rand())
	}

	s.EtaW = eta
	s.Data.Y = y
	s.sampled = true
	return nil
}
