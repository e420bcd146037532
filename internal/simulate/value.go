package simulate

// Level names a hierarchical level of the generative model.
type Level string

const (
	LevelGroup       Level = "group"
	LevelCluster     Level = "cluster"
	LevelUnit        Level = "unit"
	LevelObservation Level = "observation"
)

// Param names a parameter kind within a level.
type Param string

const (
	ParamMean       Param = "mean"   // per-group means / per-study intercepts
	ParamSD         Param = "sd"     // random-effect or noise scale
	ParamRE         Param = "re"     // sampled random-effect vector
	ParamTimeFn     Param = "timefn" // temporal response function
	ParamExposureFn Param = "xfn"    // exposure-response function
	ParamOffset     Param = "offset" // at-risk time offset
)

// State is the lifecycle position of a skeleton.
type State int

const (
	Unconfigured State = iota
	PartiallyConfigured
	Configured
	Sampled
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case PartiallyConfigured:
		return "partially configured"
	case Configured:
		return "configured"
	case Sampled:
		return "sampled"
	default:
		return "unknown"
	}
}

// Value is a tagged parameter value: a scalar, a vector, or a response
// function. Exactly one variant is populated.
type Value struct {
	scalar *float64
	vector []float64
	fn     func(float64) float64
}

// Scalar wraps a scalar parameter value.
func Scalar(v float64) Value { return Value{scalar: &v} }

// Vector wraps a vector parameter value.
func Vector(v []float64) Value { return Value{vector: v} }

// Fn wraps a response function.
func Fn(f func(float64) float64) Value { return Value{fn: f} }

// ZeroFn is the "no effect" response function.
func ZeroFn() Value { return Fn(func(float64) float64 { return 0 }) }

// slot types carry an explicit "unset" sentinel rather than relying on
// absence from a collection.

type scalarSlot struct {
	val float64
	set bool
}

type vectorSlot struct {
	val []float64
	set bool
}

type fnSlot struct {
	fn  func(float64) float64
	set bool
}
