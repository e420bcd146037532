// Package simulate provides parametrized generative-model skeletons that
// mirror the hierarchical structure of a dataset and synthesize observations
// from it.
//
// A skeleton is a small state machine layered over a standata dataset:
//
//	Unconfigured -> PartiallyConfigured -> Configured -> Sampled
//
// Parameter updates move the skeleton toward Configured; updates are
// idempotent and overwrite rather than accumulate. Sampling is only valid
// once every prerequisite parameter is set, and fails otherwise with a
// StateError naming the first missing item. Sampling an already-sampled
// skeleton overwrites the previous draw; repeated-simulation test loops
// depend on this.
//
// All randomness flows through an explicit caller-controlled seed. Two
// skeletons built with the same seed and the same parameter updates produce
// identical draws.
package simulate
