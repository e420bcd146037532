// Package hierarchy converts raw group/cluster/unit identifiers into dense,
// validated 1-based integer codes. Codes are assigned in first-appearance
// order, so re-indexing an already-dense sequence is a no-op and repeated
// calls over the same raw input always produce the same coding.
package hierarchy

import (
	"github.com/hierbayes/hierfit/internal/hierr"
)

// Codes holds the dense index arrays and level counts derived from raw
// identifiers. An all-zero index array marks a level as inactive; inactive
// levels carry a count of zero and contribute nothing downstream.
type Codes struct {
	GroupOfObs   []int
	ClusterOfObs []int
	UnitOfObs    []int

	Groups   int
	Clusters int
	Units    int
}

// Dense assigns 1-based integer codes to the distinct values of ids in
// first-appearance order and returns the codes alongside the number of
// distinct values.
func Dense[T comparable](ids []T) ([]int, int) {
	codes := make([]int, len(ids))
	seen := make(map[T]int, len(ids))
	next := 1
	for i, id := range ids {
		c, ok := seen[id]
		if !ok {
			c = next
			seen[id] = c
			next++
		}
		codes[i] = c
	}
	return codes, next - 1
}

// Build densifies group, cluster, and unit identifiers for n observations.
// The cluster level is optional: a nil slice, or one holding only zero
// values, marks the level inactive and yields an all-zero cluster index.
// Any identifier slice whose length differs from n aborts construction with
// a ValidationError; no partial result is returned.
func Build[T comparable](groups, clusters, units []T, n int) (*Codes, error) {
	if len(groups) != n {
		return nil, hierr.Validationf("group ids", "length %d does not match observation count %d", len(groups), n)
	}
	if len(units) != n {
		return nil, hierr.Validationf("unit ids", "length %d does not match observation count %d", len(units), n)
	}
	if clusters != nil && len(clusters) != n {
		return nil, hierr.Validationf("cluster ids", "length %d does not match observation count %d", len(clusters), n)
	}

	c := &Codes{}
	c.GroupOfObs, c.Groups = Dense(groups)
	c.UnitOfObs, c.Units = Dense(units)

	if clusters == nil || allZero(clusters) {
		c.ClusterOfObs = make([]int, n)
		c.Clusters = 0
		return c, nil
	}
	c.ClusterOfObs, c.Clusters = Dense(clusters)
	return c, nil
}

// Count returns the level count implied by a dense index array: the maximum
// code observed, or zero for an inactive (all-zero) level.
func Count(index []int) int {
	max := 0
	for _, v := range index {
		if v > max {
			max = v
		}
	}
	return max
}

// Active reports whether an index array carries any nonzero code.
func Active(index []int) bool {
	for _, v := range index {
		if v != 0 {
			return true
		}
	}
	return false
}

// allZero reports whether every element equals the zero value of T.
func allZero[T comparable](ids []T) bool {
	var zero T
	for _, id := range ids {
		if id != zero {
			return false
		}
	}
	return true
}
