package hierarchy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/hierbayes/hierfit/internal/hierr"
)

func TestDenseFirstAppearance(t *testing.T) {
	codes, count := Dense([]string{"b", "b", "a", "c", "a"})
	want := []int{1, 1, 2, 3, 2}
	if count != 3 {
		t.Fatalf("Dense count = %d, want 3", count)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("Dense codes[%d] = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestDenseIdempotent(t *testing.T) {
	// Re-indexing an already-dense 1..K sequence must be a no-op.
	in := []int{1, 1, 2, 2, 3, 4, 4, 4}
	codes, count := Dense(in)
	if count != 4 {
		t.Fatalf("Dense count = %d, want 4", count)
	}
	for i := range in {
		if codes[i] != in[i] {
			t.Errorf("Dense codes[%d] = %d, want %d (idempotence)", i, codes[i], in[i])
		}
	}

	// The indexer's own output is always dense, so indexing twice must
	// agree with indexing once.
	raw := []string{"x", "y", "x", "z", "z", "w"}
	once, _ := Dense(raw)
	twice, _ := Dense(once)
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("re-index[%d] = %d, want %d", i, twice[i], once[i])
		}
	}
}

func TestDenseRandomProperty(t *testing.T) {
	// For random identifier vectors of length N, codes have length N,
	// values in [1, count], and max == count.
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(200)
		ids := make([]int, n)
		for i := range ids {
			ids[i] = rng.Intn(20) - 10
		}
		codes, count := Dense(ids)
		if len(codes) != n {
			t.Fatalf("trial %d: len(codes) = %d, want %d", trial, len(codes), n)
		}
		max := 0
		for i, c := range codes {
			if c < 1 || c > count {
				t.Fatalf("trial %d: codes[%d] = %d outside [1, %d]", trial, i, c, count)
			}
			if c > max {
				max = c
			}
		}
		if max != count {
			t.Errorf("trial %d: max code %d != count %d", trial, max, count)
		}
	}
}

func TestBuildLengthMismatch(t *testing.T) {
	tests := []struct {
		name     string
		groups   []string
		clusters []string
		units    []string
		n        int
	}{
		{"short groups", []string{"a"}, nil, []string{"u1", "u2"}, 2},
		{"short units", []string{"a", "a"}, nil, []string{"u1"}, 2},
		{"short clusters", []string{"a", "a"}, []string{"c1"}, []string{"u1", "u2"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Build(tt.groups, tt.clusters, tt.units, tt.n)
			if err == nil {
				t.Fatal("Build succeeded, want length-mismatch error")
			}
			var verr *hierr.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Build error = %T, want *hierr.ValidationError", err)
			}
			if c != nil {
				t.Error("Build returned a partial result alongside an error")
			}
		})
	}
}

func TestBuildOptionalCluster(t *testing.T) {
	groups := []string{"a", "a", "b", "b"}
	units := []string{"u1", "u2", "u3", "u4"}

	t.Run("nil clusters", func(t *testing.T) {
		c, err := Build(groups, nil, units, 4)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if c.Clusters != 0 {
			t.Errorf("Clusters = %d, want 0", c.Clusters)
		}
		if Active(c.ClusterOfObs) {
			t.Error("cluster index active, want all zeros")
		}
		if len(c.ClusterOfObs) != 4 {
			t.Errorf("len(ClusterOfObs) = %d, want 4", len(c.ClusterOfObs))
		}
	})

	t.Run("all-zero clusters", func(t *testing.T) {
		c, err := Build(groups, []string{"", "", "", ""}, units, 4)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if c.Clusters != 0 || Active(c.ClusterOfObs) {
			t.Error("all-zero cluster ids should mark the level inactive")
		}
	})

	t.Run("active clusters", func(t *testing.T) {
		c, err := Build(groups, []string{"n1", "n1", "n2", "n2"}, units, 4)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if c.Clusters != 2 {
			t.Errorf("Clusters = %d, want 2", c.Clusters)
		}
	})
}

func TestCountRoundTrip(t *testing.T) {
	// Re-deriving level counts from the stored index arrays must match
	// the counts assigned at construction.
	groups := []string{"g2", "g2", "g1", "g1", "g3"}
	clusters := []string{"c1", "c2", "c1", "c2", "c3"}
	units := []string{"u1", "u2", "u3", "u4", "u5"}

	c, err := Build(groups, clusters, units, 5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := Count(c.GroupOfObs); got != c.Groups {
		t.Errorf("Count(GroupOfObs) = %d, want %d", got, c.Groups)
	}
	if got := Count(c.ClusterOfObs); got != c.Clusters {
		t.Errorf("Count(ClusterOfObs) = %d, want %d", got, c.Clusters)
	}
	if got := Count(c.UnitOfObs); got != c.Units {
		t.Errorf("Count(UnitOfObs) = %d, want %d", got, c.Units)
	}
}
