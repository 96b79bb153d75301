package spatial

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"
)

func randomPoints(rng *rand.Rand, n int, side float64) []r2.Vec {
	pts := make([]r2.Vec, n)
	for i := range pts {
		pts[i] = r2.Vec{X: rng.Float64() * side, Y: rng.Float64() * side}
	}
	return pts
}

func bruteWithin(pts []r2.Vec, q r2.Vec, r float64) []int {
	var out []int
	for i, p := range pts {
		if r2.Norm2(r2.Sub(p, q)) <= r*r {
			out = append(out, i)
		}
	}
	return out
}

// === WithinRadius ===

func TestKDTree_WithinRadius_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := randomPoints(rng, 2000, 100)

	for _, leafSize := range []int{1, 10, 20, 500, 5000} {
		tree := New(pts, leafSize)
		for q := 0; q < 50; q++ {
			query := r2.Vec{X: rng.Float64() * 100, Y: rng.Float64() * 100}
			r := rng.Float64() * 15
			got := tree.WithinRadius(query, r)
			want := bruteWithin(pts, query, r)
			if !assert.Equal(t, want, got, "leafSize=%d query=%v r=%v", leafSize, query, r) {
				return
			}
		}
	}
}

func TestKDTree_WithinRadius_AgreesWithGonumKDTree(t *testing.T) {
	// GIVEN the same point set indexed by gonum's k-d tree
	rng := rand.New(rand.NewSource(11))
	pts := randomPoints(rng, 800, 50)
	gpts := make(kdtree.Points, len(pts))
	for i, p := range pts {
		gpts[i] = kdtree.Point{p.X, p.Y}
	}
	oracle := kdtree.New(gpts, false)
	tree := New(pts, 10)

	for q := 0; q < 30; q++ {
		query := r2.Vec{X: rng.Float64() * 50, Y: rng.Float64() * 50}
		r := 1 + rng.Float64()*5

		// WHEN both trees answer a fixed-radius query
		// (gonum Point distances are squared Euclidean)
		keeper := kdtree.NewDistKeeper(r * r)
		oracle.NearestSet(keeper, kdtree.Point{query.X, query.Y})
		var want [][2]float64
		for _, cd := range keeper.Heap {
			if cd.Comparable == nil {
				continue
			}
			p := cd.Comparable.(kdtree.Point)
			want = append(want, [2]float64{p[0], p[1]})
		}

		var got [][2]float64
		for _, off := range tree.WithinRadius(query, r) {
			p := tree.Point(off)
			got = append(got, [2]float64{p.X, p.Y})
		}

		// THEN they return the same points
		sortPairs(want)
		sortPairs(got)
		require.Equal(t, want, got, "query=%v r=%v", query, r)
	}
}

func sortPairs(ps [][2]float64) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i][0] != ps[j][0] {
			return ps[i][0] < ps[j][0]
		}
		return ps[i][1] < ps[j][1]
	})
}

func TestKDTree_WithinRadius_InclusiveBoundary(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 6, Y: 8}}
	tree := New(pts, 1)

	assert.Equal(t, []int{0, 1}, tree.WithinRadius(r2.Vec{}, 5))
	assert.Equal(t, []int{0}, tree.WithinRadius(r2.Vec{}, 4.999))
}

func TestKDTree_WithinRadius_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name   string
		points []r2.Vec
		radius float64
		want   []int
	}{
		{"empty tree", nil, 10, nil},
		{"negative radius", []r2.Vec{{X: 1, Y: 1}}, -1, nil},
		{"NaN radius", []r2.Vec{{X: 1, Y: 1}}, math.NaN(), nil},
		{"zero radius hits coincident point", []r2.Vec{{X: 1, Y: 1}, {X: 2, Y: 2}}, 0, []int{0}},
		{"all points coincident", []r2.Vec{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}, 0, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := New(tt.points, 1)
			assert.Equal(t, tt.want, tree.WithinRadius(r2.Vec{X: 1, Y: 1}, tt.radius))
		})
	}
}

// === Nearest ===

func TestKDTree_Nearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pts := randomPoints(rng, 1000, 10)
	tree := New(pts, 10)

	for q := 0; q < 100; q++ {
		query := r2.Vec{X: rng.Float64()*12 - 1, Y: rng.Float64()*12 - 1}
		wantIdx, wantDist := -1, math.Inf(1)
		for i, p := range pts {
			if d := r2.Norm(r2.Sub(p, query)); d < wantDist {
				wantIdx, wantDist = i, d
			}
		}
		gotIdx, gotDist := tree.Nearest(query)
		assert.Equal(t, wantIdx, gotIdx)
		assert.InDelta(t, wantDist, gotDist, 1e-12)
	}
}

func TestKDTree_Nearest_EmptyTree(t *testing.T) {
	idx, dist := New(nil, 10).Nearest(r2.Vec{})
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(dist, 1))
}

// === Construction ===

func TestKDTree_LeafSizeBoundsEveryLeaf(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pts := randomPoints(rng, 10_000, 1000)

	for _, leafSize := range []int{10, 100} {
		tree := New(pts, leafSize)
		stats := tree.Stats()
		assert.Equal(t, leafSize, tree.LeafSize())
		assert.LessOrEqual(t, stats.MaxLeafSize, leafSize)
		assert.Equal(t, stats.Nodes, 2*stats.Leaves-1, "binary tree invariant")
	}

	// Larger leaves mean a shallower tree.
	assert.Greater(t, New(pts, 10).Stats().Depth, New(pts, 100).Stats().Depth)
}

func TestKDTree_ClampsLeafSizeBelowOne(t *testing.T) {
	tree := New([]r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}}, 0)
	assert.Equal(t, 1, tree.LeafSize())
	assert.Equal(t, 2, tree.Stats().Leaves)
}

func TestKDTree_CopiesInput(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 10, Y: 10}}
	tree := New(pts, 10)
	pts[0] = r2.Vec{X: 100, Y: 100}

	assert.Equal(t, r2.Vec{X: 0, Y: 0}, tree.Point(0))
	assert.Equal(t, []int{0}, tree.WithinRadius(r2.Vec{}, 1))
	assert.Equal(t, 2, tree.Len())
}
