// Package spatial provides a bucketed 2-D k-d tree for fixed-radius and
// nearest-neighbor queries over agent positions.
//
// A tree is built once over an immutable point set and answers queries with
// offsets into that set. Callers keep their own offset → identity mapping.
package spatial

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// KDTree is a static 2-D k-d tree. Internal nodes split their range at the
// median along the wider axis of their bounding box; leaves hold at most
// LeafSize points.
//
// Thread-safety: read-only after New, safe for concurrent queries.
type KDTree struct {
	points   []r2.Vec
	perm     []int // offsets ordered so every node owns a contiguous range
	nodes    []node
	leafSize int
}

type node struct {
	lo, hi      int // range in perm
	left, right int // child node indices; -1 for leaves
	bounds      r2.Box
}

func (n node) isLeaf() bool { return n.left < 0 }

// TreeStats describes the shape of a built tree.
type TreeStats struct {
	Nodes       int
	Leaves      int
	Depth       int
	MaxLeafSize int // largest number of points held by a single leaf
}

// New builds a tree over points. leafSize values below 1 are clamped to 1.
// The points slice is copied; later changes to it do not affect the tree.
func New(points []r2.Vec, leafSize int) *KDTree {
	if leafSize < 1 {
		leafSize = 1
	}
	t := &KDTree{
		points:   slices.Clone(points),
		perm:     make([]int, len(points)),
		leafSize: leafSize,
	}
	for i := range t.perm {
		t.perm[i] = i
	}
	if len(points) > 0 {
		t.build(0, len(points))
	}
	return t
}

// build creates the node owning perm[lo:hi] and returns its index.
func (t *KDTree) build(lo, hi int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{lo: lo, hi: hi, left: -1, right: -1, bounds: t.boundsOf(lo, hi)})
	if hi-lo <= t.leafSize {
		return idx
	}

	box := t.nodes[idx].bounds
	byX := box.Max.X-box.Min.X >= box.Max.Y-box.Min.Y
	coord := func(i int) float64 {
		if byX {
			return t.points[i].X
		}
		return t.points[i].Y
	}
	slices.SortFunc(t.perm[lo:hi], func(a, b int) int {
		ca, cb := coord(a), coord(b)
		switch {
		case ca < cb:
			return -1
		case ca > cb:
			return 1
		}
		return a - b
	})

	mid := lo + (hi-lo)/2
	left := t.build(lo, mid)
	right := t.build(mid, hi)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

func (t *KDTree) boundsOf(lo, hi int) r2.Box {
	p := t.points[t.perm[lo]]
	b := r2.Box{Min: p, Max: p}
	for _, i := range t.perm[lo+1 : hi] {
		p := t.points[i]
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// Len returns the number of points in the tree.
func (t *KDTree) Len() int {
	return len(t.points)
}

// LeafSize returns the maximum number of points per leaf.
func (t *KDTree) LeafSize() int {
	return t.leafSize
}

// Point returns the point stored at offset i.
func (t *KDTree) Point(i int) r2.Vec {
	return t.points[i]
}

// WithinRadius returns the offsets of every point at Euclidean distance <= r
// from q, in ascending offset order. A negative r matches nothing.
func (t *KDTree) WithinRadius(q r2.Vec, r float64) []int {
	if len(t.nodes) == 0 || r < 0 || math.IsNaN(r) {
		return nil
	}
	var out []int
	r2sq := r * r
	stack := []int{0}
	for len(stack) > 0 {
		n := t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if boxDist2(n.bounds, q) > r2sq {
			continue
		}
		if n.isLeaf() {
			for _, i := range t.perm[n.lo:n.hi] {
				if r2.Norm2(r2.Sub(t.points[i], q)) <= r2sq {
					out = append(out, i)
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	slices.Sort(out)
	return out
}

// Nearest returns the offset of the point closest to q and its distance.
// Ties resolve to the smallest offset. An empty tree returns -1 and +Inf.
func (t *KDTree) Nearest(q r2.Vec) (int, float64) {
	best, bestD2 := -1, math.Inf(1)
	if len(t.nodes) == 0 {
		return best, bestD2
	}
	var visit func(ni int)
	visit = func(ni int) {
		n := t.nodes[ni]
		if boxDist2(n.bounds, q) > bestD2 {
			return
		}
		if n.isLeaf() {
			for _, i := range t.perm[n.lo:n.hi] {
				d2 := r2.Norm2(r2.Sub(t.points[i], q))
				if d2 < bestD2 || (d2 == bestD2 && i < best) {
					best, bestD2 = i, d2
				}
			}
			return
		}
		// Descend into the closer child first so the bound tightens early.
		first, second := n.left, n.right
		if boxDist2(t.nodes[second].bounds, q) < boxDist2(t.nodes[first].bounds, q) {
			first, second = second, first
		}
		visit(first)
		visit(second)
	}
	visit(0)
	return best, math.Sqrt(bestD2)
}

// Stats walks the tree and reports its shape.
func (t *KDTree) Stats() TreeStats {
	var s TreeStats
	if len(t.nodes) == 0 {
		return s
	}
	var walk func(ni, depth int)
	walk = func(ni, depth int) {
		n := t.nodes[ni]
		s.Nodes++
		if depth > s.Depth {
			s.Depth = depth
		}
		if n.isLeaf() {
			s.Leaves++
			if n.hi-n.lo > s.MaxLeafSize {
				s.MaxLeafSize = n.hi - n.lo
			}
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(0, 0)
	return s
}

// boxDist2 is the squared distance from q to the closest point of b.
func boxDist2(b r2.Box, q r2.Vec) float64 {
	dx := math.Max(0, math.Max(b.Min.X-q.X, q.X-b.Max.X))
	dy := math.Max(0, math.Max(b.Min.Y-q.Y, q.Y-b.Max.Y))
	return dx*dx + dy*dy
}
