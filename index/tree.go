// Package index builds a hierarchical k-medoid tree over binary descriptors
// and answers approximate nearest-neighbour candidate queries.
package index

import (
	"math"
	"math/rand"
	"sort"

	"github.com/srsergiolazaro/taptapp-ar-sub000/descriptor"
)

// Node is either a *Leaf or an *Internal.
type Node interface {
	center() int
}

// Leaf stores indexes into the descriptor set it was built from.
type Leaf struct {
	Center int
	Points []int
}

// Internal stores the children clusters in ascending center order.
type Internal struct {
	Center   int
	Children []Node
}

func (l *Leaf) center() int     { return l.Center }
func (n *Internal) center() int { return n.Center }

// Build clusters descs and returns the tree root. The root has Center -1.
// The same rng state and input always produce the same tree.
func Build(descs []descriptor.Descriptor, rng *rand.Rand, cfg Config) Node {
	points := make([]int, len(descs))
	for i := range points {
		points[i] = i
	}
	b := builder{descs: descs, rng: rng, cfg: cfg}
	return b.build(points, -1)
}

type builder struct {
	descs []descriptor.Descriptor
	rng   *rand.Rand
	cfg   Config
}

func (b *builder) build(points []int, center int) Node {
	if len(points) <= b.cfg.Centers || len(points) <= b.cfg.LeafSize {
		return &Leaf{Center: center, Points: points}
	}

	assignment := b.kMedoids(points)
	clusters := make(map[int][]int)
	for i, c := range assignment {
		clusters[c] = append(clusters[c], points[i])
	}
	if len(clusters) == 1 {
		return &Leaf{Center: center, Points: points}
	}

	centers := make([]int, 0, len(clusters))
	for c := range clusters {
		centers = append(centers, c)
	}
	sort.Ints(centers)

	node := &Internal{Center: center, Children: make([]Node, 0, len(centers))}
	for _, c := range centers {
		node.Children = append(node.Children, b.build(clusters[c], c))
	}
	return node
}

// kMedoids returns, for every point, the descriptor index of its nearest
// medoid under the best of cfg.Trials random draws.
func (b *builder) kMedoids(points []int) []int {
	n := len(points)
	k := b.cfg.Centers
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	best := make([]int, n)
	cur := make([]int, n)
	bestCost := math.MaxInt
	for trial := 0; trial < b.cfg.Trials; trial++ {
		for i := 0; i < k; i++ {
			j := i + b.rng.Intn(n-i)
			perm[i], perm[j] = perm[j], perm[i]
		}
		cost := 0
		for i, p := range points {
			nearest, nearestD := -1, math.MaxInt
			for c := 0; c < k; c++ {
				m := points[perm[c]]
				d := descriptor.Distance(b.descs[p], b.descs[m])
				if d < nearestD {
					nearest, nearestD = m, d
				}
			}
			cur[i] = nearest
			cost += nearestD
		}
		if cost < bestCost {
			bestCost = cost
			best, cur = cur, best
		}
	}
	return best
}
