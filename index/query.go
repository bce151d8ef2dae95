package index

import (
	"container/heap"

	"github.com/srsergiolazaro/taptapp-ar-sub000/descriptor"
)

// Query returns candidate indexes into descs for q. It descends into every
// child tied at the minimum center distance, queues the others, and then
// pops up to backtrack queued branches in order of distance.
func Query(root Node, descs []descriptor.Descriptor, q descriptor.Descriptor, backtrack int) []int {
	if root == nil {
		return nil
	}
	s := search{descs: descs, q: q}
	s.descend(root)
	for pops := 0; pops < backtrack && s.queue.Len() > 0; pops++ {
		e := heap.Pop(&s.queue).(branch)
		s.descend(e.node)
	}
	return s.out
}

type search struct {
	descs []descriptor.Descriptor
	q     descriptor.Descriptor
	queue branchQueue
	seq   int
	out   []int
}

func (s *search) descend(n Node) {
	switch n := n.(type) {
	case *Leaf:
		s.out = append(s.out, n.Points...)
	case *Internal:
		dist := make([]int, len(n.Children))
		minD := -1
		for i, c := range n.Children {
			dist[i] = descriptor.Distance(s.descs[c.center()], s.q)
			if minD < 0 || dist[i] < minD {
				minD = dist[i]
			}
		}
		var nearest []Node
		for i, c := range n.Children {
			if dist[i] == minD {
				nearest = append(nearest, c)
				continue
			}
			heap.Push(&s.queue, branch{node: c, dist: dist[i], seq: s.seq})
			s.seq++
		}
		for _, c := range nearest {
			s.descend(c)
		}
	}
}

type branch struct {
	node Node
	dist int
	seq  int
}

// branchQueue is a min-heap on distance, insertion order breaking ties.
type branchQueue []branch

func (q branchQueue) Len() int { return len(q) }
func (q branchQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q branchQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *branchQueue) Push(x any) { *q = append(*q, x.(branch)) }

func (q *branchQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
