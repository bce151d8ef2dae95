package index

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTree is returned when a serialized tree cannot be decoded.
var ErrMalformedTree = errors.New("malformed index tree")

// Tree wraps a root node for serialization as nested arrays
// [isLeaf, centerIndex, children | pointIndexes].
type Tree struct {
	Root Node
}

// MarshalJSON implements json.Marshaler.
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}
	return json.Marshal(encodeNode(t.Root))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tree) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Root = nil
		return nil
	}
	root, err := decodeNode(data)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func encodeNode(n Node) []any {
	switch n := n.(type) {
	case *Leaf:
		points := n.Points
		if points == nil {
			points = []int{}
		}
		return []any{true, n.Center, points}
	case *Internal:
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = encodeNode(c)
		}
		return []any{false, n.Center, children}
	}
	return nil
}

func decodeNode(data []byte) (Node, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: node has %d fields, want 3", ErrMalformedTree, len(parts))
	}
	var leaf bool
	var center int
	if err := json.Unmarshal(parts[0], &leaf); err != nil {
		return nil, fmt.Errorf("%w: leaf flag: %v", ErrMalformedTree, err)
	}
	if err := json.Unmarshal(parts[1], &center); err != nil {
		return nil, fmt.Errorf("%w: center: %v", ErrMalformedTree, err)
	}
	if leaf {
		var points []int
		if err := json.Unmarshal(parts[2], &points); err != nil {
			return nil, fmt.Errorf("%w: points: %v", ErrMalformedTree, err)
		}
		return &Leaf{Center: center, Points: points}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(parts[2], &raw); err != nil {
		return nil, fmt.Errorf("%w: children: %v", ErrMalformedTree, err)
	}
	node := &Internal{Center: center, Children: make([]Node, 0, len(raw))}
	for _, r := range raw {
		c, err := decodeNode(r)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, c)
	}
	return node, nil
}

// Validate checks that every referenced index is below n and that each
// point appears in exactly one leaf.
func (t Tree) Validate(n int) error {
	seen := make([]bool, n)
	var walk func(Node) error
	walk = func(node Node) error {
		switch node := node.(type) {
		case *Leaf:
			for _, p := range node.Points {
				if p < 0 || p >= n {
					return fmt.Errorf("%w: point %d out of range [0, %d)", ErrMalformedTree, p, n)
				}
				if seen[p] {
					return fmt.Errorf("%w: point %d in two leaves", ErrMalformedTree, p)
				}
				seen[p] = true
			}
		case *Internal:
			for _, c := range node.Children {
				if cc := c.center(); cc < 0 || cc >= n {
					return fmt.Errorf("%w: center %d out of range [0, %d)", ErrMalformedTree, cc, n)
				}
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if t.Root == nil {
		if n == 0 {
			return nil
		}
		return fmt.Errorf("%w: empty tree for %d points", ErrMalformedTree, n)
	}
	if err := walk(t.Root); err != nil {
		return err
	}
	for p, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: point %d missing", ErrMalformedTree, p)
		}
	}
	return nil
}
