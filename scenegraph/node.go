package scenegraph

import (
	"github.com/pkg/errors"
)

// Node is one of GroupNode, MeshNode or OtherNode. Code walking a tree
// switches on the concrete type.
type Node interface {
	Base() *NodeBase
	isNode()
}

type NodeBase struct {
	Name      string
	Transform Transform
	Visible   bool
	Children  []Node
}

func (b *NodeBase) Base() *NodeBase { return b }

// Add appends children in order.
func (b *NodeBase) Add(children ...Node) {
	b.Children = append(b.Children, children...)
}

// GroupNode only carries a transform and children.
type GroupNode struct {
	NodeBase
}

func (*GroupNode) isNode() {}

// Primitive is one draw of a mesh: shared geometry plus its material slot.
type Primitive struct {
	Geometry *Geometry
	Material Material
}

type MeshNode struct {
	NodeBase
	MeshName   string
	Primitives []*Primitive
}

func (*MeshNode) isNode() {}

// OtherNode stands for anything the configurator passes through untouched
// (cameras, lights, joints).
type OtherNode struct {
	NodeBase
	Kind string
}

func (*OtherNode) isNode() {}

func newBase(name string) NodeBase {
	return NodeBase{
		Name:      name,
		Transform: NewTransform(),
		Visible:   true,
	}
}

func NewGroup(name string, children ...Node) *GroupNode {
	g := &GroupNode{NodeBase: newBase(name)}
	g.Add(children...)
	return g
}

func NewMesh(name string, primitives ...*Primitive) *MeshNode {
	return &MeshNode{
		NodeBase:   newBase(name),
		MeshName:   name,
		Primitives: primitives,
	}
}

func NewOther(name string, kind string) *OtherNode {
	return &OtherNode{NodeBase: newBase(name), Kind: kind}
}

// ErrNilNode is returned when a tree contains a nil child.
var ErrNilNode = errors.New("nil node in scene graph")

// Walk visits root and its descendants depth first, parents before
// children. Returning an error from fn stops the walk.
func Walk(root Node, fn func(n Node, depth int) error) error {
	return walk(root, 0, fn)
}

func walk(n Node, depth int, fn func(n Node, depth int) error) error {
	if n == nil || isNilNode(n) {
		return ErrNilNode
	}
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, child := range n.Base().Children {
		if err := walk(child, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// isNilNode catches typed nil pointers stored in the interface.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *GroupNode:
		return v == nil
	case *MeshNode:
		return v == nil
	case *OtherNode:
		return v == nil
	}
	return false
}

func Count(root Node) int {
	count := 0
	_ = Walk(root, func(Node, int) error {
		count++
		return nil
	})
	return count
}

// Find returns the first node named name, or nil.
func Find(root Node, name string) Node {
	var found Node
	errStop := errors.New("stop")
	_ = Walk(root, func(n Node, _ int) error {
		if n.Base().Name == name {
			found = n
			return errStop
		}
		return nil
	})
	return found
}

// Materials lists every material slot in walk order, duplicates included.
func Materials(root Node) []Material {
	var out []Material
	_ = Walk(root, func(n Node, _ int) error {
		if mesh, ok := n.(*MeshNode); ok {
			for _, p := range mesh.Primitives {
				if p != nil && p.Material != nil {
					out = append(out, p.Material)
				}
			}
		}
		return nil
	})
	return out
}

// Clone copies the node structure of root. Transforms, visibility and
// primitive slots are copied; geometry and materials are still shared with
// the source, so callers that mutate materials must replace them first.
func Clone(root Node) (Node, error) {
	if root == nil || isNilNode(root) {
		return nil, ErrNilNode
	}

	var out Node
	switch src := root.(type) {
	case *GroupNode:
		out = &GroupNode{NodeBase: copyBase(&src.NodeBase)}
	case *MeshNode:
		mesh := &MeshNode{
			NodeBase:   copyBase(&src.NodeBase),
			MeshName:   src.MeshName,
			Primitives: make([]*Primitive, len(src.Primitives)),
		}
		for i, p := range src.Primitives {
			if p == nil {
				return nil, errors.Errorf("mesh %q has a nil primitive at slot %d", src.Name, i)
			}
			cp := *p
			mesh.Primitives[i] = &cp
		}
		out = mesh
	case *OtherNode:
		out = &OtherNode{NodeBase: copyBase(&src.NodeBase), Kind: src.Kind}
	default:
		return nil, errors.Errorf("unsupported node type %T", root)
	}

	children := root.Base().Children
	if len(children) > 0 {
		base := out.Base()
		base.Children = make([]Node, 0, len(children))
		for _, child := range children {
			c, err := Clone(child)
			if err != nil {
				return nil, errors.Wrapf(err, "clone child of %q", root.Base().Name)
			}
			base.Children = append(base.Children, c)
		}
	}
	return out, nil
}

func copyBase(b *NodeBase) NodeBase {
	return NodeBase{
		Name:      b.Name,
		Transform: b.Transform,
		Visible:   b.Visible,
	}
}
