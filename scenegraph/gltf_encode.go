package scenegraph

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

type docWriter struct {
	doc       *gltf.Document
	materials map[Material]uint32
	positions map[*Geometry]uint32
	indices   map[*Geometry]uint32
	unlitUsed bool
}

// ToDocument builds a glTF document from the visible part of the tree.
// An untransformed root group is folded into the scene itself.
func ToDocument(root Node) (*gltf.Document, error) {
	if root == nil || isNilNode(root) {
		return nil, ErrNilNode
	}

	doc := gltf.NewDocument()
	dw := &docWriter{
		doc:       doc,
		materials: make(map[Material]uint32),
		positions: make(map[*Geometry]uint32),
		indices:   make(map[*Geometry]uint32),
	}

	roots := []Node{root}
	if g, ok := root.(*GroupNode); ok && g.Transform.IsIdentity() {
		roots = g.Children
		if g.Name != "" {
			doc.Scenes[0].Name = g.Name
		}
	}

	for _, n := range roots {
		idx, ok, err := dw.node(n)
		if err != nil {
			return nil, err
		}
		if ok {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, idx)
		}
	}

	if dw.unlitUsed {
		doc.ExtensionsUsed = append(doc.ExtensionsUsed, extMaterialsUnlit)
	}
	return doc, nil
}

// EncodeGLB writes the visible part of the tree as a binary glTF.
func EncodeGLB(w io.Writer, root Node) error {
	doc, err := ToDocument(root)
	if err != nil {
		return err
	}
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	if err := encoder.Encode(doc); err != nil {
		return errors.Wrapf(err, "Failed to encode glb")
	}
	return nil
}

func (dw *docWriter) node(n Node) (uint32, bool, error) {
	if n == nil || isNilNode(n) {
		return 0, false, ErrNilNode
	}
	b := n.Base()
	if !b.Visible {
		return 0, false, nil
	}

	gn := &gltf.Node{Name: b.Name}
	setMatrix(&gn.Matrix, mgl32.Ident4())
	setVec3(&gn.Translation, b.Transform.Position)
	setVec4(&gn.Rotation, mgl32.Vec4{b.Transform.Rotation.X(), b.Transform.Rotation.Y(), b.Transform.Rotation.Z(), b.Transform.Rotation.W})
	setVec3(&gn.Scale, b.Transform.Scale)

	if mesh, ok := n.(*MeshNode); ok {
		iMesh, ok, err := dw.mesh(mesh)
		if err != nil {
			return 0, false, err
		}
		if ok {
			gn.Mesh = gltf.Index(iMesh)
		}
	}

	idx := uint32(len(dw.doc.Nodes))
	dw.doc.Nodes = append(dw.doc.Nodes, gn)

	for _, child := range b.Children {
		iChild, ok, err := dw.node(child)
		if err != nil {
			return 0, false, err
		}
		if ok {
			gn.Children = append(gn.Children, iChild)
		}
	}
	return idx, true, nil
}

func (dw *docWriter) mesh(mesh *MeshNode) (uint32, bool, error) {
	gm := &gltf.Mesh{Name: mesh.MeshName}
	for i, p := range mesh.Primitives {
		if p == nil {
			return 0, false, errors.Errorf("mesh %q has a nil primitive at slot %d", mesh.Name, i)
		}
		if p.Geometry.VertexCount() == 0 {
			continue
		}

		prim := &gltf.Primitive{
			Attributes: map[string]uint32{"POSITION": dw.positionAccessor(p.Geometry)},
		}
		if len(p.Geometry.Indices) > 0 {
			prim.Indices = gltf.Index(dw.indexAccessor(p.Geometry))
		}
		if p.Material != nil {
			prim.Material = gltf.Index(dw.material(p.Material))
		}
		gm.Primitives = append(gm.Primitives, prim)
	}
	if len(gm.Primitives) == 0 {
		return 0, false, nil
	}
	dw.doc.Meshes = append(dw.doc.Meshes, gm)
	return uint32(len(dw.doc.Meshes) - 1), true, nil
}

func (dw *docWriter) positionAccessor(g *Geometry) uint32 {
	if idx, ok := dw.positions[g]; ok {
		return idx
	}
	data := make([][3]float32, len(g.Positions))
	for i, p := range g.Positions {
		data[i] = [3]float32(p)
	}
	idx := modeler.WritePosition(dw.doc, data)
	dw.positions[g] = idx
	return idx
}

func (dw *docWriter) indexAccessor(g *Geometry) uint32 {
	if idx, ok := dw.indices[g]; ok {
		return idx
	}
	idx := modeler.WriteIndices(dw.doc, g.Indices)
	dw.indices[g] = idx
	return idx
}

func (dw *docWriter) material(m Material) uint32 {
	if idx, ok := dw.materials[m]; ok {
		return idx
	}

	gm := &gltf.Material{Name: m.MaterialName()}
	pbr := &gltf.PBRMetallicRoughness{}
	switch v := m.(type) {
	case *StandardMaterial:
		gm.DoubleSided = v.DoubleSided
		setColor(&pbr.BaseColorFactor, v.BaseColor)
		setFactor(&pbr.MetallicFactor, v.Metalness)
		setFactor(&pbr.RoughnessFactor, v.Roughness)
		setVec3(&gm.EmissiveFactor, v.Emissive)
	case *BasicMaterial:
		gm.DoubleSided = v.DoubleSided
		setColor(&pbr.BaseColorFactor, v.Color)
		gm.Extensions = gltf.Extensions{extMaterialsUnlit: map[string]interface{}{}}
		dw.unlitUsed = true
	}
	gm.PBRMetallicRoughness = pbr

	idx := uint32(len(dw.doc.Materials))
	dw.doc.Materials = append(dw.doc.Materials, gm)
	dw.materials[m] = idx
	return idx
}

func setVec3[T float](dst *[3]T, v mgl32.Vec3) {
	for i := range dst {
		dst[i] = T(v[i])
	}
}

func setVec4[T float](dst *[4]T, v mgl32.Vec4) {
	for i := range dst {
		dst[i] = T(v[i])
	}
}

func setMatrix[T float](dst *[16]T, m mgl32.Mat4) {
	for i := range dst {
		dst[i] = T(m[i])
	}
}

func setColor[T float](dst **[4]T, c mgl32.Vec4) {
	out := new([4]T)
	setVec4(out, c)
	*dst = out
}

func setFactor[T float](dst **T, v float32) {
	out := T(v)
	*dst = &out
}
