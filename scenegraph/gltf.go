package scenegraph

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const (
	extMaterialsUnlit  = "KHR_materials_unlit"
	extLightsPunctual  = "KHR_lights_punctual"
	defaultSceneName   = "Scene"
	defaultMaterialKey = "default"
)

// DecodeGLTF parses a glTF or GLB stream with embedded buffers into a scene
// tree rooted at a group named after the document's default scene.
func DecodeGLTF(r io.Reader) (*GroupNode, error) {
	doc := &gltf.Document{}
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to read gltf")
	}
	return FromDocument(doc)
}

type docReader struct {
	doc        *gltf.Document
	materials  map[uint32]Material
	defaultMat Material
	geometries map[[2]int]*Geometry
	visiting   map[uint32]bool
}

// FromDocument converts an already decoded document. Primitives that point
// at the same glTF material share one Material value, as a renderer's
// loader cache would.
func FromDocument(doc *gltf.Document) (*GroupNode, error) {
	if len(doc.Scenes) == 0 {
		return nil, errors.New("gltf document has no scenes")
	}
	sceneIdx := uint32(0)
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if int(sceneIdx) >= len(doc.Scenes) || doc.Scenes[sceneIdx] == nil {
		return nil, errors.Errorf("gltf default scene %d out of range", sceneIdx)
	}
	scene := doc.Scenes[sceneIdx]

	dr := &docReader{
		doc:        doc,
		materials:  make(map[uint32]Material),
		geometries: make(map[[2]int]*Geometry),
		visiting:   make(map[uint32]bool),
	}

	name := scene.Name
	if name == "" {
		name = defaultSceneName
	}
	root := NewGroup(name)
	for _, iNode := range scene.Nodes {
		n, err := dr.node(iNode)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

func (dr *docReader) node(idx uint32) (Node, error) {
	if int(idx) >= len(dr.doc.Nodes) || dr.doc.Nodes[idx] == nil {
		return nil, errors.Errorf("gltf node %d out of range", idx)
	}
	if dr.visiting[idx] {
		return nil, errors.Errorf("gltf node %d is its own ancestor", idx)
	}
	dr.visiting[idx] = true
	defer delete(dr.visiting, idx)

	gn := dr.doc.Nodes[idx]

	var out Node
	switch {
	case gn.Mesh != nil:
		mesh, err := dr.mesh(gn)
		if err != nil {
			return nil, err
		}
		out = mesh
	case gn.Camera != nil:
		out = NewOther(gn.Name, "camera")
	case hasExtension(gn.Extensions, extLightsPunctual):
		out = NewOther(gn.Name, "light")
	case gn.Skin != nil:
		out = NewOther(gn.Name, "skin")
	default:
		out = NewGroup(gn.Name)
	}
	out.Base().Transform = nodeTransform(gn)

	for _, iChild := range gn.Children {
		child, err := dr.node(iChild)
		if err != nil {
			return nil, errors.Wrapf(err, "child of node %q", gn.Name)
		}
		out.Base().Add(child)
	}
	return out, nil
}

func (dr *docReader) mesh(gn *gltf.Node) (*MeshNode, error) {
	meshIdx := int(*gn.Mesh)
	if meshIdx >= len(dr.doc.Meshes) || dr.doc.Meshes[meshIdx] == nil {
		return nil, errors.Errorf("node %q references missing mesh %d", gn.Name, meshIdx)
	}
	gm := dr.doc.Meshes[meshIdx]

	mesh := NewMesh(gn.Name)
	mesh.MeshName = gm.Name
	for iPrim, prim := range gm.Primitives {
		if prim == nil {
			return nil, errors.Errorf("mesh %q has a nil primitive", gm.Name)
		}
		geom, err := dr.geometry(meshIdx, iPrim, gm.Name, prim)
		if err != nil {
			return nil, err
		}
		mat, err := dr.material(prim.Material)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %q", gm.Name)
		}
		mesh.Primitives = append(mesh.Primitives, &Primitive{Geometry: geom, Material: mat})
	}
	return mesh, nil
}

func (dr *docReader) geometry(meshIdx, primIdx int, name string, prim *gltf.Primitive) (*Geometry, error) {
	key := [2]int{meshIdx, primIdx}
	if g, ok := dr.geometries[key]; ok {
		return g, nil
	}

	g := &Geometry{Name: name}
	if iPos, ok := prim.Attributes["POSITION"]; ok {
		if int(iPos) >= len(dr.doc.Accessors) {
			return nil, errors.Errorf("mesh %q position accessor %d out of range", name, iPos)
		}
		positions, err := modeler.ReadPosition(dr.doc, dr.doc.Accessors[iPos], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh %q vertices", name)
		}
		g.Positions = make([]mgl32.Vec3, len(positions))
		for i, p := range positions {
			g.Positions[i] = mgl32.Vec3(p)
		}
	}
	if prim.Indices != nil {
		if int(*prim.Indices) >= len(dr.doc.Accessors) {
			return nil, errors.Errorf("mesh %q index accessor %d out of range", name, *prim.Indices)
		}
		indices, err := modeler.ReadIndices(dr.doc, dr.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh %q indices", name)
		}
		g.Indices = indices
	}

	dr.geometries[key] = g
	return g, nil
}

func (dr *docReader) material(idx *uint32) (Material, error) {
	if idx == nil {
		if dr.defaultMat == nil {
			dr.defaultMat = NewStandardMaterial(defaultMaterialKey)
		}
		return dr.defaultMat, nil
	}
	if m, ok := dr.materials[*idx]; ok {
		return m, nil
	}
	if int(*idx) >= len(dr.doc.Materials) || dr.doc.Materials[*idx] == nil {
		return nil, errors.Errorf("material %d out of range", *idx)
	}
	gm := dr.doc.Materials[*idx]

	var baseColor = mgl32.Vec4{1, 1, 1, 1}
	metallic, roughness := float32(1), float32(1)
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			baseColor = vec4Of(*pbr.BaseColorFactor)
		}
		metallic = factorOr(pbr.MetallicFactor, 1)
		roughness = factorOr(pbr.RoughnessFactor, 1)
	}

	var m Material
	if hasExtension(gm.Extensions, extMaterialsUnlit) {
		bm := NewBasicMaterial(gm.Name)
		bm.Color = baseColor
		bm.DoubleSided = gm.DoubleSided
		m = bm
	} else {
		sm := NewStandardMaterial(gm.Name)
		sm.BaseColor = baseColor
		sm.Metalness = metallic
		sm.Roughness = roughness
		sm.Emissive = vec3Of(gm.EmissiveFactor)
		sm.DoubleSided = gm.DoubleSided
		m = sm
	}
	dr.materials[*idx] = m
	return m, nil
}

func hasExtension[M ~map[string]V, V any](ext M, name string) bool {
	if ext == nil {
		return false
	}
	_, ok := ext[name]
	return ok
}

func nodeTransform(gn *gltf.Node) Transform {
	if m, ok := matrixOf(gn.Matrix); ok {
		return TransformFromMatrix(m)
	}

	t := NewTransform()
	t.Position = vec3Of(gn.Translation)
	if q := vec4Of(gn.Rotation); q != (mgl32.Vec4{}) {
		t.Rotation = mgl32.Quat{W: q.W(), V: q.Vec3()}.Normalize()
	}
	if s := vec3Of(gn.Scale); s != (mgl32.Vec3{}) {
		t.Scale = s
	}
	return t
}

type float interface {
	~float32 | ~float64
}

func vec3Of[T float](v [3]T) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func vec4Of[T float](v [4]T) mgl32.Vec4 {
	return mgl32.Vec4{float32(v[0]), float32(v[1]), float32(v[2]), float32(v[3])}
}

func factorOr[T float](p *T, def float32) float32 {
	if p == nil {
		return def
	}
	return float32(*p)
}

// matrixOf returns false for the zero and identity matrices, in which case
// the TRS fields are authoritative.
func matrixOf[T float](m [16]T) (mgl32.Mat4, bool) {
	var out mgl32.Mat4
	for i, v := range m {
		out[i] = float32(v)
	}
	if out == (mgl32.Mat4{}) || out == mgl32.Ident4() {
		return out, false
	}
	return out, true
}
