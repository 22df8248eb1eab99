package scenegraph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Material is one of the closed set of material variants below.
type Material interface {
	MaterialID() string
	MaterialName() string
	// CloneMaterial returns an independent copy with a fresh ID.
	CloneMaterial() Material
	isMaterial()
}

// StandardMaterial is a metalness/roughness PBR material, the only variant
// the configurator rewrites.
type StandardMaterial struct {
	ID          string
	Name        string
	BaseColor   mgl32.Vec4 // RGBA, 0..1
	Emissive    mgl32.Vec3
	Metalness   float32
	Roughness   float32
	DoubleSided bool
	// NeedsUpdate tells the renderer to re-upload the material.
	NeedsUpdate bool
	Version     uint32
}

// NewStandardMaterial uses the glTF defaults: white, fully metallic, fully rough.
func NewStandardMaterial(name string) *StandardMaterial {
	return &StandardMaterial{
		ID:        uuid.NewString(),
		Name:      name,
		BaseColor: mgl32.Vec4{1, 1, 1, 1},
		Metalness: 1.0,
		Roughness: 1.0,
	}
}

func (m *StandardMaterial) MaterialID() string   { return m.ID }
func (m *StandardMaterial) MaterialName() string { return m.Name }
func (m *StandardMaterial) isMaterial()          {}

func (m *StandardMaterial) CloneMaterial() Material {
	c := *m
	c.ID = uuid.NewString()
	return &c
}

// BasicMaterial is an unlit material; it has no metalness or roughness.
type BasicMaterial struct {
	ID          string
	Name        string
	Color       mgl32.Vec4
	DoubleSided bool
}

func NewBasicMaterial(name string) *BasicMaterial {
	return &BasicMaterial{
		ID:    uuid.NewString(),
		Name:  name,
		Color: mgl32.Vec4{1, 1, 1, 1},
	}
}

func (m *BasicMaterial) MaterialID() string   { return m.ID }
func (m *BasicMaterial) MaterialName() string { return m.Name }
func (m *BasicMaterial) isMaterial()          {}

func (m *BasicMaterial) CloneMaterial() Material {
	c := *m
	c.ID = uuid.NewString()
	return &c
}
