package configurator

import (
	"sync"

	"github.com/gekko3d/configurator/scenegraph"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	fallbackNodeName     = "fallback_cube"
	fallbackMaterialName = "fallback"
)

var fallbackGrey = mgl32.Vec4{0.6, 0.6, 0.6, 1}

// FallbackRenderer stands in for a model that cannot be shown: a unit cube
// painted with the current configuration.
type FallbackRenderer struct {
	logger Logger

	once sync.Once
	box  *scenegraph.Geometry
}

func NewFallbackRenderer(logger Logger) *FallbackRenderer {
	return &FallbackRenderer{logger: orNop(logger)}
}

func (f *FallbackRenderer) geometry() *scenegraph.Geometry {
	f.once.Do(func() {
		f.box = scenegraph.NewBox(1, 1, 1)
	})
	return f.box
}

// Render never fails. A color that does not parse paints the cube grey.
func (f *FallbackRenderer) Render(cfg Configuration) *WorkingCopy {
	mat := scenegraph.NewStandardMaterial(fallbackMaterialName)
	if color, err := ParseColor(cfg.Color); err == nil {
		mat.BaseColor = mgl32.Vec4{color.X(), color.Y(), color.Z(), 1}
	} else {
		f.logger.Debugf("Fallback color %q unusable, using grey", cfg.Color)
		mat.BaseColor = fallbackGrey
	}
	mat.Metalness = clampUnit(cfg.Metalness)
	mat.Roughness = clampUnit(cfg.Roughness)
	mat.NeedsUpdate = true

	cube := scenegraph.NewMesh(fallbackNodeName, &scenegraph.Primitive{
		Geometry: f.geometry(),
		Material: mat,
	})
	if !cfg.Scale.HasNaN() {
		cube.Transform.Scale = cfg.Scale.Vec3()
	}
	if !hasNaN(cfg.Position) {
		cube.Transform.Position = cfg.Position
	}

	return &WorkingCopy{
		ID:        uuid.NewString(),
		Root:      cube,
		Materials: []scenegraph.Material{mat},
		Config:    cfg.Clone(),
		Fallback:  true,
	}
}
