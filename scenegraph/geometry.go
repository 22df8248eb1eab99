package scenegraph

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Geometry is vertex data owned by the loader. It is never written after
// construction, so working copies share it.
type Geometry struct {
	Name      string
	Positions []mgl32.Vec3
	Indices   []uint32
}

func (g *Geometry) VertexCount() int {
	if g == nil {
		return 0
	}
	return len(g.Positions)
}

// Bounds returns the axis aligned box around all positions. An empty
// geometry yields min > max.
func (g *Geometry) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	inf := float32(1e20)
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	if g == nil {
		return minB, maxB
	}
	for _, p := range g.Positions {
		minB = mgl32.Vec3{min(minB.X(), p.X()), min(minB.Y(), p.Y()), min(minB.Z(), p.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), p.X()), max(maxB.Y(), p.Y()), max(maxB.Z(), p.Z())}
	}
	return minB, maxB
}

// NewBox builds a box centred on the origin with one quad per face so each
// face can carry its own normal downstream.
func NewBox(sizeX, sizeY, sizeZ float32) *Geometry {
	hx, hy, hz := sizeX/2, sizeY/2, sizeZ/2

	faces := [6][4]mgl32.Vec3{
		// +X
		{{hx, -hy, hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}},
		// -X
		{{-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}},
		// +Y
		{{-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}, {-hx, hy, -hz}},
		// -Y
		{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}},
		// +Z
		{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}},
		// -Z
		{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}},
	}

	g := &Geometry{
		Name:      "box",
		Positions: make([]mgl32.Vec3, 0, 24),
		Indices:   make([]uint32, 0, 36),
	}
	for _, face := range faces {
		base := uint32(len(g.Positions))
		g.Positions = append(g.Positions, face[:]...)
		g.Indices = append(g.Indices,
			base, base+1, base+2,
			base, base+2, base+3,
		)
	}
	return g
}
