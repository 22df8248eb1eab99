package scenegraph

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Dirty    bool
}

func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Dirty:    true,
	}
}

// Matrix returns the local-to-parent matrix.
func (t Transform) Matrix() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

// IsIdentity reports whether the transform leaves its subtree untouched.
func (t Transform) IsIdentity() bool {
	return t.Position == (mgl32.Vec3{}) &&
		t.Scale == (mgl32.Vec3{1, 1, 1}) &&
		t.Rotation.ApproxEqual(mgl32.QuatIdent())
}

// TransformFromMatrix decomposes an affine TRS matrix. Shear is lost.
func TransformFromMatrix(m mgl32.Mat4) Transform {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()

	// A negative determinant means one axis is mirrored; keep it on X.
	if m.Mat3().Det() < 0 {
		sx = -sx
	}

	rot := mgl32.Ident4()
	if sx != 0 && sy != 0 && sz != 0 {
		c0 := m.Col(0).Vec3().Mul(1 / sx)
		c1 := m.Col(1).Vec3().Mul(1 / sy)
		c2 := m.Col(2).Vec3().Mul(1 / sz)
		rot.SetCol(0, c0.Vec4(0))
		rot.SetCol(1, c1.Vec4(0))
		rot.SetCol(2, c2.Vec4(0))
	}

	return Transform{
		Position: m.Col(3).Vec3(),
		Rotation: mgl32.Mat4ToQuat(rot).Normalize(),
		Scale:    mgl32.Vec3{sx, sy, sz},
		Dirty:    true,
	}
}
