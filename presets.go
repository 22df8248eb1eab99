package configurator

import (
	"encoding/json"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Preset is a partial configuration. Nil fields are left alone when the
// preset is applied.
type Preset struct {
	Name        string          `json:"name,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Metalness   *float32        `json:"metalness,omitempty"`
	Roughness   *float32        `json:"roughness,omitempty"`
	Accessories map[string]bool `json:"accessories,omitempty"`
	Scale       *Scale          `json:"scale,omitempty"`
	Position    *mgl32.Vec3     `json:"position,omitempty"`
	Scene       *SceneSettings  `json:"scene,omitempty"`
}

// PresetFromConfiguration captures every field of cfg.
func PresetFromConfiguration(name string, cfg Configuration) Preset {
	c := cfg.Clone()
	return Preset{
		Name:        name,
		Color:       &c.Color,
		Metalness:   &c.Metalness,
		Roughness:   &c.Roughness,
		Accessories: c.Accessories,
		Scale:       &c.Scale,
		Position:    &c.Position,
		Scene:       &c.Scene,
	}
}

// applyTo writes the set fields into cfg with the store's clamping rules.
func (p Preset) applyTo(cfg *Configuration) {
	if p.Color != nil {
		cfg.Color = *p.Color
	}
	if p.Metalness != nil {
		cfg.Metalness = clampUnit(*p.Metalness)
	}
	if p.Roughness != nil {
		cfg.Roughness = clampUnit(*p.Roughness)
	}
	for id, visible := range p.Accessories {
		cfg.Accessories[NormalizeAccessoryID(id)] = visible
	}
	if p.Scale != nil && !p.Scale.HasNaN() {
		cfg.Scale = *p.Scale
	}
	if p.Position != nil && !hasNaN(*p.Position) {
		cfg.Position = *p.Position
	}
	if p.Scene != nil {
		cfg.Scene = p.Scene.normalized()
	}
}

func SavePreset(p Preset, filename string) error {
	bytes, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "Failed to encode preset %q", p.Name)
	}
	if err := os.WriteFile(filename, bytes, 0644); err != nil {
		return errors.Wrapf(err, "Failed to write preset %s", filename)
	}
	return nil
}

func LoadPreset(filename string) (Preset, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return Preset{}, errors.Wrapf(err, "Failed to read preset %s", filename)
	}

	var p Preset
	if err := json.Unmarshal(bytes, &p); err != nil {
		return Preset{}, errors.Wrapf(err, "Failed to decode preset %s", filename)
	}
	return p, nil
}
