package configurator

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultColor     = "#2196f3"
	DefaultMetalness = 0.5
	DefaultRoughness = 0.5
)

// Scale is a per-axis scale. It reads either a single number, broadcast to
// all axes, or a three element array.
type Scale [3]float32

func UniformScale(s float32) Scale {
	return Scale{s, s, s}
}

func (s Scale) Vec3() mgl32.Vec3 {
	return mgl32.Vec3(s)
}

func (s Scale) IsUniform() bool {
	return s[0] == s[1] && s[1] == s[2]
}

func (s Scale) HasNaN() bool {
	for _, v := range s {
		if math.IsNaN(float64(v)) {
			return true
		}
	}
	return false
}

func (s Scale) MarshalJSON() ([]byte, error) {
	if s.IsUniform() {
		return json.Marshal(s[0])
	}
	return json.Marshal([3]float32(s))
}

func (s *Scale) UnmarshalJSON(data []byte) error {
	var scalar float32
	if err := json.Unmarshal(data, &scalar); err == nil {
		*s = UniformScale(scalar)
		return nil
	}
	var vec [3]float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return errors.Errorf("scale must be a number or a 3 element array, got %s", string(data))
	}
	*s = Scale(vec)
	return nil
}

func (s Scale) MarshalYAML() (interface{}, error) {
	if s.IsUniform() {
		return s[0], nil
	}
	return []float32{s[0], s[1], s[2]}, nil
}

func (s *Scale) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var scalar float32
		if err := value.Decode(&scalar); err != nil {
			return errors.Wrapf(err, "scale at line %d", value.Line)
		}
		*s = UniformScale(scalar)
	case yaml.SequenceNode:
		var vec []float32
		if err := value.Decode(&vec); err != nil {
			return errors.Wrapf(err, "scale at line %d", value.Line)
		}
		if len(vec) != 3 {
			return errors.Errorf("scale at line %d has %d components, want 3", value.Line, len(vec))
		}
		*s = Scale{vec[0], vec[1], vec[2]}
	default:
		return errors.Errorf("scale at line %d must be a number or a list", value.Line)
	}
	return nil
}

// SceneSettings are presentation parameters handed to the renderer's
// lighting rig untouched.
type SceneSettings struct {
	BackgroundVisible         bool    `json:"backgroundVisible" yaml:"background_visible"`
	EnvironmentIntensity      float32 `json:"environmentIntensity" yaml:"environment_intensity"`
	AmbientLightIntensity     float32 `json:"ambientLightIntensity" yaml:"ambient_light_intensity"`
	DirectionalLightIntensity float32 `json:"directionalLightIntensity" yaml:"directional_light_intensity"`
	ShadowOpacity             float32 `json:"shadowOpacity" yaml:"shadow_opacity"`
	ShadowBlur                float32 `json:"shadowBlur" yaml:"shadow_blur"`
}

func DefaultSceneSettings() SceneSettings {
	return SceneSettings{
		BackgroundVisible:         true,
		EnvironmentIntensity:      1.0,
		AmbientLightIntensity:     0.5,
		DirectionalLightIntensity: 0.8,
		ShadowOpacity:             0.6,
		ShadowBlur:                2,
	}
}

type Configuration struct {
	Color       string          `json:"color" yaml:"color"`
	Metalness   float32         `json:"metalness" yaml:"metalness"`
	Roughness   float32         `json:"roughness" yaml:"roughness"`
	Accessories map[string]bool `json:"accessories" yaml:"accessories"`
	Scale       Scale           `json:"scale" yaml:"scale"`
	Position    mgl32.Vec3      `json:"position" yaml:"position"`
	Scene       SceneSettings   `json:"scene" yaml:"scene"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Color:       DefaultColor,
		Metalness:   DefaultMetalness,
		Roughness:   DefaultRoughness,
		Accessories: map[string]bool{},
		Scale:       UniformScale(1),
		Scene:       DefaultSceneSettings(),
	}
}

// Clone returns a copy that shares no map with c.
func (c Configuration) Clone() Configuration {
	out := c
	out.Accessories = make(map[string]bool, len(c.Accessories))
	for k, v := range c.Accessories {
		out.Accessories[k] = v
	}
	return out
}

// normalized applies the clamping rules the store enforces on writes.
func (c Configuration) normalized() Configuration {
	out := c.Clone()
	out.Metalness = clampUnit(c.Metalness)
	out.Roughness = clampUnit(c.Roughness)
	out.Accessories = make(map[string]bool, len(c.Accessories))
	for k, v := range c.Accessories {
		out.Accessories[NormalizeAccessoryID(k)] = v
	}
	if c.Scale.HasNaN() {
		out.Scale = UniformScale(1)
	}
	if hasNaN(c.Position) {
		out.Position = mgl32.Vec3{}
	}
	out.Scene = c.Scene.normalized()
	return out
}

func (s SceneSettings) normalized() SceneSettings {
	s.EnvironmentIntensity = clampNonNegative(s.EnvironmentIntensity)
	s.AmbientLightIntensity = clampNonNegative(s.AmbientLightIntensity)
	s.DirectionalLightIntensity = clampNonNegative(s.DirectionalLightIntensity)
	s.ShadowOpacity = clampUnit(s.ShadowOpacity)
	s.ShadowBlur = clampNonNegative(s.ShadowBlur)
	return s
}

func clampUnit(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	return mgl32.Clamp(v, 0, 1)
}

func clampNonNegative(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	return v
}

func hasNaN(v mgl32.Vec3) bool {
	return math.IsNaN(float64(v[0])) || math.IsNaN(float64(v[1])) || math.IsNaN(float64(v[2]))
}

var leadingFloat = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// ParseScaleParam reads a scale seed from a query string or flag. It reads
// the longest numeric prefix, like a browser's parseFloat, and rejects only
// input that yields no number.
func ParseScaleParam(raw string) (Scale, error) {
	m := leadingFloat.FindString(strings.TrimSpace(raw))
	if m == "" {
		return Scale{}, errors.Errorf("scale %q is not a number", raw)
	}
	m = strings.Replace(m, "Infinity", "Inf", 1)
	v, err := strconv.ParseFloat(m, 32)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Scale{}, errors.Wrapf(err, "scale %q", raw)
	}
	if math.IsNaN(v) {
		return Scale{}, errors.Errorf("scale %q is not a number", raw)
	}
	return UniformScale(float32(v)), nil
}

// ScalePreset is one of the quick scale choices offered next to the model.
type ScalePreset struct {
	Name  string  `json:"name"`
	Value float32 `json:"value"`
}

var ScalePresets = []ScalePreset{
	{Name: "Normal", Value: 1.0},
	{Name: "Small", Value: 0.5},
	{Name: "Very Small", Value: 0.1},
	{Name: "Tiny", Value: 0.01},
	{Name: "Large", Value: 2.0},
}
