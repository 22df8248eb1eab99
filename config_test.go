package configurator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestScale_JSON(t *testing.T) {
	var s Scale
	require.NoError(t, json.Unmarshal([]byte(`0.5`), &s))
	assert.Equal(t, UniformScale(0.5), s)

	require.NoError(t, json.Unmarshal([]byte(`[1, 2, 3]`), &s))
	assert.Equal(t, Scale{1, 2, 3}, s)

	assert.Error(t, json.Unmarshal([]byte(`"big"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"x": 1}`), &s))

	data, err := json.Marshal(UniformScale(2))
	require.NoError(t, err)
	assert.JSONEq(t, `2`, string(data))

	data, err = json.Marshal(Scale{1, 2, 3})
	require.NoError(t, err)
	assert.JSONEq(t, `[1, 2, 3]`, string(data))
}

func TestScale_YAML(t *testing.T) {
	var cfg struct {
		A Scale `yaml:"a"`
		B Scale `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 0.1\nb: [1, 2, 3]\n"), &cfg))
	assert.Equal(t, UniformScale(0.1), cfg.A)
	assert.Equal(t, Scale{1, 2, 3}, cfg.B)

	assert.Error(t, yaml.Unmarshal([]byte("a: [1, 2]\n"), &cfg))
	assert.Error(t, yaml.Unmarshal([]byte("a: {x: 1}\n"), &cfg))

	out, err := yaml.Marshal(struct {
		A Scale `yaml:"a"`
	}{A: UniformScale(2)})
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(out))
}

func TestParseScaleParam(t *testing.T) {
	cases := []struct {
		raw  string
		want float32
	}{
		{"1", 1},
		{"0.5", 0.5},
		{" 2 ", 2},
		{"0.01", 0.01},
		{"1.5x", 1.5},
		{"-3", -3},
		{".25", 0.25},
		{"1e-2", 0.01},
	}
	for _, c := range cases {
		s, err := ParseScaleParam(c.raw)
		require.NoError(t, err, c.raw)
		assert.Equal(t, UniformScale(c.want), s, c.raw)
	}

	s, err := ParseScaleParam("Infinity")
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(s[0]), 1))

	for _, raw := range []string{"", "abc", "NaN", "x1"} {
		_, err := ParseScaleParam(raw)
		assert.Error(t, err, raw)
	}
}

func TestConfiguration_CloneSharesNothing(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Accessories["wheel"] = true

	c := cfg.Clone()
	c.Accessories["wheel"] = false
	assert.True(t, cfg.Accessories["wheel"])
}

func TestConfiguration_JSONShape(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Position = mgl32.Vec3{0, 1, 0}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, DefaultColor, raw["color"])
	assert.Equal(t, 1.0, raw["scale"])
	scene := raw["scene"].(map[string]interface{})
	assert.Equal(t, true, scene["backgroundVisible"])
	assert.Equal(t, 2.0, scene["shadowBlur"])
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want mgl32.Vec4
	}{
		{"#ff0000", mgl32.Vec4{1, 0, 0, 1}},
		{"#F00", mgl32.Vec4{1, 0, 0, 1}},
		{"#00ff0080", mgl32.Vec4{0, 1, 0, float32(0x80) / 255}},
		{"#0f08", mgl32.Vec4{0, 1, 0, float32(0x88) / 255}},
		{"rgb(255, 0, 0)", mgl32.Vec4{1, 0, 0, 1}},
		{"rgba(0, 0, 255, 0.5)", mgl32.Vec4{0, 0, 1, 0.5}},
		{"rgb(100%, 0%, 50%)", mgl32.Vec4{1, 0, 0.5, 1}},
		{"white", mgl32.Vec4{1, 1, 1, 1}},
		{" Red ", mgl32.Vec4{1, 0, 0, 1}},
	}
	for _, c := range cases {
		got, err := ParseColor(c.in)
		require.NoError(t, err, c.in)
		for i := 0; i < 4; i++ {
			assert.InDelta(t, c.want[i], got[i], 1e-6, c.in)
		}
	}

	for _, bad := range []string{"", "#12", "#gggggg", "rgb(1,2)", "hsl(0, 0%, 0%)", "not-a-color", "rgb(a, b, c)"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, "network", KindAssetNotFound.Category())
	assert.Equal(t, "parse", KindAssetParse.Category())
	assert.True(t, KindAssetFetch.Retryable())
	assert.False(t, KindAssetNotFound.Retryable())
	assert.False(t, KindAssetParse.Retryable())

	ae := newAssetError(KindAssetNotFound, "car.glb", nil, "HEAD returned %s", "404 Not Found")
	assert.Equal(t, "asset_not_found car.glb: HEAD returned 404 Not Found", ae.Error())
	assert.Equal(t, "3D model not found", ae.Message())
	assert.Contains(t, ae.Hint(), "wheel")

	data, err := json.Marshal(ae)
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "asset_not_found", out["kind"])
	assert.Equal(t, "network", out["category"])
	assert.Equal(t, "car.glb", out["path"])

	env := &AssetError{Kind: KindUnsupportedEnvironment}
	assert.Equal(t, "3D Viewer Not Available", env.Message())
	assert.Equal(t, "Try a different browser or device with WebGL support.", env.Hint())
}

func TestAsAssetError(t *testing.T) {
	assert.Nil(t, AsAssetError(nil, KindAssetFetch, "x"))

	plain := assert.AnError
	ae := AsAssetError(plain, KindAssetFetch, "x")
	assert.Equal(t, KindAssetFetch, ae.Kind)
	assert.ErrorIs(t, ae, plain)

	orig := newAssetError(KindAssetParse, "y", nil, "bad")
	assert.Same(t, orig, AsAssetError(orig, KindAssetFetch, "x"))
	assert.True(t, IsKind(orig, KindAssetParse))
	assert.False(t, IsKind(plain, KindAssetParse))
}
