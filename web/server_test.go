package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gekko3d/configurator"
	"github.com/gekko3d/configurator/scenegraph"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	app    *configurator.App
	engine *configurator.Engine
	server *Server
	dir    string
}

func writeCar(t *testing.T, dir string) {
	t.Helper()
	paint := scenegraph.NewStandardMaterial("paint")
	box := scenegraph.NewBox(1, 1, 1)
	root := scenegraph.NewGroup("Car",
		scenegraph.NewMesh("Body", &scenegraph.Primitive{Geometry: box, Material: paint}),
		scenegraph.NewMesh("Wheel_FL", &scenegraph.Primitive{Geometry: box, Material: paint}),
	)
	var buf bytes.Buffer
	require.NoError(t, scenegraph.EncodeGLB(&buf, root))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "car.glb"), buf.Bytes(), 0644))
}

func newRig(t *testing.T, withCatalog bool) *testRig {
	t.Helper()
	rig := &testRig{dir: t.TempDir()}
	writeCar(t, rig.dir)

	rig.app = configurator.NewAppBuilder().
		UseStates(configurator.ViewLoading, configurator.ViewShutdown).
		UseModule(configurator.ConfiguratorModule{
			AssetPath: "car.glb",
			Source:    configurator.DirSource{Root: rig.dir},
			Retry:     configurator.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond},
			Surface:   configurator.NewHeadlessSurface(nil),
		}).
		Build()
	rig.engine = configurator.EngineOf(rig.app)
	require.NotNil(t, rig.engine)
	t.Cleanup(rig.engine.Loader.Close)

	var catalog *configurator.PresetCatalog
	if withCatalog {
		var err error
		catalog, err = configurator.OpenPresetCatalog(filepath.Join(t.TempDir(), "presets.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { catalog.Close() })
	}
	rig.server = NewServer(rig.engine, catalog, nil, rig.dir)
	t.Cleanup(rig.server.Close)
	return rig
}

// ready runs frames until the model is on screen.
func (rig *testRig) ready(t *testing.T) {
	t.Helper()
	for i := 0; i < 20; i++ {
		rig.engine.Loader.Wait()
		rig.app.Step()
		if f := rig.engine.Viewport.Current(); f.State == "ready" && f.Scene != nil {
			return
		}
	}
	t.Fatal("model never became ready")
}

func (rig *testRig) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	rig.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (rig *testRig) config(t *testing.T, method, path, body string) configResponse {
	t.Helper()
	rec := rig.do(t, method, path, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out configResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestConfigEndpoints(t *testing.T) {
	rig := newRig(t, false)

	got := rig.config(t, "GET", "/api/config", "")
	assert.Equal(t, configurator.DefaultColor, got.Config.Color)
	gen := got.Generation

	got = rig.config(t, "PUT", "/api/config/color", `{"value":"#ff0000"}`)
	assert.Equal(t, "#ff0000", got.Config.Color)
	assert.Equal(t, gen+1, got.Generation)

	got = rig.config(t, "PUT", "/api/config/metalness", `{"value":1.5}`)
	assert.Equal(t, float32(1), got.Config.Metalness)

	got = rig.config(t, "PUT", "/api/config/roughness", `{"value":0.25}`)
	assert.Equal(t, float32(0.25), got.Config.Roughness)

	got = rig.config(t, "PUT", "/api/config/scale", `{"value":2}`)
	assert.Equal(t, configurator.UniformScale(2), got.Config.Scale)

	got = rig.config(t, "PUT", "/api/config/scale", `{"value":[1,2,3]}`)
	assert.Equal(t, configurator.Scale{1, 2, 3}, got.Config.Scale)

	got = rig.config(t, "PUT", "/api/config/position", `{"value":[0,1,0]}`)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, got.Config.Position)

	before := got.Config.Scene
	got = rig.config(t, "PUT", "/api/config/scene", `{"shadowOpacity":0.3}`)
	assert.Equal(t, float32(0.3), got.Config.Scene.ShadowOpacity)
	assert.Equal(t, before.BackgroundVisible, got.Config.Scene.BackgroundVisible)
	assert.Equal(t, before.EnvironmentIntensity, got.Config.Scene.EnvironmentIntensity)
}

func TestConfigReplaceIsOneChange(t *testing.T) {
	rig := newRig(t, false)
	gen := rig.engine.Store.Generation()

	got := rig.config(t, "PUT", "/api/config", `{"color":"#00ff00","metalness":0.5,"scale":[1,1,2]}`)
	assert.Equal(t, gen+1, got.Generation)
	assert.Equal(t, "#00ff00", got.Config.Color)
	assert.Equal(t, float32(0.5), got.Config.Metalness)
	assert.Equal(t, configurator.Scale{1, 1, 2}, got.Config.Scale)
	assert.Equal(t, float32(configurator.DefaultRoughness), got.Config.Roughness)
}

func TestConfigRejectsBadInput(t *testing.T) {
	rig := newRig(t, false)
	gen := rig.engine.Store.Generation()

	for _, c := range []struct{ path, body string }{
		{"/api/config/metalness", `{}`},
		{"/api/config/roughness", `not json`},
		{"/api/config/scale", `{}`},
		{"/api/config/scale", `{"value":"big"}`},
		{"/api/config/position", `{}`},
		{"/api/config", `{"scale":{"x":1}}`},
	} {
		rec := rig.do(t, "PUT", c.path, c.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, c.path+" "+c.body)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
	assert.Equal(t, gen, rig.engine.Store.Generation())

	rec := rig.do(t, "POST", "/api/config/color", `{"value":"red"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionScale(t *testing.T) {
	rig := newRig(t, false)

	got := rig.config(t, "GET", "/api/session?scale=0.5", "")
	assert.Equal(t, configurator.UniformScale(0.5), got.Config.Scale)

	got = rig.config(t, "GET", "/api/session?scale=2.5x", "")
	assert.Equal(t, configurator.UniformScale(2.5), got.Config.Scale)

	got = rig.config(t, "GET", "/api/session", "")
	assert.Equal(t, configurator.UniformScale(2.5), got.Config.Scale)

	assert.Equal(t, http.StatusBadRequest, rig.do(t, "GET", "/api/session?scale=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, rig.do(t, "GET", "/api/session?scale=Infinity", "").Code)
	assert.Equal(t, configurator.UniformScale(2.5), rig.engine.Store.Scale())
}

func TestScalePresets(t *testing.T) {
	rig := newRig(t, false)
	rec := rig.do(t, "GET", "/api/scale-presets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var presets []configurator.ScalePreset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presets))
	assert.Equal(t, configurator.ScalePresets, presets)
}

func TestAccessoryEndpoints(t *testing.T) {
	rig := newRig(t, false)
	rig.ready(t)

	rec := rig.do(t, "GET", "/api/accessories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var toggles []configurator.AccessoryToggle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggles))
	require.Len(t, toggles, 1)
	assert.Equal(t, configurator.AccessoryToggle{ID: "wheel_fl", Label: "Wheel Fl", Visible: true}, toggles[0])

	rec = rig.do(t, "POST", "/api/accessories/wheel_fl/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var toggle configurator.AccessoryToggle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggle))
	assert.False(t, toggle.Visible)

	rec = rig.do(t, "PUT", "/api/accessories/spoiler", `{"visible":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	visible, known := rig.engine.Store.Accessory("spoiler")
	assert.True(t, known)
	assert.True(t, visible)

	assert.Equal(t, http.StatusBadRequest, rig.do(t, "PUT", "/api/accessories/spoiler", `{}`).Code)

	// The next frame hides the wheel.
	rig.app.Step()
	scene := rig.engine.Viewport.Current().Scene
	assert.False(t, scenegraph.Find(scene.Root, "Wheel_FL").Base().Visible)
}

func TestStateAndWorkingCopy(t *testing.T) {
	rig := newRig(t, false)

	rec := rig.do(t, "GET", "/api/working-copy.glb", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rig.ready(t)

	rec = rig.do(t, "GET", "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state struct {
		State   string `json:"state"`
		SceneID string `json:"sceneId"`
		Load    struct {
			State string `json:"state"`
			Path  string `json:"path"`
		} `json:"load"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "ready", state.State)
	assert.NotEmpty(t, state.SceneID)
	assert.Equal(t, "ready", state.Load.State)
	assert.Equal(t, "car.glb", state.Load.Path)

	rec = rig.do(t, "GET", "/api/working-copy.glb", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "model/gltf-binary", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "configured.glb")
	root, err := scenegraph.DecodeGLTF(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.NotNil(t, scenegraph.Find(root, "Body"))

	rec = rig.do(t, "GET", "/debug/scene", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "state: ready")
	assert.Contains(t, rec.Body.String(), "Body")
}

func TestLoadAndRetry(t *testing.T) {
	rig := newRig(t, false)
	rig.ready(t)
	gen := rig.engine.Loader.Generation()

	rec := rig.do(t, "POST", "/api/load", `{"path":"car.glb"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var out generationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, gen+1, out.Generation)

	assert.Equal(t, http.StatusBadRequest, rig.do(t, "POST", "/api/load", `{}`).Code)

	rec = rig.do(t, "POST", "/api/retry", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, gen+2, out.Generation)

	rig.ready(t)
}

func TestModelsDirectory(t *testing.T) {
	rig := newRig(t, false)

	rec := rig.do(t, "GET", "/models/car.glb", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, rig.do(t, "GET", "/models/nope.glb", "").Code)
}

func TestPresetsDisabled(t *testing.T) {
	rig := newRig(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, rig.do(t, "GET", "/api/presets", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, rig.do(t, "POST", "/api/presets", `{"name":"x"}`).Code)
}

func TestPresetEndpoints(t *testing.T) {
	rig := newRig(t, true)
	rig.engine.Store.SetColor("#112233")

	// A bare name captures the current configuration.
	rec := rig.do(t, "POST", "/api/presets", `{"name":"mine"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved configurator.Preset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.NotNil(t, saved.Color)
	assert.Equal(t, "#112233", *saved.Color)

	rec = rig.do(t, "POST", "/api/presets", `{"name":"shiny","metalness":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusBadRequest, rig.do(t, "POST", "/api/presets", `{"color":"red"}`).Code)

	rec = rig.do(t, "GET", "/api/presets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []configurator.Preset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "mine", list[0].Name)
	assert.Equal(t, "shiny", list[1].Name)

	rec = rig.do(t, "GET", "/api/presets/shiny", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, rig.do(t, "GET", "/api/presets/nope", "").Code)

	rig.engine.Store.SetColor("#000000")
	got := rig.config(t, "POST", "/api/presets/mine/apply", "")
	assert.Equal(t, "#112233", got.Config.Color)
	assert.Equal(t, http.StatusNotFound, rig.do(t, "POST", "/api/presets/nope/apply", "").Code)

	assert.Equal(t, http.StatusNoContent, rig.do(t, "DELETE", "/api/presets/mine", "").Code)
	assert.Equal(t, http.StatusNotFound, rig.do(t, "DELETE", "/api/presets/mine", "").Code)
}
