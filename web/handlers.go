package web

import (
	"bytes"
	"math"
	"net/http"

	"github.com/gekko3d/configurator"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type configResponse struct {
	Generation uint64                     `json:"generation"`
	Config     configurator.Configuration `json:"config"`
}

type generationResponse struct {
	Generation uint64 `json:"generation"`
}

func (s *Server) writeConfig(w http.ResponseWriter) {
	cfg, gen := s.engine.Store.Read()
	WriteJson(w, configResponse{Generation: gen, Config: cfg})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeConfig(w)
}

// handleConfigReplace applies the fields present in the body as one change.
func (s *Server) handleConfigReplace(w http.ResponseWriter, r *http.Request) {
	var p configurator.Preset
	if err := readJson(r, &p); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if p.Scale != nil && !finite(*p.Scale) {
		WriteError(w, http.StatusBadRequest, errors.New("scale must be finite"))
		return
	}
	s.engine.Store.ApplyPreset(p)
	s.writeConfig(w)
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := readJson(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	// Stored verbatim; an unparsable color keeps the authored one on screen.
	s.engine.Store.SetColor(req.Value)
	s.writeConfig(w)
}

func (s *Server) handleMetalness(w http.ResponseWriter, r *http.Request) {
	v, ok := readUnit(w, r)
	if !ok {
		return
	}
	s.engine.Store.SetMetalness(v)
	s.writeConfig(w)
}

func (s *Server) handleRoughness(w http.ResponseWriter, r *http.Request) {
	v, ok := readUnit(w, r)
	if !ok {
		return
	}
	s.engine.Store.SetRoughness(v)
	s.writeConfig(w)
}

func readUnit(w http.ResponseWriter, r *http.Request) (float32, bool) {
	var req struct {
		Value *float32 `json:"value"`
	}
	if err := readJson(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return 0, false
	}
	if req.Value == nil {
		WriteError(w, http.StatusBadRequest, errors.New("value is required"))
		return 0, false
	}
	return *req.Value, true
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *configurator.Scale `json:"value"`
	}
	if err := readJson(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Value == nil {
		WriteError(w, http.StatusBadRequest, errors.New("value is required"))
		return
	}
	if !finite(*req.Value) || !s.engine.Store.SetScale(*req.Value) {
		WriteError(w, http.StatusBadRequest, errors.Errorf("invalid scale %v", *req.Value))
		return
	}
	s.writeConfig(w)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *mgl32.Vec3 `json:"value"`
	}
	if err := readJson(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Value == nil {
		WriteError(w, http.StatusBadRequest, errors.New("value is required"))
		return
	}
	if !s.engine.Store.SetPosition(*req.Value) {
		WriteError(w, http.StatusBadRequest, errors.Errorf("invalid position %v", *req.Value))
		return
	}
	s.writeConfig(w)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	scene := s.engine.Store.Scene()
	if err := readJson(r, &scene); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.Store.ApplyPreset(configurator.Preset{Scene: &scene})
	s.writeConfig(w)
}

func (s *Server) handleAccessories(w http.ResponseWriter, r *http.Request) {
	WriteJson(w, s.engine.Discovery.Toggles())
}

func (s *Server) handleAccessoryToggle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.engine.Store.ToggleAccessory(id)
	visible, _ := s.engine.Store.Accessory(id)
	WriteJson(w, configurator.AccessoryToggle{ID: id, Label: configurator.AccessoryLabel(id), Visible: visible})
}

func (s *Server) handleAccessorySet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := readJson(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Visible == nil {
		WriteError(w, http.StatusBadRequest, errors.New("visible is required"))
		return
	}
	s.engine.Store.SetAccessory(id, *req.Visible)
	WriteJson(w, configurator.AccessoryToggle{ID: id, Label: configurator.AccessoryLabel(id), Visible: *req.Visible})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	WriteJson(w, s.engine.Viewport.Current())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := readJson(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		WriteError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	gen := s.engine.Loader.Load(req.Path)
	WriteJsonStatus(w, http.StatusAccepted, generationResponse{Generation: gen})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	gen := s.engine.Loader.Retry()
	WriteJsonStatus(w, http.StatusAccepted, generationResponse{Generation: gen})
}

// handleSession seeds the scale from ?scale=, the way an embedding page
// passes it in its URL.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err := configurator.ParseScaleParam(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err)
			return
		}
		if !finite(scale) {
			WriteError(w, http.StatusBadRequest, errors.Errorf("scale %q must be finite", raw))
			return
		}
		s.engine.Store.SetScale(scale)
	}
	s.writeConfig(w)
}

func (s *Server) handleScalePresets(w http.ResponseWriter, r *http.Request) {
	WriteJson(w, configurator.ScalePresets)
}

func (s *Server) handleWorkingCopy(w http.ResponseWriter, r *http.Request) {
	frame := s.engine.Viewport.Current()
	if frame.Scene == nil {
		WriteError(w, http.StatusNotFound, errors.New("no scene on screen"))
		return
	}
	var buf bytes.Buffer
	if err := frame.Scene.WriteGLB(&buf); err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition", "attachment; filename=\"configured.glb\"")
	WriteResult(w, buf.Bytes())
}

func (s *Server) handleDebugScene(w http.ResponseWriter, r *http.Request) {
	frame := s.engine.Viewport.Current()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if frame.Scene == nil {
		WriteResult(w, []byte("state: "+frame.State+"\nno scene\n"))
		return
	}
	WriteResult(w, []byte("state: "+frame.State+"\n"+frame.Scene.Dump()))
}

func (s *Server) presets(w http.ResponseWriter) bool {
	if s.catalog == nil {
		WriteError(w, http.StatusServiceUnavailable, errors.New("preset catalog is not configured"))
		return false
	}
	return true
}

func presetStatus(err error) int {
	if errors.Is(err, configurator.ErrPresetNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handlePresetList(w http.ResponseWriter, r *http.Request) {
	if !s.presets(w) {
		return
	}
	list, err := s.catalog.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	WriteJson(w, list)
}

// handlePresetSave stores the body as a preset. A body carrying only a name
// captures the current configuration.
func (s *Server) handlePresetSave(w http.ResponseWriter, r *http.Request) {
	if !s.presets(w) {
		return
	}
	var p configurator.Preset
	if err := readJson(r, &p); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	if p.Name == "" {
		WriteError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if p.Color == nil && p.Metalness == nil && p.Roughness == nil && p.Accessories == nil &&
		p.Scale == nil && p.Position == nil && p.Scene == nil {
		p = configurator.PresetFromConfiguration(p.Name, s.engine.Store.Snapshot())
	}
	if p.Scale != nil && !finite(*p.Scale) {
		WriteError(w, http.StatusBadRequest, errors.New("scale must be finite"))
		return
	}
	if err := s.catalog.Save(p); err != nil {
		WriteError(w, http.StatusInternalServerError, err)
		return
	}
	WriteJsonStatus(w, http.StatusCreated, p)
}

func (s *Server) handlePresetGet(w http.ResponseWriter, r *http.Request) {
	if !s.presets(w) {
		return
	}
	p, err := s.catalog.Get(mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, presetStatus(err), err)
		return
	}
	WriteJson(w, p)
}

func (s *Server) handlePresetDelete(w http.ResponseWriter, r *http.Request) {
	if !s.presets(w) {
		return
	}
	if err := s.catalog.Delete(mux.Vars(r)["name"]); err != nil {
		WriteError(w, presetStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePresetApply(w http.ResponseWriter, r *http.Request) {
	if !s.presets(w) {
		return
	}
	p, err := s.catalog.Get(mux.Vars(r)["name"])
	if err != nil {
		WriteError(w, presetStatus(err), err)
		return
	}
	s.engine.Store.ApplyPreset(p)
	s.writeConfig(w)
}

func finite(s configurator.Scale) bool {
	for _, v := range s {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}
