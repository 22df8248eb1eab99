package web

import (
	"net/http"
	"os"

	"github.com/gekko3d/configurator"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server is the HTTP face of a running configurator: the control panel API,
// the websocket event feed and optionally the model directory.
type Server struct {
	engine    *configurator.Engine
	catalog   *configurator.PresetCatalog
	hub       *Hub
	modelsDir string
	logger    configurator.Logger

	router  *mux.Router
	cancels []func()
}

// NewServer hooks hub up to the engine's store and discovery. catalog may be
// nil, which disables the preset endpoints; an empty modelsDir disables
// /models/.
func NewServer(engine *configurator.Engine, catalog *configurator.PresetCatalog, hub *Hub, modelsDir string) *Server {
	logger := engine.Logger
	if logger == nil {
		logger = configurator.NewNopLogger()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		engine:    engine,
		catalog:   catalog,
		hub:       hub,
		modelsDir: modelsDir,
		logger:    logger,
	}
	s.cancels = append(s.cancels,
		engine.Store.Subscribe(hub.ConfigChanged),
		engine.Discovery.OnDiscovered(hub.AccessoryFound),
	)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.handleConfig).Methods("GET")
	api.HandleFunc("/config", s.handleConfigReplace).Methods("PUT")
	api.HandleFunc("/config/color", s.handleColor).Methods("PUT")
	api.HandleFunc("/config/metalness", s.handleMetalness).Methods("PUT")
	api.HandleFunc("/config/roughness", s.handleRoughness).Methods("PUT")
	api.HandleFunc("/config/scale", s.handleScale).Methods("PUT")
	api.HandleFunc("/config/position", s.handlePosition).Methods("PUT")
	api.HandleFunc("/config/scene", s.handleScene).Methods("PUT")

	api.HandleFunc("/accessories", s.handleAccessories).Methods("GET")
	api.HandleFunc("/accessories/{id}", s.handleAccessorySet).Methods("PUT")
	api.HandleFunc("/accessories/{id}/toggle", s.handleAccessoryToggle).Methods("POST")

	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/load", s.handleLoad).Methods("POST")
	api.HandleFunc("/retry", s.handleRetry).Methods("POST")
	api.HandleFunc("/session", s.handleSession).Methods("GET")
	api.HandleFunc("/scale-presets", s.handleScalePresets).Methods("GET")
	api.HandleFunc("/working-copy.glb", s.handleWorkingCopy).Methods("GET")

	api.HandleFunc("/presets", s.handlePresetList).Methods("GET")
	api.HandleFunc("/presets", s.handlePresetSave).Methods("POST")
	api.HandleFunc("/presets/{name}", s.handlePresetGet).Methods("GET")
	api.HandleFunc("/presets/{name}", s.handlePresetDelete).Methods("DELETE")
	api.HandleFunc("/presets/{name}/apply", s.handlePresetApply).Methods("POST")

	r.Handle("/ws", s.hub)
	r.HandleFunc("/debug/scene", s.handleDebugScene).Methods("GET")

	if s.modelsDir != "" {
		r.PathPrefix("/models/").Handler(
			http.StripPrefix("/models/", http.FileServer(http.Dir(s.modelsDir)))).Methods("GET", "HEAD")
	}
	return r
}

// Handler is the router wrapped with panic recovery and request logging.
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(os.Stdout, handlers.RecoveryHandler()(s.router))
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Infof("[web] Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Close detaches the server from the engine and drops websocket clients.
func (s *Server) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	s.hub.Close()
}
