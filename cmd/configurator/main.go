package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gekko3d/configurator"
	"github.com/gekko3d/configurator/web"
)

func main() {
	var configPath, listen, asset, baseURL, dir, scale, presetDB string
	var debug bool
	var fps int

	flag.StringVar(&configPath, "config", "configurator.yaml", "Path to settings file")
	flag.StringVar(&listen, "i", "", "Address of server")
	flag.StringVar(&asset, "asset", "", "Model to load")
	flag.StringVar(&baseURL, "url", "", "Fetch models over HTTP from this base URL")
	flag.StringVar(&dir, "dir", "", "Read models from this folder")
	flag.StringVar(&scale, "scale", "", "Initial scale (number)")
	flag.StringVar(&presetDB, "presets", "", "Preset database file")
	flag.IntVar(&fps, "fps", 0, "Frame rate cap, 0 keeps the settings value")
	flag.BoolVar(&debug, "debug", false, "Verbose logging")
	flag.Parse()

	settings, err := configurator.LoadSettings(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if listen != "" {
		settings.Listen = listen
	}
	if asset != "" {
		settings.AssetPath = asset
	}
	if baseURL != "" {
		settings.AssetBaseURL = baseURL
	}
	if dir != "" {
		settings.AssetDir = dir
	}
	if presetDB != "" {
		settings.PresetDB = presetDB
	}
	if fps > 0 {
		settings.TargetFPS = fps
	}
	if debug {
		settings.Debug = true
	}
	if scale != "" {
		s, err := configurator.ParseScaleParam(scale)
		if err != nil {
			log.Fatal(err)
		}
		settings.Defaults.Scale = s
	}
	if err := settings.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := configurator.NewDefaultLogger("web", settings.Debug)
	hub := web.NewHub(logger)
	surface := &web.BroadcastSurface{Hub: hub, Next: configurator.NewHeadlessSurface(logger)}

	app := configurator.NewConfiguratorApp(settings, surface, configurator.DefaultProbe())
	engine := configurator.EngineOf(app)

	var catalog *configurator.PresetCatalog
	if settings.PresetDB != "" {
		catalog, err = configurator.OpenPresetCatalog(settings.PresetDB, engine.Logger)
		if err != nil {
			log.Printf("Presets disabled: %v", err)
			catalog = nil
		} else {
			defer catalog.Close()
		}
	}

	modelsDir := ""
	if settings.AssetBaseURL == "" {
		modelsDir = settings.AssetDir
	}
	server := web.NewServer(engine, catalog, hub, modelsDir)
	defer server.Close()

	go func() {
		if err := server.ListenAndServe(settings.Listen); err != nil {
			log.Printf("[web] Server stopped: %v", err)
			engine.Viewport.Shutdown()
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		engine.Viewport.Shutdown()
	}()

	app.Run()
}
