package configurator

// Engine gives code outside the frame loop (the HTTP layer, tests) the
// configurator's components. Only the store is meant to be written from
// there.
type Engine struct {
	Store      *ConfigurationStore
	Discovery  *AccessoryDiscovery
	Loader     *AssetLoadCoordinator
	Customizer *SceneGraphCustomizer
	Fallback   *FallbackRenderer
	Viewport   *Viewport
	Logger     Logger
}

// ConfiguratorModule wires the store, loader, customizer and viewport into
// an app running the View states, then starts loading AssetPath.
type ConfiguratorModule struct {
	AssetPath string
	// Defaults seeds the store; nil means DefaultConfiguration.
	Defaults *Configuration
	Source   AssetSource
	Parser   SceneParser
	// Retry applies to the initial fetch; the zero value means DefaultRetryPolicy.
	Retry   RetryPolicy
	Probe   EnvironmentProbe
	Surface Surface
}

func (m ConfiguratorModule) Install(app *App, cmd *Commands) {
	logger := app.Logger()

	defaults := DefaultConfiguration()
	if m.Defaults != nil {
		defaults = *m.Defaults
	}
	retry := m.Retry
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy()
	}
	source := m.Source
	if source == nil {
		source = DirSource{Root: "."}
	}
	surface := m.Surface
	if surface == nil {
		surface = NewHeadlessSurface(logger)
	}

	store := NewConfigurationStore(defaults)
	discovery := NewAccessoryDiscovery(store, logger)
	loader := NewAssetLoadCoordinator(source, m.Parser, retry, logger)
	customizer := NewSceneGraphCustomizer(discovery, logger)
	fallback := NewFallbackRenderer(logger)
	vp := NewViewport(store, loader, customizer, fallback, surface, logger)

	cmd.AddResources(store, discovery, loader, customizer, fallback, vp, &Engine{
		Store:      store,
		Discovery:  discovery,
		Loader:     loader,
		Customizer: customizer,
		Fallback:   fallback,
		Viewport:   vp,
		Logger:     logger,
	})
	installViewSystems(app)

	if ae := probeEnvironment(m.Probe, logger); ae != nil {
		loader.Disable(ae)
		return
	}
	if m.AssetPath == "" {
		vp.startupFailure = newAssetError(KindAssetNotFound, "", nil, "no model configured")
		return
	}
	loader.Load(m.AssetPath)
}

// EngineOf returns the Engine installed by ConfiguratorModule, or nil.
func EngineOf(app *App) *Engine {
	e, _ := Resource[Engine](app)
	return e
}

// NewConfiguratorApp builds the standard app from settings.
func NewConfiguratorApp(settings Settings, surface Surface, probe EnvironmentProbe) *App {
	defaults := settings.Defaults.Clone()
	return NewAppBuilder().
		UseStates(ViewLoading, ViewShutdown).
		UseModule(
			LoggingModule{Prefix: "configurator", Debug: settings.Debug},
			TimeModule{TargetFPS: settings.TargetFPS},
			ConfiguratorModule{
				AssetPath: settings.AssetPath,
				Defaults:  &defaults,
				Source:    settings.Source(),
				Retry:     settings.RetryPolicy(),
				Probe:     probe,
				Surface:   surface,
			},
			TurntableModule{Speed: settings.TurntableSpeed},
		).
		Build()
}
