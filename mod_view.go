package configurator

import (
	"sync"
	"sync/atomic"
)

const (
	ViewLoading State = iota
	ViewReady
	ViewFallback
	ViewShutdown
)

func ViewStateName(s State) string {
	switch s {
	case ViewLoading:
		return "loading"
	case ViewReady:
		return "ready"
	case ViewFallback:
		return "fallback"
	case ViewShutdown:
		return "shutdown"
	}
	return "unknown"
}

const loadingMessage = "Loading 3D model..."

// Frame is everything the renderer needs for one presentation.
type Frame struct {
	Number   uint64        `json:"number"`
	State    string        `json:"state"`
	Load     LoadStatus    `json:"load"`
	Scene    *WorkingCopy  `json:"-"`
	SceneID  string        `json:"sceneId,omitempty"`
	Loading  bool          `json:"loading"`
	Failure  *AssetError   `json:"failure,omitempty"`
	Message  string        `json:"message,omitempty"`
	Hint     string        `json:"hint,omitempty"`
	Settings SceneSettings `json:"settings"`
	Spin     float32       `json:"spin"`
}

// Surface is the external renderer. Present is called once per frame from
// the frame loop.
type Surface interface {
	Present(frame Frame)
}

// Viewport decides what is on screen: the customized model, the fallback
// cube, or (while loading) whatever was shown before.
type Viewport struct {
	store      *ConfigurationStore
	loader     *AssetLoadCoordinator
	customizer *SceneGraphCustomizer
	fallback   *FallbackRenderer
	surface    Surface
	logger     Logger

	unsubscribe func()
	dirtyGen    atomic.Uint64
	shutdown    atomic.Bool

	// frame loop only
	appliedGen     uint64
	forced         bool
	loadGen        uint64
	scene          *WorkingCopy
	failure        *AssetError
	startupFailure *AssetError
	spin           float32
	frameNo        uint64

	mu      sync.RWMutex
	current Frame
}

func NewViewport(store *ConfigurationStore, loader *AssetLoadCoordinator, customizer *SceneGraphCustomizer,
	fallback *FallbackRenderer, surface Surface, logger Logger) *Viewport {
	vp := &Viewport{
		store:      store,
		loader:     loader,
		customizer: customizer,
		fallback:   fallback,
		surface:    surface,
		logger:     orNop(logger),
		forced:     true,
	}
	vp.dirtyGen.Store(store.Generation())
	vp.unsubscribe = store.Subscribe(func(ch Change) {
		vp.dirtyGen.Store(ch.Generation)
	})
	return vp
}

// Current is the last presented frame. Safe from any goroutine.
func (vp *Viewport) Current() Frame {
	vp.mu.RLock()
	defer vp.mu.RUnlock()
	return vp.current
}

// Shutdown asks the frame loop to stop after the current frame.
func (vp *Viewport) Shutdown() {
	vp.shutdown.Store(true)
}

func (vp *Viewport) invalidate() {
	vp.forced = true
}

func (vp *Viewport) needsPass() bool {
	return vp.forced || vp.dirtyGen.Load() != vp.appliedGen
}

func startupSystem(vp *Viewport, cmd *Commands) {
	if vp.startupFailure == nil {
		return
	}
	vp.failure = vp.startupFailure
	vp.startupFailure = nil
	cmd.ChangeState(ViewFallback)
}

func shutdownSystem(vp *Viewport, cmd *Commands) {
	if vp.shutdown.Load() && cmd.PendingState() != ViewShutdown {
		cmd.ChangeState(ViewShutdown)
	}
}

// assetEventSystem follows the coordinator. Events are applied in order, so
// the last one of a frame decides the next view state.
func assetEventSystem(vp *Viewport, cmd *Commands) {
	if cmd.PendingState() == ViewShutdown {
		return
	}
	for _, ev := range vp.loader.Drain() {
		switch ev.State {
		case LoadLoading:
			vp.logger.Debugf("View: loading %s", ev.Path)
			cmd.ChangeState(ViewLoading)
		case LoadReady:
			vp.loadGen = ev.Generation
			vp.failure = nil
			vp.invalidate()
			cmd.ChangeState(ViewReady)
		case LoadFailed:
			vp.failure = ev.Err
			vp.invalidate()
			cmd.ChangeState(ViewFallback)
		}
	}
}

func enterReadySystem(vp *Viewport) {
	vp.invalidate()
}

func enterFallbackSystem(vp *Viewport) {
	if vp.failure == nil {
		vp.failure = vp.loader.Err()
	}
	vp.invalidate()
}

// customizeSystem rebuilds the working copy when the configuration moved
// since the last pass. Any number of writes between two frames cost one
// pass over the newest snapshot.
func customizeSystem(vp *Viewport, cmd *Commands) {
	if !vp.needsPass() {
		return
	}
	asset := vp.loader.Asset()
	if asset == nil {
		// A newer request replaced it; its events arrive next frame.
		return
	}

	cfg, gen := vp.store.Read()
	wc, err := vp.customizer.Customize(asset, cfg)
	if err != nil {
		ae := AsAssetError(err, KindSceneAttach, asset.Path())
		vp.logger.Errorf("Customizing %s failed: %v", asset.Path(), ae)
		vp.loader.Fail(vp.loadGen, ae)
		vp.failure = ae
		vp.scene = vp.fallback.Render(cfg)
		vp.invalidate()
		cmd.ChangeState(ViewFallback)
		return
	}

	vp.scene = wc
	vp.appliedGen = gen
	vp.forced = false
}

func fallbackSystem(vp *Viewport) {
	if !vp.needsPass() {
		return
	}
	cfg, gen := vp.store.Read()
	vp.scene = vp.fallback.Render(cfg)
	vp.appliedGen = gen
	vp.forced = false
}

func presentSystem(vp *Viewport, cmd *Commands) {
	vp.frameNo++
	state := cmd.State()
	// A failed customize pass already put the fallback on screen this frame.
	if cmd.PendingState() == ViewFallback && vp.scene != nil && vp.scene.Fallback {
		state = ViewFallback
	}

	frame := Frame{
		Number:   vp.frameNo,
		State:    ViewStateName(state),
		Load:     vp.loader.Status(),
		Scene:    vp.scene,
		Loading:  state == ViewLoading,
		Settings: vp.store.Scene(),
		Spin:     vp.spin,
	}
	if vp.scene != nil {
		frame.SceneID = vp.scene.ID
	}
	switch state {
	case ViewLoading:
		frame.Message = loadingMessage
	case ViewFallback:
		if vp.failure != nil {
			frame.Failure = vp.failure
			frame.Message = vp.failure.Message()
			frame.Hint = vp.failure.Hint()
		}
	}

	vp.mu.Lock()
	vp.current = frame
	vp.mu.Unlock()

	if vp.surface != nil {
		vp.surface.Present(frame)
	}
}

func exitViewSystem(vp *Viewport) {
	if vp.unsubscribe != nil {
		vp.unsubscribe()
	}
	vp.loader.Close()
	vp.logger.Infof("Viewport stopped after %d frames", vp.frameNo)
}

// installViewSystems schedules the viewport's systems. The app must run
// with the View states.
func installViewSystems(app *App) {
	app.UseSystem(System(shutdownSystem).InStage(Prelude).RunAlways())
	app.UseSystem(System(startupSystem).InStage(PreUpdate).InState(OnEnter(ViewLoading)))
	app.UseSystem(System(assetEventSystem).InStage(PreUpdate).RunAlways())

	app.UseSystem(System(enterReadySystem).InStage(PreRender).InState(OnEnter(ViewReady)))
	app.UseSystem(System(enterFallbackSystem).InStage(PreRender).InState(OnEnter(ViewFallback)))
	app.UseSystem(System(customizeSystem).InStage(PreRender).InState(OnExecute(ViewReady)))
	app.UseSystem(System(fallbackSystem).InStage(PreRender).InState(OnExecute(ViewFallback)))

	app.UseSystem(System(presentSystem).InStage(Render).RunAlways())
	app.UseSystem(System(exitViewSystem).InStage(Finale).InState(OnEnter(ViewShutdown)))
}
