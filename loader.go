package configurator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type LoadState int

const (
	LoadLoading LoadState = iota
	LoadReady
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadReady:
		return "ready"
	case LoadFailed:
		return "failed"
	}
	return fmt.Sprintf("load_state(%d)", int(s))
}

func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LoadState) UnmarshalText(text []byte) error {
	for _, st := range []LoadState{LoadLoading, LoadReady, LoadFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return errors.Errorf("unknown load state %q", string(text))
}

// RetryPolicy bounds automatic retries of a fetch. Only transport failures
// are retried; a missing asset or an unreadable payload fails at once.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// LoadStatus is a point-in-time copy of the coordinator's state.
type LoadStatus struct {
	State      LoadState   `json:"state"`
	Path       string      `json:"path"`
	Generation uint64      `json:"generation"`
	Attempt    int         `json:"attempt"`
	AssetID    string      `json:"assetId,omitempty"`
	NodeCount  int         `json:"nodeCount,omitempty"`
	Err        *AssetError `json:"error,omitempty"`
}

// LoadEvent is one state transition, queued for the frame loop.
type LoadEvent struct {
	Generation uint64      `json:"generation"`
	Path       string      `json:"path"`
	State      LoadState   `json:"state"`
	Err        *AssetError `json:"error,omitempty"`
}

// AssetLoadCoordinator loads one model at a time off the caller's goroutine.
// Every request gets a generation number; a completion whose generation is
// no longer current is dropped, so a superseded fetch can never overwrite a
// newer request.
type AssetLoadCoordinator struct {
	source AssetSource
	parser SceneParser
	policy RetryPolicy
	logger Logger

	mu       sync.Mutex
	gen      uint64
	path     string
	state    LoadState
	asset    *LoadedAsset
	err      *AssetError
	attempt  int
	inFlight bool
	cancel   context.CancelFunc
	cache    map[string]*LoadedAsset
	disabled *AssetError
	events   []LoadEvent
	wg       sync.WaitGroup
}

func NewAssetLoadCoordinator(source AssetSource, parser SceneParser, policy RetryPolicy, logger Logger) *AssetLoadCoordinator {
	if parser == nil {
		parser = GLTFParser{}
	}
	return &AssetLoadCoordinator{
		source: source,
		parser: parser,
		policy: policy,
		logger: orNop(logger),
		cache:  make(map[string]*LoadedAsset),
	}
}

// Load requests path and returns the generation of the request. A request
// for the path already being fetched joins it. A cached path completes
// without I/O.
func (c *AssetLoadCoordinator) Load(path string) uint64 {
	return c.load(path, false)
}

// Retry fetches the current path again, bypassing the cache.
func (c *AssetLoadCoordinator) Retry() uint64 {
	c.mu.Lock()
	path := c.path
	gen := c.gen
	c.mu.Unlock()
	if path == "" {
		return gen
	}
	return c.load(path, true)
}

func (c *AssetLoadCoordinator) load(path string, fresh bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !fresh && c.inFlight && c.path == path {
		c.logger.Debugf("Load of %s already in flight (gen %d)", path, c.gen)
		return c.gen
	}

	c.stopLocked()
	c.gen++
	gen := c.gen
	c.path = path
	c.asset = nil
	c.err = nil
	c.attempt = 0

	if c.disabled != nil {
		c.transitionLocked(LoadFailed, c.disabled)
		return gen
	}
	c.transitionLocked(LoadLoading, nil)

	if fresh {
		delete(c.cache, path)
	} else if cached, ok := c.cache[path]; ok {
		c.logger.Debugf("Asset %s served from cache", path)
		c.asset = cached
		c.transitionLocked(LoadReady, nil)
		return gen
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.inFlight = true
	c.wg.Add(1)
	go c.run(ctx, gen, path)

	c.logger.Infof("Loading asset %s (gen %d)", path, gen)
	return gen
}

// stopLocked cancels the in-flight fetch. Its completion will see a stale
// generation and be dropped.
func (c *AssetLoadCoordinator) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = false
}

func (c *AssetLoadCoordinator) transitionLocked(state LoadState, err *AssetError) {
	c.state = state
	c.err = err
	c.events = append(c.events, LoadEvent{
		Generation: c.gen,
		Path:       c.path,
		State:      state,
		Err:        err,
	})
}

func (c *AssetLoadCoordinator) run(ctx context.Context, gen uint64, path string) {
	defer c.wg.Done()

	asset, err := c.fetch(ctx, gen, path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debugf("Discarding result for %s (gen %d, current %d)", path, gen, c.gen)
		return
	}
	if ctx.Err() != nil {
		return
	}
	c.inFlight = false
	c.cancel = nil

	if err != nil {
		ae := AsAssetError(err, KindAssetFetch, path)
		c.logger.Warnf("Asset %s failed: %v", path, ae)
		c.transitionLocked(LoadFailed, ae)
		return
	}
	c.cache[path] = asset
	c.asset = asset
	c.logger.Infof("Asset %s ready: %d nodes", path, asset.NodeCount())
	c.transitionLocked(LoadReady, nil)
}

func (c *AssetLoadCoordinator) fetch(ctx context.Context, gen uint64, path string) (*LoadedAsset, error) {
	maxAttempts := c.policy.attempts()
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		if gen == c.gen {
			c.attempt = attempt
		}
		c.mu.Unlock()

		asset, err := c.fetchOnce(ctx, path)
		if err == nil {
			return asset, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		ae := AsAssetError(err, KindAssetFetch, path)
		if !ae.Kind.Retryable() || attempt >= maxAttempts {
			return nil, ae
		}
		c.logger.Warnf("Attempt %d/%d for %s failed, retrying in %v: %v", attempt, maxAttempts, path, c.policy.Delay, err)

		timer := time.NewTimer(c.policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *AssetLoadCoordinator) fetchOnce(ctx context.Context, path string) (asset *LoadedAsset, err error) {
	if err := c.source.Head(ctx, path); err != nil {
		return nil, AsAssetError(err, KindAssetFetch, path)
	}

	rc, err := c.source.Open(ctx, path)
	if err != nil {
		return nil, AsAssetError(err, KindAssetFetch, path)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, newAssetError(KindAssetFetch, path, errors.WithStack(err), "reading body")
	}

	defer func() {
		if r := recover(); r != nil {
			asset = nil
			err = newAssetError(KindAssetParse, path, nil, "loader panicked: %v", r)
		}
	}()
	root, err := c.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newAssetError(KindAssetParse, path, err, "%d bytes", len(data))
	}
	if root == nil {
		return nil, newAssetError(KindAssetParse, path, nil, "loader returned no scene")
	}
	return newLoadedAsset(path, root), nil
}

// Disable marks the environment as unable to display models. The current
// request and every later one fail with KindUnsupportedEnvironment.
func (c *AssetLoadCoordinator) Disable(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ae := AsAssetError(cause, KindUnsupportedEnvironment, "")
	if ae.Kind != KindUnsupportedEnvironment {
		ae = &AssetError{Kind: KindUnsupportedEnvironment, Err: cause}
	}
	c.disabled = ae
	c.stopLocked()
	c.gen++
	c.asset = nil
	c.transitionLocked(LoadFailed, ae)
	c.logger.Errorf("Model display disabled: %v", ae)
}

// Fail reports a failure that happened after the load, such as a tree the
// customizer cannot handle. It is ignored unless gen is the current, ready
// request. The cached copy is evicted so the next Load fetches again.
func (c *AssetLoadCoordinator) Fail(gen uint64, cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != LoadReady {
		return false
	}
	ae := AsAssetError(cause, KindSceneAttach, c.path)
	delete(c.cache, c.path)
	c.asset = nil
	c.transitionLocked(LoadFailed, ae)
	c.logger.Warnf("Asset %s failed after load: %v", c.path, ae)
	return true
}

func (c *AssetLoadCoordinator) State() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *AssetLoadCoordinator) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Asset is the loaded model while the state is Ready, otherwise nil.
func (c *AssetLoadCoordinator) Asset() *LoadedAsset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asset
}

func (c *AssetLoadCoordinator) Err() *AssetError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *AssetLoadCoordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *AssetLoadCoordinator) Status() LoadStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := LoadStatus{
		State:      c.state,
		Path:       c.path,
		Generation: c.gen,
		Attempt:    c.attempt,
		Err:        c.err,
	}
	if c.asset != nil {
		st.AssetID = c.asset.ID()
		st.NodeCount = c.asset.NodeCount()
	}
	return st
}

// Drain hands over the transitions queued since the previous call.
func (c *AssetLoadCoordinator) Drain() []LoadEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

// Wait blocks until no fetch goroutine is running.
func (c *AssetLoadCoordinator) Wait() {
	c.wg.Wait()
}

// Close cancels any fetch in flight and waits for it to return.
func (c *AssetLoadCoordinator) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	c.wg.Wait()
}
