package configurator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/configurator/scenegraph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Delay: time.Millisecond}
}

func TestLoader_GoodModelBecomesReady(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(3), nil)

	gen := loader.Load("good.model")
	loader.Wait()

	assert.Equal(t, LoadReady, loader.State())
	require.NotNil(t, loader.Asset())
	assert.Equal(t, 5, loader.Asset().NodeCount())
	assert.Nil(t, loader.Err())

	st := loader.Status()
	assert.Equal(t, gen, st.Generation)
	assert.Equal(t, "good.model", st.Path)
	assert.Equal(t, 1, st.Attempt)
	assert.Equal(t, loader.Asset().ID(), st.AssetID)

	assert.Equal(t, []LoadState{LoadLoading, LoadReady}, loadStates(loader.Drain()))
	assert.Empty(t, loader.Drain())
}

func TestLoader_MissingModelFailsWithoutDownload(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(3), nil)

	loader.Load("missing.model")
	loader.Wait()

	assert.Equal(t, LoadFailed, loader.State())
	assert.True(t, IsKind(loader.Err(), KindAssetNotFound))
	assert.Equal(t, "missing.model", loader.Err().Path)
	assert.Equal(t, 1, ms.count("HEAD", "/missing.model"))
	assert.Equal(t, 0, ms.count("GET", "/missing.model"))
	assert.Nil(t, loader.Asset())
}

func TestLoader_RetriesTransportFailures(t *testing.T) {
	ms := newModelServer(t, 2)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(3), nil)

	loader.Load("flaky.model")
	loader.Wait()

	assert.Equal(t, LoadReady, loader.State())
	assert.Equal(t, 3, loader.Status().Attempt)
	assert.Equal(t, 3, ms.count("HEAD", "/flaky.model"))
	assert.Equal(t, 1, ms.count("GET", "/flaky.model"))
}

func TestLoader_GivesUpAfterMaxAttempts(t *testing.T) {
	ms := newModelServer(t, 100)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(2), nil)

	loader.Load("flaky.model")
	loader.Wait()

	assert.Equal(t, LoadFailed, loader.State())
	assert.True(t, IsKind(loader.Err(), KindAssetFetch))
	assert.Equal(t, 2, loader.Status().Attempt)
	assert.Equal(t, 2, ms.count("HEAD", "/flaky.model"))
}

func TestLoader_ParseErrorsAreNotRetried(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(3), nil)

	loader.Load("garbage.model")
	loader.Wait()

	assert.Equal(t, LoadFailed, loader.State())
	assert.True(t, IsKind(loader.Err(), KindAssetParse))
	assert.Equal(t, 1, ms.count("GET", "/garbage.model"))
}

func TestLoader_HeadNotAllowedFallsThroughToGet(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(1), nil)

	loader.Load("nohead.model")
	loader.Wait()

	assert.Equal(t, LoadReady, loader.State())
	assert.Equal(t, 1, ms.count("GET", "/nohead.model"))
}

func TestLoader_ParserPanicsAndNilScenes(t *testing.T) {
	ms := newModelServer(t, 0)

	panicky := parserFunc(func(io.Reader) (scenegraph.Node, error) { panic("boom") })
	loader := NewAssetLoadCoordinator(ms.source(), panicky, fastRetry(3), nil)
	loader.Load("good.model")
	loader.Wait()
	assert.True(t, IsKind(loader.Err(), KindAssetParse))
	assert.Contains(t, loader.Err().Error(), "boom")

	empty := parserFunc(func(io.Reader) (scenegraph.Node, error) { return nil, nil })
	loader = NewAssetLoadCoordinator(ms.source(), empty, fastRetry(3), nil)
	loader.Load("good.model")
	loader.Wait()
	assert.True(t, IsKind(loader.Err(), KindAssetParse))
}

func TestLoader_SupersededResultIsDropped(t *testing.T) {
	src := newGatedSource(t, "slow.model")
	loader := NewAssetLoadCoordinator(src, nil, fastRetry(1), nil)

	first := loader.Load("slow.model")
	assert.Equal(t, "slow.model", <-src.opened)

	second := loader.Load("fast.model")
	assert.Greater(t, second, first)

	// Wait for fast.model on its own before letting slow.model finish.
	assert.Equal(t, "fast.model", <-src.opened)
	require.Eventually(t, func() bool { return loader.State() == LoadReady }, time.Second, time.Millisecond)

	close(src.release)
	loader.Wait()

	assert.Equal(t, LoadReady, loader.State())
	assert.Equal(t, "fast.model", loader.Path())
	assert.Equal(t, second, loader.Generation())

	for _, ev := range loader.Drain() {
		if ev.Generation == first {
			assert.Equal(t, LoadLoading, ev.State, "stale request must not complete")
		}
	}
}

func TestLoader_SamePathInFlightIsJoined(t *testing.T) {
	src := newGatedSource(t, "slow.model")
	loader := NewAssetLoadCoordinator(src, nil, fastRetry(1), nil)

	first := loader.Load("slow.model")
	<-src.opened
	assert.Equal(t, first, loader.Load("slow.model"))

	close(src.release)
	loader.Wait()
	assert.Equal(t, LoadReady, loader.State())
	assert.Len(t, src.opened, 0)
}

func TestLoader_CacheAndRetry(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(1), nil)

	loader.Load("good.model")
	loader.Wait()
	firstAsset := loader.Asset()

	loader.Load("other.model")
	loader.Wait()

	// Cached: ready without waiting and without another request.
	loader.Load("good.model")
	assert.Equal(t, LoadReady, loader.State())
	assert.Same(t, firstAsset, loader.Asset())
	assert.Equal(t, 1, ms.count("GET", "/good.model"))

	loader.Retry()
	loader.Wait()
	assert.Equal(t, LoadReady, loader.State())
	assert.NotSame(t, firstAsset, loader.Asset())
	assert.Equal(t, 2, ms.count("GET", "/good.model"))
}

func TestLoader_RetryWithoutPathDoesNothing(t *testing.T) {
	loader := NewAssetLoadCoordinator(DirSource{Root: t.TempDir()}, nil, fastRetry(1), nil)
	assert.Equal(t, uint64(0), loader.Retry())
	assert.Empty(t, loader.Drain())
}

func TestLoader_Disable(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(1), nil)

	loader.Disable(errors.New("no adapter"))
	assert.Equal(t, LoadFailed, loader.State())
	assert.True(t, IsKind(loader.Err(), KindUnsupportedEnvironment))

	loader.Load("good.model")
	loader.Wait()
	assert.Equal(t, LoadFailed, loader.State())
	assert.True(t, IsKind(loader.Err(), KindUnsupportedEnvironment))
	assert.Equal(t, 0, ms.count("HEAD", "/good.model"))
}

func TestLoader_FailAfterLoad(t *testing.T) {
	ms := newModelServer(t, 0)
	loader := NewAssetLoadCoordinator(ms.source(), nil, fastRetry(1), nil)

	gen := loader.Load("good.model")
	loader.Wait()
	require.Equal(t, LoadReady, loader.State())

	assert.False(t, loader.Fail(gen-1, errors.New("old")))
	assert.True(t, loader.Fail(gen, errors.New("bad tree")))
	assert.Equal(t, LoadFailed, loader.State())
	assert.True(t, IsKind(loader.Err(), KindSceneAttach))
	assert.False(t, loader.Fail(gen, errors.New("again")))

	// Evicted from the cache.
	loader.Load("good.model")
	loader.Wait()
	assert.Equal(t, LoadReady, loader.State())
	assert.Equal(t, 2, ms.count("GET", "/good.model"))
}

func TestLoader_CloseStopsFetch(t *testing.T) {
	ms := newModelServer(t, 100)
	loader := NewAssetLoadCoordinator(ms.source(), nil, RetryPolicy{MaxAttempts: 5, Delay: time.Hour}, nil)

	loader.Load("flaky.model")
	require.Eventually(t, func() bool { return ms.count("HEAD", "/flaky.model") == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		loader.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt the retry delay")
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "car.glb"), carGLB(t), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	src := DirSource{Root: root}
	ctx := context.Background()

	loader := NewAssetLoadCoordinator(src, nil, fastRetry(1), nil)
	loader.Load("car.glb")
	loader.Wait()
	assert.Equal(t, LoadReady, loader.State())

	assert.True(t, IsKind(src.Head(ctx, "nope.glb"), KindAssetNotFound))
	assert.True(t, IsKind(src.Head(ctx, "sub"), KindAssetNotFound))
	// Cleaned paths stay inside Root.
	assert.NoError(t, src.Head(ctx, "../../car.glb"))

	_, err := src.Open(ctx, "nope.glb")
	assert.True(t, IsKind(err, KindAssetNotFound))
}

func TestLoadStateText(t *testing.T) {
	text, err := LoadReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ready", string(text))
	assert.Equal(t, "failed", LoadFailed.String())

	var st LoadState
	require.NoError(t, st.UnmarshalText([]byte("failed")))
	assert.Equal(t, LoadFailed, st)
	assert.Error(t, st.UnmarshalText([]byte("bogus")))
}
