package configurator

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gekko3d/configurator/scenegraph"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// carScene is the model most tests load: a painted body, a wheel sharing
// the body paint, a spoiler with its own material, and a camera.
func carScene() *scenegraph.GroupNode {
	paint := scenegraph.NewStandardMaterial("paint")
	paint.BaseColor = mgl32.Vec4{1, 1, 1, 0.5}
	trim := scenegraph.NewStandardMaterial("trim")
	box := scenegraph.NewBox(1, 1, 1)

	body := scenegraph.NewMesh("Body", &scenegraph.Primitive{Geometry: box, Material: paint})
	wheel := scenegraph.NewMesh("Wheel_FL", &scenegraph.Primitive{Geometry: box, Material: paint})
	spoiler := scenegraph.NewMesh("Accessory_Spoiler_02", &scenegraph.Primitive{Geometry: box, Material: trim})
	return scenegraph.NewGroup("Car", body, wheel, spoiler, scenegraph.NewOther("Camera", "camera"))
}

func carGLB(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, scenegraph.EncodeGLB(&buf, carScene()))
	return buf.Bytes()
}

func carAsset(t *testing.T) *LoadedAsset {
	t.Helper()
	root, err := scenegraph.DecodeGLTF(bytes.NewReader(carGLB(t)))
	require.NoError(t, err)
	return NewLoadedAsset("car.glb", root)
}

// modelServer serves /good.model, 404s /missing.model, returns junk for
// /garbage.model and fails the first flakyFailures requests to /flaky.model.
type modelServer struct {
	*httptest.Server
	glb           []byte
	flakyFailures int

	mu     sync.Mutex
	counts map[string]int
}

func newModelServer(t *testing.T, flakyFailures int) *modelServer {
	ms := &modelServer{
		glb:           carGLB(t),
		flakyFailures: flakyFailures,
		counts:        make(map[string]int),
	}
	ms.Server = httptest.NewServer(http.HandlerFunc(ms.serve))
	t.Cleanup(ms.Close)
	return ms
}

func (ms *modelServer) serve(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	ms.counts[r.Method+" "+r.URL.Path]++
	flaky := ms.counts["HEAD /flaky.model"] + ms.counts["GET /flaky.model"]
	ms.mu.Unlock()

	switch r.URL.Path {
	case "/good.model", "/other.model":
		w.Header().Set("Content-Type", "model/gltf-binary")
		if r.Method == http.MethodGet {
			w.Write(ms.glb)
		}
	case "/garbage.model":
		if r.Method == http.MethodGet {
			w.Write([]byte("this is not a gltf file"))
		}
	case "/flaky.model":
		if flaky <= ms.flakyFailures {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		if r.Method == http.MethodGet {
			w.Write(ms.glb)
		}
	case "/nohead.model":
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write(ms.glb)
	default:
		http.NotFound(w, r)
	}
}

func (ms *modelServer) count(method, path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.counts[method+" "+path]
}

func (ms *modelServer) source() HTTPSource {
	return HTTPSource{BaseURL: ms.URL}
}

// gatedSource holds Open for gated paths until release is closed. It
// ignores cancellation so a superseded fetch really does finish late.
type gatedSource struct {
	data    []byte
	gated   map[string]bool
	release chan struct{}
	opened  chan string
}

func newGatedSource(t *testing.T, gated ...string) *gatedSource {
	g := &gatedSource{
		data:    carGLB(t),
		gated:   make(map[string]bool),
		release: make(chan struct{}),
		opened:  make(chan string, 16),
	}
	for _, p := range gated {
		g.gated[p] = true
	}
	return g
}

func (g *gatedSource) Head(ctx context.Context, path string) error {
	return nil
}

func (g *gatedSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	g.opened <- path
	if g.gated[path] {
		<-g.release
	}
	return io.NopCloser(bytes.NewReader(g.data)), nil
}

type parserFunc func(r io.Reader) (scenegraph.Node, error)

func (f parserFunc) Parse(r io.Reader) (scenegraph.Node, error) {
	return f(r)
}

func loadStates(events []LoadEvent) []LoadState {
	out := make([]LoadState, len(events))
	for i, ev := range events {
		out[i] = ev.State
	}
	return out
}
