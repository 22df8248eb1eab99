package configurator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gekko3d/configurator/scenegraph"
	"github.com/pkg/errors"
)

// AssetSource is where model bytes come from. Head is a cheap existence
// check; it returns a KindAssetNotFound AssetError when the asset is
// definitely absent.
type AssetSource interface {
	Head(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// SceneParser turns model bytes into a scene tree.
type SceneParser interface {
	Parse(r io.Reader) (scenegraph.Node, error)
}

// GLTFParser reads glTF and GLB with embedded buffers.
type GLTFParser struct{}

func (GLTFParser) Parse(r io.Reader) (scenegraph.Node, error) {
	root, err := scenegraph.DecodeGLTF(r)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// HTTPSource fetches models relative to BaseURL.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s HTTPSource) resolve(p string) (string, error) {
	ref, err := url.Parse(p)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() || s.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(strings.TrimSuffix(s.BaseURL, "/") + "/")
	if err != nil {
		return "", err
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return base.ResolveReference(ref).String(), nil
}

func (s HTTPSource) do(ctx context.Context, method string, p string) (*http.Response, error) {
	target, err := s.resolve(p)
	if err != nil {
		return nil, newAssetError(KindAssetFetch, p, err, "bad asset url")
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, newAssetError(KindAssetFetch, p, err, "bad request")
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, newAssetError(KindAssetFetch, p, err, "%s %s", method, target)
	}
	return resp, nil
}

func (s HTTPSource) Head(ctx context.Context, p string) error {
	resp, err := s.do(ctx, http.MethodHead, p)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return newAssetError(KindAssetNotFound, p, nil, "HEAD returned %s", resp.Status)
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		// Server does not answer HEAD; the GET will tell.
		return nil
	}
	return newAssetError(KindAssetFetch, p, nil, "HEAD returned %s", resp.Status)
}

func (s HTTPSource) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, p)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, newAssetError(KindAssetNotFound, p, nil, "GET returned %s", resp.Status)
	}
	resp.Body.Close()
	return nil, newAssetError(KindAssetFetch, p, nil, "GET returned %s", resp.Status)
}

// DirSource serves models from a local directory. Paths are cleaned and
// cannot escape Root.
type DirSource struct {
	Root string
}

func (s DirSource) file(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(path.Clean("/"+p)))
}

func (s DirSource) Head(ctx context.Context, p string) error {
	info, err := os.Stat(s.file(p))
	if os.IsNotExist(err) {
		return newAssetError(KindAssetNotFound, p, err, "no such file")
	}
	if err != nil {
		return newAssetError(KindAssetFetch, p, err, "stat")
	}
	if info.IsDir() {
		return newAssetError(KindAssetNotFound, p, nil, "is a directory")
	}
	return nil
}

func (s DirSource) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(s.file(p))
	if os.IsNotExist(err) {
		return nil, newAssetError(KindAssetNotFound, p, err, "no such file")
	}
	if err != nil {
		return nil, newAssetError(KindAssetFetch, p, errors.WithStack(err), "open")
	}
	return f, nil
}
