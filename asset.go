package configurator

import (
	"time"

	"github.com/gekko3d/configurator/scenegraph"
	"github.com/google/uuid"
)

// LoadedAsset is a parsed model as cached by the loader. It is shared by
// every consumer and never written after construction; the tree itself is
// only reachable through Instantiate.
type LoadedAsset struct {
	id        string
	path      string
	root      scenegraph.Node
	nodeCount int
	loadedAt  time.Time
}

func newLoadedAsset(path string, root scenegraph.Node) *LoadedAsset {
	return &LoadedAsset{
		id:        uuid.NewString(),
		path:      path,
		root:      root,
		nodeCount: scenegraph.Count(root),
		loadedAt:  time.Now(),
	}
}

// NewLoadedAsset wraps a tree that did not come through the loader, such as
// one built in code.
func NewLoadedAsset(path string, root scenegraph.Node) *LoadedAsset {
	return newLoadedAsset(path, root)
}

func (a *LoadedAsset) ID() string          { return a.id }
func (a *LoadedAsset) Path() string        { return a.path }
func (a *LoadedAsset) NodeCount() int      { return a.nodeCount }
func (a *LoadedAsset) LoadedAt() time.Time { return a.loadedAt }

// Instantiate returns a structural copy of the tree. Materials and geometry
// are still the cached ones; the customizer replaces the materials.
func (a *LoadedAsset) Instantiate() (scenegraph.Node, error) {
	return scenegraph.Clone(a.root)
}

// Dump renders the cached tree for debugging.
func (a *LoadedAsset) Dump() string {
	return scenegraph.Dump(a.root)
}
