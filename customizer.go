package configurator

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/configurator/scenegraph"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// WorkingCopy is one customized instance of a model. It owns every node
// and material in it; only geometry is shared with the cached asset.
type WorkingCopy struct {
	ID      string
	AssetID string
	Root    scenegraph.Node
	// Materials holds every material this copy allocated, in walk order.
	Materials []scenegraph.Material
	// Accessories are the accessory ids matched in this copy.
	Accessories []string
	Config      Configuration
	Fallback    bool
}

func (wc *WorkingCopy) Dump() string {
	return scenegraph.Dump(wc.Root)
}

// WriteGLB exports the visible part of the copy as binary glTF.
func (wc *WorkingCopy) WriteGLB(w io.Writer) error {
	return scenegraph.EncodeGLB(w, wc.Root)
}

// SceneGraphCustomizer turns a cached asset plus a configuration into a new
// WorkingCopy. It keeps no state between passes apart from the set of color
// strings it already warned about.
type SceneGraphCustomizer struct {
	discovery *AccessoryDiscovery
	logger    Logger
	passes    atomic.Uint64

	mu        sync.Mutex
	badColors map[string]struct{}
}

func NewSceneGraphCustomizer(discovery *AccessoryDiscovery, logger Logger) *SceneGraphCustomizer {
	return &SceneGraphCustomizer{
		discovery: discovery,
		logger:    orNop(logger),
		badColors: make(map[string]struct{}),
	}
}

// Passes counts Customize calls, failed ones included.
func (c *SceneGraphCustomizer) Passes() uint64 {
	return c.passes.Load()
}

// Customize builds a fresh working copy of asset with cfg applied. Any
// failure, including a panic while walking the tree, comes back as a
// KindSceneAttach AssetError and no copy.
func (c *SceneGraphCustomizer) Customize(asset *LoadedAsset, cfg Configuration) (wc *WorkingCopy, err error) {
	c.passes.Add(1)
	if asset == nil {
		return nil, newAssetError(KindSceneAttach, "", nil, "no asset to customize")
	}

	defer func() {
		if r := recover(); r != nil {
			wc = nil
			err = newAssetError(KindSceneAttach, asset.Path(), errors.Errorf("%v", r), "panic while customizing")
		}
	}()

	root, err := asset.Instantiate()
	if err != nil {
		return nil, newAssetError(KindSceneAttach, asset.Path(), err, "clone failed")
	}

	color, colorOK := c.parseColor(cfg.Color)
	wc = &WorkingCopy{
		ID:      uuid.NewString(),
		AssetID: asset.ID(),
		Root:    root,
		Config:  cfg.Clone(),
	}

	err = scenegraph.Walk(root, func(n scenegraph.Node, _ int) error {
		switch v := n.(type) {
		case *scenegraph.MeshNode:
			for i, prim := range v.Primitives {
				if prim.Material == nil {
					return errors.Errorf("mesh %q has no material in slot %d", v.Name, i)
				}
				m := prim.Material.CloneMaterial()
				if sm, ok := m.(*scenegraph.StandardMaterial); ok {
					applyMaterial(sm, color, colorOK, cfg)
				}
				prim.Material = m
				wc.Materials = append(wc.Materials, m)
			}
		case *scenegraph.GroupNode, *scenegraph.OtherNode:
		default:
			return errors.Errorf("unsupported node type %T", n)
		}

		b := n.Base()
		if id, ok := ClassifyAccessory(b.Name); ok {
			wc.Accessories = append(wc.Accessories, id)
			if visible, known := cfg.Accessories[id]; known {
				b.Visible = visible
			}
		}
		return nil
	})
	if err != nil {
		return nil, newAssetError(KindSceneAttach, asset.Path(), err, "walk failed")
	}

	rt := &root.Base().Transform
	rt.Scale = cfg.Scale.Vec3()
	rt.Position = cfg.Position
	rt.Dirty = true

	// Every accessory in the model joins the catalog, including ids the
	// store already knew from a preset or an earlier toggle.
	if c.discovery != nil {
		for _, id := range wc.Accessories {
			c.discovery.Observe(id)
		}
	}

	c.logger.Debugf("Customized %s: %d materials, %d accessories", asset.Path(), len(wc.Materials), len(wc.Accessories))
	return wc, nil
}

// applyMaterial sets the configured surface on a freshly cloned material.
// The authored alpha is kept.
func applyMaterial(sm *scenegraph.StandardMaterial, color mgl32.Vec4, colorOK bool, cfg Configuration) {
	if colorOK {
		sm.BaseColor = mgl32.Vec4{color.X(), color.Y(), color.Z(), sm.BaseColor.W()}
	}
	sm.Metalness = clampUnit(cfg.Metalness)
	sm.Roughness = clampUnit(cfg.Roughness)
	sm.NeedsUpdate = true
	sm.Version++
}

// parseColor warns once per distinct unparseable string.
func (c *SceneGraphCustomizer) parseColor(s string) (mgl32.Vec4, bool) {
	color, err := ParseColor(s)
	if err == nil {
		return color, true
	}

	c.mu.Lock()
	_, warned := c.badColors[s]
	c.badColors[s] = struct{}{}
	c.mu.Unlock()
	if !warned {
		c.logger.Warnf("Keeping authored colors: %v", err)
	}
	return mgl32.Vec4{}, false
}

func (wc *WorkingCopy) String() string {
	kind := "model"
	if wc.Fallback {
		kind = "fallback"
	}
	return fmt.Sprintf("%s %s (%d materials)", kind, wc.ID, len(wc.Materials))
}
