package configurator

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type Field string

const (
	FieldColor       Field = "color"
	FieldMetalness   Field = "metalness"
	FieldRoughness   Field = "roughness"
	FieldAccessories Field = "accessories"
	FieldScale       Field = "scale"
	FieldPosition    Field = "position"
	FieldScene       Field = "scene"
	FieldPreset      Field = "preset"
)

// Change is delivered to subscribers once per mutation.
type Change struct {
	Generation uint64 `json:"generation"`
	Field      Field  `json:"field"`
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// ConfigurationStore owns the one mutable Configuration of the process.
// Every write bumps the generation and notifies subscribers synchronously,
// in mutation order, before returning. Subscribers must not write back into
// the store from the callback.
type ConfigurationStore struct {
	writeMu sync.Mutex // serializes mutation + notification
	mu      sync.RWMutex
	cfg     Configuration
	gen     uint64

	subsMu sync.Mutex
	subs   []subscriber
	nextID uint64
}

func NewConfigurationStore(defaults Configuration) *ConfigurationStore {
	cfg := defaults.normalized()
	if cfg.Accessories == nil {
		cfg.Accessories = map[string]bool{}
	}
	return &ConfigurationStore{cfg: cfg}
}

func (s *ConfigurationStore) Color() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Color
}

func (s *ConfigurationStore) Metalness() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Metalness
}

func (s *ConfigurationStore) Roughness() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Roughness
}

// Accessory reports the visibility of id and whether the store knows it.
func (s *ConfigurationStore) Accessory(id string) (visible bool, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visible, known = s.cfg.Accessories[NormalizeAccessoryID(id)]
	return
}

func (s *ConfigurationStore) Accessories() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.cfg.Accessories))
	for k, v := range s.cfg.Accessories {
		out[k] = v
	}
	return out
}

func (s *ConfigurationStore) Scale() Scale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Scale
}

func (s *ConfigurationStore) Position() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Position
}

func (s *ConfigurationStore) Scene() SceneSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Scene
}

// Snapshot is a deep copy of the current configuration.
func (s *ConfigurationStore) Snapshot() Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Read returns a snapshot together with the generation it reflects.
func (s *ConfigurationStore) Read() (Configuration, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone(), s.gen
}

func (s *ConfigurationStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Subscribe registers fn for every later change. The returned func removes
// it; calling it more than once is harmless.
func (s *ConfigurationStore) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate applies fn under the write lock. fn returns false when it left the
// configuration untouched, in which case nobody is notified.
func (s *ConfigurationStore) mutate(field Field, fn func(cfg *Configuration) bool) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !fn(&s.cfg) {
		s.mu.Unlock()
		return false
	}
	s.gen++
	change := Change{Generation: s.gen, Field: field}
	s.mu.Unlock()

	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(change)
	}
	return true
}

// SetColor stores value verbatim. Parsing happens where the color is used.
func (s *ConfigurationStore) SetColor(value string) {
	s.mutate(FieldColor, func(cfg *Configuration) bool {
		cfg.Color = value
		return true
	})
}

func (s *ConfigurationStore) SetMetalness(value float32) {
	s.mutate(FieldMetalness, func(cfg *Configuration) bool {
		cfg.Metalness = clampUnit(value)
		return true
	})
}

func (s *ConfigurationStore) SetRoughness(value float32) {
	s.mutate(FieldRoughness, func(cfg *Configuration) bool {
		cfg.Roughness = clampUnit(value)
		return true
	})
}

// ToggleAccessory flips id. An id the store has not seen counts as hidden,
// so the first toggle shows it.
func (s *ConfigurationStore) ToggleAccessory(id string) {
	key := NormalizeAccessoryID(id)
	s.mutate(FieldAccessories, func(cfg *Configuration) bool {
		cfg.Accessories[key] = !cfg.Accessories[key]
		return true
	})
}

func (s *ConfigurationStore) SetAccessory(id string, visible bool) {
	key := NormalizeAccessoryID(id)
	s.mutate(FieldAccessories, func(cfg *Configuration) bool {
		cfg.Accessories[key] = visible
		return true
	})
}

// RegisterAccessory adds id as visible unless it is already present. It
// never overwrites a user's toggle and reports whether anything changed.
func (s *ConfigurationStore) RegisterAccessory(id string) bool {
	key := NormalizeAccessoryID(id)
	return s.mutate(FieldAccessories, func(cfg *Configuration) bool {
		if _, ok := cfg.Accessories[key]; ok {
			return false
		}
		cfg.Accessories[key] = true
		return true
	})
}

// SetScale ignores scales with a NaN component and reports whether the
// value was taken.
func (s *ConfigurationStore) SetScale(value Scale) bool {
	if value.HasNaN() {
		return false
	}
	return s.mutate(FieldScale, func(cfg *Configuration) bool {
		cfg.Scale = value
		return true
	})
}

func (s *ConfigurationStore) SetPosition(value mgl32.Vec3) bool {
	if hasNaN(value) {
		return false
	}
	return s.mutate(FieldPosition, func(cfg *Configuration) bool {
		cfg.Position = value
		return true
	})
}

func (s *ConfigurationStore) SetBackgroundVisible(visible bool) {
	s.mutate(FieldScene, func(cfg *Configuration) bool {
		cfg.Scene.BackgroundVisible = visible
		return true
	})
}

func (s *ConfigurationStore) SetEnvironmentIntensity(v float32) {
	s.mutate(FieldScene, func(cfg *Configuration) bool {
		cfg.Scene.EnvironmentIntensity = clampNonNegative(v)
		return true
	})
}

func (s *ConfigurationStore) SetAmbientLightIntensity(v float32) {
	s.mutate(FieldScene, func(cfg *Configuration) bool {
		cfg.Scene.AmbientLightIntensity = clampNonNegative(v)
		return true
	})
}

func (s *ConfigurationStore) SetDirectionalLightIntensity(v float32) {
	s.mutate(FieldScene, func(cfg *Configuration) bool {
		cfg.Scene.DirectionalLightIntensity = clampNonNegative(v)
		return true
	})
}

func (s *ConfigurationStore) SetShadowOpacity(v float32) {
	s.mutate(FieldScene, func(cfg *Configuration) bool {
		cfg.Scene.ShadowOpacity = clampUnit(v)
		return true
	})
}

func (s *ConfigurationStore) SetShadowBlur(v float32) {
	s.mutate(FieldScene, func(cfg *Configuration) bool {
		cfg.Scene.ShadowBlur = clampNonNegative(v)
		return true
	})
}

// ApplyPreset writes every field the preset sets as a single change.
func (s *ConfigurationStore) ApplyPreset(p Preset) {
	s.mutate(FieldPreset, func(cfg *Configuration) bool {
		p.applyTo(cfg)
		return true
	})
}
