package configurator

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// accessoryKeywords mark a node as a user toggleable part when they appear
// anywhere in its lower-cased name. Naming schemes that do not follow this
// convention are over- or under-matched; that is accepted.
var accessoryKeywords = []string{
	"accessory",
	"extra",
	"option",
	"part_",
	"wheel",
	"rim",
	"spoiler",
	"bumper",
	"wing",
	"light",
}

// DefaultAccessories are offered as toggles before any model reported its own.
var DefaultAccessories = []string{"wheel", "spoiler", "rim", "bumper", "wing"}

var accessoryLabels = map[string]string{
	"wheel":       "Wheels",
	"rim":         "Rims",
	"spoiler":     "Spoiler",
	"bumper":      "Bumper",
	"wing":        "Wing",
	"light":       "Extra Lights",
	"window_tint": "Window Tint",
	"roof_rack":   "Roof Rack",
	"antenna":     "Antenna",
	"exhaust":     "Exhaust",
}

// NormalizeAccessoryID lower-cases s and replaces every character outside
// [a-z0-9_] with an underscore.
func NormalizeAccessoryID(s string) string {
	lower := strings.ToLower(s)
	var sb strings.Builder
	sb.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// ClassifyAccessory returns the accessory id for a node name, or false when
// the name carries none of the keywords.
func ClassifyAccessory(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, kw := range accessoryKeywords {
		if strings.Contains(lower, kw) {
			return NormalizeAccessoryID(name), true
		}
	}
	return "", false
}

// AccessoryLabel is the display text for an accessory toggle.
func AccessoryLabel(id string) string {
	if label, ok := accessoryLabels[id]; ok {
		return label
	}
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// AccessoryEvent announces an id seen for the first time this session.
type AccessoryEvent struct {
	AccessoryID string `json:"accessoryId"`
}

type AccessoryToggle struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

type discoveryListener struct {
	id uint64
	fn func(AccessoryEvent)
}

// AccessoryDiscovery keeps the session's accessory catalog. Ids are only
// ever added, so a toggle stays available after a model swap drops the
// node it came from.
type AccessoryDiscovery struct {
	store  *ConfigurationStore
	logger Logger

	mu        sync.Mutex
	seen      map[string]struct{}
	catalog   []string
	listeners []discoveryListener
	nextID    uint64
}

func NewAccessoryDiscovery(store *ConfigurationStore, logger Logger) *AccessoryDiscovery {
	return &AccessoryDiscovery{
		store:  store,
		logger: orNop(logger),
		seen:   make(map[string]struct{}),
	}
}

// Observe records id. The first sighting registers it in the store, then
// notifies every listener; it returns true only in that case.
func (d *AccessoryDiscovery) Observe(id string) bool {
	id = NormalizeAccessoryID(id)

	d.mu.Lock()
	if _, ok := d.seen[id]; ok {
		d.mu.Unlock()
		return false
	}
	d.seen[id] = struct{}{}
	d.catalog = append(d.catalog, id)
	listeners := make([]discoveryListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	if d.store != nil {
		d.store.RegisterAccessory(id)
	}
	d.logger.Infof("Accessory found: %s", id)

	ev := AccessoryEvent{AccessoryID: id}
	for _, l := range listeners {
		l.fn(ev)
	}
	return true
}

// OnDiscovered registers fn for later discoveries. Ids already in the
// catalog are not replayed.
func (d *AccessoryDiscovery) OnDiscovered(fn func(AccessoryEvent)) (cancel func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, discoveryListener{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// Catalog lists discovered ids in discovery order.
func (d *AccessoryDiscovery) Catalog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.catalog))
	copy(out, d.catalog)
	return out
}

// Toggles is what a controls panel shows: the discovered accessories, or the
// default list while nothing has been discovered.
func (d *AccessoryDiscovery) Toggles() []AccessoryToggle {
	ids := d.Catalog()
	if len(ids) == 0 {
		ids = DefaultAccessories
	}

	out := make([]AccessoryToggle, 0, len(ids))
	for _, id := range ids {
		visible := false
		if d.store != nil {
			visible, _ = d.store.Accessory(id)
		}
		out = append(out, AccessoryToggle{ID: id, Label: AccessoryLabel(id), Visible: visible})
	}
	return out
}
