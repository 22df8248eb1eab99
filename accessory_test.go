package configurator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAccessory(t *testing.T) {
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{"Wheel_FL", "wheel_fl", true},
		{"Wheel-Left", "wheel_left", true},
		{"wheel_left", "wheel_left", true},
		{"Accessory_Spoiler_02", "accessory_spoiler_02", true},
		{"RoofRack_Extra", "roofrack_extra", true},
		{"Headlight.L", "headlight_l", true},
		{"PART_antenna", "part_antenna", true},
		{"Body", "", false},
		{"Windshield", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		id, ok := ClassifyAccessory(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.id, id, c.name)
	}
}

func TestClassifyAccessoryIsPure(t *testing.T) {
	a, _ := ClassifyAccessory("Spoiler Rear")
	b, _ := ClassifyAccessory("Spoiler Rear")
	assert.Equal(t, a, b)
	assert.Equal(t, "spoiler_rear", a)
}

func TestNormalizeAccessoryID(t *testing.T) {
	assert.Equal(t, "a_b_c", NormalizeAccessoryID("A b-C"))
	assert.Equal(t, "r_der", NormalizeAccessoryID("Räder"))
	assert.Equal(t, "already_ok_1", NormalizeAccessoryID("already_ok_1"))
}

func TestAccessoryLabel(t *testing.T) {
	assert.Equal(t, "Wheels", AccessoryLabel("wheel"))
	assert.Equal(t, "Extra Lights", AccessoryLabel("light"))
	assert.Equal(t, "Roof Rack", AccessoryLabel("roof_rack"))
	assert.Equal(t, "Accessory Spoiler 02", AccessoryLabel("accessory_spoiler_02"))
	assert.Equal(t, "Wheel Fl", AccessoryLabel("wheel_fl"))
}

func TestAccessoryDiscovery(t *testing.T) {
	store := NewConfigurationStore(DefaultConfiguration())
	d := NewAccessoryDiscovery(store, nil)

	// Nothing discovered yet: the default list, all hidden.
	toggles := d.Toggles()
	require.Len(t, toggles, len(DefaultAccessories))
	assert.Equal(t, "wheel", toggles[0].ID)
	assert.Equal(t, "Wheels", toggles[0].Label)
	assert.False(t, toggles[0].Visible)

	var events []AccessoryEvent
	cancel := d.OnDiscovered(func(ev AccessoryEvent) {
		// The store already knows the id when listeners run.
		_, known := store.Accessory(ev.AccessoryID)
		assert.True(t, known)
		events = append(events, ev)
	})

	assert.True(t, d.Observe("Accessory_Spoiler_02"))
	assert.False(t, d.Observe("accessory_spoiler_02"))
	assert.True(t, d.Observe("wheel_fl"))

	require.Len(t, events, 2)
	assert.Equal(t, "accessory_spoiler_02", events[0].AccessoryID)
	assert.Equal(t, []string{"accessory_spoiler_02", "wheel_fl"}, d.Catalog())

	visible, _ := store.Accessory("accessory_spoiler_02")
	assert.True(t, visible)

	toggles = d.Toggles()
	require.Len(t, toggles, 2)
	assert.Equal(t, AccessoryToggle{ID: "wheel_fl", Label: "Wheel Fl", Visible: true}, toggles[1])

	cancel()
	d.Observe("bumper_rear")
	assert.Len(t, events, 2)
	assert.Len(t, d.Catalog(), 3)
}

func TestAccessoryDiscoveryKeepsUserChoice(t *testing.T) {
	store := NewConfigurationStore(DefaultConfiguration())
	store.SetAccessory("spoiler", false)
	d := NewAccessoryDiscovery(store, nil)

	assert.True(t, d.Observe("spoiler"))
	visible, _ := store.Accessory("spoiler")
	assert.False(t, visible)
}
