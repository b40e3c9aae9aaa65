package system

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/talismans/server/internal/core/event"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

func newTracker(t *testing.T, h *harness, groups ...string) *EquipTracker {
	slots, err := world.ParseSlotGroups(groups)
	if err != nil {
		t.Fatal(err)
	}
	return NewEquipTracker(h.reg, slots, zaptest.NewLogger(t))
}

func change(slot world.Slot, item *world.ItemStack) event.InventoryChanged {
	return event.InventoryChanged{PlayerID: "p1", Slot: slot, New: item}
}

func TestTracker_Transitions(t *testing.T) {
	h := newHarness(t)
	tr := newTracker(t, h, "hotbar", "offhand")

	steps := []struct {
		name string
		ev   event.InventoryChanged
		want []Transition
	}{
		{"equip", change(0, h.item("haste", 1)), []Transition{
			{PlayerID: "p1", Talisman: "haste", Kind: Equip, To: 1},
		}},
		{"same level elsewhere", change(1, h.item("haste", 1)), nil},
		{"higher level", change(40, h.item("haste", 2)), []Transition{
			{PlayerID: "p1", Talisman: "haste", Kind: LevelChange, From: 1, To: 2},
		}},
		{"non-qualifying slot", change(world.SlotHelmet, h.item("heart", 2)), nil},
		{"drop a lower copy", change(0, nil), nil},
		{"replace higher with other talisman", change(40, h.item("heart", 1)), []Transition{
			{PlayerID: "p1", Talisman: "haste", Kind: LevelChange, From: 2, To: 1},
			{PlayerID: "p1", Talisman: "heart", Kind: Equip, To: 1},
		}},
		{"plain item", change(1, &world.ItemStack{Material: "stone", Amount: 1}), []Transition{
			{PlayerID: "p1", Talisman: "haste", Kind: Unequip, From: 1},
		}},
	}
	for _, s := range steps {
		got := tr.Observe(s.ev)
		if diff := cmp.Diff(s.want, got); diff != "" {
			t.Fatalf("%s: transitions mismatch (-want +got):\n%s", s.name, diff)
		}
	}

	assert.Equal(t, map[string]int{"heart": 1}, tr.ActiveLevels("p1"))
	assert.Equal(t, []string{"p1"}, tr.Players())

	got := tr.Disconnect("p1")
	assert.Equal(t, []Transition{{PlayerID: "p1", Talisman: "heart", Kind: Unequip, From: 1}}, got)
	assert.Empty(t, tr.Players())
	assert.Nil(t, tr.Disconnect("p1"))
}

func TestTracker_IgnoresUnknownItems(t *testing.T) {
	h := newHarness(t)
	tr := newTracker(t, h, "all")

	unknown := h.item("haste", 1)
	unknown.SetTag(talisman.TagTalisman, "ghost")
	badLevel := h.item("haste", 1)
	badLevel.SetTag(talisman.TagLevel, "7")
	garbage := h.item("haste", 1)
	garbage.SetTag(talisman.TagLevel, "two")

	for _, it := range []*world.ItemStack{unknown, badLevel, garbage, nil} {
		assert.Nil(t, tr.Observe(change(5, it)))
	}
	assert.Empty(t, tr.Players(), "no state kept for idle players")
	assert.Equal(t, EquippedState{}, tr.State("p1", "haste"))
}

func TestTracker_Resync(t *testing.T) {
	h := newHarness(t)
	tr := newTracker(t, h, "storage")

	inv := world.NewInventory()
	inv.Set(9, h.item("haste", 1))
	inv.Set(20, h.item("haste", 2))
	inv.Set(0, h.item("heart", 1)) // hotbar does not qualify

	got := tr.Resync("p1", inv)
	assert.Equal(t, []Transition{{PlayerID: "p1", Talisman: "haste", Kind: Equip, To: 2}}, got)
	assert.Nil(t, tr.Resync("p1", inv), "nothing changed")

	inv.Set(20, nil)
	got = tr.Resync("p1", inv)
	assert.Equal(t, []Transition{{PlayerID: "p1", Talisman: "haste", Kind: LevelChange, From: 2, To: 1}}, got)

	got = tr.Resync("p1", nil)
	assert.Equal(t, []Transition{{PlayerID: "p1", Talisman: "haste", Kind: Unequip, From: 1}}, got)
}

func TestTransitionKind_String(t *testing.T) {
	assert.Equal(t, "equip", Equip.String())
	assert.Equal(t, "unequip", Unequip.String())
	assert.Equal(t, "level_change", LevelChange.String())
	assert.Equal(t, "unknown", TransitionKind(0).String())
}
