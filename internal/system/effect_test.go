package system

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talismans/server/internal/core/event"
	"github.com/talismans/server/internal/data"
	"github.com/talismans/server/internal/persist"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

func TestEffect_EquipUnequipThenHigherLevel(t *testing.T) {
	h := newHarness(t)
	l1, l2 := talisman.LevelUUID("haste", 1), talisman.LevelUUID("haste", 2)

	h.set("p1", 0, h.item("haste", 1))
	assert.Equal(t, []uuid.UUID{l1}, h.mods("p1", attackSpeed))
	assert.InDelta(t, 4.4, h.player("p1").Attribute(attackSpeed).Value(), 1e-9)

	h.set("p1", 0, nil)
	assert.Empty(t, h.mods("p1", attackSpeed))
	assert.Equal(t, EquippedState{}, h.tracker.State("p1", "haste"))

	h.set("p1", 0, h.item("haste", 2))
	assert.Equal(t, []uuid.UUID{l2}, h.mods("p1", attackSpeed))
	assert.Equal(t, EquippedState{Active: true, Level: 2}, h.tracker.State("p1", "haste"))

	assert.Equal(t, []string{"add:haste:1", "remove:haste:1", "add:haste:2"}, h.journal.actions())
	assert.Equal(t, "world", h.journal.entries[0].World)
	assert.Equal(t, attackSpeed[len("minecraft:"):], h.journal.entries[0].Attribute)
}

func TestEffect_LevelChangeSwapsModifier(t *testing.T) {
	h := newHarness(t)

	h.set("p1", 0, h.item("haste", 1))
	h.set("p1", 10, h.item("haste", 2))
	assert.Equal(t, []uuid.UUID{talisman.LevelUUID("haste", 2)}, h.mods("p1", attackSpeed))

	h.set("p1", 10, nil)
	assert.Equal(t, []uuid.UUID{talisman.LevelUUID("haste", 1)}, h.mods("p1", attackSpeed))

	assert.Equal(t, []string{
		"add:haste:1",
		"remove:haste:1", "add:haste:2",
		"remove:haste:2", "add:haste:1",
	}, h.journal.actions())
}

func TestEffect_WorldSuppressionRoundTrip(t *testing.T) {
	h := newHarness(t, "world_nether")
	hasteL1 := talisman.LevelUUID("haste", 1)
	heartL1 := talisman.LevelUUID("heart", 1)

	h.set("p1", 0, h.item("haste", 1))
	h.set("p1", 1, h.item("heart", 1))
	require.Equal(t, []uuid.UUID{hasteL1}, h.mods("p1", attackSpeed))
	require.Equal(t, []uuid.UUID{heartL1}, h.mods("p1", maxHealth))

	// arena is disabled for haste only.
	h.moveTo("p1", "arena")
	assert.Empty(t, h.mods("p1", attackSpeed))
	assert.Equal(t, []uuid.UUID{heartL1}, h.mods("p1", maxHealth))
	assert.True(t, h.tracker.State("p1", "haste").Active, "equip state survives suppression")

	// Equipping while suppressed applies nothing.
	h.set("p1", 2, h.item("haste", 2))
	assert.Empty(t, h.mods("p1", attackSpeed))

	// world_nether is disabled globally.
	h.moveTo("p1", "world_nether")
	assert.Empty(t, h.mods("p1", attackSpeed))
	assert.Empty(t, h.mods("p1", maxHealth))

	h.moveTo("p1", "world")
	assert.Equal(t, []uuid.UUID{talisman.LevelUUID("haste", 2)}, h.mods("p1", attackSpeed))
	assert.Equal(t, []uuid.UUID{heartL1}, h.mods("p1", maxHealth))
	assert.InDelta(t, 24.0, h.player("p1").Attribute(maxHealth).Value(), 1e-9)
}

func TestEffect_DisconnectRemovesEverything(t *testing.T) {
	h := newHarness(t)
	h.set("p1", 0, h.item("haste", 2))
	h.set("p1", 40, h.item("heart", 2))
	require.Len(t, h.mods("p1", maxHealth), 1)

	event.Emit(h.bus, event.PlayerDisconnected{PlayerID: "p1"})
	h.disp.Update(0)

	assert.Empty(t, h.mods("p1", attackSpeed))
	assert.Empty(t, h.mods("p1", maxHealth))
	assert.Empty(t, h.tracker.Players())
	assert.Empty(t, h.app.Players())
	assert.Nil(t, h.tracker.ActiveLevels("p1"))

	// A stray unequip after the disconnect is a no-op.
	h.set("p1", 0, nil)
	assert.Empty(t, h.mods("p1", attackSpeed))
}

func TestEffect_JoinResyncsInventory(t *testing.T) {
	h := newHarness(t)
	p := world.NewPlayer("p2", "Bob", "world")
	p.Inv.Set(3, h.item("heart", 2))
	p.Inv.Set(world.SlotHelmet, h.item("haste", 1)) // armor does not qualify here
	h.state.AddPlayer(p)

	event.Emit(h.bus, event.PlayerJoined{PlayerID: "p2", World: "world"})
	h.disp.Update(0)

	assert.Equal(t, []uuid.UUID{talisman.LevelUUID("heart", 2)}, h.mods("p2", maxHealth))
	assert.Empty(t, h.mods("p2", attackSpeed))
}

func TestEffect_AdoptsModifierAlreadyOnHost(t *testing.T) {
	h := newHarness(t)
	tal, _ := h.reg.Get("heart")
	l1, _ := tal.Level(1)
	m, err := l1.Modifier()
	require.NoError(t, err)
	require.NoError(t, h.player("p1").Attribute(maxHealth).AddModifier(m))

	h.set("p1", 0, h.item("heart", 1))
	assert.Equal(t, []uuid.UUID{l1.UUID}, h.mods("p1", maxHealth))
	assert.Empty(t, h.journal.entries, "nothing added")

	h.set("p1", 0, nil)
	assert.Empty(t, h.mods("p1", maxHealth))
}

func TestEffect_ReloadRefreshesAmountsAndDisables(t *testing.T) {
	h := newHarness(t)
	h.set("p1", 0, h.item("haste", 1))
	h.set("p1", 1, h.item("heart", 1))

	// Edit the user copies: new haste amount, heart disabled.
	edit := func(strength talisman.Strength, id string, fn func(*data.Document)) {
		path := filepath.Join(h.dataDir, filepath.FromSlash(data.TalismanPath(string(strength), id)))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		doc, err := data.Parse(raw)
		require.NoError(t, err)
		fn(doc)
		out, err := doc.Marshal()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, out, 0o644))
	}
	edit(talisman.Common, "haste", func(d *data.Document) {
		require.NoError(t, d.Set("levels.1.percentage-bonus", 50))
	})
	edit(talisman.Legendary, "heart", func(d *data.Document) {
		require.NoError(t, d.Set("general-config.enabled", false))
	})

	report, err := h.reg.Reload(context.Background())
	require.NoError(t, err)
	event.Emit(h.bus, event.TalismansReloaded{Version: report.Version})
	h.disp.Update(0)

	mods := h.player("p1").Attribute(attackSpeed).Modifiers()
	require.Len(t, mods, 1)
	assert.Equal(t, talisman.LevelUUID("haste", 1), mods[0].UUID)
	assert.InDelta(t, 0.5, mods[0].Amount, 1e-9)
	assert.Empty(t, h.mods("p1", maxHealth))
	assert.False(t, h.tracker.State("p1", "heart").Active)
}

// Across any sequence of slot updates, world moves and reloads, each
// modifier tag is present at most once and exactly when it should be.
func TestEffect_AddRemoveBalance(t *testing.T) {
	h := newHarness(t, "world_nether")
	rng := rand.New(rand.NewSource(7))
	worlds := []string{"world", "arena", "world_nether"}
	slots := []world.Slot{0, 1, 9, 40, world.SlotHelmet}
	items := []*world.ItemStack{
		nil,
		h.item("haste", 1), h.item("haste", 2),
		h.item("heart", 1), h.item("heart", 2),
		{Material: "stone", Amount: 1},
	}

	for i := 0; i < 400; i++ {
		switch rng.Intn(6) {
		case 0:
			h.moveTo("p1", worlds[rng.Intn(len(worlds))])
		default:
			h.set("p1", slots[rng.Intn(len(slots))], items[rng.Intn(len(items))].Clone())
		}

		for _, key := range []string{attackSpeed, maxHealth} {
			seen := map[uuid.UUID]int{}
			for _, id := range h.mods("p1", key) {
				seen[id]++
			}
			for id, n := range seen {
				require.Equal(t, 1, n, "step %d: tag %s applied %d times", i, id, n)
			}
			require.LessOrEqual(t, len(seen), 1, "step %d: one level per talisman", i)
		}

		p := h.player("p1")
		for _, id := range []string{"haste", "heart"} {
			st := h.tracker.State("p1", id)
			tal, _ := h.reg.Get(id)
			key := attackSpeed
			if id == "heart" {
				key = maxHealth
			}
			want := st.Active && p.World != "world_nether" && !tal.DisabledIn(p.World)
			got := len(h.mods("p1", key)) == 1
			require.Equal(t, want, got, "step %d: %s in %s", i, id, p.World)
			if want {
				require.Equal(t, talisman.LevelUUID(id, st.Level), h.mods("p1", key)[0], "step %d", i)
			}
		}
	}

	adds, removes := 0, 0
	for _, e := range h.journal.entries {
		switch e.Action {
		case persist.ActionAdd:
			adds++
		case persist.ActionRemove:
			removes++
		}
	}
	applied := len(h.mods("p1", attackSpeed)) + len(h.mods("p1", maxHealth))
	assert.Equal(t, applied, adds-removes)
}
