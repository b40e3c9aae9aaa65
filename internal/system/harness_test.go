package system

import (
	"context"
	"strconv"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/talismans/server/internal/core/event"
	"github.com/talismans/server/internal/persist"
	"github.com/talismans/server/internal/proxy"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

const hasteDoc = `name: Haste
general-config:
  enabled: true
  disabled-in-worlds: [arena]
disguise:
  material: player_head
  name: ""
  lore: []
levels:
  1:
    operation: multiply_scalar_1
    percentage-bonus: 10
  2:
    operation: multiply_scalar_1
    percentage-bonus: 20
`

const heartDoc = `name: Heart
general-config:
  enabled: true
  disabled-in-worlds: []
disguise:
  material: player_head
  name: ""
  lore: []
levels:
  1:
    operation: add_number
    amount: 4
  2:
    operation: add_number
    amount: 8
`

const (
	attackSpeed = "minecraft:generic.attack_speed"
	maxHealth   = "minecraft:generic.max_health"
)

type memJournal struct {
	entries []persist.JournalEntry
}

func (m *memJournal) Record(e persist.JournalEntry) { m.entries = append(m.entries, e) }

func (m *memJournal) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, string(e.Action)+":"+e.Talisman+":"+strconv.Itoa(e.Level))
	}
	return out
}

type harness struct {
	t       *testing.T
	dataDir string
	reg     *talisman.Registry
	state   *world.State
	bus     *event.Bus
	tracker *EquipTracker
	app     *EffectApplicator
	disp    *EventDispatchSystem
	journal *memJournal
}

func newHarness(t *testing.T, disabledWorlds ...string) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	bundled := fstest.MapFS{
		"talismans/common/haste.yml":    {Data: []byte(hasteDoc)},
		"talismans/legendary/heart.yml": {Data: []byte(heartDoc)},
	}
	reg := talisman.NewRegistry(dir, bundled, nil, log)
	require.NoError(t, reg.Register(talisman.Definition{ID: "haste", Strength: talisman.Common, Attribute: "generic.attack_speed"}))
	require.NoError(t, reg.Register(talisman.Definition{ID: "heart", Strength: talisman.Legendary, Attribute: "generic.max_health"}))
	_, err := reg.Reload(context.Background())
	require.NoError(t, err)

	state := world.NewState()
	state.AddPlayer(world.NewPlayer("p1", "Alice", "world"))

	resolver := proxy.NewResolver(proxy.MustParseVersion("1.16.5"), state, proxy.Providers, log)
	attrs := proxy.MustResolve[proxy.AttributeProxy](resolver)

	slots, err := world.ParseSlotGroups([]string{"hotbar", "storage", "offhand"})
	require.NoError(t, err)

	bus := event.NewBus()
	journal := &memJournal{}
	tracker := NewEquipTracker(reg, slots, log)
	app := NewEffectApplicator(attrs, reg, tracker, state, disabledWorlds, journal, log)
	disp := NewEventDispatchSystem(bus, tracker, app, state, log)

	return &harness{
		t: t, dataDir: dir, reg: reg, state: state, bus: bus,
		tracker: tracker, app: app, disp: disp, journal: journal,
	}
}

func (h *harness) item(id string, level int) *world.ItemStack {
	h.t.Helper()
	tal, ok := h.reg.Get(id)
	require.True(h.t, ok, id)
	l, ok := tal.Level(level)
	require.True(h.t, ok, "%s level %d", id, level)
	return talisman.NewItem(l, "p1")
}

func (h *harness) player(id string) *world.PlayerInfo {
	p, ok := h.state.Player(id)
	require.True(h.t, ok, id)
	return p
}

// set places item in the player's slot and runs one dispatch turn.
func (h *harness) set(playerID string, slot world.Slot, item *world.ItemStack) {
	p := h.player(playerID)
	old := p.Inv.Set(slot, item)
	event.Emit(h.bus, event.InventoryChanged{PlayerID: playerID, Slot: slot, Old: old, New: p.Inv.Get(slot)})
	h.disp.Update(0)
}

func (h *harness) moveTo(playerID, to string) {
	p := h.player(playerID)
	from := p.World
	p.World = to
	event.Emit(h.bus, event.WorldChanged{PlayerID: playerID, From: from, To: to})
	h.disp.Update(0)
}

func (h *harness) mods(playerID, key string) []uuid.UUID {
	var out []uuid.UUID
	for _, m := range h.player(playerID).Attribute(key).Modifiers() {
		out = append(out, m.UUID)
	}
	return out
}
