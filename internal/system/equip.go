package system

import (
	"sort"

	"go.uber.org/zap"

	"github.com/talismans/server/internal/core/event"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

// LevelSource resolves the talisman level an item stands for.
// *talisman.Registry implements it.
type LevelSource interface {
	LevelOf(item *world.ItemStack) (*talisman.Level, bool)
}

// TransitionKind classifies an equip-state change.
type TransitionKind int

const (
	Equip TransitionKind = iota + 1
	Unequip
	LevelChange
)

func (k TransitionKind) String() string {
	switch k {
	case Equip:
		return "equip"
	case Unequip:
		return "unequip"
	case LevelChange:
		return "level_change"
	}
	return "unknown"
}

// Transition is one change of a (player, talisman) equip state.
// From is 0 for Equip, To is 0 for Unequip.
type Transition struct {
	PlayerID string
	Talisman string
	Kind     TransitionKind
	From     int
	To       int
}

// EquippedState is the tracked state of one (player, talisman) pair.
type EquippedState struct {
	Active bool
	Level  int
}

type playerEquip struct {
	slots  map[world.Slot]talisman.ItemRef // qualifying slots holding a talisman
	active map[string]int                  // talisman ID → effective level
}

// EquipTracker derives equip/unequip/level-change transitions from slot
// updates. The effective level of a talisman is the highest level present in
// any qualifying slot. Game loop only.
type EquipTracker struct {
	levels    LevelSource
	qualifies world.SlotSet
	players   map[string]*playerEquip
	log       *zap.Logger
}

func NewEquipTracker(levels LevelSource, qualifying world.SlotSet, log *zap.Logger) *EquipTracker {
	return &EquipTracker{
		levels:    levels,
		qualifies: qualifying,
		players:   make(map[string]*playerEquip),
		log:       log,
	}
}

// Observe applies one slot update and returns the resulting transitions.
// Updates to non-qualifying slots and same-level updates produce none.
func (t *EquipTracker) Observe(ev event.InventoryChanged) []Transition {
	if !t.qualifies.Contains(ev.Slot) {
		return nil
	}
	pe := t.player(ev.PlayerID)

	touched := make(map[string]struct{}, 2)
	if prev, ok := pe.slots[ev.Slot]; ok {
		touched[prev.ID] = struct{}{}
		delete(pe.slots, ev.Slot)
	}
	if lvl, ok := t.levels.LevelOf(ev.New); ok {
		ref := talisman.ItemRef{ID: lvl.Talisman.ID, Level: lvl.Number}
		pe.slots[ev.Slot] = ref
		touched[ref.ID] = struct{}{}
	}

	out := t.settle(ev.PlayerID, pe, sortedKeys(touched))
	t.dropIfIdle(ev.PlayerID, pe)
	return out
}

// Resync rescans every qualifying slot of inv against the current registry.
// Used when a player joins and after a reload, when levels may have appeared,
// disappeared or been disabled.
func (t *EquipTracker) Resync(playerID string, inv *world.Inventory) []Transition {
	pe := t.player(playerID)

	touched := make(map[string]struct{})
	for _, ref := range pe.slots {
		touched[ref.ID] = struct{}{}
	}
	for id := range pe.active {
		touched[id] = struct{}{}
	}

	pe.slots = make(map[world.Slot]talisman.ItemRef)
	if inv != nil {
		inv.Each(func(slot world.Slot, item *world.ItemStack) {
			if !t.qualifies.Contains(slot) {
				return
			}
			lvl, ok := t.levels.LevelOf(item)
			if !ok {
				return
			}
			pe.slots[slot] = talisman.ItemRef{ID: lvl.Talisman.ID, Level: lvl.Number}
			touched[lvl.Talisman.ID] = struct{}{}
		})
	}

	out := t.settle(playerID, pe, sortedKeys(touched))
	t.dropIfIdle(playerID, pe)
	return out
}

// Disconnect returns an Unequip for every active talisman of the player and
// forgets the player entirely.
func (t *EquipTracker) Disconnect(playerID string) []Transition {
	pe, ok := t.players[playerID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(pe.active))
	for id := range pe.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Transition, 0, len(ids))
	for _, id := range ids {
		out = append(out, Transition{PlayerID: playerID, Talisman: id, Kind: Unequip, From: pe.active[id]})
	}
	delete(t.players, playerID)
	return out
}

// State returns the equip state of a (player, talisman) pair.
func (t *EquipTracker) State(playerID, talismanID string) EquippedState {
	pe, ok := t.players[playerID]
	if !ok {
		return EquippedState{}
	}
	lvl, ok := pe.active[talismanID]
	return EquippedState{Active: ok, Level: lvl}
}

// ActiveLevels returns a copy of the player's active talisman levels.
func (t *EquipTracker) ActiveLevels(playerID string) map[string]int {
	pe, ok := t.players[playerID]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(pe.active))
	for id, lvl := range pe.active {
		out[id] = lvl
	}
	return out
}

// Players lists tracked players in ID order.
func (t *EquipTracker) Players() []string {
	ids := make([]string, 0, len(t.players))
	for id := range t.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *EquipTracker) player(id string) *playerEquip {
	pe, ok := t.players[id]
	if !ok {
		pe = &playerEquip{
			slots:  make(map[world.Slot]talisman.ItemRef),
			active: make(map[string]int),
		}
		t.players[id] = pe
	}
	return pe
}

func (t *EquipTracker) dropIfIdle(id string, pe *playerEquip) {
	if len(pe.slots) == 0 && len(pe.active) == 0 {
		delete(t.players, id)
	}
}

// settle recomputes the effective level of each talisman in ids and emits
// the transitions needed to reach it.
func (t *EquipTracker) settle(playerID string, pe *playerEquip, ids []string) []Transition {
	var out []Transition
	for _, id := range ids {
		want := 0
		for _, ref := range pe.slots {
			if ref.ID == id && ref.Level > want {
				want = ref.Level
			}
		}
		have, active := pe.active[id]

		var tr Transition
		switch {
		case !active && want == 0:
			continue
		case !active:
			tr = Transition{Kind: Equip, To: want}
			pe.active[id] = want
		case want == 0:
			tr = Transition{Kind: Unequip, From: have}
			delete(pe.active, id)
		case want != have:
			tr = Transition{Kind: LevelChange, From: have, To: want}
			pe.active[id] = want
		default:
			continue
		}
		tr.PlayerID, tr.Talisman = playerID, id
		t.log.Debug("talisman transition",
			zap.String("player", playerID),
			zap.String("talisman", id),
			zap.Stringer("kind", tr.Kind),
			zap.Int("from", tr.From),
			zap.Int("to", tr.To))
		out = append(out, tr)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
