package system

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/talismans/server/internal/persist"
	"github.com/talismans/server/internal/proxy"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

// TalismanSource looks up published talismans. *talisman.Registry implements it.
type TalismanSource interface {
	Get(id string) (*talisman.Talisman, bool)
}

// WorldLocator reports the world a player is in. *world.State implements it.
type WorldLocator interface {
	WorldOf(playerID string) (string, bool)
}

// EffectJournal receives every modifier add and remove. Must not block.
// *persist.Journal implements it.
type EffectJournal interface {
	Record(e persist.JournalEntry)
}

type appliedEffect struct {
	attribute string
	level     int
	mod       world.Modifier
}

// EffectApplicator keeps each player's attribute modifiers equal to what the
// equip state and current world call for. For a (player, talisman) pair the
// desired set is the active level's modifier when equipped and the world is
// allowed, and empty otherwise; sync applies the difference. Game loop only.
type EffectApplicator struct {
	attrs    proxy.AttributeProxy
	talisman TalismanSource
	tracker  *EquipTracker
	locator  WorldLocator
	disabled map[string]struct{}
	journal  EffectJournal
	log      *zap.Logger

	worlds  map[string]string                   // player → current world
	applied map[string]map[string]appliedEffect // player → talisman ID → applied
	now     func() time.Time
}

func NewEffectApplicator(
	attrs proxy.AttributeProxy,
	talismans TalismanSource,
	tracker *EquipTracker,
	locator WorldLocator,
	disabledWorlds []string,
	journal EffectJournal,
	log *zap.Logger,
) *EffectApplicator {
	disabled := make(map[string]struct{}, len(disabledWorlds))
	for _, w := range disabledWorlds {
		disabled[w] = struct{}{}
	}
	return &EffectApplicator{
		attrs:    attrs,
		talisman: talismans,
		tracker:  tracker,
		locator:  locator,
		disabled: disabled,
		journal:  journal,
		log:      log,
		worlds:   make(map[string]string),
		applied:  make(map[string]map[string]appliedEffect),
		now:      time.Now,
	}
}

// Apply brings the pair named by a transition in line with the tracker.
func (a *EffectApplicator) Apply(tr Transition) {
	a.sync(tr.PlayerID, tr.Talisman)
}

// SetWorld records the world a player is in without syncing.
func (a *EffectApplicator) SetWorld(playerID, worldName string) {
	a.worlds[playerID] = worldName
}

// OnWorldChange re-evaluates every talisman of the player in the new world.
func (a *EffectApplicator) OnWorldChange(playerID, from, to string) {
	a.worlds[playerID] = to
	a.log.Debug("world changed", zap.String("player", playerID), zap.String("from", from), zap.String("to", to))
	a.Refresh(playerID)
}

// Refresh re-evaluates every talisman the player has active or applied.
// Called after a reload so changed amounts and disabled talismans take effect.
func (a *EffectApplicator) Refresh(playerID string) {
	ids := make(map[string]struct{})
	for id := range a.tracker.ActiveLevels(playerID) {
		ids[id] = struct{}{}
	}
	for id := range a.applied[playerID] {
		ids[id] = struct{}{}
	}
	for _, id := range sortedKeys(ids) {
		a.sync(playerID, id)
	}
}

// Forget removes every modifier still applied to the player and drops all
// per-player state.
func (a *EffectApplicator) Forget(playerID string) {
	applied := a.applied[playerID]
	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a.remove(playerID, id, applied[id])
	}
	delete(a.applied, playerID)
	delete(a.worlds, playerID)
}

// Applied returns the modifier currently applied for a pair.
func (a *EffectApplicator) Applied(playerID, talismanID string) (world.Modifier, bool) {
	e, ok := a.applied[playerID][talismanID]
	return e.mod, ok
}

// Players lists players with at least one applied modifier.
func (a *EffectApplicator) Players() []string {
	ids := make([]string, 0, len(a.applied))
	for id := range a.applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *EffectApplicator) sync(playerID, talismanID string) {
	want, ok := a.desired(playerID, talismanID)
	cur, has := a.applied[playerID][talismanID]

	if has && ok && cur == want {
		return
	}
	if has {
		a.remove(playerID, talismanID, cur)
	}
	if ok {
		a.add(playerID, talismanID, want)
	}
}

// desired computes the modifier that should be applied for a pair.
func (a *EffectApplicator) desired(playerID, talismanID string) (appliedEffect, bool) {
	st := a.tracker.State(playerID, talismanID)
	if !st.Active {
		return appliedEffect{}, false
	}
	t, ok := a.talisman.Get(talismanID)
	if !ok || !t.Enabled {
		return appliedEffect{}, false
	}
	if a.worldDisabled(t, a.worldOf(playerID)) {
		return appliedEffect{}, false
	}
	lvl, ok := t.Level(st.Level)
	if !ok {
		return appliedEffect{}, false
	}
	m, err := lvl.Modifier()
	if err != nil {
		a.log.Warn("talisman 修正值尚未計算", zap.String("talisman", lvl.Key()), zap.Error(err))
		return appliedEffect{}, false
	}
	return appliedEffect{attribute: t.Attribute, level: st.Level, mod: m}, true
}

func (a *EffectApplicator) worldOf(playerID string) string {
	if w, ok := a.worlds[playerID]; ok {
		return w
	}
	if a.locator != nil {
		if w, ok := a.locator.WorldOf(playerID); ok {
			a.worlds[playerID] = w
			return w
		}
	}
	return ""
}

func (a *EffectApplicator) worldDisabled(t *talisman.Talisman, worldName string) bool {
	if _, ok := a.disabled[worldName]; ok {
		return true
	}
	return t.DisabledIn(worldName)
}

func (a *EffectApplicator) add(playerID, talismanID string, e appliedEffect) {
	attr, ok := a.attrs.Attribute(playerID, e.attribute)
	if !ok {
		a.log.Debug("attribute unavailable", zap.String("player", playerID), zap.String("attribute", e.attribute))
		return
	}

	for _, m := range attr.Modifiers() {
		if m.UUID != e.mod.UUID {
			continue
		}
		// Already present on the host, e.g. restored with the player.
		if m == e.mod {
			a.track(playerID, talismanID, e)
			return
		}
		attr.RemoveModifier(m.UUID)
		break
	}

	if err := attr.AddModifier(e.mod); err != nil {
		if !errors.Is(err, world.ErrModifierApplied) {
			a.log.Error("add modifier failed",
				zap.String("player", playerID),
				zap.String("talisman", talismanID),
				zap.Error(err))
			return
		}
	}
	a.track(playerID, talismanID, e)
	a.record(playerID, talismanID, e, persist.ActionAdd)
}

func (a *EffectApplicator) remove(playerID, talismanID string, e appliedEffect) {
	delete(a.applied[playerID], talismanID)
	if len(a.applied[playerID]) == 0 {
		delete(a.applied, playerID)
	}

	attr, ok := a.attrs.Attribute(playerID, e.attribute)
	if !ok {
		return
	}
	if attr.RemoveModifier(e.mod.UUID) {
		a.record(playerID, talismanID, e, persist.ActionRemove)
	}
}

func (a *EffectApplicator) track(playerID, talismanID string, e appliedEffect) {
	m, ok := a.applied[playerID]
	if !ok {
		m = make(map[string]appliedEffect)
		a.applied[playerID] = m
	}
	m[talismanID] = e
}

func (a *EffectApplicator) record(playerID, talismanID string, e appliedEffect, action persist.Action) {
	if a.journal == nil {
		return
	}
	a.journal.Record(persist.JournalEntry{
		At:        a.now(),
		PlayerID:  playerID,
		Talisman:  talismanID,
		Level:     e.level,
		Modifier:  e.mod.UUID,
		Action:    action,
		Attribute: e.attribute,
		Amount:    e.mod.Amount,
		Operation: string(e.mod.Operation),
		World:     a.worlds[playerID],
	})
}
