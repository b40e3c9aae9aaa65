package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/talismans/server/internal/core/event"
	coresys "github.com/talismans/server/internal/core/system"
	"github.com/talismans/server/internal/world"
)

// PlayerSource looks up online players. *world.State implements it.
type PlayerSource interface {
	Player(id string) (*world.PlayerInfo, bool)
}

// EventDispatchSystem drains host notifications in arrival order and routes
// them through the tracker and the applicator. Phase 0 (Dispatch).
type EventDispatchSystem struct {
	bus        *event.Bus
	tracker    *EquipTracker
	applicator *EffectApplicator
	players    PlayerSource
	log        *zap.Logger

	delivered uint64
}

func NewEventDispatchSystem(bus *event.Bus, tracker *EquipTracker, applicator *EffectApplicator, players PlayerSource, log *zap.Logger) *EventDispatchSystem {
	s := &EventDispatchSystem{
		bus:        bus,
		tracker:    tracker,
		applicator: applicator,
		players:    players,
		log:        log,
	}
	event.Subscribe(bus, s.onInventoryChanged)
	event.Subscribe(bus, s.onWorldChanged)
	event.Subscribe(bus, s.onPlayerJoined)
	event.Subscribe(bus, s.onPlayerDisconnected)
	event.Subscribe(bus, s.onTalismansReloaded)
	return s
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.delivered += uint64(s.bus.DispatchAll())
}

// Delivered returns the number of notifications handled so far.
func (s *EventDispatchSystem) Delivered() uint64 {
	return s.delivered
}

func (s *EventDispatchSystem) applyAll(trs []Transition) {
	for _, tr := range trs {
		s.applicator.Apply(tr)
	}
}

func (s *EventDispatchSystem) onInventoryChanged(ev event.InventoryChanged) {
	s.applyAll(s.tracker.Observe(ev))
}

func (s *EventDispatchSystem) onWorldChanged(ev event.WorldChanged) {
	s.applicator.OnWorldChange(ev.PlayerID, ev.From, ev.To)
}

func (s *EventDispatchSystem) onPlayerJoined(ev event.PlayerJoined) {
	s.applicator.SetWorld(ev.PlayerID, ev.World)
	p, ok := s.players.Player(ev.PlayerID)
	if !ok {
		return
	}
	s.applyAll(s.tracker.Resync(ev.PlayerID, p.Inv))
}

func (s *EventDispatchSystem) onPlayerDisconnected(ev event.PlayerDisconnected) {
	s.applyAll(s.tracker.Disconnect(ev.PlayerID))
	s.applicator.Forget(ev.PlayerID)
}

func (s *EventDispatchSystem) onTalismansReloaded(ev event.TalismansReloaded) {
	ids := make(map[string]struct{})
	for _, id := range s.tracker.Players() {
		ids[id] = struct{}{}
	}
	for _, id := range s.applicator.Players() {
		ids[id] = struct{}{}
	}
	for _, id := range sortedKeys(ids) {
		if p, ok := s.players.Player(id); ok {
			s.applyAll(s.tracker.Resync(id, p.Inv))
		}
		s.applicator.Refresh(id)
	}
	s.log.Info("talisman 效果已更新", zap.Uint64("version", ev.Version), zap.Int("players", len(ids)))
}
