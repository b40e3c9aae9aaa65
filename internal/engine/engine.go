// Package engine wires the talisman components together behind the entry
// points a host adapter calls: host notifications, packet interception,
// reload and the game-loop tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talismans/server/internal/config"
	"github.com/talismans/server/internal/core/event"
	coresys "github.com/talismans/server/internal/core/system"
	"github.com/talismans/server/internal/data"
	"github.com/talismans/server/internal/display"
	"github.com/talismans/server/internal/handler"
	"github.com/talismans/server/internal/net/packet"
	"github.com/talismans/server/internal/persist"
	"github.com/talismans/server/internal/proxy"
	"github.com/talismans/server/internal/scripting"
	"github.com/talismans/server/internal/system"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

// ErrJournalDisabled is returned by JournalRepo when journal.enabled is false.
var ErrJournalDisabled = errors.New("engine: journal disabled")

// journalStatsInterval is how often, in ticks, journal losses are reported.
const journalStatsInterval = 600

// Options configures New. Zero fields take defaults.
type Options struct {
	Config      *config.Config
	State       *world.State          // host model; a fresh one if nil
	Definitions []talisman.Definition // talisman.Builtins() if nil
	Bundled     fs.FS                 // data.Bundled() if nil
	Log         *zap.Logger
}

// Engine owns every component. Host notification methods may be called from
// any goroutine; Tick, Dispatch, Outbound and Inbound belong to the game loop.
type Engine struct {
	cfg *config.Config
	log *zap.Logger

	state    *world.State
	resolver *proxy.Resolver
	lua      *scripting.Engine
	registry *talisman.Registry

	bus        *event.Bus
	tracker    *system.EquipTracker
	applicator *system.EffectApplicator
	dispatch   *system.EventDispatchSystem
	runner     *coresys.Runner
	watcher    *system.ReloadWatcher

	db      *persist.DB
	journal *persist.Journal

	overlay *display.Overlay
	packets *packet.Registry
}

// New builds the engine and performs the initial talisman load. A capability
// without exactly one provider for the host version is fatal.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	state := opts.State
	if state == nil {
		state = world.NewState()
	}
	defs := opts.Definitions
	if defs == nil {
		defs = talisman.Builtins()
	}
	bundled := opts.Bundled
	if bundled == nil {
		bundled = data.Bundled()
	}

	version, err := proxy.ParseVersion(cfg.Server.HostVersion)
	if err != nil {
		return nil, fmt.Errorf("host version: %w", err)
	}
	resolver := proxy.NewResolver(version, state, proxy.Providers, log)
	if err := resolver.Preflight(proxy.Capabilities()...); err != nil {
		return nil, fmt.Errorf("capabilities for %s: %w", version, err)
	}

	e := &Engine{cfg: cfg, log: log, state: state, resolver: resolver}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	e.lua, err = scripting.NewEngine(cfg.Server.ScriptsDir, log)
	if err != nil {
		return nil, fmt.Errorf("lua engine: %w", err)
	}

	e.registry = talisman.NewRegistry(cfg.Server.DataDir, bundled, e.lua, log)
	for _, d := range defs {
		if err := e.registry.Register(d); err != nil {
			return nil, err
		}
	}
	report, err := e.registry.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("load talismans: %w", err)
	}
	if len(report.Failed) > 0 {
		log.Error("talisman 載入失敗", zap.Strings("talismans", report.Failed))
	}

	var sink system.EffectJournal
	if cfg.Journal.Enabled {
		e.db, err = persist.NewDB(ctx, cfg.Journal, log)
		if err != nil {
			return nil, fmt.Errorf("journal database: %w", err)
		}
		if err := persist.RunMigrations(ctx, e.db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		e.journal = persist.NewJournal(persist.NewJournalRepo(e.db),
			cfg.Journal.Buffer, cfg.Journal.BatchSize, cfg.Journal.FlushInterval, log)
		sink = e.journal
	}

	slots, err := world.ParseSlotGroups(cfg.Effects.QualifyingSlots)
	if err != nil {
		return nil, fmt.Errorf("effects.qualifying_slots: %w", err)
	}

	e.bus = event.NewBus()
	e.tracker = system.NewEquipTracker(e.registry, slots, log)
	e.applicator = system.NewEffectApplicator(
		proxy.MustResolve[proxy.AttributeProxy](resolver),
		e.registry, e.tracker, state, cfg.Effects.DisabledWorlds, sink, log)
	e.dispatch = system.NewEventDispatchSystem(e.bus, e.tracker, e.applicator, state, log)
	e.watcher = system.NewReloadWatcher(e.registry, e.bus, cfg.Reload.Debounce, cfg.Reload.Watch, log)

	e.runner = coresys.NewRunner()
	e.runner.Register(e.dispatch)
	if e.journal != nil {
		e.runner.Register(system.NewJournalStatsSystem(e.journal, log, journalStatsInterval))
	}

	if cfg.Display.Enabled {
		e.overlay, err = display.NewOverlay(e.registry, cfg.Display.Secret, cfg.Display.Language, log)
		if err != nil {
			return nil, fmt.Errorf("display overlay: %w", err)
		}
		e.packets = packet.NewRegistry(log)
		handler.RegisterAll(e.packets, &handler.Deps{
			Overlay:     e.overlay,
			Trades:      proxy.MustResolve[proxy.VillagerTradeProxy](resolver),
			Inventories: proxy.MustResolve[proxy.OpenInventoryProxy](resolver),
			Log:         log,
		})
	}

	ok = true
	log.Info("talisman engine ready",
		zap.Stringer("host", version),
		zap.Int("talismans", len(report.Loaded)),
		zap.Bool("journal", e.journal != nil),
		zap.Bool("display", e.overlay != nil))
	return e, nil
}

// Run serves the maintenance goroutines (reload watcher, journal flusher)
// until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.watcher.Run(ctx) })
	if e.journal != nil {
		g.Go(func() error { return e.journal.Run(ctx) })
	}
	return g.Wait()
}

// Reload requests a reload on the maintenance goroutine. The game loop picks
// up the new snapshot in a later dispatch turn.
func (e *Engine) Reload() {
	e.watcher.Trigger()
}

// InventoryChanged reports one slot update.
func (e *Engine) InventoryChanged(playerID string, slot world.Slot, oldItem, newItem *world.ItemStack) {
	event.Emit(e.bus, event.InventoryChanged{PlayerID: playerID, Slot: slot, Old: oldItem, New: newItem})
}

// WorldChanged reports a player moving between worlds.
func (e *Engine) WorldChanged(playerID, from, to string) {
	event.Emit(e.bus, event.WorldChanged{PlayerID: playerID, From: from, To: to})
}

// PlayerJoined reports a player coming online; their inventory is scanned.
func (e *Engine) PlayerJoined(playerID, worldName string) {
	event.Emit(e.bus, event.PlayerJoined{PlayerID: playerID, World: worldName})
}

// PlayerQuit reports a disconnect. Every modifier of the player is removed
// in the next dispatch turn, before any later notification is seen.
func (e *Engine) PlayerQuit(playerID string) {
	event.Emit(e.bus, event.PlayerDisconnected{PlayerID: playerID})
}

// Tick runs one game-loop tick.
func (e *Engine) Tick(dt time.Duration) {
	e.runner.Tick(dt)
}

// Dispatch runs a dispatch turn only, draining pending notifications.
func (e *Engine) Dispatch() {
	e.runner.TickPhase(coresys.PhaseDispatch, 0)
}

// Outbound runs the interceptors for a payload about to be sent to playerID.
// A no-op when the display overlay is disabled.
func (e *Engine) Outbound(playerID string, p packet.Payload) error {
	if e.packets == nil {
		return nil
	}
	return e.packets.Dispatch(packet.Outbound, playerID, p)
}

// Inbound runs the interceptors for a payload received from playerID.
func (e *Engine) Inbound(playerID string, p packet.Payload) error {
	if e.packets == nil {
		return nil
	}
	return e.packets.Dispatch(packet.Inbound, playerID, p)
}

func (e *Engine) State() *world.State { return e.state }

func (e *Engine) Registry() *talisman.Registry { return e.registry }

func (e *Engine) Resolver() *proxy.Resolver { return e.resolver }

func (e *Engine) Tracker() *system.EquipTracker { return e.tracker }

func (e *Engine) Applicator() *system.EffectApplicator { return e.applicator }

// Overlay is nil when the display overlay is disabled.
func (e *Engine) Overlay() *display.Overlay { return e.overlay }

// Journal is nil when the effect journal is disabled.
func (e *Engine) Journal() *persist.Journal { return e.journal }

// JournalRepo reads back the effect journal.
func (e *Engine) JournalRepo() (*persist.JournalRepo, error) {
	if e.db == nil {
		return nil, ErrJournalDisabled
	}
	return persist.NewJournalRepo(e.db), nil
}

// Close releases the Lua VM and the journal database. Call after Run returns.
func (e *Engine) Close() {
	if e.lua != nil {
		e.lua.Close()
		e.lua = nil
	}
	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
}
