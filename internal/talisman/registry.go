package talisman

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talismans/server/internal/data"
	"github.com/talismans/server/internal/scripting"
	"github.com/talismans/server/internal/world"
)

var (
	// ErrDuplicateTalisman is returned when two definitions share an ID.
	ErrDuplicateTalisman = errors.New("talisman: duplicate id")
	// ErrNoLevels is returned for a document without a usable levels section.
	ErrNoLevels = errors.New("talisman: no levels configured")
	// ErrNoAmount is returned when neither the script nor the level config yields an amount.
	ErrNoAmount = errors.New("talisman: no modifier amount")
)

// AmountScript computes scripted modifier amounts. *scripting.Engine implements it.
type AmountScript interface {
	ModifierAmount(ctx scripting.ModifierContext) (float64, bool)
}

// ReloadReport summarises one reload.
type ReloadReport struct {
	Version  uint64
	Loaded   []string // talisman IDs published
	Changed  []string // user documents rewritten by reconciliation
	Fallback []string // malformed user documents; bundled defaults used
	Failed   []string // talismans left out of the snapshot
}

type snapshot struct {
	version uint64
	order   []*Talisman
	byID    map[string]*Talisman
	byUUID  map[uuid.UUID]*Level
}

var emptySnapshot = &snapshot{byID: map[string]*Talisman{}, byUUID: map[uuid.UUID]*Level{}}

// Registry owns the talisman definitions and the currently published set.
// Reload builds a complete new set off the game loop and publishes it with a
// single pointer swap; lookups are lock-free.
type Registry struct {
	dataDir string
	bundled fs.FS
	script  AmountScript
	log     *zap.Logger

	mu      sync.Mutex // guards defs and serialises Reload
	defs    []Definition
	version uint64

	snap atomic.Pointer[snapshot]
}

// NewRegistry creates an empty registry. script may be nil.
func NewRegistry(dataDir string, bundled fs.FS, script AmountScript, log *zap.Logger) *Registry {
	r := &Registry{
		dataDir: dataDir,
		bundled: bundled,
		script:  script,
		log:     log,
	}
	r.snap.Store(emptySnapshot)
	return r
}

// Register adds a definition. It becomes visible on the next Reload.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("talisman: empty id")
	}
	if _, err := ParseStrength(string(def.Strength)); err != nil {
		return fmt.Errorf("%s: %w", def.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.defs {
		if d.ID == def.ID {
			return fmt.Errorf("%s: %w", def.ID, ErrDuplicateTalisman)
		}
	}
	r.defs = append(r.defs, def)
	return nil
}

// Reload reconciles every registered talisman's document, derives all
// modifiers, and publishes the result. A talisman whose user document is
// malformed runs on its bundled defaults. On context cancellation nothing is
// published.
func (r *Registry) Reload(ctx context.Context) (ReloadReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report ReloadReport
	next := &snapshot{
		byID:   make(map[string]*Talisman, len(r.defs)),
		byUUID: make(map[uuid.UUID]*Level),
	}

	for _, def := range r.defs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reload talismans: %w", err)
		}

		t, changed, fallback, err := r.load(def)
		if changed {
			report.Changed = append(report.Changed, def.ID)
		}
		if fallback {
			report.Fallback = append(report.Fallback, def.ID)
		}
		if err != nil {
			r.log.Error("talisman 載入失敗", zap.String("talisman", def.ID), zap.Error(err))
			report.Failed = append(report.Failed, def.ID)
			continue
		}

		next.order = append(next.order, t)
		next.byID[t.ID] = t
		for _, l := range t.levels {
			next.byUUID[l.UUID] = l
		}
		report.Loaded = append(report.Loaded, t.ID)
	}

	r.version++
	next.version = r.version
	report.Version = next.version
	r.snap.Store(next)

	r.log.Info("talismans 已載入",
		zap.Uint64("version", next.version),
		zap.Int("loaded", len(report.Loaded)),
		zap.Int("changed", len(report.Changed)),
		zap.Int("fallback", len(report.Fallback)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// load builds one talisman. The user document is tried first, then the bundled one.
func (r *Registry) load(def Definition) (t *Talisman, changed, fallback bool, err error) {
	name := data.TalismanPath(string(def.Strength), def.ID)
	schema, err := data.LoadBundled(r.bundled, name)
	if err != nil {
		return nil, false, false, err
	}

	data.ExtractDefault(r.bundled, name, r.dataDir, r.log)
	userPath := filepath.Join(r.dataDir, filepath.FromSlash(name))

	doc, changed, err := data.Reconcile(schema, userPath, r.log)
	if err != nil {
		r.log.Warn("talisman 設定檔無效，使用預設值",
			zap.String("talisman", def.ID),
			zap.String("path", userPath),
			zap.Error(err))
		doc, fallback = schema.Clone(), true
	}

	t, err = r.build(def, doc)
	if err != nil && !fallback {
		r.log.Warn("talisman 設定無法使用，使用預設值",
			zap.String("talisman", def.ID),
			zap.Error(err))
		fallback = true
		t, err = r.build(def, schema.Clone())
	}
	return t, changed, fallback, err
}

func (r *Registry) build(def Definition, doc *data.Document) (*Talisman, error) {
	v := doc.View()
	t := &Talisman{
		ID:             def.ID,
		Strength:       def.Strength,
		Attribute:      def.Attribute,
		Name:           v.StringOr("name", def.ID),
		Description:    v.String("description"),
		Enabled:        v.BoolOr("general-config.enabled", true),
		DisabledWorlds: v.Strings("general-config.disabled-in-worlds"),
		Disguise: Disguise{
			Material: v.String("disguise.material"),
			Name:     v.String("disguise.name"),
			Lore:     v.Strings("disguise.lore"),
		},
		Config: doc,
	}

	levels := v.Sub("levels")
	seen := make(map[int]string)
	for _, k := range levels.Keys() {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			r.log.Warn("忽略無效的 talisman 等級", zap.String("talisman", def.ID), zap.String("level", k))
			continue
		}
		if first, dup := seen[n]; dup {
			r.log.Warn("忽略重複的 talisman 等級",
				zap.String("talisman", def.ID),
				zap.String("level", k),
				zap.String("kept", first))
			continue
		}
		seen[n] = k
		t.levels = append(t.levels, &Level{
			Talisman: t,
			Number:   n,
			UUID:     LevelUUID(def.ID, n),
			Config:   levels.Sub(k),
		})
	}
	if len(t.levels) == 0 {
		return nil, fmt.Errorf("%s: %w", def.ID, ErrNoLevels)
	}
	sort.Slice(t.levels, func(i, j int) bool { return t.levels[i].Number < t.levels[j].Number })

	derive := def.Derive
	if derive == nil {
		derive = r.derive
	}
	for _, l := range t.levels {
		m, err := derive(t, l)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", l.Key(), err)
		}
		m.UUID = l.UUID
		l.modifier = &m
	}
	return t, nil
}

// derive is the default DeriveFunc: Lua modifier_amount first, then the
// level's percentage-bonus/100 or flat amount.
func (r *Registry) derive(t *Talisman, l *Level) (world.Modifier, error) {
	op, err := world.ParseOperation(l.Config.StringOr("operation", string(world.OpMultiplyScalar1)))
	if err != nil {
		return world.Modifier{}, err
	}

	amount, ok := 0.0, false
	if r.script != nil {
		amount, ok = r.script.ModifierAmount(scripting.ModifierContext{
			Talisman:  t.ID,
			Level:     l.Number,
			Operation: string(op),
			Config:    l.Config.Values(),
		})
	}
	if !ok {
		amount, ok = FormulaAmount(l.Config)
	}
	if !ok {
		return world.Modifier{}, ErrNoAmount
	}
	return world.Modifier{
		UUID:      l.UUID,
		Name:      "talismans:" + l.Key(),
		Amount:    amount,
		Operation: op,
	}, nil
}

// FormulaAmount is the built-in amount: percentage-bonus/100, else amount.
func FormulaAmount(cfg data.Section) (float64, bool) {
	if cfg.Has("percentage-bonus") {
		return cfg.Float("percentage-bonus") / 100, true
	}
	if cfg.Has("amount") {
		return cfg.Float("amount"), true
	}
	return 0, false
}

// Get returns a published talisman.
func (r *Registry) Get(id string) (*Talisman, bool) {
	t, ok := r.snap.Load().byID[id]
	return t, ok
}

// All returns the published talismans in registration order.
func (r *Registry) All() []*Talisman {
	return append([]*Talisman(nil), r.snap.Load().order...)
}

// LevelByUUID finds the level owning a modifier tag.
func (r *Registry) LevelByUUID(id uuid.UUID) (*Level, bool) {
	l, ok := r.snap.Load().byUUID[id]
	return l, ok
}

// LevelOf resolves the level an item represents. Items naming an unknown or
// disabled talisman, or an unknown level, do not resolve.
func (r *Registry) LevelOf(item *world.ItemStack) (*Level, bool) {
	ref, ok := RefOf(item)
	if !ok {
		return nil, false
	}
	t, ok := r.Get(ref.ID)
	if !ok || !t.Enabled {
		return nil, false
	}
	return t.Level(ref.Level)
}

// Version increments on every published reload; 0 before the first.
func (r *Registry) Version() uint64 {
	return r.snap.Load().version
}

// Paths lists the user document paths of registered talismans, for the watcher.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, filepath.Join(r.dataDir, filepath.FromSlash(data.TalismanPath(string(d.Strength), d.ID))))
	}
	return out
}
