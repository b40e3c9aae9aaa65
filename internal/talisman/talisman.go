package talisman

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talismans/server/internal/data"
	"github.com/talismans/server/internal/world"
)

var (
	// ErrNotDerived is returned when a level's modifier is read before the
	// registry has computed it.
	ErrNotDerived = errors.New("talisman: level modifier not derived")
	// ErrUnknownStrength is returned for a strength name outside the fixed set.
	ErrUnknownStrength = errors.New("talisman: unknown strength")
)

// Strength partitions talisman documents on disk. It carries no gameplay meaning.
type Strength string

const (
	Common    Strength = "common"
	Uncommon  Strength = "uncommon"
	Rare      Strength = "rare"
	Epic      Strength = "epic"
	Legendary Strength = "legendary"
	Special   Strength = "special"
)

// ParseStrength accepts a strength name case-insensitively.
func ParseStrength(s string) (Strength, error) {
	st := Strength(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case Common, Uncommon, Rare, Epic, Legendary, Special:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrength, s)
}

// DeriveFunc computes a level's modifier from its configuration.
// It runs once per level on every reload.
type DeriveFunc func(t *Talisman, lvl *Level) (world.Modifier, error)

// Definition is the code-side half of a talisman: everything that is not in
// its configuration document.
type Definition struct {
	ID        string
	Strength  Strength
	Attribute string     // attribute key in canonical form ("generic.attack_speed")
	Derive    DeriveFunc // nil = registry default
}

// Disguise is the cosmetic form shown to other players.
type Disguise struct {
	Material string
	Name     string
	Lore     []string
}

// Talisman is one loaded talisman. Instances are immutable once published
// and replaced wholesale on reload.
type Talisman struct {
	ID             string
	Strength       Strength
	Attribute      string
	Name           string
	Description    string
	Enabled        bool
	DisabledWorlds []string
	Disguise       Disguise
	Config         *data.Document

	levels []*Level // ascending by Number
}

// Levels returns the levels in ascending order.
func (t *Talisman) Levels() []*Level {
	return append([]*Level(nil), t.levels...)
}

// Level looks up a level by number.
func (t *Talisman) Level(n int) (*Level, bool) {
	for _, l := range t.levels {
		if l.Number == n {
			return l, true
		}
	}
	return nil, false
}

// MaxLevel returns the highest configured level number.
func (t *Talisman) MaxLevel() int {
	if len(t.levels) == 0 {
		return 0
	}
	return t.levels[len(t.levels)-1].Number
}

// DisabledIn reports whether the talisman's own configuration turns it off in worldName.
func (t *Talisman) DisabledIn(worldName string) bool {
	for _, w := range t.DisabledWorlds {
		if w == worldName {
			return true
		}
	}
	return false
}

// Level is one tier of a talisman with its own modifier tag.
type Level struct {
	Talisman *Talisman
	Number   int
	UUID     uuid.UUID
	Config   data.Section // scoped to levels.<n>

	modifier *world.Modifier
}

// Key names the level as "<talisman>_<n>".
func (l *Level) Key() string {
	return fmt.Sprintf("%s_%d", l.Talisman.ID, l.Number)
}

// Modifier returns the derived modifier.
func (l *Level) Modifier() (world.Modifier, error) {
	if l.modifier == nil {
		return world.Modifier{}, fmt.Errorf("%s: %w", l.Key(), ErrNotDerived)
	}
	return *l.modifier, nil
}

// levelNamespace is the UUIDv5 namespace for level tags.
var levelNamespace = uuid.MustParse("6f1c0b4e-3a57-4b8e-9d0a-2a4e3c1d7b90")

// LevelUUID is the stable modifier tag of a talisman level. The same
// (id, level) yields the same UUID across restarts and reloads.
func LevelUUID(id string, level int) uuid.UUID {
	return uuid.NewSHA1(levelNamespace, []byte(fmt.Sprintf("talismans:%s:%d", id, level)))
}
