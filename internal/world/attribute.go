package world

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrModifierApplied is returned when a modifier with the same UUID is already present.
var ErrModifierApplied = errors.New("modifier is already applied")

// Operation is how a modifier combines with the attribute value.
type Operation string

const (
	OpAddNumber       Operation = "add_number"
	OpAddScalar       Operation = "add_scalar"
	OpMultiplyScalar1 Operation = "multiply_scalar_1"
)

// ParseOperation accepts the configuration spelling of an operation
// (case-insensitive, '-' or '_' separated).
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch op {
	case OpAddNumber, OpAddScalar, OpMultiplyScalar1:
		return op, nil
	}
	return "", fmt.Errorf("unknown modifier operation %q", s)
}

// Modifier is a tagged adjustment to a numeric attribute.
type Modifier struct {
	UUID      uuid.UUID
	Name      string
	Amount    float64
	Operation Operation
}

// AttributeInstance is one per-player stat with its modifier list.
// Accessed only from the game loop goroutine.
type AttributeInstance struct {
	Key       string
	Base      float64
	modifiers []Modifier
}

// NewAttributeInstance creates an attribute with no modifiers.
func NewAttributeInstance(key string, base float64) *AttributeInstance {
	return &AttributeInstance{Key: key, Base: base}
}

// AddModifier appends m. Adding a UUID that is already present is an error,
// matching the host's behaviour.
func (a *AttributeInstance) AddModifier(m Modifier) error {
	for _, cur := range a.modifiers {
		if cur.UUID == m.UUID {
			return fmt.Errorf("%s %s: %w", a.Key, m.UUID, ErrModifierApplied)
		}
	}
	a.modifiers = append(a.modifiers, m)
	return nil
}

// RemoveModifier removes the modifier tagged id. Returns false if it was absent.
func (a *AttributeInstance) RemoveModifier(id uuid.UUID) bool {
	for i, cur := range a.modifiers {
		if cur.UUID == id {
			a.modifiers = append(a.modifiers[:i], a.modifiers[i+1:]...)
			return true
		}
	}
	return false
}

// Modifiers returns a copy of the modifier list in insertion order.
func (a *AttributeInstance) Modifiers() []Modifier {
	out := make([]Modifier, len(a.modifiers))
	copy(out, a.modifiers)
	return out
}

// Value folds the modifiers onto the base value:
// add_number first, then add_scalar summed, then each multiply_scalar_1 in turn.
func (a *AttributeInstance) Value() float64 {
	v := a.Base
	for _, m := range a.modifiers {
		if m.Operation == OpAddNumber {
			v += m.Amount
		}
	}
	scalar := 1.0
	for _, m := range a.modifiers {
		if m.Operation == OpAddScalar {
			scalar += m.Amount
		}
	}
	v *= scalar
	for _, m := range a.modifiers {
		if m.Operation == OpMultiplyScalar1 {
			v *= 1 + m.Amount
		}
	}
	return v
}

// defaultBases are the host's base values for the attributes talismans touch.
// Keys are the un-namespaced canonical form.
var defaultBases = map[string]float64{
	"generic.attack_speed":   4,
	"generic.movement_speed": 0.1,
	"generic.max_health":     20,
	"generic.armor":          0,
	"generic.attack_damage":  1,
	"generic.luck":           0,
}

// DefaultBase returns the host base value for an attribute key in any
// naming scheme ("minecraft:generic.attack_speed", "generic.attackSpeed", ...).
func DefaultBase(key string) float64 {
	return defaultBases[CanonicalAttributeKey(key)]
}

// CanonicalAttributeKey strips the namespace and converts camelCase segments
// to snake_case: "minecraft:generic.attackSpeed" → "generic.attack_speed".
func CanonicalAttributeKey(key string) string {
	key = strings.TrimPrefix(key, "minecraft:")
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
