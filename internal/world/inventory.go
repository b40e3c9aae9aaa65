package world

import "sort"

// MaterialAir is the host's empty-slot material.
const MaterialAir = "air"

// ItemStack represents a single item stack as the host stores it.
// Tags is the item's hidden persistent data; it is never rendered to clients.
type ItemStack struct {
	Material string
	Amount   int
	Name     string // custom display name ("" = material default)
	Lore     []string
	Tags     map[string]string
}

// IsEmpty reports whether the stack represents an empty slot.
func (it *ItemStack) IsEmpty() bool {
	return it == nil || it.Material == "" || it.Material == MaterialAir || it.Amount <= 0
}

// Tag returns a hidden tag value.
func (it *ItemStack) Tag(key string) (string, bool) {
	if it == nil || it.Tags == nil {
		return "", false
	}
	v, ok := it.Tags[key]
	return v, ok
}

// SetTag sets a hidden tag value.
func (it *ItemStack) SetTag(key, value string) {
	if it.Tags == nil {
		it.Tags = make(map[string]string, 4)
	}
	it.Tags[key] = value
}

// TagKeys returns the tag keys in sorted order.
func (it *ItemStack) TagKeys() []string {
	if it == nil || len(it.Tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(it.Tags))
	for k := range it.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy. A nil stack clones to nil.
func (it *ItemStack) Clone() *ItemStack {
	if it == nil {
		return nil
	}
	c := *it
	if it.Lore != nil {
		c.Lore = make([]string, len(it.Lore))
		copy(c.Lore, it.Lore)
	}
	if it.Tags != nil {
		c.Tags = make(map[string]string, len(it.Tags))
		for k, v := range it.Tags {
			c.Tags[k] = v
		}
	}
	return &c
}

// Inventory holds a player's slot-indexed item layout.
// Accessed only from the game loop goroutine.
type Inventory struct {
	Slots [SlotMax]*ItemStack
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{}
}

// Get returns the item in a slot, or nil.
func (inv *Inventory) Get(slot Slot) *ItemStack {
	if !slot.Valid() {
		return nil
	}
	return inv.Slots[slot]
}

// Set places an item in a slot (nil to clear) and returns the previous item.
// Does NOT notify anyone; the caller is responsible for emitting the change.
func (inv *Inventory) Set(slot Slot, item *ItemStack) *ItemStack {
	if !slot.Valid() {
		return nil
	}
	old := inv.Slots[slot]
	if item.IsEmpty() {
		item = nil
	}
	inv.Slots[slot] = item
	return old
}

// Each calls fn for every non-empty slot in index order.
func (inv *Inventory) Each(fn func(Slot, *ItemStack)) {
	for i, it := range inv.Slots {
		if it != nil {
			fn(Slot(i), it)
		}
	}
}
