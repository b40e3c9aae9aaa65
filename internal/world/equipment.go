package world

import (
	"fmt"
	"strings"
)

// Slot identifies a slot in a player's inventory layout.
// 0-8 hotbar, 9-35 storage, 36-39 armor (boots→helmet), 40 offhand.
type Slot int

const (
	SlotHotbarFirst  Slot = 0
	SlotHotbarLast   Slot = 8
	SlotStorageFirst Slot = 9
	SlotStorageLast  Slot = 35
	SlotBoots        Slot = 36
	SlotLeggings     Slot = 37
	SlotChestplate   Slot = 38
	SlotHelmet       Slot = 39
	SlotOffHand      Slot = 40
	SlotMax          Slot = 41
)

// Valid reports whether the slot index is inside the player layout.
func (s Slot) Valid() bool {
	return s >= 0 && s < SlotMax
}

// SlotGroup names a contiguous group of slots, as used in configuration.
type SlotGroup string

const (
	GroupHotbar  SlotGroup = "hotbar"
	GroupStorage SlotGroup = "storage"
	GroupArmor   SlotGroup = "armor"
	GroupOffHand SlotGroup = "offhand"
)

// Group returns the group a slot belongs to ("" for invalid slots).
func (s Slot) Group() SlotGroup {
	switch {
	case s >= SlotHotbarFirst && s <= SlotHotbarLast:
		return GroupHotbar
	case s >= SlotStorageFirst && s <= SlotStorageLast:
		return GroupStorage
	case s >= SlotBoots && s <= SlotHelmet:
		return GroupArmor
	case s == SlotOffHand:
		return GroupOffHand
	default:
		return ""
	}
}

// SlotSet is a fixed-size membership table over the player layout.
type SlotSet [SlotMax]bool

// Contains reports whether slot is a member.
func (ss *SlotSet) Contains(slot Slot) bool {
	return slot.Valid() && ss[slot]
}

// ParseSlotGroups builds a SlotSet from group names ("hotbar", "storage", "armor", "offhand").
// "all" selects every slot.
func ParseSlotGroups(names []string) (SlotSet, error) {
	var ss SlotSet
	for _, raw := range names {
		name := SlotGroup(strings.ToLower(strings.TrimSpace(raw)))
		if name == "all" {
			for i := range ss {
				ss[i] = true
			}
			continue
		}
		matched := false
		for s := Slot(0); s < SlotMax; s++ {
			if s.Group() == name {
				ss[s] = true
				matched = true
			}
		}
		if !matched {
			return SlotSet{}, fmt.Errorf("unknown slot group %q", raw)
		}
	}
	return ss, nil
}
