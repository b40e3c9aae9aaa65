package event

import "github.com/talismans/server/internal/world"

// Host notifications.

// InventoryChanged reports that a player's slot content changed.
// Old and New are snapshots; either may be nil for an empty slot.
type InventoryChanged struct {
	PlayerID string
	Slot     world.Slot
	Old      *world.ItemStack
	New      *world.ItemStack
}

// WorldChanged reports that a player moved between worlds.
type WorldChanged struct {
	PlayerID string
	From     string
	To       string
}

// PlayerJoined reports that a player came online in World.
type PlayerJoined struct {
	PlayerID string
	World    string
}

// PlayerDisconnected reports that a player went offline.
type PlayerDisconnected struct {
	PlayerID string
}

// TalismansReloaded is emitted by the maintenance goroutine after a new
// talisman snapshot is published.
type TalismansReloaded struct {
	Version uint64
}
