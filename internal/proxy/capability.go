package proxy

import (
	"github.com/google/uuid"

	"github.com/talismans/server/internal/world"
)

// Host is the slice of the game server the providers adapt.
type Host interface {
	Player(id string) (*world.PlayerInfo, bool)
}

// Attribute is one player stat as seen through a provider.
type Attribute interface {
	AddModifier(m world.Modifier) error
	RemoveModifier(id uuid.UUID) bool
	Modifiers() []world.Modifier
}

// AttributeProxy resolves a player's stat instance by talisman attribute key
// ("generic.attack_speed"), translating the key to the host's naming.
type AttributeProxy interface {
	Attribute(playerID, key string) (Attribute, bool)
}

// OpenInventoryProxy reports the container view a player has open.
type OpenInventoryProxy interface {
	OpenInventory(playerID string) (*world.Window, bool)
}

// VillagerTradeProxy rewrites how a trade offer's result is displayed.
// The offer is modified in place; ingredients are left untouched.
type VillagerTradeProxy interface {
	DisplayTradeTalismans(offer *world.TradeOffer, display func(*world.ItemStack) *world.ItemStack)
}
