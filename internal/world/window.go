package world

// PlayerInventoryWindow is the window ID of a player's own inventory view.
const PlayerInventoryWindow = 0

// Window is the container view a player currently has open.
type Window struct {
	ID     int
	Kind   string // "player", "merchant", "chest", ...
	Holder string // player ID owning the container, "" for non-player containers
}

// TradeOffer is one merchant recipe as shown in a trade window.
type TradeOffer struct {
	Ingredients []*ItemStack
	Result      *ItemStack
	Uses        int
	MaxUses     int
}
