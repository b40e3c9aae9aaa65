package packet

import "github.com/talismans/server/internal/world"

// Direction is the way a packet travels relative to the server.
type Direction int

const (
	Outbound Direction = iota + 1 // server → client
	Inbound                       // client → server
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	}
	return "unknown"
}

// Kind names a decoded packet type.
type Kind string

const (
	KindOpenWindowMerchant Kind = "open_window_merchant"
	KindWindowItems        Kind = "window_items"
	KindSetCreativeSlot    Kind = "set_creative_slot"
)

// Payload is a decoded packet body. Interceptors mutate payloads in place;
// the host re-encodes them after Dispatch returns.
type Payload interface {
	Kind() Kind
}

// OpenWindowMerchant carries the trade offers of a merchant window.
type OpenWindowMerchant struct {
	WindowID int
	Offers   []world.TradeOffer
}

func (*OpenWindowMerchant) Kind() Kind { return KindOpenWindowMerchant }

// WindowItems carries the full contents of a window, indexed by window slot.
type WindowItems struct {
	WindowID int
	Items    []*world.ItemStack
}

func (*WindowItems) Kind() Kind { return KindWindowItems }

// SetCreativeSlot is a creative-mode client placing an item in a slot.
type SetCreativeSlot struct {
	Slot int
	Item *world.ItemStack
}

func (*SetCreativeSlot) Kind() Kind { return KindSetCreativeSlot }
