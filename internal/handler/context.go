package handler

import (
	"go.uber.org/zap"

	"github.com/talismans/server/internal/display"
	"github.com/talismans/server/internal/net/packet"
	"github.com/talismans/server/internal/proxy"
)

// Deps holds shared dependencies injected into all packet interceptors.
type Deps struct {
	Overlay     *display.Overlay
	Trades      proxy.VillagerTradeProxy
	Inventories proxy.OpenInventoryProxy
	Log         *zap.Logger
}

// RegisterAll registers all packet interceptors into the registry.
// A payload of an unexpected concrete type is ignored.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.Outbound, packet.KindOpenWindowMerchant,
		func(player string, p packet.Payload) {
			if pl, ok := p.(*packet.OpenWindowMerchant); ok {
				HandleMerchantOffers(player, pl, deps)
			}
		},
	)
	reg.Register(packet.Outbound, packet.KindWindowItems,
		func(player string, p packet.Payload) {
			if pl, ok := p.(*packet.WindowItems); ok {
				HandleWindowItems(player, pl, deps)
			}
		},
	)
	reg.Register(packet.Inbound, packet.KindSetCreativeSlot,
		func(player string, p packet.Payload) {
			if pl, ok := p.(*packet.SetCreativeSlot); ok {
				HandleCreativeSlot(player, pl, deps)
			}
		},
	)
}
