package proxy

import (
	"reflect"
	"strings"

	"github.com/talismans/server/internal/world"
)

// Providers is the static provider list consulted by the engine.
// Each capability must have exactly one provider per host version.
var Providers = []Provider{
	{
		Capability: CapabilityOf[AttributeProxy](),
		Name:       "legacy",
		Applies:    Below("1.16.0"),
		New:        func(h Host) any { return &attributeProxy{host: h, key: legacyAttributeKey} },
	},
	{
		Capability: CapabilityOf[AttributeProxy](),
		Name:       "modern",
		Applies:    AtLeast("1.16.0"),
		New:        func(h Host) any { return &attributeProxy{host: h, key: modernAttributeKey} },
	},
	{
		Capability: CapabilityOf[OpenInventoryProxy](),
		Name:       "window",
		Applies:    Any(),
		New:        func(h Host) any { return &openInventoryProxy{host: h} },
	},
	{
		Capability: CapabilityOf[VillagerTradeProxy](),
		Name:       "merchant",
		Applies:    Any(),
		New:        func(Host) any { return villagerTradeProxy{} },
	},
}

// Capabilities lists every capability the engine depends on, for Preflight.
func Capabilities() []reflect.Type {
	return []reflect.Type{
		CapabilityOf[AttributeProxy](),
		CapabilityOf[OpenInventoryProxy](),
		CapabilityOf[VillagerTradeProxy](),
	}
}

// legacyAttributeKey: "generic.attack_speed" → "generic.attackSpeed".
func legacyAttributeKey(key string) string {
	key = world.CanonicalAttributeKey(key)
	var b strings.Builder
	upper := false
	for _, r := range key {
		switch {
		case r == '_':
			upper = true
		case upper && r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
			upper = false
		default:
			b.WriteRune(r)
			upper = false
		}
	}
	return b.String()
}

// modernAttributeKey: "generic.attack_speed" → "minecraft:generic.attack_speed".
func modernAttributeKey(key string) string {
	return "minecraft:" + world.CanonicalAttributeKey(key)
}

type attributeProxy struct {
	host Host
	key  func(string) string
}

func (p *attributeProxy) Attribute(playerID, key string) (Attribute, bool) {
	pl, ok := p.host.Player(playerID)
	if !ok {
		return nil, false
	}
	return pl.Attribute(p.key(key)), true
}

type openInventoryProxy struct {
	host Host
}

func (p *openInventoryProxy) OpenInventory(playerID string) (*world.Window, bool) {
	pl, ok := p.host.Player(playerID)
	if !ok || pl.OpenWindow == nil {
		return nil, false
	}
	return pl.OpenWindow, true
}

type villagerTradeProxy struct{}

func (villagerTradeProxy) DisplayTradeTalismans(offer *world.TradeOffer, display func(*world.ItemStack) *world.ItemStack) {
	if offer == nil || offer.Result == nil {
		return
	}
	offer.Result = display(offer.Result)
}
