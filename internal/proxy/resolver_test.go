package proxy

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talismans/server/internal/world"
)

func newHost() *world.State {
	s := world.NewState()
	s.AddPlayer(world.NewPlayer("p1", "Alice", "world"))
	return s
}

func TestParseVersion(t *testing.T) {
	cases := map[string]Version{
		"1.16.5":  "v1.16.5",
		"v1.20":   "v1.20.0",
		" 1.8 ":   "v1.8.0",
		"1.21.1":  "v1.21.1",
		"1.16.0":  "v1.16.0",
		"v1.12.2": "v1.12.2",
	}
	for in, want := range cases {
		got, err := ParseVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "one.two", "1.16.x"} {
		_, err := ParseVersion(bad)
		assert.True(t, errors.Is(err, ErrInvalidVersion), bad)
	}
	assert.Equal(t, "1.16.5", MustParseVersion("1.16.5").String())
}

func TestPredicates(t *testing.T) {
	v := MustParseVersion
	assert.True(t, AtLeast("1.16")(v("1.16.0")))
	assert.False(t, AtLeast("1.16")(v("1.15.2")))
	assert.True(t, Below("1.16")(v("1.15.2")))
	assert.False(t, Below("1.16")(v("1.16.0")))
	assert.True(t, Between("1.13", "1.16")(v("1.14.4")))
	assert.False(t, Between("1.13", "1.16")(v("1.16.1")))
	assert.True(t, Any()(v("0.1")))
}

func TestResolve_PicksProviderByVersion(t *testing.T) {
	cases := []struct {
		version string
		want    string
	}{
		{"1.12.2", "generic.attackSpeed"},
		{"1.15.2", "generic.attackSpeed"},
		{"1.16.0", "minecraft:generic.attack_speed"},
		{"1.20.4", "minecraft:generic.attack_speed"},
	}
	for _, tc := range cases {
		t.Run(tc.version, func(t *testing.T) {
			host := newHost()
			r := NewResolver(MustParseVersion(tc.version), host, Providers, zap.NewNop())
			ap, err := Resolve[AttributeProxy](r)
			require.NoError(t, err)

			attr, ok := ap.Attribute("p1", "generic.attack_speed")
			require.True(t, ok)
			inst, ok := attr.(*world.AttributeInstance)
			require.True(t, ok)
			assert.Equal(t, tc.want, inst.Key)
			assert.Equal(t, 4.0, inst.Base)

			_, ok = ap.Attribute("ghost", "generic.attack_speed")
			assert.False(t, ok)
		})
	}
}

func TestResolve_ReferenceStable(t *testing.T) {
	r := NewResolver(MustParseVersion("1.16.5"), newHost(), Providers, zap.NewNop())

	first, err := Resolve[AttributeProxy](r)
	require.NoError(t, err)

	var wg sync.WaitGroup
	got := make([]AttributeProxy, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = MustResolve[AttributeProxy](r)
		}(i)
	}
	wg.Wait()
	for _, g := range got {
		assert.Same(t, first.(*attributeProxy), g.(*attributeProxy))
	}
}

func TestResolve_NoProvider(t *testing.T) {
	providers := []Provider{{
		Capability: CapabilityOf[AttributeProxy](),
		Name:       "modern",
		Applies:    AtLeast("1.16"),
		New:        func(h Host) any { return &attributeProxy{host: h, key: modernAttributeKey} },
	}}
	r := NewResolver(MustParseVersion("1.12"), newHost(), providers, zap.NewNop())

	_, err := Resolve[AttributeProxy](r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProvider))
	assert.Contains(t, err.Error(), "v1.12.0")
	assert.Panics(t, func() { MustResolve[AttributeProxy](r) })
}

func TestResolve_Ambiguous(t *testing.T) {
	providers := append([]Provider{}, Providers...)
	providers = append(providers, Provider{
		Capability: CapabilityOf[AttributeProxy](),
		Name:       "overlap",
		Applies:    Between("1.15", "1.17"),
		New:        func(h Host) any { return &attributeProxy{host: h, key: modernAttributeKey} },
	})
	r := NewResolver(MustParseVersion("1.16.5"), newHost(), providers, zap.NewNop())

	_, err := Resolve[AttributeProxy](r)
	assert.True(t, errors.Is(err, ErrAmbiguousProvider))
	assert.Contains(t, err.Error(), "overlap")

	// Outside the overlap the capability still resolves.
	r = NewResolver(MustParseVersion("1.18"), newHost(), providers, zap.NewNop())
	_, err = Resolve[AttributeProxy](r)
	assert.NoError(t, err)
}

func TestResolve_ProviderMismatch(t *testing.T) {
	providers := []Provider{{
		Capability: CapabilityOf[OpenInventoryProxy](),
		Name:       "broken",
		Applies:    Any(),
		New:        func(Host) any { return struct{}{} },
	}}
	r := NewResolver(MustParseVersion("1.16"), newHost(), providers, zap.NewNop())
	_, err := Resolve[OpenInventoryProxy](r)
	assert.True(t, errors.Is(err, ErrProviderMismatch))
}

func TestResolve_NotCapability(t *testing.T) {
	r := NewResolver(MustParseVersion("1.16"), newHost(), Providers, zap.NewNop())
	_, err := Resolve[*world.ItemStack](r)
	assert.True(t, errors.Is(err, ErrNotCapability))
}

func TestPreflight(t *testing.T) {
	r := NewResolver(MustParseVersion("1.16.5"), newHost(), Providers, zap.NewNop())
	require.NoError(t, r.Preflight(Capabilities()...))

	bindings := r.Bindings()
	require.Len(t, bindings, 3)
	names := make(map[string]string)
	for _, b := range bindings {
		names[b.Capability] = b.Provider
	}
	assert.Equal(t, "modern", names["proxy.AttributeProxy"])
	assert.Equal(t, "window", names["proxy.OpenInventoryProxy"])
	assert.Equal(t, "merchant", names["proxy.VillagerTradeProxy"])

	r = NewResolver(MustParseVersion("1.16.5"), newHost(), Providers[2:], zap.NewNop())
	err := r.Preflight(Capabilities()...)
	assert.True(t, errors.Is(err, ErrNoProvider))
}

func TestAttributeProxy_ModifierRoundTrip(t *testing.T) {
	host := newHost()
	r := NewResolver(MustParseVersion("1.16.5"), host, Providers, zap.NewNop())
	ap := MustResolve[AttributeProxy](r)
	attr, _ := ap.Attribute("p1", "generic.max_health")

	id := uuid.New()
	require.NoError(t, attr.AddModifier(world.Modifier{UUID: id, Amount: 4, Operation: world.OpAddNumber}))
	assert.True(t, errors.Is(attr.AddModifier(world.Modifier{UUID: id}), world.ErrModifierApplied))

	p, _ := host.Player("p1")
	assert.Equal(t, 24.0, p.Attribute("minecraft:generic.max_health").Value())

	assert.True(t, attr.RemoveModifier(id))
	assert.False(t, attr.RemoveModifier(id))
	assert.Empty(t, attr.Modifiers())
}

func TestOpenInventoryProxy(t *testing.T) {
	host := newHost()
	op := MustResolve[OpenInventoryProxy](NewResolver(MustParseVersion("1.16.5"), host, Providers, zap.NewNop()))

	w, ok := op.OpenInventory("p1")
	require.True(t, ok)
	assert.Equal(t, world.PlayerInventoryWindow, w.ID)

	p, _ := host.Player("p1")
	p.OpenWindow = nil
	_, ok = op.OpenInventory("p1")
	assert.False(t, ok)
	_, ok = op.OpenInventory("ghost")
	assert.False(t, ok)
}

func TestVillagerTradeProxy(t *testing.T) {
	tp := MustResolve[VillagerTradeProxy](NewResolver(MustParseVersion("1.16.5"), newHost(), Providers, zap.NewNop()))

	ingredient := &world.ItemStack{Material: "emerald", Amount: 5}
	offer := &world.TradeOffer{
		Ingredients: []*world.ItemStack{ingredient},
		Result:      &world.ItemStack{Material: "paper", Amount: 1},
	}
	tp.DisplayTradeTalismans(offer, func(it *world.ItemStack) *world.ItemStack {
		c := it.Clone()
		c.Material = "player_head"
		return c
	})
	assert.Equal(t, "player_head", offer.Result.Material)
	assert.Same(t, ingredient, offer.Ingredients[0])

	tp.DisplayTradeTalismans(&world.TradeOffer{}, func(*world.ItemStack) *world.ItemStack {
		t.Fatal("display called for empty offer")
		return nil
	})
}

func TestAttributeKeyNaming(t *testing.T) {
	assert.Equal(t, "generic.movementSpeed", legacyAttributeKey("generic.movement_speed"))
	assert.Equal(t, "generic.maxHealth", legacyAttributeKey("minecraft:generic.max_health"))
	assert.Equal(t, "minecraft:generic.max_health", modernAttributeKey("generic.maxHealth"))
}
