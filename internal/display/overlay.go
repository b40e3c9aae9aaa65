// Package display builds the cosmetic item forms shown to clients and
// reverses them on the way back in. Every transform is pure: input items and
// slices are never modified, and list transforms keep length and index.
package display

import (
	"crypto/rand"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/talismans/server/internal/proxy"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

// TalismanSource looks up published talismans. *talisman.Registry implements it.
type TalismanSource interface {
	Get(id string) (*talisman.Talisman, bool)
}

// Overlay substitutes cosmetic forms for disguised talisman items.
// Game loop only (the title caser is stateful).
type Overlay struct {
	talismans TalismanSource
	seal      *sealer
	title     cases.Caser
	log       *zap.Logger
}

// NewOverlay creates an overlay. The seal key is derived from secret; an
// empty secret gets a random per-process key, so cosmetic forms that outlive
// the process no longer revert.
func NewOverlay(talismans TalismanSource, secret, lang string, log *zap.Logger) (*Overlay, error) {
	var key []byte
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Warn("display.secret 未設定，使用隨機金鑰")
	} else {
		sum := blake2b.Sum256([]byte(secret))
		key = sum[:]
	}
	s, err := newSealer(key)
	if err != nil {
		return nil, err
	}

	tag, err := language.Parse(lang)
	if err != nil {
		log.Warn("unknown display language, using und", zap.String("language", lang), zap.Error(err))
		tag = language.Und
	}
	return &Overlay{
		talismans: talismans,
		seal:      s,
		title:     cases.Title(tag),
		log:       log,
	}, nil
}

// Marked reports whether an item is a talisman carrying the disguise marker.
func (o *Overlay) Marked(it *world.ItemStack) bool {
	if _, ok := it.Tag(talisman.TagDisguise); !ok {
		return false
	}
	_, ok := talisman.RefOf(it)
	return ok
}

// Disguise returns the cosmetic form of a marked item: the talisman's
// disguise material, name and lore, no talisman identity tags, and the
// sealed original in the display tag. Unmarked items and items of unknown
// talismans are returned as-is.
func (o *Overlay) Disguise(it *world.ItemStack) *world.ItemStack {
	if !o.Marked(it) {
		return it
	}
	ref, _ := talisman.RefOf(it)
	t, ok := o.talismans.Get(ref.ID)
	if !ok {
		return it
	}

	d := t.Disguise
	out := &world.ItemStack{
		Material: d.Material,
		Amount:   it.Amount,
		Name:     d.Name,
	}
	if out.Material == "" {
		out.Material = it.Material
	}
	if out.Name == "" {
		out.Name = o.displayName(out.Material)
	}
	if len(d.Lore) > 0 {
		out.Lore = append([]string(nil), d.Lore...)
	}
	for _, k := range it.TagKeys() {
		if !strings.HasPrefix(k, "talismans:") {
			out.SetTag(k, it.Tags[k])
		}
	}
	out.SetTag(talisman.TagDisplay, o.seal.seal(it))
	return out
}

// Revert restores the original of a cosmetic form. Items without a seal are
// returned as-is. A seal that fails authentication is stripped and the item
// stays cosmetic, so a client cannot mint talismans.
func (o *Overlay) Revert(it *world.ItemStack) *world.ItemStack {
	sealed, ok := it.Tag(talisman.TagDisplay)
	if !ok {
		return it
	}
	orig, err := o.seal.open(sealed)
	if err != nil {
		o.log.Warn("偽造的顯示封印", zap.String("material", it.Material), zap.Error(err))
		out := it.Clone()
		delete(out.Tags, talisman.TagDisplay)
		return out
	}
	// The client controls the amount in creative mode.
	orig.Amount = it.Amount
	return orig
}

// DisguiseItems disguises every marked item not owned by viewer. The result
// has the same length and index order as items.
func (o *Overlay) DisguiseItems(items []*world.ItemStack, viewer string) []*world.ItemStack {
	out := make([]*world.ItemStack, len(items))
	for i, it := range items {
		if owner, ok := it.Tag(talisman.TagOwner); ok && owner == viewer {
			out[i] = it
			continue
		}
		out[i] = o.Disguise(it)
	}
	return out
}

// DisguiseOffers disguises the result of every offer through the trade
// capability. The server-side offers are not modified.
func (o *Overlay) DisguiseOffers(offers []world.TradeOffer, trades proxy.VillagerTradeProxy) []world.TradeOffer {
	out := make([]world.TradeOffer, len(offers))
	copy(out, offers)
	for i := range out {
		if trades != nil {
			trades.DisplayTradeTalismans(&out[i], o.Disguise)
			continue
		}
		out[i].Result = o.Disguise(out[i].Result)
	}
	return out
}

// displayName renders a material id as a title: "player_head" → "Player Head".
func (o *Overlay) displayName(material string) string {
	return o.title.String(strings.ReplaceAll(material, "_", " "))
}
