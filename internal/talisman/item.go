package talisman

import (
	"fmt"
	"strconv"

	"github.com/talismans/server/internal/world"
)

// Item tags. The display tag holds the sealed original of a cosmetic form
// and is written by the display overlay, never by the registry.
const (
	TagTalisman = "talismans:talisman"
	TagLevel    = "talismans:level"
	TagOwner    = "talismans:owner"
	TagDisguise = "talismans:disguise"
	TagDisplay  = "talismans:display"
)

// ItemMaterial is the server-side material of a talisman item.
const ItemMaterial = "totem_of_undying"

// ItemRef is the talisman identity carried by an item.
type ItemRef struct {
	ID    string
	Level int
}

// RefOf reads the talisman identity tags of an item.
func RefOf(item *world.ItemStack) (ItemRef, bool) {
	if item.IsEmpty() {
		return ItemRef{}, false
	}
	id, ok := item.Tag(TagTalisman)
	if !ok || id == "" {
		return ItemRef{}, false
	}
	raw, ok := item.Tag(TagLevel)
	if !ok {
		return ItemRef{}, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return ItemRef{}, false
	}
	return ItemRef{ID: id, Level: n}, true
}

// NewItem creates the server-side item for a level, owned by owner.
func NewItem(lvl *Level, owner string) *world.ItemStack {
	t := lvl.Talisman
	it := &world.ItemStack{
		Material: ItemMaterial,
		Amount:   1,
		Name:     fmt.Sprintf("%s %d", t.Name, lvl.Number),
	}
	if t.Description != "" {
		it.Lore = []string{t.Description}
	}
	it.SetTag(TagTalisman, t.ID)
	it.SetTag(TagLevel, strconv.Itoa(lvl.Number))
	if owner != "" {
		it.SetTag(TagOwner, owner)
	}
	if t.Disguise.Material != "" {
		it.SetTag(TagDisguise, "1")
	}
	return it
}
