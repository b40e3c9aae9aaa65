package packet

import (
	"fmt"

	"github.com/talismans/server/internal/world"
)

// WriteItem encodes an item stack. A nil or empty stack encodes as a single
// zero byte.
func (w *Writer) WriteItem(it *world.ItemStack) {
	if it.IsEmpty() {
		w.WriteC(0)
		return
	}
	w.WriteC(1)
	w.WriteS(it.Material)
	w.WriteD(int32(it.Amount))
	w.WriteS(it.Name)
	w.WriteH(uint16(len(it.Lore)))
	for _, line := range it.Lore {
		w.WriteS(line)
	}
	keys := it.TagKeys()
	w.WriteH(uint16(len(keys)))
	for _, k := range keys {
		w.WriteS(k)
		w.WriteS(it.Tags[k])
	}
}

// ReadItem decodes a stack written by WriteItem.
func (r *Reader) ReadItem() (*world.ItemStack, error) {
	switch present := r.ReadC(); {
	case r.Err() != nil:
		return nil, r.Err()
	case present == 0:
		return nil, nil
	case present != 1:
		return nil, fmt.Errorf("packet: bad item marker %d", present)
	}

	it := &world.ItemStack{
		Material: r.ReadS(),
		Amount:   int(r.ReadD()),
		Name:     r.ReadS(),
	}
	if n := int(r.ReadH()); n > 0 {
		it.Lore = make([]string, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			it.Lore = append(it.Lore, r.ReadS())
		}
	}
	if n := int(r.ReadH()); n > 0 {
		it.Tags = make(map[string]string, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			k := r.ReadS()
			it.Tags[k] = r.ReadS()
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return it, nil
}
