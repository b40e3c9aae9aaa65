package display

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/talismans/server/internal/net/packet"
	"github.com/talismans/server/internal/world"
)

// ErrBadSeal is returned when a sealed original fails authentication or decoding.
var ErrBadSeal = errors.New("display: bad seal")

const sealVersion byte = 1

// sealer binds an item's original form to its cosmetic form. The seal is
// "<payload>.<mac>", both base64url; the MAC is keyed BLAKE2b-256.
type sealer struct {
	key []byte
}

func newSealer(key []byte) (*sealer, error) {
	// blake2b accepts keys up to 64 bytes.
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("display: seal key must be 1..%d bytes, got %d", blake2b.Size, len(key))
	}
	return &sealer{key: key}, nil
}

func (s *sealer) mac(payload []byte) []byte {
	h, err := blake2b.New256(s.key)
	if err != nil {
		panic(err) // key length checked in newSealer
	}
	h.Write(payload)
	return h.Sum(nil)
}

func (s *sealer) seal(it *world.ItemStack) string {
	w := packet.NewWriter()
	w.WriteC(sealVersion)
	w.WriteItem(it)
	payload := w.Bytes()
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(s.mac(payload))
}

func (s *sealer) open(sealed string) (*world.ItemStack, error) {
	rawPayload, rawMAC, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, ErrBadSeal
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrBadSeal, err)
	}
	sum, err := enc.DecodeString(rawMAC)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %v", ErrBadSeal, err)
	}
	if subtle.ConstantTimeCompare(sum, s.mac(payload)) != 1 {
		return nil, fmt.Errorf("%w: mac mismatch", ErrBadSeal)
	}

	r := packet.NewReader(payload)
	if v := r.ReadC(); v != sealVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadSeal, v)
	}
	it, err := r.ReadItem()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSeal, err)
	}
	if it == nil || r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: trailing or empty item", ErrBadSeal)
	}
	return it, nil
}
