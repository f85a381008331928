// Package group implements the Megolm-style group ratchet (C7) and the
// outbound/inbound group sessions built on it (C8): a one-way hash ratchet
// whose four 256-bit parts cover successively finer byte ranges of the
// message counter, plus Ed25519-signed group message framing. The
// per-part HMAC-keyed-rehash primitive is grounded on the teacher's own
// single-chain ChainKey.Advance (protocol/doubleratchet), generalized here
// into a four-level hash tree: part j depends only on the top j+1 bytes of
// the counter, so jumping to any target counter costs at most 4*255
// rehashes regardless of the distance jumped. No file in the retrieved
// pack implements Megolm's multi-part ratchet (the closest pack
// candidates, kamune's ratchet and mautrix-go's goolm chain.go, are both
// single-chain Double Ratchet state); this tree construction is derived
// directly from the publicly documented Megolm ratchet properties — bounded
// jump cost and path independence — rather than from a pack citation. See
// DESIGN.md.
package group

import (
	"olmcore/crypto/hkdf"
	"olmcore/crypto/hmac"
	"olmcore/entropy"
	"olmcore/internal/zeroize"
	"olmcore/olmerr"
)

const (
	numParts    = 4
	partLength  = 32
	ratchetSize = numParts * partLength // 128

	hkdfInfoMegolmKeys = "MEGOLM_KEYS"

	// reseedTag distinguishes the "derive the initial value of the next,
	// finer part from this part" operation from advancePart's ordinary
	// same-part chain step, so the two never collide for the same part
	// index.
	reseedTag = 0xff
)

// Ratchet is the 128-byte, four-part Megolm hash ratchet state.
type Ratchet struct {
	Parts   [numParts][partLength]byte
	Counter uint32
}

// New seeds a fresh ratchet at counter 0 from src.
func New(src entropy.Source) (Ratchet, error) {
	var r Ratchet
	for i := range r.Parts {
		if err := src.FillRandom(r.Parts[i][:]); err != nil {
			return Ratchet{}, err
		}
	}
	return r, nil
}

// partShift returns the bit shift guarding part j: part 0 changes on every
// increment of the top byte of the counter, part 3 on every increment of
// the bottom byte.
func partShift(j int) uint {
	return uint(numParts-1-j) * 8
}

func partMask(j int) uint32 {
	return uint32(0xffffffff) << partShift(j)
}

// advancePart chains part k forward by one step: Parts[k] = HMAC(Parts[k], k).
func advancePart(part *[32]byte, k int) {
	next := hmac.Sum256(part[:], []byte{byte(k)})
	copy(part[:], next)
}

// reseedPart derives the byte-0 value of part k from the freshly advanced,
// next-coarser part k-1. It is tagged differently from advancePart's
// same-part chain step so the two hash trees never overlap.
func reseedPart(prev [32]byte, k int) [32]byte {
	next := hmac.Sum256(prev[:], []byte{byte(k), reseedTag})
	var out [32]byte
	copy(out[:], next)
	return out
}

// byteAt returns the byte of counter covered by part j (part 0 holds the
// most significant byte, part numParts-1 the least significant).
func byteAt(counter uint32, j int) byte {
	return byte(counter >> partShift(j))
}

// AdvanceTo walks the ratchet from its current counter to target. Part j
// depends only on the top j+1 bytes of the counter, so the first part
// whose covering byte range differs ("from") is chained forward within its
// own byte (at most 255 hashes), and every finer part is reseeded from its
// newly advanced neighbour and chained forward to its own target byte (at
// most 255 hashes each). Total cost is bounded by numParts*255 regardless
// of how far target is from the current counter, and advancing straight to
// target produces the same state as advancing through every intermediate
// counter one at a time, since each part's value is a pure function of the
// counter prefix it depends on. Advancing backwards is rejected: the
// ratchet is one-way.
func (r *Ratchet) AdvanceTo(target uint32) error {
	if target < r.Counter {
		return olmerr.ErrChainExhausted
	}
	if target == r.Counter {
		return nil
	}

	from := numParts - 1
	for j := 0; j < numParts; j++ {
		if target&partMask(j) != r.Counter&partMask(j) {
			from = j
			break
		}
	}

	for b := byteAt(r.Counter, from); b != byteAt(target, from); b++ {
		advancePart(&r.Parts[from], from)
	}

	for k := from + 1; k < numParts; k++ {
		r.Parts[k] = reseedPart(r.Parts[k-1], k)
		for b := byte(0); b != byteAt(target, k); b++ {
			advancePart(&r.Parts[k], k)
		}
	}

	r.Counter = target
	return nil
}

// Zeroize overwrites all four ratchet parts in place.
func (r *Ratchet) Zeroize() {
	for i := range r.Parts {
		zeroize.Array32(&r.Parts[i])
	}
}

// MessageMaterial is the AES/HMAC/IV split of the ratchet's 128-byte HKDF
// expansion. Only the first 80 bytes of the HKDF output are consumed (AES
// key 32, HMAC key 32, IV 16); the remaining 48 bytes of the "128-byte
// message key material" spec.md §4.7 describes are reserved, the same
// 80-of-N-byte split pickle.deriveKeys and ratchet.DeriveMessageMaterial
// use for two-party sessions.
type MessageMaterial struct {
	AESKey [32]byte
	MACKey [32]byte
	IV     [16]byte
}

// DeriveMessageMaterial expands the ratchet's current concatenated parts
// via HKDF(salt=∅, ikm=R[0..3], info="MEGOLM_KEYS", 128).
func (r Ratchet) DeriveMessageMaterial() (MessageMaterial, error) {
	ikm := make([]byte, 0, ratchetSize)
	for _, p := range r.Parts {
		ikm = append(ikm, p[:]...)
	}
	out, err := hkdf.Derive(nil, ikm, []byte(hkdfInfoMegolmKeys), ratchetSize)
	if err != nil {
		return MessageMaterial{}, err
	}
	var m MessageMaterial
	copy(m.AESKey[:], out[0:32])
	copy(m.MACKey[:], out[32:64])
	copy(m.IV[:], out[64:80])
	return m, nil
}

// Export captures (index, R[0..3]) for session_key distribution / re-sharing.
func (r Ratchet) Export() (uint32, [ratchetSize]byte) {
	var blob [ratchetSize]byte
	for i, p := range r.Parts {
		copy(blob[i*partLength:(i+1)*partLength], p[:])
	}
	return r.Counter, blob
}

// Import restores a ratchet from a prior Export at the same index.
func Import(index uint32, blob [ratchetSize]byte) Ratchet {
	var r Ratchet
	for i := range r.Parts {
		copy(r.Parts[i][:], blob[i*partLength:(i+1)*partLength])
	}
	r.Counter = index
	return r
}
