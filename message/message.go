// Package message implements the Olm wire formats (C2): the normal message
// and pre-key message shapes of spec.md §4.2, a protobuf-style
// tag/wire-type varint framing. The teacher's own code never needed a
// binary wire codec (it shipped messages as JSON, common/types.go), so this
// package is grounded on the pack's protobuf-adjacent dependency instead:
// actuallydan-pollis vendors a generated pkg/proto and pulls in
// google.golang.org/protobuf; its encoding/protowire subpackage is exactly
// the tag/varint/length-delimited primitive spec.md §4.2 describes, so it
// is used here rather than hand-rolling varint math the way a from-scratch
// implementation would.
package message

import (
	"google.golang.org/protobuf/encoding/protowire"

	"olmcore/olmerr"
)

const wireVersion = 3

// Field numbers from spec.md §4.2.
const (
	fieldRatchetKey  protowire.Number = 1 // normal message
	fieldCounter     protowire.Number = 2
	fieldCiphertext  protowire.Number = 4
	fieldOneTimeKey  protowire.Number = 1 // pre-key message
	fieldBaseKey     protowire.Number = 2
	fieldIdentityKey protowire.Number = 3
	fieldEmbedded    protowire.Number = 4
)

const macSize = 8

// Normal is the "M" message shape: the current DH ratchet public key, chain
// counter, AES-CBC ciphertext and an 8-byte truncated MAC.
type Normal struct {
	RatchetKey [32]byte
	Counter    uint32
	Ciphertext []byte
	Mac        [macSize]byte
}

// EncodeUnauthenticated appends the version byte and the tag/value fields
// (everything the MAC in §4.2 is computed over, before the MAC itself).
func (m Normal) EncodeUnauthenticated() []byte {
	buf := []byte{wireVersion}
	buf = protowire.AppendTag(buf, fieldRatchetKey, protowire.BytesType)
	buf = protowire.AppendBytes(buf, m.RatchetKey[:])
	buf = protowire.AppendTag(buf, fieldCounter, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.Counter))
	buf = protowire.AppendTag(buf, fieldCiphertext, protowire.BytesType)
	buf = protowire.AppendBytes(buf, m.Ciphertext)
	return buf
}

// Encode appends the 8-byte truncated MAC to the unauthenticated encoding.
func (m Normal) Encode() []byte {
	return append(m.EncodeUnauthenticated(), m.Mac[:]...)
}

// DecodeNormal parses a normal message, tolerating and skipping unknown
// tags per the versioning rule in §4.2. The MAC is returned separately
// (trailing macSize bytes) since callers must verify it before trusting
// any parsed field.
func DecodeNormal(data []byte) (Normal, error) {
	if len(data) < 1+macSize {
		return Normal{}, olmerr.ErrInputBufferTooSmall
	}
	if data[0] != wireVersion {
		return Normal{}, olmerr.ErrBadMessageVersion
	}
	body := data[1 : len(data)-macSize]

	var m Normal
	var haveRatchetKey, haveCounter, haveCiphertext bool
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return Normal{}, olmerr.ErrBadMessageFormat
		}
		body = body[n:]
		switch {
		case num == fieldRatchetKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 || len(v) != 32 {
				return Normal{}, olmerr.ErrBadMessageFormat
			}
			copy(m.RatchetKey[:], v)
			body = body[n:]
			haveRatchetKey = true
		case num == fieldCounter && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return Normal{}, olmerr.ErrBadMessageFormat
			}
			m.Counter = uint32(v)
			body = body[n:]
			haveCounter = true
		case num == fieldCiphertext && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return Normal{}, olmerr.ErrBadMessageFormat
			}
			m.Ciphertext = append([]byte(nil), v...)
			body = body[n:]
			haveCiphertext = true
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return Normal{}, olmerr.ErrBadMessageFormat
			}
			body = body[n:]
		}
	}
	if !haveRatchetKey || !haveCounter || !haveCiphertext {
		return Normal{}, olmerr.ErrBadMessageFormat
	}
	copy(m.Mac[:], data[len(data)-macSize:])
	return m, nil
}

// PreKey is the "P" message shape: the recipient's one-time key, the
// sender's ephemeral base key, the sender's identity key, and an embedded
// Normal message.
type PreKey struct {
	OneTimeKey  [32]byte
	BaseKey     [32]byte
	IdentityKey [32]byte
	Message     Normal
}

// Encode renders the pre-key message. The embedded normal message is
// encoded in full (including its own MAC).
func (p PreKey) Encode() []byte {
	buf := []byte{wireVersion}
	buf = protowire.AppendTag(buf, fieldOneTimeKey, protowire.BytesType)
	buf = protowire.AppendBytes(buf, p.OneTimeKey[:])
	buf = protowire.AppendTag(buf, fieldBaseKey, protowire.BytesType)
	buf = protowire.AppendBytes(buf, p.BaseKey[:])
	buf = protowire.AppendTag(buf, fieldIdentityKey, protowire.BytesType)
	buf = protowire.AppendBytes(buf, p.IdentityKey[:])
	buf = protowire.AppendTag(buf, fieldEmbedded, protowire.BytesType)
	buf = protowire.AppendBytes(buf, p.Message.Encode())
	return buf
}

// DecodePreKey parses a pre-key message, tolerating unknown tags.
func DecodePreKey(data []byte) (PreKey, error) {
	if len(data) < 1 {
		return PreKey{}, olmerr.ErrInputBufferTooSmall
	}
	if data[0] != wireVersion {
		return PreKey{}, olmerr.ErrBadMessageVersion
	}
	body := data[1:]

	var p PreKey
	var haveOTK, haveBase, haveID, haveMsg bool
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return PreKey{}, olmerr.ErrBadMessageFormat
		}
		body = body[n:]
		switch {
		case num == fieldOneTimeKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 || len(v) != 32 {
				return PreKey{}, olmerr.ErrBadMessageFormat
			}
			copy(p.OneTimeKey[:], v)
			body = body[n:]
			haveOTK = true
		case num == fieldBaseKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 || len(v) != 32 {
				return PreKey{}, olmerr.ErrBadMessageFormat
			}
			copy(p.BaseKey[:], v)
			body = body[n:]
			haveBase = true
		case num == fieldIdentityKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 || len(v) != 32 {
				return PreKey{}, olmerr.ErrBadMessageFormat
			}
			copy(p.IdentityKey[:], v)
			body = body[n:]
			haveID = true
		case num == fieldEmbedded && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return PreKey{}, olmerr.ErrBadMessageFormat
			}
			inner, err := DecodeNormal(v)
			if err != nil {
				return PreKey{}, err
			}
			p.Message = inner
			body = body[n:]
			haveMsg = true
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return PreKey{}, olmerr.ErrBadMessageFormat
			}
			body = body[n:]
		}
	}
	if !haveOTK || !haveBase || !haveID || !haveMsg {
		return PreKey{}, olmerr.ErrBadMessageFormat
	}
	return p, nil
}

// MessageType distinguishes pre-key (0) from normal (1) messages, matching
// the type byte used at the outer (base64) boundary per spec §8 S2.
type MessageType int

const (
	TypePreKey MessageType = 0
	TypeNormal MessageType = 1
)
