package group

import (
	"google.golang.org/protobuf/encoding/protowire"

	"olmcore/crypto/ed25519"
	"olmcore/olmerr"
)

const wireVersion = 3

const (
	fieldIndex      protowire.Number = 1
	fieldCiphertext protowire.Number = 2
)

// groupMessage is the outbound group message wire shape of spec.md §4.8:
// version || (tag 8 varint index) || (tag 18 bytes ciphertext) || signature.
type groupMessage struct {
	Index      uint32
	Ciphertext []byte
	Signature  [ed25519.SignatureSize]byte
}

func (m groupMessage) encodeUnsigned() []byte {
	buf := []byte{wireVersion}
	buf = protowire.AppendTag(buf, fieldIndex, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.Index))
	buf = protowire.AppendTag(buf, fieldCiphertext, protowire.BytesType)
	buf = protowire.AppendBytes(buf, m.Ciphertext)
	return buf
}

func (m groupMessage) encode() []byte {
	return append(m.encodeUnsigned(), m.Signature[:]...)
}

func decodeGroupMessage(data []byte) (groupMessage, error) {
	if len(data) < 1+ed25519.SignatureSize {
		return groupMessage{}, olmerr.ErrInputBufferTooSmall
	}
	if data[0] != wireVersion {
		return groupMessage{}, olmerr.ErrBadMessageVersion
	}
	body := data[1 : len(data)-ed25519.SignatureSize]

	var m groupMessage
	var haveIndex, haveCiphertext bool
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return groupMessage{}, olmerr.ErrBadMessageFormat
		}
		body = body[n:]
		switch {
		case num == fieldIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return groupMessage{}, olmerr.ErrBadMessageFormat
			}
			m.Index = uint32(v)
			body = body[n:]
			haveIndex = true
		case num == fieldCiphertext && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return groupMessage{}, olmerr.ErrBadMessageFormat
			}
			m.Ciphertext = append([]byte(nil), v...)
			body = body[n:]
			haveCiphertext = true
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return groupMessage{}, olmerr.ErrBadMessageFormat
			}
			body = body[n:]
		}
	}
	if !haveIndex || !haveCiphertext {
		return groupMessage{}, olmerr.ErrBadMessageFormat
	}
	copy(m.Signature[:], data[len(data)-ed25519.SignatureSize:])
	return m, nil
}

// sessionKeyBlob is the session-key distribution format of spec.md §4.8:
// version || index_be32 || R[0..3] (128B) || signing_pub (32B) ||
// signature_over_preceding (64B). The "import" variant below omits the
// trailing signature.
const sessionKeyBlobUnsignedSize = 1 + 4 + ratchetSize + ed25519.PublicKeySize
const sessionKeyBlobSignedSize = sessionKeyBlobUnsignedSize + ed25519.SignatureSize

func encodeSessionKeyUnsigned(index uint32, parts [ratchetSize]byte, signingPub ed25519.PublicKey) []byte {
	buf := make([]byte, 0, sessionKeyBlobUnsignedSize)
	buf = append(buf, wireVersion)
	buf = append(buf, byte(index>>24), byte(index>>16), byte(index>>8), byte(index))
	buf = append(buf, parts[:]...)
	buf = append(buf, signingPub[:]...)
	return buf
}

func decodeSessionKeyUnsigned(buf []byte) (index uint32, parts [ratchetSize]byte, signingPub ed25519.PublicKey, err error) {
	if len(buf) < sessionKeyBlobUnsignedSize {
		err = olmerr.ErrInputBufferTooSmall
		return
	}
	if buf[0] != wireVersion {
		err = olmerr.ErrBadMessageVersion
		return
	}
	index = uint32(buf[1])<<24 | uint32(buf[2])<<16 | uint32(buf[3])<<8 | uint32(buf[4])
	copy(parts[:], buf[5:5+ratchetSize])
	copy(signingPub[:], buf[5+ratchetSize:5+ratchetSize+ed25519.PublicKeySize])
	return
}
