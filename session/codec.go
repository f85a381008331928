package session

import (
	"encoding/base64"
	"fmt"

	"olmcore/crypto/aes256"
	"olmcore/crypto/ct"
	"olmcore/olmerr"
	"olmcore/ratchet"
)

func encryptPayload(plaintext []byte, material ratchet.MessageMaterial) ([]byte, error) {
	return aes256.Encrypt(plaintext, material.AESKey, material.IV)
}

func decryptPayload(ciphertext []byte, material ratchet.MessageMaterial) ([]byte, error) {
	plaintext, err := aes256.Decrypt(ciphertext, material.AESKey, material.IV)
	if err != nil {
		return nil, olmerr.ErrBadMessageMac
	}
	return plaintext, nil
}

func constantTimeEqual(a, b []byte) bool {
	return ct.Equal(a, b)
}

func describeSession(s *Session) string {
	sendIndex := -1
	if s.senderSet {
		sendIndex = int(s.Sender.Chain.Index)
	}
	recv := make([]string, 0, len(s.Receivers))
	for _, r := range s.Receivers {
		recv = append(recv, fmt.Sprintf("%s@%d", base64.RawStdEncoding.EncodeToString(r.RatchetPub[:])[:8], r.Chain.Index))
	}
	return fmt.Sprintf("session{id=%s received=%v send_index=%d receivers=%v skipped=%d}",
		base64.RawStdEncoding.EncodeToString(s.idHash[:])[:8], s.Received, sendIndex, recv, s.Skipped.Len())
}
