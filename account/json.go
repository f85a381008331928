package account

import (
	"encoding/base64"
	"strconv"
)

// b64 renders a public key the way identity_keys/one_time_keys JSON expects
// it: unpadded base64, per spec.md §6.
func b64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func idString(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
