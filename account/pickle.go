package account

import (
	"olmcore/crypto/curve25519"
	"olmcore/olmerr"
	"olmcore/pickle"
)

// PickleVersion1 is the only pickle version this from-scratch implementation
// has ever emitted; see session.PickleVersion1 and DESIGN.md for the same
// Open Question decision applied here.
const PickleVersion1 uint32 = 1

var acceptedAccountPickleVersions = map[uint32]bool{PickleVersion1: true}

// Pickle encrypts and serializes the account under key.
func (a *Account) Pickle(key []byte) (string, error) {
	w := pickle.NewWriter()
	w.WriteFixed(a.Curve25519.Public[:])
	w.WriteFixed(a.Curve25519.Private[:])
	w.WriteFixed(a.Ed25519.Public[:])
	w.WriteFixed(a.Ed25519.Private[:])

	w.WriteUint32(a.nextOneTimeKeyID)
	w.WriteUint32(uint32(len(a.oneTimeKeys)))
	for _, k := range a.oneTimeKeys {
		w.WriteUint32(k.ID)
		w.WriteBool(k.Published)
		w.WriteFixed(k.Key.Public[:])
		w.WriteFixed(k.Key.Private[:])
	}

	w.WriteBool(a.fallbackCurrent != nil)
	if a.fallbackCurrent != nil {
		w.WriteFixed(a.fallbackCurrent.Public[:])
		w.WriteFixed(a.fallbackCurrent.Private[:])
	}
	w.WriteBool(a.fallbackPrevious != nil)
	if a.fallbackPrevious != nil {
		w.WriteFixed(a.fallbackPrevious.Public[:])
		w.WriteFixed(a.fallbackPrevious.Private[:])
	}
	w.WriteBool(a.fallbackPublished)

	return pickle.Seal(key, PickleVersion1, w.Bytes())
}

// Unpickle decrypts and restores an account pickled with Pickle.
func Unpickle(key []byte, blob string) (*Account, error) {
	version, payload, err := pickle.Open(key, blob)
	if err != nil {
		return nil, err
	}
	if !acceptedAccountPickleVersions[version] {
		return nil, olmerr.ErrUnknownPickleVersion
	}

	r := pickle.NewReader(payload)
	a := &Account{}

	if err := readFixed(r, a.Curve25519.Public[:]); err != nil {
		return nil, err
	}
	if err := readFixed(r, a.Curve25519.Private[:]); err != nil {
		return nil, err
	}
	if err := readFixed(r, a.Ed25519.Public[:]); err != nil {
		return nil, err
	}
	if err := readFixed(r, a.Ed25519.Private[:]); err != nil {
		return nil, err
	}

	nextID, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	a.nextOneTimeKeyID = nextID

	numKeys, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	a.oneTimeKeys = make([]oneTimeKey, numKeys)
	for i := range a.oneTimeKeys {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		published, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		a.oneTimeKeys[i].ID = id
		a.oneTimeKeys[i].Published = published
		if err := readFixed(r, a.oneTimeKeys[i].Key.Public[:]); err != nil {
			return nil, err
		}
		if err := readFixed(r, a.oneTimeKeys[i].Key.Private[:]); err != nil {
			return nil, err
		}
	}

	hasCurrent, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasCurrent {
		var cur curve25519.KeyPair
		if err := readFixed(r, cur.Public[:]); err != nil {
			return nil, err
		}
		if err := readFixed(r, cur.Private[:]); err != nil {
			return nil, err
		}
		a.fallbackCurrent = &cur
	}

	hasPrevious, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if hasPrevious {
		var prev curve25519.KeyPair
		if err := readFixed(r, prev.Public[:]); err != nil {
			return nil, err
		}
		if err := readFixed(r, prev.Private[:]); err != nil {
			return nil, err
		}
		a.fallbackPrevious = &prev
	}

	published, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	a.fallbackPublished = published

	return a, nil
}

func readFixed(r *pickle.Reader, out []byte) error {
	b, err := r.ReadFixed(len(out))
	if err != nil {
		return err
	}
	copy(out, b)
	return nil
}
