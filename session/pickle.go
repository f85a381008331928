package session

import (
	"olmcore/olmerr"
	"olmcore/pickle"
	"olmcore/ratchet"
)

// PickleVersion1 is the only pickle version this from-scratch implementation
// has ever emitted. spec.md §9 asks that every historically published
// version remain accepted; since there is no prior release to be
// compatible with, the accepted-version set is the singleton {1} — see
// DESIGN.md for this Open Question decision. The dispatch mechanism below
// still switches on the version byte so a future bump only adds a case.
const PickleVersion1 uint32 = 1

var acceptedSessionPickleVersions = map[uint32]bool{PickleVersion1: true}

// Pickle encrypts and serializes the session under key.
func (s *Session) Pickle(key []byte) (string, error) {
	w := pickle.NewWriter()
	w.WriteBool(s.Received)
	w.WriteFixed(s.ownIdentityPub[:])
	w.WriteFixed(s.aliceBaseKeyPub[:])
	w.WriteFixed(s.peerOneTimeKeyPub[:])
	w.WriteFixed(s.RootKey[:])

	w.WriteBool(s.senderSet)
	if s.senderSet {
		w.WriteFixed(s.Sender.Ratchet.Public[:])
		w.WriteFixed(s.Sender.Ratchet.Private[:])
		w.WriteUint32(s.Sender.Chain.Index)
		w.WriteFixed(s.Sender.Chain.Key[:])
	}

	w.WriteUint32(uint32(len(s.Receivers)))
	for _, r := range s.Receivers {
		w.WriteFixed(r.RatchetPub[:])
		w.WriteUint32(r.Chain.Index)
		w.WriteFixed(r.Chain.Key[:])
	}

	skipped := s.Skipped.Snapshot()
	w.WriteUint32(uint32(len(skipped)))
	for _, sk := range skipped {
		w.WriteFixed(sk.RatchetPub[:])
		w.WriteUint32(sk.Index)
		w.WriteUint32(sk.Key.Index)
		w.WriteFixed(sk.Key.Key[:])
	}

	w.WriteBool(s.hasConsumedOneTimeKeyID)
	if s.hasConsumedOneTimeKeyID {
		w.WriteUint32(s.consumedOneTimeKeyID)
	}

	return pickle.Seal(key, PickleVersion1, w.Bytes())
}

// Unpickle decrypts and restores a session pickled with Pickle.
func Unpickle(key []byte, blob string) (*Session, error) {
	version, payload, err := pickle.Open(key, blob)
	if err != nil {
		return nil, err
	}
	if !acceptedSessionPickleVersions[version] {
		return nil, olmerr.ErrUnknownPickleVersion
	}

	r := pickle.NewReader(payload)
	s := &Session{}

	received, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	s.Received = received

	if err := readFixed32(r, s.ownIdentityPub[:]); err != nil {
		return nil, err
	}
	if err := readFixed32(r, s.aliceBaseKeyPub[:]); err != nil {
		return nil, err
	}
	if err := readFixed32(r, s.peerOneTimeKeyPub[:]); err != nil {
		return nil, err
	}
	if err := readFixed32(r, s.RootKey[:]); err != nil {
		return nil, err
	}

	senderSet, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	s.senderSet = senderSet
	if senderSet {
		if err := readFixed32(r, s.Sender.Ratchet.Public[:]); err != nil {
			return nil, err
		}
		if err := readFixed32(r, s.Sender.Ratchet.Private[:]); err != nil {
			return nil, err
		}
		idx, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		s.Sender.Chain.Index = idx
		if err := readFixed32(r, s.Sender.Chain.Key[:]); err != nil {
			return nil, err
		}
	}

	numReceivers, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if numReceivers > 0 {
		s.Receivers = make([]ratchet.ReceiverChain, numReceivers)
	}
	for i := range s.Receivers {
		if err := readFixed32(r, s.Receivers[i].RatchetPub[:]); err != nil {
			return nil, err
		}
		idx, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		s.Receivers[i].Chain.Index = idx
		if err := readFixed32(r, s.Receivers[i].Chain.Key[:]); err != nil {
			return nil, err
		}
	}

	numSkipped, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	skipped := make([]ratchet.SkippedKey, numSkipped)
	for i := range skipped {
		if err := readFixed32(r, skipped[i].RatchetPub[:]); err != nil {
			return nil, err
		}
		idx, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		skipped[i].Index = idx
		keyIdx, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		skipped[i].Key.Index = keyIdx
		if err := readFixed32(r, skipped[i].Key.Key[:]); err != nil {
			return nil, err
		}
	}
	s.Skipped = ratchet.NewSkippedCacheFromSnapshot(skipped)

	hasConsumed, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	s.hasConsumedOneTimeKeyID = hasConsumed
	if hasConsumed {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		s.consumedOneTimeKeyID = id
	}

	s.idHash = idHash(s.ownIdentityPub, s.aliceBaseKeyPub, s.peerOneTimeKeyPub)
	return s, nil
}

// readFixed32 reads exactly len(out) bytes into out. out may be the slice
// of any 32-byte array field (curve25519.PublicKey, [32]byte, ...): slicing
// always yields a []byte regardless of the array's defined type, so one
// helper serves every fixed-width field in this payload.
func readFixed32(r *pickle.Reader, out []byte) error {
	b, err := r.ReadFixed(len(out))
	if err != nil {
		return err
	}
	copy(out, b)
	return nil
}
