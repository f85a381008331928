package group

import (
	"olmcore/crypto/ed25519"
	"olmcore/olmerr"
	"olmcore/pickle"
)

// PickleVersion1 is the only pickle version this from-scratch
// implementation has ever emitted for group sessions; see
// session.PickleVersion1 and DESIGN.md for the same Open Question decision
// applied here.
const PickleVersion1 uint32 = 1

var acceptedGroupPickleVersions = map[uint32]bool{PickleVersion1: true}

func writeRatchet(w *pickle.Writer, r Ratchet) {
	w.WriteUint32(r.Counter)
	for _, p := range r.Parts {
		w.WriteFixed(p[:])
	}
}

func readRatchet(r *pickle.Reader) (Ratchet, error) {
	var out Ratchet
	counter, err := r.ReadUint32()
	if err != nil {
		return Ratchet{}, err
	}
	out.Counter = counter
	for i := range out.Parts {
		if err := readFixed(r, out.Parts[i][:]); err != nil {
			return Ratchet{}, err
		}
	}
	return out, nil
}

func readFixed(r *pickle.Reader, out []byte) error {
	b, err := r.ReadFixed(len(out))
	if err != nil {
		return err
	}
	copy(out, b)
	return nil
}

// Pickle encrypts and serializes the outbound session under key.
func (s *OutboundGroupSession) Pickle(key []byte) (string, error) {
	w := pickle.NewWriter()
	writeRatchet(w, s.ratchet)
	w.WriteFixed(s.signing.Public[:])
	w.WriteFixed(s.signing.Private[:])
	w.WriteFixed(s.id[:])
	return pickle.Seal(key, PickleVersion1, w.Bytes())
}

// UnpickleOutbound decrypts and restores an outbound session pickled with Pickle.
func UnpickleOutbound(key []byte, blob string) (*OutboundGroupSession, error) {
	version, payload, err := pickle.Open(key, blob)
	if err != nil {
		return nil, err
	}
	if !acceptedGroupPickleVersions[version] {
		return nil, olmerr.ErrUnknownPickleVersion
	}

	r := pickle.NewReader(payload)
	s := &OutboundGroupSession{}

	ratchet, err := readRatchet(r)
	if err != nil {
		return nil, err
	}
	s.ratchet = ratchet

	if err := readFixed(r, s.signing.Public[:]); err != nil {
		return nil, err
	}
	if err := readFixed(r, s.signing.Private[:]); err != nil {
		return nil, err
	}
	if err := readFixed(r, s.id[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// Pickle encrypts and serializes the inbound session, including every
// retained earlier export, under key.
func (s *InboundGroupSession) Pickle(key []byte) (string, error) {
	w := pickle.NewWriter()
	writeRatchet(w, s.ratchet)
	w.WriteFixed(s.signingPub[:])
	w.WriteFixed(s.id[:])
	w.WriteUint32(s.firstKnownIndex)
	w.WriteBool(s.verified)
	w.WriteUint32(uint32(len(s.earlierExports)))
	for _, e := range s.earlierExports {
		writeRatchet(w, e.ratchet)
	}
	return pickle.Seal(key, PickleVersion1, w.Bytes())
}

// UnpickleInbound decrypts and restores an inbound session pickled with Pickle.
func UnpickleInbound(key []byte, blob string) (*InboundGroupSession, error) {
	version, payload, err := pickle.Open(key, blob)
	if err != nil {
		return nil, err
	}
	if !acceptedGroupPickleVersions[version] {
		return nil, olmerr.ErrUnknownPickleVersion
	}

	r := pickle.NewReader(payload)
	s := &InboundGroupSession{}

	ratchet, err := readRatchet(r)
	if err != nil {
		return nil, err
	}
	s.ratchet = ratchet

	var signingPub ed25519.PublicKey
	if err := readFixed(r, signingPub[:]); err != nil {
		return nil, err
	}
	s.signingPub = signingPub

	if err := readFixed(r, s.id[:]); err != nil {
		return nil, err
	}

	firstKnownIndex, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	s.firstKnownIndex = firstKnownIndex

	verified, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	s.verified = verified

	numExports, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	s.earlierExports = make([]inboundExport, numExports)
	for i := range s.earlierExports {
		er, err := readRatchet(r)
		if err != nil {
			return nil, err
		}
		s.earlierExports[i] = inboundExport{ratchet: er}
	}
	return s, nil
}
