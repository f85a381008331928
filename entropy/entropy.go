// Package entropy injects the single external service the core consumes
// besides caller-supplied byte buffers: a source of cryptographically
// strong random bytes. The interface-plus-default-implementation shape
// mirrors the teacher's DoubleRatchet/doubleRatchetImpl split
// (protocol/doubleratchet/doubleratchet.go) rather than threading a
// process-wide random callback through package state.
package entropy

import (
	"crypto/rand"
	"io"

	"olmcore/olmerr"
)

// Source fills buf with random bytes. A short read is treated as fatal by
// every caller; there is no partial-success path.
type Source interface {
	FillRandom(buf []byte) error
}

type systemSource struct{}

// System returns the default Source, backed by the OS CSPRNG.
func System() Source { return systemSource{} }

func (systemSource) FillRandom(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return olmerr.ErrNotEnoughRandom
	}
	return nil
}

// Seed32 pulls exactly 32 random bytes from src, the width every key-pair
// generator in this module seeds from.
func Seed32(src Source) ([32]byte, error) {
	var seed [32]byte
	if err := src.FillRandom(seed[:]); err != nil {
		return seed, err
	}
	return seed, nil
}
