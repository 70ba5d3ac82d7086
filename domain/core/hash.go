package core

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a fast, non-cryptographic digest of engine state. Two equal
// fingerprints mean the visible matrix content is the same for every practical
// purpose (download reuse, no-op detection).
type Fingerprint uint64

// String renders the fingerprint as fixed-width hex
func (f Fingerprint) String() string {
	s := strconv.FormatUint(uint64(f), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}

// Hasher accumulates fields into a Fingerprint
type Hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

// NewHasher creates an empty hasher
func NewHasher() *Hasher {
	return &Hasher{d: xxhash.New()}
}

// AddString adds a length-prefixed string
func (h *Hasher) AddString(s string) *Hasher {
	h.AddInt(len(s))
	_, _ = h.d.WriteString(s)
	return h
}

// AddStrings adds a slice of strings, order-sensitive
func (h *Hasher) AddStrings(ss []string) *Hasher {
	h.AddInt(len(ss))
	for _, s := range ss {
		h.AddString(s)
	}
	return h
}

// AddInt adds an integer
func (h *Hasher) AddInt(v int) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	_, _ = h.d.Write(h.buf[:])
	return h
}

// AddFloat adds a float by its bit pattern
func (h *Hasher) AddFloat(v float64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], math.Float64bits(v))
	_, _ = h.d.Write(h.buf[:])
	return h
}

// AddBool adds a boolean
func (h *Hasher) AddBool(v bool) *Hasher {
	if v {
		return h.AddInt(1)
	}
	return h.AddInt(0)
}

// Sum returns the accumulated fingerprint
func (h *Hasher) Sum() Fingerprint {
	return Fingerprint(h.d.Sum64())
}
