package pskt

import (
	"bytes"
	"crypto/sha256"

	"github.com/bynil/btcd/btcutil"
	"golang.org/x/crypto/ripemd160"
)

// preimageMap is an insertion-ordered, hash-keyed collection of preimages,
// backing the four PSKTInput preimage fields (RIPEMD160, SHA256, HASH160,
// HASH256).
type preimageMap struct {
	order   []string
	entries map[string][]byte
}

func newPreimageMap() *preimageMap {
	return &preimageMap{entries: make(map[string][]byte)}
}

// ripemd160Hash, sha256Hash, hash160Hash, and hash256Hash compute the four
// hash algorithms PSKT preimage fields name (spec.md §3.4), so the input
// decoder can reject a preimage that does not actually hash to its declared
// key.
func ripemd160Hash(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

func sha256Hash(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func hash160Hash(b []byte) []byte {
	return btcutil.Hash160(b)
}

func hash256Hash(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func (m *preimageMap) add(hash, preimage []byte) error {
	k := string(hash)
	if _, ok := m.entries[k]; ok {
		return ErrDuplicateKey
	}
	m.entries[k] = preimage
	m.order = append(m.order, k)
	return nil
}

// addChecked validates preimage against hash using hashFn before recording
// it, rejecting a record a decoder could otherwise add unvalidated; returns
// ErrPreimageHashMismatch when the preimage does not actually hash to the
// declared key.
func (m *preimageMap) addChecked(hash, preimage []byte, hashFn func([]byte) []byte) error {
	if !bytes.Equal(hashFn(preimage), hash) {
		return ErrPreimageHashMismatch
	}
	return m.add(hash, preimage)
}

func (m *preimageMap) len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

func (m *preimageMap) clone() *preimageMap {
	n := newPreimageMap()
	for _, k := range m.order {
		n.add([]byte(k), append([]byte(nil), m.entries[k]...))
	}
	return n
}

func (m *preimageMap) mergeFirstWriterWins(other *preimageMap) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		if _, ok := m.entries[k]; ok {
			continue
		}
		m.add([]byte(k), other.entries[k])
	}
}
