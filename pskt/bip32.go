package pskt

import (
	"encoding/binary"
	"errors"
)

// Bip32Derivation ties a public key to the master-fingerprint + derivation
// path it was derived with, the BIP-174 HD keypath record.
type Bip32Derivation struct {
	PubKey               []byte
	MasterKeyFingerprint uint32
	Bip32Path            []uint32
}

// SerializeBIP32Derivation encodes a master key fingerprint and derivation
// path into the flat 4+4n byte value used by BIP32-derivation records.
func SerializeBIP32Derivation(fingerprint uint32, path []uint32) []byte {
	out := make([]byte, 4+4*len(path))
	binary.LittleEndian.PutUint32(out[0:4], fingerprint)
	for i, step := range path {
		binary.LittleEndian.PutUint32(out[4+4*i:8+4*i], step)
	}
	return out
}

// ReadBip32Derivation decodes the value written by SerializeBIP32Derivation.
func ReadBip32Derivation(value []byte) (uint32, []uint32, error) {
	if len(value)%4 != 0 || len(value) < 4 {
		return 0, nil, errors.New("invalid bip32 derivation value length")
	}

	fingerprint := binary.LittleEndian.Uint32(value[0:4])
	path := make([]uint32, 0, len(value)/4-1)
	for i := 4; i < len(value); i += 4 {
		path = append(path, binary.LittleEndian.Uint32(value[i:i+4]))
	}
	return fingerprint, path, nil
}

// bip32DerivationMap is an insertion-ordered map from a serialized public
// key to its derivation info, used by both inputs and outputs.
type bip32DerivationMap struct {
	order   []string
	entries map[string]*Bip32Derivation
}

func newBip32DerivationMap() *bip32DerivationMap {
	return &bip32DerivationMap{entries: make(map[string]*Bip32Derivation)}
}

func (m *bip32DerivationMap) add(d *Bip32Derivation) error {
	k := string(d.PubKey)
	if _, ok := m.entries[k]; ok {
		return ErrDuplicateKey
	}
	m.entries[k] = d
	m.order = append(m.order, k)
	return nil
}

func (m *bip32DerivationMap) len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

func (m *bip32DerivationMap) clone() *bip32DerivationMap {
	n := newBip32DerivationMap()
	for _, k := range m.order {
		d := m.entries[k]
		cp := *d
		cp.Bip32Path = append([]uint32(nil), d.Bip32Path...)
		n.add(&cp)
	}
	return n
}

// mergeFirstWriterWins unions two derivation maps, keeping existing entries
// on key collision.
func (m *bip32DerivationMap) mergeFirstWriterWins(other *bip32DerivationMap) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		if _, ok := m.entries[k]; ok {
			continue
		}
		d := *other.entries[k]
		m.add(&d)
	}
}

func (m *bip32DerivationMap) equal(o *bip32DerivationMap) bool {
	if m.len() != o.len() {
		return false
	}
	for k, d := range m.entries {
		od, ok := o.entries[k]
		if !ok {
			return false
		}
		if d.MasterKeyFingerprint != od.MasterKeyFingerprint {
			return false
		}
		if len(d.Bip32Path) != len(od.Bip32Path) {
			return false
		}
		for i := range d.Bip32Path {
			if d.Bip32Path[i] != od.Bip32Path[i] {
				return false
			}
		}
	}
	return true
}
