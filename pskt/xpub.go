package pskt

import "bytes"

// XPub is a global-scope record declaring an extended public key and the
// key-origin descriptor (master fingerprint + derivation path) it was
// derived with (spec.md §3.1 "xpubs").
type XPub struct {
	ExtendedKey          []byte
	MasterKeyFingerprint uint32
	Bip32Path            []uint32
}

// ReadXPub decodes a global xpub record: the extended key lives in the key
// data, the fingerprint+path in the value.
func ReadXPub(keyData, value []byte) (*XPub, error) {
	fingerprint, path, err := ReadBip32Derivation(value)
	if err != nil {
		return nil, err
	}
	return &XPub{
		ExtendedKey:          append([]byte(nil), keyData...),
		MasterKeyFingerprint: fingerprint,
		Bip32Path:            path,
	}, nil
}

// xpubSet is an insertion-ordered set of XPub records, unioned by Merge
// (spec.md §4.3: "union xpubs (values are sets, merged by set union)").
type xpubSet struct {
	order   []string
	entries map[string]*XPub
}

func newXpubSet() *xpubSet {
	return &xpubSet{entries: make(map[string]*XPub)}
}

func (s *xpubSet) add(x *XPub) error {
	k := string(x.ExtendedKey)
	if existing, ok := s.entries[k]; ok {
		if !bytes.Equal(SerializeBIP32Derivation(existing.MasterKeyFingerprint, existing.Bip32Path),
			SerializeBIP32Derivation(x.MasterKeyFingerprint, x.Bip32Path)) {
			return ErrDuplicateKey
		}
		return nil
	}
	s.entries[k] = x
	s.order = append(s.order, k)
	return nil
}

func (s *xpubSet) len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *xpubSet) clone() *xpubSet {
	n := newXpubSet()
	for _, k := range s.order {
		x := *s.entries[k]
		x.Bip32Path = append([]uint32(nil), s.entries[k].Bip32Path...)
		n.add(&x)
	}
	return n
}

// union merges other into s, ignoring entries already present.
func (s *xpubSet) union(other *xpubSet) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		_ = s.add(other.entries[k])
	}
}

func (s *xpubSet) toSlice() []XPub {
	out := make([]XPub, 0, s.len())
	for _, k := range s.order {
		out = append(out, *s.entries[k])
	}
	return out
}
