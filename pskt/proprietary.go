package pskt

import (
	"bytes"
	"io"

	"github.com/bynil/btcd/wire"
)

// ProprietaryEntry is a single proprietary key/value record: an identifier
// byte string, a subtype number, caller-defined key bytes, and a value
// (spec.md §3.1 "proprietary"). Proprietary records round-trip in the
// global, input, and output sections alike.
type ProprietaryEntry struct {
	Identifier []byte
	Subtype    uint64
	Key        []byte
	Value      []byte
}

// proprietaryList is an ordered, duplicate-checked collection of
// ProprietaryEntry records (spec.md: "each unknown/proprietary key is
// unique within its section").
type proprietaryList struct {
	entries []*ProprietaryEntry
	seen    map[string]struct{}
}

func newProprietaryList() *proprietaryList {
	return &proprietaryList{seen: make(map[string]struct{})}
}

func proprietaryDedupeKey(identifier []byte, subtype uint64, key []byte) string {
	var buf bytes.Buffer
	buf.Write(identifier)
	_ = wire.WriteVarInt(&buf, 0, subtype)
	buf.Write(key)
	return buf.String()
}

func (p *proprietaryList) add(e *ProprietaryEntry) error {
	k := proprietaryDedupeKey(e.Identifier, e.Subtype, e.Key)
	if _, ok := p.seen[k]; ok {
		return ErrDuplicateKey
	}
	p.seen[k] = struct{}{}
	p.entries = append(p.entries, e)
	return nil
}

func (p *proprietaryList) len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

func (p *proprietaryList) clone() *proprietaryList {
	n := newProprietaryList()
	for _, e := range p.entries {
		cp := *e
		n.add(&cp)
	}
	return n
}

// mergeFirstWriterWins adds every entry from other not already present
// (by identifier+subtype+key).
func (p *proprietaryList) mergeFirstWriterWins(other *proprietaryList) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		_ = p.add(e)
	}
}

// decodeProprietaryKey splits the raw key data following the 0xfc type byte
// into identifier, subtype, and key, per the BIP-174 proprietary schedule:
// <compact-size identifier length><identifier><compact-size subtype><key>.
func decodeProprietaryKey(keyData []byte) (identifier []byte, subtype uint64, key []byte, err error) {
	r := bytes.NewReader(keyData)

	idLen, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, 0, nil, err
	}
	identifier = make([]byte, idLen)
	if _, err := io.ReadFull(r, identifier); err != nil {
		return nil, 0, nil, err
	}

	subtype, err = wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, 0, nil, err
	}

	key = make([]byte, r.Len())
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, 0, nil, err
	}

	return identifier, subtype, key, nil
}

// encodeProprietaryKey is the inverse of decodeProprietaryKey.
func encodeProprietaryKey(identifier []byte, subtype uint64, key []byte) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(identifier)))
	buf.Write(identifier)
	_ = wire.WriteVarInt(&buf, 0, subtype)
	buf.Write(key)
	return buf.Bytes()
}

func (p *proprietaryList) serialize(w io.Writer, typeByte uint8) error {
	for _, e := range p.entries {
		keyData := encodeProprietaryKey(e.Identifier, e.Subtype, e.Key)
		if err := writeKVPair(w, typeByte, keyData, e.Value); err != nil {
			return err
		}
	}
	return nil
}
