package pskt

import (
	"bytes"
	"io"

	"github.com/bynil/btcd/wire"
)

// psktMagicLength is the length of the magic bytes used to signal the start
// of a serialized PSKT packet.
const psktMagicLength = 5

// psktMagic is the 5-byte prefix every PSKT serialization begins with:
// "pskt" followed by the 0xff separator byte.
var psktMagic = [psktMagicLength]byte{0x70, 0x73, 0x6b, 0x74, 0xff}

// MaxPsktValueLength caps the size of any single key/value record's value,
// mirroring the conservative bound bitcoind/btcd use for PSBT values.
const MaxPsktValueLength = 4000000

// MaxPsktKeyLength caps the size of a key; anything larger is rejected
// before it is ever interpreted.
const MaxPsktKeyLength = 10000

// sectionTerminator is the single zero byte that ends every section
// (global, each input, each output).
const sectionTerminator = 0x00

// GlobalType enumerates the BIP-174 global-section key types.
type GlobalType uint8

const (
	GlobalUnsignedTx   GlobalType = 0x00
	GlobalXpub         GlobalType = 0x01
	GlobalVersion      GlobalType = 0xfb
	GlobalProprietary  GlobalType = 0xfc
)

// InputType enumerates the BIP-174/BIP-371 per-input key types.
type InputType uint8

const (
	InputNonWitnessUtxo     InputType = 0x00
	InputWitnessUtxo        InputType = 0x01
	InputPartialSig         InputType = 0x02
	InputSighashType        InputType = 0x03
	InputRedeemScript       InputType = 0x04
	InputWitnessScript      InputType = 0x05
	InputBip32Derivation    InputType = 0x06
	InputFinalScriptSig     InputType = 0x07
	InputFinalScriptWitness InputType = 0x08
	InputRipemd160          InputType = 0x0a
	InputSha256             InputType = 0x0b
	InputHash160            InputType = 0x0c
	InputHash256            InputType = 0x0d
	InputTapKeySig          InputType = 0x13
	InputTapScriptSig       InputType = 0x14
	InputTapLeafScript      InputType = 0x15
	InputTapBip32Derivation InputType = 0x16
	InputTapInternalKey     InputType = 0x17
	InputTapMerkleRoot      InputType = 0x18
	InputProprietary        InputType = 0xfc
)

// OutputType enumerates the BIP-174/BIP-371 per-output key types.
type OutputType uint8

const (
	OutputRedeemScript       OutputType = 0x00
	OutputWitnessScript      OutputType = 0x01
	OutputBip32Derivation    OutputType = 0x02
	OutputTapInternalKey     OutputType = 0x05
	OutputTapTree            OutputType = 0x06
	OutputTapBip32Derivation OutputType = 0x07
	OutputProprietary        OutputType = 0xfc
)

// kvPair is a single decoded key/value record: the raw key type byte, the
// key data following it (may be empty), and the value bytes.
type kvPair struct {
	keyType uint8
	keyData []byte
	value   []byte
}

// readKVPair reads one key/value record, or reports (true, nil) at the
// section terminator. It does not interpret the key type; callers switch on
// kvPair.keyType.
func readKVPair(r io.Reader) (kvPair, bool, error) {
	keyLen, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return kvPair{}, false, err
	}
	if keyLen == 0 {
		return kvPair{}, true, nil
	}
	if keyLen > MaxPsktKeyLength {
		return kvPair{}, false, ErrInvalidKeyData
	}

	keyBytes := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBytes); err != nil {
		return kvPair{}, false, err
	}

	value, err := wire.ReadVarBytes(r, 0, MaxPsktValueLength, "PSKT value")
	if err != nil {
		return kvPair{}, false, err
	}

	return kvPair{
		keyType: keyBytes[0],
		keyData: keyBytes[1:],
		value:   value,
	}, false, nil
}

// writeKVPair writes one key/value record: varint key length, key type
// byte, key data, varint value length, value bytes.
func writeKVPair(w io.Writer, keyType uint8, keyData, value []byte) error {
	key := make([]byte, 0, 1+len(keyData))
	key = append(key, keyType)
	key = append(key, keyData...)

	if err := wire.WriteVarInt(w, 0, uint64(len(key))); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}

	return wire.WriteVarBytes(w, 0, value)
}

// writeRawKVPair writes a record whose full key bytes (type + data) are
// already assembled, used for unknown fields preserved verbatim.
func writeRawKVPair(w io.Writer, key, value []byte) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(key))); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, value)
}

// writeCompactScript writes a script prefixed by its varint length, used by
// the Taproot tree encoding where a script follows fixed-size depth/version
// bytes rather than its own key/value record.
func writeCompactScript(w io.Writer, script []byte) error {
	return wire.WriteVarBytes(w, 0, script)
}

// readCompactScript is the inverse of writeCompactScript.
func readCompactScript(r io.Reader) ([]byte, error) {
	return wire.ReadVarBytes(r, 0, MaxPsktValueLength, "tap tree script")
}

// writeSectionTerminator writes the single zero byte ending a section.
func writeSectionTerminator(w io.Writer) error {
	_, err := w.Write([]byte{sectionTerminator})
	return err
}

// unknownMap preserves every record in a section whose type code this
// package does not recognize, keyed by the raw key bytes (type byte + key
// data) so round-tripping is byte exact. Order is preserved via keyOrder so
// re-encoding is deterministic across decode/encode cycles for records that
// share a section with other unknowns.
type unknownMap struct {
	values   map[string][]byte
	keyOrder []string
}

func newUnknownMap() *unknownMap {
	return &unknownMap{values: make(map[string][]byte)}
}

func (u *unknownMap) add(key, value []byte) error {
	k := string(key)
	if _, ok := u.values[k]; ok {
		return ErrDuplicateKey
	}
	u.values[k] = value
	u.keyOrder = append(u.keyOrder, k)
	return nil
}

func (u *unknownMap) serialize(w io.Writer) error {
	for _, k := range u.keyOrder {
		if err := writeRawKVPair(w, []byte(k), u.values[k]); err != nil {
			return err
		}
	}
	return nil
}

func (u *unknownMap) len() int {
	if u == nil {
		return 0
	}
	return len(u.keyOrder)
}

// equal reports whether two unknown maps carry the same key/value pairs
// (order-independent; §8 round-trip equality is about the multiset of
// records, canonical re-encoding is what restores an order).
func (u *unknownMap) equal(o *unknownMap) bool {
	if u.len() != o.len() {
		return false
	}
	for k, v := range u.values {
		ov, ok := o.values[k]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

// mergeFirstWriterWins copies every key from other into u that u does not
// already have; existing keys in u are kept (spec.md §4.3: "later wins only
// where a had no key; existing keys are kept").
func (u *unknownMap) mergeFirstWriterWins(other *unknownMap) {
	if other == nil {
		return
	}
	for _, k := range other.keyOrder {
		if _, ok := u.values[k]; ok {
			continue
		}
		u.values[k] = other.values[k]
		u.keyOrder = append(u.keyOrder, k)
	}
}

func (u *unknownMap) clone() *unknownMap {
	n := newUnknownMap()
	n.keyOrder = append([]string(nil), u.keyOrder...)
	for k, v := range u.values {
		n.values[k] = append([]byte(nil), v...)
	}
	return n
}
