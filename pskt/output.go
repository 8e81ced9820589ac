package pskt

import (
	"bytes"
	"io"
)

// POutput holds the data an Updater attaches to a single output of the
// unsigned transaction so that a future spender can reconstruct how to
// spend it (spec.md §3.3).
type POutput struct {
	RedeemScript    []byte
	WitnessScript   []byte
	Bip32Derivation *bip32DerivationMap

	TapInternalKey     []byte
	TapTree            []TapTreeLeaf
	TapBip32Derivation *TaprootBip32Derivations

	Proprietary *proprietaryList
	Unknown     *unknownMap
}

func newPOutput() POutput {
	return POutput{
		Bip32Derivation:    newBip32DerivationMap(),
		TapBip32Derivation: newTaprootBip32Derivations(),
		Proprietary:        newProprietaryList(),
		Unknown:            newUnknownMap(),
	}
}

// IsNull reports whether every field of the output is absent/empty.
func (po *POutput) IsNull() bool {
	return len(po.RedeemScript) == 0 &&
		len(po.WitnessScript) == 0 &&
		po.Bip32Derivation.len() == 0 &&
		len(po.TapInternalKey) == 0 &&
		len(po.TapTree) == 0 &&
		po.TapBip32Derivation.len() == 0 &&
		po.Proprietary.len() == 0 &&
		po.Unknown.len() == 0
}

func (po *POutput) deserialize(r io.Reader) error {
	*po = newPOutput()
	seen := make(map[uint8]bool)

	for {
		kv, done, err := readKVPair(r)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		switch OutputType(kv.keyType) {
		case OutputRedeemScript:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			po.RedeemScript = kv.value

		case OutputWitnessScript:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			po.WitnessScript = kv.value

		case OutputBip32Derivation:
			fp, path, err := ReadBip32Derivation(kv.value)
			if err != nil {
				return ErrInvalidPSKTValue
			}
			if err := po.Bip32Derivation.add(&Bip32Derivation{
				PubKey:               kv.keyData,
				MasterKeyFingerprint: fp,
				Bip32Path:            path,
			}); err != nil {
				return err
			}

		case OutputTapInternalKey:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			po.TapInternalKey = kv.value

		case OutputTapTree:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			leaves, err := decodeTapTree(kv.value)
			if err != nil {
				return err
			}
			po.TapTree = leaves

		case OutputTapBip32Derivation:
			leafHashes, fp, path, err := readTaprootBip32Value(kv.value)
			if err != nil {
				return ErrInvalidPSKTValue
			}
			if err := po.TapBip32Derivation.add(&TaprootBip32Derivation{
				XOnlyPubKey:          kv.keyData,
				LeafHashes:           leafHashes,
				MasterKeyFingerprint: fp,
				Bip32Path:            path,
			}); err != nil {
				return err
			}

		case OutputProprietary:
			identifier, subtype, key, err := decodeProprietaryKey(kv.keyData)
			if err != nil {
				return err
			}
			if err := po.Proprietary.add(&ProprietaryEntry{
				Identifier: identifier,
				Subtype:    subtype,
				Key:        key,
				Value:      kv.value,
			}); err != nil {
				return err
			}

		default:
			fullKey := append([]byte{kv.keyType}, kv.keyData...)
			if err := po.Unknown.add(fullKey, kv.value); err != nil {
				return err
			}
		}
	}
}

func (po *POutput) serialize(w io.Writer) error {
	if len(po.RedeemScript) != 0 {
		if err := writeKVPair(w, uint8(OutputRedeemScript), nil, po.RedeemScript); err != nil {
			return err
		}
	}

	if len(po.WitnessScript) != 0 {
		if err := writeKVPair(w, uint8(OutputWitnessScript), nil, po.WitnessScript); err != nil {
			return err
		}
	}

	for _, k := range po.Bip32Derivation.order {
		d := po.Bip32Derivation.entries[k]
		val := SerializeBIP32Derivation(d.MasterKeyFingerprint, d.Bip32Path)
		if err := writeKVPair(w, uint8(OutputBip32Derivation), d.PubKey, val); err != nil {
			return err
		}
	}

	if len(po.TapInternalKey) != 0 {
		if err := writeKVPair(w, uint8(OutputTapInternalKey), nil, po.TapInternalKey); err != nil {
			return err
		}
	}

	if len(po.TapTree) != 0 {
		if err := writeKVPair(w, uint8(OutputTapTree), nil, encodeTapTree(po.TapTree)); err != nil {
			return err
		}
	}

	for _, k := range po.TapBip32Derivation.order {
		d := po.TapBip32Derivation.entries[k]
		val := writeTaprootBip32Value(d.LeafHashes, d.MasterKeyFingerprint, d.Bip32Path)
		if err := writeKVPair(w, uint8(OutputTapBip32Derivation), d.XOnlyPubKey, val); err != nil {
			return err
		}
	}

	if err := po.Proprietary.serialize(w, uint8(OutputProprietary)); err != nil {
		return err
	}

	return po.Unknown.serialize(w)
}

func (po *POutput) clone() POutput {
	out := POutput{
		RedeemScript:       append([]byte(nil), po.RedeemScript...),
		WitnessScript:      append([]byte(nil), po.WitnessScript...),
		Bip32Derivation:    po.Bip32Derivation.clone(),
		TapInternalKey:     append([]byte(nil), po.TapInternalKey...),
		TapTree:            append([]TapTreeLeaf(nil), po.TapTree...),
		TapBip32Derivation: po.TapBip32Derivation.clone(),
		Proprietary:        po.Proprietary.clone(),
		Unknown:            po.Unknown.clone(),
	}
	return out
}

func encodeTapTree(leaves []TapTreeLeaf) []byte {
	var buf bytes.Buffer
	for _, l := range leaves {
		buf.WriteByte(l.Depth)
		buf.WriteByte(l.LeafVersion)
		_ = writeCompactScript(&buf, l.Script)
	}
	return buf.Bytes()
}

func decodeTapTree(value []byte) ([]TapTreeLeaf, error) {
	r := bytes.NewReader(value)
	var leaves []TapTreeLeaf
	for r.Len() > 0 {
		depth, err := r.ReadByte()
		if err != nil {
			return nil, ErrInvalidPSKTValue
		}
		version, err := r.ReadByte()
		if err != nil {
			return nil, ErrInvalidPSKTValue
		}
		script, err := readCompactScript(r)
		if err != nil {
			return nil, ErrInvalidPSKTValue
		}
		leaves = append(leaves, TapTreeLeaf{
			Depth:       depth,
			LeafVersion: version,
			Script:      script,
		})
	}
	return leaves, nil
}
