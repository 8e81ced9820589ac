package pskt

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bynil/btcd/txscript"
	"github.com/bynil/btcd/wire"
)

// PInput holds all of the data needed to properly sign, or finalize, a
// single input of the unsigned transaction (spec.md §3.2). Every field is
// independently optional; an input is null iff every field is absent.
type PInput struct {
	NonWitnessUtxo *wire.MsgTx
	WitnessUtxo    *wire.TxOut

	PartialSigs *partialSigMap

	sighashSet  bool
	SighashType txscript.SigHashType

	RedeemScript    []byte
	WitnessScript   []byte
	Bip32Derivation *bip32DerivationMap

	FinalScriptSig      []byte
	FinalScriptWitness  wire.TxWitness

	Ripemd160Preimages *preimageMap
	Sha256Preimages    *preimageMap
	Hash160Preimages   *preimageMap
	Hash256Preimages   *preimageMap

	TapKeySig         []byte
	TapScriptSigs     *TaprootScriptSigs
	TapLeafScripts    *TaprootLeafScripts
	TapBip32Derivation *TaprootBip32Derivations
	TapInternalKey    []byte
	TapMerkleRoot     []byte

	Proprietary *proprietaryList
	Unknown     *unknownMap
}

// newPInput returns a zero-valued (null) input with initialized
// collections, ready to be filled in by an Updater or Signer.
func newPInput() PInput {
	return PInput{
		PartialSigs:        newPartialSigMap(),
		Bip32Derivation:    newBip32DerivationMap(),
		Ripemd160Preimages: newPreimageMap(),
		Sha256Preimages:    newPreimageMap(),
		Hash160Preimages:   newPreimageMap(),
		Hash256Preimages:   newPreimageMap(),
		TapScriptSigs:      newTaprootScriptSigs(),
		TapLeafScripts:     newTaprootLeafScripts(),
		TapBip32Derivation: newTaprootBip32Derivations(),
		Proprietary:        newProprietaryList(),
		Unknown:            newUnknownMap(),
	}
}

// SetSighashType records an explicit sighash flag for this input.
func (pi *PInput) SetSighashType(s txscript.SigHashType) {
	pi.sighashSet = true
	pi.SighashType = s
}

// HasSighashType reports whether an explicit sighash flag was recorded.
func (pi *PInput) HasSighashType() bool { return pi.sighashSet }

// IsNull reports whether every field of the input is absent/empty
// (spec.md §3.2 "Emptiness predicate").
func (pi *PInput) IsNull() bool {
	return pi.NonWitnessUtxo == nil &&
		pi.WitnessUtxo == nil &&
		pi.PartialSigs.len() == 0 &&
		!pi.sighashSet &&
		len(pi.RedeemScript) == 0 &&
		len(pi.WitnessScript) == 0 &&
		pi.Bip32Derivation.len() == 0 &&
		len(pi.FinalScriptSig) == 0 &&
		len(pi.FinalScriptWitness) == 0 &&
		pi.Ripemd160Preimages.len() == 0 &&
		pi.Sha256Preimages.len() == 0 &&
		pi.Hash160Preimages.len() == 0 &&
		pi.Hash256Preimages.len() == 0 &&
		len(pi.TapKeySig) == 0 &&
		pi.TapScriptSigs.len() == 0 &&
		pi.TapLeafScripts.len() == 0 &&
		pi.TapBip32Derivation.len() == 0 &&
		len(pi.TapInternalKey) == 0 &&
		len(pi.TapMerkleRoot) == 0 &&
		pi.Proprietary.len() == 0 &&
		pi.Unknown.len() == 0
}

// IsFinalized reports whether this input has a terminal scriptSig or
// witness already attached.
func (pi *PInput) IsFinalized() bool {
	return len(pi.FinalScriptSig) != 0 || len(pi.FinalScriptWitness) != 0
}

// IsSane checks the subset of BIP-174 well-formedness this package can
// verify locally: every recorded partial signature parses as a valid
// pubkey/DER-signature pair (spec.md §4.1 ErrInvalidTypeValue covers
// malformed values of known types; PartialSig.checkValid is the concrete
// check the teacher package already implements for this field).
func (pi *PInput) IsSane() bool {
	for _, k := range pi.PartialSigs.order {
		if !pi.PartialSigs.entries[k].checkValid() {
			return false
		}
	}
	return true
}

func serializeTxOut(w io.Writer, txOut *wire.TxOut) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(txOut.Value))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, txOut.PkScript)
}

func deserializeTxOut(value []byte) (*wire.TxOut, error) {
	if len(value) < 8 {
		return nil, ErrInvalidPSKTValue
	}
	amt := int64(binary.LittleEndian.Uint64(value[:8]))
	r := bytes.NewReader(value[8:])
	pkScript, err := wire.ReadVarBytes(r, 0, MaxPsktValueLength, "pkScript")
	if err != nil {
		return nil, err
	}
	return &wire.TxOut{Value: amt, PkScript: pkScript}, nil
}

func writeTxWitness(w io.Writer, wit wire.TxWitness) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(wit))); err != nil {
		return err
	}
	for _, item := range wit {
		if err := wire.WriteVarBytes(w, 0, item); err != nil {
			return err
		}
	}
	return nil
}

func readTxWitness(value []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(value)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	wit := make(wire.TxWitness, count)
	for i := range wit {
		item, err := wire.ReadVarBytes(r, 0, MaxPsktValueLength, "witness item")
		if err != nil {
			return nil, err
		}
		wit[i] = item
	}
	return wit, nil
}

func readTaprootBip32Value(value []byte) (leafHashes [][]byte, fingerprint uint32, path []uint32, err error) {
	r := bytes.NewReader(value)
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, 0, nil, err
	}
	leafHashes = make([][]byte, n)
	for i := range leafHashes {
		h := make([]byte, 32)
		if _, err := io.ReadFull(r, h); err != nil {
			return nil, 0, nil, err
		}
		leafHashes[i] = h
	}
	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, 0, nil, err
	}
	fingerprint, path, err = ReadBip32Derivation(rest)
	return leafHashes, fingerprint, path, err
}

func writeTaprootBip32Value(leafHashes [][]byte, fingerprint uint32, path []uint32) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(leafHashes)))
	for _, h := range leafHashes {
		buf.Write(h)
	}
	buf.Write(SerializeBIP32Derivation(fingerprint, path))
	return buf.Bytes()
}

// deserialize reads one input section: a sequence of key/value records
// ended by the section terminator.
func (pi *PInput) deserialize(r io.Reader) error {
	*pi = newPInput()
	seen := make(map[uint8]bool)

	for {
		kv, done, err := readKVPair(r)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		switch InputType(kv.keyType) {
		case InputNonWitnessUtxo:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			tx := wire.NewMsgTx(2)
			if err := tx.Deserialize(bytes.NewReader(kv.value)); err != nil {
				return ErrInvalidPSKTValue
			}
			pi.NonWitnessUtxo = tx

		case InputWitnessUtxo:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			txOut, err := deserializeTxOut(kv.value)
			if err != nil {
				return ErrInvalidPSKTValue
			}
			pi.WitnessUtxo = txOut

		case InputPartialSig:
			if err := pi.PartialSigs.add(&PartialSig{
				PubKey:    kv.keyData,
				Signature: kv.value,
			}); err != nil {
				return err
			}

		case InputSighashType:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			if len(kv.value) != 4 {
				return ErrInvalidPSKTValue
			}
			pi.sighashSet = true
			pi.SighashType = txscript.SigHashType(binary.LittleEndian.Uint32(kv.value))

		case InputRedeemScript:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			pi.RedeemScript = kv.value

		case InputWitnessScript:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			pi.WitnessScript = kv.value

		case InputBip32Derivation:
			fp, path, err := ReadBip32Derivation(kv.value)
			if err != nil {
				return ErrInvalidPSKTValue
			}
			if err := pi.Bip32Derivation.add(&Bip32Derivation{
				PubKey:               kv.keyData,
				MasterKeyFingerprint: fp,
				Bip32Path:            path,
			}); err != nil {
				return err
			}

		case InputFinalScriptSig:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			pi.FinalScriptSig = kv.value

		case InputFinalScriptWitness:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			wit, err := readTxWitness(kv.value)
			if err != nil {
				return ErrInvalidPSKTValue
			}
			pi.FinalScriptWitness = wit

		case InputRipemd160:
			if err := pi.Ripemd160Preimages.addChecked(kv.keyData, kv.value, ripemd160Hash); err != nil {
				return err
			}

		case InputSha256:
			if err := pi.Sha256Preimages.addChecked(kv.keyData, kv.value, sha256Hash); err != nil {
				return err
			}

		case InputHash160:
			if err := pi.Hash160Preimages.addChecked(kv.keyData, kv.value, hash160Hash); err != nil {
				return err
			}

		case InputHash256:
			if err := pi.Hash256Preimages.addChecked(kv.keyData, kv.value, hash256Hash); err != nil {
				return err
			}

		case InputTapKeySig:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			pi.TapKeySig = kv.value

		case InputTapScriptSig:
			if len(kv.keyData) != 64 {
				return ErrInvalidPSKTValue
			}
			if err := pi.TapScriptSigs.add(&TaprootScriptSig{
				XOnlyPubKey: kv.keyData[:32],
				LeafHash:    kv.keyData[32:],
				Signature:   kv.value,
			}); err != nil {
				return err
			}

		case InputTapLeafScript:
			if len(kv.value) < 1 {
				return ErrInvalidPSKTValue
			}
			script := kv.value[:len(kv.value)-1]
			leafVersion := kv.value[len(kv.value)-1]
			pi.TapLeafScripts.add(TaprootLeafScript{
				Script:       script,
				LeafVersion:  leafVersion,
				ControlBlock: kv.keyData,
			})

		case InputTapBip32Derivation:
			leafHashes, fp, path, err := readTaprootBip32Value(kv.value)
			if err != nil {
				return ErrInvalidPSKTValue
			}
			if err := pi.TapBip32Derivation.add(&TaprootBip32Derivation{
				XOnlyPubKey:          kv.keyData,
				LeafHashes:           leafHashes,
				MasterKeyFingerprint: fp,
				Bip32Path:            path,
			}); err != nil {
				return err
			}

		case InputTapInternalKey:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			pi.TapInternalKey = kv.value

		case InputTapMerkleRoot:
			if seen[kv.keyType] {
				return ErrDuplicateKey
			}
			seen[kv.keyType] = true
			pi.TapMerkleRoot = kv.value

		case InputProprietary:
			identifier, subtype, key, err := decodeProprietaryKey(kv.keyData)
			if err != nil {
				return err
			}
			if err := pi.Proprietary.add(&ProprietaryEntry{
				Identifier: identifier,
				Subtype:    subtype,
				Key:        key,
				Value:      kv.value,
			}); err != nil {
				return err
			}

		default:
			fullKey := append([]byte{kv.keyType}, kv.keyData...)
			if err := pi.Unknown.add(fullKey, kv.value); err != nil {
				return err
			}
		}
	}
}

// serialize writes one input section: known records in type-code order, then
// proprietary and unknown records in recorded order. The terminator is
// written separately by the caller.
func (pi *PInput) serialize(w io.Writer) error {
	if pi.NonWitnessUtxo != nil {
		var buf bytes.Buffer
		if err := pi.NonWitnessUtxo.Serialize(&buf); err != nil {
			return err
		}
		if err := writeKVPair(w, uint8(InputNonWitnessUtxo), nil, buf.Bytes()); err != nil {
			return err
		}
	}

	if pi.WitnessUtxo != nil {
		var buf bytes.Buffer
		if err := serializeTxOut(&buf, pi.WitnessUtxo); err != nil {
			return err
		}
		if err := writeKVPair(w, uint8(InputWitnessUtxo), nil, buf.Bytes()); err != nil {
			return err
		}
	}

	for _, ps := range pi.PartialSigs.sorted() {
		if err := writeKVPair(w, uint8(InputPartialSig), ps.PubKey, ps.Signature); err != nil {
			return err
		}
	}

	if pi.sighashSet {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(pi.SighashType))
		if err := writeKVPair(w, uint8(InputSighashType), nil, buf[:]); err != nil {
			return err
		}
	}

	if len(pi.RedeemScript) != 0 {
		if err := writeKVPair(w, uint8(InputRedeemScript), nil, pi.RedeemScript); err != nil {
			return err
		}
	}

	if len(pi.WitnessScript) != 0 {
		if err := writeKVPair(w, uint8(InputWitnessScript), nil, pi.WitnessScript); err != nil {
			return err
		}
	}

	for _, k := range pi.Bip32Derivation.order {
		d := pi.Bip32Derivation.entries[k]
		val := SerializeBIP32Derivation(d.MasterKeyFingerprint, d.Bip32Path)
		if err := writeKVPair(w, uint8(InputBip32Derivation), d.PubKey, val); err != nil {
			return err
		}
	}

	if len(pi.FinalScriptSig) != 0 {
		if err := writeKVPair(w, uint8(InputFinalScriptSig), nil, pi.FinalScriptSig); err != nil {
			return err
		}
	}

	if len(pi.FinalScriptWitness) != 0 {
		var buf bytes.Buffer
		if err := writeTxWitness(&buf, pi.FinalScriptWitness); err != nil {
			return err
		}
		if err := writeKVPair(w, uint8(InputFinalScriptWitness), nil, buf.Bytes()); err != nil {
			return err
		}
	}

	for _, pm := range []struct {
		m  *preimageMap
		kt InputType
	}{
		{pi.Ripemd160Preimages, InputRipemd160},
		{pi.Sha256Preimages, InputSha256},
		{pi.Hash160Preimages, InputHash160},
		{pi.Hash256Preimages, InputHash256},
	} {
		for _, k := range pm.m.order {
			if err := writeKVPair(w, uint8(pm.kt), []byte(k), pm.m.entries[k]); err != nil {
				return err
			}
		}
	}

	if len(pi.TapKeySig) != 0 {
		if err := writeKVPair(w, uint8(InputTapKeySig), nil, pi.TapKeySig); err != nil {
			return err
		}
	}

	for _, k := range pi.TapScriptSigs.order {
		v := pi.TapScriptSigs.entries[k]
		keyData := append(append([]byte{}, v.XOnlyPubKey...), v.LeafHash...)
		if err := writeKVPair(w, uint8(InputTapScriptSig), keyData, v.Signature); err != nil {
			return err
		}
	}

	for _, k := range pi.TapLeafScripts.order {
		script := pi.TapLeafScripts.script[k]
		version := pi.TapLeafScripts.version[k]
		for _, cbKey := range pi.TapLeafScripts.blockOrder[k] {
			cb := pi.TapLeafScripts.blocks[k][cbKey]
			value := append(append([]byte{}, script...), version)
			if err := writeKVPair(w, uint8(InputTapLeafScript), cb, value); err != nil {
				return err
			}
		}
	}

	for _, k := range pi.TapBip32Derivation.order {
		d := pi.TapBip32Derivation.entries[k]
		val := writeTaprootBip32Value(d.LeafHashes, d.MasterKeyFingerprint, d.Bip32Path)
		if err := writeKVPair(w, uint8(InputTapBip32Derivation), d.XOnlyPubKey, val); err != nil {
			return err
		}
	}

	if len(pi.TapInternalKey) != 0 {
		if err := writeKVPair(w, uint8(InputTapInternalKey), nil, pi.TapInternalKey); err != nil {
			return err
		}
	}

	if len(pi.TapMerkleRoot) != 0 {
		if err := writeKVPair(w, uint8(InputTapMerkleRoot), nil, pi.TapMerkleRoot); err != nil {
			return err
		}
	}

	if err := pi.Proprietary.serialize(w, uint8(InputProprietary)); err != nil {
		return err
	}

	return pi.Unknown.serialize(w)
}

// clone returns a deep copy of the input, used by roles that must not
// mutate a shared PSKT value in place.
func (pi *PInput) clone() PInput {
	out := PInput{
		PartialSigs:        pi.PartialSigs.clone(),
		sighashSet:         pi.sighashSet,
		SighashType:        pi.SighashType,
		RedeemScript:       append([]byte(nil), pi.RedeemScript...),
		WitnessScript:      append([]byte(nil), pi.WitnessScript...),
		Bip32Derivation:    pi.Bip32Derivation.clone(),
		FinalScriptSig:     append([]byte(nil), pi.FinalScriptSig...),
		Ripemd160Preimages: pi.Ripemd160Preimages.clone(),
		Sha256Preimages:    pi.Sha256Preimages.clone(),
		Hash160Preimages:   pi.Hash160Preimages.clone(),
		Hash256Preimages:   pi.Hash256Preimages.clone(),
		TapKeySig:          append([]byte(nil), pi.TapKeySig...),
		TapScriptSigs:      pi.TapScriptSigs.clone(),
		TapLeafScripts:     pi.TapLeafScripts.clone(),
		TapBip32Derivation: pi.TapBip32Derivation.clone(),
		TapInternalKey:     append([]byte(nil), pi.TapInternalKey...),
		TapMerkleRoot:      append([]byte(nil), pi.TapMerkleRoot...),
		Proprietary:        pi.Proprietary.clone(),
		Unknown:            pi.Unknown.clone(),
	}
	if pi.NonWitnessUtxo != nil {
		out.NonWitnessUtxo = pi.NonWitnessUtxo.Copy()
	}
	if pi.WitnessUtxo != nil {
		cp := *pi.WitnessUtxo
		cp.PkScript = append([]byte(nil), pi.WitnessUtxo.PkScript...)
		out.WitnessUtxo = &cp
	}
	if pi.FinalScriptWitness != nil {
		wit := make(wire.TxWitness, len(pi.FinalScriptWitness))
		for i, item := range pi.FinalScriptWitness {
			wit[i] = append([]byte(nil), item...)
		}
		out.FinalScriptWitness = wit
	}
	return out
}
