// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pskt

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/bynil/btcd/btcutil"
	"github.com/bynil/btcd/wire"
)

// Packet is a Partially Signed Koyotecoin Transaction: a global section
// describing the unsigned transaction template plus one per-input and one
// per-output record for every entry of that template (spec.md §3.1).
type Packet struct {
	// UnsignedTx is the unsigned transaction this PSKT is building
	// towards. Its vin carry no scriptSig/witness data; those live in
	// the parallel Inputs slice until finalization.
	UnsignedTx *wire.MsgTx

	Inputs  []PInput
	Outputs []POutput

	XPubs *xpubSet

	// version is PSKT-format version; absent means version 0
	// (spec.md §9 GetVersion ambiguity note).
	version    uint32
	versionSet bool

	Proprietary *proprietaryList
	Unknown     *unknownMap
}

// validateUnsignedTX returns true if the transaction carries no
// scriptSig/witness data on any input. Basic sanity (non-zero vin/vout) is
// implicitly checked by the caller's deserialization.
func validateUnsignedTX(tx *wire.MsgTx) bool {
	for _, tin := range tx.TxIn {
		if len(tin.SignatureScript) != 0 || len(tin.Witness) != 0 {
			return false
		}
	}
	return true
}

// NewFromUnsignedTx creates a fresh Packet — the Creator role — from an
// already-built unsigned transaction template. The transaction must not
// carry any scriptSig/witness data.
func NewFromUnsignedTx(tx *wire.MsgTx) (*Packet, error) {
	if !validateUnsignedTX(tx) {
		return nil, ErrInvalidRawTxSigned
	}

	inputs := make([]PInput, len(tx.TxIn))
	for i := range inputs {
		inputs[i] = newPInput()
	}
	outputs := make([]POutput, len(tx.TxOut))
	for i := range outputs {
		outputs[i] = newPOutput()
	}

	return &Packet{
		UnsignedTx:  tx,
		Inputs:      inputs,
		Outputs:     outputs,
		XPubs:       newXpubSet(),
		Proprietary: newProprietaryList(),
		Unknown:     newUnknownMap(),
	}, nil
}

// GetVersion returns the PSKT format version, defaulting to 0 when the
// optional version field is absent (spec.md §9).
func (p *Packet) GetVersion() uint32 {
	if !p.versionSet {
		return 0
	}
	return p.version
}

// SetVersion records an explicit PSKT format version.
func (p *Packet) SetVersion(v uint32) {
	p.version = v
	p.versionSet = true
}

// NewFromRawBytes parses a Packet from a byte stream, accepting either raw
// or base64-framed bytes (spec.md §4.1: "Decoding accepts both raw and
// base64 framings").
func NewFromRawBytes(r io.Reader, b64 bool) (*Packet, error) {
	if b64 {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	var magic [psktMagicLength]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != psktMagic {
		return nil, ErrInvalidMagicBytes
	}

	kv, done, err := readKVPair(r)
	if err != nil {
		return nil, err
	}
	if done || GlobalType(kv.keyType) != GlobalUnsignedTx || len(kv.keyData) != 0 {
		return nil, ErrInvalidPsktFormat
	}

	tx := wire.NewMsgTx(2)
	if err := tx.DeserializeNoWitness(bytes.NewReader(kv.value)); err != nil {
		return nil, err
	}
	if !validateUnsignedTX(tx) {
		return nil, ErrInvalidRawTxSigned
	}

	p := &Packet{
		UnsignedTx:  tx,
		XPubs:       newXpubSet(),
		Proprietary: newProprietaryList(),
		Unknown:     newUnknownMap(),
	}

	seen := make(map[uint8]bool)
	for {
		kv, done, err := readKVPair(r)
		if err != nil {
			return nil, ErrInvalidPsktFormat
		}
		if done {
			break
		}

		switch GlobalType(kv.keyType) {
		case GlobalXpub:
			xpub, err := ReadXPub(kv.keyData, kv.value)
			if err != nil {
				return nil, err
			}
			if err := p.XPubs.add(xpub); err != nil {
				return nil, err
			}

		case GlobalVersion:
			if seen[kv.keyType] {
				return nil, ErrDuplicateKey
			}
			seen[kv.keyType] = true
			if len(kv.value) != 4 {
				return nil, ErrInvalidPSKTValue
			}
			p.SetVersion(leUint32(kv.value))

		case GlobalProprietary:
			identifier, subtype, key, err := decodeProprietaryKey(kv.keyData)
			if err != nil {
				return nil, err
			}
			if err := p.Proprietary.add(&ProprietaryEntry{
				Identifier: identifier,
				Subtype:    subtype,
				Key:        key,
				Value:      kv.value,
			}); err != nil {
				return nil, err
			}

		default:
			fullKey := append([]byte{kv.keyType}, kv.keyData...)
			if err := p.Unknown.add(fullKey, kv.value); err != nil {
				return nil, err
			}
		}
	}

	inputs := make([]PInput, len(tx.TxIn))
	for i := range inputs {
		if err := inputs[i].deserialize(r); err != nil {
			return nil, err
		}
	}
	p.Inputs = inputs

	outputs := make([]POutput, len(tx.TxOut))
	for i := range outputs {
		if err := outputs[i].deserialize(r); err != nil {
			return nil, err
		}
	}
	p.Outputs = outputs

	if len(p.Inputs) != len(tx.TxIn) || len(p.Outputs) != len(tx.TxOut) {
		return nil, ErrSectionCountMismatch
	}

	if extra, err := io.ReadFull(r, make([]byte, 1)); err == nil && extra == 1 {
		return nil, ErrTrailingBytes
	}

	if err := p.SanityCheck(); err != nil {
		return nil, err
	}

	return p, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Serialize writes the binary encoding of the Packet. Within each section the
// known records are emitted in type-code order, followed by proprietary
// records and then unknown records in the order they were recorded; unknown
// records are not merged into type-code order.
func (p *Packet) Serialize(w io.Writer) error {
	if _, err := w.Write(psktMagic[:]); err != nil {
		return err
	}

	var txBuf bytes.Buffer
	if err := p.UnsignedTx.SerializeNoWitness(&txBuf); err != nil {
		return err
	}
	if err := writeKVPair(w, uint8(GlobalUnsignedTx), nil, txBuf.Bytes()); err != nil {
		return err
	}

	for _, x := range p.XPubs.order {
		xpub := p.XPubs.entries[x]
		pathBytes := SerializeBIP32Derivation(xpub.MasterKeyFingerprint, xpub.Bip32Path)
		if err := writeKVPair(w, uint8(GlobalXpub), xpub.ExtendedKey, pathBytes); err != nil {
			return err
		}
	}

	if p.versionSet {
		var buf [4]byte
		buf[0] = byte(p.version)
		buf[1] = byte(p.version >> 8)
		buf[2] = byte(p.version >> 16)
		buf[3] = byte(p.version >> 24)
		if err := writeKVPair(w, uint8(GlobalVersion), nil, buf[:]); err != nil {
			return err
		}
	}

	if err := p.Proprietary.serialize(w, uint8(GlobalProprietary)); err != nil {
		return err
	}

	if err := p.Unknown.serialize(w); err != nil {
		return err
	}

	if err := writeSectionTerminator(w); err != nil {
		return err
	}

	for i := range p.Inputs {
		if err := p.Inputs[i].serialize(w); err != nil {
			return err
		}
		if err := writeSectionTerminator(w); err != nil {
			return err
		}
	}

	for i := range p.Outputs {
		if err := p.Outputs[i].serialize(w); err != nil {
			return err
		}
		if err := writeSectionTerminator(w); err != nil {
			return err
		}
	}

	return nil
}

// B64Encode returns the base64 encoding of the Packet's serialization
// (spec.md §6.1 "base64 for text transport").
func (p *Packet) B64Encode() (string, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsComplete reports whether every input carries a final scriptSig or
// witness, i.e. whether Extract can succeed (spec.md §3.4, §4.5).
func (p *Packet) IsComplete() bool {
	for i := range p.Inputs {
		if !p.Inputs[i].IsFinalized() {
			return false
		}
	}
	return true
}

// SanityCheck verifies the structural BIP-174 invariants this package can
// check locally: the unsigned transaction carries no signatures, the input
// slice lengths agree, and every input passes its own IsSane check.
func (p *Packet) SanityCheck() error {
	if !validateUnsignedTX(p.UnsignedTx) {
		return ErrInvalidRawTxSigned
	}
	if len(p.Inputs) != len(p.UnsignedTx.TxIn) || len(p.Outputs) != len(p.UnsignedTx.TxOut) {
		return ErrSectionCountMismatch
	}
	for i := range p.Inputs {
		if !p.Inputs[i].IsSane() {
			return ErrInvalidPsktFormat
		}
	}
	return nil
}

// GetInputUTXO resolves the spent output for input i (spec.md §4.2):
// prefer the non-witness UTXO (verifying hash and index match the
// prevout), falling back to the witness UTXO, or returning
// ErrUtxoMissing if neither is present.
func (p *Packet) GetInputUTXO(i int) (*wire.TxOut, error) {
	if i < 0 || i >= len(p.Inputs) {
		return nil, ErrInputOutOfBounds
	}
	prevOut := p.UnsignedTx.TxIn[i].PreviousOutPoint

	in := &p.Inputs[i]
	if in.NonWitnessUtxo != nil {
		if int(prevOut.Index) >= len(in.NonWitnessUtxo.TxOut) {
			return nil, ErrUtxoMismatch
		}
		if in.NonWitnessUtxo.TxHash() != prevOut.Hash {
			return nil, ErrUtxoMismatch
		}
		return in.NonWitnessUtxo.TxOut[prevOut.Index], nil
	}
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}
	return nil, ErrUtxoMissing
}

// GetTxFee returns the transaction fee, i.e. the sum of spent-output values
// minus the sum of output values. Returns ErrUtxoMissing if any input lacks
// UTXO information.
func (p *Packet) GetTxFee() (btcutil.Amount, error) {
	var sumIn int64
	for i := range p.Inputs {
		utxo, err := p.GetInputUTXO(i)
		if err != nil {
			return 0, err
		}
		sumIn += utxo.Value
	}

	var sumOut int64
	for _, out := range p.UnsignedTx.TxOut {
		sumOut += out.Value
	}

	return btcutil.Amount(sumIn - sumOut), nil
}

// AddInput appends a new input to both the unsigned transaction and the
// PSKT's per-input record slice atomically (spec.md §4.2), rejecting an
// outpoint that is already spent by this packet.
func (p *Packet) AddInput(txIn *wire.TxIn, in PInput) error {
	for _, existing := range p.UnsignedTx.TxIn {
		if existing.PreviousOutPoint == txIn.PreviousOutPoint {
			return ErrOutpointAlreadyExists
		}
	}
	p.UnsignedTx.TxIn = append(p.UnsignedTx.TxIn, txIn)
	p.Inputs = append(p.Inputs, in)
	return nil
}

// AddOutput appends a new output to both the unsigned transaction and the
// PSKT's per-output record slice atomically (spec.md §4.2).
func (p *Packet) AddOutput(txOut *wire.TxOut, out POutput) {
	p.UnsignedTx.TxOut = append(p.UnsignedTx.TxOut, txOut)
	p.Outputs = append(p.Outputs, out)
}

// VerifyInputOutputLen re-checks the §3.1 length invariant at an external
// entry point, optionally requiring at least one input and/or output.
// Grounded in colxwallet's use of psbt.VerifyInputOutputLen before funding
// a packet (SPEC_FULL.md §D.1).
func VerifyInputOutputLen(p *Packet, requireInputs, requireOutputs bool) error {
	if len(p.Inputs) != len(p.UnsignedTx.TxIn) || len(p.Outputs) != len(p.UnsignedTx.TxOut) {
		return ErrSectionCountMismatch
	}
	if requireInputs && len(p.Inputs) == 0 {
		return ErrInvalidPsktFormat
	}
	if requireOutputs && len(p.Outputs) == 0 {
		return ErrInvalidPsktFormat
	}
	return nil
}

// Clone returns a deep copy of the Packet so independent roles can work on
// their own copy and recombine later via Combine (spec.md §3.4, §5).
func (p *Packet) Clone() *Packet {
	out := &Packet{
		UnsignedTx:  p.UnsignedTx.Copy(),
		Inputs:      make([]PInput, len(p.Inputs)),
		Outputs:     make([]POutput, len(p.Outputs)),
		XPubs:       p.XPubs.clone(),
		version:     p.version,
		versionSet:  p.versionSet,
		Proprietary: p.Proprietary.clone(),
		Unknown:     p.Unknown.clone(),
	}
	for i := range p.Inputs {
		out.Inputs[i] = p.Inputs[i].clone()
	}
	for i := range p.Outputs {
		out.Outputs[i] = p.Outputs[i].clone()
	}
	return out
}
