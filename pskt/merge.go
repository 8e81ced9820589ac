package pskt

import "github.com/bynil/btcd/wire"

// Merge fuses b into a fresh clone of a, succeeding iff a and b share the
// same unsigned transaction (spec.md §4.3). The merge is a fold over
// per-field combiners: set union for map-valued fields, first-writer-wins
// for scalar optional fields — which is what makes the commutativity and
// idempotence properties in spec.md §8 mechanical rather than incidental.
func Merge(a, b *Packet) (*Packet, error) {
	if a.UnsignedTx.TxHash() != b.UnsignedTx.TxHash() {
		return nil, ErrPsktMismatch
	}
	if len(a.Inputs) != len(b.Inputs) || len(a.Outputs) != len(b.Outputs) {
		return nil, ErrPsktMismatch
	}

	out := a.Clone()

	out.XPubs.union(b.XPubs)
	out.Unknown.mergeFirstWriterWins(b.Unknown)
	out.Proprietary.mergeFirstWriterWins(b.Proprietary)
	if !out.versionSet && b.versionSet {
		out.SetVersion(b.version)
	}

	for i := range out.Inputs {
		mergeInput(&out.Inputs[i], &b.Inputs[i])
	}
	for i := range out.Outputs {
		mergeOutput(&out.Outputs[i], &b.Outputs[i])
	}

	return out, nil
}

// mergeInput fuses b into a in place, field by field, per spec.md §4.3.
func mergeInput(a, b *PInput) {
	if a.NonWitnessUtxo == nil && b.NonWitnessUtxo != nil {
		a.NonWitnessUtxo = b.NonWitnessUtxo.Copy()
	}
	if a.WitnessUtxo == nil && b.WitnessUtxo != nil {
		cp := *b.WitnessUtxo
		cp.PkScript = append([]byte(nil), b.WitnessUtxo.PkScript...)
		a.WitnessUtxo = &cp
	}

	a.PartialSigs.mergeFirstWriterWins(b.PartialSigs)

	if !a.sighashSet && b.sighashSet {
		a.SetSighashType(b.SighashType)
	}

	if len(a.RedeemScript) == 0 && len(b.RedeemScript) != 0 {
		a.RedeemScript = append([]byte(nil), b.RedeemScript...)
	}
	if len(a.WitnessScript) == 0 && len(b.WitnessScript) != 0 {
		a.WitnessScript = append([]byte(nil), b.WitnessScript...)
	}

	a.Bip32Derivation.mergeFirstWriterWins(b.Bip32Derivation)

	if len(a.FinalScriptSig) == 0 && len(b.FinalScriptSig) != 0 {
		a.FinalScriptSig = append([]byte(nil), b.FinalScriptSig...)
	}
	if len(a.FinalScriptWitness) == 0 && len(b.FinalScriptWitness) != 0 {
		wit := make(wire.TxWitness, len(b.FinalScriptWitness))
		for i, item := range b.FinalScriptWitness {
			wit[i] = append([]byte(nil), item...)
		}
		a.FinalScriptWitness = wit
	}

	a.Ripemd160Preimages.mergeFirstWriterWins(b.Ripemd160Preimages)
	a.Sha256Preimages.mergeFirstWriterWins(b.Sha256Preimages)
	a.Hash160Preimages.mergeFirstWriterWins(b.Hash160Preimages)
	a.Hash256Preimages.mergeFirstWriterWins(b.Hash256Preimages)

	if len(a.TapKeySig) == 0 && len(b.TapKeySig) != 0 {
		a.TapKeySig = append([]byte(nil), b.TapKeySig...)
	}
	a.TapScriptSigs.mergeFirstWriterWins(b.TapScriptSigs)
	a.TapLeafScripts.mergeUnion(b.TapLeafScripts)
	a.TapBip32Derivation.mergeFirstWriterWins(b.TapBip32Derivation)
	if len(a.TapInternalKey) == 0 && len(b.TapInternalKey) != 0 {
		a.TapInternalKey = append([]byte(nil), b.TapInternalKey...)
	}
	if len(a.TapMerkleRoot) == 0 && len(b.TapMerkleRoot) != 0 {
		a.TapMerkleRoot = append([]byte(nil), b.TapMerkleRoot...)
	}

	a.Proprietary.mergeFirstWriterWins(b.Proprietary)
	a.Unknown.mergeFirstWriterWins(b.Unknown)
}

// mergeOutput fuses b into a in place, analogous to mergeInput.
func mergeOutput(a, b *POutput) {
	if len(a.RedeemScript) == 0 && len(b.RedeemScript) != 0 {
		a.RedeemScript = append([]byte(nil), b.RedeemScript...)
	}
	if len(a.WitnessScript) == 0 && len(b.WitnessScript) != 0 {
		a.WitnessScript = append([]byte(nil), b.WitnessScript...)
	}

	a.Bip32Derivation.mergeFirstWriterWins(b.Bip32Derivation)

	if len(a.TapInternalKey) == 0 && len(b.TapInternalKey) != 0 {
		a.TapInternalKey = append([]byte(nil), b.TapInternalKey...)
	}
	if len(a.TapTree) == 0 && len(b.TapTree) != 0 {
		a.TapTree = append([]TapTreeLeaf(nil), b.TapTree...)
	}
	a.TapBip32Derivation.mergeFirstWriterWins(b.TapBip32Derivation)

	a.Proprietary.mergeFirstWriterWins(b.Proprietary)
	a.Unknown.mergeFirstWriterWins(b.Unknown)
}

// Combine left-folds Merge across pskts; any mismatch aborts the whole
// operation (spec.md §4.3). Combine is commutative and idempotent for
// well-formed inputs sharing the same unsigned transaction.
func Combine(pskts []*Packet) (*Packet, error) {
	if len(pskts) == 0 {
		return nil, ErrCombineEmpty
	}

	out := pskts[0].Clone()
	for _, next := range pskts[1:] {
		merged, err := Merge(out, next)
		if err != nil {
			return nil, err
		}
		out = merged
	}
	return out, nil
}
