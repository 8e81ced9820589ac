package pskt

import "github.com/bynil/btcd/wire"

// SignatureData is the neutral bundle exchanged with a SigningProvider
// during the signature pipeline (spec.md §3.5, §4.4): it carries whatever
// has been produced so far for one input (or output, in metadata-only
// mode), plus a report of what is still missing.
type SignatureData struct {
	ScriptSig []byte
	Witness   wire.TxWitness

	PartialSigs   *partialSigMap
	RedeemScript  []byte
	WitnessScript []byte
	MiscPubKeys   *bip32DerivationMap

	TapKeySig      []byte
	TapScriptSigs  *TaprootScriptSigs
	TapScripts     *TaprootLeafScripts
	TapInternalKey []byte
	TapMerkleRoot  []byte
	TapMiscPubKeys *TaprootBip32Derivations

	Complete bool

	// Missing* report what this bundle still lacks; populated by the
	// signing pass inside SignPsktInput. The analyzer does not read them,
	// and SignPsktInput does not return the bundle to its caller.
	MissingPubKeys          [][]byte
	MissingSigs             [][]byte
	MissingRedeemScriptHash []byte
	MissingWitnessScriptHash []byte
}

// NewSignatureData returns an empty, ready-to-fill SignatureData.
func NewSignatureData() *SignatureData {
	return &SignatureData{
		PartialSigs:    newPartialSigMap(),
		MiscPubKeys:    newBip32DerivationMap(),
		TapScriptSigs:  newTaprootScriptSigs(),
		TapScripts:     newTaprootLeafScripts(),
		TapMiscPubKeys: newTaprootBip32Derivations(),
	}
}

// FillSignatureData converts a PSKT input's metadata into a SignatureData
// bundle (spec.md §4.4): if the input is already finalized, the bundle is
// immediately complete and nothing else is copied; otherwise every
// non-final field is copied across so a signing provider can extend it.
func FillSignatureData(input *PInput) *SignatureData {
	sd := NewSignatureData()

	if len(input.FinalScriptSig) != 0 || len(input.FinalScriptWitness) != 0 {
		sd.ScriptSig = append([]byte(nil), input.FinalScriptSig...)
		sd.Witness = input.FinalScriptWitness
		sd.Complete = true
		return sd
	}

	sd.PartialSigs = input.PartialSigs.clone()
	sd.RedeemScript = append([]byte(nil), input.RedeemScript...)
	sd.WitnessScript = append([]byte(nil), input.WitnessScript...)
	sd.MiscPubKeys = input.Bip32Derivation.clone()

	sd.TapKeySig = append([]byte(nil), input.TapKeySig...)
	sd.TapScriptSigs = input.TapScriptSigs.clone()
	sd.TapScripts = input.TapLeafScripts.clone()
	sd.TapInternalKey = append([]byte(nil), input.TapInternalKey...)
	sd.TapMerkleRoot = append([]byte(nil), input.TapMerkleRoot...)
	sd.TapMiscPubKeys = input.TapBip32Derivation.clone()

	return sd
}

// FillSignatureDataOutput is FillSignatureData's output-side counterpart,
// used by UpdatePsktOutput's metadata-only pass.
func FillSignatureDataOutput(output *POutput) *SignatureData {
	sd := NewSignatureData()
	sd.RedeemScript = append([]byte(nil), output.RedeemScript...)
	sd.WitnessScript = append([]byte(nil), output.WitnessScript...)
	sd.MiscPubKeys = output.Bip32Derivation.clone()
	sd.TapInternalKey = append([]byte(nil), output.TapInternalKey...)
	sd.TapMiscPubKeys = output.TapBip32Derivation.clone()
	return sd
}

// FromSignatureData writes a SignatureData bundle back into a PSKT input
// (spec.md §4.4): a complete bundle clears the in-progress fields and
// records the terminal scriptSig/witness; an incomplete bundle merges its
// partial signatures and fills empty scalar fields.
func FromSignatureData(sd *SignatureData, input *PInput) {
	if sd.Complete {
		input.PartialSigs = newPartialSigMap()
		input.Bip32Derivation = newBip32DerivationMap()
		input.RedeemScript = nil
		input.WitnessScript = nil
		input.TapScriptSigs = newTaprootScriptSigs()
		input.TapLeafScripts = newTaprootLeafScripts()
		input.FinalScriptSig = append([]byte(nil), sd.ScriptSig...)
		input.FinalScriptWitness = sd.Witness
		return
	}

	input.PartialSigs.mergeFirstWriterWins(sd.PartialSigs)
	if len(input.RedeemScript) == 0 && len(sd.RedeemScript) != 0 {
		input.RedeemScript = append([]byte(nil), sd.RedeemScript...)
	}
	if len(input.WitnessScript) == 0 && len(sd.WitnessScript) != 0 {
		input.WitnessScript = append([]byte(nil), sd.WitnessScript...)
	}
	input.Bip32Derivation.mergeFirstWriterWins(sd.MiscPubKeys)

	if len(input.TapKeySig) == 0 && len(sd.TapKeySig) != 0 {
		input.TapKeySig = append([]byte(nil), sd.TapKeySig...)
	}
	input.TapScriptSigs.mergeFirstWriterWins(sd.TapScriptSigs)
	input.TapLeafScripts.mergeUnion(sd.TapScripts)
	input.TapBip32Derivation.mergeFirstWriterWins(sd.TapMiscPubKeys)
	if len(input.TapInternalKey) == 0 && len(sd.TapInternalKey) != 0 {
		input.TapInternalKey = append([]byte(nil), sd.TapInternalKey...)
	}
	if len(input.TapMerkleRoot) == 0 && len(sd.TapMerkleRoot) != 0 {
		input.TapMerkleRoot = append([]byte(nil), sd.TapMerkleRoot...)
	}
}

// FromSignatureDataOutput writes metadata-only SignatureData back into a
// PSKT output (used by UpdatePsktOutput, which never produces signatures).
func FromSignatureDataOutput(sd *SignatureData, output *POutput) {
	if len(output.RedeemScript) == 0 && len(sd.RedeemScript) != 0 {
		output.RedeemScript = append([]byte(nil), sd.RedeemScript...)
	}
	if len(output.WitnessScript) == 0 && len(sd.WitnessScript) != 0 {
		output.WitnessScript = append([]byte(nil), sd.WitnessScript...)
	}
	output.Bip32Derivation.mergeFirstWriterWins(sd.MiscPubKeys)
	if len(output.TapInternalKey) == 0 && len(sd.TapInternalKey) != 0 {
		output.TapInternalKey = append([]byte(nil), sd.TapInternalKey...)
	}
	output.TapBip32Derivation.mergeFirstWriterWins(sd.TapMiscPubKeys)
}
