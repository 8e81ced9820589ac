package pskt

import (
	"github.com/bynil/btcd/btcutil"
	"github.com/bynil/btcd/chaincfg"
	"github.com/bynil/btcd/txscript"
	"github.com/bynil/btcd/wire"
)

// orderedMultisigSigs orders the available partial signatures to
// match the order their corresponding public keys appear in script (BIP-174
// §"Combiner role" / CHECKMULTISIG's well known ordering requirement),
// stopping once nRequired signatures have been collected. The leading dummy
// element CHECKMULTISIG expects due to its off-by-one bug is included.
func orderedMultisigSigs(script []byte, sigs *partialSigMap, params *chaincfg.Params) ([][]byte, bool) {
	_, addrs, nRequired, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return nil, false
	}

	out := [][]byte{{}} // OP_0 placeholder consumed by CHECKMULTISIG's bug
	for _, addr := range addrs {
		if len(out)-1 >= nRequired {
			break
		}
		ps, ok := sigs.entries[string(addr.ScriptAddress())]
		if !ok {
			continue
		}
		out = append(out, ps.Signature)
	}
	if len(out)-1 != nRequired {
		return nil, false
	}
	return out, true
}

// tryFinalizeInput attempts to build a final scriptSig/witness for input i
// from whatever signatures and scripts it currently holds (spec.md §4.5). It
// reports whether finalization succeeded; a false result with a nil error
// means the input simply isn't ready yet, which is not itself an error.
func tryFinalizeInput(p *Packet, i int, params *chaincfg.Params) (bool, error) {
	input := &p.Inputs[i]
	if input.IsFinalized() {
		return true, nil
	}

	utxo, err := p.GetInputUTXO(i)
	if err != nil {
		return false, err
	}

	class := txscript.GetScriptClass(utxo.PkScript)

	if class == txscript.WitnessV1TaprootTy {
		return finalizeTaproot(input, utxo.PkScript)
	}

	scriptSig, witness, ok, err := finalizeScript(input, utxo.PkScript, params, false, false)
	if err != nil || !ok {
		return false, err
	}

	input.FinalScriptSig = scriptSig
	input.FinalScriptWitness = witness
	clearIntermediateFields(input)
	return true, nil
}

// finalizeScript recursively resolves script into a (scriptSig, witness)
// pair. nested is true when script was reached by unwrapping a P2SH or
// P2WSH wrapper; no case branches on it, and the P2SH case itself appends
// the pushed redeem script to the scriptSig it builds. witnessCtx reports whether script
// was reached after unwrapping a witness v0 program, in which case a leaf
// class (P2PKH, P2PK, bare multisig) must hand back its data pushes as
// separate witness stack elements instead of one concatenated scriptSig, the
// same data pushed two different ways depending on which wrapper wants it.
func finalizeScript(input *PInput, script []byte, params *chaincfg.Params, nested, witnessCtx bool) ([]byte, wire.TxWitness, bool, error) {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return nil, nil, false, nil
	}

	switch class {
	case txscript.ScriptHashTy:
		if len(input.RedeemScript) == 0 {
			return nil, nil, false, nil
		}
		scriptSig, witness, ok, err := finalizeScript(input, input.RedeemScript, params, true, false)
		if err != nil || !ok {
			return nil, nil, ok, err
		}
		builder := txscript.NewScriptBuilder()
		if len(scriptSig) != 0 {
			builder.AddOps(scriptSig)
		}
		builder.AddData(input.RedeemScript)
		final, err := builder.Script()
		if err != nil {
			return nil, nil, false, err
		}
		return final, witness, true, nil

	case txscript.WitnessV0ScriptHashTy:
		if len(input.WitnessScript) == 0 {
			return nil, nil, false, nil
		}
		_, witness, ok, err := finalizeScript(input, input.WitnessScript, params, true, true)
		if err != nil || !ok {
			return nil, nil, ok, err
		}
		witness = append(witness, input.WitnessScript)
		return nil, witness, true, nil

	case txscript.WitnessV0PubKeyHashTy:
		ps, found := firstMatchingSig(input.PartialSigs, addrs[0].ScriptAddress())
		if !found {
			return nil, nil, false, nil
		}
		return nil, wire.TxWitness{ps.Signature, ps.PubKey}, true, nil

	case txscript.PubKeyHashTy:
		ps, found := firstMatchingSig(input.PartialSigs, addrs[0].ScriptAddress())
		if !found {
			return nil, nil, false, nil
		}
		if witnessCtx {
			return nil, wire.TxWitness{ps.Signature, ps.PubKey}, true, nil
		}
		builder := txscript.NewScriptBuilder()
		builder.AddData(ps.Signature)
		builder.AddData(ps.PubKey)
		sigScript, err := builder.Script()
		if err != nil {
			return nil, nil, false, err
		}
		return sigScript, nil, true, nil

	case txscript.PubKeyTy:
		ps, found := firstMatchingSig(input.PartialSigs, addrs[0].ScriptAddress())
		if !found {
			return nil, nil, false, nil
		}
		if witnessCtx {
			return nil, wire.TxWitness{ps.Signature}, true, nil
		}
		builder := txscript.NewScriptBuilder()
		builder.AddData(ps.Signature)
		sigScript, err := builder.Script()
		if err != nil {
			return nil, nil, false, err
		}
		return sigScript, nil, true, nil

	case txscript.MultiSigTy:
		sigs, ok := orderedMultisigSigs(script, input.PartialSigs, params)
		if !ok {
			return nil, nil, false, nil
		}
		if witnessCtx {
			witness := make(wire.TxWitness, 0, len(sigs))
			witness = append(witness, sigs...)
			return nil, witness, true, nil
		}
		builder := txscript.NewScriptBuilder()
		for _, s := range sigs {
			builder.AddData(s)
		}
		sigScript, err := builder.Script()
		if err != nil {
			return nil, nil, false, err
		}
		return sigScript, nil, true, nil

	default:
		return nil, nil, false, nil
	}
}

// firstMatchingSig looks a partial signature up by its already-known 33/65
// byte pubkey serialization, matching the address's embedded hash where the
// script carries a hash rather than a full pubkey (P2PKH).
func firstMatchingSig(sigs *partialSigMap, keyOrHash []byte) (*PartialSig, bool) {
	for _, k := range sigs.order {
		ps := sigs.entries[k]
		if string(btcutil.Hash160(ps.PubKey)) == string(keyOrHash) || string(ps.PubKey) == string(keyOrHash) {
			return ps, true
		}
	}
	return nil, false
}

// clearIntermediateFields wipes every in-progress signing field once an
// input has been finalized, per BIP-174's finalize semantics.
func clearIntermediateFields(input *PInput) {
	input.PartialSigs = newPartialSigMap()
	input.RedeemScript = nil
	input.WitnessScript = nil
	input.Bip32Derivation = newBip32DerivationMap()
	input.Ripemd160Preimages = newPreimageMap()
	input.Sha256Preimages = newPreimageMap()
	input.Hash160Preimages = newPreimageMap()
	input.Hash256Preimages = newPreimageMap()
	input.TapKeySig = nil
	input.TapScriptSigs = newTaprootScriptSigs()
	input.TapLeafScripts = newTaprootLeafScripts()
	input.TapBip32Derivation = newTaprootBip32Derivations()
	input.TapInternalKey = nil
	input.TapMerkleRoot = nil
}

// finalizeTaproot builds the witness for a witness v1 input: a single
// key-path signature if one is present, otherwise the first complete
// script-path witness (signature(s), leaf script, control block) this
// package can assemble (spec.md §4.5).
func finalizeTaproot(input *PInput, pkScript []byte) (bool, error) {
	if len(input.TapKeySig) != 0 {
		input.FinalScriptWitness = wire.TxWitness{input.TapKeySig}
		clearIntermediateFields(input)
		return true, nil
	}

	for _, k := range input.TapLeafScripts.order {
		script := input.TapLeafScripts.script[k]
		version := input.TapLeafScripts.version[k]
		for _, cbKey := range input.TapLeafScripts.blockOrder[k] {
			cb := input.TapLeafScripts.blocks[k][cbKey]
			leaf := txscript.NewTapLeaf(version, script)
			leafHash := leaf.TapHash()

			var sigs [][]byte
			for _, cand := range extractSchnorrCandidates(script) {
				sigKey := tapScriptSigKey(cand, leafHash[:])
				if ts, ok := input.TapScriptSigs.entries[sigKey]; ok {
					sigs = append(sigs, ts.Signature)
				}
			}
			if len(sigs) == 0 {
				continue
			}

			witness := make(wire.TxWitness, 0, len(sigs)+2)
			witness = append(witness, sigs...)
			witness = append(witness, script, cb)
			input.FinalScriptWitness = witness
			clearIntermediateFields(input)
			return true, nil
		}
	}

	return false, nil
}

// FinalizePskt is the Finalizer role (spec.md §4.5): it attempts to
// finalize every input in place, returning ErrNotFinalizable for the first
// input it cannot complete.
func FinalizePskt(p *Packet, params *chaincfg.Params) error {
	for i := range p.Inputs {
		ok, err := tryFinalizeInput(p, i, params)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFinalizable
		}
	}
	return nil
}

// FinalizeBestEffort attempts to finalize every input, skipping over any it
// cannot complete rather than aborting, and reports how many inputs remain
// unfinalized. Callers that want "make as much progress as possible, then
// report whether the whole thing is done" (e.g. a finalizepskt RPC handler)
// should use this instead of FinalizePskt.
func FinalizeBestEffort(p *Packet, params *chaincfg.Params) (remaining int, err error) {
	for i := range p.Inputs {
		ok, err := tryFinalizeInput(p, i, params)
		if err != nil {
			return 0, err
		}
		if !ok {
			remaining++
		}
	}
	return remaining, nil
}
