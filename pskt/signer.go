package pskt

import (
	"github.com/bynil/btcd/btcutil"
	"github.com/bynil/btcd/chaincfg"
	"github.com/bynil/btcd/txscript"
)

// PrecomputePsktData resolves and caches every input's spent output ahead of
// a signing pass over a PSKT (spec.md §4.4 step 1), so a SignatureCreator
// built against the returned fetcher does not re-walk the Inputs slice once
// per input. An input whose UTXO cannot be resolved yet is skipped rather
// than aborting the call: the fetcher comes back covering whatever did
// resolve, in "partial" mode (Taproot signing needs every prevout present
// and will not work, but ECDSA signing on the legacy inputs that did
// resolve still will).
func PrecomputePsktData(p *Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i := range p.Inputs {
		utxo, err := p.GetInputUTXO(i)
		if err != nil {
			continue
		}
		fetcher.AddPrevOut(p.UnsignedTx.TxIn[i].PreviousOutPoint, utxo)
	}
	return fetcher, nil
}

// extractSchnorrCandidates returns every 32-byte data push found in script,
// the size of an x-only public key. Tapscript leaves in this engine's scope
// are expected to be single-signer (<pubkey> OP_CHECKSIG and similar), so
// scanning for 32-byte pushes is enough to find the keys worth trying
// without a full script disassembler.
func extractSchnorrCandidates(script []byte) [][]byte {
	var keys [][]byte
	for i := 0; i < len(script); {
		if script[i] == 0x20 && i+33 <= len(script) {
			keys = append(keys, script[i+1:i+33])
			i += 33
			continue
		}
		i++
	}
	return keys
}

// signLegacyOrSegwitV0 attempts to satisfy script (a P2PK, P2PKH, bare
// multisig, P2SH, or P2WSH leaf script, possibly reached after unwrapping a
// P2SH/P2WSH wrapper) against sd, recording whatever signatures provider and
// creator can produce and reporting what is still missing.
func signLegacyOrSegwitV0(
	provider SigningProvider,
	creator SignatureCreator,
	inputIndex int,
	hashType uint32,
	script []byte,
	params *chaincfg.Params,
	sd *SignatureData,
) error {
	class, addrs, nRequired, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return nil // non-standard script: nothing this engine can do
	}

	switch class {
	case txscript.ScriptHashTy:
		scriptHash := addrs[0].ScriptAddress()
		redeem := sd.RedeemScript
		if len(redeem) == 0 {
			if s, ok := provider.Script(scriptHash); ok {
				redeem = s
				sd.RedeemScript = s
			}
		}
		if len(redeem) == 0 {
			sd.MissingRedeemScriptHash = scriptHash
			return nil
		}
		return signLegacyOrSegwitV0(provider, creator, inputIndex, hashType, redeem, params, sd)

	case txscript.WitnessV0ScriptHashTy:
		scriptHash := addrs[0].ScriptAddress()
		witnessScript := sd.WitnessScript
		if len(witnessScript) == 0 {
			if s, ok := provider.Script(scriptHash); ok {
				witnessScript = s
				sd.WitnessScript = s
			}
		}
		if len(witnessScript) == 0 {
			sd.MissingWitnessScriptHash = scriptHash
			return nil
		}
		return signLegacyOrSegwitV0(provider, creator, inputIndex, hashType, witnessScript, params, sd)

	case txscript.PubKeyHashTy, txscript.WitnessV0PubKeyHashTy:
		return signForPubKey(provider, creator, inputIndex, hashType, script, addrs[0].ScriptAddress(), sd)

	case txscript.PubKeyTy:
		pubKeyAddr, ok := addrs[0].(*btcutil.AddressPubKey)
		if !ok {
			return nil
		}
		pubKey := pubKeyAddr.ScriptAddress()
		keyID := btcutil.Hash160(pubKey)
		return signForKnownPubKey(creator, inputIndex, hashType, script, pubKey, keyID, sd)

	case txscript.MultiSigTy:
		got := sd.PartialSigs.len()
		for _, addr := range addrs {
			if got >= nRequired {
				break
			}
			pubKeyAddr, ok := addr.(*btcutil.AddressPubKey)
			if !ok {
				continue
			}
			pubKey := pubKeyAddr.ScriptAddress()
			keyID := btcutil.Hash160(pubKey)
			if err := signForKnownPubKey(creator, inputIndex, hashType, script, pubKey, keyID, sd); err != nil {
				return err
			}
			got = sd.PartialSigs.len()
		}
		return nil

	default:
		return nil
	}
}

// signForPubKey resolves keyID (a Hash160 of a public key, as produced by
// P2PKH/P2WPKH address extraction) to a real public key via
// provider, then attempts to sign for it.
func signForPubKey(
	provider SigningProvider,
	creator SignatureCreator,
	inputIndex int,
	hashType uint32,
	script []byte,
	keyID []byte,
	sd *SignatureData,
) error {
	pubKey, ok := provider.PubKey(keyID)
	if !ok {
		sd.MissingPubKeys = append(sd.MissingPubKeys, keyID)
		return nil
	}
	return signForKnownPubKey(creator, inputIndex, hashType, script, pubKey, keyID, sd)
}

func signForKnownPubKey(
	creator SignatureCreator,
	inputIndex int,
	hashType uint32,
	script []byte,
	pubKey, keyID []byte,
	sd *SignatureData,
) error {
	if _, ok := sd.PartialSigs.entries[string(pubKey)]; ok {
		return nil // already have a signature for this key
	}
	sig, ok, err := creator.CreateSig(script, pubKey, inputIndex, hashType)
	if err != nil {
		return err
	}
	if !ok {
		sd.MissingSigs = append(sd.MissingSigs, pubKey)
		return nil
	}
	return sd.PartialSigs.add(&PartialSig{PubKey: pubKey, Signature: sig})
}

// signTaproot attempts the BIP-341/342 key-path and script-path signatures
// for a witness v1 output (spec.md §3.5 Taproot fields, §4.4).
func signTaproot(creator SignatureCreator, inputIndex int, hashType uint32, outputKey []byte, sd *SignatureData) error {
	if len(sd.TapKeySig) == 0 {
		sig, ok, err := creator.CreateSchnorrSig(outputKey, nil, inputIndex, hashType)
		if err != nil {
			return err
		}
		if ok {
			sd.TapKeySig = sig
		} else {
			sd.MissingSigs = append(sd.MissingSigs, outputKey)
		}
	}

	for _, k := range sd.TapScripts.order {
		script := sd.TapScripts.script[k]
		leaf := txscript.NewBaseTapLeaf(script)
		leafHash := leaf.TapHash()

		for _, cand := range extractSchnorrCandidates(script) {
			sigKey := tapScriptSigKey(cand, leafHash[:])
			if _, ok := sd.TapScriptSigs.entries[sigKey]; ok {
				continue
			}
			sig, ok, err := creator.CreateSchnorrSig(cand, leafHash[:], inputIndex, hashType)
			if err != nil {
				return err
			}
			if !ok {
				sd.MissingSigs = append(sd.MissingSigs, cand)
				continue
			}
			if err := sd.TapScriptSigs.add(&TaprootScriptSig{
				XOnlyPubKey: cand,
				LeafHash:    leafHash[:],
				Signature:   sig,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// SignPsktInput is the Signer role's core operation (spec.md §4.4): it
// fills a SignatureData bundle from input i's current metadata, asks
// provider/creator to extend it as far as they can, writes the result back,
// and — when finalize is set — attempts to finalize the input immediately
// once it is complete enough to do so (the one-shot Signer+Finalizer path
// some callers want instead of running the Finalizer as a separate step).
func SignPsktInput(
	provider SigningProvider,
	creator SignatureCreator,
	p *Packet,
	i int,
	hashType uint32,
	params *chaincfg.Params,
	finalize bool,
) error {
	if i < 0 || i >= len(p.Inputs) {
		return ErrInputOutOfBounds
	}
	input := &p.Inputs[i]
	if input.IsFinalized() {
		return nil
	}

	utxo, err := p.GetInputUTXO(i)
	if err != nil {
		return err
	}

	sd := FillSignatureData(input)
	if sd.Complete {
		FromSignatureData(sd, input)
		return nil
	}

	class := txscript.GetScriptClass(utxo.PkScript)
	if class == txscript.WitnessV1TaprootTy {
		outputKey := utxo.PkScript[2:]
		if err := signTaproot(creator, i, hashType, outputKey, sd); err != nil {
			return err
		}
	} else {
		if err := signLegacyOrSegwitV0(provider, creator, i, hashType, utxo.PkScript, params, sd); err != nil {
			return err
		}
	}

	FromSignatureData(sd, input)

	if finalize {
		if _, err := tryFinalizeInput(p, i, params); err != nil {
			return err
		}
	}
	return nil
}

// isSegwitSpent reports whether input i's UTXO is spent by a native
// SegWit or Taproot scriptPubKey, or a P2SH wrapping one.
func isSegwitSpent(input *PInput, pkScript []byte) bool {
	class := txscript.GetScriptClass(pkScript)
	switch class {
	case txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy, txscript.WitnessV1TaprootTy:
		return true
	case txscript.ScriptHashTy:
		if len(input.RedeemScript) == 0 {
			return false
		}
		return txscript.IsWitnessProgram(input.RedeemScript)
	default:
		return false
	}
}

// StripNonWitnessUtxos drops every input's non_witness_utxo once it is
// confirmed every input in the PSKT is SegWit-spent, shrinking a packet that
// would otherwise carry a full parent transaction per input for no security
// benefit once CVE-2020-14199-style downgrade attacks no longer apply to it.
// This is opt-in and must never run implicitly: a single legacy input in the
// packet aborts the whole pass.
func StripNonWitnessUtxos(p *Packet) error {
	for i := range p.Inputs {
		utxo, err := p.GetInputUTXO(i)
		if err != nil {
			return err
		}
		if !isSegwitSpent(&p.Inputs[i], utxo.PkScript) {
			return ErrNotAllSegwit
		}
	}
	for i := range p.Inputs {
		p.Inputs[i].NonWitnessUtxo = nil
	}
	return nil
}

// UpdatePsktInput attaches whatever redeem/witness-script provider knows
// for input i's spent output, without attempting any signature (the
// Updater role operating on inputs, spec.md §4.2). Use SignPsktInput for
// the Signer role's signature-producing pass.
func UpdatePsktInput(provider SigningProvider, p *Packet, i int, params *chaincfg.Params) error {
	if i < 0 || i >= len(p.Inputs) {
		return ErrInputOutOfBounds
	}
	input := &p.Inputs[i]
	if input.IsFinalized() {
		return nil
	}

	utxo, err := p.GetInputUTXO(i)
	if err != nil {
		return err
	}

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(utxo.PkScript, params)
	if err != nil {
		return nil
	}

	switch class {
	case txscript.ScriptHashTy:
		if len(input.RedeemScript) == 0 {
			if s, ok := provider.Script(addrs[0].ScriptAddress()); ok {
				input.RedeemScript = s
			}
		}
	case txscript.WitnessV0ScriptHashTy:
		if len(input.WitnessScript) == 0 {
			if s, ok := provider.Script(addrs[0].ScriptAddress()); ok {
				input.WitnessScript = s
			}
		}
	case txscript.WitnessV1TaprootTy:
		outputKey := utxo.PkScript[2:]
		if len(input.TapInternalKey) == 0 {
			if internalKey, merkleRoot, ok := provider.TapInternalKey(outputKey); ok {
				input.TapInternalKey = internalKey
				input.TapMerkleRoot = merkleRoot
			}
		}
		if leaves, ok := provider.TapScripts(outputKey); ok {
			for _, l := range leaves {
				input.TapLeafScripts.add(l)
			}
		}
	}

	return nil
}

// UpdatePsktOutput attaches whatever redeem/witness script provider knows
// for output i, without ever touching a signature (the Updater role
// operating on outputs, spec.md §4.2). It does not look up key-origin
// (derivation) metadata; existing derivation records are kept as they are.
func UpdatePsktOutput(provider SigningProvider, p *Packet, i int, params *chaincfg.Params) error {
	if i < 0 || i >= len(p.Outputs) {
		return ErrInputOutOfBounds
	}
	output := &p.Outputs[i]
	sd := FillSignatureDataOutput(output)

	txOut := p.UnsignedTx.TxOut[i]
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(txOut.PkScript, params)
	if err == nil {
		switch class {
		case txscript.ScriptHashTy, txscript.WitnessV0ScriptHashTy:
			if s, ok := provider.Script(addrs[0].ScriptAddress()); ok {
				if class == txscript.ScriptHashTy {
					sd.RedeemScript = s
				} else {
					sd.WitnessScript = s
				}
			}
		}
	}

	FromSignatureDataOutput(sd, output)
	return nil
}
