package pskt

import (
	"github.com/bynil/btcd/btcutil"
	"github.com/bynil/btcd/chaincfg"
	"github.com/bynil/btcd/txscript"
)

// PsktRole orders the five cooperating roles in a PSKT workflow so the
// analyzer can report "what needs to happen next" as a single value
// (spec.md §2, §4.6): CREATOR < UPDATER < SIGNER < FINALIZER < EXTRACTOR.
type PsktRole int

const (
	RoleCreator PsktRole = iota
	RoleUpdater
	RoleSigner
	RoleFinalizer
	RoleExtractor
)

func (r PsktRole) String() string {
	switch r {
	case RoleCreator:
		return "CREATOR"
	case RoleUpdater:
		return "UPDATER"
	case RoleSigner:
		return "SIGNER"
	case RoleFinalizer:
		return "FINALIZER"
	case RoleExtractor:
		return "EXTRACTOR"
	default:
		return "UNKNOWN"
	}
}

// AnalyzerOptions threads every tunable the analyzer needs explicitly
// (spec.md §9: "no hidden global state"), rather than reading a package
// level variable.
type AnalyzerOptions struct {
	// AssumedInputVSize is the virtual size charged, per not-yet-final
	// input, when estimating a PSKT's eventual weight.
	AssumedInputVSize int64
}

// DefaultAnalyzerOptions returns the options this package's callers use
// absent a more specific estimate, based on a single-signature P2WPKH
// input's typical virtual size.
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{AssumedInputVSize: 68}
}

// PsktInputAnalysis reports what one input still needs (spec.md §4.6).
type PsktInputAnalysis struct {
	HasUTXO bool
	IsFinal bool
	NextRole PsktRole

	// NeedsRedeemScript/NeedsWitnessScript are true when the spent
	// output's scriptPubKey requires a script this input does not carry
	// yet.
	NeedsRedeemScript  bool
	NeedsWitnessScript bool

	// SigsProvided/SigsRequired report a multisig script's signature
	// progress; SigsRequired is -1 when the script's signer count isn't
	// statically determinable (e.g. the redeem/witness script isn't known
	// yet). A Taproot input counts as needing one signature.
	SigsProvided int
	SigsRequired int

	// Invalid is set when this input's UTXO fails a consensus check the
	// analyzer can evaluate on its own: an out-of-range amount or a
	// provably unspendable scriptPubKey. Error holds the reason.
	Invalid bool
	Error   string
}

// PsktAnalysis is the Analyzer role's full report on a PSKT (spec.md §4.6).
type PsktAnalysis struct {
	Inputs []PsktInputAnalysis

	// NextRole is the most-upstream role any input still needs.
	NextRole PsktRole

	// FeeKnown is false when some input's UTXO is unresolvable, in which
	// case Fee and EstimatedFeeRate are zero.
	FeeKnown bool
	Fee      btcutil.Amount

	EstimatedVSize   int64
	EstimatedFeeRate float64 // satoshis per virtual byte

	// Invalid is set when any input failed its amount-range or
	// unspendable-output check; Error carries the first such reason.
	// NextRole is forced back to RoleCreator and every estimate above is
	// zeroed, since an invalid PSKT cannot be meaningfully advanced.
	Invalid bool
	Error   string
}

// SetInvalid marks the whole analysis invalid: it records msg, resets
// NextRole to RoleCreator, and clears every fee/size estimate, since none
// of them mean anything once a PSKT has failed a consensus check
// (spec.md §4.6/§7).
func (a *PsktAnalysis) SetInvalid(msg string) {
	a.Invalid = true
	a.Error = msg
	a.NextRole = RoleCreator
	a.FeeKnown = false
	a.Fee = 0
	a.EstimatedVSize = 0
	a.EstimatedFeeRate = 0
}

// sigOpProgress reports the multisig threshold and current signature count
// for script, or ok=false if script isn't a statically-sized multisig-like
// script this package can count.
func sigOpProgress(script []byte, sigs *partialSigMap, params *chaincfg.Params) (provided, required int, ok bool) {
	class, addrs, nRequired, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return 0, 0, false
	}
	switch class {
	case txscript.MultiSigTy:
		got := 0
		for _, addr := range addrs {
			pubKeyAddr, ok := addr.(*btcutil.AddressPubKey)
			if !ok {
				continue
			}
			if _, present := sigs.entries[string(pubKeyAddr.ScriptAddress())]; present {
				got++
			}
		}
		return got, nRequired, true
	case txscript.PubKeyHashTy, txscript.WitnessV0PubKeyHashTy, txscript.PubKeyTy:
		if sigs.len() > 0 {
			return 1, 1, true
		}
		return 0, 1, true
	default:
		return 0, 0, false
	}
}

// analyzeInput classifies a single input, looking only at data already
// attached to the PSKT (no SigningProvider is involved — the analyzer
// reports readiness, it does not attempt to advance it).
func analyzeInput(p *Packet, i int, params *chaincfg.Params) PsktInputAnalysis {
	a := PsktInputAnalysis{SigsRequired: -1}

	input := &p.Inputs[i]
	a.IsFinal = input.IsFinalized()
	if a.IsFinal {
		a.HasUTXO = true
		a.NextRole = RoleExtractor
		return a
	}

	utxo, err := p.GetInputUTXO(i)
	if err != nil {
		a.NextRole = RoleUpdater
		return a
	}
	a.HasUTXO = true

	if utxo.Value < 0 || utxo.Value > int64(btcutil.MaxSatoshi) {
		a.Invalid = true
		a.Error = ErrAmountOutOfRange.Error()
		return a
	}

	class := txscript.GetScriptClass(utxo.PkScript)
	if class == txscript.NullDataTy {
		a.Invalid = true
		a.Error = ErrUnspendableOutput.Error()
		return a
	}
	script := utxo.PkScript

	switch class {
	case txscript.ScriptHashTy:
		if len(input.RedeemScript) == 0 {
			a.NeedsRedeemScript = true
			a.NextRole = RoleUpdater
			return a
		}
		script = input.RedeemScript
		if txscript.GetScriptClass(script) == txscript.WitnessV0ScriptHashTy {
			if len(input.WitnessScript) == 0 {
				a.NeedsWitnessScript = true
				a.NextRole = RoleUpdater
				return a
			}
			script = input.WitnessScript
		}

	case txscript.WitnessV0ScriptHashTy:
		if len(input.WitnessScript) == 0 {
			a.NeedsWitnessScript = true
			a.NextRole = RoleUpdater
			return a
		}
		script = input.WitnessScript
	}

	if class != txscript.WitnessV1TaprootTy {
		if provided, required, ok := sigOpProgress(script, input.PartialSigs, params); ok {
			a.SigsProvided = provided
			a.SigsRequired = required
		}
	} else if len(input.TapKeySig) != 0 || input.TapScriptSigs.len() != 0 {
		a.SigsProvided = 1
		a.SigsRequired = 1
	} else {
		a.SigsProvided = 0
		a.SigsRequired = 1
	}

	a.NextRole = RoleSigner
	if a.SigsRequired >= 0 && a.SigsProvided >= a.SigsRequired {
		a.NextRole = RoleFinalizer
	}
	return a
}

// AnalyzePskt reports each input's status and the PSKT-wide next role and
// fee/size estimate (spec.md §4.6). opts must not be nil-valued in a way
// that leaves AssumedInputVSize at zero for a meaningful estimate; callers
// with no preference should pass DefaultAnalyzerOptions().
func AnalyzePskt(p *Packet, opts AnalyzerOptions, params *chaincfg.Params) *PsktAnalysis {
	out := &PsktAnalysis{
		Inputs:   make([]PsktInputAnalysis, len(p.Inputs)),
		FeeKnown: true,
	}

	overall := RoleExtractor
	var sumIn int64
	for i := range p.Inputs {
		ia := analyzeInput(p, i, params)
		out.Inputs[i] = ia
		if ia.Invalid {
			out.SetInvalid(ia.Error)
			return out
		}
		if ia.NextRole < overall {
			overall = ia.NextRole
		}

		utxo, err := p.GetInputUTXO(i)
		if err != nil {
			out.FeeKnown = false
			continue
		}
		sumIn += utxo.Value
		if sumIn < 0 || sumIn > int64(btcutil.MaxSatoshi) {
			out.SetInvalid(ErrAmountOutOfRange.Error())
			return out
		}
	}

	var sumOut int64
	for _, o := range p.UnsignedTx.TxOut {
		if o.Value < 0 || o.Value > int64(btcutil.MaxSatoshi) {
			out.SetInvalid(ErrAmountOutOfRange.Error())
			return out
		}
		sumOut += o.Value
		if sumOut < 0 || sumOut > int64(btcutil.MaxSatoshi) {
			out.SetInvalid(ErrAmountOutOfRange.Error())
			return out
		}
	}
	out.NextRole = overall

	baseSize := int64(p.UnsignedTx.SerializeSizeStripped())
	totalSize := baseSize
	allFinal := true
	for i := range p.Inputs {
		if !p.Inputs[i].IsFinalized() {
			allFinal = false
			totalSize += opts.AssumedInputVSize * 4
			continue
		}
	}
	if allFinal {
		finalTx, err := FinalizeAndExtractPskt(p, params)
		if err == nil {
			baseSize = int64(finalTx.SerializeSizeStripped())
			totalSize = int64(finalTx.SerializeSize())
		}
	}
	weight := baseSize*3 + totalSize
	out.EstimatedVSize = (weight + 3) / 4

	if out.FeeKnown {
		out.Fee = btcutil.Amount(sumIn - sumOut)
		if out.EstimatedVSize > 0 {
			out.EstimatedFeeRate = float64(out.Fee) / float64(out.EstimatedVSize)
		}
	}

	return out
}
