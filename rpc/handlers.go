package rpc

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/bynil/btcd/btcutil"
	"github.com/bynil/btcd/chaincfg"
	"github.com/bynil/btcd/chaincfg/chainhash"
	"github.com/bynil/btcd/txscript"
	"github.com/bynil/btcd/wire"

	"github.com/koyotecoin/koyotecoin/pskt"
)

const defaultTxVersion = 2

// decodePsktArg parses a PSKT argument as bitcoind-family RPCs do: base64
// first (the usual text-transport framing, spec.md §6.1), falling back to
// raw hex for callers that pass the wire bytes directly.
func decodePsktArg(s string) (*pskt.Packet, error) {
	if p, err := pskt.NewFromRawBytes(strings.NewReader(s), true); err == nil {
		return p, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(ErrDeserialization, err)
	}
	p, err := pskt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, mapPsktError(err)
	}
	return p, nil
}

func encodePsktResult(p *pskt.Packet) (*PsktResult, error) {
	b64, err := p.B64Encode()
	if err != nil {
		return nil, newError(ErrInvalidParameter, err)
	}
	return &PsktResult{Pskt: b64}, nil
}

// CreatePskt is the createpskt RPC handler (spec.md §6.2): it builds a
// fresh unsigned transaction from the requested inputs/outputs and wraps it
// as a PSKT via the Creator role.
func CreatePskt(req CreatePsktRequest, params *chaincfg.Params) (*PsktResult, error) {
	version := req.Version
	if version == 0 {
		version = defaultTxVersion
	}

	tx := wire.NewMsgTx(version)
	tx.LockTime = req.LockTime

	for _, in := range req.Inputs {
		txid, err := chainhash.NewHashFromStr(in.Txid)
		if err != nil {
			return nil, newError(ErrInvalidParameter, err)
		}
		outPoint := wire.NewOutPoint(txid, in.Vout)
		txIn := wire.NewTxIn(outPoint, nil, nil)
		if in.Sequence != 0 {
			txIn.Sequence = in.Sequence
		} else {
			txIn.Sequence = wire.MaxTxInSequenceNum
		}
		tx.AddTxIn(txIn)
	}

	for _, out := range req.Outputs {
		var script []byte
		var err error
		switch {
		case out.Data != "":
			data, derr := hex.DecodeString(out.Data)
			if derr != nil {
				return nil, newError(ErrInvalidParameter, derr)
			}
			script, err = txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData(data).Script()
		case out.Address != "":
			addr, aerr := btcutil.DecodeAddress(out.Address, params)
			if aerr != nil {
				return nil, newError(ErrInvalidParameter, aerr)
			}
			script, err = txscript.PayToAddrScript(addr)
		default:
			return nil, newError(ErrInvalidParameter, fmt.Errorf("output must set address or data"))
		}
		if err != nil {
			return nil, newError(ErrInvalidParameter, err)
		}
		tx.AddTxOut(wire.NewTxOut(out.Amount, script))
	}

	p, err := pskt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, mapPsktError(err)
	}
	return encodePsktResult(p)
}

// ConvertToPskt is the converttopskt RPC handler: it reframes an existing
// transaction as a PSKT, stripping any signature data it carries (only
// permitted when PermitSigData is set, mirroring bitcoind's refusal to
// silently discard a signed transaction's signatures).
func ConvertToPskt(req ConvertToPsktRequest) (*PsktResult, error) {
	raw, err := hex.DecodeString(req.Hex)
	if err != nil {
		return nil, newError(ErrDeserialization, err)
	}

	tx := wire.NewMsgTx(defaultTxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, newError(ErrDeserialization, err)
	}

	hasSigData := false
	for _, in := range tx.TxIn {
		if len(in.SignatureScript) != 0 || len(in.Witness) != 0 {
			hasSigData = true
			break
		}
	}
	if hasSigData && !req.PermitSigData {
		return nil, newError(ErrInvalidParameter,
			fmt.Errorf("transaction already contains signatures; set permitsigdata to strip them"))
	}

	unsigned := tx.Copy()
	for i := range unsigned.TxIn {
		unsigned.TxIn[i].SignatureScript = nil
		unsigned.TxIn[i].Witness = nil
	}

	p, err := pskt.NewFromUnsignedTx(unsigned)
	if err != nil {
		return nil, mapPsktError(err)
	}
	return encodePsktResult(p)
}

// CombinePskt is the combinepskt RPC handler (spec.md §6.2): it merges
// PSKTs describing the same unsigned transaction via the merge algebra.
func CombinePskt(req CombinePsktRequest) (*PsktResult, error) {
	packets := make([]*pskt.Packet, 0, len(req.Pskts))
	for _, s := range req.Pskts {
		p, err := decodePsktArg(s)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}

	combined, err := pskt.Combine(packets)
	if err != nil {
		return nil, mapPsktError(err)
	}
	return encodePsktResult(combined)
}

// shuffleInPlace randomly permutes indices [0, n) using crypto/rand, the
// same Fisher-Yates sweep joinpskts uses to scramble the joined input and
// output order so that no participant can infer which PSKT contributed which
// input or output by position alone.
func shuffleInPlace(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		swap(i, int(jBig.Int64()))
	}
	return nil
}

// JoinPskts is the joinpskts RPC handler (spec.md §6.2, SPEC_FULL.md §D.4):
// it concatenates the inputs and outputs of PSKTs describing distinct
// unsigned transactions into a single new one, rejecting the join if any
// two of them spend the same outpoint, and shuffles the joined input and
// output order.
func JoinPskts(req JoinPsktsRequest) (*PsktResult, error) {
	if len(req.Pskts) < 2 {
		return nil, newError(ErrInvalidParameter, fmt.Errorf("joinpskts requires at least two PSKTs"))
	}

	packets := make([]*pskt.Packet, 0, len(req.Pskts))
	for _, s := range req.Pskts {
		p, err := decodePsktArg(s)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}

	tx := wire.NewMsgTx(defaultTxVersion)
	var inputs []pskt.PInput
	var outputs []pskt.POutput
	seen := make(map[wire.OutPoint]bool)

	for _, p := range packets {
		for i, txIn := range p.UnsignedTx.TxIn {
			if seen[txIn.PreviousOutPoint] {
				return nil, mapPsktError(pskt.ErrInputDuplicated)
			}
			seen[txIn.PreviousOutPoint] = true
			tx.AddTxIn(txIn)
			inputs = append(inputs, p.Inputs[i])
		}
		for i, txOut := range p.UnsignedTx.TxOut {
			tx.AddTxOut(txOut)
			outputs = append(outputs, p.Outputs[i])
		}
	}

	if err := shuffleInPlace(len(tx.TxIn), func(i, j int) {
		tx.TxIn[i], tx.TxIn[j] = tx.TxIn[j], tx.TxIn[i]
		inputs[i], inputs[j] = inputs[j], inputs[i]
	}); err != nil {
		return nil, newError(ErrInvalidParameter, err)
	}
	if err := shuffleInPlace(len(tx.TxOut), func(i, j int) {
		tx.TxOut[i], tx.TxOut[j] = tx.TxOut[j], tx.TxOut[i]
		outputs[i], outputs[j] = outputs[j], outputs[i]
	}); err != nil {
		return nil, newError(ErrInvalidParameter, err)
	}

	joined, err := pskt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, mapPsktError(err)
	}
	joined.Inputs = inputs
	joined.Outputs = outputs
	if err := pskt.VerifyInputOutputLen(joined, true, true); err != nil {
		return nil, mapPsktError(err)
	}
	return encodePsktResult(joined)
}

// FinalizePskt is the finalizepskt RPC handler (spec.md §6.2, §4.5): it
// finalizes every input it can, and — when req.Extract is set and the
// result is complete — returns the extracted transaction's hex instead of
// a PSKT.
func FinalizePskt(req FinalizePsktRequest, params *chaincfg.Params) (*FinalizePsktResult, error) {
	p, err := decodePsktArg(req.Pskt)
	if err != nil {
		return nil, err
	}

	if _, err := pskt.FinalizeBestEffort(p, params); err != nil {
		return nil, mapPsktError(err)
	}

	complete := p.IsComplete()
	if complete && req.Extract {
		tx, err := pskt.FinalizeAndExtractPskt(p, params)
		if err != nil {
			return nil, mapPsktError(err)
		}
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return nil, newError(ErrInvalidParameter, err)
		}
		return &FinalizePsktResult{Hex: hex.EncodeToString(buf.Bytes()), Complete: true}, nil
	}

	b64, err := p.B64Encode()
	if err != nil {
		return nil, newError(ErrInvalidParameter, err)
	}
	return &FinalizePsktResult{Pskt: b64, Complete: complete}, nil
}

// UtxoUpdatePskt is the utxoupdatepskt RPC handler (spec.md §6.2): it fills
// in whatever witness/redeem scripts and Taproot metadata provider can
// supply for the PSKT's inputs and outputs, without touching signatures.
// The real RPC resolves req.Descriptors into a provider itself; that
// descriptor-parsing seam is intentionally factored out here as the
// provider parameter (SPEC_FULL.md §D.6) so this handler stays a pure
// function of its inputs.
func UtxoUpdatePskt(req UtxoUpdatePsktRequest, provider pskt.SigningProvider, params *chaincfg.Params) (*PsktResult, error) {
	p, err := decodePsktArg(req.Pskt)
	if err != nil {
		return nil, err
	}

	for i := range p.Inputs {
		if err := pskt.UpdatePsktInput(provider, p, i, params); err != nil {
			return nil, mapPsktError(err)
		}
	}
	for i := range p.Outputs {
		if err := pskt.UpdatePsktOutput(provider, p, i, params); err != nil {
			return nil, mapPsktError(err)
		}
	}

	return encodePsktResult(p)
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

// DecodePskt is the decodepskt RPC handler (spec.md §6.2): it renders a
// PSKT's full structure to a JSON-friendly tree without mutating it.
func DecodePskt(req DecodePsktRequest, params *chaincfg.Params) (*DecodePsktResult, error) {
	p, err := decodePsktArg(req.Pskt)
	if err != nil {
		return nil, err
	}

	tx := p.UnsignedTx
	out := &DecodePsktResult{
		Tx: DecodedTx{
			Txid:     tx.TxHash().String(),
			Version:  tx.Version,
			LockTime: tx.LockTime,
		},
	}

	for _, in := range tx.TxIn {
		out.Tx.Vin = append(out.Tx.Vin, DecodedTxIn{
			Txid:     in.PreviousOutPoint.Hash.String(),
			Vout:     in.PreviousOutPoint.Index,
			Sequence: in.Sequence,
		})
	}
	for _, o := range tx.TxOut {
		out.Tx.Vout = append(out.Tx.Vout, DecodedTxOut{
			Value:        o.Value,
			ScriptPubKey: hexOrEmpty(o.PkScript),
		})
	}

	for i := range p.Inputs {
		in := &p.Inputs[i]
		d := DecodedInput{
			HasNonWitnessUtxo: in.NonWitnessUtxo != nil,
			HasWitnessUtxo:    in.WitnessUtxo != nil,
			RedeemScript:      hexOrEmpty(in.RedeemScript),
			WitnessScript:     hexOrEmpty(in.WitnessScript),
			FinalScriptSig:    hexOrEmpty(in.FinalScriptSig),
			TaprootKeyPathSig: hexOrEmpty(in.TapKeySig),
			TaprootScriptSigs: in.TapScriptSigs.len(),
		}
		for _, k := range in.PartialSigs.order {
			d.PartialSigs = append(d.PartialSigs, hex.EncodeToString([]byte(k)))
		}
		for _, item := range in.FinalScriptWitness {
			d.FinalWitnessItems = append(d.FinalWitnessItems, hex.EncodeToString(item))
		}
		out.Inputs = append(out.Inputs, d)
	}

	for i := range p.Outputs {
		o := &p.Outputs[i]
		out.Outputs = append(out.Outputs, DecodedOutput{
			RedeemScript:  hexOrEmpty(o.RedeemScript),
			WitnessScript: hexOrEmpty(o.WitnessScript),
			TapTreeLeaves: len(o.TapTree),
		})
	}

	if fee, err := p.GetTxFee(); err == nil {
		feeVal := int64(fee)
		out.Fee = &feeVal
	}

	if a := pskt.AnalyzePskt(p, pskt.DefaultAnalyzerOptions(), params); a.Invalid {
		out.Invalid = true
		out.Error = a.Error
	}

	return out, nil
}

// AnalyzePskt is the analyzepskt RPC handler (spec.md §6.2, §4.6).
func AnalyzePskt(req AnalyzePsktRequest, opts pskt.AnalyzerOptions, params *chaincfg.Params) (*AnalyzePsktResult, error) {
	p, err := decodePsktArg(req.Pskt)
	if err != nil {
		return nil, err
	}

	a := pskt.AnalyzePskt(p, opts, params)

	out := &AnalyzePsktResult{
		Next:             a.NextRole.String(),
		FeeKnown:         a.FeeKnown,
		EstimatedVsize:   a.EstimatedVSize,
		EstimatedFeeRate: a.EstimatedFeeRate,
		Invalid:          a.Invalid,
		Error:            a.Error,
	}
	if a.FeeKnown {
		out.Fee = int64(a.Fee)
	}
	for _, ia := range a.Inputs {
		out.Inputs = append(out.Inputs, AnalyzeInputResult{
			HasUtxo:            ia.HasUTXO,
			IsFinal:            ia.IsFinal,
			Next:               ia.NextRole.String(),
			NeedsRedeemScript:  ia.NeedsRedeemScript,
			NeedsWitnessScript: ia.NeedsWitnessScript,
			SigsProvided:       ia.SigsProvided,
			SigsRequired:       ia.SigsRequired,
			Invalid:            ia.Invalid,
			Error:              ia.Error,
		})
	}
	return out, nil
}
