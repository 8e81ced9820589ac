package rpc

// The result types in this file mirror the FooResult naming convention
// btcd's rpcclient package uses for its JSON-RPC result shapes (a plain
// struct with json tags per field); here they describe a server-side
// handler's return value rather than a client's parsed response, since RPC
// dispatch/transport is outside this package's scope (spec.md §1, §6.2).

// PsktInputRequest names one outpoint to spend, the Creator role's raw
// material for building an unsigned transaction template.
type PsktInputRequest struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Sequence uint32 `json:"sequence,omitempty"`
}

// PsktOutputRequest is one output to create: either an address payment or,
// when Data is set, an OP_RETURN payload carrying it.
type PsktOutputRequest struct {
	Address string `json:"address,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	Data    string `json:"data,omitempty"` // hex-encoded OP_RETURN payload
}

// CreatePsktRequest is createpskt's input (spec.md §6.2).
type CreatePsktRequest struct {
	Inputs  []PsktInputRequest  `json:"inputs"`
	Outputs []PsktOutputRequest `json:"outputs"`
	Version int32               `json:"version,omitempty"`
	LockTime uint32             `json:"locktime,omitempty"`
}

// PsktResult wraps a base64-encoded PSKT, the shape returned by every
// handler that produces one (createpskt, converttopskt, combinepskt,
// joinpskts, utxoupdatepskt).
type PsktResult struct {
	Pskt string `json:"pskt"`
}

// ConvertToPsktRequest is converttopskt's input: a raw signed or unsigned
// transaction to reframe as a PSKT.
type ConvertToPsktRequest struct {
	Hex           string `json:"hex"`
	PermitSigData bool   `json:"permitsigdata,omitempty"`
}

// CombinePsktRequest is combinepskt's input: the PSKTs to merge, which must
// all describe the same unsigned transaction.
type CombinePsktRequest struct {
	Pskts []string `json:"pskts"`
}

// JoinPsktsRequest is joinpskts's input: PSKTs describing distinct unsigned
// transactions, joined into one with every input and output from all of
// them, input and output order randomized (spec.md §6.2, SPEC_FULL.md §D.4).
type JoinPsktsRequest struct {
	Pskts []string `json:"pskts"`
}

// FinalizePsktRequest is finalizepskt's input.
type FinalizePsktRequest struct {
	Pskt    string `json:"pskt"`
	Extract bool   `json:"extract,omitempty"`
}

// FinalizePsktResult reports either the still-PSKT-framed partial result or,
// when extraction succeeded, the final network-ready transaction hex.
type FinalizePsktResult struct {
	Pskt     string `json:"pskt,omitempty"`
	Hex      string `json:"hex,omitempty"`
	Complete bool   `json:"complete"`
}

// UtxoUpdatePsktRequest is utxoupdatepskt's input: a PSKT plus output
// descriptors (spec.md §6.2). UtxoUpdatePskt does not read Descriptors; the
// scripts it fills in come from the SigningProvider passed to it, and it
// does not add UTXOs.
type UtxoUpdatePsktRequest struct {
	Pskt        string   `json:"pskt"`
	Descriptors []string `json:"descriptors,omitempty"`
}

// DecodePsktRequest is decodepskt's input.
type DecodePsktRequest struct {
	Pskt string `json:"pskt"`
}

// DecodedTx is the unsigned-transaction summary embedded in decodepskt's
// result.
type DecodedTx struct {
	Txid     string              `json:"txid"`
	Version  int32               `json:"version"`
	LockTime uint32              `json:"locktime"`
	Vin      []DecodedTxIn       `json:"vin"`
	Vout     []DecodedTxOut      `json:"vout"`
}

// DecodedTxIn is one unsigned-transaction input.
type DecodedTxIn struct {
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Sequence uint32 `json:"sequence"`
}

// DecodedTxOut is one unsigned-transaction output.
type DecodedTxOut struct {
	Value        int64  `json:"value"`
	ScriptPubKey string `json:"scriptPubKey"`
}

// DecodedInput is one PSKT input section rendered to JSON.
type DecodedInput struct {
	HasNonWitnessUtxo bool     `json:"has_utxo"`
	HasWitnessUtxo    bool     `json:"has_witness_utxo"`
	PartialSigs       []string `json:"partial_sigs,omitempty"` // hex pubkeys with a sig
	RedeemScript      string   `json:"redeem_script,omitempty"`
	WitnessScript     string   `json:"witness_script,omitempty"`
	FinalScriptSig    string   `json:"final_scriptsig,omitempty"`
	FinalWitnessItems []string `json:"final_scriptwitness,omitempty"`
	TaprootKeyPathSig string   `json:"taproot_key_path_sig,omitempty"`
	TaprootScriptSigs int      `json:"taproot_script_path_sigs,omitempty"`
}

// DecodedOutput is one PSKT output section rendered to JSON.
type DecodedOutput struct {
	RedeemScript  string `json:"redeem_script,omitempty"`
	WitnessScript string `json:"witness_script,omitempty"`
	TapTreeLeaves int    `json:"taproot_tree_leaves,omitempty"`
}

// DecodePsktResult is decodepskt's full tree (spec.md §6.2).
type DecodePsktResult struct {
	Tx      DecodedTx       `json:"tx"`
	Inputs  []DecodedInput  `json:"inputs"`
	Outputs []DecodedOutput `json:"outputs"`
	Fee     *int64          `json:"fee,omitempty"`

	// Invalid/Error surface the same amount-range and unspendable-output
	// checks analyzepskt runs, so a caller decoding a PSKT learns
	// immediately if it fails a consensus check.
	Invalid bool   `json:"invalid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AnalyzePsktRequest is analyzepskt's input.
type AnalyzePsktRequest struct {
	Pskt string `json:"pskt"`
}

// AnalyzeInputResult is one input's readiness report.
type AnalyzeInputResult struct {
	HasUtxo          bool   `json:"has_utxo"`
	IsFinal          bool   `json:"is_final"`
	Next             string `json:"next"`
	NeedsRedeemScript  bool `json:"needs_redeem_script,omitempty"`
	NeedsWitnessScript bool `json:"needs_witness_script,omitempty"`
	SigsProvided     int    `json:"sigs_provided,omitempty"`
	SigsRequired     int    `json:"sigs_required,omitempty"`
	Invalid          bool   `json:"invalid,omitempty"`
	Error            string `json:"error,omitempty"`
}

// AnalyzePsktResult is analyzepskt's full report (spec.md §6.2, §4.6).
type AnalyzePsktResult struct {
	Inputs           []AnalyzeInputResult `json:"inputs"`
	Next             string               `json:"next"`
	FeeKnown         bool                 `json:"fee_known"`
	Fee              int64                `json:"fee,omitempty"`
	EstimatedVsize   int64                `json:"estimated_vsize"`
	EstimatedFeeRate float64              `json:"estimated_feerate,omitempty"`
	Invalid          bool                 `json:"invalid,omitempty"`
	Error            string               `json:"error,omitempty"`
}
