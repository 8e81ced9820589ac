package pskt

import "errors"

// Codec errors (C1).
var (
	// ErrInvalidPsktFormat is a generic error for any situation in which a
	// provided Pskt serialization does not conform to the rules of
	// BIP-174.
	ErrInvalidPsktFormat = errors.New("invalid PSKT serialization format")

	// ErrInvalidMagicBytes indicates that a passed Pskt serialization is
	// invalid due to having incorrect magic bytes.
	ErrInvalidMagicBytes = errors.New("invalid PSKT magic bytes")

	// ErrDuplicateKey indicates that a passed Pskt serialization is
	// invalid due to having the same key repeated within one section.
	ErrDuplicateKey = errors.New("invalid PSKT due to duplicate key")

	// ErrInvalidKeyData indicates that a key-value pair in the PSKT
	// serialization contains data in the key which is not valid.
	ErrInvalidKeyData = errors.New("invalid key data")

	// ErrInvalidPSKTValue indicates that a known type code carries a
	// malformed value (e.g. a non-witness UTXO that doesn't parse).
	ErrInvalidPSKTValue = errors.New("invalid value for PSKT key type")

	// ErrPreimageHashMismatch indicates that a PSKT_IN_RIPEMD160/SHA256/
	// HASH160/HASH256 record's preimage value does not actually hash to
	// its declared key.
	ErrPreimageHashMismatch = errors.New("preimage does not match declared hash")

	// ErrSectionCountMismatch indicates that the number of input or
	// output sections did not match the unsigned transaction's vin/vout
	// length.
	ErrSectionCountMismatch = errors.New("PSKT section count does not " +
		"match transaction input/output count")

	// ErrTrailingBytes indicates extra bytes were present after the
	// terminating record of a PSKT serialization.
	ErrTrailingBytes = errors.New("trailing bytes after PSKT serialization")

	// ErrInvalidRawTxSigned indicates that the raw serialized transaction
	// in the global section of a PSKT is invalid because it contains
	// scriptSigs/witnesses (i.e. is fully or partially signed), which is
	// not allowed by BIP-174.
	ErrInvalidRawTxSigned = errors.New("invalid PSKT: unsigned transaction " +
		"must carry no scriptSig/witness data")
)

// Data-model errors (C2).
var (
	// ErrInputOutOfBounds is returned by GetInputUTXO and friends when an
	// input index is out of range.
	ErrInputOutOfBounds = errors.New("input index out of bounds")

	// ErrOutpointAlreadyExists is returned when adding an input whose
	// outpoint is already present in the unsigned transaction.
	ErrOutpointAlreadyExists = errors.New("outpoint already present in PSKT")
)

// Merge errors (C3).
var (
	// ErrPsktMismatch indicates two PSKTs do not share the same unsigned
	// transaction and therefore cannot be merged.
	ErrPsktMismatch = errors.New("PSKTs do not share the same unsigned " +
		"transaction")

	// ErrInputDuplicated indicates that joinpskts was asked to join two
	// PSKTs that share an outpoint.
	ErrInputDuplicated = errors.New("duplicate outpoint across joined PSKTs")

	// ErrCombineEmpty is returned by Combine when given zero PSKTs.
	ErrCombineEmpty = errors.New("cannot combine zero PSKTs")
)

// Signature-pipeline errors (C4).
var (
	// ErrUtxoMissing indicates that no witness or non-witness UTXO is
	// available for an input that needs one.
	ErrUtxoMissing = errors.New("input has no UTXO information")

	// ErrUtxoMismatch indicates the non-witness UTXO's txid or output
	// index does not match the input's prevout.
	ErrUtxoMismatch = errors.New("non-witness UTXO does not match prevout")

	// ErrWitnessSignatureRequired indicates a witness UTXO was used but
	// the signing provider failed to produce a witness-style signature;
	// falling back to legacy signing of a witness UTXO is unsafe.
	ErrWitnessSignatureRequired = errors.New("witness UTXO present but no " +
		"witness signature was produced")

	// ErrProviderFailure wraps an error returned by a SigningProvider.
	ErrProviderFailure = errors.New("signing provider failure")

	// ErrNotAllSegwit is returned by StripNonWitnessUtxos when at least
	// one input is not SegWit-spent, making it unsafe to drop
	// non-witness UTXOs from the packet.
	ErrNotAllSegwit = errors.New("cannot strip non-witness UTXOs: not every input is SegWit-spent")
)

// Finalizer/Extractor errors (C5).
var (
	// ErrInputAlreadyFinalized indicates that an input passed to the
	// finalizer already contains a final scriptSig/witness.
	ErrInputAlreadyFinalized = errors.New("cannot finalize: input already finalized")

	// ErrIncompletePSKT indicates that FinalizeAndExtractPskt was called on
	// a PSKT that is not fully finalized.
	ErrIncompletePSKT = errors.New("PSKT cannot be extracted: incomplete")

	// ErrNotFinalizable indicates a PSKT input lacks sufficient data
	// (e.g. signatures) to be finalized.
	ErrNotFinalizable = errors.New("PSKT input is not finalizable")
)

// Analyzer errors (C6).
var (
	// ErrAmountOutOfRange indicates a UTXO or output value fell outside
	// consensus money-range bounds, or the running total overflowed it.
	ErrAmountOutOfRange = errors.New("amount out of valid money range")

	// ErrUnspendableOutput indicates the analyzer found a spent output
	// whose scriptPubKey is provably unspendable.
	ErrUnspendableOutput = errors.New("UTXO scriptPubKey is provably unspendable")
)

// RPC-facing error taxonomy (spec.md §6.3). These are distinct sentinels so
// the rpc package can map them to stable RPC error codes without string
// matching.
var (
	ErrRPCDeserialization  = errors.New("PSKT deserialization error")
	ErrRPCPsktMismatch     = errors.New("PSKT mismatch")
	ErrRPCInputDuplicated  = errors.New("input duplicated")
	ErrRPCUtxoMissing      = errors.New("UTXO missing")
	ErrRPCUtxoMismatch     = errors.New("UTXO mismatch")
	ErrRPCInvalidParameter = errors.New("invalid parameter")
	ErrRPCSigningFailure   = errors.New("signing failure")
)
