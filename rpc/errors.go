package rpc

import (
	"errors"

	"github.com/koyotecoin/koyotecoin/pskt"
)

// ErrorCode identifies the RPC-facing error taxonomy (spec.md §6.3), stable
// across this package's handlers regardless of which internal sentinel
// produced it.
type ErrorCode int

const (
	ErrDeserialization ErrorCode = iota
	ErrPsktMismatch
	ErrInputDuplicated
	ErrUtxoMissing
	ErrUtxoMismatch
	ErrInvalidParameter
	ErrSigningFailure
)

func (c ErrorCode) String() string {
	switch c {
	case ErrDeserialization:
		return "deserialization-error"
	case ErrPsktMismatch:
		return "pskt-mismatch"
	case ErrInputDuplicated:
		return "input-duplicated"
	case ErrUtxoMissing:
		return "utxo-missing"
	case ErrUtxoMismatch:
		return "utxo-mismatch"
	case ErrInvalidParameter:
		return "invalid-parameter"
	case ErrSigningFailure:
		return "signing-failure"
	default:
		return "unknown-error"
	}
}

// Error is the error type every handler in this package returns, carrying
// a stable Code alongside a human-readable Message so a caller doesn't have
// to string-match error text to decide how to react.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

// newError wraps err with code, unless err is already an *Error (from a
// nested handler call), in which case it passes through unchanged.
func newError(code ErrorCode, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: code, Message: err.Error()}
}

// mapPsktError classifies an error returned by the pskt package into the
// RPC-facing taxonomy (spec.md §6.3).
func mapPsktError(err error) *Error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, pskt.ErrInvalidPsktFormat),
		errors.Is(err, pskt.ErrInvalidMagicBytes),
		errors.Is(err, pskt.ErrInvalidKeyData),
		errors.Is(err, pskt.ErrInvalidPSKTValue),
		errors.Is(err, pskt.ErrSectionCountMismatch),
		errors.Is(err, pskt.ErrTrailingBytes),
		errors.Is(err, pskt.ErrInvalidRawTxSigned),
		errors.Is(err, pskt.ErrDuplicateKey):
		return newError(ErrDeserialization, err)

	case errors.Is(err, pskt.ErrPsktMismatch):
		return newError(ErrPsktMismatch, err)

	case errors.Is(err, pskt.ErrInputDuplicated):
		return newError(ErrInputDuplicated, err)

	case errors.Is(err, pskt.ErrUtxoMissing):
		return newError(ErrUtxoMissing, err)

	case errors.Is(err, pskt.ErrUtxoMismatch):
		return newError(ErrUtxoMismatch, err)

	case errors.Is(err, pskt.ErrNotFinalizable),
		errors.Is(err, pskt.ErrIncompletePSKT),
		errors.Is(err, pskt.ErrProviderFailure),
		errors.Is(err, pskt.ErrWitnessSignatureRequired),
		errors.Is(err, pskt.ErrNotAllSegwit):
		return newError(ErrSigningFailure, err)

	default:
		return newError(ErrInvalidParameter, err)
	}
}
