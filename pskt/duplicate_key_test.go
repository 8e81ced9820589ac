package pskt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bynil/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestPInputDeserializeRejectsDuplicateScalarField checks that a second
// record for a scalar (non-map-backed) input key type is rejected instead
// of silently overwriting the first, for every scalar field input.go carries.
func TestPInputDeserializeRejectsDuplicateScalarField(t *testing.T) {
	var sighash [4]byte
	binary.LittleEndian.PutUint32(sighash[:], 1)

	cases := []struct {
		name    string
		keyType InputType
		value   []byte
	}{
		{"RedeemScript", InputRedeemScript, []byte{0x51}},
		{"WitnessScript", InputWitnessScript, []byte{0x51}},
		{"SighashType", InputSighashType, sighash[:]},
		{"FinalScriptSig", InputFinalScriptSig, []byte{0x51}},
		{"TapKeySig", InputTapKeySig, bytes.Repeat([]byte{0x01}, 64)},
		{"TapInternalKey", InputTapInternalKey, bytes.Repeat([]byte{0x02}, 32)},
		{"TapMerkleRoot", InputTapMerkleRoot, bytes.Repeat([]byte{0x03}, 32)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeKVPair(&buf, uint8(c.keyType), nil, c.value))
			require.NoError(t, writeKVPair(&buf, uint8(c.keyType), nil, c.value))
			require.NoError(t, writeSectionTerminator(&buf))

			var pi PInput
			require.ErrorIs(t, pi.deserialize(&buf), ErrDuplicateKey)
		})
	}
}

func TestPInputDeserializeRejectsDuplicateWitnessUtxoAndNonWitnessUtxo(t *testing.T) {
	txOutBuf := func() []byte {
		var b bytes.Buffer
		require.NoError(t, serializeTxOut(&b, &wire.TxOut{Value: 1000, PkScript: []byte{0x51}}))
		return b.Bytes()
	}

	var buf bytes.Buffer
	require.NoError(t, writeKVPair(&buf, uint8(InputWitnessUtxo), nil, txOutBuf()))
	require.NoError(t, writeKVPair(&buf, uint8(InputWitnessUtxo), nil, txOutBuf()))
	require.NoError(t, writeSectionTerminator(&buf))

	var pi PInput
	require.ErrorIs(t, pi.deserialize(&buf), ErrDuplicateKey)

	var nonWitnessBuf bytes.Buffer
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	var txBytes bytes.Buffer
	require.NoError(t, tx.Serialize(&txBytes))

	require.NoError(t, writeKVPair(&nonWitnessBuf, uint8(InputNonWitnessUtxo), nil, txBytes.Bytes()))
	require.NoError(t, writeKVPair(&nonWitnessBuf, uint8(InputNonWitnessUtxo), nil, txBytes.Bytes()))
	require.NoError(t, writeSectionTerminator(&nonWitnessBuf))

	var pi2 PInput
	require.ErrorIs(t, pi2.deserialize(&nonWitnessBuf), ErrDuplicateKey)
}

func TestPInputDeserializeRejectsDuplicateFinalScriptWitness(t *testing.T) {
	var witBuf bytes.Buffer
	require.NoError(t, writeTxWitness(&witBuf, wire.TxWitness{{0x01}}))

	var buf bytes.Buffer
	require.NoError(t, writeKVPair(&buf, uint8(InputFinalScriptWitness), nil, witBuf.Bytes()))
	require.NoError(t, writeKVPair(&buf, uint8(InputFinalScriptWitness), nil, witBuf.Bytes()))
	require.NoError(t, writeSectionTerminator(&buf))

	var pi PInput
	require.ErrorIs(t, pi.deserialize(&buf), ErrDuplicateKey)
}

// TestPOutputDeserializeRejectsDuplicateScalarField mirrors the input-side
// check for every scalar output field.
func TestPOutputDeserializeRejectsDuplicateScalarField(t *testing.T) {
	cases := []struct {
		name    string
		keyType OutputType
		value   []byte
	}{
		{"RedeemScript", OutputRedeemScript, []byte{0x51}},
		{"WitnessScript", OutputWitnessScript, []byte{0x51}},
		{"TapInternalKey", OutputTapInternalKey, bytes.Repeat([]byte{0x02}, 32)},
		{"TapTree", OutputTapTree, []byte{}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeKVPair(&buf, uint8(c.keyType), nil, c.value))
			require.NoError(t, writeKVPair(&buf, uint8(c.keyType), nil, c.value))
			require.NoError(t, writeSectionTerminator(&buf))

			var po POutput
			require.ErrorIs(t, po.deserialize(&buf), ErrDuplicateKey)
		})
	}
}

// TestNewFromRawBytesRejectsDuplicateGlobalVersion checks the same guard on
// the global section's lone scalar field.
func TestNewFromRawBytesRejectsDuplicateGlobalVersion(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	var txBytes bytes.Buffer
	require.NoError(t, tx.SerializeNoWitness(&txBytes))

	var versionBuf [4]byte
	binary.LittleEndian.PutUint32(versionBuf[:], 2)

	var buf bytes.Buffer
	buf.Write(psktMagic[:])
	require.NoError(t, writeKVPair(&buf, uint8(GlobalUnsignedTx), nil, txBytes.Bytes()))
	require.NoError(t, writeKVPair(&buf, uint8(GlobalVersion), nil, versionBuf[:]))
	require.NoError(t, writeKVPair(&buf, uint8(GlobalVersion), nil, versionBuf[:]))
	require.NoError(t, writeSectionTerminator(&buf))

	_, err := NewFromRawBytes(&buf, false)
	require.ErrorIs(t, err, ErrDuplicateKey)
}
