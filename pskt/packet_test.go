package pskt

import (
	"bytes"
	"testing"

	"github.com/bynil/btcd/chaincfg/chainhash"
	"github.com/bynil/btcd/wire"
	"github.com/stretchr/testify/require"
)

func newTestUnsignedTx(t *testing.T, nIn, nOut int) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(2)
	for i := 0; i < nIn; i++ {
		var h chainhash.Hash
		h[0] = byte(i + 1)
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h, uint32(i)), nil, nil))
	}
	for i := 0; i < nOut; i++ {
		tx.AddTxOut(wire.NewTxOut(int64(10000*(i+1)), []byte{0x51}))
	}
	return tx
}

func TestNewFromUnsignedTxRejectsSignedInput(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	tx.TxIn[0].SignatureScript = []byte{0x51}

	_, err := NewFromUnsignedTx(tx)
	require.ErrorIs(t, err, ErrInvalidRawTxSigned)
}

func TestNewFromUnsignedTxInitializesEmptySections(t *testing.T) {
	tx := newTestUnsignedTx(t, 2, 3)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)
	require.Len(t, p.Inputs, 2)
	require.Len(t, p.Outputs, 3)
	require.Equal(t, uint32(0), p.GetVersion())
	require.True(t, p.Inputs[0].IsNull())
	require.True(t, p.Outputs[0].IsNull())
}

func TestPacketSerializeRoundTrip(t *testing.T) {
	tx := newTestUnsignedTx(t, 2, 2)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	p.SetVersion(0)
	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 50000, PkScript: []byte{0x00, 0x14}}
	p.Inputs[0].RedeemScript = []byte{0x51, 0x52}
	require.NoError(t, p.Inputs[0].Bip32Derivation.add(&Bip32Derivation{
		PubKey:               bytes.Repeat([]byte{0x02}, 33),
		MasterKeyFingerprint: 0x01020304,
		Bip32Path:            []uint32{0, 1, 2},
	}))
	p.Outputs[1].WitnessScript = []byte{0x53, 0x54}

	var buf bytes.Buffer
	require.NoError(t, p.Serialize(&buf))

	got, err := NewFromRawBytes(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)

	require.Equal(t, p.UnsignedTx.TxHash(), got.UnsignedTx.TxHash())
	require.Equal(t, p.Inputs[0].WitnessUtxo.Value, got.Inputs[0].WitnessUtxo.Value)
	require.Equal(t, p.Inputs[0].RedeemScript, got.Inputs[0].RedeemScript)
	require.Equal(t, 1, got.Inputs[0].Bip32Derivation.len())
	require.Equal(t, p.Outputs[1].WitnessScript, got.Outputs[1].WitnessScript)
}

func TestPacketB64RoundTrip(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	b64, err := p.B64Encode()
	require.NoError(t, err)

	got, err := NewFromRawBytes(bytes.NewReader([]byte(b64)), true)
	require.NoError(t, err)
	require.Equal(t, p.UnsignedTx.TxHash(), got.UnsignedTx.TxHash())
}

func TestNewFromRawBytesRejectsBadMagic(t *testing.T) {
	_, err := NewFromRawBytes(bytes.NewReader([]byte("garbagedata0000000")), false)
	require.Error(t, err)
}

func TestNewFromRawBytesRejectsTrailingBytes(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Serialize(&buf))
	buf.WriteByte(0xff)

	_, err = NewFromRawBytes(bytes.NewReader(buf.Bytes()), false)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestGetInputUTXOPrefersNonWitness(t *testing.T) {
	spent := wire.NewMsgTx(2)
	spent.AddTxOut(wire.NewTxOut(12345, []byte{0x51}))
	spentHash := spent.TxHash()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&spentHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	p.Inputs[0].NonWitnessUtxo = spent
	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 999, PkScript: []byte{0x00}}

	out, err := p.GetInputUTXO(0)
	require.NoError(t, err)
	require.Equal(t, int64(12345), out.Value)
}

func TestGetInputUTXOFallsBackToWitness(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 555, PkScript: []byte{0x00, 0x14}}
	out, err := p.GetInputUTXO(0)
	require.NoError(t, err)
	require.Equal(t, int64(555), out.Value)
}

func TestGetInputUTXOMissing(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	_, err = p.GetInputUTXO(0)
	require.ErrorIs(t, err, ErrUtxoMissing)
}

func TestGetTxFee(t *testing.T) {
	tx := newTestUnsignedTx(t, 2, 1) // outputs sum to 10000
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 6000, PkScript: []byte{0x00}}
	p.Inputs[1].WitnessUtxo = &wire.TxOut{Value: 5000, PkScript: []byte{0x00}}

	fee, err := p.GetTxFee()
	require.NoError(t, err)
	require.Equal(t, int64(1000), int64(fee))
}

func TestAddInputRejectsDuplicateOutpoint(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	dupIn := wire.NewTxIn(&tx.TxIn[0].PreviousOutPoint, nil, nil)
	err = p.AddInput(dupIn, newPInput())
	require.ErrorIs(t, err, ErrOutpointAlreadyExists)
}

func TestAddInputAddOutputKeepsSectionsInSync(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	var h chainhash.Hash
	h[0] = 0xff
	newIn := wire.NewTxIn(wire.NewOutPoint(&h, 0), nil, nil)
	require.NoError(t, p.AddInput(newIn, newPInput()))
	p.AddOutput(wire.NewTxOut(777, []byte{0x51}), newPOutput())

	require.NoError(t, VerifyInputOutputLen(p, true, true))
	require.Equal(t, 2, len(p.Inputs))
	require.Equal(t, 2, len(p.Outputs))
}

func TestVerifyInputOutputLenRequiresNonEmpty(t *testing.T) {
	tx := wire.NewMsgTx(2)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)

	require.Error(t, VerifyInputOutputLen(p, true, false))
	require.Error(t, VerifyInputOutputLen(p, false, true))
	require.NoError(t, VerifyInputOutputLen(p, false, false))
}

func TestPacketCloneIsIndependent(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)
	p.Inputs[0].RedeemScript = []byte{0x51}

	clone := p.Clone()
	clone.Inputs[0].RedeemScript[0] = 0x99

	require.Equal(t, byte(0x51), p.Inputs[0].RedeemScript[0])
	require.Equal(t, p.UnsignedTx.TxHash(), clone.UnsignedTx.TxHash())
}

func TestPacketIsCompleteAndSanityCheck(t *testing.T) {
	tx := newTestUnsignedTx(t, 1, 1)
	p, err := NewFromUnsignedTx(tx)
	require.NoError(t, err)
	require.False(t, p.IsComplete())
	require.NoError(t, p.SanityCheck())

	p.Inputs[0].FinalScriptSig = []byte{0x51}
	require.True(t, p.IsComplete())
}
