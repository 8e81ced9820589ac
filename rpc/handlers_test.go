package rpc

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/bynil/btcd/btcec/v2"
	"github.com/bynil/btcd/btcutil"
	"github.com/bynil/btcd/chaincfg"
	"github.com/bynil/btcd/chaincfg/chainhash"
	"github.com/bynil/btcd/txscript"
	"github.com/bynil/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/koyotecoin/koyotecoin/pskt"
)

var errUnrecognized = errors.New("some unrelated failure")

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func newTestAddr(t *testing.T) (*btcec.PrivateKey, btcutil.Address) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return priv, addr
}

func TestCreatePsktBuildsAddressAndDataOutputs(t *testing.T) {
	_, addr := newTestAddr(t)

	req := CreatePsktRequest{
		Inputs: []PsktInputRequest{
			{Txid: "000000000000000000000000000000000000000000000000000000000000000a", Vout: 1},
		},
		Outputs: []PsktOutputRequest{
			{Address: addr.EncodeAddress(), Amount: 50000},
			{Data: hex.EncodeToString([]byte("hello"))},
		},
	}

	res, err := CreatePskt(req, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.NotEmpty(t, res.Pskt)

	p, err := pskt.NewFromRawBytes(stringsReader(res.Pskt), true)
	require.NoError(t, err)
	require.Len(t, p.UnsignedTx.TxIn, 1)
	require.Len(t, p.UnsignedTx.TxOut, 2)
	require.Equal(t, wire.MaxTxInSequenceNum, p.UnsignedTx.TxIn[0].Sequence)
	require.Equal(t, int64(50000), p.UnsignedTx.TxOut[0].Value)
	require.Equal(t, byte(txscript.OP_RETURN), p.UnsignedTx.TxOut[1].PkScript[0])
}

func TestCreatePsktRejectsOutputWithoutAddressOrData(t *testing.T) {
	req := CreatePsktRequest{
		Inputs:  []PsktInputRequest{{Txid: "00000000000000000000000000000000000000000000000000000000000000ab", Vout: 0}},
		Outputs: []PsktOutputRequest{{Amount: 1000}},
	}
	_, err := CreatePskt(req, &chaincfg.MainNetParams)
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrInvalidParameter, rpcErr.Code)
}

func TestCreatePsktRejectsBadTxid(t *testing.T) {
	req := CreatePsktRequest{
		Inputs:  []PsktInputRequest{{Txid: "not-a-hash", Vout: 0}},
		Outputs: []PsktOutputRequest{{Data: "ab"}},
	}
	_, err := CreatePskt(req, &chaincfg.MainNetParams)
	require.Error(t, err)
}

func newUnsignedTxHex(t *testing.T, withSig bool) string {
	t.Helper()
	var prevHash chainhash.Hash
	prevHash[0] = 0x05
	tx := wire.NewMsgTx(2)
	txIn := wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil)
	if withSig {
		txIn.SignatureScript = []byte{0x51}
	}
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return hex.EncodeToString(buf.Bytes())
}

func TestConvertToPsktStripsUnsignedTransaction(t *testing.T) {
	hexStr := newUnsignedTxHex(t, false)
	res, err := ConvertToPskt(ConvertToPsktRequest{Hex: hexStr})
	require.NoError(t, err)
	require.NotEmpty(t, res.Pskt)
}

func TestConvertToPsktRejectsSignedTxWithoutPermit(t *testing.T) {
	hexStr := newUnsignedTxHex(t, true)
	_, err := ConvertToPskt(ConvertToPsktRequest{Hex: hexStr})
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrInvalidParameter, rpcErr.Code)
}

func TestConvertToPsktStripsSignedTxWithPermit(t *testing.T) {
	hexStr := newUnsignedTxHex(t, true)
	res, err := ConvertToPskt(ConvertToPsktRequest{Hex: hexStr, PermitSigData: true})
	require.NoError(t, err)

	p, err := pskt.NewFromRawBytes(stringsReader(res.Pskt), true)
	require.NoError(t, err)
	require.Empty(t, p.UnsignedTx.TxIn[0].SignatureScript)
}

func newPacketB64(t *testing.T, tx *wire.MsgTx) string {
	t.Helper()
	p, err := pskt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	b64, err := p.B64Encode()
	require.NoError(t, err)
	return b64
}

func TestCombinePsktMergesMatchingPackets(t *testing.T) {
	var prevHash chainhash.Hash
	prevHash[0] = 0x11
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	b64 := newPacketB64(t, tx)

	res, err := CombinePskt(CombinePsktRequest{Pskts: []string{b64, b64}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Pskt)
}

func TestCombinePsktRejectsGarbageInput(t *testing.T) {
	_, err := CombinePskt(CombinePsktRequest{Pskts: []string{"not-a-pskt"}})
	require.Error(t, err)
}

func TestJoinPsktsRequiresAtLeastTwo(t *testing.T) {
	var prevHash chainhash.Hash
	prevHash[0] = 0x21
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))
	b64 := newPacketB64(t, tx)

	_, err := JoinPskts(JoinPsktsRequest{Pskts: []string{b64}})
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrInvalidParameter, rpcErr.Code)
}

func TestJoinPsktsConcatenatesInputsAndOutputs(t *testing.T) {
	var h1, h2 chainhash.Hash
	h1[0], h2[0] = 0x31, 0x32

	tx1 := wire.NewMsgTx(2)
	tx1.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h1, 0), nil, nil))
	tx1.AddTxOut(wire.NewTxOut(5000, []byte{0x51}))

	tx2 := wire.NewMsgTx(2)
	tx2.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h2, 0), nil, nil))
	tx2.AddTxOut(wire.NewTxOut(6000, []byte{0x52}))

	res, err := JoinPskts(JoinPsktsRequest{Pskts: []string{newPacketB64(t, tx1), newPacketB64(t, tx2)}})
	require.NoError(t, err)

	joined, err := pskt.NewFromRawBytes(stringsReader(res.Pskt), true)
	require.NoError(t, err)
	require.Len(t, joined.UnsignedTx.TxIn, 2)
	require.Len(t, joined.UnsignedTx.TxOut, 2)

	gotValues := map[int64]bool{}
	for _, o := range joined.UnsignedTx.TxOut {
		gotValues[o.Value] = true
	}
	require.True(t, gotValues[5000])
	require.True(t, gotValues[6000])
}

func TestJoinPsktsRejectsDuplicateOutpoint(t *testing.T) {
	var h1 chainhash.Hash
	h1[0] = 0x41

	tx1 := wire.NewMsgTx(2)
	tx1.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h1, 0), nil, nil))
	tx1.AddTxOut(wire.NewTxOut(5000, []byte{0x51}))

	tx2 := wire.NewMsgTx(2)
	tx2.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h1, 0), nil, nil))
	tx2.AddTxOut(wire.NewTxOut(6000, []byte{0x52}))

	_, err := JoinPskts(JoinPsktsRequest{Pskts: []string{newPacketB64(t, tx1), newPacketB64(t, tx2)}})
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrInputDuplicated, rpcErr.Code)
}

// fakeProvider is a minimal SigningProvider for exercising utxoupdatepskt
// and the signing step before finalizepskt.
type fakeProvider struct {
	scripts map[string][]byte
	pubKeys map[string][]byte
}

func (p *fakeProvider) Script(scriptHash []byte) ([]byte, bool) {
	s, ok := p.scripts[string(scriptHash)]
	return s, ok
}
func (p *fakeProvider) PubKey(keyID []byte) ([]byte, bool) {
	k, ok := p.pubKeys[string(keyID)]
	return k, ok
}
func (p *fakeProvider) KeyOrigin(pubKey []byte) (pskt.KeyOriginInfo, bool) {
	return pskt.KeyOriginInfo{}, false
}
func (p *fakeProvider) TapScripts(outputKey []byte) ([]pskt.TaprootLeafScript, bool) {
	return nil, false
}
func (p *fakeProvider) TapInternalKey(outputKey []byte) ([]byte, []byte, bool) {
	return nil, nil, false
}

func TestUtxoUpdatePsktResolvesRedeemScript(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	redeem, err := txscript.NewScriptBuilder().
		AddData(priv.PubKey().SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	scriptHashAddr, err := btcutil.NewAddressScriptHash(redeem, &chaincfg.MainNetParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(scriptHashAddr)
	require.NoError(t, err)

	var prevHash chainhash.Hash
	prevHash[0] = 0x51
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	p, err := pskt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 10000, PkScript: pkScript}
	b64, err := p.B64Encode()
	require.NoError(t, err)

	provider := &fakeProvider{scripts: map[string][]byte{
		string(scriptHashAddr.ScriptAddress()): redeem,
	}}

	res, err := UtxoUpdatePskt(UtxoUpdatePsktRequest{Pskt: b64}, provider, &chaincfg.MainNetParams)
	require.NoError(t, err)

	updated, err := pskt.NewFromRawBytes(stringsReader(res.Pskt), true)
	require.NoError(t, err)
	require.Equal(t, redeem, updated.Inputs[0].RedeemScript)
}

func TestDecodePsktRendersTxAndInputState(t *testing.T) {
	var prevHash chainhash.Hash
	prevHash[0] = 0x61
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	p, err := pskt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 10000, PkScript: []byte{0x51}}
	b64, err := p.B64Encode()
	require.NoError(t, err)

	res, err := DecodePskt(DecodePsktRequest{Pskt: b64}, &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, tx.TxHash().String(), res.Tx.Txid)
	require.Len(t, res.Tx.Vin, 1)
	require.Len(t, res.Tx.Vout, 1)
	require.Len(t, res.Inputs, 1)
	require.True(t, res.Inputs[0].HasWitnessUtxo)
	require.NotNil(t, res.Fee)
	require.Equal(t, int64(1000), *res.Fee)
}

func TestAnalyzePsktReportsNextRole(t *testing.T) {
	_, addr := newTestAddr(t)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	var prevHash chainhash.Hash
	prevHash[0] = 0x71
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	p, err := pskt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 10000, PkScript: pkScript}
	b64, err := p.B64Encode()
	require.NoError(t, err)

	res, err := AnalyzePskt(AnalyzePsktRequest{Pskt: b64}, pskt.DefaultAnalyzerOptions(), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, pskt.RoleSigner.String(), res.Next)
	require.True(t, res.FeeKnown)
	require.Len(t, res.Inputs, 1)
	require.Equal(t, 1, res.Inputs[0].SigsRequired)
}

// fakeCreator signs with a fixed private key, matching it by raw pubkey
// bytes, standing in for whatever key-holding party would answer a real
// signpsktinput-equivalent call before finalizepskt runs.
type fakeCreator struct {
	tx        *wire.MsgTx
	sigHashes *txscript.TxSigHashes
	amounts   map[int]int64
	priv      *btcec.PrivateKey
}

func (c *fakeCreator) CreateSig(script, pubKey []byte, inputIndex int, sigHashType uint32) ([]byte, bool, error) {
	if string(pubKey) != string(c.priv.PubKey().SerializeCompressed()) {
		return nil, false, nil
	}
	sig, err := txscript.RawTxInWitnessSignature(
		c.tx, c.sigHashes, inputIndex, c.amounts[inputIndex], script,
		txscript.SigHashType(sigHashType), c.priv,
	)
	if err != nil {
		return nil, false, err
	}
	return sig, true, nil
}

func (c *fakeCreator) CreateSchnorrSig(xOnlyPubKey, leafHash []byte, inputIndex int, sigHashType uint32) ([]byte, bool, error) {
	return nil, false, nil
}

func TestFinalizePsktReturnsExtractedHexWhenComplete(t *testing.T) {
	priv, addr := newTestAddr(t)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	var prevHash chainhash.Hash
	prevHash[0] = 0x81
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	p, err := pskt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	spentOut := &wire.TxOut{Value: 10000, PkScript: pkScript}
	p.Inputs[0].WitnessUtxo = spentOut

	fetcher, err := pskt.PrecomputePsktData(p)
	require.NoError(t, err)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	creator := &fakeCreator{tx: tx, sigHashes: sigHashes, amounts: map[int]int64{0: spentOut.Value}, priv: priv}

	provider := &fakeProvider{pubKeys: map[string][]byte{string(addr.ScriptAddress()): priv.PubKey().SerializeCompressed()}}
	require.NoError(t, pskt.SignPsktInput(provider, creator, p, 0, uint32(txscript.SigHashAll), &chaincfg.MainNetParams, false))

	b64, err := p.B64Encode()
	require.NoError(t, err)

	res, err := FinalizePskt(FinalizePsktRequest{Pskt: b64, Extract: true}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.True(t, res.Complete)
	require.NotEmpty(t, res.Hex)
	require.Empty(t, res.Pskt)
}

func TestFinalizePsktReturnsPartialPsktWhenIncomplete(t *testing.T) {
	_, addr := newTestAddr(t)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	var prevHash chainhash.Hash
	prevHash[0] = 0x91
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(9000, []byte{0x51}))

	p, err := pskt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	p.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 10000, PkScript: pkScript}
	b64, err := p.B64Encode()
	require.NoError(t, err)

	res, err := FinalizePskt(FinalizePsktRequest{Pskt: b64}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.False(t, res.Complete)
	require.NotEmpty(t, res.Pskt)
	require.Empty(t, res.Hex)
}

func TestMapPsktErrorClassifiesKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
	}{
		{pskt.ErrInvalidMagicBytes, ErrDeserialization},
		{pskt.ErrDuplicateKey, ErrDeserialization},
		{pskt.ErrPsktMismatch, ErrPsktMismatch},
		{pskt.ErrInputDuplicated, ErrInputDuplicated},
		{pskt.ErrUtxoMissing, ErrUtxoMissing},
		{pskt.ErrUtxoMismatch, ErrUtxoMismatch},
		{pskt.ErrNotFinalizable, ErrSigningFailure},
		{pskt.ErrNotAllSegwit, ErrSigningFailure},
	}
	for _, c := range cases {
		got := mapPsktError(c.err)
		require.Equal(t, c.code, got.Code, c.err.Error())
	}
}

func TestMapPsktErrorDefaultsToInvalidParameter(t *testing.T) {
	got := mapPsktError(errUnrecognized)
	require.Equal(t, ErrInvalidParameter, got.Code)
}

func TestMapPsktErrorNilIsNil(t *testing.T) {
	require.Nil(t, mapPsktError(nil))
}
