package pskt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKVPairRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeKVPair(&buf, uint8(InputRedeemScript), nil, []byte{0x51}))
	require.NoError(t, writeSectionTerminator(&buf))

	kv, done, err := readKVPair(&buf)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, uint8(InputRedeemScript), kv.keyType)
	require.Empty(t, kv.keyData)
	require.Equal(t, []byte{0x51}, kv.value)

	_, done, err = readKVPair(&buf)
	require.NoError(t, err)
	require.True(t, done)
}

func TestKVPairKeyDataSplit(t *testing.T) {
	var buf bytes.Buffer
	pubKey := bytes.Repeat([]byte{0xAB}, 33)
	require.NoError(t, writeKVPair(&buf, uint8(InputBip32Derivation), pubKey, []byte{1, 2, 3, 4}))

	kv, done, err := readKVPair(&buf)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, uint8(InputBip32Derivation), kv.keyType)
	require.Equal(t, pubKey, kv.keyData)
}

func TestReadKVPairRejectsOversizedKey(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxPsktKeyLength+2)
	require.NoError(t, writeRawKVPair(&buf, oversized, []byte{0x00}))

	_, _, err := readKVPair(&buf)
	require.ErrorIs(t, err, ErrInvalidKeyData)
}

func TestUnknownMapPreservesOrderAndRejectsDuplicates(t *testing.T) {
	u := newUnknownMap()
	require.NoError(t, u.add([]byte{0xf0, 0x01}, []byte("a")))
	require.NoError(t, u.add([]byte{0xf0, 0x02}, []byte("b")))
	require.ErrorIs(t, u.add([]byte{0xf0, 0x01}, []byte("c")), ErrDuplicateKey)
	require.Equal(t, 2, u.len())

	var buf bytes.Buffer
	require.NoError(t, u.serialize(&buf))

	kv1, done, err := readKVPair(&buf)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, []byte("a"), kv1.value)

	kv2, done, err := readKVPair(&buf)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, []byte("b"), kv2.value)
}

func TestUnknownMapMergeFirstWriterWins(t *testing.T) {
	a := newUnknownMap()
	require.NoError(t, a.add([]byte{0xf0, 0x01}, []byte("a-value")))

	b := newUnknownMap()
	require.NoError(t, b.add([]byte{0xf0, 0x01}, []byte("b-value")))
	require.NoError(t, b.add([]byte{0xf0, 0x02}, []byte("b-only")))

	a.mergeFirstWriterWins(b)
	require.Equal(t, 2, a.len())
	require.Equal(t, []byte("a-value"), a.values[string([]byte{0xf0, 0x01})])
	require.Equal(t, []byte("b-only"), a.values[string([]byte{0xf0, 0x02})])
}

func TestCompactScriptRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	script := []byte{0x51, 0x52, 0x53}
	require.NoError(t, writeCompactScript(&buf, script))

	got, err := readCompactScript(&buf)
	require.NoError(t, err)
	require.Equal(t, script, got)
}
