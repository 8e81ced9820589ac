// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pskt

import (
	"bytes"
	"sort"

	"github.com/bynil/btcd/btcec/v2"
	"github.com/bynil/btcd/btcec/v2/ecdsa"
	"github.com/bynil/btcd/btcec/v2/schnorr"
)

// PartialSig encapsulates a (public key, ECDSA signature) pair. Fields are
// stored as byte slices, not btcec.PublicKey/ecdsa.Signature, because
// manipulation happens at the byte-slice level; compliance with consensus
// serialization is enforced by checkValid.
type PartialSig struct {
	PubKey    []byte
	Signature []byte
}

// PartialSigSorter implements sort.Interface for PartialSig, ordering by
// public key so canonical encoding (spec.md §4.1) is deterministic.
type PartialSigSorter []*PartialSig

func (s PartialSigSorter) Len() int { return len(s) }

func (s PartialSigSorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s PartialSigSorter) Less(i, j int) bool {
	return bytes.Compare(s[i].PubKey, s[j].PubKey) < 0
}

// validatePubkey checks if pubKey is any valid public key serialization
// (compressed or uncompressed).
func validatePubkey(pubKey []byte) bool {
	_, err := btcec.ParsePubKey(pubKey)
	return err == nil
}

// validateSignature checks that the passed byte slice is a valid
// DER-encoded ECDSA signature, including the sighash flag byte. It does not
// validate the signature against any message or public key.
func validateSignature(sig []byte) bool {
	if len(sig) == 0 {
		return false
	}
	// The final byte is the sighash flag; the DER signature precedes it.
	_, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	return err == nil
}

// checkValid checks that both the pubkey and signature are well formed. See
// validatePubkey and validateSignature for details.
func (ps *PartialSig) checkValid() bool {
	return validatePubkey(ps.PubKey) && validateSignature(ps.Signature)
}

// validateSchnorrSignature checks that sig is a 64-byte BIP-340 signature,
// or a 65-byte signature with a trailing (non-default) sighash byte, as
// used by Taproot key-path and script-path signatures.
func validateSchnorrSignature(sig []byte) bool {
	switch len(sig) {
	case 64:
		_, err := schnorr.ParseSignature(sig)
		return err == nil
	case 65:
		if sig[64] == 0x00 {
			return false
		}
		_, err := schnorr.ParseSignature(sig[:64])
		return err == nil
	default:
		return false
	}
}

// partialSigMap is an insertion-ordered, pubkey-keyed collection of
// PartialSig entries backing PSKTInput.partial_sigs.
type partialSigMap struct {
	order   []string
	entries map[string]*PartialSig
}

func newPartialSigMap() *partialSigMap {
	return &partialSigMap{entries: make(map[string]*PartialSig)}
}

func (m *partialSigMap) add(ps *PartialSig) error {
	k := string(ps.PubKey)
	if _, ok := m.entries[k]; ok {
		return ErrDuplicateKey
	}
	m.entries[k] = ps
	m.order = append(m.order, k)
	return nil
}

func (m *partialSigMap) len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

func (m *partialSigMap) clone() *partialSigMap {
	n := newPartialSigMap()
	for _, k := range m.order {
		v := *m.entries[k]
		n.add(&v)
	}
	return n
}

func (m *partialSigMap) mergeFirstWriterWins(other *partialSigMap) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		if _, ok := m.entries[k]; ok {
			continue
		}
		v := *other.entries[k]
		m.add(&v)
	}
}

func (m *partialSigMap) equal(o *partialSigMap) bool {
	if m.len() != o.len() {
		return false
	}
	for k, v := range m.entries {
		ov, ok := o.entries[k]
		if !ok || !bytes.Equal(v.Signature, ov.Signature) {
			return false
		}
	}
	return true
}

func (m *partialSigMap) sorted() []*PartialSig {
	out := make([]*PartialSig, 0, m.len())
	for _, k := range m.order {
		out = append(out, m.entries[k])
	}
	sort.Sort(PartialSigSorter(out))
	return out
}
