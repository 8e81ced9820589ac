package pskt

// KeyOriginInfo is the (master fingerprint, derivation path) pair a signing
// provider can attach to a public key it knows about.
type KeyOriginInfo struct {
	MasterKeyFingerprint uint32
	Bip32Path            []uint32
}

// SigningProvider is the capability the engine uses to look up whatever
// key/script metadata a cooperating party knows for a given script, without
// ever handing the engine a private key directly (spec.md §3.5, §9).
// Implementations may legitimately return ok=false/empty for anything they
// choose to keep secret (see HidingSigningProvider).
type SigningProvider interface {
	// Script returns the redeem or witness script whose hash is
	// scriptHash, if known.
	Script(scriptHash []byte) ([]byte, bool)

	// PubKey returns the full public key for the given key id (its
	// Hash160, for legacy/segwit v0 keys), if known.
	PubKey(keyID []byte) ([]byte, bool)

	// KeyOrigin returns the key-origin info for pubKey, if known.
	KeyOrigin(pubKey []byte) (KeyOriginInfo, bool)

	// TapScripts returns the Taproot script-path leaves (script, leaf
	// version, control block) this provider knows for the given
	// Taproot output key, if any.
	TapScripts(outputKey []byte) ([]TaprootLeafScript, bool)

	// TapInternalKey returns the Taproot internal key and merkle root
	// backing outputKey, if known.
	TapInternalKey(outputKey []byte) (internalKey, merkleRoot []byte, ok bool)
}

// SignatureCreator is the capability that produces raw signatures given a
// message, key, and sighash flag, kept separate from SigningProvider so the
// engine never has to touch — or even see — private key material
// (spec.md §9).
type SignatureCreator interface {
	// CreateSig produces an ECDSA signature (DER + sighash byte) for the
	// given pubkey over the given script at the given input index, or
	// ok=false if this creator cannot or will not sign for that key.
	CreateSig(script []byte, pubKey []byte, inputIndex int, sigHashType uint32) (sig []byte, ok bool, err error)

	// CreateSchnorrSig produces a BIP-340 Taproot signature for the
	// given x-only pubkey (key-path, or script-path when leafHash is
	// non-nil), or ok=false if this creator cannot sign for that key.
	CreateSchnorrSig(xOnlyPubKey []byte, leafHash []byte, inputIndex int, sigHashType uint32) (sig []byte, ok bool, err error)
}

// HidingSigningProvider wraps a SigningProvider and optionally hides key
// origin metadata and/or Taproot internal-key info, the way a
// hardware-wallet-backed signer might refuse to leak derivation paths.
// Ported from the Bitcoin Core HidingSigningProvider design referenced by
// spec.md §4.2's "may hide secrets; may hide origin info" (SPEC_FULL.md
// §D.2).
type HidingSigningProvider struct {
	inner      SigningProvider
	hideOrigin bool
	hideTap    bool
}

// NewHidingSigningProvider wraps provider, hiding key-origin info when
// hideOrigin is set and Taproot internal-key info when hideTap is set.
func NewHidingSigningProvider(provider SigningProvider, hideOrigin, hideTap bool) *HidingSigningProvider {
	return &HidingSigningProvider{inner: provider, hideOrigin: hideOrigin, hideTap: hideTap}
}

func (h *HidingSigningProvider) Script(scriptHash []byte) ([]byte, bool) {
	return h.inner.Script(scriptHash)
}

func (h *HidingSigningProvider) PubKey(keyID []byte) ([]byte, bool) {
	return h.inner.PubKey(keyID)
}

func (h *HidingSigningProvider) KeyOrigin(pubKey []byte) (KeyOriginInfo, bool) {
	if h.hideOrigin {
		return KeyOriginInfo{}, false
	}
	return h.inner.KeyOrigin(pubKey)
}

func (h *HidingSigningProvider) TapScripts(outputKey []byte) ([]TaprootLeafScript, bool) {
	return h.inner.TapScripts(outputKey)
}

func (h *HidingSigningProvider) TapInternalKey(outputKey []byte) (internalKey, merkleRoot []byte, ok bool) {
	if h.hideTap {
		return nil, nil, false
	}
	return h.inner.TapInternalKey(outputKey)
}
