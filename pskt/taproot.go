package pskt

import "bytes"

// TaprootScriptSig is a Taproot script-path partial signature, keyed by the
// x-only public key and the leaf hash it signs.
type TaprootScriptSig struct {
	XOnlyPubKey []byte
	LeafHash    []byte
	Signature   []byte
}

// TaprootScriptSigs is an insertion-ordered, (pubkey,leafhash)-keyed
// collection of TaprootScriptSig entries (PSKT's m_tap_script_sigs).
type TaprootScriptSigs struct {
	order   []string
	entries map[string]*TaprootScriptSig
}

func newTaprootScriptSigs() *TaprootScriptSigs {
	return &TaprootScriptSigs{entries: make(map[string]*TaprootScriptSig)}
}

func tapScriptSigKey(pubKey, leafHash []byte) string {
	return string(pubKey) + "|" + string(leafHash)
}

func (s *TaprootScriptSigs) add(v *TaprootScriptSig) error {
	k := tapScriptSigKey(v.XOnlyPubKey, v.LeafHash)
	if _, ok := s.entries[k]; ok {
		return ErrDuplicateKey
	}
	s.entries[k] = v
	s.order = append(s.order, k)
	return nil
}

func (s *TaprootScriptSigs) len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *TaprootScriptSigs) clone() *TaprootScriptSigs {
	n := newTaprootScriptSigs()
	for _, k := range s.order {
		v := *s.entries[k]
		n.add(&v)
	}
	return n
}

func (s *TaprootScriptSigs) mergeFirstWriterWins(other *TaprootScriptSigs) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		if _, ok := s.entries[k]; ok {
			continue
		}
		v := *other.entries[k]
		s.add(&v)
	}
}

// TaprootLeafScript is one leaf script with its leaf version and one control
// block proving it (a single entry of PSKT's m_tap_scripts).
type TaprootLeafScript struct {
	Script       []byte
	LeafVersion  byte
	ControlBlock []byte
}

// TaprootLeafScripts is a (script,leaf-version)-keyed collection whose value
// is the *set* of control blocks recorded for it, merged by set union.
type TaprootLeafScripts struct {
	order   []string
	script  map[string][]byte
	version map[string]byte
	blocks  map[string]map[string][]byte // key -> controlBlockBytes -> controlBlockBytes
	blockOrder map[string][]string
}

func newTaprootLeafScripts() *TaprootLeafScripts {
	return &TaprootLeafScripts{
		script:     make(map[string][]byte),
		version:    make(map[string]byte),
		blocks:     make(map[string]map[string][]byte),
		blockOrder: make(map[string][]string),
	}
}

func tapLeafKey(script []byte, version byte) string {
	return string(script) + "|" + string([]byte{version})
}

func (s *TaprootLeafScripts) add(l TaprootLeafScript) {
	k := tapLeafKey(l.Script, l.LeafVersion)
	if _, ok := s.script[k]; !ok {
		s.script[k] = l.Script
		s.version[k] = l.LeafVersion
		s.blocks[k] = make(map[string][]byte)
		s.order = append(s.order, k)
	}
	cbKey := string(l.ControlBlock)
	if _, ok := s.blocks[k][cbKey]; !ok {
		s.blocks[k][cbKey] = l.ControlBlock
		s.blockOrder[k] = append(s.blockOrder[k], cbKey)
	}
}

func (s *TaprootLeafScripts) len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, k := range s.order {
		n += len(s.blockOrder[k])
	}
	return n
}

func (s *TaprootLeafScripts) clone() *TaprootLeafScripts {
	n := newTaprootLeafScripts()
	for _, k := range s.order {
		for _, cbKey := range s.blockOrder[k] {
			n.add(TaprootLeafScript{
				Script:       s.script[k],
				LeafVersion:  s.version[k],
				ControlBlock: s.blocks[k][cbKey],
			})
		}
	}
	return n
}

// mergeUnion unions the control-block sets of matching (script,version)
// keys and adds any keys only present in other.
func (s *TaprootLeafScripts) mergeUnion(other *TaprootLeafScripts) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		for _, cbKey := range other.blockOrder[k] {
			s.add(TaprootLeafScript{
				Script:       other.script[k],
				LeafVersion:  other.version[k],
				ControlBlock: other.blocks[k][cbKey],
			})
		}
	}
}

// TaprootBip32Derivation is the Taproot variant of Bip32Derivation: the
// x-only public key is associated with the set of leaf hashes it
// participates in, plus its key-origin info.
type TaprootBip32Derivation struct {
	XOnlyPubKey          []byte
	LeafHashes           [][]byte
	MasterKeyFingerprint uint32
	Bip32Path            []uint32
}

// TaprootBip32Derivations is an x-only-pubkey-keyed collection.
type TaprootBip32Derivations struct {
	order   []string
	entries map[string]*TaprootBip32Derivation
}

func newTaprootBip32Derivations() *TaprootBip32Derivations {
	return &TaprootBip32Derivations{entries: make(map[string]*TaprootBip32Derivation)}
}

func (s *TaprootBip32Derivations) add(d *TaprootBip32Derivation) error {
	k := string(d.XOnlyPubKey)
	if _, ok := s.entries[k]; ok {
		return ErrDuplicateKey
	}
	s.entries[k] = d
	s.order = append(s.order, k)
	return nil
}

func (s *TaprootBip32Derivations) len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *TaprootBip32Derivations) clone() *TaprootBip32Derivations {
	n := newTaprootBip32Derivations()
	for _, k := range s.order {
		d := *s.entries[k]
		d.LeafHashes = append([][]byte(nil), s.entries[k].LeafHashes...)
		d.Bip32Path = append([]uint32(nil), s.entries[k].Bip32Path...)
		n.add(&d)
	}
	return n
}

func (s *TaprootBip32Derivations) mergeFirstWriterWins(other *TaprootBip32Derivations) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		if _, ok := s.entries[k]; ok {
			continue
		}
		d := *other.entries[k]
		s.add(&d)
	}
}

// TapTreeLeaf is one entry of an output's depth-first-ordered Taproot tree
// (spec.md §3.3: "depth-first-ordered list of (depth, leaf-version,
// script)").
type TapTreeLeaf struct {
	Depth       uint8
	LeafVersion byte
	Script      []byte
}

func tapTreeEqual(a, b []TapTreeLeaf) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Depth != b[i].Depth || a[i].LeafVersion != b[i].LeafVersion ||
			!bytes.Equal(a[i].Script, b[i].Script) {
			return false
		}
	}
	return true
}
