package pskt

import (
	"github.com/bynil/btcd/chaincfg"
	"github.com/bynil/btcd/wire"
)

// FinalizeAndExtractPskt is the Extractor role (spec.md §4.5, §4.6): it runs
// FinalizePskt itself, then — only if every input came out finalized —
// copies the unsigned transaction and writes each input's final data into
// the matching vin entry to build a standalone, network-ready transaction.
func FinalizeAndExtractPskt(p *Packet, params *chaincfg.Params) (*wire.MsgTx, error) {
	if err := FinalizePskt(p, params); err != nil {
		return nil, err
	}
	if !p.IsComplete() {
		return nil, ErrIncompletePSKT
	}

	tx := p.UnsignedTx.Copy()
	for i := range tx.TxIn {
		tx.TxIn[i].SignatureScript = append([]byte(nil), p.Inputs[i].FinalScriptSig...)

		if len(p.Inputs[i].FinalScriptWitness) != 0 {
			wit := make(wire.TxWitness, len(p.Inputs[i].FinalScriptWitness))
			for j, item := range p.Inputs[i].FinalScriptWitness {
				wit[j] = append([]byte(nil), item...)
			}
			tx.TxIn[i].Witness = wit
		}
	}

	return tx, nil
}
