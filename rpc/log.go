package rpc

import "github.com/btcsuite/btclog"

// log is the package-level logger of the rpc package. By default it
// discards everything; callers embedding this package wire in a real
// subsystem logger via UseLogger. None of the handlers write to it.
var log = btclog.Disabled

// UseLogger sets the package-wide logger of the rpc package, the same
// convention btcd subpackages use to let a host
// application route a subsystem's logs through its own logging backend.
func UseLogger(logger btclog.Logger) {
	log = logger
}
