// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pskt is an implementation of Partially Signed Koyotecoin
// Transactions (PSKT). The format is compatible with BIP 174:
// https://github.com/bitcoin/bips/blob/master/bip-0174.mediawiki
//
// A PSKT lets independent parties cooperatively build, annotate, sign,
// merge, finalize and extract a transaction without sharing a signing
// session. The package is organized around the five workflow roles
// (Creator, Updater, Signer, Combiner, Finalizer/Extractor) and is
// synchronous and keeps no package-level state. Several operations (for
// example SignPsktInput, UpdatePsktInput and FinalizePskt) modify the
// Packet they are given in place, so parallelism is achieved by operating
// on independent clones and combining the results with Combine.
package pskt
