// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package crypto provides cryptographic operations for the PROBE standard library.
//
// Includes post-quantum cryptography (PQC) primitives:
//   - Falcon-512 (lattice-based signatures)
//   - ML-DSA / Dilithium (lattice-based signatures)
//   - SLH-DSA / SPHINCS+ (hash-based signatures)
//   - SHAKE256 and SHA-3 hash functions
package crypto

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Hash computes the FIPS-202 SHA3-256 digest of the input (not legacy
// Keccak-256).
func Hash(data []byte) [32]byte {
	return sha3.Sum256(data)
}

// SHAKE256 computes a variable-length SHAKE256 hash.
func SHAKE256(data []byte, outputLen int) []byte {
	out := make([]byte, outputLen)
	sha3.ShakeSum256(out, data)
	return out
}

// Falcon512Verify verifies a Falcon-512 signature.
//
// The PQC signature suite (Falcon-512, ML-DSA, SLH-DSA, secp256k1 recovery)
// this standard library package describes lived in the crypto/ subsystem
// dropped from this tree (see DESIGN.md) along with the rest of the
// blockchain-client code it served; none of it is reachable from the
// debugger, so these remain unimplemented rather than re-deriving that
// subsystem here.
func Falcon512Verify(msg, sig, pubkey []byte) bool {
	return false
}

// MLDSAVerify always returns false: ML-DSA (Dilithium) verification is not
// implemented; see Falcon512Verify.
func MLDSAVerify(msg, sig, pubkey []byte) bool {
	return false
}

// SLHDSAVerify always returns false: SLH-DSA (SPHINCS+) verification is not
// implemented; see Falcon512Verify.
func SLHDSAVerify(msg, sig, pubkey []byte) bool {
	return false
}

// Secp256k1Recover recovers the address from a signature. Unimplemented; see
// Falcon512Verify.
func Secp256k1Recover(hash [32]byte, sig [65]byte) ([20]byte, error) {
	var addr [20]byte
	return addr, fmt.Errorf("crypto: secp256k1 recovery unavailable")
}
