// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package identity provides the node's persistent cryptographic identity:
// an Ed25519 signing keypair with a deterministically derived X25519
// key-agreement keypair, plus the AEAD construction sessions use once a
// shared secret has been negotiated.
package identity

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// ErrIdentityCorrupt is returned when a persisted identity blob fails its
// magic/checksum/length checks. Callers should treat this as fatal.
var ErrIdentityCorrupt = errors.New("identity: corrupt identity file")

// ErrSignatureInvalid is returned by Verify when a signature does not match.
var ErrSignatureInvalid = errors.New("identity: signature invalid")

// ErrDecryptionFailed is returned by Decrypt on any AEAD failure.
var ErrDecryptionFailed = errors.New("identity: decryption failed")

const (
	magic       = "DWN1"
	blobVersion = 1
	// blobLen = magic(4) + version(1) + seed(32) + crc32c(4)
	blobLen = 4 + 1 + ed25519.SeedSize + 4
)

// crcTable is the CRC-32C (Castagnoli) table for the blob checksum.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Identity is a node's persistent cryptographic identity. It is immutable
// after construction: NodeID, the Ed25519 keys, and the derived X25519
// keys never change for the lifetime of the process.
type Identity struct {
	seed       [ed25519.SeedSize]byte
	signPub    ed25519.PublicKey
	signPriv   ed25519.PrivateKey
	agreePub   [32]byte
	agreePriv  [32]byte
	nodeIDText string
}

// New generates a fresh Identity from a random Ed25519 seed.
func New() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "identity: generate ed25519 key")
	}
	var seed [ed25519.SeedSize]byte
	copy(seed[:], priv.Seed())
	return fromSeed(seed, pub, priv)
}

// Load reconstructs an Identity from bytes produced by Save.
func Load(data []byte) (*Identity, error) {
	if len(data) != blobLen {
		return nil, ErrIdentityCorrupt
	}
	if string(data[0:4]) != magic {
		return nil, ErrIdentityCorrupt
	}
	if data[4] != blobVersion {
		return nil, ErrIdentityCorrupt
	}
	var seed [ed25519.SeedSize]byte
	copy(seed[:], data[5:5+ed25519.SeedSize])
	wantCRC := binary.BigEndian.Uint32(data[5+ed25519.SeedSize:])
	gotCRC := crc32.Checksum(data[:5+ed25519.SeedSize], crcTable)
	if wantCRC != gotCRC {
		return nil, ErrIdentityCorrupt
	}
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	return fromSeed(seed, pub, priv)
}

// Save serializes the identity to bytes suitable for Load.
func (id *Identity) Save() []byte {
	out := make([]byte, blobLen)
	copy(out[0:4], magic)
	out[4] = blobVersion
	copy(out[5:5+ed25519.SeedSize], id.seed[:])
	crc := crc32.Checksum(out[:5+ed25519.SeedSize], crcTable)
	binary.BigEndian.PutUint32(out[5+ed25519.SeedSize:], crc)
	return out
}

func fromSeed(seed [ed25519.SeedSize]byte, pub ed25519.PublicKey, priv ed25519.PrivateKey) (*Identity, error) {
	agreePriv := deriveX25519Scalar(priv)
	var agreePub [32]byte
	pubBytes, err := curve25519.X25519(agreePriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "identity: derive x25519 public key")
	}
	copy(agreePub[:], pubBytes)

	id := &Identity{
		seed:      seed,
		signPub:   pub,
		signPriv:  priv,
		agreePriv: agreePriv,
		agreePub:  agreePub,
	}
	id.nodeIDText = encodeNodeID(pub)
	return id, nil
}

// deriveX25519Scalar derives an X25519 private scalar deterministically
// from an Ed25519 private key, following the standard Ed25519->X25519
// conversion: SHA-512 the seed, clamp the low half as a Curve25519 scalar.
func deriveX25519Scalar(priv ed25519.PrivateKey) [32]byte {
	h := sha512.Sum512(priv.Seed())
	var scalar [32]byte
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	return scalar
}

// encodeNodeID renders a public key as the printable node_id: uppercase
// standard-alphabet base32 (no padding) of the raw 32-byte Ed25519 public key.
func encodeNodeID(pub ed25519.PublicKey) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(pub)
}

// NodeID returns this identity's printable node_id.
func (id *Identity) NodeID() string { return id.nodeIDText }

// SigningPublicKey returns the raw 32-byte Ed25519 public key.
func (id *Identity) SigningPublicKey() ed25519.PublicKey { return id.signPub }

// AgreementPublicKey returns the raw 32-byte X25519 public key.
func (id *Identity) AgreementPublicKey() [32]byte { return id.agreePub }

// Sign signs data with the identity's Ed25519 private key.
func (id *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(id.signPriv, data)
}

// Verify checks a signature against an arbitrary Ed25519 public key.
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}

// NodeIDFromPublicKey computes the node_id for an arbitrary public key,
// used to validate that a peer's advertised node_id matches its Hello key.
func NodeIDFromPublicKey(pub ed25519.PublicKey) string {
	return encodeNodeID(pub)
}

// KeyAgreement derives the raw 32-byte X25519 shared secret with a peer's
// agreement public key. It does not by itself produce directional session
// keys; callers use ExpandSessionKeys for that.
func (id *Identity) KeyAgreement(theirAgreePub [32]byte) ([32]byte, error) {
	shared, err := curve25519.X25519(id.agreePriv[:], theirAgreePub[:])
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "identity: x25519 key agreement")
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}

// AEAD wraps a 32-byte key in the construction used for framed transport
// encryption: ChaCha20-Poly1305 with a 96-bit nonce built from a per-
// direction monotonic counter, left-padded with zeros.
type AEAD struct {
	aead chacha20poly1305.AEAD
}

// NewAEAD builds an AEAD cipher bound to key.
func NewAEAD(key [32]byte) (*AEAD, error) {
	c, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "identity: construct aead")
	}
	return &AEAD{aead: c}, nil
}

// CounterNonce builds the 96-bit nonce for a given direction counter:
// 4 zero bytes followed by the big-endian 64-bit counter.
func CounterNonce(counter uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// Seal encrypts plaintext for the given counter and associated data.
func (a *AEAD) Seal(counter uint64, plaintext, aad []byte) []byte {
	nonce := CounterNonce(counter)
	return a.aead.Seal(nil, nonce[:], plaintext, aad)
}

// Open decrypts ciphertext sealed at the given counter with Seal.
func (a *AEAD) Open(counter uint64, ciphertext, aad []byte) ([]byte, error) {
	nonce := CounterNonce(counter)
	out, err := a.aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}
