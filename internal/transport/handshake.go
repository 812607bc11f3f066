// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport implements the authenticated, encrypted channel nodes
// use to talk to each other: a WebSocket carrier, a signed Hello handshake
// that negotiates per-direction AEAD keys, and the framed Session built on
// top of the negotiated keys.
package transport

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/luxfi/version"
	"golang.org/x/crypto/hkdf"

	"github.com/rpretzer/dawn/internal/identity"
)

// DefaultHandshakeTimeout bounds how long a Hello exchange may take before
// the connection is abandoned.
const DefaultHandshakeTimeout = 5 * time.Second

// hkdfInfo is the fixed HKDF "info" label binding derived keys to this
// protocol and version, preventing cross-protocol key reuse.
const hkdfInfo = "dawn-transport-v1"

// ErrHandshakeFailed covers any Hello validation failure: bad signature,
// node_id/public-key mismatch, or malformed payload.
var ErrHandshakeFailed = errors.New("transport: handshake failed")

// Hello is the first and only plaintext message on a connection. Both
// sides send one, then derive keys from the exchanged ephemeral-free
// static agreement keys: an authenticated encrypted channel, not a ratchet.
type Hello struct {
	VersionName  string `json:"version_name"`
	VersionMajor int    `json:"version_major"`
	VersionMinor int    `json:"version_minor"`
	VersionPatch int    `json:"version_patch"`

	NodeID        string `json:"node_id"`
	SigningPubKey []byte `json:"signing_pub_key"`
	AgreePubKey   []byte `json:"agree_pub_key"`
	Nonce         []byte `json:"nonce"`
	Signature     []byte `json:"signature"`
}

// Application reconstructs this Hello's advertised version as a
// version.Application, for Compatible()/Before() checks against a peer.
func (h Hello) Application() *version.Application {
	return &version.Application{Name: h.VersionName, Major: h.VersionMajor, Minor: h.VersionMinor, Patch: h.VersionPatch}
}

// signedPayload returns the bytes a Hello's Signature covers: everything
// except the signature itself.
func (h Hello) signedPayload() []byte {
	buf := make([]byte, 0, len(h.VersionName)+len(h.NodeID)+len(h.SigningPubKey)+len(h.AgreePubKey)+len(h.Nonce)+28)
	buf = append(buf, h.VersionName...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(h.VersionMajor))
	buf = binary.BigEndian.AppendUint32(buf, uint32(h.VersionMinor))
	buf = binary.BigEndian.AppendUint32(buf, uint32(h.VersionPatch))
	buf = append(buf, h.NodeID...)
	buf = append(buf, h.SigningPubKey...)
	buf = append(buf, h.AgreePubKey...)
	buf = append(buf, h.Nonce...)
	return buf
}

// buildHello constructs and signs this node's Hello message.
func buildHello(id *identity.Identity, appVersion *version.Application, nonce []byte) Hello {
	agreePub := id.AgreementPublicKey()
	h := Hello{
		VersionName:   appVersion.Name,
		VersionMajor:  appVersion.Major,
		VersionMinor:  appVersion.Minor,
		VersionPatch:  appVersion.Patch,
		NodeID:        id.NodeID(),
		SigningPubKey: append([]byte(nil), id.SigningPublicKey()...),
		AgreePubKey:   append([]byte(nil), agreePub[:]...),
		Nonce:         nonce,
	}
	h.Signature = id.Sign(h.signedPayload())
	return h
}

// verifyHello checks a received Hello's signature, that its node_id
// matches its claimed signing key, and that its advertised application
// version is compatible with ours (same major version).
func verifyHello(h Hello, local *version.Application) error {
	if len(h.SigningPubKey) != ed25519.PublicKeySize || len(h.AgreePubKey) != 32 {
		return ErrHandshakeFailed
	}
	if identity.NodeIDFromPublicKey(h.SigningPubKey) != h.NodeID {
		return ErrHandshakeFailed
	}
	if !identity.Verify(h.SigningPubKey, h.signedPayload(), h.Signature) {
		return ErrHandshakeFailed
	}
	if local != nil && !local.Compatible(h.Application()) {
		return errors.Wrap(ErrHandshakeFailed, "transport: incompatible protocol version")
	}
	return nil
}

// sessionKeys holds the two directional AEAD keys derived from a
// handshake's shared secret.
type sessionKeys struct {
	sendKey [32]byte
	recvKey [32]byte
}

// deriveSessionKeys expands the raw X25519 shared secret into two
// directional keys using HKDF-SHA256, ordered by the two parties'
// Ed25519 public keys in canonical lexicographic order so both sides
// agree on which key is "A->B" and which is "B->A".
func deriveSessionKeys(shared [32]byte, localPub, remotePub ed25519.PublicKey) (sessionKeys, error) {
	aFirst := compareBytes(localPub, remotePub) < 0

	salt := make([]byte, 0, len(localPub)+len(remotePub))
	if aFirst {
		salt = append(salt, localPub...)
		salt = append(salt, remotePub...)
	} else {
		salt = append(salt, remotePub...)
		salt = append(salt, localPub...)
	}

	reader := hkdf.New(sha256.New, shared[:], salt, []byte(hkdfInfo))
	var keyAtoB, keyBtoA [32]byte
	if _, err := io.ReadFull(reader, keyAtoB[:]); err != nil {
		return sessionKeys{}, errors.Wrap(err, "transport: derive key A->B")
	}
	if _, err := io.ReadFull(reader, keyBtoA[:]); err != nil {
		return sessionKeys{}, errors.Wrap(err, "transport: derive key B->A")
	}

	if aFirst {
		return sessionKeys{sendKey: keyAtoB, recvKey: keyBtoA}, nil
	}
	return sessionKeys{sendKey: keyBtoA, recvKey: keyAtoB}, nil
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// encodeHello/decodeHello frame a Hello as length-prefixed JSON for the
// plaintext portion of the handshake.
func encodeHello(h Hello) ([]byte, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

func decodeHello(data []byte) (Hello, error) {
	var h Hello
	if err := json.Unmarshal(data, &h); err != nil {
		return Hello{}, errors.Wrap(err, "transport: decode hello")
	}
	return h, nil
}
