// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProducesDistinctNodeIDs(t *testing.T) {
	require := require.New(t)

	a, err := New()
	require.NoError(err)
	b, err := New()
	require.NoError(err)

	require.NotEqual(a.NodeID(), b.NodeID())
	require.Len(a.NodeID(), 52) // base32 of 32 bytes, no padding
}

func TestSaveLoadRoundTrip(t *testing.T) {
	require := require.New(t)

	a, err := New()
	require.NoError(err)

	blob := a.Save()
	b, err := Load(blob)
	require.NoError(err)

	require.Equal(a.NodeID(), b.NodeID())
	require.Equal(a.SigningPublicKey(), b.SigningPublicKey())
	require.Equal(a.AgreementPublicKey(), b.AgreementPublicKey())
}

func TestLoadRejectsCorruptBlob(t *testing.T) {
	require := require.New(t)

	a, err := New()
	require.NoError(err)
	blob := a.Save()

	_, err = Load(blob[:len(blob)-1])
	require.ErrorIs(err, ErrIdentityCorrupt)

	tampered := make([]byte, len(blob))
	copy(tampered, blob)
	tampered[10] ^= 0xFF
	_, err = Load(tampered)
	require.ErrorIs(err, ErrIdentityCorrupt)

	badMagic := make([]byte, len(blob))
	copy(badMagic, blob)
	badMagic[0] = 'X'
	_, err = Load(badMagic)
	require.ErrorIs(err, ErrIdentityCorrupt)
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	a, err := New()
	require.NoError(err)

	msg := []byte("hello dawn")
	sig := a.Sign(msg)
	require.True(Verify(a.SigningPublicKey(), msg, sig))
	require.False(Verify(a.SigningPublicKey(), []byte("tampered"), sig))
}

func TestNodeIDFromPublicKeyMatchesOwnNodeID(t *testing.T) {
	require := require.New(t)

	a, err := New()
	require.NoError(err)

	require.Equal(a.NodeID(), NodeIDFromPublicKey(a.SigningPublicKey()))
}

func TestKeyAgreementIsSymmetric(t *testing.T) {
	require := require.New(t)

	a, err := New()
	require.NoError(err)
	b, err := New()
	require.NoError(err)

	secretA, err := a.KeyAgreement(b.AgreementPublicKey())
	require.NoError(err)
	secretB, err := b.KeyAgreement(a.AgreementPublicKey())
	require.NoError(err)

	require.Equal(secretA, secretB)
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	require := require.New(t)

	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	aead, err := NewAEAD(key)
	require.NoError(err)

	plaintext := []byte("frame payload")
	aad := []byte("session-id")

	ct := aead.Seal(0, plaintext, aad)
	pt, err := aead.Open(0, ct, aad)
	require.NoError(err)
	require.Equal(plaintext, pt)

	_, err = aead.Open(1, ct, aad)
	require.ErrorIs(err, ErrDecryptionFailed)

	_, err = aead.Open(0, ct, []byte("wrong-aad"))
	require.ErrorIs(err, ErrDecryptionFailed)
}
