// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cry

import (
	"bytes"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	key, err := NewGroupKey()
	require.NoError(t, err)
	assert.Len(t, key, hush.GroupKeySize)

	ct, err := Encrypt(priv.PubKey().SerializeUncompressed(), key)
	require.NoError(t, err)
	assert.Equal(t, EncryptOverhead+len(key), len(ct))
	assert.GreaterOrEqual(t, len(ct), 93)

	pt, err := Decrypt(priv, ct)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(key, pt))
}

func TestEncryptAcceptsCompressedKeys(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	ct, err := Encrypt(priv.PubKey().SerializeCompressed(), []byte("hello"))
	require.NoError(t, err)

	pt, err := Decrypt(priv, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)
}

func TestEncryptRejectsMalformedKey(t *testing.T) {
	_, err := Encrypt([]byte{0x01, 0x02}, []byte("data"))
	require.Error(t, err)
	assert.True(t, IsMalformedKey(err))
}

func TestEncryptNonDeterministic(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeUncompressed()

	ct1, err := Encrypt(pub, []byte("same plaintext"))
	require.NoError(t, err)
	ct2, err := Encrypt(pub, []byte("same plaintext"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(ct1, ct2))
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	ct, err := Encrypt(priv.PubKey().SerializeUncompressed(), []byte("secret"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0xff
	_, err = Decrypt(priv, ct)
	assert.Error(t, err)

	_, err = Decrypt(priv, ct[:50])
	assert.Error(t, err)
}
