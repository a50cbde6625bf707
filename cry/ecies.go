// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cry

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// ECIES over secp256k1: ephemeral keypair -> ECDH -> HKDF-SHA256 ->
// AES-256-GCM. Ciphertext layout:
//
//	ephemeralPub(65, uncompressed) || nonce(12) || sealed(ct || tag(16))
//
// so the minimum ciphertext is 93 bytes plus the plaintext length.
const (
	eciesPubKeyLen = 65
	eciesNonceLen  = 12
	eciesTagLen    = 16

	// EncryptOverhead is the fixed size added to the plaintext.
	EncryptOverhead = eciesPubKeyLen + eciesNonceLen + eciesTagLen
)

var eciesKDFInfo = []byte("hush-group-key-v1")

var (
	errMalformedPubKey     = errors.New("malformed public key")
	errMalformedCiphertext = errors.New("malformed ciphertext")
)

// IsMalformedKey tells whether the error denotes an unusable public key.
func IsMalformedKey(err error) bool {
	return errors.Cause(err) == errMalformedPubKey
}

func deriveAEAD(shared []byte, ephemeralPub []byte) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, shared, ephemeralPub, eciesKDFInfo)
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext for the holder of recipientPub (65-byte
// uncompressed or 33-byte compressed secp256k1 point). It is a pure
// function of its inputs and the process RNG.
func Encrypt(recipientPub []byte, plaintext []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(recipientPub)
	if err != nil {
		return nil, errors.WithMessage(errMalformedPubKey, err.Error())
	}

	ephemeral, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate ephemeral key")
	}
	ephemeralPub := ephemeral.PubKey().SerializeUncompressed()

	shared := secp256k1.GenerateSharedSecret(ephemeral, pub)
	aead, err := deriveAEAD(shared, ephemeralPub)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, eciesNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, EncryptOverhead+len(plaintext))
	out = append(out, ephemeralPub...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt. The node itself never
// decrypts group keys; this exists for clients and tests.
func Decrypt(recipientPriv *secp256k1.PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < EncryptOverhead {
		return nil, errMalformedCiphertext
	}
	ephemeralPub, err := secp256k1.ParsePubKey(ciphertext[:eciesPubKeyLen])
	if err != nil {
		return nil, errors.WithMessage(errMalformedCiphertext, err.Error())
	}

	shared := secp256k1.GenerateSharedSecret(recipientPriv, ephemeralPub)
	aead, err := deriveAEAD(shared, ciphertext[:eciesPubKeyLen])
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[eciesPubKeyLen : eciesPubKeyLen+eciesNonceLen]
	plaintext, err := aead.Open(nil, nonce, ciphertext[eciesPubKeyLen+eciesNonceLen:], nil)
	if err != nil {
		return nil, errors.WithMessage(errMalformedCiphertext, err.Error())
	}
	return plaintext, nil
}
