// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package identity

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// KeyCredentials is a CredentialsProvider backed by a local secp256k1
// key, used in solo mode and tests. Production nodes plug in the
// credential service of the chain layer instead.
type KeyCredentials struct {
	priv *secp256k1.PrivateKey
	addr hush.Address
}

// NewKeyCredentials generates a fresh node identity.
func NewKeyCredentials() (*KeyCredentials, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate node key")
	}
	return &KeyCredentials{
		priv: priv,
		addr: hush.Address(hushAddressOf(priv.PubKey())),
	}, nil
}

func hushAddressOf(pub *secp256k1.PublicKey) string {
	sum := sha256.Sum256(pub.SerializeCompressed())
	return "hush1" + hexOf(sum[:20])
}

func hexOf(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0f])
	}
	return string(out)
}

// NodeAddress implements CredentialsProvider.
func (c *KeyCredentials) NodeAddress() hush.Address { return c.addr }

// Sign implements CredentialsProvider.
func (c *KeyCredentials) Sign(digest []byte) ([]byte, error) {
	sum := sha256.Sum256(digest)
	return ecdsa.SignCompact(c.priv, sum[:], true), nil
}

// Verify implements CredentialsProvider. Only the node's own signatures
// are verifiable locally; everything else defers to the chain layer.
func (c *KeyCredentials) Verify(signer hush.Address, digest, signature []byte) error {
	sum := sha256.Sum256(digest)
	pub, _, err := ecdsa.RecoverCompact(signature, sum[:])
	if err != nil {
		return errors.WithMessage(err, "recover signer")
	}
	if signer != hush.Address(hushAddressOf(pub)) {
		return errors.New("signer mismatch")
	}
	return nil
}
