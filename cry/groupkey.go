// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cry

import (
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// NewGroupKey draws a fresh 256-bit symmetric group key from the
// process cryptographic RNG.
func NewGroupKey() ([]byte, error) {
	key := make([]byte, hush.GroupKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "generate group key")
	}
	return key, nil
}
