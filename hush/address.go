// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package hush

import "strings"

// Address denotes an identity by its public signing key, in the base
// encoded string form it travels on the wire. Addresses are opaque to
// the feeds core; only equality and blankness matter here.
type Address string

// IsBlank returns true for an empty or whitespace-only address.
func (a Address) IsBlank() bool {
	return strings.TrimSpace(string(a)) == ""
}

// String implements stringer.
func (a Address) String() string { return string(a) }

// EncryptKey is the public encryption key associated with an Address,
// used to wrap group keys for that identity.
type EncryptKey string

// IsBlank returns true for an empty or whitespace-only key.
func (k EncryptKey) IsBlank() bool {
	return strings.TrimSpace(string(k)) == ""
}
