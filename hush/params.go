// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package hush

// BlockIndex is the height of a block in the canonical chain. It is
// strictly increasing with block production and orders everything the
// feeds core does.
type BlockIndex uint64

// Protocol constants of the feeds core.
const (
	// MaxGroupSize is the hard cap on active members of a group feed.
	// A key rotation producing a larger member set fails.
	MaxGroupSize = 512

	// KeyRotationGraceBlocks is the length of the window, starting at
	// and including the rotation block, during which messages encrypted
	// under the previous key generation are still accepted.
	KeyRotationGraceBlocks = 5

	// RejoinCooldownBlocks is the number of blocks a member must wait
	// after self-leaving a public group before self-rejoining. Admin
	// initiated adds bypass it.
	RejoinCooldownBlocks = 100

	// MaxGroupTitleLen bounds group feed titles.
	MaxGroupTitleLen = 100

	// GroupKeySize is the size of the symmetric group key in bytes.
	GroupKeySize = 32
)
