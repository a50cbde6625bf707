// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rotation

import (
	"fmt"

	"github.com/Hushnetwork-social/hush-server-node-sub000/hush"
)

// ErrKind classifies rotation failures.
type ErrKind uint8

const (
	ErrGroupNotFound ErrKind = iota + 1
	ErrNoActiveMembers
	ErrGroupTooLarge
	ErrMissingIdentity
	ErrInvalidKey
	ErrCryptoFailure
)

func (k ErrKind) String() string {
	switch k {
	case ErrGroupNotFound:
		return "group not found"
	case ErrNoActiveMembers:
		return "no active members"
	case ErrGroupTooLarge:
		return "group too large"
	case ErrMissingIdentity:
		return "missing identity"
	case ErrInvalidKey:
		return "invalid encrypt key"
	case ErrCryptoFailure:
		return "crypto failure"
	}
	return "unknown"
}

// Error is a typed rotation failure. Addr names the offending member
// for per-member kinds, empty otherwise.
type Error struct {
	Kind  ErrKind
	Addr  hush.Address
	cause error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Addr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Addr)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrKind, addr hush.Address, cause error) *Error {
	return &Error{Kind: kind, Addr: addr, cause: cause}
}

// KindOf returns the rotation error kind, or 0 for foreign errors.
func KindOf(err error) ErrKind {
	if re, ok := err.(*Error); ok {
		return re.Kind
	}
	return 0
}
