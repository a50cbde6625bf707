// Copyright (c) 2025 The Hushnetwork developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package hush

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pborman/uuid"
)

// Bytes16 array of 16 bytes. Feed, message and transaction identifiers
// are all opaque 128-bit values.
type Bytes16 [16]byte

var (
	_ json.Marshaler   = (*Bytes16)(nil)
	_ json.Unmarshaler = (*Bytes16)(nil)
)

// String implements stringer
func (b Bytes16) String() string {
	return "0x" + hex.EncodeToString(b[:])
}

// AbbrevString returns abbrev string presentation.
func (b Bytes16) AbbrevString() string {
	return fmt.Sprintf("0x%x…%x", b[:4], b[12:])
}

// Bytes returns byte slice form of Bytes16.
func (b Bytes16) Bytes() []byte {
	return b[:]
}

// IsZero returns if Bytes16 has all zero bytes.
func (b Bytes16) IsZero() bool {
	return b == Bytes16{}
}

// MarshalJSON implements json.Marshaler.
func (b *Bytes16) MarshalJSON() ([]byte, error) {
	if b == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(b.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes16) UnmarshalJSON(data []byte) error {
	var hex string
	if err := json.Unmarshal(data, &hex); err != nil {
		return err
	}
	parsed, err := ParseBytes16(hex)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBytes16 convert string presented into Bytes16 type.
// Both bare hex and 0x prefixed forms are accepted, as well as the
// canonical dashed UUID form clients tend to send.
func ParseBytes16(s string) (Bytes16, error) {
	if strings.Count(s, "-") == 4 {
		if id := uuid.Parse(s); id != nil {
			var b Bytes16
			copy(b[:], id)
			return b, nil
		}
		return Bytes16{}, errors.New("invalid uuid form")
	}
	if len(s) == 16*2 {
	} else if len(s) == 16*2+2 {
		if strings.ToLower(s[:2]) != "0x" {
			return Bytes16{}, errors.New("invalid prefix")
		}
		s = s[2:]
	} else {
		return Bytes16{}, errors.New("invalid length")
	}

	var b Bytes16
	_, err := hex.Decode(b[:], []byte(s))
	if err != nil {
		return Bytes16{}, err
	}
	return b, nil
}

// MustParseBytes16 convert string presented into Bytes16 type, panic on error.
func MustParseBytes16(s string) Bytes16 {
	b16, err := ParseBytes16(s)
	if err != nil {
		panic(err)
	}
	return b16
}

// BytesToBytes16 converts bytes slice into Bytes16.
// If b is larger than Bytes16 length, b will be cropped (from the left).
// If b is smaller than Bytes16 length, b will be extended (from the left).
func BytesToBytes16(b []byte) Bytes16 {
	var b16 Bytes16
	if len(b) > len(b16) {
		b = b[len(b)-len(b16):]
	}
	copy(b16[len(b16)-len(b):], b)
	return b16
}

// NewBytes16 generates a random identifier from the process RNG.
func NewBytes16() Bytes16 {
	var b Bytes16
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return b
}
