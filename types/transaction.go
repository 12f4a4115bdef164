// Copyright 2026 The picturechain Authors
// This file is part of the picturechain library.
//
// The picturechain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The picturechain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the picturechain library. If not, see <http://www.gnu.org/licenses/>.

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// Fixed widths of the hex identifiers used on the wire (§3).
const (
	UserIDLen  = 32 // 16 bytes of entropy, ASCII hex
	ImageIDLen = 64 // SHA-256 digest, ASCII hex
	NonceLen   = 32

	// TransactionSize is the fixed wire size of an encoded Transaction (§6):
	// sender[32] || receiver[32] || image_id[64] || timestamp_ns(u64).
	TransactionSize = UserIDLen + UserIDLen + ImageIDLen + 8
)

// Transaction is an immutable record of an asset's origination or transfer.
// A transaction where Sender == Receiver asserts minting; otherwise it
// asserts a transfer from Sender to Receiver.
type Transaction struct {
	Sender      string
	Receiver    string
	ImageID     string
	TimestampNs uint64
}

// NewTransaction builds a transaction with the given fields. Fields are
// immutable once constructed; Hash is a pure function of them.
func NewTransaction(sender, receiver, imageID string, timestampNs uint64) Transaction {
	return Transaction{Sender: sender, Receiver: receiver, ImageID: imageID, TimestampNs: timestampNs}
}

// IsMint reports whether this transaction originates an asset (self-transfer).
func (t Transaction) IsMint() bool { return t.Sender == t.Receiver }

// Encode serializes the transaction to its fixed 136-byte wire form.
func (t Transaction) Encode() []byte {
	buf := make([]byte, TransactionSize)
	copy(buf[0:UserIDLen], padHex(t.Sender, UserIDLen))
	copy(buf[UserIDLen:2*UserIDLen], padHex(t.Receiver, UserIDLen))
	copy(buf[2*UserIDLen:2*UserIDLen+ImageIDLen], padHex(t.ImageID, ImageIDLen))
	binary.BigEndian.PutUint64(buf[2*UserIDLen+ImageIDLen:], t.TimestampNs)
	return buf
}

// DecodeTransaction parses a 136-byte wire-form transaction.
func DecodeTransaction(buf []byte) (Transaction, error) {
	if len(buf) != TransactionSize {
		return Transaction{}, errors.Errorf("transaction: want %d bytes, got %d", TransactionSize, len(buf))
	}
	sender := string(buf[0:UserIDLen])
	receiver := string(buf[UserIDLen : 2*UserIDLen])
	imageID := string(buf[2*UserIDLen : 2*UserIDLen+ImageIDLen])
	ts := binary.BigEndian.Uint64(buf[2*UserIDLen+ImageIDLen:])
	return NewTransaction(sender, receiver, imageID, ts), nil
}

// Hash is the SHA-256 hex digest of the transaction's wire encoding.
func (t Transaction) Hash() string {
	sum := sha256.Sum256(t.Encode())
	return hex.EncodeToString(sum[:])
}

func padHex(s string, width int) []byte {
	b := []byte(s)
	if len(b) >= width {
		return b[:width]
	}
	out := make([]byte, width)
	copy(out, b)
	for i := len(b); i < width; i++ {
		out[i] = '0'
	}
	return out
}

func (t Transaction) String() string {
	return fmt.Sprintf("tx{%s -> %s, image=%s, ts=%d}", t.Sender, t.Receiver, t.ImageID, t.TimestampNs)
}
