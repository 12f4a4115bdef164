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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRoundTrip(t *testing.T) {
	tx := NewTransaction(
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc",
		1234567890,
	)
	enc := tx.Encode()
	require.Len(t, enc, TransactionSize)

	got, err := DecodeTransaction(enc)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestTransactionHashDeterministic(t *testing.T) {
	tx := NewTransaction("u1", "u2", "img1", 42)
	assert.Equal(t, tx.Hash(), tx.Hash())

	other := NewTransaction("u1", "u2", "img1", 43)
	assert.NotEqual(t, tx.Hash(), other.Hash())
}

func TestTransactionIsMint(t *testing.T) {
	mint := NewTransaction("u1", "u1", "img1", 1)
	assert.True(t, mint.IsMint())

	transfer := NewTransaction("u1", "u2", "img1", 1)
	assert.False(t, transfer.IsMint())
}

func TestDecodeTransactionWrongSize(t *testing.T) {
	_, err := DecodeTransaction(make([]byte, 10))
	assert.Error(t, err)
}
