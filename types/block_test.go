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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mineSync(t *testing.T, b *Block, difficulty int) {
	t.Helper()
	done := make(chan struct{})
	b.Mine(context.Background(), difficulty, func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mining did not seal in time")
	}
}

func TestMineDifficultyZeroSealsImmediately(t *testing.T) {
	b := NewBlock(GenesisPreviousHash, nil)
	mineSync(t, b, 0)
	assert.True(t, b.Sealed())
	assert.NotEmpty(t, b.Hash())
}

func TestMineProducesPrefixedHash(t *testing.T) {
	b := NewBlock(GenesisPreviousHash, nil)
	mineSync(t, b, 2)
	assert.True(t, strings.HasPrefix(b.Hash(), "00"))
	assert.True(t, b.VerifyHash(2))
}

func TestStopCancelsMining(t *testing.T) {
	b := NewBlock(GenesisPreviousHash, nil)
	// A difficulty this high will not seal within the test window, so a
	// successful Stop is observed by no onSealed callback firing.
	sealed := false
	b.Mine(context.Background(), 64, func() { sealed = true })
	time.Sleep(5 * time.Millisecond)
	b.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, sealed)
	assert.False(t, b.Sealed())
}

func TestWireRoundTrip(t *testing.T) {
	// Full-width ids: shorter ones are zero-padded on the wire and would not
	// decode back to the same string.
	u1, u2 := strings.Repeat("1", UserIDLen), strings.Repeat("2", UserIDLen)
	img1 := strings.Repeat("a", ImageIDLen)
	txs := []Transaction{
		NewTransaction(u1, u1, img1, 1),
		NewTransaction(u1, u2, img1, 2),
	}
	b := NewBlock(GenesisPreviousHash, txs)
	mineSync(t, b, 0)

	wire, err := b.EncodeWire()
	require.NoError(t, err)
	assert.Len(t, wire, WireHeaderSize+2*TransactionSize)

	got, rest, err := DecodeWireBlock(wire)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, b.PreviousHash, got.PreviousHash)
	assert.Equal(t, b.Hash(), got.Hash())
	assert.Equal(t, b.Nonce, got.Nonce)
	assert.Equal(t, b.Transactions, got.Transactions)
}

func TestEncodeWireRequiresSealed(t *testing.T) {
	b := NewBlock(GenesisPreviousHash, nil)
	_, err := b.EncodeWire()
	assert.Error(t, err)
}

func TestAddTransactionUpdatesMerkleRoot(t *testing.T) {
	b := NewBlock(GenesisPreviousHash, nil)
	before := b.MerkleRoot()
	b.AddTransaction(NewTransaction("u1", "u1", "img1", 1))
	after := b.MerkleRoot()
	assert.NotEqual(t, before, after)
}
