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

package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/picturechain/types"
)

func mineBlock(t *testing.T, prevHash string, txs []types.Transaction, difficulty int) *types.Block {
	t.Helper()
	b := types.NewBlock(prevHash, txs)
	done := make(chan struct{})
	b.Mine(context.Background(), difficulty, func() { close(done) })
	<-done
	return b
}

func TestChainInvariantAfterAccepts(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		tip := c.Tip()
		b := mineBlock(t, tip.Hash(), nil, c.Difficulty())
		require.Equal(t, Accepted, c.AddBlock(b))
	}

	blocks := c.Blocks()
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].Hash(), blocks[i].PreviousHash)
	}
}

func TestForkTieBreakEarlierWins(t *testing.T) {
	c := New()
	genesis := c.Tip()

	// Mine stamps every trial with the wall clock, so the competing block is
	// mined first to give it the earlier timestamp.
	aPrime := mineBlock(t, genesis.Hash(), nil, c.Difficulty())
	a := mineBlock(t, genesis.Hash(), nil, c.Difficulty())
	for a.TimestampNs <= aPrime.TimestampNs {
		a = mineBlock(t, genesis.Hash(), nil, c.Difficulty())
	}
	require.Equal(t, Accepted, c.AddBlock(a))

	res := c.AddBlock(aPrime)
	assert.Equal(t, ForkWin, res)
	assert.Equal(t, aPrime.Hash(), c.Tip().Hash())
}

func TestForkTieBreakLaterLoses(t *testing.T) {
	c := New()
	genesis := c.Tip()

	a := mineBlock(t, genesis.Hash(), nil, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(a))

	later := mineBlock(t, genesis.Hash(), nil, c.Difficulty())
	// force a later timestamp than `a`
	for later.TimestampNs <= a.TimestampNs {
		later = mineBlock(t, genesis.Hash(), nil, c.Difficulty())
	}

	res := c.AddBlock(later)
	assert.Equal(t, Rejected, res)
	assert.Equal(t, a.Hash(), c.Tip().Hash())
}

func TestAdjustDifficultyNeedsFullWindow(t *testing.T) {
	c := New()
	for i := 0; i < AdjustmentWindow-2; i++ {
		tip := c.Tip()
		b := mineBlock(t, tip.Hash(), nil, c.Difficulty())
		require.Equal(t, Accepted, c.AddBlock(b))
	}
	changed, proposed := c.AdjustDifficulty()
	assert.False(t, changed)
	assert.Equal(t, c.Difficulty(), proposed)
}

func TestAdjustDifficultyFastBlocksIncreaseDifficulty(t *testing.T) {
	c := &Chain{difficulty: 3}
	blocks := make([]*types.Block, 0, AdjustmentWindow+1)
	blocks = append(blocks, types.Genesis(0))
	for i := 0; i < AdjustmentWindow; i++ {
		b := types.NewBlock(blocks[len(blocks)-1].Hash(), nil)
		sealImmediately(b, uint64(i+1)) // 1 ns apart
		blocks = append(blocks, b)
	}
	c.blocks = blocks

	changed, proposed := c.AdjustDifficulty()
	assert.True(t, changed)
	assert.Equal(t, 4, proposed)
}

func TestAdjustDifficultySlowBlocksDecreaseDifficulty(t *testing.T) {
	c := &Chain{difficulty: 3}
	blocks := make([]*types.Block, 0, AdjustmentWindow+1)
	blocks = append(blocks, types.Genesis(0))
	for i := 0; i < AdjustmentWindow; i++ {
		b := types.NewBlock(blocks[len(blocks)-1].Hash(), nil)
		sealImmediately(b, uint64(i+1)*100000000000) // 1e11 ns apart
		blocks = append(blocks, b)
	}
	c.blocks = blocks

	changed, proposed := c.AdjustDifficulty()
	assert.True(t, changed)
	assert.Equal(t, 2, proposed)
}

// sealImmediately mines at difficulty 0 so the block seals on its own
// goroutine, then overwrites the timestamp for deterministic test windows.
// The hash becomes stale relative to the timestamp, but AdjustDifficulty
// only reads TimestampNs, not the hash.
func sealImmediately(b *types.Block, timestampNs uint64) {
	done := make(chan struct{})
	b.Mine(context.Background(), 0, func() { close(done) })
	<-done
	b.TimestampNs = timestampNs
}

func TestFindOwnerAfterMintOnly(t *testing.T) {
	c := New()
	tx := types.NewTransaction("U", "U", "I", 1)
	b := mineBlock(t, c.Tip().Hash(), []types.Transaction{tx}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b))

	owner, ok := c.FindOwner("I")
	require.True(t, ok)
	assert.Equal(t, "U", owner)
}

func TestFindOwnerAfterTransfer(t *testing.T) {
	c := New()
	mint := types.NewTransaction("U", "U", "I", 1)
	b1 := mineBlock(t, c.Tip().Hash(), []types.Transaction{mint}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b1))

	transfer := types.NewTransaction("U", "V", "I", 2)
	b2 := mineBlock(t, c.Tip().Hash(), []types.Transaction{transfer}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b2))

	owner, ok := c.FindOwner("I")
	require.True(t, ok)
	assert.Equal(t, "V", owner)
}

func TestFindImagesOfCurrentOwnerOnly(t *testing.T) {
	c := New()
	mint := types.NewTransaction("U", "U", "I", 1)
	b1 := mineBlock(t, c.Tip().Hash(), []types.Transaction{mint}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b1))

	transfer := types.NewTransaction("U", "V", "I", 2)
	b2 := mineBlock(t, c.Tip().Hash(), []types.Transaction{transfer}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b2))

	assert.Empty(t, c.FindImagesOf("U"))
	assert.Equal(t, []string{"I"}, c.FindImagesOf("V"))
}

func TestAllImages(t *testing.T) {
	c := New()
	tx1 := types.NewTransaction("U", "U", "I1", 1)
	tx2 := types.NewTransaction("U", "U", "I2", 2)
	b := mineBlock(t, c.Tip().Hash(), []types.Transaction{tx1, tx2}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b))

	images := c.AllImages()
	assert.ElementsMatch(t, []string{"I1", "I2"}, images)
}

func TestDumpRoundTrip(t *testing.T) {
	c := New()
	tx := types.NewTransaction("U", "U", "I", 1)
	b := mineBlock(t, c.Tip().Hash(), []types.Transaction{tx}, c.Difficulty())
	require.Equal(t, Accepted, c.AddBlock(b))

	dump, err := c.EncodeDump()
	require.NoError(t, err)

	got, err := DecodeDump(dump)
	require.NoError(t, err)
	assert.Equal(t, c.Difficulty(), got.Difficulty())
	require.Equal(t, c.Len(), got.Len())

	redump, err := got.EncodeDump()
	require.NoError(t, err)
	assert.Equal(t, dump, redump)
}
