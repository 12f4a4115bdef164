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
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/klaytn/picturechain/types"
)

// EncodeDump serializes the chain to its wire form (§6 ChainDump):
// difficulty(u16) || block_count(u32) || blocks...
func (c *Chain) EncodeDump() ([]byte, error) {
	c.mu.RLock()
	difficulty := c.difficulty
	blocks := make([]*types.Block, len(c.blocks))
	copy(blocks, c.blocks)
	c.mu.RUnlock()

	buf := new(bytes.Buffer)
	var diffBuf [2]byte
	binary.BigEndian.PutUint16(diffBuf[:], uint16(difficulty))
	buf.Write(diffBuf[:])
	var cntBuf [4]byte
	binary.BigEndian.PutUint32(cntBuf[:], uint32(len(blocks)))
	buf.Write(cntBuf[:])

	for _, b := range blocks {
		wire, err := b.EncodeWire()
		if err != nil {
			return nil, errors.Wrap(err, "chain: encoding block")
		}
		buf.Write(wire)
	}
	return buf.Bytes(), nil
}

// DecodeDump parses a ChainDump into a new Chain. No block-by-block
// validation is performed here (AddBlock's rules only make sense when
// extending an existing chain one block at a time); callers that adopt a
// dump during bootstrap are trusting the peer(s) per §4.7's consensus rule.
func DecodeDump(buf []byte) (*Chain, error) {
	if len(buf) < 6 {
		return nil, errors.New("chain: dump too short")
	}
	difficulty := int(binary.BigEndian.Uint16(buf[0:2]))
	count := binary.BigEndian.Uint32(buf[2:6])
	rest := buf[6:]

	blocks := make([]*types.Block, 0, count)
	for i := uint32(0); i < count; i++ {
		b, tail, err := types.DecodeWireBlock(rest)
		if err != nil {
			return nil, errors.Wrapf(err, "chain: decoding block %d", i)
		}
		blocks = append(blocks, b)
		rest = tail
	}
	return NewFromBlocks(blocks, difficulty), nil
}
