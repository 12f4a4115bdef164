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

// Package p2p implements the framed message codec carried over each
// long-lived peer connection (§4.5/§6): a 3-byte ASCII tag, followed by
// either a fixed number of additional bytes or a variable run of bytes
// terminated by the 3-byte END sentinel.
package p2p

import "github.com/klaytn/picturechain/types"

// Tag is one of the 3-byte ASCII frame tags (§6). It is a sum type over
// everything that can appear as the first three bytes of a frame.
type Tag string

const (
	TagSendBlockchain Tag = "SBC" // request: send me your chain
	TagNewBlock       Tag = "NBL"
	TagNewTransaction Tag = "NTR"
	TagNewDifficulty  Tag = "NDF"
	TagStoreImage     Tag = "SIM"
	TagGetImage       Tag = "GIM"
	TagAck            Tag = "AOK"
	TagFailure        Tag = "FLR"
	TagEnd            Tag = "END"
)

// TagLen is the fixed width of every frame tag.
const TagLen = 3

// kind classifies how a tag's body is framed.
type kind int

const (
	kindBare     kind = iota // tag only, no body
	kindFixed                // tag + exactly fixedLen() more bytes
	kindVariable             // tag + bytes... + END sentinel
)

func (t Tag) kind() kind {
	switch t {
	case TagSendBlockchain, TagAck, TagFailure:
		return kindBare
	case TagNewDifficulty, TagGetImage:
		return kindFixed
	case TagNewBlock, TagNewTransaction, TagStoreImage:
		return kindVariable
	default:
		return kindVariable
	}
}

// fixedLen is the number of additional bytes a kindFixed tag's body holds.
func (t Tag) fixedLen() int {
	switch t {
	case TagNewDifficulty:
		return 2 // u16 difficulty
	case TagGetImage:
		return types.ImageIDLen // image_id[64]
	default:
		return 0
	}
}

// Frame is a single decoded inbound message.
type Frame struct {
	Tag  Tag
	Body []byte
}
