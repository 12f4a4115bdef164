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

// Package merkle implements the layered hash accumulator over transaction
// hashes described in §3/§4.1 of the design: layer 0 is the ordered list of
// leaf hashes, each further layer pairs adjacent elements (duplicating the
// last one on an odd count) and hashes the concatenation of their lowercase
// hex bytes with SHA-256, until a single root remains.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// emptyRoot is SHA-256 of the empty byte string, the root of an empty
// transaction list. This exact value is observable on the wire and must be
// preserved.
var emptyRoot = hashHex(nil)

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Root computes the Merkle root over an ordered list of leaf hashes. An
// empty list yields SHA-256(""); a single leaf h yields SHA-256(h || h),
// since at least one pairing layer is always built.
func Root(leaves []string) string {
	if len(leaves) == 0 {
		return emptyRoot
	}
	layer := make([]string, len(leaves))
	copy(layer, leaves)
	for {
		layer = nextLayer(layer)
		if len(layer) == 1 {
			return layer[0]
		}
	}
}

// nextLayer pairs adjacent elements, duplicating the last one if the count
// is odd, and hashes the ASCII concatenation of each pair.
func nextLayer(layer []string) []string {
	if len(layer)%2 == 1 {
		layer = append(layer, layer[len(layer)-1])
	}
	out := make([]string, 0, len(layer)/2)
	for i := 0; i < len(layer); i += 2 {
		out = append(out, hashHex([]byte(layer[i]+layer[i+1])))
	}
	return out
}

// Accumulator holds the ordered leaf list and its current root,
// recomputing the root on every Append. Append is specified to rebuild from
// layer 0 rather than update incrementally, but must produce the same root
// as Root(leaves ++ [hash]).
type Accumulator struct {
	leaves []string
	root   string
}

// New builds an accumulator over the given ordered leaf hashes.
func New(leaves []string) *Accumulator {
	a := &Accumulator{leaves: append([]string(nil), leaves...)}
	a.root = Root(a.leaves)
	return a
}

// Append adds a leaf hash and rebuilds the root.
func (a *Accumulator) Append(hash string) string {
	a.leaves = append(a.leaves, hash)
	a.root = Root(a.leaves)
	return a.root
}

// RootHash returns the current root without rebuilding.
func (a *Accumulator) RootHash() string { return a.root }

// Leaves returns the accumulator's leaf hashes in order.
func (a *Accumulator) Leaves() []string { return append([]string(nil), a.leaves...) }
