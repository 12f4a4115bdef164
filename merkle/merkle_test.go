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

package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestEmptyRoot(t *testing.T) {
	assert.Equal(t, sha(""), Root(nil))
	assert.Equal(t, sha(""), Root([]string{}))
}

func TestSingletonRoot(t *testing.T) {
	h := sha("leaf-a")
	assert.Equal(t, sha(h+h), Root([]string{h}))
}

func TestOddLayerDuplicatesLast(t *testing.T) {
	a, b, c := sha("a"), sha("b"), sha("c")
	got := Root([]string{a, b, c})
	want := Root([]string{a, b, c, c})
	assert.Equal(t, want, got)
}

func TestRootIsIdempotent(t *testing.T) {
	leaves := []string{sha("a"), sha("b"), sha("c"), sha("d")}
	assert.Equal(t, Root(leaves), Root(leaves))
}

func TestAppendMatchesRebuild(t *testing.T) {
	leaves := []string{sha("a"), sha("b"), sha("c")}
	acc := New(leaves[:2])
	got := acc.Append(leaves[2])
	assert.Equal(t, Root(leaves), got)
	assert.Equal(t, Root(leaves), acc.RootHash())
}

func TestAppendFromEmpty(t *testing.T) {
	acc := New(nil)
	assert.Equal(t, sha(""), acc.RootHash())
	h := sha("only")
	got := acc.Append(h)
	assert.Equal(t, sha(h+h), got)
}
