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

package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGet(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Put("id1", []byte("hello"))
	got, ok := s.Get("id1")
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
	assert.True(t, s.Has("id1"))
	assert.Equal(t, 1, s.Len())
}

func TestPutOverwrites(t *testing.T) {
	s := NewStore()
	s.Put("id1", []byte("a"))
	s.Put("id1", []byte("b"))
	got, _ := s.Get("id1")
	assert.Equal(t, []byte("b"), got)
	assert.Equal(t, 1, s.Len())
}
