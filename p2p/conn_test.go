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

package p2p

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe() (*Conn, *Conn) {
	a, b := net.Pipe()
	return NewConn(a), NewConn(b)
}

func TestVariableFrameRoundTrip(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = a.SendVariable(TagNewTransaction, []byte("payload-bytes"))
	}()

	f, err := b.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, TagNewTransaction, f.Tag)
	assert.Equal(t, []byte("payload-bytes"), f.Body)
}

func TestFixedFrameRoundTrip(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = a.SendFixed(TagNewDifficulty, []byte{0x00, 0x05})
	}()

	f, err := b.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, TagNewDifficulty, f.Tag)
	assert.Equal(t, []byte{0x00, 0x05}, f.Body)
}

func TestBareFrameRoundTrip(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	go func() { _ = a.SendBare(TagAck) }()

	f, err := b.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, TagAck, f.Tag)
	assert.Empty(t, f.Body)
}

func TestGetImageReplyFound(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	go func() { _ = a.SendRaw([]byte("hello")) }()

	data, found, err := b.ReadImageReply()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), data)
}

func TestGetImageReplyMiss(t *testing.T) {
	a, b := pipe()
	defer a.Close()
	defer b.Close()

	go func() { _ = a.SendBare(TagFailure) }()

	data, found, err := b.ReadImageReply()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)
}

func TestClientHelloRoundTrip(t *testing.T) {
	h := ClientHello{UserID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Username: "alice", ListenPort: 9000}
	got, err := DecodeClientHello(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestTrackerHelloNew(t *testing.T) {
	got, err := DecodeTrackerHello([]byte(TrackerHelloNew))
	require.NoError(t, err)
	assert.True(t, got.IsNew)
}

func TestTrackerHelloExisting(t *testing.T) {
	h := TrackerHello{UserID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Username: "alice"}
	got, err := DecodeTrackerHello(h.Encode())
	require.NoError(t, err)
	assert.False(t, got.IsNew)
	assert.Equal(t, h.UserID, got.UserID)
	assert.Equal(t, h.Username, got.Username)
}

func TestPeerTableRoundTrip(t *testing.T) {
	entries := []PeerTableEntry{
		{IP: net.IPv4(127, 0, 0, 1), Port: 9001, UserID: "u1", Username: "alice"},
		{IP: net.IPv4(192, 168, 1, 2), Port: 9002, UserID: "u2", Username: "bob"},
	}
	got, err := DecodePeerTable(EncodePeerTable(entries))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, "alice", got[0].Username)
	assert.True(t, got[1].IP.Equal(net.IPv4(192, 168, 1, 2)))
}
