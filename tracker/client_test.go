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

package tracker

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/picturechain/p2p"
)

func pipeClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return &Client{conn: a}, b
}

func TestHandshakeNewIdentity(t *testing.T) {
	c, serverSide := pipeClient(t)
	defer c.Close()
	defer serverSide.Close()

	go func() {
		_, _ = serverSide.Write([]byte(p2p.TrackerHelloNew))
		buf := make([]byte, p2p.ClientHelloSize)
		_, _ = io.ReadFull(serverSide, buf)
	}()

	identity, err := c.Handshake(9001, func() (string, string, error) {
		return "freshly-generated-user-id-000000", "newuser", nil
	})
	require.NoError(t, err)
	assert.True(t, identity.IsNew)
	assert.Equal(t, "freshly-generated-user-id-000000", identity.UserID)
	assert.Equal(t, "newuser", identity.Username)
}

func TestHandshakeExistingIdentity(t *testing.T) {
	c, serverSide := pipeClient(t)
	defer c.Close()
	defer serverSide.Close()

	prior := p2p.TrackerHello{UserID: "returning-user-id-aaaaaaaaaaaaaa", Username: "returner"}
	go func() {
		_, _ = serverSide.Write(prior.Encode())
		buf := make([]byte, p2p.ClientHelloSize)
		_, _ = io.ReadFull(serverSide, buf)
	}()

	identity, err := c.Handshake(9002, func() (string, string, error) {
		t.Fatal("resolveIdentity must not be called for a known identity")
		return "", "", nil
	})
	require.NoError(t, err)
	assert.False(t, identity.IsNew)
	assert.Equal(t, "returning-user-id-aaaaaaaaaaaaaa", identity.UserID)
	assert.Equal(t, "returner", identity.Username)
}

func TestPeerTableRoundTrip(t *testing.T) {
	c, serverSide := pipeClient(t)
	defer c.Close()
	defer serverSide.Close()

	entries := []p2p.PeerTableEntry{
		{IP: net.IPv4(10, 0, 0, 1), Port: 9100, UserID: "u1", Username: "alice"},
	}
	go func() {
		_, _ = serverSide.Write(p2p.EncodePeerTable(entries))
	}()

	got, err := c.PeerTable()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
}

func TestKeepAliveReportsDeparture(t *testing.T) {
	c, serverSide := pipeClient(t)
	defer c.Close()

	go serverSide.Close()

	err := c.KeepAlive()
	assert.Error(t, err)
}
