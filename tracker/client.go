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

// Package tracker is the client side of the rendezvous directory protocol
// (C7/§4.7). The tracker itself is an external collaborator per spec §1;
// this package only speaks its wire contract so a node can announce itself
// and retrieve the current peer table. A minimal reference server lives in
// cmd/tracker for end-to-end testing.
package tracker

import (
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/klaytn/picturechain/internal/log"
	"github.com/klaytn/picturechain/p2p"
)

var logger = log.NewModuleLogger("tracker")

// Client holds the long-lived tracker connection kept open to signal
// liveness; the tracker treats an empty read as departure (§4.7).
type Client struct {
	conn net.Conn
}

// Identity is the node's resolved identity after the tracker handshake.
type Identity struct {
	UserID   string
	Username string
	IsNew    bool
}

// Dial opens a TCP connection to the tracker.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: dial")
	}
	return &Client{conn: conn}, nil
}

// Close closes the tracker connection.
func (c *Client) Close() error { return c.conn.Close() }

// Handshake performs the full tracker handshake (§4.7): read the tracker's
// hello (either "NEW" or a prior identity), and send back
// {user_id, username, listen_port}. resolveIdentity is called only when the
// tracker does not already know this address, to obtain a freshly generated
// user id and a prompted username.
func (c *Client) Handshake(listenPort uint16, resolveIdentity func() (userID, username string, err error)) (Identity, error) {
	helloBuf := make([]byte, 64)
	if _, err := io.ReadFull(c.conn, helloBuf[:3]); err != nil {
		return Identity{}, errors.Wrap(err, "tracker: reading hello")
	}
	if string(helloBuf[:3]) == p2p.TrackerHelloNew {
		userID, username, err := resolveIdentity()
		if err != nil {
			return Identity{}, errors.Wrap(err, "tracker: resolving new identity")
		}
		if err := c.sendClientHello(userID, username, listenPort); err != nil {
			return Identity{}, err
		}
		return Identity{UserID: userID, Username: username, IsNew: true}, nil
	}

	// Not "NEW": the remaining 61 bytes complete the 64-byte identity
	// record.
	if _, err := io.ReadFull(c.conn, helloBuf[3:]); err != nil {
		return Identity{}, errors.Wrap(err, "tracker: reading identity record")
	}
	hello, err := p2p.DecodeTrackerHello(helloBuf)
	if err != nil {
		return Identity{}, err
	}
	if err := c.sendClientHello(hello.UserID, hello.Username, listenPort); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: hello.UserID, Username: hello.Username}, nil
}

func (c *Client) sendClientHello(userID, username string, listenPort uint16) error {
	hello := p2p.ClientHello{UserID: userID, Username: username, ListenPort: listenPort}
	if _, err := c.conn.Write(hello.Encode()); err != nil {
		return errors.Wrap(err, "tracker: sending client hello")
	}
	return nil
}

// PeerTable reads the peer table the tracker sends immediately after the
// handshake: a u32 count followed by that many 70-byte rows (§4.7/§6).
func (c *Client) PeerTable() ([]p2p.PeerTableEntry, error) {
	countBuf := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, countBuf); err != nil {
		return nil, errors.Wrap(err, "tracker: reading peer table count")
	}
	count := beUint32(countBuf)
	rowBuf := make([]byte, int(count)*p2p.PeerTableEntrySize)
	if _, err := io.ReadFull(c.conn, rowBuf); err != nil {
		return nil, errors.Wrap(err, "tracker: reading peer table rows")
	}
	return p2p.DecodePeerTable(append(countBuf, rowBuf...))
}

// KeepAlive blocks reading a single byte from the tracker connection; a
// clean EOF means the tracker considers us departed (§4.7). Intended to run
// in its own goroutine for the lifetime of the node.
func (c *Client) KeepAlive() error {
	buf := make([]byte, 1)
	_, err := c.conn.Read(buf)
	return err
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
