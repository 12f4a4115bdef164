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

package node

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/klaytn/picturechain/p2p"
	"github.com/klaytn/picturechain/types"
)

// ErrDuplicateImage is returned by Mint when the content's hash already
// names an image this node knows about.
var ErrDuplicateImage = errors.New("node: image already minted")

// ErrNotOwner is returned by Transfer when the caller does not currently
// hold the image it is trying to send.
var ErrNotOwner = errors.New("node: sender does not own this image")

// Mint originates a new asset from raw content (§4.6 "local mint"):
// content_id is its SHA-256 hex digest; duplicate mints are refused; the
// content is stored locally, broadcast to peers (SIM), and recorded as a
// self-to-self transaction added to the mining candidate.
func (n *Node) Mint(content []byte) (imageID string, err error) {
	sum := sha256.Sum256(content)
	imageID = hex.EncodeToString(sum[:])

	if n.content.Has(imageID) {
		return "", ErrDuplicateImage
	}
	n.content.Put(imageID, content)

	tx := types.NewTransaction(n.self.UserID, n.self.UserID, imageID, uint64(time.Now().UnixNano()))

	n.mu.Lock()
	n.candidate.Stop()
	n.candidate.AddTransaction(tx)
	n.startMiningLocked()
	n.mu.Unlock()

	n.broadcastImage(imageID, content)
	n.broadcastTransaction(tx)

	return imageID, nil
}

// Fetch retrieves image content by id (§4.6 "local fetch" / §6 "get"): the
// local content store first, then every known peer over a throwaway
// connection, stopping at the first one that has it (mirroring
// original_source/Blockchain Implementation/Client.py's get_image, which
// shuffles its peer list and asks each in turn until one answers or all are
// exhausted). A live peer connection is already owned by its read loop
// (readPeerLoop), so this dials fresh, the same way fetchChainDump does.
func (n *Node) Fetch(imageID string) ([]byte, bool) {
	if data, ok := n.content.Get(imageID); ok {
		return data, true
	}

	n.mu.Lock()
	addrs := make([]string, 0, len(n.peers))
	for addr := range n.peers {
		addrs = append(addrs, addr)
	}
	n.mu.Unlock()

	hello := p2p.ClientHello{UserID: n.self.UserID, Username: n.self.Username, ListenPort: n.self.ListenPort}
	for _, addr := range addrs {
		data, found, err := fetchImage(hello, addr, imageID)
		if err != nil {
			logger.Warn("fetch: peer unreachable", "addr", addr, "err", err)
			continue
		}
		if found {
			n.content.Put(imageID, data)
			return data, true
		}
	}
	return nil, false
}

// Transfer sends an image this node owns to another user (§4.6 "local
// transfer"). It refuses if the chain's current-owner query does not name
// this node as owner.
func (n *Node) Transfer(imageID, receiverUserID string) error {
	owner, found := n.chainState.FindOwner(imageID)
	if !found || owner != n.self.UserID {
		return ErrNotOwner
	}

	tx := types.NewTransaction(n.self.UserID, receiverUserID, imageID, uint64(time.Now().UnixNano()))

	n.mu.Lock()
	n.candidate.Stop()
	n.candidate.AddTransaction(tx)
	n.startMiningLocked()
	n.mu.Unlock()

	n.broadcastTransaction(tx)
	return nil
}

// broadcastImage pushes newly-minted content to every peer (SIM).
func (n *Node) broadcastImage(imageID string, content []byte) {
	body := append([]byte(imageID), content...)
	n.forEachPeer(func(c *p2p.Conn) {
		if err := c.SendVariable(p2p.TagStoreImage, body); err != nil {
			n.dropPeerConn(c)
		}
	})
}

// broadcastTransaction pushes a new transaction to every peer (NTR).
func (n *Node) broadcastTransaction(tx types.Transaction) {
	n.forEachPeer(func(c *p2p.Conn) {
		if err := c.SendVariable(p2p.TagNewTransaction, tx.Encode()); err != nil {
			n.dropPeerConn(c)
		}
	})
}

// forEachPeer runs fn concurrently against a snapshot of the peer
// directory's connections.
func (n *Node) forEachPeer(fn func(*p2p.Conn)) {
	n.mu.Lock()
	conns := make([]*p2p.Conn, 0, len(n.peers))
	for _, p := range n.peers {
		conns = append(conns, p.conn)
	}
	n.mu.Unlock()

	for _, c := range conns {
		go fn(c)
	}
}
