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
	"context"
	"encoding/binary"
	"net"

	"github.com/klaytn/picturechain/chain"
	"github.com/klaytn/picturechain/p2p"
	"github.com/klaytn/picturechain/types"
)

// handleInboundPeer completes the inbound half of the peer handshake
// (§4.7): read the connecting peer's {user_id, username, listen_port},
// reply AOK, register the accepted socket in the peer directory (it already
// serves both directions, so no separate dial-back is needed), then run its
// read loop.
func (n *Node) handleInboundPeer(ctx context.Context, raw net.Conn) {
	defer n.wg.Done()
	conn := p2p.NewConn(raw)

	helloBuf := make([]byte, p2p.ClientHelloSize)
	if _, err := readFullConn(raw, helloBuf); err != nil {
		logger.Warn("inbound handshake failed", "err", err)
		_ = conn.Close()
		return
	}
	hello, err := p2p.DecodeClientHello(helloBuf)
	if err != nil {
		logger.Warn("inbound handshake malformed", "err", err)
		_ = conn.Close()
		return
	}
	if err := conn.SendBare(p2p.TagAck); err != nil {
		_ = conn.Close()
		return
	}

	conn.UserID = hello.UserID
	conn.Username = hello.Username
	conn.ListenPort = hello.ListenPort

	host, _, _ := net.SplitHostPort(raw.RemoteAddr().String())
	addr := net.JoinHostPort(host, netPortString(hello.ListenPort))

	n.mu.Lock()
	if old, exists := n.peers[addr]; exists {
		_ = old.conn.Close()
	}
	n.peers[addr] = &peerRecord{addr: addr, conn: conn}
	n.mu.Unlock()

	n.readPeerLoop(ctx, conn, addr)
}

// readPeerLoop is the per-peer reader thread (§5, thread inventory item 2):
// decode frames in order off one connection and route them.
func (n *Node) readPeerLoop(ctx context.Context, conn *p2p.Conn, addr string) {
	for n.running.Load() {
		f, err := conn.ReadFrame()
		if err != nil {
			n.removePeer(addr)
			return
		}
		n.route(conn, f)
	}
}

// route dispatches one decoded inbound frame per §4.6's inbound routing
// table.
func (n *Node) route(conn *p2p.Conn, f p2p.Frame) {
	switch f.Tag {
	case p2p.TagSendBlockchain:
		n.handleSendBlockchain(conn)
	case p2p.TagNewTransaction:
		n.handleNewTransaction(f.Body)
	case p2p.TagNewBlock:
		n.handleNewBlock(conn, f.Body)
	case p2p.TagStoreImage:
		n.handleStoreImage(f.Body)
	case p2p.TagGetImage:
		n.handleGetImage(conn, f.Body)
	case p2p.TagNewDifficulty:
		n.handleNewDifficulty(f.Body)
	default:
		logger.Warn("unexpected frame tag from peer", "tag", f.Tag)
	}
}

func (n *Node) handleSendBlockchain(conn *p2p.Conn) {
	dump, err := n.chainState.EncodeDump()
	if err != nil {
		logger.Error("encoding chain dump", "err", err)
		return
	}
	if err := conn.SendRaw(dump); err != nil {
		n.dropPeerConn(conn)
	}
}

func (n *Node) handleNewTransaction(body []byte) {
	tx, err := types.DecodeTransaction(body)
	if err != nil {
		logger.Warn("malformed transaction frame", "err", err)
		return
	}
	n.mu.Lock()
	n.candidate.Stop()
	n.candidate.AddTransaction(tx)
	n.startMiningLocked()
	n.mu.Unlock()
}

func (n *Node) handleNewBlock(conn *p2p.Conn, body []byte) {
	b, _, err := types.DecodeWireBlock(body)
	if err != nil {
		logger.Warn("malformed block frame", "err", err)
		_ = conn.SendBare(p2p.TagFailure)
		return
	}

	n.mu.Lock()
	result := n.chainState.AddBlock(b)
	accepted := result != chain.Rejected
	if accepted {
		n.candidate.Stop()
		n.restartCandidateLocked()
		n.startMiningLocked()
	}
	n.mu.Unlock()

	if accepted {
		if changed, proposed := n.chainState.AdjustDifficulty(); changed {
			n.chainState.SetDifficulty(proposed)
			n.broadcastDifficulty(proposed)
		}
		_ = conn.SendBare(p2p.TagAck)
	} else {
		_ = conn.SendBare(p2p.TagFailure)
	}
}

func (n *Node) handleStoreImage(body []byte) {
	if len(body) < types.ImageIDLen {
		logger.Warn("malformed image frame")
		return
	}
	imageID := string(body[:types.ImageIDLen])
	n.content.Put(imageID, body[types.ImageIDLen:])
}

func (n *Node) handleGetImage(conn *p2p.Conn, body []byte) {
	if len(body) != types.ImageIDLen {
		logger.Warn("malformed get-image frame")
		return
	}
	data, ok := n.content.Get(string(body))
	if !ok {
		_ = conn.SendBare(p2p.TagFailure)
		return
	}
	if err := conn.SendRaw(data); err != nil {
		n.dropPeerConn(conn)
	}
}

func (n *Node) handleNewDifficulty(body []byte) {
	if len(body) != 2 {
		return
	}
	proposed := int(binary.BigEndian.Uint16(body))

	n.mu.Lock()
	n.diffVotes[proposed]++
	votes := n.diffVotes[proposed]
	peerCount := len(n.peers)
	n.mu.Unlock()

	if votes > peerCount/2 {
		n.chainState.SetDifficulty(proposed)
		n.mu.Lock()
		n.diffVotes = make(map[int]int)
		n.mu.Unlock()
	}
}

// removePeer drops a peer from the directory by address, on any socket
// error (§4.5/§7 transport errors).
func (n *Node) removePeer(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.peers[addr]; ok {
		_ = p.conn.Close()
		delete(n.peers, addr)
	}
}

// dropPeerConn removes whichever directory entry owns conn.
func (n *Node) dropPeerConn(conn *p2p.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for addr, p := range n.peers {
		if p.conn == conn {
			_ = p.conn.Close()
			delete(n.peers, addr)
			return
		}
	}
}

