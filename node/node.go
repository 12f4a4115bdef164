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

// Package node is the orchestrator (C6): it owns the chain, the current
// candidate block, the content store, and the peer directory, routes
// inbound messages, broadcasts outbound ones, drives the mining loop, and
// runs bootstrap consensus. This is where the system's intelligence lives
// (§4.6).
package node

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/klaytn/picturechain/chain"
	"github.com/klaytn/picturechain/content"
	"github.com/klaytn/picturechain/internal/log"
	"github.com/klaytn/picturechain/p2p"
	"github.com/klaytn/picturechain/types"
)

var logger = log.NewModuleLogger("node")

// miningPollInterval is how often the mining-poll loop wakes to check the
// running flag (§4.6/§5: ~10ms); seal completion arrives by callback.
const miningPollInterval = 10 * time.Millisecond

// acceptTimeout bounds each accept() call so the listener loop can observe
// the shutdown flag within ~2s (§5).
const acceptTimeout = 2 * time.Second

// bootstrapRetryDelay is the back-off between bootstrap consensus attempts
// when two queried peers disagree (§4.7).
const bootstrapRetryDelay = 2 * time.Second

// Identity is this node's self-identity, established during the tracker
// handshake.
type Identity struct {
	UserID     string
	Username   string
	ListenPort uint16
}

// peerRecord is one entry of the peer directory (§3): keyed by (ip, port),
// it holds the peer's announced identity and its live connection.
type peerRecord struct {
	addr string
	conn *p2p.Conn
}

// Node is the single per-process orchestrator.
type Node struct {
	self Identity

	mu         sync.Mutex // the single coarse lock guarding chain/candidate/peers (§5)
	chainState *chain.Chain
	candidate  *types.Block
	peers      map[string]*peerRecord
	diffVotes  map[int]int

	content *content.Store

	trackerAddr string

	running  *atomic.Bool
	listener net.Listener

	wg sync.WaitGroup
}

// New constructs an orchestrator around a freshly-bootstrapped chain. The
// caller is expected to have already run chain bootstrap consensus (§4.7)
// and pass its result in.
func New(self Identity, c *chain.Chain) *Node {
	n := &Node{
		self:       self,
		chainState: c,
		peers:      make(map[string]*peerRecord),
		diffVotes:  make(map[int]int),
		content:    content.NewStore(),
		running:    atomic.NewBool(false),
	}
	n.restartCandidateLocked()
	return n
}

// Listen opens the TCP listener for inbound peer connections on
// listenPort; Start runs its accept loop. It must be called before Start.
func (n *Node) Listen(listenPort uint16) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", listenPort))
	if err != nil {
		// Fatal per §7's taxonomy: listen port already in use aborts the
		// process; the caller is expected to treat this error as fatal.
		return err
	}
	n.listener = l
	return nil
}

// Start launches the listener accept loop and the mining-poll loop as
// background goroutines, and begins mining the current candidate.
func (n *Node) Start(ctx context.Context) {
	n.running.Store(true)
	n.wg.Add(2)
	go n.acceptLoop(ctx)
	go n.miningPollLoop(ctx)

	n.mu.Lock()
	n.startMiningLocked()
	n.mu.Unlock()
}

// Shutdown sets the running flag false, closes the listener and all peer
// sockets, stops the current miner, and waits for background goroutines to
// observe the shutdown within the bounded suspension points (§5).
func (n *Node) Shutdown() {
	n.running.Store(false)
	if n.listener != nil {
		_ = n.listener.Close()
	}

	n.mu.Lock()
	if n.candidate != nil {
		n.candidate.Stop()
	}
	for addr, p := range n.peers {
		_ = p.conn.Close()
		delete(n.peers, addr)
	}
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *Node) acceptLoop(ctx context.Context) {
	defer n.wg.Done()
	for n.running.Load() {
		type deadliner interface {
			SetDeadline(time.Time) error
		}
		if d, ok := n.listener.(deadliner); ok {
			_ = d.SetDeadline(time.Now().Add(acceptTimeout))
		}
		conn, err := n.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if !n.running.Load() {
				return
			}
			logger.Warn("accept error", "err", err)
			continue
		}
		n.wg.Add(1)
		go n.handleInboundPeer(ctx, conn)
	}
}

// Self returns this node's identity.
func (n *Node) Self() Identity { return n.self }

// Chain returns the underlying chain for read-only queries (images, me,
// chain dump CLI commands).
func (n *Node) Chain() *chain.Chain { return n.chainState }

// Content returns the underlying content store for read-only queries.
func (n *Node) Content() *content.Store { return n.content }

// PeerCount returns the number of peers currently in the directory.
func (n *Node) PeerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.peers)
}
