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
	"time"

	"github.com/klaytn/picturechain/chain"
	"github.com/klaytn/picturechain/p2p"
	"github.com/klaytn/picturechain/types"
)

// restartCandidateLocked replaces the candidate block with a fresh, empty
// one referencing the current chain tip. Callers must hold n.mu and must
// have already stopped any prior candidate's mining.
func (n *Node) restartCandidateLocked() {
	tip := n.chainState.Tip()
	n.candidate = types.NewBlock(tip.Hash(), nil)
}

// startMiningLocked begins mining the current candidate at the chain's
// current difficulty. Callers must hold n.mu.
func (n *Node) startMiningLocked() {
	candidate := n.candidate
	candidate.Mine(context.Background(), n.chainState.Difficulty(), func() {
		n.onCandidateSealed(candidate)
	})
}

// restartMiningLocked stops whatever mining is in flight on the current
// candidate and restarts it at the current difficulty. Callers must hold
// n.mu. Mint, Transfer and handleNewTransaction do not call it: they stop
// the candidate, append their transaction, and call startMiningLocked
// themselves.
func (n *Node) restartMiningLocked() {
	if n.candidate != nil {
		n.candidate.Stop()
	}
	n.startMiningLocked()
}

// miningPollLoop stands in for §4.6's mining-loop thread. Per §9's design
// note, completion is delivered as a callback from the Block's own mining
// goroutine (onCandidateSealed) rather than by polling a shared flag across
// threads, so this loop's remaining job is the periodic heartbeat §5's
// thread inventory assigns it: observing the shutdown flag within the
// bounded suspension window.
func (n *Node) miningPollLoop(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(miningPollInterval)
	defer ticker.Stop()
	for n.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// onCandidateSealed implements §4.6's "Mining success" outbound action: try
// to add the sealed candidate to the local chain; if rejected, re-bootstrap
// (we assume we're behind); otherwise broadcast it, count per-peer send
// results, and re-bootstrap if more sends failed than succeeded. Peers'
// AOK/FLR replies are not counted. Then start a fresh candidate and run
// difficulty adjustment.
func (n *Node) onCandidateSealed(sealed *types.Block) {
	n.mu.Lock()
	if n.candidate != sealed {
		// A newer candidate superseded this one before it sealed; ignore.
		n.mu.Unlock()
		return
	}
	result := n.chainState.AddBlock(sealed)
	n.mu.Unlock()

	if result == chain.Rejected {
		logger.Warn("locally mined block rejected by our own chain, re-bootstrapping")
		n.rebootstrap()
		return
	}

	oks, fails := n.broadcastBlock(sealed)
	if fails > oks {
		logger.Warn("majority of peers rejected our block, re-bootstrapping", "oks", oks, "fails", fails)
		n.rebootstrap()
		return
	}

	if !n.running.Load() {
		return
	}

	n.mu.Lock()
	n.restartCandidateLocked()
	n.startMiningLocked()
	changed, proposed := n.chainState.AdjustDifficulty()
	n.mu.Unlock()

	if changed {
		n.chainState.SetDifficulty(proposed)
		n.broadcastDifficulty(proposed)
	}
}

// broadcastBlock sends the sealed block to every peer (§4.6). It does not
// await each peer's AOK/FLR reply inline — one goroutine per connection
// already owns reading (routing.go) — and that read loop does not act on the
// reply either: route logs AOK/FLR as an unexpected tag. So this only
// reports transport-level send success, which is what onCandidateSealed
// uses to decide whether the broadcast substantially reached the network.
func (n *Node) broadcastBlock(b *types.Block) (oks, fails int) {
	wire, err := b.EncodeWire()
	if err != nil {
		logger.Error("encoding block for broadcast", "err", err)
		return 0, 0
	}
	n.mu.Lock()
	conns := make([]*p2p.Conn, 0, len(n.peers))
	for _, p := range n.peers {
		conns = append(conns, p.conn)
	}
	n.mu.Unlock()

	type reply struct{ ok bool }
	results := make(chan reply, len(conns))
	for _, c := range conns {
		go func(c *p2p.Conn) {
			if err := c.SendVariable(p2p.TagNewBlock, wire); err != nil {
				n.dropPeerConn(c)
				results <- reply{ok: false}
				return
			}
			results <- reply{ok: true}
		}(c)
	}
	for range conns {
		r := <-results
		if r.ok {
			oks++
		} else {
			fails++
		}
	}
	return oks, fails
}

// broadcastDifficulty announces a newly-committed difficulty to all peers.
func (n *Node) broadcastDifficulty(d int) {
	body := []byte{byte(d >> 8), byte(d)}
	n.mu.Lock()
	conns := make([]*p2p.Conn, 0, len(n.peers))
	for _, p := range n.peers {
		conns = append(conns, p.conn)
	}
	n.mu.Unlock()
	for _, c := range conns {
		go func(c *p2p.Conn) {
			if err := c.SendFixed(p2p.TagNewDifficulty, body); err != nil {
				n.dropPeerConn(c)
			}
		}(c)
	}
}
