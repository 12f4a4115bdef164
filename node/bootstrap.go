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
	"bytes"
	"context"
	"io"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/klaytn/picturechain/chain"
	"github.com/klaytn/picturechain/p2p"
	"github.com/klaytn/picturechain/tracker"
)

// Bootstrap runs the full start-up sequence (§4.7): hand shake with the
// tracker to resolve this node's identity, fetch its peer table, run chain
// bootstrap consensus against that table, and construct the orchestrator.
// The caller is still responsible for calling Listen and Start.
func Bootstrap(ctx context.Context, trackerAddr string, listenPort uint16, resolveIdentity func() (userID, username string, err error)) (*Node, *tracker.Client, error) {
	tc, err := tracker.Dial(trackerAddr)
	if err != nil {
		return nil, nil, err
	}

	identity, err := tc.Handshake(listenPort, resolveIdentity)
	if err != nil {
		_ = tc.Close()
		return nil, nil, err
	}

	peerTable, err := tc.PeerTable()
	if err != nil {
		_ = tc.Close()
		return nil, nil, err
	}

	self := Identity{UserID: identity.UserID, Username: identity.Username, ListenPort: listenPort}
	hello := p2p.ClientHello{UserID: self.UserID, Username: self.Username, ListenPort: self.ListenPort}

	c := bootstrapChain(hello, peerTable)

	n := New(self, c)
	n.trackerAddr = trackerAddr

	for _, entry := range peerTable {
		go n.connectPeer(ctx, peerTableAddr(entry))
	}

	return n, tc, nil
}

// bootstrapChain implements §4.7's chain bootstrap consensus: zero known
// peers mines a fresh genesis, one peer is trusted outright, and two or
// more requires two peers' dumps to agree byte-for-byte before either is
// adopted, retrying against a fresh pair otherwise.
func bootstrapChain(hello p2p.ClientHello, peers []p2p.PeerTableEntry) *chain.Chain {
	for {
		switch len(peers) {
		case 0:
			return chain.New()

		case 1:
			dump, err := fetchChainDump(hello, peerTableAddr(peers[0]))
			if err != nil {
				logger.Warn("bootstrap: sole peer unreachable, starting fresh chain", "err", err)
				return chain.New()
			}
			c, err := chain.DecodeDump(dump)
			if err != nil {
				logger.Warn("bootstrap: sole peer sent an undecodable dump, starting fresh chain", "err", err)
				return chain.New()
			}
			return c

		default:
			i, j := distinctPair(len(peers))
			dumpA, errA := fetchChainDump(hello, peerTableAddr(peers[i]))
			dumpB, errB := fetchChainDump(hello, peerTableAddr(peers[j]))
			if errA == nil && errB == nil && bytes.Equal(dumpA, dumpB) {
				c, err := chain.DecodeDump(dumpA)
				if err == nil {
					return c
				}
			}
			logger.Info("bootstrap: peers disagree on chain state, retrying", "peer_count", len(peers))
			time.Sleep(bootstrapRetryDelay)
		}
	}
}

// fetchChainDump opens a throwaway connection to addr, performs the peer
// handshake, requests the chain (SBC), and returns the raw dump bytes.
func fetchChainDump(hello p2p.ClientHello, addr string) ([]byte, error) {
	raw, err := net.DialTimeout("tcp", addr, acceptTimeout)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	if _, err := raw.Write(hello.Encode()); err != nil {
		return nil, err
	}
	ackBuf := make([]byte, p2p.TagLen)
	if _, err := io.ReadFull(raw, ackBuf); err != nil {
		return nil, err
	}

	conn := p2p.NewConn(raw)
	if err := conn.SendBare(p2p.TagSendBlockchain); err != nil {
		return nil, err
	}
	return conn.ReadChainDumpReply()
}

// fetchImage opens a throwaway connection to addr, performs the peer
// handshake, requests a single image by id (GIM), and returns its bytes.
// found is false when the peer replies FLR rather than image data.
func fetchImage(hello p2p.ClientHello, addr, imageID string) (data []byte, found bool, err error) {
	raw, err := net.DialTimeout("tcp", addr, acceptTimeout)
	if err != nil {
		return nil, false, err
	}
	defer raw.Close()

	if _, err := raw.Write(hello.Encode()); err != nil {
		return nil, false, err
	}
	ackBuf := make([]byte, p2p.TagLen)
	if _, err := io.ReadFull(raw, ackBuf); err != nil {
		return nil, false, err
	}

	conn := p2p.NewConn(raw)
	if err := conn.SendFixed(p2p.TagGetImage, []byte(imageID)); err != nil {
		return nil, false, err
	}
	return conn.ReadImageReply()
}

// connectPeer dials a peer-table entry, completes the outbound half of the
// handshake, and registers the resulting connection in the peer directory so
// it starts receiving broadcasts and is read for unsolicited pushes.
func (n *Node) connectPeer(ctx context.Context, addr string) {
	raw, err := net.DialTimeout("tcp", addr, acceptTimeout)
	if err != nil {
		logger.Warn("dialing peer failed", "addr", addr, "err", err)
		return
	}

	hello := p2p.ClientHello{UserID: n.self.UserID, Username: n.self.Username, ListenPort: n.self.ListenPort}
	if _, err := raw.Write(hello.Encode()); err != nil {
		_ = raw.Close()
		return
	}
	ackBuf := make([]byte, p2p.TagLen)
	if _, err := io.ReadFull(raw, ackBuf); err != nil || p2p.Tag(ackBuf) != p2p.TagAck {
		_ = raw.Close()
		return
	}

	conn := p2p.NewConn(raw)

	n.mu.Lock()
	if _, exists := n.peers[addr]; exists {
		n.mu.Unlock()
		_ = conn.Close()
		return
	}
	n.peers[addr] = &peerRecord{addr: addr, conn: conn}
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.readPeerLoop(ctx, conn, addr)
	}()
}

// rebootstrap re-runs chain bootstrap consensus against the tracker's
// current peer table (§4.7), used when a locally mined or broadcast block is
// rejected and this node assumes it has fallen behind. It deliberately opens
// fresh throwaway connections rather than reusing the live peer directory,
// whose connections are already owned by each peer's read loop.
func (n *Node) rebootstrap() {
	if n.trackerAddr == "" {
		return
	}
	tc, err := tracker.Dial(n.trackerAddr)
	if err != nil {
		logger.Warn("rebootstrap: tracker unreachable", "err", err)
		return
	}
	defer tc.Close()

	resolve := func() (string, string, error) { return n.self.UserID, n.self.Username, nil }
	if _, err := tc.Handshake(n.self.ListenPort, resolve); err != nil {
		logger.Warn("rebootstrap: tracker handshake failed", "err", err)
		return
	}
	peerTable, err := tc.PeerTable()
	if err != nil {
		logger.Warn("rebootstrap: fetching peer table failed", "err", err)
		return
	}

	hello := p2p.ClientHello{UserID: n.self.UserID, Username: n.self.Username, ListenPort: n.self.ListenPort}
	fresh := bootstrapChain(hello, peerTable)

	n.mu.Lock()
	if n.candidate != nil {
		n.candidate.Stop()
	}
	n.chainState.Replace(fresh.Blocks(), fresh.Difficulty())
	n.restartCandidateLocked()
	if n.running.Load() {
		n.startMiningLocked()
	}
	n.mu.Unlock()
}

func peerTableAddr(e p2p.PeerTableEntry) string {
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(int(e.Port)))
}

func netPortString(port uint16) string {
	return strconv.Itoa(int(port))
}

func readFullConn(conn net.Conn, buf []byte) (int, error) {
	return io.ReadFull(conn, buf)
}

// distinctPair picks two distinct indices in [0, n).
func distinctPair(n int) (int, int) {
	i := rand.Intn(n)
	j := rand.Intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}
