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
//
// This file is derived from node/cn/peer.go's peer-connection bookkeeping
// (the teacher's known-tx/known-block LRU sets and per-peer write
// serialization), adapted from an RLPx sub-protocol peer to a bare framed
// TCP connection.

package p2p

import (
	"bufio"
	"net"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/klaytn/picturechain/internal/log"
)

var logger = log.NewModuleLogger("peer")

// knownCacheSize bounds the per-connection LRU of recently-seen hashes,
// the same role maxKnownTxs/maxKnownBlocks play in the teacher's peer.go,
// implemented here with hashicorp/golang-lru instead of a hand-rolled set.
const knownCacheSize = 4096

// Conn is a framed bidirectional channel over one peer's TCP socket (C5).
// One Conn is created per peer; it tracks the peer's announced identity and
// a bounded set of hashes recorded through MarkKnown. The node orchestrator
// neither records nor checks that set, so it does not filter broadcasts.
type Conn struct {
	netConn net.Conn
	reader  *bufio.Reader

	writeMu sync.Mutex

	UserID     string
	Username   string
	ListenPort uint16

	known *lru.Cache
}

// NewConn wraps an established TCP connection.
func NewConn(nc net.Conn) *Conn {
	known, _ := lru.New(knownCacheSize)
	return &Conn{
		netConn: nc,
		reader:  bufio.NewReader(nc),
		known:   known,
	}
}

// RemoteAddr returns the peer's remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// Close closes the underlying socket. The caller is responsible for
// removing the connection from the peer directory afterward (§4.5).
func (c *Conn) Close() error { return c.netConn.Close() }

// MarkKnown records that hash has been exchanged with this peer, so it is
// not redundantly rebroadcast.
func (c *Conn) MarkKnown(hash string) { c.known.Add(hash, struct{}{}) }

// Known reports whether hash has already been exchanged with this peer.
func (c *Conn) Known(hash string) bool { return c.known.Contains(hash) }

// send serializes writes: only one goroutine may write to the socket at a
// time (§5).
func (c *Conn) send(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.netConn.Write(b)
	return err
}

// SendBare writes a tag with no body, for AOK/FLR/SBC-as-request.
func (c *Conn) SendBare(tag Tag) error {
	return c.send([]byte(tag))
}

// SendFixed writes a tag followed by its fixed-size body (e.g. NDF, GIM
// request).
func (c *Conn) SendFixed(tag Tag, body []byte) error {
	return c.send(append([]byte(tag), body...))
}

// SendVariable writes a tag, a body, and the END sentinel (e.g. NBL, NTR,
// SIM).
func (c *Conn) SendVariable(tag Tag, body []byte) error {
	buf := append([]byte(tag), body...)
	buf = append(buf, []byte(TagEnd)...)
	return c.send(buf)
}

// SendRaw writes a body with no leading tag, followed by the END sentinel.
// Used for the SBC and successful GIM replies, which per §4.6 are sent as
// bare payloads on a connection the peer is already synchronously waiting
// on, not as independently-dispatched frames.
func (c *Conn) SendRaw(body []byte) error {
	buf := append(append([]byte(nil), body...), []byte(TagEnd)...)
	return c.send(buf)
}

// ReadFrame blocks for the next inbound frame and decodes it per its tag's
// framing kind. This is the entry point for the node orchestrator's per-peer
// reader goroutine dispatching unsolicited pushes.
func (c *Conn) ReadFrame() (Frame, error) {
	tagBuf := make([]byte, TagLen)
	if _, err := readFull(c.reader, tagBuf); err != nil {
		return Frame{}, err
	}
	tag := Tag(tagBuf)

	switch tag.kind() {
	case kindBare:
		return Frame{Tag: tag}, nil
	case kindFixed:
		body := make([]byte, tag.fixedLen())
		if _, err := readFull(c.reader, body); err != nil {
			return Frame{}, err
		}
		return Frame{Tag: tag, Body: body}, nil
	default: // kindVariable
		body, err := readUntilEnd(c.reader)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Tag: tag, Body: body}, nil
	}
}

// ReadChainDumpReply reads a bare payload up to the END sentinel, used
// after sending an SBC request (§4.6 "reply with serialized chain followed
// by END").
func (c *Conn) ReadChainDumpReply() ([]byte, error) {
	return readUntilEnd(c.reader)
}

// ReadImageReply reads the response to a GIM request: either image bytes
// followed by END, or the literal 3-byte FLR. It reports found=false for
// the FLR case.
func (c *Conn) ReadImageReply() (data []byte, found bool, err error) {
	peek, err := c.reader.Peek(TagLen)
	if err != nil {
		return nil, false, err
	}
	if Tag(peek) == TagFailure {
		if _, err := readFull(c.reader, make([]byte, TagLen)); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	body, err := readUntilEnd(c.reader)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// readFull reads exactly len(buf) bytes, as io.ReadFull would, but through
// the buffered reader so subsequent frame reads stay aligned.
func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// readUntilEnd scans byte-by-byte for the trailing END sentinel rather than
// assuming a single underlying read returns the whole frame (§4.5). This is
// lossy by design: an occurrence of the literal bytes "END" inside image
// data truncates the frame early (§9 known limitation).
func readUntilEnd(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "p2p: reading frame body")
		}
		out = append(out, b)
		if len(out) >= len(TagEnd) && string(out[len(out)-len(TagEnd):]) == string(TagEnd) {
			return out[:len(out)-len(TagEnd)], nil
		}
	}
}
