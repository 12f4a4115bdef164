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

// Command tracker is the minimal reference implementation of the peer
// rendezvous directory described in §4.7/§1: it remembers every address
// currently connected to it, hands each connecting node the current peer
// table, and drops an entry the instant its keep-alive read returns.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"gopkg.in/urfave/cli.v1"

	"github.com/klaytn/picturechain/internal/log"
	"github.com/klaytn/picturechain/p2p"
)

var logger = log.NewModuleLogger("tracker-srv")

// registryEntry is everything the tracker remembers about one address.
type registryEntry struct {
	UserID   string
	Username string
	Port     uint16
}

// registry is the tracker's entire state: an in-memory map from "ip:port"
// to identity, guarded by a single mutex (§4.7 makes no durability
// requirement on the tracker).
type registry struct {
	mu      sync.Mutex
	byAddr  map[string]registryEntry
}

func newRegistry() *registry {
	return &registry{byAddr: make(map[string]registryEntry)}
}

func (r *registry) lookup(addr string) (registryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byAddr[addr]
	return e, ok
}

func (r *registry) put(addr string, e registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddr[addr] = e
}

func (r *registry) remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byAddr, addr)
}

func (r *registry) table(except string) []p2p.PeerTableEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]p2p.PeerTableEntry, 0, len(r.byAddr))
	for addr, e := range r.byAddr {
		if addr == except {
			continue
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			continue
		}
		ip := net.ParseIP(host).To4()
		if ip == nil {
			continue
		}
		out = append(out, p2p.PeerTableEntry{IP: ip, Port: e.Port, UserID: e.UserID, Username: e.Username})
	}
	return out
}

func main() {
	app := cli.NewApp()
	app.Name = "tracker"
	app.Usage = "peer rendezvous directory for a picturechain network"
	app.ArgsUsage = "<port>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "debug", Usage: "enable verbose logging"},
	}
	app.Action = func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("usage: tracker <port>", 1)
		}
		log.SetDebug(c.Bool("debug"))
		return run(c.Args().First())
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(port string) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info("tracker listening", "port", port)

	reg := newRegistry()
	for {
		conn, err := l.Accept()
		if err != nil {
			logger.Warn("accept error", "err", err)
			continue
		}
		go serve(reg, conn)
	}
}

// serve runs one client's handshake, replies with its identity (NEW or an
// already-known one) and the current peer table, then blocks on a
// keep-alive read until the client departs.
func serve(reg *registry, conn net.Conn) {
	defer conn.Close()
	addr := conn.RemoteAddr().String()

	existing, known := reg.lookup(addr)

	var hello p2p.TrackerHello
	if known {
		hello = p2p.TrackerHello{UserID: existing.UserID, Username: existing.Username}
	} else {
		hello = p2p.TrackerHello{IsNew: true}
	}
	if _, err := conn.Write(hello.Encode()); err != nil {
		logger.Warn("sending tracker hello failed", "addr", addr, "err", err)
		return
	}

	clientHelloBuf := make([]byte, p2p.ClientHelloSize)
	if _, err := io.ReadFull(conn, clientHelloBuf); err != nil {
		logger.Warn("reading client hello failed", "addr", addr, "err", err)
		return
	}
	clientHello, err := p2p.DecodeClientHello(clientHelloBuf)
	if err != nil {
		logger.Warn("malformed client hello", "addr", addr, "err", err)
		return
	}

	// The client picks its own user id when the tracker doesn't already know
	// it (§4.7: the tracker's "NEW" hello is a request for the client to
	// self-identify, not an assignment).
	if !known {
		existing = registryEntry{UserID: clientHello.UserID, Username: clientHello.Username, Port: clientHello.ListenPort}
	} else {
		existing.Port = clientHello.ListenPort
	}
	reg.put(addr, existing)
	defer reg.remove(addr)

	table := reg.table(addr)
	if _, err := conn.Write(p2p.EncodePeerTable(table)); err != nil {
		logger.Warn("sending peer table failed", "addr", addr, "err", err)
		return
	}

	logger.Info("peer joined", "addr", addr, "user_id", existing.UserID, "peers", len(table))

	// Keep-alive: block until the client's connection yields EOF.
	buf := make([]byte, 1)
	_, _ = conn.Read(buf)
	logger.Info("peer departed", "addr", addr, "user_id", existing.UserID)
}
