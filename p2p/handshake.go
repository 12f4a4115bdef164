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
	"encoding/binary"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/klaytn/picturechain/types"
)

const usernameLen = 32

// ClientHello is the {user_id, username, listen_port} tuple a node sends to
// either the tracker or a freshly dialed peer (§6).
type ClientHello struct {
	UserID     string
	Username   string
	ListenPort uint16
}

// ClientHelloSize is the wire size of a ClientHello: 32 + 32 + 2.
const ClientHelloSize = types.UserIDLen + usernameLen + 2

func (h ClientHello) Encode() []byte {
	buf := make([]byte, ClientHelloSize)
	copy(buf[0:types.UserIDLen], padASCII(h.UserID, types.UserIDLen))
	copy(buf[types.UserIDLen:types.UserIDLen+usernameLen], padASCII(h.Username, usernameLen))
	binary.BigEndian.PutUint16(buf[types.UserIDLen+usernameLen:], h.ListenPort)
	return buf
}

func DecodeClientHello(buf []byte) (ClientHello, error) {
	if len(buf) != ClientHelloSize {
		return ClientHello{}, errors.Errorf("p2p: client hello wants %d bytes, got %d", ClientHelloSize, len(buf))
	}
	return ClientHello{
		UserID:     trimPad(buf[0:types.UserIDLen]),
		Username:   trimPad(buf[types.UserIDLen : types.UserIDLen+usernameLen]),
		ListenPort: binary.BigEndian.Uint16(buf[types.UserIDLen+usernameLen:]),
	}, nil
}

// TrackerHelloNew is the literal "NEW" sent by the tracker to a client it
// does not already know.
const TrackerHelloNew = "NEW"

// TrackerHello is the tracker's reply to a connecting client: either "NEW"
// or a prior {user_id, username} identity record.
type TrackerHello struct {
	IsNew    bool
	UserID   string
	Username string
}

func (h TrackerHello) Encode() []byte {
	if h.IsNew {
		return []byte(TrackerHelloNew)
	}
	buf := make([]byte, types.UserIDLen+usernameLen)
	copy(buf[0:types.UserIDLen], padASCII(h.UserID, types.UserIDLen))
	copy(buf[types.UserIDLen:], padASCII(h.Username, usernameLen))
	return buf
}

func DecodeTrackerHello(buf []byte) (TrackerHello, error) {
	if len(buf) == len(TrackerHelloNew) && string(buf) == TrackerHelloNew {
		return TrackerHello{IsNew: true}, nil
	}
	if len(buf) != types.UserIDLen+usernameLen {
		return TrackerHello{}, errors.Errorf("p2p: tracker hello wants %d or %d bytes, got %d",
			len(TrackerHelloNew), types.UserIDLen+usernameLen, len(buf))
	}
	return TrackerHello{
		UserID:   trimPad(buf[0:types.UserIDLen]),
		Username: trimPad(buf[types.UserIDLen:]),
	}, nil
}

// PeerTableEntry is one row of the peer table the tracker hands a joining
// node, preceded on the wire by a u32 count (§6).
type PeerTableEntry struct {
	IP         net.IP // IPv4
	Port       uint16
	UserID     string
	Username   string
}

// PeerTableEntrySize is the 70-byte wire size of one row.
const PeerTableEntrySize = 4 + 2 + types.UserIDLen + usernameLen

func (e PeerTableEntry) Encode() []byte {
	buf := make([]byte, PeerTableEntrySize)
	v4 := e.IP.To4()
	copy(buf[0:4], v4)
	binary.BigEndian.PutUint16(buf[4:6], e.Port)
	copy(buf[6:6+types.UserIDLen], padASCII(e.UserID, types.UserIDLen))
	copy(buf[6+types.UserIDLen:], padASCII(e.Username, usernameLen))
	return buf
}

func DecodePeerTableEntry(buf []byte) (PeerTableEntry, error) {
	if len(buf) != PeerTableEntrySize {
		return PeerTableEntry{}, errors.Errorf("p2p: peer table entry wants %d bytes, got %d", PeerTableEntrySize, len(buf))
	}
	return PeerTableEntry{
		IP:       net.IPv4(buf[0], buf[1], buf[2], buf[3]),
		Port:     binary.BigEndian.Uint16(buf[4:6]),
		UserID:   trimPad(buf[6 : 6+types.UserIDLen]),
		Username: trimPad(buf[6+types.UserIDLen:]),
	}, nil
}

// EncodePeerTable serializes a u32 count followed by each entry's 70 bytes.
func EncodePeerTable(entries []PeerTableEntry) []byte {
	buf := make([]byte, 4, 4+len(entries)*PeerTableEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(entries)))
	for _, e := range entries {
		buf = append(buf, e.Encode()...)
	}
	return buf
}

// DecodePeerTable parses a u32 count followed by that many 70-byte rows.
func DecodePeerTable(buf []byte) ([]PeerTableEntry, error) {
	if len(buf) < 4 {
		return nil, errors.New("p2p: peer table missing count")
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if len(buf) < int(count)*PeerTableEntrySize {
		return nil, errors.New("p2p: peer table truncated")
	}
	out := make([]PeerTableEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := DecodePeerTableEntry(buf[:PeerTableEntrySize])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		buf = buf[PeerTableEntrySize:]
	}
	return out, nil
}

func padASCII(s string, width int) []byte {
	b := []byte(s)
	if len(b) >= width {
		return b[:width]
	}
	out := make([]byte, width)
	copy(out, b)
	return out
}

// trimPad strips the trailing NUL padding ClientHello/TrackerHello/
// PeerTableEntry fields carry on the wire (§4.7: "username, 32B, NUL-padded").
func trimPad(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
