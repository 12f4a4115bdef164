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
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebugHandler returns a read-only HTTP surface for operational visibility:
// /status, /peers, /images, and /metrics (Prometheus). It never accepts
// mutating requests — minting and transferring remain CLI-only (§4.6).
func (n *Node) DebugHandler() http.Handler {
	r := httprouter.New()
	r.GET("/status", n.httpStatus)
	r.GET("/peers", n.httpPeers)
	r.GET("/images", n.httpImages)
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (n *Node) httpStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]interface{}{
		"user_id":    n.self.UserID,
		"username":   n.self.Username,
		"height":     n.Chain().Len(),
		"difficulty": n.Chain().Difficulty(),
		"peers":      n.PeerCount(),
	})
}

func (n *Node) httpPeers(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	n.mu.Lock()
	addrs := make([]string, 0, len(n.peers))
	for addr := range n.peers {
		addrs = append(addrs, addr)
	}
	n.mu.Unlock()
	writeJSON(w, addrs)
}

func (n *Node) httpImages(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, n.Chain().AllImages())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
