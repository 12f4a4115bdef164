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

package types

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/klaytn/picturechain/internal/log"
	"github.com/klaytn/picturechain/merkle"
)

var logger = log.NewModuleLogger("miner")

// GenesisPreviousHash is the fixed previous_hash of the genesis block B0.
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	// miningTrialsCounter mirrors the teacher's work/worker.go style of
	// registering free-standing rcrowley/go-metrics counters for hot-path
	// background activity.
	miningTrialsCounter  = metrics.NewRegisteredCounter("miner/trials", nil)
	miningSealedCounter  = metrics.NewRegisteredCounter("miner/sealed", nil)
	miningCanceledCounter = metrics.NewRegisteredCounter("miner/canceled", nil)
)

// mineTrialDelay is the per-trial back-off while mining is in flight and the
// trial did not meet difficulty (§5: mining sleeps ~10us per trial).
const mineTrialDelay = 10 * time.Microsecond

// Block is a block of transactions, sealed once mining produces a hash
// satisfying the target difficulty. The mutable fields during mining are
// {Nonce, TimestampNs, Hash, the stop flag, the miner goroutine}; once Hash
// is non-empty the block is sealed and henceforth immutable.
type Block struct {
	PreviousHash string
	TimestampNs  uint64
	Nonce        string
	Transactions []Transaction

	mu         sync.Mutex
	acc        *merkle.Accumulator
	hash       string // empty until sealed
	cancelMine context.CancelFunc
	sealedCh   chan struct{}
}

// NewBlock builds a fresh, unsealed candidate block referencing prevHash as
// its previous_hash.
func NewBlock(prevHash string, txs []Transaction) *Block {
	b := &Block{PreviousHash: prevHash}
	leaves := make([]string, len(txs))
	for i, tx := range txs {
		b.Transactions = append(b.Transactions, tx)
		leaves[i] = tx.Hash()
	}
	b.acc = merkle.New(leaves)
	return b
}

// Genesis builds the fixed genesis block B0: empty transaction list,
// previous_hash all zero, mined at a fixed low difficulty.
func Genesis(difficulty int) *Block {
	b := NewBlock(GenesisPreviousHash, nil)
	done := make(chan struct{})
	b.Mine(context.Background(), difficulty, func() { close(done) })
	<-done
	return b
}

// MerkleRoot returns the root kept consistent with Transactions after every
// append. It is not part of the wire encoding (§6 does not list it in
// BlockHeader); it exists for local bookkeeping and display only.
func (b *Block) MerkleRoot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acc.RootHash()
}

// Hash returns the sealed block hash, or "" if unsealed.
func (b *Block) Hash() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hash
}

// Sealed reports whether mining has produced a hash meeting difficulty,
// i.e. whether Hash is non-empty (§4.2 edge cases).
func (b *Block) Sealed() bool { return b.Hash() != "" }

// AddTransaction appends a transaction and recomputes the Merkle root. The
// caller (the node orchestrator) is responsible for stopping and restarting
// mining around this call, per §4.6's candidate-restart rule.
func (b *Block) AddTransaction(tx Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Transactions = append(b.Transactions, tx)
	b.acc.Append(tx.Hash())
}

// miningHeader is the 172-byte-stated (see DESIGN.md for the discrepancy
// with the actual 108-byte field list) mining input header: previous_hash
// || timestamp || nonce || trx_count, with no hash field — the hash is what
// mining is searching for.
func (b *Block) miningHeader(nonce string, timestampNs uint64) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(padString(b.PreviousHash, ImageIDLen))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], timestampNs)
	buf.Write(tsBuf[:])
	buf.WriteString(padString(nonce, NonceLen))
	var cntBuf [4]byte
	binary.BigEndian.PutUint32(cntBuf[:], uint32(len(b.Transactions)))
	buf.Write(cntBuf[:])
	return buf.Bytes()
}

func (b *Block) candidateHash(nonce string, timestampNs uint64) string {
	buf := new(bytes.Buffer)
	buf.Write(b.miningHeader(nonce, timestampNs))
	for _, tx := range b.Transactions {
		buf.Write(tx.Encode())
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func padString(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat("0", width-len(s))
}

func randomNonce() string {
	buf := make([]byte, NonceLen/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a time-derived nonce rather than panic.
		binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	}
	return hex.EncodeToString(buf)
}

// Mine starts a background search for a nonce such that the block's hash
// begins with `difficulty` ASCII '0' characters. onSealed, if non-nil, is
// invoked once (from the mining goroutine) the instant the block seals.
// Difficulty 0 succeeds on the first trial.
func (b *Block) Mine(ctx context.Context, difficulty int, onSealed func()) {
	b.mu.Lock()
	if b.hash != "" {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancelMine = cancel
	b.sealedCh = make(chan struct{})
	b.mu.Unlock()

	prefix := strings.Repeat("0", difficulty)
	go func() {
		for {
			select {
			case <-ctx.Done():
				miningCanceledCounter.Inc(1)
				return
			default:
			}

			nonce := randomNonce()
			ts := uint64(time.Now().UnixNano())
			miningTrialsCounter.Inc(1)
			h := b.candidateHash(nonce, ts)
			if strings.HasPrefix(h, prefix) {
				b.mu.Lock()
				if b.hash == "" {
					b.Nonce = nonce
					b.TimestampNs = ts
					b.hash = h
					close(b.sealedCh)
				}
				b.mu.Unlock()
				miningSealedCounter.Inc(1)
				logger.Info("block sealed", "hash", h, "difficulty", difficulty, "txs", len(b.Transactions))
				if onSealed != nil {
					onSealed()
				}
				return
			}

			select {
			case <-ctx.Done():
				miningCanceledCounter.Inc(1)
				return
			case <-time.After(mineTrialDelay):
			}
		}
	}()
}

// Stop cancels any in-flight mining search on this block. Safe to call on a
// block that was never mined or is already sealed.
func (b *Block) Stop() {
	b.mu.Lock()
	cancel := b.cancelMine
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// HashMatchesDeclared recomputes SHA-256 over the block's own serialized
// mining header and transactions and reports whether it matches the
// declared hash, independent of any difficulty requirement.
func (b *Block) HashMatchesDeclared() bool {
	b.mu.Lock()
	declared := b.hash
	nonce, ts := b.Nonce, b.TimestampNs
	b.mu.Unlock()
	if declared == "" {
		return false
	}
	return b.candidateHash(nonce, ts) == declared
}

// MeetsDifficulty reports whether the declared hash begins with the
// required number of ASCII '0' characters.
func (b *Block) MeetsDifficulty(difficulty int) bool {
	h := b.Hash()
	return h != "" && strings.HasPrefix(h, strings.Repeat("0", difficulty))
}

// VerifyHash recomputes SHA-256 over the block's mining header and
// transactions and reports whether it matches the declared hash and starts
// with the required number of zero characters.
func (b *Block) VerifyHash(difficulty int) bool {
	return b.HashMatchesDeclared() && b.MeetsDifficulty(difficulty)
}

// WireHeaderSize is the 172-byte wire header: previous_hash || timestamp ||
// hash || nonce || trx_count.
const WireHeaderSize = ImageIDLen + 8 + ImageIDLen + NonceLen + 4

// EncodeWire serializes the sealed block to its full wire form: the
// 172-byte wire header followed by trx_count * 136-byte transactions.
func (b *Block) EncodeWire() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hash == "" {
		return nil, errors.New("block: cannot encode an unsealed block")
	}
	buf := new(bytes.Buffer)
	buf.WriteString(padString(b.PreviousHash, ImageIDLen))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], b.TimestampNs)
	buf.Write(tsBuf[:])
	buf.WriteString(padString(b.hash, ImageIDLen))
	buf.WriteString(padString(b.Nonce, NonceLen))
	var cntBuf [4]byte
	binary.BigEndian.PutUint32(cntBuf[:], uint32(len(b.Transactions)))
	buf.Write(cntBuf[:])
	for _, tx := range b.Transactions {
		buf.Write(tx.Encode())
	}
	return buf.Bytes(), nil
}

// DecodeWireBlock parses a full wire-form block (header + transactions) and
// returns the remaining unread tail of buf.
func DecodeWireBlock(buf []byte) (*Block, []byte, error) {
	if len(buf) < WireHeaderSize {
		return nil, nil, errors.Errorf("block: want at least %d header bytes, got %d", WireHeaderSize, len(buf))
	}
	off := 0
	prevHash := string(buf[off : off+ImageIDLen])
	off += ImageIDLen
	ts := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	hash := string(buf[off : off+ImageIDLen])
	off += ImageIDLen
	nonce := string(buf[off : off+NonceLen])
	off += NonceLen
	count := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4

	need := int(count) * TransactionSize
	if len(buf)-off < need {
		return nil, nil, errors.Errorf("block: want %d transaction bytes, got %d", need, len(buf)-off)
	}
	txs := make([]Transaction, 0, count)
	for i := 0; i < int(count); i++ {
		tx, err := DecodeTransaction(buf[off : off+TransactionSize])
		if err != nil {
			return nil, nil, errors.Wrap(err, "block: decoding transaction")
		}
		txs = append(txs, tx)
		off += TransactionSize
	}

	b := NewBlock(prevHash, txs)
	b.TimestampNs = ts
	b.Nonce = nonce
	b.hash = hash
	return b, buf[off:], nil
}

func (b *Block) String() string {
	return fmt.Sprintf("block{hash=%s prev=%s txs=%d}", b.Hash(), b.PreviousHash, len(b.Transactions))
}
