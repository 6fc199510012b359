package nonce

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
)

// TransactionStatus represents the status of a transaction
type TransactionStatus int

const (
	// TxPending indicates transaction is pending
	TxPending TransactionStatus = iota
	// TxConfirmed indicates transaction is confirmed
	TxConfirmed
	// TxFailed indicates transaction has failed
	TxFailed
	// TxTimedOut indicates transaction has timed out
	TxTimedOut
)

func (s TransactionStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	case TxTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// TransactionRecord tracks details about a transaction
type TransactionRecord struct {
	Hash      common.Hash
	Nonce     uint64
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    TransactionStatus
}

// Source returns the node's pending nonce for an account. *ethclient.Client satisfies it.
type Source interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Manager hands out nonces for signing accounts, one at a time per account
type Manager struct {
	source Source
	// Per-account data structures
	accounts map[common.Address]*accountNonces
	// Global lock for accessing accounts map
	mu sync.Mutex
	// How long a local nonce is trusted before checking the node again
	syncInterval time.Duration
	// Transaction timeout duration
	txTimeout time.Duration
	logger    logger.Logger
	now       func() time.Time
}

// accountNonces holds nonce data for one signing account
type accountNonces struct {
	// Next nonce to hand out
	next uint64
	// Map of broadcast transactions by nonce
	pending map[uint64]*TransactionRecord
	// Nonces below next that were given back and can be handed out again
	released map[uint64]struct{}
	// Nonces whose submission timed out, unknown to be on the node until the next sync
	ambiguous map[uint64]struct{}
	// Last time nonce was synchronized with the blockchain, zero forces a sync
	lastSync time.Time
	// Account-specific mutex for nonce operations
	mu sync.Mutex
}

// NewManager creates a new nonce manager
func NewManager(source Source, log logger.Logger) *Manager {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Manager{
		source:       source,
		accounts:     make(map[common.Address]*accountNonces),
		syncInterval: 5 * time.Minute,
		txTimeout:    10 * time.Minute,
		logger:       log,
		now:          time.Now,
	}
}

// SetSyncInterval sets how long the local counter is used without asking the node
func (m *Manager) SetSyncInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncInterval = interval
}

// SetTransactionTimeout sets the timeout for transactions
func (m *Manager) SetTransactionTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txTimeout = timeout
}

func (m *Manager) account(address common.Address) *accountNonces {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.accounts[address]
	if !exists {
		data = &accountNonces{
			pending:   make(map[uint64]*TransactionRecord),
			released:  make(map[uint64]struct{}),
			ambiguous: make(map[uint64]struct{}),
		}
		m.accounts[address] = data
	}
	return data
}

// Next reserves and returns the next nonce for address. Released nonces are handed out first,
// lowest first. The node is asked on first use, after the sync interval and after any invalidation.
func (m *Manager) Next(ctx context.Context, address common.Address) (uint64, error) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	if data.lastSync.IsZero() || m.now().Sub(data.lastSync) > m.interval() {
		if err := m.syncLocked(ctx, address, data); err != nil {
			return 0, err
		}
	}

	if len(data.released) > 0 {
		nonce := lowest(data.released)
		delete(data.released, nonce)
		return nonce, nil
	}

	nonce := data.next
	data.next++
	return nonce, nil
}

// Release gives back a nonce that was reserved but never broadcast
func (m *Manager) Release(address common.Address, nonce uint64) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()
	m.releaseLocked(address, data, nonce)
}

func (m *Manager) releaseLocked(address common.Address, data *accountNonces, nonce uint64) {
	if nonce >= data.next {
		return
	}
	if data.next == nonce+1 {
		data.next = nonce
		m.logger.Debug("Released nonce %d for %s", nonce, address.Hex())
		return
	}

	m.logger.Debug("Nonce %d for %s released below next %d, kept for reuse", nonce, address.Hex(), data.next)
	data.released[nonce] = struct{}{}
}

// Invalidate forces the next reservation to sync with the node
func (m *Manager) Invalidate(address common.Address) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()
	data.lastSync = time.Time{}
}

// MarkAmbiguous records a nonce whose submission may or may not have reached the node and
// forces a sync. The sync releases it when the node's pending nonce shows it unused.
func (m *Manager) MarkAmbiguous(address common.Address, nonce uint64) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	m.logger.Notice("Nonce %d for %s has an unknown outcome, checking the node on next use", nonce, address.Hex())
	data.ambiguous[nonce] = struct{}{}
	data.lastSync = time.Time{}
}

// Observe records that nonce was used by a broadcast transaction, so later reservations start above it
func (m *Manager) Observe(address common.Address, nonce uint64) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	delete(data.released, nonce)
	delete(data.ambiguous, nonce)
	if nonce+1 > data.next {
		m.logger.Info("Advancing nonce for %s: %d -> %d", address.Hex(), data.next, nonce+1)
		data.next = nonce + 1
	}
}

// Track records a new broadcast transaction
func (m *Manager) Track(address common.Address, nonce uint64, txHash common.Hash) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	now := m.now()
	data.pending[nonce] = &TransactionRecord{
		Hash:      txHash,
		Nonce:     nonce,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    TxPending,
	}

	m.logger.Debug("Tracking transaction for %s with nonce %d: %s", address.Hex(), nonce, txHash.Hex())
}

// MarkConfirmed marks a transaction as mined and stops tracking it
func (m *Manager) MarkConfirmed(address common.Address, nonce uint64) bool {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	tx, exists := data.pending[nonce]
	if !exists {
		m.logger.Debug("No pending transaction found for %s, nonce %d", address.Hex(), nonce)
		return false
	}

	tx.Status = TxConfirmed
	tx.UpdatedAt = m.now()
	delete(data.pending, nonce)
	return true
}

// MarkFailed stops tracking a transaction that was mined with a failed status.
// Its nonce is consumed and is not reused.
func (m *Manager) MarkFailed(address common.Address, nonce uint64) bool {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	tx, exists := data.pending[nonce]
	if !exists {
		m.logger.Debug("No pending transaction found for %s, nonce %d", address.Hex(), nonce)
		return false
	}

	tx.Status = TxFailed
	tx.UpdatedAt = m.now()
	m.logger.Notice("Transaction failed for %s, nonce %d: %s", address.Hex(), nonce, tx.Hash.Hex())

	delete(data.pending, nonce)
	return true
}

// Reclaim stops tracking a transaction the node dropped and offers its nonce again.
// A resync is scheduled so a nonce the node has seen used is discarded.
func (m *Manager) Reclaim(address common.Address, nonce uint64) {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	if tx, exists := data.pending[nonce]; exists {
		m.logger.Notice("Reclaiming nonce %d for %s from %s", nonce, address.Hex(), tx.Hash.Hex())
		delete(data.pending, nonce)
	}
	m.releaseLocked(address, data, nonce)
	data.lastSync = time.Time{}
}

// FindTimedOut returns the nonces of tracked transactions older than the transaction timeout.
// They stay tracked until they are marked or reclaimed.
func (m *Manager) FindTimedOut(address common.Address) []uint64 {
	data := m.account(address)
	timeout := m.timeout()

	data.mu.Lock()
	defer data.mu.Unlock()

	now := m.now()
	var timedOut []uint64

	for nonce, tx := range data.pending {
		if now.Sub(tx.CreatedAt) <= timeout {
			continue
		}
		if tx.Status == TxPending {
			tx.Status = TxTimedOut
			tx.UpdatedAt = now
			m.logger.Notice("Transaction timed out for %s, nonce %d: %s", address.Hex(), nonce, tx.Hash.Hex())
		}
		timedOut = append(timedOut, nonce)
	}

	sort.Slice(timedOut, func(i, j int) bool { return timedOut[i] < timedOut[j] })
	return timedOut
}

// Pending returns the tracked transactions ordered by nonce
func (m *Manager) Pending(address common.Address) []TransactionRecord {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()

	records := make([]TransactionRecord, 0, len(data.pending))
	for _, tx := range data.pending {
		records = append(records, *tx)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Nonce < records[j].Nonce })
	return records
}

// PendingCount returns the number of tracked transactions
func (m *Manager) PendingCount(address common.Address) int {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()
	return len(data.pending)
}

// Sync compares the local counter with the node's pending nonce
func (m *Manager) Sync(ctx context.Context, address common.Address) error {
	data := m.account(address)

	data.mu.Lock()
	defer data.mu.Unlock()
	return m.syncLocked(ctx, address, data)
}

// syncLocked moves the counter up to the node's pending nonce. A node that is behind is
// ignored so nonces already handed out are not reused. Released nonces the node has seen
// used are dropped, ambiguous nonces it has not seen are released.
func (m *Manager) syncLocked(ctx context.Context, address common.Address, data *accountNonces) error {
	nonce, err := m.source.PendingNonceAt(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get pending nonce: %w", err)
	}

	if nonce > data.next {
		m.logger.Info("Updating nonce for %s: %d -> %d", address.Hex(), data.next, nonce)
		data.next = nonce
	}
	for released := range data.released {
		if released < nonce {
			delete(data.released, released)
		}
	}
	for ambiguous := range data.ambiguous {
		delete(data.ambiguous, ambiguous)
		if ambiguous >= nonce {
			m.logger.Info("Nonce %d for %s never reached the node, reusing it", ambiguous, address.Hex())
			m.releaseLocked(address, data, ambiguous)
		}
	}

	data.lastSync = m.now()
	return nil
}

func lowest(set map[uint64]struct{}) uint64 {
	first := true
	var min uint64
	for n := range set {
		if first || n < min {
			min = n
			first = false
		}
	}
	return min
}

func (m *Manager) interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncInterval
}

func (m *Manager) timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txTimeout
}
