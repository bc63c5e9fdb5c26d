package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/fleetledger/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// The BST comparator treats "less" as "ranks earlier", so an in-order
// traversal yields the ranking from best to worst. Heap priorities are
// random, which keeps the expected depth logarithmic.

const defaultMaxTopN = 1000

// cents holds earnings in fixed point so equal totals compare equal.
type cents int64

func toCents(x float64) cents { return cents(math.Round(x * 100)) }

func (c cents) float() float64 { return float64(c) / 100 }

type node struct {
	id    string
	score cents
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) ranks before (bScore, bID).
func less(aScore cents, aID string, bScore cents, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score cents, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score cents) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		// Rotate the higher-priority child up until n is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns the number of nodes with a strictly higher score.
func countAbove(n *node, score cents) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{DriverID: n.id, Earnings: n.score.float()})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore is an in-memory ranking. Safe for concurrent use.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byID    map[string]cents
	maxTopN int
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:    make(map[string]cents),
		maxTopN: defaultMaxTopN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set implements Store.Set in O(log n) expected time.
func (s *TreapStore) Set(_ context.Context, driverID string, earnings float64) error {
	if math.IsNaN(earnings) || math.IsInf(earnings, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidEarnings, earnings)
	}
	score := toCents(earnings)

	s.mu.Lock()
	if old, ok := s.byID[driverID]; ok {
		if old == score {
			s.mu.Unlock()
			return nil
		}
		s.root = deleteNode(s.root, driverID, old)
	}
	s.byID[driverID] = score
	s.root = insert(s.root, driverID, score, rand.Uint64()) //nolint:gosec // heap priority only
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRankedDrivers(n)
	return nil
}

// Remove implements Store.Remove.
func (s *TreapStore) Remove(_ context.Context, driverID string) bool {
	s.mu.Lock()
	old, ok := s.byID[driverID]
	if ok {
		s.root = deleteNode(s.root, driverID, old)
		delete(s.byID, driverID)
	}
	n := len(s.byID)
	s.mu.Unlock()

	if ok {
		metrics.UpdateRankedDrivers(n)
	}
	return ok
}

// Rank returns the current rank and earnings for a driver in O(log n).
func (s *TreapStore) Rank(_ context.Context, driverID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.byID[driverID]
	if !ok {
		metrics.RecordErrorByComponent("ranking", "not_found")
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, driverID)
	}
	return Entry{
		Rank:     countAbove(s.root, score) + 1,
		DriverID: driverID,
		Earnings: score.float(),
	}, nil
}

// TopN returns the top n entries ordered by earnings desc. n above the
// configured maximum is clamped.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("ranking", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	if n > s.maxTopN {
		n = s.maxTopN
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	assignRanks(out)
	return out, nil
}

// Count returns the number of ranked drivers.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// assignRanks applies competition ranking to entries already in rank order.
// A prefix of the ranking gets the same ranks as the whole.
func assignRanks(entries []Entry) {
	for i := range entries {
		if i > 0 && entries[i].Earnings == entries[i-1].Earnings {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
