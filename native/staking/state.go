package staking

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// registryState is the slice of persistence the pool registry needs: a dense,
// append-only pool sequence addressed by id.
type registryState interface {
	PoolCount() (uint64, error)
	GetPool(id uint64) (*Pool, error)
	PutPool(pool *Pool) error
	AppendPool(pool *Pool) (uint64, error)
}

// ledgerState extends registryState with per-(pool, participant) stake
// records. GetPool and GetStake return (nil, nil) when no record exists;
// absence is not an infrastructure error.
type ledgerState interface {
	registryState
	GetStake(poolID uint64, owner common.Address) (*Stake, error)
	PutStake(stake *Stake) error
	DeleteStake(poolID uint64, owner common.Address) error
}

// State is the full persistence surface shared by the registry and the
// engine. MemState and KVState both satisfy it.
type State interface {
	ledgerState
}

// MemState is the in-memory ledgerState used by tests and by deployments that
// accept losing state on restart. All accessors copy, so callers can never
// mutate stored records in place.
type MemState struct {
	mu     sync.RWMutex
	pools  []*Pool
	stakes map[stakeKey]*Stake
}

type stakeKey struct {
	poolID uint64
	owner  common.Address
}

// NewMemState returns an empty in-memory state.
func NewMemState() *MemState {
	return &MemState{stakes: make(map[stakeKey]*Stake)}
}

// PoolCount returns the number of pools created so far.
func (m *MemState) PoolCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.pools)), nil
}

// GetPool returns a copy of the pool with the given id, or nil when the id is
// beyond the created sequence.
func (m *MemState) GetPool(id uint64) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.pools)) {
		return nil, nil
	}
	return m.pools[id].Clone(), nil
}

// PutPool stores the pool at its id slot. The pool must already exist.
func (m *MemState) PutPool(pool *Pool) error {
	if pool == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pool.ID >= uint64(len(m.pools)) {
		return ErrPoolNotFound
	}
	m.pools[pool.ID] = pool.Clone()
	return nil
}

// AppendPool assigns the next sequential id and stores the pool.
func (m *MemState) AppendPool(pool *Pool) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uint64(len(m.pools))
	copied := pool.Clone()
	copied.ID = id
	m.pools = append(m.pools, copied)
	return id, nil
}

// GetStake returns a copy of the stake record for (poolID, owner), or nil when
// the participant has never touched the pool.
func (m *MemState) GetStake(poolID uint64, owner common.Address) (*Stake, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stakes[stakeKey{poolID, owner}]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// PutStake stores the stake record keyed by its pool id and owner.
func (m *MemState) PutStake(stake *Stake) error {
	if stake == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stakes[stakeKey{stake.PoolID, stake.Owner}] = stake.Clone()
	return nil
}

// DeleteStake removes the stake record for (poolID, owner). Deleting an
// absent record is not an error.
func (m *MemState) DeleteStake(poolID uint64, owner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stakes, stakeKey{poolID, owner})
	return nil
}
