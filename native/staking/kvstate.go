package staking

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"stakehub/storage"
)

var (
	poolCountKey = []byte("staking/pools/count")
	poolPrefix   = "staking/pool/"
	stakePrefix  = "staking/stake/"
)

// KVState persists the ledger in a storage.Database using RLP encoding. It
// satisfies ledgerState so the registry and engine run unchanged against
// either backend.
type KVState struct {
	db storage.Database
}

// NewKVState wraps the provided database.
func NewKVState(db storage.Database) *KVState {
	return &KVState{db: db}
}

func poolKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", poolPrefix, id))
}

func stakeStoreKey(poolID uint64, owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%d/%x", stakePrefix, poolID, owner.Bytes()))
}

// PoolCount returns the stored pool sequence length.
func (k *KVState) PoolCount() (uint64, error) {
	raw, err := k.db.Get(poolCountKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("staking: corrupt pool counter (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (k *KVState) putPoolCount(count uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return k.db.Put(poolCountKey, buf)
}

// GetPool decodes the pool stored at id, or nil when the id was never issued.
func (k *KVState) GetPool(id uint64) (*Pool, error) {
	raw, err := k.db.Get(poolKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pool := new(Pool)
	if err := rlp.DecodeBytes(raw, pool); err != nil {
		return nil, fmt.Errorf("staking: decode pool %d: %w", id, err)
	}
	return pool.normalize(), nil
}

// PutPool encodes and stores an existing pool at its id slot.
func (k *KVState) PutPool(pool *Pool) error {
	if pool == nil {
		return nil
	}
	count, err := k.PoolCount()
	if err != nil {
		return err
	}
	if pool.ID >= count {
		return ErrPoolNotFound
	}
	return k.storePool(pool)
}

// AppendPool assigns the next sequential id, stores the pool, and advances the
// counter.
func (k *KVState) AppendPool(pool *Pool) (uint64, error) {
	count, err := k.PoolCount()
	if err != nil {
		return 0, err
	}
	copied := pool.Clone().normalize()
	copied.ID = count
	if err := k.storePool(copied); err != nil {
		return 0, err
	}
	if err := k.putPoolCount(count + 1); err != nil {
		return 0, err
	}
	return copied.ID, nil
}

func (k *KVState) storePool(pool *Pool) error {
	encoded, err := rlp.EncodeToBytes(pool.Clone().normalize())
	if err != nil {
		return fmt.Errorf("staking: encode pool %d: %w", pool.ID, err)
	}
	return k.db.Put(poolKey(pool.ID), encoded)
}

// GetStake decodes the stake record for (poolID, owner), or nil when the
// participant has never touched the pool.
func (k *KVState) GetStake(poolID uint64, owner common.Address) (*Stake, error) {
	raw, err := k.db.Get(stakeStoreKey(poolID, owner))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stake := new(Stake)
	if err := rlp.DecodeBytes(raw, stake); err != nil {
		return nil, fmt.Errorf("staking: decode stake %d/%x: %w", poolID, owner.Bytes(), err)
	}
	return stake.normalize(), nil
}

// PutStake encodes and stores the stake record keyed by pool id and owner.
func (k *KVState) PutStake(stake *Stake) error {
	if stake == nil {
		return nil
	}
	encoded, err := rlp.EncodeToBytes(stake.Clone().normalize())
	if err != nil {
		return fmt.Errorf("staking: encode stake %d/%x: %w", stake.PoolID, stake.Owner.Bytes(), err)
	}
	return k.db.Put(stakeStoreKey(stake.PoolID, stake.Owner), encoded)
}

// DeleteStake removes the stake record for (poolID, owner). Deleting an
// absent record is not an error.
func (k *KVState) DeleteStake(poolID uint64, owner common.Address) error {
	return k.db.Delete(stakeStoreKey(poolID, owner))
}
