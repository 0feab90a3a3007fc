package staking

import (
	"math"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakehub/core/events"
)

// Clock supplies the monotonic current time, in unix seconds, that every
// operation evaluates against. The core only ever reads it.
type Clock interface {
	Now() uint64
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

// Now implements the Clock interface.
func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// Registry owns the pool set: creation, owner-gated configuration changes,
// lifecycle transitions, and the process-wide pause switch. Pool ids are a
// dense non-reused sequence starting at zero; pools are never deleted, a
// closed pool is terminal.
type Registry struct {
	state   registryState
	owner   common.Address
	clock   Clock
	emitter events.Emitter

	mu          sync.RWMutex
	globalPause bool
}

// NewRegistry creates a registry backed by the provided state, administered by
// the given owner identity.
func NewRegistry(state registryState, owner common.Address) *Registry {
	return &Registry{
		state:   state,
		owner:   owner,
		clock:   SystemClock{},
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used to broadcast registry updates.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetClock replaces the time source. Passing nil restores the system clock.
func (r *Registry) SetClock(clock Clock) {
	if clock == nil {
		r.clock = SystemClock{}
		return
	}
	r.clock = clock
}

// Owner returns the administrator identity.
func (r *Registry) Owner() common.Address { return r.owner }

// IsPaused reports the process-wide pause switch. It satisfies the
// common.PauseView interface so the engine can guard on the registry directly;
// the module argument is ignored because the switch is global.
func (r *Registry) IsPaused(string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.globalPause
}

// SetGlobalPause flips the cross-pool kill switch. Owner only.
func (r *Registry) SetGlobalPause(caller common.Address, paused bool) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	r.mu.Lock()
	r.globalPause = paused
	r.mu.Unlock()
	return nil
}

func (r *Registry) authorize(caller common.Address) error {
	if caller != r.owner {
		return ErrUnauthorized
	}
	return nil
}

// CreatePool validates the configuration and stores a new active, unpaused
// pool under the next sequential id. No state is written on rejection.
func (r *Registry) CreatePool(caller common.Address, cfg PoolConfig) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	if err := r.authorize(caller); err != nil {
		return 0, err
	}
	if cfg.Native {
		if cfg.StakeAsset != NativeAsset {
			return 0, ErrInvalidAsset
		}
	} else if cfg.StakeAsset == NativeAsset {
		return 0, ErrInvalidAsset
	}
	if cfg.RewardAsset == (common.Address{}) {
		return 0, ErrInvalidAsset
	}
	if cfg.Collateralized {
		if cfg.CollateralAsset == (common.Address{}) {
			return 0, ErrInvalidAsset
		}
		if cfg.CollateralPrice == nil || cfg.CollateralPrice.Sign() <= 0 {
			return 0, ErrInvalidPrice
		}
	}
	if cfg.APYBasisPoints == 0 {
		return 0, ErrInvalidAPY
	}
	if cfg.DurationSeconds == 0 {
		return 0, ErrInvalidDuration
	}
	if cfg.DurationSeconds > math.MaxUint64-cfg.StartTime {
		return 0, ErrInvalidDuration
	}
	if cfg.StartTime < r.clock.Now() {
		return 0, ErrInvalidStartTime
	}

	pool := (&Pool{
		StakeAsset:         cfg.StakeAsset,
		RewardAsset:        cfg.RewardAsset,
		APYBasisPoints:     cfg.APYBasisPoints,
		DurationSeconds:    cfg.DurationSeconds,
		StartTime:          cfg.StartTime,
		EndTime:            cfg.StartTime + cfg.DurationSeconds,
		TotalStaked:        big.NewInt(0),
		Active:             true,
		CanWithdrawStake:   cfg.CanWithdrawStake,
		MinStakeAmount:     cloneBigInt(cfg.MinStakeAmount),
		Collateralized:     cfg.Collateralized,
		CollateralAsset:    cfg.CollateralAsset,
		CollateralDecimals: cfg.CollateralDecimals,
		CollateralPrice:    cloneBigInt(cfg.CollateralPrice),
		Native:             cfg.Native,
	}).normalize()

	id, err := r.state.AppendPool(pool)
	if err != nil {
		return 0, err
	}
	r.emit(events.PoolCreated{
		PoolID:      id,
		StakeAsset:  pool.StakeAsset,
		RewardAsset: pool.RewardAsset,
		APYBps:      pool.APYBasisPoints,
		StartTime:   pool.StartTime,
		EndTime:     pool.EndTime,
		Native:      pool.Native,
	})
	return id, nil
}

// UpdateAPY replaces the yield rate of an active pool. Accrual already settled
// at the old rate is unaffected; only future windows use the new rate.
func (r *Registry) UpdateAPY(caller common.Address, poolID, apyBps uint64) error {
	if apyBps == 0 {
		return ErrInvalidAPY
	}
	return r.mutateActivePool(caller, poolID, events.PoolUpdated{PoolID: poolID, Field: "apyBps", NewValue: strconv.FormatUint(apyBps, 10)}, func(pool *Pool) error {
		pool.APYBasisPoints = apyBps
		return nil
	})
}

// UpdateMinStake replaces the per-deposit floor of an active pool. A nil
// minimum means no floor.
func (r *Registry) UpdateMinStake(caller common.Address, poolID uint64, minStake *big.Int) error {
	if minStake != nil && minStake.Sign() < 0 {
		return ErrInvalidAmount
	}
	value := "0"
	if minStake != nil {
		value = minStake.String()
	}
	return r.mutateActivePool(caller, poolID, events.PoolUpdated{PoolID: poolID, Field: "minStakeAmount", NewValue: value}, func(pool *Pool) error {
		pool.MinStakeAmount = cloneBigInt(minStake)
		if pool.MinStakeAmount == nil {
			pool.MinStakeAmount = big.NewInt(0)
		}
		return nil
	})
}

// Pause stops deposits and withdrawals on an active pool. Reversible.
func (r *Registry) Pause(caller common.Address, poolID uint64) error {
	return r.mutateActivePool(caller, poolID, events.PoolLifecycle{PoolID: poolID, Type: events.TypePoolPaused}, func(pool *Pool) error {
		pool.Paused = true
		return nil
	})
}

// Resume re-enables a paused active pool.
func (r *Registry) Resume(caller common.Address, poolID uint64) error {
	return r.mutateActivePool(caller, poolID, events.PoolLifecycle{PoolID: poolID, Type: events.TypePoolResumed}, func(pool *Pool) error {
		pool.Paused = false
		return nil
	})
}

// Close retires a pool permanently. A paused pool can be closed directly;
// withdrawals afterwards are governed solely by CanWithdrawStake.
func (r *Registry) Close(caller common.Address, poolID uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := r.authorize(caller); err != nil {
		return err
	}
	pool, err := r.loadPool(poolID)
	if err != nil {
		return err
	}
	pool.Active = false
	if err := r.state.PutPool(pool); err != nil {
		return err
	}
	r.emit(events.PoolLifecycle{PoolID: poolID, Type: events.TypePoolClosed})
	return nil
}

// ExtendDuration lengthens an unexpired active pool, growing duration and end
// time by the same amount.
func (r *Registry) ExtendDuration(caller common.Address, poolID, additionalSecs uint64) error {
	if additionalSecs == 0 {
		return ErrInvalidDuration
	}
	var newEnd uint64
	err := r.mutateActivePool(caller, poolID, nil, func(pool *Pool) error {
		if r.clock.Now() >= pool.EndTime {
			return ErrPoolEnded
		}
		if additionalSecs > math.MaxUint64-pool.EndTime {
			return ErrInvalidDuration
		}
		pool.DurationSeconds += additionalSecs
		pool.EndTime += additionalSecs
		newEnd = pool.EndTime
		return nil
	})
	if err != nil {
		return err
	}
	r.emit(events.PoolExtended{PoolID: poolID, AddedSecs: additionalSecs, NewEndTime: newEnd})
	return nil
}

// UpdateCollateralPrice replaces the mint price of a collateralized pool. The
// change is forward-looking only: entry prices stored on existing stakes keep
// governing their burns.
func (r *Registry) UpdateCollateralPrice(caller common.Address, poolID uint64, price *big.Int) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := r.authorize(caller); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	pool, err := r.loadPool(poolID)
	if err != nil {
		return err
	}
	if !pool.Collateralized {
		return ErrNotCollateralized
	}
	pool.CollateralPrice = cloneBigInt(price)
	if err := r.state.PutPool(pool); err != nil {
		return err
	}
	r.emit(events.PoolPriceUpdated{PoolID: poolID, NewPrice: cloneBigInt(price)})
	return nil
}

// GetPool returns a copy of the pool configuration.
func (r *Registry) GetPool(poolID uint64) (*Pool, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	return r.loadPool(poolID)
}

// PoolCount returns the number of pools ever created.
func (r *Registry) PoolCount() (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	return r.state.PoolCount()
}

// ListActivePools returns the ids of all pools still active, in id order.
func (r *Registry) ListActivePools() ([]uint64, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	count, err := r.state.PoolCount()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, count)
	for id := uint64(0); id < count; id++ {
		pool, err := r.state.GetPool(id)
		if err != nil {
			return nil, err
		}
		if pool != nil && pool.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Registry) loadPool(poolID uint64) (*Pool, error) {
	pool, err := r.state.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool.normalize(), nil
}

// mutateActivePool runs the owner-gated read-modify-write cycle shared by the
// configuration updates that require a live pool. The mutation sees a copy, so
// nothing is observable unless the final Put succeeds.
func (r *Registry) mutateActivePool(caller common.Address, poolID uint64, event events.Event, mutate func(*Pool) error) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := r.authorize(caller); err != nil {
		return err
	}
	pool, err := r.loadPool(poolID)
	if err != nil {
		return err
	}
	if !pool.Active {
		return ErrPoolClosed
	}
	if err := mutate(pool); err != nil {
		return err
	}
	if err := r.state.PutPool(pool); err != nil {
		return err
	}
	if event != nil {
		r.emit(event)
	}
	return nil
}

func (r *Registry) emit(event events.Event) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(event)
}
