package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakehub/core/events"
	nativecommon "stakehub/native/common"
	"stakehub/observability/metrics"
)

const moduleName = "staking"

// Bank moves stake and reward assets between participants and the module's
// custody address. The native-currency variant is selected by the sentinel
// asset identifier and settles through the same book-entry moves as any
// token, so custody always covers later withdrawals. TransferOut is an
// unconditional push whose failure aborts the operation.
type Bank interface {
	TransferIn(asset, from common.Address, amount *big.Int) error
	TransferOut(asset, to common.Address, amount *big.Int) error
	BalanceOf(asset, holder common.Address) (*big.Int, error)
}

// CollateralToken is the mintable/burnable auxiliary asset issued against
// staked principal. BurnFrom requires the holder's pre-existing authorization
// to the ledger; that authorization is an external concern.
type CollateralToken interface {
	Mint(asset, to common.Address, amount *big.Int) error
	BurnFrom(asset, holder common.Address, amount *big.Int) error
	Decimals(asset common.Address) (uint8, error)
}

// Engine is the stake ledger: deposit, withdrawal, reward settlement,
// emergency exit, and the collateral mint/burn bookkeeping. It validates
// against registry-owned pool state and commits its own mutations before any
// external transfer is issued; a failed transfer rolls the mutations back.
type Engine struct {
	state         ledgerState
	registry      *Registry
	bank          Bank
	collateral    CollateralToken
	moduleAddress common.Address
	clock         Clock
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	metrics       *metrics.StakingMetrics
}

// NewEngine constructs a stake ledger over the shared state, gated by the
// registry and settling value movements through the bank. The module address
// is the custody identity holding staked principal and the reward treasury.
func NewEngine(state ledgerState, registry *Registry, bank Bank, moduleAddr common.Address) *Engine {
	e := &Engine{
		state:         state,
		registry:      registry,
		bank:          bank,
		moduleAddress: moduleAddr,
		clock:         SystemClock{},
		emitter:       events.NoopEmitter{},
	}
	if registry != nil {
		e.pauses = registry
	}
	return e
}

// SetCollateral wires the collateral token collaborator. Required before any
// collateralized pool is used.
func (e *Engine) SetCollateral(token CollateralToken) {
	if e == nil {
		return
	}
	e.collateral = token
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock replaces the time source. Passing nil restores the system clock.
func (e *Engine) SetClock(clock Clock) {
	if e == nil {
		return
	}
	if clock == nil {
		e.clock = SystemClock{}
		return
	}
	e.clock = clock
}

// SetPauses overrides the global pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetMetrics wires operation metrics. A nil receiver on the metrics side makes
// every observation a no-op, so leaving this unset is safe.
func (e *Engine) SetMetrics(m *metrics.StakingMetrics) {
	if e == nil {
		return
	}
	e.metrics = m
}

// Stake deposits principal into a pool. For native pools the submitted value
// is the deposit and the amount argument is ignored; for token pools any
// nonzero submitted value is rejected. A prior nonzero position has its
// accrued reward settled and paid out first. Returns the collateral minted,
// zero for non-collateralized pools.
func (e *Engine) Stake(staker common.Address, poolID uint64, amount, submittedValue *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if !pool.Active {
		return nil, ErrPoolClosed
	}
	if pool.Paused {
		return nil, ErrPoolPaused
	}
	now := e.clock.Now()
	if now < pool.StartTime || now >= pool.EndTime {
		return nil, ErrOutsideWindow
	}

	var effective *big.Int
	if pool.Native {
		// Any explicit amount argument is ignored for native pools.
		effective = cloneBigInt(submittedValue)
	} else {
		if submittedValue != nil && submittedValue.Sign() != 0 {
			return nil, ErrUnexpectedValue
		}
		effective = cloneBigInt(amount)
	}
	if effective == nil || effective.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if effective.Cmp(pool.MinStakeAmount) < 0 {
		return nil, ErrBelowMinimumStake
	}

	stake, existed, err := e.ensureStake(poolID, staker)
	if err != nil {
		return nil, err
	}

	reward := big.NewInt(0)
	if stake.Amount.Sign() > 0 {
		reward = accruedReward(stake.Amount, pool.APYBasisPoints, stake.LastClaimTime, pool.StartTime, pool.EndTime, now)
		if reward.Sign() > 0 {
			if err := e.checkRewardBalance(pool, reward); err != nil {
				return nil, err
			}
		}
	}

	snap := e.snapshot(pool, stake, existed)

	if pool.Collateralized {
		if stake.Amount.Sign() > 0 {
			stake.EntryPrice = weightedEntryPrice(stake.Amount, stake.EntryPrice, effective, pool.CollateralPrice)
		} else {
			// Cost basis is the price at the moment of this deposit.
			stake.EntryPrice = cloneBigInt(pool.CollateralPrice)
		}
	}
	stake.LastClaimTime = now
	stake.StakedAt = now
	stake.Amount = new(big.Int).Add(stake.Amount, effective)
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, effective)

	minted := big.NewInt(0)
	if pool.Collateralized {
		minted = collateralAmount(effective, pool.CollateralPrice)
	}

	if err := e.commit(pool, stake); err != nil {
		return nil, err
	}

	// External calls run strictly after the state commit so a reentrant
	// invocation observes already-updated balances.
	if rewardPaid, err := e.settleDeposit(pool, staker, effective, reward, minted); err != nil {
		if rewardPaid {
			return nil, e.restoreKeepingCheckpoint(snap, now, err)
		}
		return nil, e.restore(snap, err)
	}

	if reward.Sign() > 0 {
		e.emit(events.RewardsClaimed{PoolID: poolID, Staker: staker, Paid: reward, ClaimedAt: now})
	}
	e.emit(events.Deposited{
		PoolID:      poolID,
		Staker:      staker,
		Amount:      effective,
		Minted:      minted,
		TotalStaked: cloneBigInt(pool.TotalStaked),
	})
	e.metrics.ObserveDeposit(poolID, pool.TotalStaked)
	return minted, nil
}

// settleDeposit pays any settled reward, pulls the principal into custody,
// and mints collateral, in that order. The reward payout runs first so that a
// later failure never needs to claw a payout back; once it left custody the
// claim checkpoint must stand, which the returned flag tells the caller. A
// failure after the principal transfer is compensated by returning the
// principal before the rewind.
func (e *Engine) settleDeposit(pool *Pool, staker common.Address, effective, reward, minted *big.Int) (bool, error) {
	if reward.Sign() > 0 {
		if err := e.bank.TransferOut(pool.RewardAsset, staker, reward); err != nil {
			return false, err
		}
	}
	rewardPaid := reward.Sign() > 0
	if err := e.bank.TransferIn(pool.StakeAsset, staker, effective); err != nil {
		return rewardPaid, err
	}
	if minted.Sign() > 0 {
		if e.collateral == nil {
			return rewardPaid, e.compensatePrincipalIn(pool, staker, effective, ErrNotCollateralized)
		}
		if err := e.collateral.Mint(pool.CollateralAsset, staker, minted); err != nil {
			return rewardPaid, e.compensatePrincipalIn(pool, staker, effective, err)
		}
	}
	return rewardPaid, nil
}

// compensatePrincipalIn returns pulled principal to the staker when a later
// settlement step fails, so the rewind does not strand funds in custody.
func (e *Engine) compensatePrincipalIn(pool *Pool, staker common.Address, effective *big.Int, cause error) error {
	if err := e.bank.TransferOut(pool.StakeAsset, staker, effective); err != nil {
		return fmt.Errorf("%w (compensation failed: %v)", cause, err)
	}
	return cause
}

// Withdraw returns principal through the normal path: accrued reward is
// settled first, then the requested amount leaves the pool and, for
// collateralized pools, a proportional burn at the participant's stored entry
// price is executed. Available whenever the pool allows withdrawal at all,
// regardless of the pool's active flag or time window.
func (e *Engine) Withdraw(staker common.Address, poolID uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Paused {
		return ErrPoolPaused
	}
	if !pool.CanWithdrawStake {
		return ErrWithdrawDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	stake, existed, err := e.ensureStake(poolID, staker)
	if err != nil {
		return err
	}
	if stake.Amount.Cmp(amount) < 0 {
		return ErrInsufficientStake
	}

	now := e.clock.Now()
	reward := accruedReward(stake.Amount, pool.APYBasisPoints, stake.LastClaimTime, pool.StartTime, pool.EndTime, now)
	if reward.Sign() > 0 {
		if err := e.checkRewardBalance(pool, reward); err != nil {
			return err
		}
	}

	snap := e.snapshot(pool, stake, existed)

	stake.LastClaimTime = now
	stake.Amount = new(big.Int).Sub(stake.Amount, amount)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)

	// Burn at the stored entry price, never the pool's current price: later
	// admin price changes must not touch an existing position's redemption.
	burned := big.NewInt(0)
	if pool.Collateralized {
		burned = collateralAmount(amount, stake.EntryPrice)
	}

	if err := e.commit(pool, stake); err != nil {
		return err
	}

	if rewardPaid, err := e.settleWithdraw(pool, staker, amount, reward, burned); err != nil {
		if rewardPaid {
			return e.restoreKeepingCheckpoint(snap, now, err)
		}
		return e.restore(snap, err)
	}

	if reward.Sign() > 0 {
		e.emit(events.RewardsClaimed{PoolID: poolID, Staker: staker, Paid: reward, ClaimedAt: now})
	}
	e.emit(events.Withdrawn{PoolID: poolID, Staker: staker, Amount: amount, Burned: burned})
	e.metrics.ObserveWithdrawal(poolID, false, pool.TotalStaked)
	return nil
}

// settleWithdraw pays any settled reward, burns the position's collateral, and
// pushes the principal out of custody, in that order. The reward payout runs
// first so that a later failure never needs to claw a payout back; the
// returned flag tells the caller the claim checkpoint must stand. A failure
// after the burn is compensated by re-minting before the rewind.
func (e *Engine) settleWithdraw(pool *Pool, staker common.Address, amount, reward, burned *big.Int) (bool, error) {
	if reward.Sign() > 0 {
		if err := e.bank.TransferOut(pool.RewardAsset, staker, reward); err != nil {
			return false, err
		}
	}
	rewardPaid := reward.Sign() > 0
	if burned.Sign() > 0 {
		if e.collateral == nil {
			return rewardPaid, ErrNotCollateralized
		}
		if err := e.collateral.BurnFrom(pool.CollateralAsset, staker, burned); err != nil {
			return rewardPaid, err
		}
	}
	if err := e.bank.TransferOut(pool.StakeAsset, staker, amount); err != nil {
		return rewardPaid, e.compensateBurn(pool, staker, burned, err)
	}
	return rewardPaid, nil
}

// compensateBurn re-mints burned collateral when a later settlement step
// fails, so the rewind does not leave the position under-collateralized.
func (e *Engine) compensateBurn(pool *Pool, staker common.Address, burned *big.Int, cause error) error {
	if burned.Sign() == 0 {
		return cause
	}
	if err := e.collateral.Mint(pool.CollateralAsset, staker, burned); err != nil {
		return fmt.Errorf("%w (compensation failed: %v)", cause, err)
	}
	return cause
}

// ClaimReward settles accrued reward through the current time. A zero reward
// still advances the checkpoint and is not an error, so immediate double
// claims are idempotent. Returns the amount paid.
func (e *Engine) ClaimReward(staker common.Address, poolID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Paused {
		return nil, ErrPoolPaused
	}
	stake, existed, err := e.ensureStake(poolID, staker)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	reward := accruedReward(stake.Amount, pool.APYBasisPoints, stake.LastClaimTime, pool.StartTime, pool.EndTime, now)

	snap := e.snapshot(nil, stake, existed)
	stake.LastClaimTime = now

	if reward.Sign() == 0 {
		if err := e.state.PutStake(stake); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}

	// Insufficient treasury is fatal to the claim; there is no partial payout.
	if err := e.checkRewardBalance(pool, reward); err != nil {
		return nil, err
	}
	if err := e.state.PutStake(stake); err != nil {
		return nil, err
	}
	if err := e.bank.TransferOut(pool.RewardAsset, staker, reward); err != nil {
		return nil, e.restore(snap, err)
	}

	e.emit(events.RewardsClaimed{PoolID: poolID, Staker: staker, Paid: reward, ClaimedAt: now})
	e.metrics.ObserveClaim(poolID)
	return reward, nil
}

// EmergencyWithdraw returns the participant's full principal and forfeits any
// unclaimed reward permanently. The collateral burn is the same proportional
// burn as the normal path, over the full prior amount at the stored entry
// price.
func (e *Engine) EmergencyWithdraw(staker common.Address, poolID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Paused {
		return nil, ErrPoolPaused
	}
	if !pool.CanWithdrawStake {
		return nil, ErrWithdrawDisabled
	}
	stake, existed, err := e.ensureStake(poolID, staker)
	if err != nil {
		return nil, err
	}
	if stake.Amount.Sign() == 0 {
		return nil, ErrNothingStaked
	}

	snap := e.snapshot(pool, stake, existed)

	principal := cloneBigInt(stake.Amount)
	stake.Amount = big.NewInt(0)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, principal)

	burned := big.NewInt(0)
	if pool.Collateralized {
		burned = collateralAmount(principal, stake.EntryPrice)
	}

	if err := e.commit(pool, stake); err != nil {
		return nil, err
	}

	if err := e.settleEmergency(pool, staker, principal, burned); err != nil {
		return nil, e.restore(snap, err)
	}

	e.emit(events.Withdrawn{PoolID: poolID, Staker: staker, Amount: principal, Burned: burned, Emergency: true})
	e.metrics.ObserveWithdrawal(poolID, true, pool.TotalStaked)
	return principal, nil
}

func (e *Engine) settleEmergency(pool *Pool, staker common.Address, principal, burned *big.Int) error {
	if burned.Sign() > 0 {
		if e.collateral == nil {
			return ErrNotCollateralized
		}
		if err := e.collateral.BurnFrom(pool.CollateralAsset, staker, burned); err != nil {
			return err
		}
	}
	if err := e.bank.TransferOut(pool.StakeAsset, staker, principal); err != nil {
		return e.compensateBurn(pool, staker, burned, err)
	}
	return nil
}

// DepositRewardTokens pulls reward-asset liquidity from the owner into the
// module's custody, bypassing per-pool accounting. Owner only.
func (e *Engine) DepositRewardTokens(caller, asset common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.authorizeOwner(caller); err != nil {
		return err
	}
	if asset == (common.Address{}) {
		return ErrInvalidAsset
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.bank.TransferIn(asset, caller, amount); err != nil {
		return err
	}
	e.emit(events.TreasuryMoved{Type: events.TypeRewardsFunded, Asset: asset, Target: e.moduleAddress, Amount: amount})
	return nil
}

// WithdrawRewardTokens pushes reward-asset liquidity from the module's custody
// back to the owner. Owner only.
func (e *Engine) WithdrawRewardTokens(caller, asset common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.authorizeOwner(caller); err != nil {
		return err
	}
	if asset == (common.Address{}) {
		return ErrInvalidAsset
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.bank.BalanceOf(asset, e.moduleAddress)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientRewards
	}
	if err := e.bank.TransferOut(asset, caller, amount); err != nil {
		return err
	}
	e.emit(events.TreasuryMoved{Type: events.TypeRewardsDefunded, Asset: asset, Target: caller, Amount: amount})
	return nil
}

// RecoverAsset transfers an arbitrary asset balance held by the module to the
// given recipient. An operational escape hatch, not part of the accrual
// model. Owner only.
func (e *Engine) RecoverAsset(caller, asset, to common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.authorizeOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.bank.TransferOut(asset, to, amount); err != nil {
		return err
	}
	e.emit(events.TreasuryMoved{Type: events.TypeAssetRecovered, Asset: asset, Target: to, Amount: amount})
	return nil
}

// PendingReward computes the reward a participant could claim right now.
func (e *Engine) PendingReward(staker common.Address, poolID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	stake, _, err := e.ensureStake(poolID, staker)
	if err != nil {
		return nil, err
	}
	return accruedReward(stake.Amount, pool.APYBasisPoints, stake.LastClaimTime, pool.StartTime, pool.EndTime, e.clock.Now()), nil
}

// StakeInfo returns the stored stake record together with the reward pending
// at the query instant.
func (e *Engine) StakeInfo(staker common.Address, poolID uint64) (*StakeInfo, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	stake, _, err := e.ensureStake(poolID, staker)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	return &StakeInfo{
		PoolID:        poolID,
		Owner:         staker,
		Amount:        cloneBigInt(stake.Amount),
		StakedAt:      stake.StakedAt,
		LastClaimTime: stake.LastClaimTime,
		EntryPrice:    cloneBigInt(stake.EntryPrice),
		PendingReward: accruedReward(stake.Amount, pool.APYBasisPoints, stake.LastClaimTime, pool.StartTime, pool.EndTime, now),
		ComputedAt:    now,
	}, nil
}

// RewardBalance reports the asset balance held by the module's custody address
// for payout purposes.
func (e *Engine) RewardBalance(asset common.Address) (*big.Int, error) {
	if e == nil || e.bank == nil {
		return nil, ErrNilState
	}
	return e.bank.BalanceOf(asset, e.moduleAddress)
}

func (e *Engine) authorizeOwner(caller common.Address) error {
	if e.registry == nil || caller != e.registry.Owner() {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) loadPool(poolID uint64) (*Pool, error) {
	pool, err := e.state.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool.normalize(), nil
}

// ensureStake returns the stored record, or a zero-valued one when no record
// exists yet; the second return reports which. Stake records are created
// implicitly on first reference.
func (e *Engine) ensureStake(poolID uint64, owner common.Address) (*Stake, bool, error) {
	stake, err := e.state.GetStake(poolID, owner)
	if err != nil {
		return nil, false, err
	}
	if stake == nil {
		return (&Stake{PoolID: poolID, Owner: owner}).normalize(), false, nil
	}
	return stake.normalize(), true, nil
}

func (e *Engine) checkRewardBalance(pool *Pool, reward *big.Int) error {
	balance, err := e.bank.BalanceOf(pool.RewardAsset, e.moduleAddress)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(reward) < 0 {
		return ErrInsufficientRewards
	}
	return nil
}

// ledgerSnapshot holds the pre-operation images restored when an external
// transfer fails after the state commit. stakeExisted records whether a stake
// row was stored before the operation; when it was not, rollback removes the
// row instead of writing a zero-valued one.
type ledgerSnapshot struct {
	pool         *Pool
	stake        *Stake
	stakeExisted bool
}

func (e *Engine) snapshot(pool *Pool, stake *Stake, stakeExisted bool) ledgerSnapshot {
	return ledgerSnapshot{pool: pool.Clone(), stake: stake.Clone(), stakeExisted: stakeExisted}
}

func (e *Engine) commit(pool *Pool, stake *Stake) error {
	if err := e.state.PutStake(stake); err != nil {
		return err
	}
	return e.state.PutPool(pool)
}

// restore re-puts the snapshot images and returns the external failure,
// annotated if the rollback itself could not be written.
func (e *Engine) restore(snap ledgerSnapshot, cause error) error {
	if snap.stake != nil {
		if snap.stakeExisted {
			if err := e.state.PutStake(snap.stake); err != nil {
				return fmt.Errorf("%w (rollback failed: %v)", cause, err)
			}
		} else if err := e.state.DeleteStake(snap.stake.PoolID, snap.stake.Owner); err != nil {
			return fmt.Errorf("%w (rollback failed: %v)", cause, err)
		}
	}
	if snap.pool != nil {
		if err := e.state.PutPool(snap.pool); err != nil {
			return fmt.Errorf("%w (rollback failed: %v)", cause, err)
		}
	}
	return cause
}

// restoreKeepingCheckpoint rewinds the snapshot but keeps the claim
// checkpoint at the given time. It is used when a reward payout executed
// before a later settlement step failed: the payout cannot be clawed back, so
// the rewound record must not leave that window payable again.
func (e *Engine) restoreKeepingCheckpoint(snap ledgerSnapshot, checkpoint uint64, cause error) error {
	if snap.stake != nil {
		snap.stake = snap.stake.Clone()
		snap.stake.LastClaimTime = checkpoint
		snap.stakeExisted = true
	}
	return e.restore(snap, cause)
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}
