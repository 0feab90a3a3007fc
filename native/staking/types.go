package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the sentinel asset identifier denoting the host environment's
// native currency. It is only valid as a pool's stake asset, and only when the
// pool is flagged native.
var NativeAsset = common.Address{}

// PoolConfig carries the caller-supplied parameters for pool creation. All
// fields except APY and minimum stake are immutable once the pool exists.
type PoolConfig struct {
	StakeAsset         common.Address
	RewardAsset        common.Address
	APYBasisPoints     uint64
	DurationSeconds    uint64
	StartTime          uint64
	CanWithdrawStake   bool
	MinStakeAmount     *big.Int
	Collateralized     bool
	CollateralAsset    common.Address
	CollateralDecimals uint8
	// CollateralPrice is scaled so that collateral = amount * price / 1e18
	// regardless of either asset's decimals. Whoever sets the price owns the
	// responsibility of folding any decimal mismatch into it.
	CollateralPrice *big.Int
	Native          bool
}

// Pool is an independently configured staking program: one asset pair, one
// rate, one time window, with its own lifecycle flags and running totals.
type Pool struct {
	ID                 uint64
	StakeAsset         common.Address
	RewardAsset        common.Address
	APYBasisPoints     uint64
	DurationSeconds    uint64
	StartTime          uint64
	EndTime            uint64
	TotalStaked        *big.Int
	Paused             bool
	Active             bool
	CanWithdrawStake   bool
	MinStakeAmount     *big.Int
	Collateralized     bool
	CollateralAsset    common.Address
	CollateralDecimals uint8
	CollateralPrice    *big.Int
	Native             bool
}

// Clone returns a deep copy so stored pools never alias caller-held values.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	copied := *p
	copied.TotalStaked = cloneBigInt(p.TotalStaked)
	copied.MinStakeAmount = cloneBigInt(p.MinStakeAmount)
	copied.CollateralPrice = cloneBigInt(p.CollateralPrice)
	return &copied
}

// normalize backfills nil big.Int fields so arithmetic never trips on a
// zero-valued record loaded from storage.
func (p *Pool) normalize() *Pool {
	if p == nil {
		return nil
	}
	if p.TotalStaked == nil {
		p.TotalStaked = big.NewInt(0)
	}
	if p.MinStakeAmount == nil {
		p.MinStakeAmount = big.NewInt(0)
	}
	if p.CollateralPrice == nil {
		p.CollateralPrice = big.NewInt(0)
	}
	return p
}

// Stake is a participant's position within one pool: current principal, the
// accrual checkpoint, and the weighted-average collateral entry price.
type Stake struct {
	PoolID uint64
	Owner  common.Address
	Amount *big.Int
	// StakedAt is the timestamp of the most recent deposit.
	StakedAt uint64
	// LastClaimTime is the timestamp through which rewards have been settled.
	LastClaimTime uint64
	// EntryPrice is the quantity-weighted average collateral price across all
	// deposits made while continuously holding a nonzero amount. It is left
	// stale after a full exit; the next deposit overwrites it.
	EntryPrice *big.Int
}

// Clone returns a deep copy so stored stakes never alias caller-held values.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	copied := *s
	copied.Amount = cloneBigInt(s.Amount)
	copied.EntryPrice = cloneBigInt(s.EntryPrice)
	return &copied
}

func (s *Stake) normalize() *Stake {
	if s == nil {
		return nil
	}
	if s.Amount == nil {
		s.Amount = big.NewInt(0)
	}
	if s.EntryPrice == nil {
		s.EntryPrice = big.NewInt(0)
	}
	return s
}

// StakeInfo summarises a participant's position for account queries, pairing
// the stored record with the reward pending at the query instant.
type StakeInfo struct {
	PoolID        uint64         `json:"poolId"`
	Owner         common.Address `json:"owner"`
	Amount        *big.Int       `json:"amount"`
	StakedAt      uint64         `json:"stakedAt"`
	LastClaimTime uint64         `json:"lastClaimTime"`
	EntryPrice    *big.Int       `json:"entryPrice"`
	PendingReward *big.Int       `json:"pendingReward"`
	ComputedAt    uint64         `json:"computedAt"`
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
