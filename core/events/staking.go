package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"stakehub/core/types"
)

const (
	// TypePoolCreated is emitted when the registry stores a new pool.
	TypePoolCreated = "staking.pool.created"
	// TypePoolUpdated captures APY or minimum-stake changes on a pool.
	TypePoolUpdated = "staking.pool.updated"
	// TypePoolPaused signals that a pool stopped accepting mutations.
	TypePoolPaused = "staking.pool.paused"
	// TypePoolResumed signals that a paused pool accepts mutations again.
	TypePoolResumed = "staking.pool.resumed"
	// TypePoolClosed marks the terminal lifecycle transition of a pool.
	TypePoolClosed = "staking.pool.closed"
	// TypePoolExtended captures a duration extension on an unexpired pool.
	TypePoolExtended = "staking.pool.extended"
	// TypePoolPriceUpdated captures a collateral price replacement.
	TypePoolPriceUpdated = "staking.pool.priceUpdated"

	// TypeDeposited captures principal entering a pool.
	TypeDeposited = "staking.deposited"
	// TypeWithdrawn captures principal leaving a pool through the normal path.
	TypeWithdrawn = "staking.withdrawn"
	// TypeEmergencyWithdrawn captures a reward-forfeiting full exit.
	TypeEmergencyWithdrawn = "staking.emergencyWithdrawn"
	// TypeRewardsClaimed captures a reward payout to a participant.
	TypeRewardsClaimed = "staking.rewardsClaimed"
	// TypeRewardsFunded captures an owner top-up of the reward treasury.
	TypeRewardsFunded = "staking.rewardsFunded"
	// TypeRewardsDefunded captures an owner drain of the reward treasury.
	TypeRewardsDefunded = "staking.rewardsDefunded"
	// TypeAssetRecovered captures an owner-level asset recovery transfer.
	TypeAssetRecovered = "staking.assetRecovered"
)

// PoolCreated captures the immutable configuration stored for a new pool.
type PoolCreated struct {
	PoolID      uint64
	StakeAsset  common.Address
	RewardAsset common.Address
	APYBps      uint64
	StartTime   uint64
	EndTime     uint64
	Native      bool
}

// EventType satisfies the Event interface.
func (PoolCreated) EventType() string { return TypePoolCreated }

// Event converts the structured payload into a broadcastable event.
func (e PoolCreated) Event() *types.Event {
	attrs := map[string]string{
		"poolId":      strconv.FormatUint(e.PoolID, 10),
		"stakeAsset":  e.StakeAsset.Hex(),
		"rewardAsset": e.RewardAsset.Hex(),
		"apyBps":      strconv.FormatUint(e.APYBps, 10),
		"startTime":   strconv.FormatUint(e.StartTime, 10),
		"endTime":     strconv.FormatUint(e.EndTime, 10),
	}
	if e.Native {
		attrs["native"] = "true"
	}
	return &types.Event{Type: TypePoolCreated, Attributes: attrs}
}

// PoolUpdated captures a mutable configuration change on an active pool.
type PoolUpdated struct {
	PoolID   uint64
	Field    string
	NewValue string
}

// EventType satisfies the Event interface.
func (PoolUpdated) EventType() string { return TypePoolUpdated }

// Event converts the structured payload into a broadcastable event.
func (e PoolUpdated) Event() *types.Event {
	attrs := map[string]string{
		"poolId": strconv.FormatUint(e.PoolID, 10),
		"field":  e.Field,
	}
	if e.NewValue != "" {
		attrs["value"] = e.NewValue
	}
	return &types.Event{Type: TypePoolUpdated, Attributes: attrs}
}

// PoolLifecycle captures pause/resume/close transitions.
type PoolLifecycle struct {
	PoolID uint64
	Type   string
}

// EventType satisfies the Event interface.
func (e PoolLifecycle) EventType() string { return e.Type }

// Event converts the structured payload into a broadcastable event.
func (e PoolLifecycle) Event() *types.Event {
	return &types.Event{Type: e.Type, Attributes: map[string]string{
		"poolId": strconv.FormatUint(e.PoolID, 10),
	}}
}

// PoolExtended captures the new timing after a duration extension.
type PoolExtended struct {
	PoolID     uint64
	AddedSecs  uint64
	NewEndTime uint64
}

// EventType satisfies the Event interface.
func (PoolExtended) EventType() string { return TypePoolExtended }

// Event converts the structured payload into a broadcastable event.
func (e PoolExtended) Event() *types.Event {
	return &types.Event{Type: TypePoolExtended, Attributes: map[string]string{
		"poolId":     strconv.FormatUint(e.PoolID, 10),
		"addedSecs":  strconv.FormatUint(e.AddedSecs, 10),
		"newEndTime": strconv.FormatUint(e.NewEndTime, 10),
	}}
}

// PoolPriceUpdated captures a collateral price replacement on a pool.
type PoolPriceUpdated struct {
	PoolID   uint64
	NewPrice *big.Int
}

// EventType satisfies the Event interface.
func (PoolPriceUpdated) EventType() string { return TypePoolPriceUpdated }

// Event converts the structured payload into a broadcastable event.
func (e PoolPriceUpdated) Event() *types.Event {
	return &types.Event{Type: TypePoolPriceUpdated, Attributes: map[string]string{
		"poolId": strconv.FormatUint(e.PoolID, 10),
		"price":  formatAmount(e.NewPrice),
	}}
}

// Deposited captures principal entering a pool, including any collateral mint.
type Deposited struct {
	PoolID      uint64
	Staker      common.Address
	Amount      *big.Int
	Minted      *big.Int
	TotalStaked *big.Int
}

// EventType satisfies the Event interface.
func (Deposited) EventType() string { return TypeDeposited }

// Event converts the structured payload into a broadcastable event.
func (e Deposited) Event() *types.Event {
	attrs := map[string]string{
		"poolId": strconv.FormatUint(e.PoolID, 10),
		"staker": e.Staker.Hex(),
		"amount": formatAmount(e.Amount),
	}
	if e.Minted != nil && e.Minted.Sign() > 0 {
		attrs["minted"] = formatAmount(e.Minted)
	}
	if e.TotalStaked != nil {
		attrs["totalStaked"] = formatAmount(e.TotalStaked)
	}
	return &types.Event{Type: TypeDeposited, Attributes: attrs}
}

// Withdrawn captures principal leaving a pool, including any collateral burn.
type Withdrawn struct {
	PoolID    uint64
	Staker    common.Address
	Amount    *big.Int
	Burned    *big.Int
	Emergency bool
}

// EventType satisfies the Event interface.
func (e Withdrawn) EventType() string {
	if e.Emergency {
		return TypeEmergencyWithdrawn
	}
	return TypeWithdrawn
}

// Event converts the structured payload into a broadcastable event.
func (e Withdrawn) Event() *types.Event {
	attrs := map[string]string{
		"poolId": strconv.FormatUint(e.PoolID, 10),
		"staker": e.Staker.Hex(),
		"amount": formatAmount(e.Amount),
	}
	if e.Burned != nil && e.Burned.Sign() > 0 {
		attrs["burned"] = formatAmount(e.Burned)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// RewardsClaimed captures a reward payout settled through a claim checkpoint.
type RewardsClaimed struct {
	PoolID    uint64
	Staker    common.Address
	Paid      *big.Int
	ClaimedAt uint64
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"poolId":    strconv.FormatUint(e.PoolID, 10),
		"staker":    e.Staker.Hex(),
		"paid":      formatAmount(e.Paid),
		"claimedAt": strconv.FormatUint(e.ClaimedAt, 10),
	}}
}

// TreasuryMoved captures owner-level reward treasury funding and drains plus
// asset recovery transfers.
type TreasuryMoved struct {
	Type   string
	Asset  common.Address
	Target common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (e TreasuryMoved) EventType() string { return e.Type }

// Event converts the structured payload into a broadcastable event.
func (e TreasuryMoved) Event() *types.Event {
	return &types.Event{Type: e.Type, Attributes: map[string]string{
		"asset":  e.Asset.Hex(),
		"target": e.Target.Hex(),
		"amount": formatAmount(e.Amount),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
