package staking

import "math/big"

// SecondsPerYear is the accrual denominator. Deliberately 365 days flat; no
// leap-year adjustment.
const SecondsPerYear = 365 * 86400

var (
	basisPoints = big.NewInt(10_000)
	// priceScale is the fixed divisor for collateral mint/burn math. It does
	// not track either asset's decimals; the collateral price carries that.
	priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	secondsPerYearBps = new(big.Int).Mul(big.NewInt(SecondsPerYear), basisPoints)
)

// accruedReward computes the reward earned by a position between its last
// claim checkpoint and now, clamped to the pool's reward window. Truncating
// division: the fractional remainder is permanently forfeited, never carried.
func accruedReward(amount *big.Int, apyBps uint64, lastClaim, start, end, now uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	windowEnd := now
	if end < windowEnd {
		windowEnd = end
	}
	windowStart := lastClaim
	if start > windowStart {
		windowStart = start
	}
	if windowStart >= windowEnd {
		return big.NewInt(0)
	}
	elapsed := windowEnd - windowStart

	reward := new(big.Int).Mul(amount, new(big.Int).SetUint64(apyBps))
	reward.Mul(reward, new(big.Int).SetUint64(elapsed))
	return reward.Quo(reward, secondsPerYearBps)
}

// collateralAmount computes floor(amount * price / 1e18), the collateral token
// quantity minted on deposit and burned on withdrawal.
func collateralAmount(amount, price *big.Int) *big.Int {
	if amount == nil || price == nil || amount.Sign() <= 0 || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, price)
	return out.Quo(out, priceScale)
}

// weightedEntryPrice folds a new deposit into the quantity-weighted average
// cost basis: floor((held*heldPrice + added*addPrice) / (held+added)).
func weightedEntryPrice(held, heldPrice, added, addPrice *big.Int) *big.Int {
	total := new(big.Int).Add(held, added)
	if total.Sign() <= 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(held, heldPrice)
	num.Add(num, new(big.Int).Mul(added, addPrice))
	return num.Quo(num, total)
}
