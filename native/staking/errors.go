package staking

import "errors"

var (
	ErrNilState            = errors.New("staking: state not configured")
	ErrPoolNotFound        = errors.New("staking: pool not found")
	ErrUnauthorized        = errors.New("staking: unauthorized")
	ErrInvalidAmount       = errors.New("staking: amount must be positive")
	ErrInvalidAPY          = errors.New("staking: apy must be positive")
	ErrInvalidDuration     = errors.New("staking: duration must be positive")
	ErrInvalidStartTime    = errors.New("staking: start time in the past")
	ErrInvalidAsset        = errors.New("staking: asset identifier required")
	ErrInvalidPrice        = errors.New("staking: collateral price must be positive")
	ErrNotCollateralized   = errors.New("staking: pool is not collateralized")
	ErrPoolClosed          = errors.New("staking: pool closed")
	ErrPoolPaused          = errors.New("staking: pool paused")
	ErrPoolEnded           = errors.New("staking: pool already ended")
	ErrOutsideWindow       = errors.New("staking: outside staking window")
	ErrWithdrawDisabled    = errors.New("staking: stake withdrawal disabled")
	ErrBelowMinimumStake   = errors.New("staking: amount below pool minimum")
	ErrInsufficientStake   = errors.New("staking: insufficient staked balance")
	ErrInsufficientRewards = errors.New("staking: insufficient reward balance")
	ErrUnexpectedValue     = errors.New("staking: native value sent to token pool")
	ErrNothingStaked       = errors.New("staking: nothing staked")
)
