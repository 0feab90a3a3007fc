package rpc

import (
	"net/http"

	"stakehub/native/staking"
)

type poolQueryParams struct {
	PoolID uint64 `json:"poolId"`
}

type poolResult struct {
	PoolID             uint64 `json:"poolId"`
	StakeAsset         string `json:"stakeAsset"`
	RewardAsset        string `json:"rewardAsset"`
	APYBasisPoints     uint64 `json:"apyBps"`
	DurationSeconds    uint64 `json:"durationSeconds"`
	StartTime          uint64 `json:"startTime"`
	EndTime            uint64 `json:"endTime"`
	TotalStaked        string `json:"totalStaked"`
	Paused             bool   `json:"paused"`
	Active             bool   `json:"active"`
	CanWithdrawStake   bool   `json:"canWithdrawStake"`
	MinStakeAmount     string `json:"minStakeAmount"`
	Collateralized     bool   `json:"collateralized"`
	CollateralAsset    string `json:"collateralAsset,omitempty"`
	CollateralDecimals uint8  `json:"collateralDecimals,omitempty"`
	CollateralPrice    string `json:"collateralPrice,omitempty"`
	Native             bool   `json:"native"`
}

func poolToResult(pool *staking.Pool) poolResult {
	out := poolResult{
		PoolID:           pool.ID,
		StakeAsset:       pool.StakeAsset.Hex(),
		RewardAsset:      pool.RewardAsset.Hex(),
		APYBasisPoints:   pool.APYBasisPoints,
		DurationSeconds:  pool.DurationSeconds,
		StartTime:        pool.StartTime,
		EndTime:          pool.EndTime,
		TotalStaked:      formatBig(pool.TotalStaked),
		Paused:           pool.Paused,
		Active:           pool.Active,
		CanWithdrawStake: pool.CanWithdrawStake,
		MinStakeAmount:   formatBig(pool.MinStakeAmount),
		Collateralized:   pool.Collateralized,
		Native:           pool.Native,
	}
	if pool.Collateralized {
		out.CollateralAsset = pool.CollateralAsset.Hex()
		out.CollateralDecimals = pool.CollateralDecimals
		out.CollateralPrice = formatBig(pool.CollateralPrice)
	}
	return out
}

func (s *Server) handleGetPool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolQueryParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pool, err := s.registry.GetPool(params.PoolID)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolToResult(pool))
}

type activePoolsResult struct {
	PoolIDs []uint64 `json:"poolIds"`
}

func (s *Server) handleListActivePools(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	ids, err := s.registry.ListActivePools()
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, activePoolsResult{PoolIDs: ids})
}

type stakeInfoResult struct {
	PoolID        uint64 `json:"poolId"`
	Owner         string `json:"owner"`
	Amount        string `json:"amount"`
	StakedAt      uint64 `json:"stakedAt"`
	LastClaimTime uint64 `json:"lastClaimTime"`
	EntryPrice    string `json:"entryPrice"`
	PendingReward string `json:"pendingReward"`
	ComputedAt    uint64 `json:"computedAt"`
}

func (s *Server) handleStakeInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	staker, err := parseAddress("staker", params.Staker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	info, err := s.engine.StakeInfo(staker, params.PoolID)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeInfoResult{
		PoolID:        info.PoolID,
		Owner:         info.Owner.Hex(),
		Amount:        formatBig(info.Amount),
		StakedAt:      info.StakedAt,
		LastClaimTime: info.LastClaimTime,
		EntryPrice:    formatBig(info.EntryPrice),
		PendingReward: formatBig(info.PendingReward),
		ComputedAt:    info.ComputedAt,
	})
}

type pendingRewardResult struct {
	Pending string `json:"pending"`
}

func (s *Server) handlePendingReward(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	staker, err := parseAddress("staker", params.Staker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pending, err := s.engine.PendingReward(staker, params.PoolID)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pendingRewardResult{Pending: formatBig(pending)})
}

type rewardBalanceParams struct {
	Asset string `json:"asset"`
}

type rewardBalanceResult struct {
	Balance string `json:"balance"`
}

func (s *Server) handleRewardBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params rewardBalanceParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.engine.RewardBalance(asset)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rewardBalanceResult{Balance: formatBig(balance)})
}
