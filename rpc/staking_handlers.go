package rpc

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"stakehub/native/staking"
	"stakehub/observability/metrics"
)

type createPoolParams struct {
	Caller             string `json:"caller"`
	StakeAsset         string `json:"stakeAsset,omitempty"`
	RewardAsset        string `json:"rewardAsset"`
	APYBasisPoints     uint64 `json:"apyBps"`
	DurationSeconds    uint64 `json:"durationSeconds"`
	StartTime          uint64 `json:"startTime"`
	CanWithdrawStake   bool   `json:"canWithdrawStake"`
	MinStakeAmount     string `json:"minStakeAmount,omitempty"`
	Collateralized     bool   `json:"collateralized"`
	CollateralAsset    string `json:"collateralAsset,omitempty"`
	CollateralDecimals uint8  `json:"collateralDecimals,omitempty"`
	CollateralPrice    string `json:"collateralPrice,omitempty"`
	Native             bool   `json:"native"`
}

type createPoolResult struct {
	PoolID uint64 `json:"poolId"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createPoolParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stakeAsset, err := parseOptionalAddress("stakeAsset", params.StakeAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	rewardAsset, err := parseAddress("rewardAsset", params.RewardAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateralAsset, err := parseOptionalAddress("collateralAsset", params.CollateralAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minStake, err := parseAmount("minStakeAmount", params.MinStakeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount("collateralPrice", params.CollateralPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	id, err := s.registry.CreatePool(caller, staking.PoolConfig{
		StakeAsset:         stakeAsset,
		RewardAsset:        rewardAsset,
		APYBasisPoints:     params.APYBasisPoints,
		DurationSeconds:    params.DurationSeconds,
		StartTime:          params.StartTime,
		CanWithdrawStake:   params.CanWithdrawStake,
		MinStakeAmount:     minStake,
		Collateralized:     params.Collateralized,
		CollateralAsset:    collateralAsset,
		CollateralDecimals: params.CollateralDecimals,
		CollateralPrice:    price,
		Native:             params.Native,
	})
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	s.refreshActivePools()
	writeResult(w, req.ID, createPoolResult{PoolID: id})
}

// refreshActivePools recomputes the active-pool gauge after a lifecycle
// change.
func (s *Server) refreshActivePools() {
	ids, err := s.registry.ListActivePools()
	if err != nil {
		return
	}
	metrics.Staking().SetActivePools(len(ids))
}

type poolUpdateParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Value  uint64 `json:"value,omitempty"`
	Amount string `json:"amount,omitempty"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleUpdateAPY(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		return s.registry.UpdateAPY(caller, params.PoolID, params.Value)
	})
}

func (s *Server) handleUpdateMinStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		minStake, err := parseAmount("amount", params.Amount)
		if err != nil {
			return err
		}
		return s.registry.UpdateMinStake(caller, params.PoolID, minStake)
	})
}

func (s *Server) handlePausePool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		return s.registry.Pause(caller, params.PoolID)
	})
}

func (s *Server) handleResumePool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		return s.registry.Resume(caller, params.PoolID)
	})
}

func (s *Server) handleClosePool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		if err := s.registry.Close(caller, params.PoolID); err != nil {
			return err
		}
		s.refreshActivePools()
		return nil
	})
}

func (s *Server) handleExtendDuration(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		return s.registry.ExtendDuration(caller, params.PoolID, params.Value)
	})
}

func (s *Server) handleUpdateCollateralPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.poolMutation(w, req, func(caller common.Address, params poolUpdateParams) error {
		price, err := parseAmount("amount", params.Amount)
		if err != nil {
			return err
		}
		return s.registry.UpdateCollateralPrice(caller, params.PoolID, price)
	})
}

func (s *Server) poolMutation(w http.ResponseWriter, req *RPCRequest, apply func(common.Address, poolUpdateParams) error) {
	var params poolUpdateParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := apply(caller, params); err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type globalPauseParams struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetGlobalPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params globalPauseParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.SetGlobalPause(caller, params.Paused); err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type stakeParams struct {
	Staker         string `json:"staker"`
	PoolID         uint64 `json:"poolId"`
	Amount         string `json:"amount,omitempty"`
	SubmittedValue string `json:"submittedValue,omitempty"`
}

type stakeResult struct {
	OK     bool   `json:"ok"`
	Minted string `json:"minted"`
}

func (s *Server) handleStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	staker, err := parseAddress("staker", params.Staker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	value, err := parseAmount("submittedValue", params.SubmittedValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minted, err := s.engine.Stake(staker, params.PoolID, amount, value)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeResult{OK: true, Minted: formatBig(minted)})
}

type withdrawParams struct {
	Staker string `json:"staker"`
	PoolID uint64 `json:"poolId"`
	Amount string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	staker, err := parseAddress("staker", params.Staker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Withdraw(staker, params.PoolID, amount); err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type claimParams struct {
	Staker string `json:"staker"`
	PoolID uint64 `json:"poolId"`
}

type claimResult struct {
	Paid string `json:"paid"`
}

func (s *Server) handleClaimReward(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	paid, err := s.engine.ClaimReward(staker, params.PoolID)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult{Paid: formatBig(paid)})
}

type emergencyResult struct {
	Returned string `json:"returned"`
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	returned, err := s.engine.EmergencyWithdraw(staker, params.PoolID)
	if err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, emergencyResult{Returned: formatBig(returned)})
}

type treasuryParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}

func (s *Server) handleDepositRewardTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.treasuryMutation(w, req, func(caller, asset, _ common.Address, amount *big.Int) error {
		return s.engine.DepositRewardTokens(caller, asset, amount)
	})
}

func (s *Server) handleWithdrawRewardTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.treasuryMutation(w, req, func(caller, asset, _ common.Address, amount *big.Int) error {
		return s.engine.WithdrawRewardTokens(caller, asset, amount)
	})
}

func (s *Server) handleRecoverAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.treasuryMutation(w, req, func(caller, asset, to common.Address, amount *big.Int) error {
		return s.engine.RecoverAsset(caller, asset, to, amount)
	})
}

func (s *Server) treasuryMutation(w http.ResponseWriter, req *RPCRequest, apply func(caller, asset, to common.Address, amount *big.Int) error) {
	var params treasuryParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset, err := parseOptionalAddress("asset", params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := parseOptionalAddress("to", params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := apply(caller, asset, to, amount); err != nil {
		writeStakingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
