package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "stakehub/native/common"
	"stakehub/native/staking"
	"stakehub/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError        = -32700
	codeInvalidRequest    = -32600
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
	codeServerError       = -32000
	codeUnauthorized      = -32001
	codeNotFound          = -32004
	codeStateRejected     = -32005
	codeInsufficientFunds = -32006
	codePaused            = -32007
)

// Server exposes the staking registry and ledger over JSON-RPC 2.0. Mutating
// methods require the configured bearer token; queries are open.
type Server struct {
	registry  *staking.Registry
	engine    *staking.Engine
	authToken string
}

// NewServer wires the RPC surface over the given registry and engine. An empty
// token disables every mutating method.
func NewServer(registry *staking.Registry, engine *staking.Engine, authToken string) *Server {
	return &Server{
		registry:  registry,
		engine:    engine,
		authToken: strings.TrimSpace(authToken),
	}
}

// Handler returns the HTTP handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// Start serves the RPC endpoint on addr until the listener fails.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "staking_createPool":
		s.authenticated(w, r, req, s.handleCreatePool)
	case "staking_updateApy":
		s.authenticated(w, r, req, s.handleUpdateAPY)
	case "staking_updateMinStake":
		s.authenticated(w, r, req, s.handleUpdateMinStake)
	case "staking_pausePool":
		s.authenticated(w, r, req, s.handlePausePool)
	case "staking_resumePool":
		s.authenticated(w, r, req, s.handleResumePool)
	case "staking_closePool":
		s.authenticated(w, r, req, s.handleClosePool)
	case "staking_extendDuration":
		s.authenticated(w, r, req, s.handleExtendDuration)
	case "staking_updateCollateralPrice":
		s.authenticated(w, r, req, s.handleUpdateCollateralPrice)
	case "staking_setGlobalPause":
		s.authenticated(w, r, req, s.handleSetGlobalPause)
	case "staking_stake":
		s.authenticated(w, r, req, s.handleStake)
	case "staking_withdraw":
		s.authenticated(w, r, req, s.handleWithdraw)
	case "staking_claimReward":
		s.authenticated(w, r, req, s.handleClaimReward)
	case "staking_emergencyWithdraw":
		s.authenticated(w, r, req, s.handleEmergencyWithdraw)
	case "staking_depositRewardTokens":
		s.authenticated(w, r, req, s.handleDepositRewardTokens)
	case "staking_withdrawRewardTokens":
		s.authenticated(w, r, req, s.handleWithdrawRewardTokens)
	case "staking_recoverAsset":
		s.authenticated(w, r, req, s.handleRecoverAsset)
	case "staking_getPool":
		s.handleGetPool(w, r, req)
	case "staking_listActivePools":
		s.handleListActivePools(w, r, req)
	case "staking_stakeInfo":
		s.handleStakeInfo(w, r, req)
	case "staking_pendingReward":
		s.handlePendingReward(w, r, req)
	case "staking_rewardBalance":
		s.handleRewardBalance(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (s *Server) authenticated(w http.ResponseWriter, r *http.Request, req *RPCRequest, next func(http.ResponseWriter, *http.Request, *RPCRequest)) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// writeStakingError translates the ledger's closed error set to RPC codes so
// callers can distinguish the rejection categories.
func writeStakingError(w http.ResponseWriter, id interface{}, err error) {
	code := codeServerError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, staking.ErrPoolNotFound):
		code, status = codeNotFound, http.StatusNotFound
	case errors.Is(err, staking.ErrUnauthorized):
		code, status = codeUnauthorized, http.StatusForbidden
	case errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrInvalidAPY),
		errors.Is(err, staking.ErrInvalidDuration),
		errors.Is(err, staking.ErrInvalidStartTime),
		errors.Is(err, staking.ErrInvalidAsset),
		errors.Is(err, staking.ErrInvalidPrice),
		errors.Is(err, staking.ErrNotCollateralized):
		code, status = codeInvalidParams, http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, staking.ErrPoolPaused):
		code, status = codePaused, http.StatusConflict
	case errors.Is(err, staking.ErrPoolClosed),
		errors.Is(err, staking.ErrPoolEnded),
		errors.Is(err, staking.ErrOutsideWindow),
		errors.Is(err, staking.ErrWithdrawDisabled),
		errors.Is(err, staking.ErrBelowMinimumStake),
		errors.Is(err, staking.ErrUnexpectedValue),
		errors.Is(err, staking.ErrNothingStaked):
		code, status = codeStateRejected, http.StatusConflict
	case errors.Is(err, staking.ErrInsufficientStake),
		errors.Is(err, staking.ErrInsufficientRewards):
		code, status = codeInsufficientFunds, http.StatusConflict
	}
	metrics.Staking().ObserveRejection(rejectionReason(err))
	writeError(w, status, id, code, err.Error(), nil)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, staking.ErrPoolNotFound):
		return "not_found"
	case errors.Is(err, staking.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, nativecommon.ErrModulePaused), errors.Is(err, staking.ErrPoolPaused):
		return "paused"
	case errors.Is(err, staking.ErrInsufficientStake), errors.Is(err, staking.ErrInsufficientRewards):
		return "insufficient_funds"
	default:
		return "rejected"
	}
}

func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	return common.HexToAddress(value), nil
}

// parseOptionalAddress accepts an empty string as the zero address, used for
// the native-currency sentinel.
func parseOptionalAddress(field, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, value)
}

func parseAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative base-10 integer", field)
	}
	return amount, nil
}
