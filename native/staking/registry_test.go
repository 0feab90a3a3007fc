package staking

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stakehub/core/events"
)

type stubClock struct {
	now uint64
}

func (c *stubClock) Now() uint64 { return c.now }

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt)
}

var (
	testOwner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testStaker  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenAsset  = common.HexToAddress("0x0000000000000000000000000000000000000101")
	rewardAsset = common.HexToAddress("0x0000000000000000000000000000000000000102")
	collAsset   = common.HexToAddress("0x0000000000000000000000000000000000000103")
)

func newTestRegistry(t *testing.T, now uint64) (*Registry, *MemState, *stubClock) {
	t.Helper()
	state := NewMemState()
	clock := &stubClock{now: now}
	registry := NewRegistry(state, testOwner)
	registry.SetClock(clock)
	return registry, state, clock
}

func tokenPoolConfig(start uint64) PoolConfig {
	return PoolConfig{
		StakeAsset:       tokenAsset,
		RewardAsset:      rewardAsset,
		APYBasisPoints:   500,
		DurationSeconds:  1_000,
		StartTime:        start,
		CanWithdrawStake: true,
	}
}

func TestCreatePoolAssignsSequentialIDs(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)

	for want := uint64(0); want < 3; want++ {
		id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
		if err != nil {
			t.Fatalf("create pool: %v", err)
		}
		if id != want {
			t.Fatalf("pool id = %d, want %d", id, want)
		}
	}
	count, err := registry.PoolCount()
	if err != nil {
		t.Fatalf("pool count: %v", err)
	}
	if count != 3 {
		t.Fatalf("pool count = %d, want 3", count)
	}
}

func TestCreatePoolValidation(t *testing.T) {
	registry, state, _ := newTestRegistry(t, 100)

	cases := []struct {
		name    string
		mutate  func(*PoolConfig)
		wantErr error
	}{
		{name: "native with token asset", mutate: func(c *PoolConfig) { c.Native = true }, wantErr: ErrInvalidAsset},
		{name: "token with zero asset", mutate: func(c *PoolConfig) { c.StakeAsset = common.Address{} }, wantErr: ErrInvalidAsset},
		{name: "zero reward asset", mutate: func(c *PoolConfig) { c.RewardAsset = common.Address{} }, wantErr: ErrInvalidAsset},
		{name: "zero apy", mutate: func(c *PoolConfig) { c.APYBasisPoints = 0 }, wantErr: ErrInvalidAPY},
		{name: "zero duration", mutate: func(c *PoolConfig) { c.DurationSeconds = 0 }, wantErr: ErrInvalidDuration},
		{name: "end time wraps", mutate: func(c *PoolConfig) {
			c.StartTime = math.MaxUint64 - 10
			c.DurationSeconds = 11
		}, wantErr: ErrInvalidDuration},
		{name: "start in the past", mutate: func(c *PoolConfig) { c.StartTime = 50 }, wantErr: ErrInvalidStartTime},
		{name: "collateral without asset", mutate: func(c *PoolConfig) {
			c.Collateralized = true
			c.CollateralPrice = big.NewInt(1)
		}, wantErr: ErrInvalidAsset},
		{name: "collateral without price", mutate: func(c *PoolConfig) {
			c.Collateralized = true
			c.CollateralAsset = collAsset
		}, wantErr: ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tokenPoolConfig(200)
			tc.mutate(&cfg)
			if _, err := registry.CreatePool(testOwner, cfg); !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	count, err := state.PoolCount()
	if err != nil {
		t.Fatalf("pool count: %v", err)
	}
	if count != 0 {
		t.Fatalf("%d pools written by rejected creations", count)
	}
}

func TestCreatePoolNativeSentinel(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)

	cfg := tokenPoolConfig(200)
	cfg.Native = true
	cfg.StakeAsset = NativeAsset
	id, err := registry.CreatePool(testOwner, cfg)
	if err != nil {
		t.Fatalf("create native pool: %v", err)
	}
	pool, err := registry.GetPool(id)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if !pool.Native || pool.StakeAsset != NativeAsset {
		t.Fatalf("native pool stored incorrectly: %+v", pool)
	}
	if !pool.Active || pool.Paused {
		t.Fatalf("new pool should start active and unpaused: %+v", pool)
	}
	if pool.EndTime != cfg.StartTime+cfg.DurationSeconds {
		t.Fatalf("end time = %d, want %d", pool.EndTime, cfg.StartTime+cfg.DurationSeconds)
	}
}

func TestCreatePoolRequiresOwner(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	if _, err := registry.CreatePool(testStaker, tokenPoolConfig(200)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestUpdateAPY(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	if err := registry.UpdateAPY(testOwner, id, 0); !errors.Is(err, ErrInvalidAPY) {
		t.Fatalf("zero apy error = %v, want %v", err, ErrInvalidAPY)
	}
	if err := registry.UpdateAPY(testStaker, id, 750); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner error = %v, want %v", err, ErrUnauthorized)
	}
	if err := registry.UpdateAPY(testOwner, id, 750); err != nil {
		t.Fatalf("update apy: %v", err)
	}
	pool, err := registry.GetPool(id)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.APYBasisPoints != 750 {
		t.Fatalf("apy = %d, want 750", pool.APYBasisPoints)
	}
}

func TestUpdateMinStake(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	if err := registry.UpdateMinStake(testOwner, id, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative minimum error = %v, want %v", err, ErrInvalidAmount)
	}
	if err := registry.UpdateMinStake(testOwner, id, big.NewInt(250)); err != nil {
		t.Fatalf("update minimum: %v", err)
	}
	pool, err := registry.GetPool(id)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.MinStakeAmount.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("minimum = %s, want 250", pool.MinStakeAmount)
	}

	if err := registry.UpdateMinStake(testOwner, id, nil); err != nil {
		t.Fatalf("clear minimum: %v", err)
	}
	pool, err = registry.GetPool(id)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.MinStakeAmount.Sign() != 0 {
		t.Fatalf("cleared minimum = %s, want 0", pool.MinStakeAmount)
	}
}

func TestPauseResumeClose(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	if err := registry.Pause(testOwner, id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	pool, _ := registry.GetPool(id)
	if !pool.Paused {
		t.Fatal("pool not paused")
	}
	if err := registry.Resume(testOwner, id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	pool, _ = registry.GetPool(id)
	if pool.Paused {
		t.Fatal("pool still paused after resume")
	}

	// Closing works from the paused state too; closure is terminal.
	if err := registry.Pause(testOwner, id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := registry.Close(testOwner, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	pool, _ = registry.GetPool(id)
	if pool.Active {
		t.Fatal("pool still active after close")
	}

	if err := registry.UpdateAPY(testOwner, id, 900); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("update on closed pool error = %v, want %v", err, ErrPoolClosed)
	}
	if err := registry.Resume(testOwner, id); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("resume on closed pool error = %v, want %v", err, ErrPoolClosed)
	}
}

func TestExtendDuration(t *testing.T) {
	registry, _, clock := newTestRegistry(t, 100)
	id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	if err := registry.ExtendDuration(testOwner, id, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("zero extension error = %v, want %v", err, ErrInvalidDuration)
	}
	if err := registry.ExtendDuration(testOwner, id, 500); err != nil {
		t.Fatalf("extend: %v", err)
	}
	pool, _ := registry.GetPool(id)
	if pool.DurationSeconds != 1_500 || pool.EndTime != 1_700 {
		t.Fatalf("duration = %d end = %d, want 1500 / 1700", pool.DurationSeconds, pool.EndTime)
	}

	clock.now = pool.EndTime
	if err := registry.ExtendDuration(testOwner, id, 500); !errors.Is(err, ErrPoolEnded) {
		t.Fatalf("extension past end error = %v, want %v", err, ErrPoolEnded)
	}
}

func TestExtendDurationRejectsWrap(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	pool, _ := registry.GetPool(id)

	wrap := math.MaxUint64 - pool.EndTime + 1
	if err := registry.ExtendDuration(testOwner, id, wrap); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("wrapping extension error = %v, want %v", err, ErrInvalidDuration)
	}

	// Extending right up to the representable maximum is still valid.
	if err := registry.ExtendDuration(testOwner, id, wrap-1); err != nil {
		t.Fatalf("maximal extension: %v", err)
	}
	pool, _ = registry.GetPool(id)
	if pool.EndTime != math.MaxUint64 {
		t.Fatalf("end time = %d, want %d", pool.EndTime, uint64(math.MaxUint64))
	}
}

func TestUpdateCollateralPrice(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)

	cfg := tokenPoolConfig(200)
	cfg.Collateralized = true
	cfg.CollateralAsset = collAsset
	cfg.CollateralPrice = big.NewInt(1_000)
	id, err := registry.CreatePool(testOwner, cfg)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	if err := registry.UpdateCollateralPrice(testOwner, id, big.NewInt(0)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero price error = %v, want %v", err, ErrInvalidPrice)
	}
	if err := registry.UpdateCollateralPrice(testOwner, id, big.NewInt(2_000)); err != nil {
		t.Fatalf("update price: %v", err)
	}
	pool, _ := registry.GetPool(id)
	if pool.CollateralPrice.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("price = %s, want 2000", pool.CollateralPrice)
	}

	plainID, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create plain pool: %v", err)
	}
	if err := registry.UpdateCollateralPrice(testOwner, plainID, big.NewInt(5)); !errors.Is(err, ErrNotCollateralized) {
		t.Fatalf("price on plain pool error = %v, want %v", err, ErrNotCollateralized)
	}
}

func TestSetGlobalPause(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)

	if err := registry.SetGlobalPause(testStaker, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner pause error = %v, want %v", err, ErrUnauthorized)
	}
	if registry.IsPaused("staking") {
		t.Fatal("registry paused before the switch was set")
	}
	if err := registry.SetGlobalPause(testOwner, true); err != nil {
		t.Fatalf("set pause: %v", err)
	}
	if !registry.IsPaused("staking") {
		t.Fatal("registry not paused after the switch was set")
	}
	if err := registry.SetGlobalPause(testOwner, false); err != nil {
		t.Fatalf("clear pause: %v", err)
	}
	if registry.IsPaused("staking") {
		t.Fatal("registry still paused after the switch was cleared")
	}
}

func TestListActivePools(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	for i := 0; i < 3; i++ {
		if _, err := registry.CreatePool(testOwner, tokenPoolConfig(200)); err != nil {
			t.Fatalf("create pool %d: %v", i, err)
		}
	}
	if err := registry.Close(testOwner, 1); err != nil {
		t.Fatalf("close: %v", err)
	}

	ids, err := registry.ListActivePools()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("active pools = %v, want [0 2]", ids)
	}
}

func TestRegistryEmitsEvents(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 100)
	emitter := &recordingEmitter{}
	registry.SetEmitter(emitter)

	id, err := registry.CreatePool(testOwner, tokenPoolConfig(200))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if err := registry.UpdateAPY(testOwner, id, 600); err != nil {
		t.Fatalf("update apy: %v", err)
	}
	if err := registry.Close(testOwner, id); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(emitter.events) != 3 {
		t.Fatalf("emitted %d events, want 3", len(emitter.events))
	}
	types := []string{
		emitter.events[0].EventType(),
		emitter.events[1].EventType(),
		emitter.events[2].EventType(),
	}
	want := []string{events.TypePoolCreated, events.TypePoolUpdated, events.TypePoolClosed}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d type = %q, want %q", i, types[i], want[i])
		}
	}
}
