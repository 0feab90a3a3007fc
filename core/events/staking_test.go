package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDepositedEvent(t *testing.T) {
	staker := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	evt := Deposited{
		PoolID:      3,
		Staker:      staker,
		Amount:      big.NewInt(1_000),
		Minted:      big.NewInt(2),
		TotalStaked: big.NewInt(5_000),
	}.Event()

	if evt.Type != TypeDeposited {
		t.Fatalf("type = %q, want %q", evt.Type, TypeDeposited)
	}
	want := map[string]string{
		"poolId":      "3",
		"staker":      staker.Hex(),
		"amount":      "1000",
		"minted":      "2",
		"totalStaked": "5000",
	}
	for k, v := range want {
		if evt.Attributes[k] != v {
			t.Fatalf("attribute %q = %q, want %q", k, evt.Attributes[k], v)
		}
	}
}

func TestDepositedEventOmitsZeroMint(t *testing.T) {
	evt := Deposited{PoolID: 1, Amount: big.NewInt(10), Minted: big.NewInt(0)}.Event()
	if _, ok := evt.Attributes["minted"]; ok {
		t.Fatal("zero mint should not be rendered")
	}
}

func TestWithdrawnEventType(t *testing.T) {
	normal := Withdrawn{PoolID: 1, Amount: big.NewInt(10)}
	if normal.EventType() != TypeWithdrawn {
		t.Fatalf("normal type = %q", normal.EventType())
	}
	emergency := Withdrawn{PoolID: 1, Amount: big.NewInt(10), Emergency: true}
	if emergency.EventType() != TypeEmergencyWithdrawn {
		t.Fatalf("emergency type = %q", emergency.EventType())
	}
	if emergency.Event().Type != TypeEmergencyWithdrawn {
		t.Fatal("rendered event keeps the normal type")
	}
}

func TestPoolLifecycleEvent(t *testing.T) {
	evt := PoolLifecycle{PoolID: 7, Type: TypePoolClosed}.Event()
	if evt.Type != TypePoolClosed || evt.Attributes["poolId"] != "7" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
