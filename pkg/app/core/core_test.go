package core_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core"
	"github.com/tokendex/tokendex/pkg/util"
)

// Drives a whole trade through the re-exported surface.
func TestTradeThroughFacade(t *testing.T) {
	var (
		alice    = common.HexToAddress("0xAA00000000000000000000000000000000000000")
		bob      = common.HexToAddress("0xBB00000000000000000000000000000000000000")
		feeAcct  = common.HexToAddress("0xFEE0000000000000000000000000000000000000")
		custody  = common.HexToAddress("0xE8c0000000000000000000000000000000000001")
		deployer = common.HexToAddress("0xDD00000000000000000000000000000000000000")
		tokAddr  = common.HexToAddress("0x70ce000000000000000000000000000000000001")
	)

	demo := core.NewToken("Demo Token", "DEMO", 6, 1_000_000, deployer)
	registry := core.NewTokenRegistry()
	if err := registry.Register(tokAddr, demo); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	ex := core.NewExchange(core.ExchangeConfig{
		FeeAccount: feeAcct,
		FeePercent: 10,
		Custody:    custody,
		Tokens:     registry,
		Clock:      util.NewFakeClock(time.Unix(1_700_000_000, 0)),
	})

	tok := core.TokenAsset(tokAddr)
	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := demo.Transfer(deployer, bob, 110); err != nil {
		t.Fatalf("token grant failed: %v", err)
	}
	if err := demo.Approve(bob, custody, 110); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := ex.DepositToken(bob, tok, 110); err != nil {
		t.Fatalf("token deposit failed: %v", err)
	}

	order, err := ex.MakeOrder(alice, tok, 100, core.NativeAsset(), 100)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if got := ex.BalanceOf(tok, alice); got != 100 {
		t.Errorf("alice tokens: got %d, want 100", got)
	}
	if got := ex.BalanceOf(core.NativeAsset(), bob); got != 100 {
		t.Errorf("bob native: got %d, want 100", got)
	}

	id, err := core.ParseAsset("native")
	if err != nil || !id.IsNative() {
		t.Errorf("ParseAsset(native): %v %v", id, err)
	}
}
