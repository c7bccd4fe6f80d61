package exchange

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// The canonical trade: alice offers 100 native for 100 tokens, bob fills.
// With a 10% fee bob pays 110 tokens; alice nets 100 tokens, the fee
// account 10, and bob takes the 100 native.
func TestFillOrder(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	fundToken(t, demo, bob, 110)
	if err := ex.DepositToken(bob, tok, 110); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, err := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	checks := []struct {
		name    string
		asset   asset.ID
		account common.Address
		want    int64
	}{
		{"alice tokens", tok, alice, 100},
		{"alice native", asset.Native(), alice, 0},
		{"bob tokens", tok, bob, 0},
		{"bob native", asset.Native(), bob, 100},
		{"fee account tokens", tok, feeAcct, 10},
	}
	for _, c := range checks {
		if got := ex.BalanceOf(c.asset, c.account); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}

	_, st, err := ex.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if !st.Filled {
		t.Error("order should be filled")
	}
}

func TestFillFeeTruncates(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 10); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	fundToken(t, demo, bob, 20)
	if err := ex.DepositToken(bob, tok, 20); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	// 10% of 15 truncates to 1
	order, err := ex.MakeOrder(alice, tok, 15, asset.Native(), 10)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if got := ex.BalanceOf(tok, feeAcct); got != 1 {
		t.Errorf("fee: got %d, want 1", got)
	}
	if got := ex.BalanceOf(tok, bob); got != 4 {
		t.Errorf("bob tokens: got %d, want 4", got)
	}
	if got := ex.BalanceOf(tok, alice); got != 15 {
		t.Errorf("alice tokens: got %d, want 15", got)
	}
}

// Fee on a large order must stay exact and positive even where the naive
// amount*percent product would wrap int64.
func TestFillLargeOrderFee(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	const wanted = int64(1_000_000_000_000_000_000) // 1e18
	const fee = wanted / 10

	fundToken(t, demo, alice, 10)
	if err := ex.DepositToken(alice, tok, 10); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := ex.DepositNative(bob, wanted+fee); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, err := ex.MakeOrder(alice, asset.Native(), wanted, tok, 10)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if got := ex.BalanceOf(asset.Native(), feeAcct); got != fee {
		t.Errorf("fee account: got %d, want %d", got, fee)
	}
	if got := ex.BalanceOf(asset.Native(), alice); got != wanted {
		t.Errorf("alice native: got %d, want %d", got, wanted)
	}
	if got := ex.BalanceOf(asset.Native(), bob); got != 0 {
		t.Errorf("bob native: got %d, want 0", got)
	}
}

// An order whose amountWanted plus fee cannot be represented is rejected
// with no state change instead of wrapping into a negative fee.
func TestFillFeeOverflowRejected(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	fundToken(t, demo, alice, 10)
	if err := ex.DepositToken(alice, tok, 10); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := ex.DepositNative(bob, 1_000_000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, err := ex.MakeOrder(alice, asset.Native(), math.MaxInt64, tok, 10)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	if err := ex.FillOrder(bob, order.ID); err == nil {
		t.Fatal("fill with overflowing fee should fail")
	}

	if got := ex.BalanceOf(asset.Native(), bob); got != 1_000_000 {
		t.Errorf("bob native after rejected fill: got %d, want 1000000", got)
	}
	if got := ex.BalanceOf(asset.Native(), feeAcct); got != 0 {
		t.Errorf("fee account after rejected fill: got %d, want 0", got)
	}
	if got := ex.BalanceOf(tok, alice); got != 10 {
		t.Errorf("alice tokens after rejected fill: got %d, want 10", got)
	}
	_, st, _ := ex.GetOrder(order.ID)
	if st.Filled {
		t.Error("order must stay open after rejected fill")
	}
}

func TestFeeFor(t *testing.T) {
	cases := []struct {
		amount, percent int64
		want            int64
		wantErr         bool
	}{
		{0, 10, 0, false},
		{100, 0, 0, false},
		{100, 10, 10, false},
		{15, 10, 1, false}, // truncates toward zero
		{99, 10, 9, false},
		{1_000_000_000_000_000_000, 10, 100_000_000_000_000_000, false},
		{math.MaxInt64, 10, math.MaxInt64 / 100 * 10, false},
		{math.MaxInt64, math.MaxInt64, 0, true},
		{50, math.MaxInt64, 0, true},
	}
	for _, c := range cases {
		got, err := feeFor(c.amount, c.percent)
		if c.wantErr {
			if err == nil {
				t.Errorf("feeFor(%d, %d): expected error", c.amount, c.percent)
			}
			continue
		}
		if err != nil {
			t.Errorf("feeFor(%d, %d): %v", c.amount, c.percent, err)
			continue
		}
		if got != c.want {
			t.Errorf("feeFor(%d, %d): got %d, want %d", c.amount, c.percent, got, c.want)
		}
	}
}

func TestFillInsufficientFillerFunds(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	// Bob has 100 tokens but needs 110 (amount + fee)
	fundToken(t, demo, bob, 100)
	if err := ex.DepositToken(bob, tok, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, err := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	err = ex.FillOrder(bob, order.ID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Nothing moved, order still open
	if got := ex.BalanceOf(tok, bob); got != 100 {
		t.Errorf("bob tokens after failed fill: got %d, want 100", got)
	}
	if got := ex.BalanceOf(asset.Native(), alice); got != 100 {
		t.Errorf("alice native after failed fill: got %d, want 100", got)
	}
	if got := ex.BalanceOf(tok, feeAcct); got != 0 {
		t.Errorf("fee account after failed fill: got %d, want 0", got)
	}
	_, st, _ := ex.GetOrder(order.ID)
	if st.Filled {
		t.Error("order must stay open after failed fill")
	}
}

func TestFillInsolventCreator(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	// Alice creates an order she cannot back; recording succeeds, fill fails.
	order, err := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	fundToken(t, demo, bob, 110)
	if err := ex.DepositToken(bob, tok, 110); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	err = ex.FillOrder(bob, order.ID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Bob's debit was staged but never applied
	if got := ex.BalanceOf(tok, bob); got != 110 {
		t.Errorf("bob tokens after failed fill: got %d, want 110", got)
	}
	if got := ex.BalanceOf(tok, alice); got != 0 {
		t.Errorf("alice tokens after failed fill: got %d, want 0", got)
	}
	_, st, _ := ex.GetOrder(order.ID)
	if st.Filled {
		t.Error("order must stay open after failed fill")
	}
}

func TestFillTwice(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	fundToken(t, demo, bob, 220)
	if err := ex.DepositToken(bob, tok, 220); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, _ := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("first fill failed: %v", err)
	}

	err := ex.FillOrder(bob, order.ID)
	if !errors.Is(err, ErrOrderAlreadyFinalized) {
		t.Fatalf("expected ErrOrderAlreadyFinalized, got %v", err)
	}
}

func TestFillCancelledOrder(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	fundToken(t, demo, bob, 110)
	if err := ex.DepositToken(bob, tok, 110); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, _ := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err := ex.CancelOrder(alice, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	err := ex.FillOrder(bob, order.ID)
	if !errors.Is(err, ErrOrderAlreadyFinalized) {
		t.Fatalf("expected ErrOrderAlreadyFinalized, got %v", err)
	}
}

func TestFillUnknownOrder(t *testing.T) {
	ex, _ := newTestExchange(t)

	err := ex.FillOrder(bob, 7)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSelfFill(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	fundToken(t, demo, alice, 110)
	if err := ex.DepositToken(alice, tok, 110); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	order, _ := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err := ex.FillOrder(alice, order.ID); err != nil {
		t.Fatalf("self-fill failed: %v", err)
	}

	// Only the fee leaves alice: she pays 110 tokens, receives 100 back,
	// and her native leg nets to zero.
	if got := ex.BalanceOf(tok, alice); got != 100 {
		t.Errorf("alice tokens: got %d, want 100", got)
	}
	if got := ex.BalanceOf(asset.Native(), alice); got != 100 {
		t.Errorf("alice native: got %d, want 100", got)
	}
	if got := ex.BalanceOf(tok, feeAcct); got != 10 {
		t.Errorf("fee account: got %d, want 10", got)
	}
}

func TestFillConservesTotals(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	fundToken(t, demo, bob, 110)
	if err := ex.DepositToken(bob, tok, 110); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	nativeBefore := ex.TotalOf(asset.Native())
	tokenBefore := ex.TotalOf(tok)

	order, _ := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	// Fills redistribute; only deposits and withdrawals change totals.
	if got := ex.TotalOf(asset.Native()); got != nativeBefore {
		t.Errorf("native total changed: got %d, want %d", got, nativeBefore)
	}
	if got := ex.TotalOf(tok); got != tokenBefore {
		t.Errorf("token total changed: got %d, want %d", got, tokenBefore)
	}
}

func TestFillEmitsTradeEvent(t *testing.T) {
	ex, demo := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	if err := ex.DepositNative(alice, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	fundToken(t, demo, bob, 110)
	if err := ex.DepositToken(bob, tok, 110); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	var trades []TradeEvent
	ex.AddSink(SinkFunc(func(e Event) {
		if tr, ok := e.(TradeEvent); ok {
			trades = append(trades, tr)
		}
	}))

	order, _ := ex.MakeOrder(alice, tok, 100, asset.Native(), 100)
	if err := ex.FillOrder(bob, order.ID); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade event, got %d", len(trades))
	}
	tr := trades[0]
	if tr.ID != order.ID || tr.Creator != alice || tr.Filler != bob {
		t.Errorf("trade event: id=%d creator=%s filler=%s", tr.ID, tr.Creator.Hex(), tr.Filler.Hex())
	}
	if tr.AmountWanted != 100 || tr.AmountOffered != 100 {
		t.Errorf("trade amounts: wanted=%d offered=%d", tr.AmountWanted, tr.AmountOffered)
	}
}
