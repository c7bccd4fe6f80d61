package exchange

import (
	"errors"
	"testing"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

func TestMakeOrderAssignsIncreasingIDs(t *testing.T) {
	ex, _ := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	o1, err := ex.MakeOrder(alice, tok, 10, asset.Native(), 20)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	o2, err := ex.MakeOrder(bob, asset.Native(), 5, tok, 7)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	if o1.ID != 1 {
		t.Errorf("first order id: got %d, want 1", o1.ID)
	}
	if o2.ID != 2 {
		t.Errorf("second order id: got %d, want 2", o2.ID)
	}
	if got := ex.OrderCount(); got != 2 {
		t.Errorf("order count: got %d, want 2", got)
	}
}

func TestMakeOrderRequiresNoBalance(t *testing.T) {
	ex, _ := newTestExchange(t)

	// Alice holds nothing; the order is still recorded.
	order, err := ex.MakeOrder(alice, asset.ForToken(demoAddr), 100, asset.Native(), 200)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	got, st, err := ex.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if got.Creator != alice {
		t.Errorf("creator: got %s, want %s", got.Creator.Hex(), alice.Hex())
	}
	if st.Filled || st.Cancelled {
		t.Error("new order should be open")
	}
}

func TestCancelOrder(t *testing.T) {
	ex, _ := newTestExchange(t)

	order, err := ex.MakeOrder(alice, asset.ForToken(demoAddr), 10, asset.Native(), 20)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	if err := ex.CancelOrder(alice, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, st, err := ex.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if !st.Cancelled {
		t.Error("order should be cancelled")
	}
	if st.Filled {
		t.Error("cancelled order must not be filled")
	}
}

func TestCancelOrderOnlyCreator(t *testing.T) {
	ex, _ := newTestExchange(t)

	order, err := ex.MakeOrder(alice, asset.ForToken(demoAddr), 10, asset.Native(), 20)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	err = ex.CancelOrder(bob, order.ID)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Still open
	_, st, _ := ex.GetOrder(order.ID)
	if st.Cancelled {
		t.Error("order must stay open after unauthorized cancel")
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	ex, _ := newTestExchange(t)

	err := ex.CancelOrder(alice, 42)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCancelOrderTwice(t *testing.T) {
	ex, _ := newTestExchange(t)

	order, err := ex.MakeOrder(alice, asset.ForToken(demoAddr), 10, asset.Native(), 20)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := ex.CancelOrder(alice, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	err = ex.CancelOrder(alice, order.ID)
	if !errors.Is(err, ErrOrderAlreadyFinalized) {
		t.Fatalf("expected ErrOrderAlreadyFinalized, got %v", err)
	}
}

func TestOpenOrdersExcludesFinalized(t *testing.T) {
	ex, _ := newTestExchange(t)
	tok := asset.ForToken(demoAddr)

	o1, _ := ex.MakeOrder(alice, tok, 10, asset.Native(), 20)
	o2, _ := ex.MakeOrder(alice, tok, 11, asset.Native(), 21)
	o3, _ := ex.MakeOrder(alice, tok, 12, asset.Native(), 22)

	if err := ex.CancelOrder(alice, o2.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	open := ex.OpenOrders()
	if len(open) != 2 {
		t.Fatalf("expected 2 open orders, got %d", len(open))
	}
	if open[0].ID != o1.ID || open[1].ID != o3.ID {
		t.Errorf("open orders: got ids %d,%d, want %d,%d", open[0].ID, open[1].ID, o1.ID, o3.ID)
	}

	all := ex.ListOrders()
	if len(all) != 3 {
		t.Errorf("expected 3 total orders, got %d", len(all))
	}
}

func TestCancelEmitsEvent(t *testing.T) {
	ex, _ := newTestExchange(t)

	var cancels []CancelEvent
	ex.AddSink(SinkFunc(func(e Event) {
		if c, ok := e.(CancelEvent); ok {
			cancels = append(cancels, c)
		}
	}))

	order, _ := ex.MakeOrder(alice, asset.ForToken(demoAddr), 10, asset.Native(), 20)
	if err := ex.CancelOrder(alice, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if len(cancels) != 1 {
		t.Fatalf("expected 1 cancel event, got %d", len(cancels))
	}
	if cancels[0].ID != order.ID || cancels[0].Creator != alice {
		t.Errorf("cancel event: id=%d creator=%s", cancels[0].ID, cancels[0].Creator.Hex())
	}
}
