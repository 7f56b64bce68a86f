package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/store"
)

func strPtr(s string) *string { return &s }

func TestAttributeFirstOrderAwards(t *testing.T) {
	users := newFakeUsers(
		&store.User{ID: "buyer", ReferredBy: strPtr("ref")},
		&store.User{ID: "ref"},
	)
	orders := newFakeOrders()
	awards := newFakeAwards()
	notifier := &fakeNotifier{}
	a := NewReferralAttributor(users, orders, awards, notifier, 200, zerolog.Nop())

	order := &store.Order{UserID: "buyer"}
	if err := orders.Create(context.Background(), order); err != nil {
		t.Fatal(err)
	}

	result, err := a.Attribute(context.Background(), order, time.Now())
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}

	if !result.Awarded {
		t.Fatal("first order should award")
	}
	if result.ReferrerID != "ref" || result.Amount != 200 {
		t.Errorf("result = %+v, want ref/200", result)
	}
	if len(notifier.sent) != 1 || !strings.HasPrefix(notifier.sent[0], "ref:") {
		t.Errorf("referrer not notified: %v", notifier.sent)
	}
}

func TestAttributeRepeatedNotificationAwardsOnce(t *testing.T) {
	users := newFakeUsers(
		&store.User{ID: "buyer", ReferredBy: strPtr("ref")},
		&store.User{ID: "ref"},
	)
	orders := newFakeOrders()
	awards := newFakeAwards()
	notifier := &fakeNotifier{}
	a := NewReferralAttributor(users, orders, awards, notifier, 200, zerolog.Nop())

	order := &store.Order{UserID: "buyer"}
	if err := orders.Create(context.Background(), order); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := a.Attribute(context.Background(), order, time.Now()); err != nil {
			t.Fatalf("Attribute() #%d error = %v", i, err)
		}
	}

	if len(awards.awarded) != 1 {
		t.Errorf("awarded %d times, want 1", len(awards.awarded))
	}
	if len(notifier.sent) != 1 {
		t.Errorf("referrer notified %d times, want 1", len(notifier.sent))
	}
}

func TestAttachFirstWriteWins(t *testing.T) {
	users := newFakeUsers(
		&store.User{ID: "ref"},
		&store.User{ID: "other"},
	)
	a := NewReferralAttributor(users, newFakeOrders(), newFakeAwards(), &fakeNotifier{}, 200, zerolog.Nop())

	result, err := a.Attach(context.Background(), "newcomer", "new_user", "ref")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if !result.Linked || result.ReferrerID != "ref" {
		t.Errorf("result = %+v, want linked to ref", result)
	}

	u, err := users.Get(context.Background(), "newcomer")
	if err != nil {
		t.Fatal(err)
	}
	if u.ReferredBy == nil || *u.ReferredBy != "ref" {
		t.Errorf("referred_by = %v, want ref", u.ReferredBy)
	}

	// A second link attempt never overwrites the first.
	result, err = a.Attach(context.Background(), "newcomer", "new_user", "other")
	if err != nil {
		t.Fatalf("Attach() repeat error = %v", err)
	}
	if result.Linked {
		t.Error("second attach overwrote the referrer")
	}
	u, _ = users.Get(context.Background(), "newcomer")
	if *u.ReferredBy != "ref" {
		t.Errorf("referred_by = %q after repeat, want ref", *u.ReferredBy)
	}
}

func TestAttachSelfReferralRejected(t *testing.T) {
	users := newFakeUsers(&store.User{ID: "u1"})
	a := NewReferralAttributor(users, newFakeOrders(), newFakeAwards(), &fakeNotifier{}, 200, zerolog.Nop())

	if _, err := a.Attach(context.Background(), "u1", "", "u1"); err == nil {
		t.Fatal("self-referral accepted")
	}
	if _, err := a.Attach(context.Background(), "u1", "", ""); err == nil {
		t.Fatal("empty referrer accepted")
	}
}

func TestAttachUnknownReferrerRejected(t *testing.T) {
	users := newFakeUsers()
	a := NewReferralAttributor(users, newFakeOrders(), newFakeAwards(), &fakeNotifier{}, 200, zerolog.Nop())

	if _, err := a.Attach(context.Background(), "newcomer", "", "ghost"); err == nil {
		t.Fatal("unknown referrer accepted")
	}
}

func TestAttachThenFirstOrderAwards(t *testing.T) {
	users := newFakeUsers(&store.User{ID: "ref"})
	orders := newFakeOrders()
	awards := newFakeAwards()
	a := NewReferralAttributor(users, orders, awards, &fakeNotifier{}, 200, zerolog.Nop())

	if _, err := a.Attach(context.Background(), "buyer", "buyer_name", "ref"); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	order := &store.Order{UserID: "buyer"}
	if err := orders.Create(context.Background(), order); err != nil {
		t.Fatal(err)
	}
	result, err := a.Attribute(context.Background(), order, time.Now())
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	if !result.Awarded || result.ReferrerID != "ref" {
		t.Errorf("result = %+v, want awarded by ref", result)
	}
}

func TestAttributeNoReferrerNoOp(t *testing.T) {
	users := newFakeUsers(&store.User{ID: "buyer"})
	orders := newFakeOrders()
	awards := newFakeAwards()
	a := NewReferralAttributor(users, orders, awards, &fakeNotifier{}, 200, zerolog.Nop())

	order := &store.Order{UserID: "buyer"}
	if err := orders.Create(context.Background(), order); err != nil {
		t.Fatal(err)
	}

	result, err := a.Attribute(context.Background(), order, time.Now())
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	if result.Awarded {
		t.Error("unreferred buyer must not award")
	}
	if len(awards.awarded) != 0 {
		t.Error("award recorded for unreferred buyer")
	}
}

func TestAttributePriorOrdersNoOp(t *testing.T) {
	users := newFakeUsers(
		&store.User{ID: "buyer", ReferredBy: strPtr("ref")},
		&store.User{ID: "ref"},
	)
	orders := newFakeOrders()
	awards := newFakeAwards()
	a := NewReferralAttributor(users, orders, awards, &fakeNotifier{}, 200, zerolog.Nop())

	// An earlier order already exists.
	if err := orders.Create(context.Background(), &store.Order{UserID: "buyer"}); err != nil {
		t.Fatal(err)
	}
	second := &store.Order{UserID: "buyer"}
	if err := orders.Create(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	result, err := a.Attribute(context.Background(), second, time.Now())
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	if result.Awarded {
		t.Error("non-first order must not award")
	}
}
