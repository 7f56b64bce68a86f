package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/store"
)

func catalogOf(n int, price int64) []*store.Product {
	products := make([]*store.Product, n)
	for i := 0; i < n; i++ {
		products[i] = &store.Product{
			ID:    int64(i + 1),
			Title: fmt.Sprintf("Item %d", i+1),
			Price: price,
			Stock: 10,
		}
	}
	return products
}

func newTestRotator(products *fakeProducts, promos *fakePromos, seed int64) *ScarcityRotator {
	return NewScarcityRotator(products, promos, rand.New(rand.NewSource(seed)), 500, 4*time.Hour, zerolog.Nop())
}

func TestRotateSelectsBetweenFiveAndTen(t *testing.T) {
	products := newFakeProducts(catalogOf(20, 1000)...)
	r := newTestRotator(products, newFakePromos(), 1)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		report, err := r.Rotate(context.Background(), now)
		if err != nil {
			t.Fatalf("Rotate() error = %v", err)
		}
		if report.Selected < 5 || report.Selected > 10 {
			t.Fatalf("selected = %d, want 5..10", report.Selected)
		}
		if len(products.onSale) != report.Selected {
			t.Fatalf("%d products flagged, report says %d", len(products.onSale), report.Selected)
		}
	}
}

func TestRotateClearsPreviousSelection(t *testing.T) {
	products := newFakeProducts(catalogOf(20, 1000)...)
	r := newTestRotator(products, newFakePromos(), 1)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if _, err := r.Rotate(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Rotate(context.Background(), now.Add(4*time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Only the second rotation's picks may be flagged.
	flagged := 0
	for _, id := range products.order {
		p, _ := products.Get(context.Background(), id)
		if p.IsFlashSale {
			flagged++
		}
	}
	if flagged != len(products.onSale) {
		t.Errorf("%d products flagged, want %d from latest rotation", flagged, len(products.onSale))
	}
	if flagged > 10 {
		t.Errorf("stale flags survived reset: %d flagged", flagged)
	}
}

func TestRotateFewerEligibleTakesAll(t *testing.T) {
	products := newFakeProducts(catalogOf(3, 1000)...)
	r := newTestRotator(products, newFakePromos(), 1)

	report, err := r.Rotate(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if report.Selected != 3 {
		t.Errorf("selected = %d, want all 3 eligible", report.Selected)
	}
}

func TestRotateSkipsCheapAndOutOfStock(t *testing.T) {
	cheap := &store.Product{ID: 100, Title: "Sticker", Price: 50, Stock: 99}
	empty := &store.Product{ID: 101, Title: "Gone", Price: 2000, Stock: 0}
	products := newFakeProducts(append(catalogOf(6, 1000), cheap, empty)...)
	r := newTestRotator(products, newFakePromos(), 1)

	if _, err := r.Rotate(context.Background(), time.Now()); err != nil {
		t.Fatal(err)
	}

	if _, ok := products.onSale[100]; ok {
		t.Error("below-threshold product selected")
	}
	if _, ok := products.onSale[101]; ok {
		t.Error("out-of-stock product selected")
	}
}

func TestRotateEndTime(t *testing.T) {
	products := newFakeProducts(catalogOf(8, 1000)...)
	r := newTestRotator(products, newFakePromos(), 1)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	report, err := r.Rotate(context.Background(), now)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	want := now.Add(4 * time.Hour)
	if !report.EndsAt.Equal(want) {
		t.Errorf("EndsAt = %v, want %v", report.EndsAt, want)
	}
	for id, until := range products.onSale {
		if !until.Equal(want) {
			t.Errorf("product %d ends at %v, want %v", id, until, want)
		}
	}
}

func TestCleanupPromosDeactivatesExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	promos := newFakePromos(
		&store.PromoCode{Code: "OLD", IsActive: true, ExpiresAt: &past},
		&store.PromoCode{Code: "LIVE", IsActive: true, ExpiresAt: &future},
		&store.PromoCode{Code: "FOREVER", IsActive: true},
	)
	r := newTestRotator(newFakeProducts(), promos, 1)

	n, err := r.CleanupPromos(context.Background(), now)
	if err != nil {
		t.Fatalf("CleanupPromos() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deactivated = %d, want 1", n)
	}

	live, _ := promos.FindByCode(context.Background(), "LIVE")
	if !live.IsActive {
		t.Error("unexpired code deactivated")
	}
	old, _ := promos.FindByCode(context.Background(), "OLD")
	if old.IsActive {
		t.Error("expired code still active")
	}
}

func TestRotateConcurrentRuns(t *testing.T) {
	products := newFakeProducts(catalogOf(30, 1000)...)
	r := newTestRotator(products, newFakePromos(), 9)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				report, err := r.Rotate(context.Background(), now)
				if err != nil {
					t.Errorf("Rotate() error = %v", err)
					return
				}
				if report.Selected < 5 || report.Selected > 10 {
					t.Errorf("selected = %d, want 5..10", report.Selected)
					return
				}
			}
		}()
	}
	wg.Wait()
}
