package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telecart-dev/reward-engine/store"
)

// In-memory stores mimicking the guarded-update semantics of the SQL layer.

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*store.User
}

func newFakeUsers(users ...*store.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*store.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(ctx context.Context, id string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetOrCreate(ctx context.Context, id, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	u := &store.User{ID: id, Username: username}
	f.users[id] = u
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) ClaimWheelSpin(ctx context.Context, userID string, reward int64, now time.Time, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, fmt.Errorf("user %s not found", userID)
	}
	if u.LastSpinTime != nil && now.Sub(*u.LastSpinTime) < window {
		return false, nil
	}
	t := now
	u.LastSpinTime = &t
	u.WalletBalance += reward
	return true, nil
}

func (f *fakeUsers) ClaimSlotsPlay(ctx context.Context, userID string, now time.Time, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, fmt.Errorf("user %s not found", userID)
	}
	if u.LastSlotsTime != nil && now.Sub(*u.LastSlotsTime) < window {
		return false, nil
	}
	t := now
	u.LastSlotsTime = &t
	return true, nil
}

func (f *fakeUsers) ApplyCheckIn(ctx context.Context, userID string, prev *time.Time, now time.Time, streak int, points int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, fmt.Errorf("user %s not found", userID)
	}
	if !sameTimePtr(u.LastCheckInTime, prev) {
		return false, nil
	}
	t := now
	u.LastCheckInTime = &t
	u.CheckInStreak = streak
	u.WalletBalance += points
	return true, nil
}

func (f *fakeUsers) SetReferrer(ctx context.Context, userID, referrerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, fmt.Errorf("user %s not found", userID)
	}
	if u.ReferredBy != nil || userID == referrerID {
		return false, nil
	}
	u.ReferredBy = &referrerID
	return true, nil
}

func sameTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type fakeRewards struct {
	mu      sync.Mutex
	entries []store.RewardEntry
}

func (f *fakeRewards) Append(ctx context.Context, entry *store.RewardEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRewards) byKind(kind store.RewardKind) []store.RewardEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.RewardEntry
	for _, e := range f.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeSettings struct {
	winRate float64
	label   string
	code    string
}

func (f *fakeSettings) SlotsWinRate(ctx context.Context) float64 { return f.winRate }

func (f *fakeSettings) SlotsPrize(ctx context.Context) (string, string) { return f.label, f.code }

type fakeProducts struct {
	mu       sync.Mutex
	products map[int64]*store.Product
	order    []int64
	onSale   map[int64]time.Time
}

func newFakeProducts(products ...*store.Product) *fakeProducts {
	f := &fakeProducts{
		products: make(map[int64]*store.Product),
		onSale:   make(map[int64]time.Time),
	}
	for _, p := range products {
		f.products[p.ID] = p
		f.order = append(f.order, p.ID)
	}
	return f
}

func (f *fakeProducts) Get(ctx context.Context, id int64) (*store.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	copied := *p
	copied.Variations = append([]store.Variation(nil), p.Variations...)
	return &copied, nil
}

func (f *fakeProducts) DecrementStock(ctx context.Context, productID, qty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return fmt.Errorf("product %d not found", productID)
	}
	p.Stock -= qty
	if p.Stock < 0 {
		p.Stock = 0
	}
	return nil
}

func (f *fakeProducts) DecrementVariationStock(ctx context.Context, variationID, qty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		for i := range p.Variations {
			if p.Variations[i].ID == variationID {
				p.Variations[i].Stock -= qty
				if p.Variations[i].Stock < 0 {
					p.Variations[i].Stock = 0
				}
				return nil
			}
		}
	}
	return fmt.Errorf("variation %d not found", variationID)
}

func (f *fakeProducts) ResetFlashSales(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSale = make(map[int64]time.Time)
	for _, p := range f.products {
		p.IsFlashSale = false
		p.FlashSaleEndTime = nil
	}
	return nil
}

func (f *fakeProducts) SampleEligible(ctx context.Context, minPrice int64, limit int) ([]store.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Product
	for _, id := range f.order {
		p := f.products[id]
		if p.Stock > 0 && p.Price > minPrice {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeProducts) MarkFlashSale(ctx context.Context, ids []int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		p, ok := f.products[id]
		if !ok {
			return fmt.Errorf("product %d not found", id)
		}
		p.IsFlashSale = true
		t := until
		p.FlashSaleEndTime = &t
		f.onSale[id] = until
	}
	return nil
}

type fakePromos struct {
	mu     sync.Mutex
	promos map[string]*store.PromoCode
}

func newFakePromos(promos ...*store.PromoCode) *fakePromos {
	f := &fakePromos{promos: make(map[string]*store.PromoCode)}
	for _, p := range promos {
		f.promos[p.Code] = p
	}
	return f
}

func (f *fakePromos) FindByCode(ctx context.Context, code string) (*store.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promos[code]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakePromos) ConsumeUsage(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promos[code]
	if !ok || !p.IsActive {
		return false, nil
	}
	if p.MaxUsage != nil && p.UsedCount >= *p.MaxUsage {
		return false, nil
	}
	p.UsedCount++
	return true, nil
}

func (f *fakePromos) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.promos {
		if p.IsActive && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

type fakeOrders struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*store.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{nextID: 1, orders: make(map[int64]*store.Order)}
}

func (f *fakeOrders) Create(ctx context.Context, order *store.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.ID = f.nextID
	f.nextID++
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	copied := *order
	copied.Items = append([]store.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeOrders) Get(ctx context.Context, id int64) (*store.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d not found", id)
	}
	copied := *o
	copied.Items = append([]store.OrderItem(nil), o.Items...)
	return &copied, nil
}

func (f *fakeOrders) CountByUser(ctx context.Context, userID string, excludeOrderID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, o := range f.orders {
		if o.UserID == userID && o.ID != excludeOrderID {
			n++
		}
	}
	return n, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id int64, from, to store.OrderStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type fakeAwards struct {
	mu      sync.Mutex
	awarded map[string]string // buyerID -> referrerID
}

func newFakeAwards() *fakeAwards {
	return &fakeAwards{awarded: make(map[string]string)}
}

func (f *fakeAwards) Award(ctx context.Context, buyerID, referrerID string, orderID, amount int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.awarded[buyerID]; ok {
		return false, nil
	}
	f.awarded[buyerID] = referrerID
	return true, nil
}

func (f *fakeAwards) IsAwarded(ctx context.Context, buyerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.awarded[buyerID]
	return ok, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string // "recipient: text"
}

func (f *fakeNotifier) Notify(ctx context.Context, recipientID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipientID+": "+text)
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}
