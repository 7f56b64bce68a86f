package store

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User is a storefront customer. The ID is the external auth subject and is
// created lazily on first contact.
type User struct {
	ID              string     `gorm:"primaryKey;size:64" json:"id"`
	Username        string     `gorm:"size:128" json:"username"`
	WalletBalance   int64      `gorm:"not null;default:0" json:"wallet_balance"`
	LastSpinTime    *time.Time `json:"last_spin_time"`
	LastSlotsTime   *time.Time `json:"last_slots_time"`
	CheckInStreak   int        `gorm:"not null;default:0" json:"check_in_streak"`
	LastCheckInTime *time.Time `json:"last_check_in_time"`
	// ReferredBy is set at most once and never changed afterwards.
	ReferredBy *string   `gorm:"size:64" json:"referred_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Product is a catalog entry. Base Stock is used when no variation matches a
// line item; each variation carries its own price and stock.
type Product struct {
	ID               int64       `gorm:"primaryKey" json:"id"`
	Title            string      `gorm:"size:255;not null" json:"title"`
	Price            int64       `gorm:"not null" json:"price"`
	Stock            int64       `gorm:"not null;default:0" json:"stock"`
	IsFlashSale      bool        `gorm:"not null;default:false" json:"is_flash_sale"`
	FlashSaleEndTime *time.Time  `json:"flash_sale_end_time,omitempty"`
	Variations       []Variation `gorm:"foreignKey:ProductID" json:"variations,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Variation is a named, independently stocked and priced sub-option of a
// product. Position preserves the author-defined ordering, which matters for
// first-match resolution of ambiguous selections.
type Variation struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	ProductID int64  `gorm:"index;not null" json:"product_id"`
	Position  int    `gorm:"not null;default:0" json:"position"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Price     int64  `gorm:"not null" json:"price"`
	Stock     int64  `gorm:"not null;default:0" json:"stock"`
}

// OrderStatus enumerates the one-way order lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// CanTransitionTo reports whether the status change is a legal forward move.
// Terminal states (delivered, cancelled) accept nothing.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderShipped || next == OrderCancelled
	case OrderShipped:
		return next == OrderDelivered || next == OrderCancelled
	default:
		return false
	}
}

// Order is a snapshot taken at placement time: item prices and titles are
// copied from the catalog and stay immune to later product edits.
type Order struct {
	ID        int64       `gorm:"primaryKey" json:"id"`
	UserID    string      `gorm:"index;size:64;not null" json:"user_id"`
	Items     []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	Total     int64       `gorm:"not null" json:"total"`
	Discount  int64       `gorm:"not null;default:0" json:"discount"`
	PromoCode string      `gorm:"size:40" json:"promo_code,omitempty"`
	Status    OrderStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderItem is one line of an order. SelectedVariations holds the raw
// selection values as a JSON array of strings.
type OrderItem struct {
	ID                 int64  `gorm:"primaryKey" json:"id"`
	OrderID            int64  `gorm:"index;not null" json:"order_id"`
	ProductID          int64  `gorm:"not null" json:"product_id"`
	Title              string `gorm:"size:255;not null" json:"title"`
	Quantity           int64  `gorm:"not null" json:"quantity"`
	Price              int64  `gorm:"not null" json:"price"`
	SelectedVariations string `gorm:"size:1024" json:"selected_variations,omitempty"`
}

// SelectedValues decodes the JSON-encoded selection values. A malformed or
// empty payload decodes to nil, which reconcilers treat as "no selection".
func (i *OrderItem) SelectedValues() []string {
	if i.SelectedVariations == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(i.SelectedVariations), &values); err != nil {
		return nil
	}
	return values
}

// EncodeSelectedValues stores the selection values back as JSON.
func (i *OrderItem) EncodeSelectedValues(values []string) {
	if len(values) == 0 {
		i.SelectedVariations = ""
		return
	}
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	i.SelectedVariations = string(data)
}

// PromoType enumerates discount computation modes.
type PromoType string

const (
	PromoFixed   PromoType = "fixed"
	PromoPercent PromoType = "percent"
)

// PromoCode is a discount code. Codes are stored uppercase; lookups normalize
// the input so matching is case-insensitive.
type PromoCode struct {
	Code      string          `gorm:"primaryKey;size:40" json:"code"`
	Type      PromoType       `gorm:"size:16;not null" json:"type"`
	Value     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	MinSpend  int64           `gorm:"not null;default:0" json:"min_spend"`
	MaxUsage  *int64          `json:"max_usage,omitempty"`
	UsedCount int64           `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RewardKind tags reward history entries.
type RewardKind string

const (
	RewardWheelSpin     RewardKind = "wheel_spin"
	RewardSlotsCoupon   RewardKind = "slots_coupon"
	RewardDailyCheckIn  RewardKind = "daily_checkin"
	RewardReferralBonus RewardKind = "referral_bonus"
)

// RewardEntry is one row of a user's append-only reward history. Coupon wins
// carry a zero amount plus the coupon label/code instead of currency.
type RewardEntry struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	UserID      string     `gorm:"index;size:64;not null" json:"user_id"`
	Kind        RewardKind `gorm:"size:24;not null" json:"kind"`
	Amount      int64      `gorm:"not null;default:0" json:"amount"`
	CouponLabel string     `gorm:"size:128" json:"coupon_label,omitempty"`
	CouponCode  string     `gorm:"size:64" json:"coupon_code,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ReferralAward records that a referred buyer's first order has been credited.
// The buyer ID is the primary key, so a second insert for the same buyer hits
// a duplicate-key error; that is the dedup guarantee.
type ReferralAward struct {
	BuyerID    string    `gorm:"primaryKey;size:64" json:"buyer_id"`
	ReferrerID string    `gorm:"index;size:64;not null" json:"referrer_id"`
	OrderID    int64     `gorm:"not null" json:"order_id"`
	Amount     int64     `gorm:"not null" json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
