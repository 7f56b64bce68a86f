package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/db/redis"
)

type mapKV map[string]string

func (m mapKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.ErrKeyMissing
	}
	return v, nil
}

type failingKV struct{}

func (failingKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("connection refused")
}

func TestSlotsWinRateConfigured(t *testing.T) {
	s := New(mapKV{KeySlotsWinRate: "0.45"}, zerolog.Nop())
	if got := s.SlotsWinRate(context.Background()); got != 0.45 {
		t.Errorf("SlotsWinRate() = %v, want 0.45", got)
	}
}

func TestSlotsWinRateDefaults(t *testing.T) {
	cases := []struct {
		name string
		kv   KV
	}{
		{"missing key", mapKV{}},
		{"unparsable", mapKV{KeySlotsWinRate: "almost certainly"}},
		{"above one", mapKV{KeySlotsWinRate: "1.5"}},
		{"negative", mapKV{KeySlotsWinRate: "-0.1"}},
		{"backend failure", failingKV{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.kv, zerolog.Nop())
			if got := s.SlotsWinRate(context.Background()); got != DefaultSlotsWinRate {
				t.Errorf("SlotsWinRate() = %v, want default %v", got, DefaultSlotsWinRate)
			}
		})
	}
}

func TestSlotsPrizeConfigured(t *testing.T) {
	s := New(mapKV{
		KeySlotsPrizeLabel: "Free shipping",
		KeySlotsPrizeCode:  "SHIPFREE",
	}, zerolog.Nop())

	label, code := s.SlotsPrize(context.Background())
	if label != "Free shipping" || code != "SHIPFREE" {
		t.Errorf("SlotsPrize() = %q/%q, want configured values", label, code)
	}
}

func TestSlotsPrizeDefaults(t *testing.T) {
	s := New(mapKV{}, zerolog.Nop())

	label, code := s.SlotsPrize(context.Background())
	if label != DefaultSlotsPrizeLabel || code != DefaultSlotsPrizeCode {
		t.Errorf("SlotsPrize() = %q/%q, want defaults", label, code)
	}
}
