package ledger

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestReserve(t *testing.T) {
	res, err := Reserve(1000, 750)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if res.NewBalance != 250 || res.Reserved != 750 {
		t.Fatalf("unexpected reservation: %+v", res)
	}

	if _, err := Reserve(500, 750); !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}

	if _, err := Reserve(750, 750); err != nil {
		t.Fatalf("exact balance should reserve, got %v", err)
	}

	if _, err := Reserve(100, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestComputeUsage(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{"no time", 0, 0},
		{"clock skew", -5 * time.Second, 0},
		{"one millisecond bills the floor", time.Millisecond, 1},
		{"one second rounds up", time.Second, 1},
		{"five minutes", 5 * time.Minute, 250},
		{"partial minute", 90 * time.Second, 75},
		{"ninety minutes", 90 * time.Minute, 4500},
		{"rounds up fractional token", 61 * time.Second, 51},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeUsage(t0, t0.Add(tc.elapsed), DefaultRate); got != tc.want {
				t.Fatalf("ComputeUsage(%v) = %d, want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestComputeUsageInvalidRateFallsBack(t *testing.T) {
	if got := ComputeUsage(t0, t0.Add(time.Minute), Rate{}); got != 50 {
		t.Fatalf("expected default rate billing, got %d", got)
	}
}

func TestCappedUsage(t *testing.T) {
	if got := CappedUsage(t0, t0.Add(90*time.Minute), DefaultRate, 750); got != 750 {
		t.Fatalf("expected usage capped at 750, got %d", got)
	}
	if got := CappedUsage(t0, t0.Add(5*time.Minute), DefaultRate, 750); got != 250 {
		t.Fatalf("expected uncapped usage 250, got %d", got)
	}
}

func TestTrueUp(t *testing.T) {
	if got := TrueUp(250, 750, 250); got != 750 {
		t.Fatalf("refund case: got %d, want 750", got)
	}
	if got := TrueUp(250, 750, 900); got != 100 {
		t.Fatalf("extra debit case: got %d, want 100", got)
	}
	if got := TrueUp(250, 750, 5000); got != 0 {
		t.Fatalf("balance must clamp at zero, got %d", got)
	}
	if got := TrueUp(0, 750, 750); got != 0 {
		t.Fatalf("exact usage: got %d, want 0", got)
	}
}

func TestTokenConservation(t *testing.T) {
	for _, initial := range []int64{750, 1000, 5000} {
		for _, minutes := range []int{1, 5, 15, 20, 45, 200} {
			res, err := Reserve(initial, 750)
			if err != nil {
				t.Fatalf("reserve failed: %v", err)
			}
			used := ComputeUsage(t0, t0.Add(time.Duration(minutes)*time.Minute), DefaultRate)
			final := TrueUp(res.NewBalance, res.Reserved, used)

			want := initial - used
			if want < 0 {
				want = 0
			}
			if final != want {
				t.Fatalf("initial=%d minutes=%d: final=%d want=%d", initial, minutes, final, want)
			}
		}
	}
}

func TestRefund(t *testing.T) {
	res, _ := Reserve(1000, 750)
	if got := Refund(res.NewBalance, res.Reserved); got != 1000 {
		t.Fatalf("refund should restore balance, got %d", got)
	}
}
