// Package ledger holds the token accounting rules for interview sessions.
// Every function is pure: balances and timestamps come in, amounts go out.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrInvalidAmount      = errors.New("token amount must not be negative")
)

// Rate is a billing rate expressed as Tokens per Per of wall-clock time.
type Rate struct {
	Tokens int64
	Per    time.Duration
}

// DefaultRate bills 50 tokens per minute.
var DefaultRate = Rate{Tokens: 50, Per: time.Minute}

func (r Rate) valid() bool {
	return r.Tokens > 0 && r.Per > 0
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
	Reserved   int64
	NewBalance int64
}

// Reserve debits minRequired from balance, failing when the balance does not cover it.
func Reserve(balance, minRequired int64) (Reservation, error) {
	if minRequired < 0 {
		return Reservation{}, ErrInvalidAmount
	}
	if balance < minRequired {
		return Reservation{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientTokens, balance, minRequired)
	}
	return Reservation{Reserved: minRequired, NewBalance: balance - minRequired}, nil
}

// ComputeUsage bills the elapsed time between startedAt and now, rounded up.
// Any positive elapsed time costs at least one token; a clock that runs backwards costs nothing.
func ComputeUsage(startedAt, now time.Time, rate Rate) int64 {
	if !rate.valid() {
		rate = DefaultRate
	}
	elapsed := now.Sub(startedAt)
	if elapsed <= 0 {
		return 0
	}
	ms := elapsed.Milliseconds()
	perMs := rate.Per.Milliseconds()
	if perMs <= 0 {
		perMs = 1
	}
	used := ceilDiv(ms*rate.Tokens, perMs)
	if used < 1 {
		used = 1
	}
	return used
}

// CappedUsage is ComputeUsage clamped to the prepaid amount. Sessions that were never
// closed cleanly are not billed past their reservation.
func CappedUsage(startedAt, now time.Time, rate Rate, prepaid int64) int64 {
	used := ComputeUsage(startedAt, now, rate)
	if used > prepaid {
		return prepaid
	}
	return used
}

// TrueUp reconciles a prepaid reservation against actual usage.
// The returned balance is never negative.
func TrueUp(balance, prepaid, actualUsed int64) int64 {
	next := balance + prepaid - actualUsed
	if next < 0 {
		return 0
	}
	return next
}

// Refund returns a reservation in full, used when the reserved session never materialised.
func Refund(balance, reserved int64) int64 {
	return balance + reserved
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
