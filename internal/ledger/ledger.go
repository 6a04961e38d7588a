// Package ledger holds the player's single currency balance.
package ledger

import (
	"math"

	"github.com/talgya/homestead/internal/invariant"
)

// Ledger is the shared money balance. Every mutation is a single
// check-and-deduct or an unconditional credit; the balance never goes negative.
type Ledger struct {
	balance int
}

// New creates a ledger with a starting balance (negative values clamp to 0).
func New(starting int) *Ledger {
	if starting < 0 {
		starting = 0
	}
	return &Ledger{balance: starting}
}

// Balance returns the current balance.
func (l *Ledger) Balance() int {
	return l.balance
}

// CanAfford reports whether amount could be spent right now. It never mutates.
func (l *Ledger) CanAfford(amount int) bool {
	return amount >= 0 && l.balance >= amount
}

// TrySpend deducts amount iff the balance covers it.
func (l *Ledger) TrySpend(amount int) bool {
	if amount < 0 {
		invariant.Violated("negative spend", "amount", amount)
		return false
	}
	if l.balance < amount {
		return false
	}
	l.balance -= amount
	return true
}

// Credit adds amount to the balance. Negative amounts are ignored.
func (l *Ledger) Credit(amount int) {
	if amount < 0 {
		invariant.Violated("negative credit", "amount", amount)
		return
	}
	l.balance += amount
}

// CreditScaled credits Scale(base, multiplier) and returns the amount credited.
func (l *Ledger) CreditScaled(base int, multiplier float64) int {
	amount := Scale(base, multiplier)
	l.Credit(amount)
	return amount
}

// Set overwrites the balance; used when restoring a saved game.
func (l *Ledger) Set(balance int) {
	if balance < 0 {
		balance = 0
	}
	l.balance = balance
}

// Scale applies a multiplier to a whole amount, rounding half to even and
// flooring the result at zero.
func Scale(amount int, multiplier float64) int {
	v := math.RoundToEven(float64(amount) * multiplier)
	if v < 0 {
		return 0
	}
	return int(v)
}
