// Package ledger keeps per-guild balances as signed deltas over a base
// balance, and the per-election escrow reservations.
package ledger

import (
	"fmt"

	"github.com/calehh/hac-election/numeric"
	"github.com/calehh/hac-election/types"
)

type Policy struct {
	BaseBalance int64
	MinTransfer int64
}

func (p Policy) Balance(c *types.CommonData, user string) int64 {
	return p.BaseBalance + c.Balances[user]
}

func reserved(e *types.Election, user string) int64 {
	if e == nil {
		return 0
	}
	return e.Reserved[user]
}

// Available is the spendable amount: base + delta - reserved.
func (p Policy) Available(c *types.CommonData, e *types.Election, user string) int64 {
	return p.Balance(c, user) - reserved(e, user)
}

func (p Policy) Debit(c *types.CommonData, e *types.Election, user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit of %d", types.ErrInvalidAmount, amount)
	}
	if avail := p.Available(c, e, user); avail < amount {
		return fmt.Errorf("%w: available %d, required %d", types.ErrInsufficientFunds, avail, amount)
	}
	delta, err := numeric.SafeSub(c.Balances[user], amount)
	if err != nil {
		return err
	}
	c.Balances[user] = delta
	return nil
}

func Credit(c *types.CommonData, user string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit of %d", types.ErrInvalidAmount, amount)
	}
	if amount == 0 {
		return nil
	}
	delta, err := numeric.SafeAdd(c.Balances[user], amount)
	if err != nil {
		return err
	}
	c.Balances[user] = delta
	return nil
}

// ApplyDeltas credits every positive entry; users are visited in sorted
// order so a failure is reproducible.
func ApplyDeltas(c *types.CommonData, deltas map[string]int64) error {
	for _, user := range sortedKeys(deltas) {
		if err := Credit(c, user, deltas[user]); err != nil {
			return fmt.Errorf("credit %s: %w", user, err)
		}
	}
	return nil
}

func (p Policy) CheckTransfer(amount int64) error {
	if amount <= 0 || amount < p.MinTransfer {
		return fmt.Errorf("%w: transfer of %d below minimum %d", types.ErrInvalidAmount, amount, p.MinTransfer)
	}
	return nil
}

func Reserve(e *types.Election, user string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reservation of %d", types.ErrInvalidAmount, amount)
	}
	total, err := numeric.SafeAdd(e.Reserved[user], amount)
	if err != nil {
		return err
	}
	e.Reserved[user] = total
	return nil
}

func Release(e *types.Election, user string, amount int64) {
	left := e.Reserved[user] - amount
	if left <= 0 {
		delete(e.Reserved, user)
		return
	}
	e.Reserved[user] = left
}

// WithReservation holds amount in escrow for the duration of fn. Call it
// inside a single document transform so the hold never outlives a retry.
func WithReservation(e *types.Election, user string, amount int64, fn func() error) (err error) {
	if err = Reserve(e, user, amount); err != nil {
		return
	}
	defer Release(e, user, amount)
	err = fn()
	return
}
