// Package lifecycle derives election status from the clock and decides
// which operations each status admits.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/calehh/hac-election/types"
)

type Op string

const (
	OpCreateParty   Op = "create_party"
	OpJoinParty     Op = "join_party"
	OpLeaveParty    Op = "leave_party"
	OpEditParty     Op = "edit_party"
	OpDeleteParty   Op = "delete_party"
	OpCreateBond    Op = "create_bond"
	OpRegisterVoter Op = "register_voter"
	OpBuy           Op = "buy"
	OpSell          Op = "sell"
	OpTransfer      Op = "transfer"
	OpCampaign      Op = "campaign"
	OpVote          Op = "vote"
	OpSettle        Op = "settle"
)

type gate int

const (
	gateRegistration gate = iota
	gateRunning
	gateSettlement
)

var gates = map[Op]gate{
	OpCreateParty:   gateRegistration,
	OpJoinParty:     gateRegistration,
	OpLeaveParty:    gateRegistration,
	OpEditParty:     gateRegistration,
	OpDeleteParty:   gateRegistration,
	OpCreateBond:    gateRegistration,
	OpRegisterVoter: gateRegistration,
	OpBuy:           gateRunning,
	OpSell:          gateRunning,
	OpTransfer:      gateRunning,
	OpCampaign:      gateRunning,
	OpVote:          gateRunning,
	OpSettle:        gateSettlement,
}

// InitialStatus is the status of an election created at now.
func InitialStatus(startAt, now time.Time) types.ElectionStatus {
	if !startAt.After(now) {
		return types.StatusRunning
	}
	return types.StatusScheduled
}

// Refresh moves status forward to what the clock says. It never moves
// backwards and leaves finalized alone. It reports whether status changed.
func Refresh(e *types.Election, now time.Time) bool {
	before := e.Status
	if e.Status == types.StatusScheduled && !now.Before(e.StartAt) {
		e.Status = types.StatusRunning
	}
	if e.Status == types.StatusRunning && !now.Before(e.EndAt()) {
		e.Status = types.StatusEnded
	}
	return e.Status != before
}

func Allow(op Op, status types.ElectionStatus) error {
	g, ok := gates[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	switch g {
	case gateRegistration:
		if status == types.StatusScheduled || status == types.StatusRunning {
			return nil
		}
	case gateRunning:
		if status == types.StatusRunning {
			return nil
		}
	case gateSettlement:
		switch status {
		case types.StatusEnded:
			return nil
		case types.StatusFinalized:
			return types.ErrAlreadySettled
		}
	}
	return types.Validation("%s not allowed while election is %s", op, status)
}

// Check refreshes e against now and gates op on the result.
func Check(e *types.Election, op Op, now time.Time) error {
	Refresh(e, now)
	return Allow(op, e.Status)
}

func ValidateDuration(hours, maxHours int64) error {
	if hours < 1 || hours > maxHours {
		return types.Validation("duration must be between 1 and %d hours", maxHours)
	}
	return nil
}

// Remaining is the time left until the election ends, zero once it has.
func Remaining(e *types.Election, now time.Time) time.Duration {
	d := e.EndAt().Sub(now)
	if d < 0 || e.Status == types.StatusFinalized {
		return 0
	}
	return d
}
