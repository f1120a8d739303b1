package handler

import (
	"context"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

type PartyHandler struct {
	logger cmtlog.Logger
}

func NewPartyHandler(logger cmtlog.Logger) (h *PartyHandler) {
	logger = logger.With("module", "partyCmd")
	h = &PartyHandler{
		logger: logger,
	}
	return
}

type JoinRequestReceipt struct {
	Request string               `json:"request"`
	Expires time.Time            `json:"expires"`
	Join    election.JoinRequest `json:"join"`
}

func (h *PartyHandler) Check(ctx context.Context, cmd *tx.Command) error {
	switch cmd.Type {
	case tx.CommandTypeCreateParty:
		p, err := tx.Payload[tx.CreatePartyTx](cmd)
		if err != nil {
			return err
		}
		if p.Name == "" {
			return types.Validation("party name is required")
		}
	case tx.CommandTypeRequestJoin, tx.CommandTypeDeleteParty:
		p, err := tx.Payload[tx.PartyTx](cmd)
		if err != nil {
			return err
		}
		if p.Party == "" {
			return types.Validation("party is required")
		}
	case tx.CommandTypeDecideJoin:
		p, err := tx.Payload[tx.DecideJoinTx](cmd)
		if err != nil {
			return err
		}
		if p.Request == "" {
			return types.Validation("request id is required")
		}
	case tx.CommandTypeEditParty:
		p, err := tx.Payload[tx.EditPartyTx](cmd)
		if err != nil {
			return err
		}
		if p.Party == "" {
			return types.Validation("party is required")
		}
	}
	return nil
}

func partyEvent(r *election.PartyReceipt, party string) abcitypes.Event {
	return types.EncodeEventParty(&types.EventParty{
		Guild: r.Guild, Election: r.ElectionId, Party: party, User: r.User, Action: r.Action, Burned: r.Burned,
	})
}

func (h *PartyHandler) Process(ctx context.Context, svc *election.Service, cmd *tx.Command) (res *abcitypes.ExecTxResult, err error) {
	c := caller(cmd)
	var r *election.PartyReceipt
	var party string
	switch cmd.Type {
	case tx.CommandTypeCreateParty:
		p, err1 := tx.Payload[tx.CreatePartyTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err = svc.CreateParty(ctx, c, p.Name, p.Emoji, p.Agenda)
	case tx.CommandTypeRequestJoin:
		p, err1 := tx.Payload[tx.PartyTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		id, req, expires, err1 := svc.RequestJoin(ctx, c, p.Party)
		if err1 != nil {
			return nil, err1
		}
		return Result(&JoinRequestReceipt{Request: id, Expires: expires, Join: req})
	case tx.CommandTypeDecideJoin:
		p, err1 := tx.Payload[tx.DecideJoinTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		req, err1 := svc.PendingJoin(p.Request)
		if err1 != nil {
			return nil, err1
		}
		party = req.Party
		r, err = svc.DecideJoin(ctx, c, p.Request, p.Approve)
		if err == nil && !p.Approve {
			return Result(r)
		}
	case tx.CommandTypeLeaveParty:
		r, err = svc.LeaveParty(ctx, c)
	case tx.CommandTypeEditParty:
		p, err1 := tx.Payload[tx.EditPartyTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err = svc.EditParty(ctx, c, p.Party, p.Agenda, p.Emoji)
	case tx.CommandTypeDeleteParty:
		p, err1 := tx.Payload[tx.PartyTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err = svc.DeleteParty(ctx, c, p.Party)
	default:
		return nil, tx.ErrUnsupportedCommandType
	}
	if err != nil {
		return nil, err
	}
	if r.Party != nil {
		party = r.Party.Name
	}
	return Result(r, partyEvent(r, party))
}
