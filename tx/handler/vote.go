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

type VoteHandler struct {
	logger cmtlog.Logger
}

func NewVoteHandler(logger cmtlog.Logger) (h *VoteHandler) {
	logger = logger.With("module", "voteCmd")
	h = &VoteHandler{
		logger: logger,
	}
	return
}

type BallotReceipt struct {
	Ticket  string    `json:"ticket"`
	Expires time.Time `json:"expires"`
}

func (h *VoteHandler) Check(ctx context.Context, cmd *tx.Command) error {
	switch cmd.Type {
	case tx.CommandTypeRegisterVoter:
		p, err := tx.Payload[tx.RegisterVoterTx](cmd)
		if err != nil {
			return err
		}
		if p.PublicKey == "" {
			return types.Validation("public key is required")
		}
	case tx.CommandTypeVote, tx.CommandTypePrepareVote:
		p, err := tx.Payload[tx.VoteTx](cmd)
		if err != nil {
			return err
		}
		if p.Party == "" || p.Signature == "" {
			return types.Validation("party and signature are required")
		}
	case tx.CommandTypeConfirmVote:
		p, err := tx.Payload[tx.ConfirmVoteTx](cmd)
		if err != nil {
			return err
		}
		if p.Ticket == "" {
			return types.Validation("ticket is required")
		}
	}
	return nil
}

func voteEvent(r *election.VoteReceipt) abcitypes.Event {
	return types.EncodeEventVote(&types.EventVote{Guild: r.Guild, Election: r.ElectionId, Voter: r.Voter, Action: r.Action})
}

func (h *VoteHandler) Process(ctx context.Context, svc *election.Service, cmd *tx.Command) (res *abcitypes.ExecTxResult, err error) {
	c := caller(cmd)
	var r *election.VoteReceipt
	switch cmd.Type {
	case tx.CommandTypeRegisterVoter:
		p, err1 := tx.Payload[tx.RegisterVoterTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err = svc.RegisterVoter(ctx, c, p.PublicKey)
	case tx.CommandTypeVote:
		p, err1 := tx.Payload[tx.VoteTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err = svc.Vote(ctx, c, p.Party, p.Signature)
	case tx.CommandTypePrepareVote:
		p, err1 := tx.Payload[tx.VoteTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		id, expires, err1 := svc.PrepareVote(ctx, c, p.Party, p.Signature)
		if err1 != nil {
			return nil, err1
		}
		return Result(&BallotReceipt{Ticket: id, Expires: expires})
	case tx.CommandTypeConfirmVote:
		p, err1 := tx.Payload[tx.ConfirmVoteTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err = svc.ConfirmVote(ctx, c, p.Ticket)
	default:
		return nil, tx.ErrUnsupportedCommandType
	}
	if err != nil {
		return nil, err
	}
	return Result(r, voteEvent(r))
}
