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

type ElectionHandler struct {
	logger cmtlog.Logger
}

func NewElectionHandler(logger cmtlog.Logger) (h *ElectionHandler) {
	logger = logger.With("module", "electionCmd")
	h = &ElectionHandler{
		logger: logger,
	}
	return
}

func (h *ElectionHandler) Check(ctx context.Context, cmd *tx.Command) error {
	if !cmd.Admin {
		return types.Permission("admin role required")
	}
	if cmd.Type == tx.CommandTypeCreateElection {
		p, err := tx.Payload[tx.CreateElectionTx](cmd)
		if err != nil {
			return err
		}
		if p.Name == "" {
			return types.Validation("election name is required")
		}
	}
	return nil
}

func (h *ElectionHandler) Process(ctx context.Context, svc *election.Service, cmd *tx.Command) (res *abcitypes.ExecTxResult, err error) {
	c := caller(cmd)
	switch cmd.Type {
	case tx.CommandTypeCreateElection:
		p, err1 := tx.Payload[tx.CreateElectionTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		var start time.Time
		if p.StartAt != nil {
			start = *p.StartAt
		}
		e, err1 := svc.CreateElection(ctx, c, p.Name, start, p.DurationHours)
		if err1 != nil {
			return nil, err1
		}
		return Result(e, types.EncodeEventElection(&types.EventElection{
			Guild: e.GuildId, Election: e.ElectionId, Name: e.Name, Action: types.ActionCreate, Status: string(e.Status),
		}))
	case tx.CommandTypeDeleteElection:
		summary, err1 := svc.DeleteElection(ctx, c)
		if err1 != nil {
			return nil, err1
		}
		return Result(summary, types.EncodeEventElection(&types.EventElection{
			Guild: summary.Guild, Election: summary.ElectionId, Name: summary.Name, Action: types.ActionDelete, Status: string(summary.Status),
		}))
	case tx.CommandTypeResetGuild:
		forgot, err1 := svc.ResetGuild(ctx, c)
		if err1 != nil {
			return nil, err1
		}
		h.logger.Info("guild reset", "guild", c.Guild, "documents", len(forgot))
		return Result(map[string]any{"guild": c.Guild, "forgotten": forgot}, types.EncodeEventElection(&types.EventElection{
			Guild: c.Guild, Action: types.ActionReset,
		}))
	}
	return nil, tx.ErrUnsupportedCommandType
}
