package handler

import (
	"context"
	"sort"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

type SettleHandler struct {
	logger cmtlog.Logger
}

func NewSettleHandler(logger cmtlog.Logger) (h *SettleHandler) {
	logger = logger.With("module", "settleCmd")
	h = &SettleHandler{
		logger: logger,
	}
	return
}

func (h *SettleHandler) Check(ctx context.Context, cmd *tx.Command) error {
	if !cmd.Admin {
		return types.Permission("admin role required")
	}
	return nil
}

func (h *SettleHandler) events(ctx context.Context, svc *election.Service, r *election.SettleReceipt) []abcitypes.Event {
	rec := r.Record
	events := []abcitypes.Event{types.EncodeEventSettle(&types.EventSettle{
		Guild:        r.Guild,
		Election:     r.ElectionId,
		Winner:       rec.Winner,
		CombinedPool: rec.CombinedPool,
		FinalPrice:   rec.FinalPrice,
		Burned:       rec.Burned,
		Holders:      len(rec.Liquidations),
	})}
	if !r.Applied {
		return events
	}
	users := make([]string, 0, len(rec.Deltas))
	for u := range rec.Deltas {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		v, err := svc.Balance(ctx, r.Guild, u)
		if err != nil {
			h.logger.Error("load balance fail", "guild", r.Guild, "user", u, "err", err)
			continue
		}
		events = append(events, balanceEvent(r.Guild, u, rec.Deltas[u], v.Available))
	}
	return events
}

func (h *SettleHandler) Process(ctx context.Context, svc *election.Service, cmd *tx.Command) (res *abcitypes.ExecTxResult, err error) {
	c := caller(cmd)
	var r *election.SettleReceipt
	switch cmd.Type {
	case tx.CommandTypeSettle:
		r, err = svc.Settle(ctx, c)
	case tx.CommandTypeReconcileSettlement:
		r, err = svc.ReconcileSettlement(ctx, c)
	default:
		return nil, tx.ErrUnsupportedCommandType
	}
	if err != nil {
		return nil, err
	}
	return Result(r, h.events(ctx, svc, r)...)
}
