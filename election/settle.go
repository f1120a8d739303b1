package election

import (
	"context"

	"github.com/calehh/hac-election/settlement"
	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/types"
)

type SettleReceipt struct {
	Guild      string                  `json:"guild"`
	ElectionId string                  `json:"electionId"`
	Record     *types.SettlementRecord `json:"record"`
	Applied    bool                    `json:"applied"`
}

// Settle finalizes an ended election and pays out the result. The election
// write lands first, then the ledger is credited once.
func (s *Service) Settle(ctx context.Context, caller Caller) (r *SettleReceipt, err error) {
	if err = requireAdmin(caller); err != nil {
		return
	}
	docs, snap, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if snap.Status == types.StatusFinalized {
		return nil, types.ErrAlreadySettled
	}

	var rec *types.SettlementRecord
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		box, _, err := state.Get[types.VoteBox](ctx, s.store, docs.entry.VotesDocId)
		if err != nil {
			return err
		}
		rec, err = settlement.Settle(e, box.Votes, s.cfg.Settlement, s.clock())
		return err
	})
	if err != nil {
		return
	}
	s.logger.Info("election finalized", "guild", caller.Guild, "election", e.ElectionId, "winner", rec.Winner, "pool", rec.CombinedPool, "burned", rec.Burned)

	applied, err := s.applySettlement(ctx, docs, e.ElectionId, rec)
	if err != nil {
		s.logger.Error("settlement credit fail", "guild", caller.Guild, "election", e.ElectionId, "err", err)
		return nil, &types.PartialFailureError{Completed: []string{stepElectionFinal}, Failed: stepLedgerSettlement, Err: err}
	}
	return &SettleReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, Record: rec, Applied: applied}, nil
}

func (s *Service) applySettlement(ctx context.Context, docs guildDocs, electionId string, rec *types.SettlementRecord) (applied bool, err error) {
	_, err = s.updateCommon(ctx, docs, func(c *types.CommonData) error {
		var err1 error
		applied, err1 = settlement.ApplyToLedger(c, electionId, rec, s.clock())
		return err1
	})
	return
}

// ReconcileSettlement credits a finalized election's recorded result if the
// ledger has not seen it yet. It is the recovery path after a partial
// settlement and does nothing when the credit already landed.
func (s *Service) ReconcileSettlement(ctx context.Context, caller Caller) (r *SettleReceipt, err error) {
	if err = requireAdmin(caller); err != nil {
		return
	}
	docs, e, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if e.Status != types.StatusFinalized || e.Settlement == nil {
		return nil, types.Validation("election has not been settled")
	}
	applied, err := s.applySettlement(ctx, docs, e.ElectionId, e.Settlement)
	if err != nil {
		return
	}
	s.logger.Info("settlement reconciled", "guild", caller.Guild, "election", e.ElectionId, "applied", applied)
	return &SettleReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, Record: e.Settlement, Applied: applied}, nil
}
