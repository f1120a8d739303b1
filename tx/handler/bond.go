package handler

import (
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

// BondHandler runs every command that moves coins: bond creation, trades,
// vault transfers and campaign posts.
type BondHandler struct {
	logger cmtlog.Logger
}

func NewBondHandler(logger cmtlog.Logger) (h *BondHandler) {
	logger = logger.With("module", "bondCmd")
	h = &BondHandler{
		logger: logger,
	}
	return
}

func positive(v int64, what string) error {
	if v <= 0 {
		return types.Validation("%s must be positive", what)
	}
	return nil
}

func (h *BondHandler) Check(ctx context.Context, cmd *tx.Command) error {
	switch cmd.Type {
	case tx.CommandTypeCreateBond:
		p, err := tx.Payload[tx.CreateBondTx](cmd)
		if err != nil {
			return err
		}
		if err = positive(p.InitialPool, "initial pool"); err != nil {
			return err
		}
		return positive(p.TotalTokens, "token supply")
	case tx.CommandTypeBuy:
		p, err := tx.Payload[tx.BuyTx](cmd)
		if err != nil {
			return err
		}
		return positive(p.CoinSpend, "spend")
	case tx.CommandTypeSell:
		p, err := tx.Payload[tx.SellTx](cmd)
		if err != nil {
			return err
		}
		return positive(p.Tokens, "tokens")
	case tx.CommandTypeTransfer:
		p, err := tx.Payload[tx.TransferTx](cmd)
		if err != nil {
			return err
		}
		return positive(p.Amount, "amount")
	case tx.CommandTypeCampaign:
		p, err := tx.Payload[tx.CampaignTx](cmd)
		if err != nil {
			return err
		}
		if p.Headline == "" {
			return types.Validation("headline is required")
		}
	}
	return nil
}

func tradeEvents(r *election.TradeReceipt) []abcitypes.Event {
	delta := -r.Coins
	if r.Side == types.SideSell {
		delta = r.Coins
	}
	return []abcitypes.Event{
		types.EncodeEventTrade(&types.EventTrade{
			Guild:     r.Guild,
			Election:  r.ElectionId,
			Party:     r.Party,
			User:      r.User,
			Side:      r.Side,
			Coins:     r.Coins,
			Tokens:    r.Tokens,
			Pool:      r.Pool,
			Remaining: r.Remaining,
			Price:     r.Price,
			Timestamp: r.Timestamp,
		}),
		balanceEvent(r.Guild, r.User, delta, r.Balance),
	}
}

func (h *BondHandler) Process(ctx context.Context, svc *election.Service, cmd *tx.Command) (res *abcitypes.ExecTxResult, err error) {
	c := caller(cmd)
	switch cmd.Type {
	case tx.CommandTypeCreateBond:
		p, err1 := tx.Payload[tx.CreateBondTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err1 := svc.CreateBond(ctx, c, p.Party, p.InitialPool, p.TotalTokens, p.Alpha)
		if err1 != nil {
			return nil, err1
		}
		return Result(r,
			types.EncodeEventBond(&types.EventBond{
				Guild: r.Guild, Election: r.ElectionId, Party: r.Party, Leader: r.Leader,
				Amount: r.Amount, Pool: r.Pool, Vault: r.Vault, Tokens: r.Tokens, Alpha: r.Alpha,
			}),
			balanceEvent(r.Guild, r.Leader, -r.Amount, r.Balance),
		)
	case tx.CommandTypeBuy:
		p, err1 := tx.Payload[tx.BuyTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err1 := svc.Buy(ctx, c, p.Party, p.CoinSpend)
		if err1 != nil {
			return nil, err1
		}
		return Result(r, tradeEvents(r)...)
	case tx.CommandTypeSell:
		p, err1 := tx.Payload[tx.SellTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err1 := svc.Sell(ctx, c, p.Party, p.Tokens)
		if err1 != nil {
			return nil, err1
		}
		return Result(r, tradeEvents(r)...)
	case tx.CommandTypeTransfer:
		p, err1 := tx.Payload[tx.TransferTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err1 := svc.TransferToParty(ctx, c, p.Party, p.Amount)
		if err1 != nil {
			return nil, err1
		}
		return Result(r,
			types.EncodeEventTransfer(&types.EventTransfer{
				Guild: r.Guild, Election: r.ElectionId, Party: r.Party, User: r.User, Amount: r.Amount, Vault: r.Vault,
			}),
			balanceEvent(r.Guild, r.User, -r.Amount, r.Balance),
		)
	case tx.CommandTypeCampaign:
		p, err1 := tx.Payload[tx.CampaignTx](cmd)
		if err1 != nil {
			return nil, err1
		}
		r, err1 := svc.Campaign(ctx, c, p.Party, p.Headline, p.Body)
		if err1 != nil {
			return nil, err1
		}
		return Result(r, types.EncodeEventCampaign(&types.EventCampaign{
			Guild: r.Guild, Election: r.ElectionId, Party: r.Post.PartyName, User: r.Post.UserId,
			Headline: r.Post.Headline, Body: r.Post.Body, Cost: r.Post.Cost, Timestamp: r.Post.Timestamp,
		}))
	}
	return nil, tx.ErrUnsupportedCommandType
}
