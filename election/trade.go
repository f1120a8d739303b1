package election

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/calehh/hac-election/ledger"
	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/market"
	"github.com/calehh/hac-election/numeric"
	"github.com/calehh/hac-election/types"
)

const (
	MaxHeadlineLength = 100
	MaxBodyLength     = 1000

	stepLedgerDebit      = "ledger debit"
	stepLedgerCredit     = "ledger credit"
	stepLedgerRefund     = "ledger refund"
	stepElectionCredit   = "election credit"
	stepElectionDebit    = "election debit"
	stepElectionFinal    = "election finalize"
	stepLedgerSettlement = "ledger settlement"
)

type BondReceipt struct {
	Guild      string          `json:"guild"`
	ElectionId string          `json:"electionId"`
	Party      string          `json:"party"`
	Leader     string          `json:"leader"`
	Amount     int64           `json:"amount"`
	Pool       int64           `json:"pool"`
	Vault      int64           `json:"vault"`
	Tokens     int64           `json:"tokens"`
	Alpha      decimal.Decimal `json:"alpha"`
	Balance    int64           `json:"balance"`
}

type TradeReceipt struct {
	Guild      string          `json:"guild"`
	ElectionId string          `json:"electionId"`
	Party      string          `json:"party"`
	User       string          `json:"user"`
	Side       string          `json:"side"`
	Coins      int64           `json:"coins"`
	Tokens     int64           `json:"tokens"`
	Pool       int64           `json:"pool"`
	Vault      int64           `json:"vault"`
	Remaining  int64           `json:"remaining"`
	Price      decimal.Decimal `json:"price"`
	Holdings   int64           `json:"holdings"`
	Balance    int64           `json:"balance"`
	Timestamp  time.Time       `json:"timestamp"`
}

type TransferReceipt struct {
	Guild      string `json:"guild"`
	ElectionId string `json:"electionId"`
	Party      string `json:"party"`
	User       string `json:"user"`
	Amount     int64  `json:"amount"`
	Vault      int64  `json:"vault"`
	Balance    int64  `json:"balance"`
}

type CampaignReceipt struct {
	Guild      string             `json:"guild"`
	ElectionId string             `json:"electionId"`
	Post       types.CampaignPost `json:"post"`
	Vault      int64              `json:"vault"`
}

// debit takes amount from the caller's ledger balance. It is always the
// first write of a funding command.
func (s *Service) debit(ctx context.Context, docs guildDocs, snapshot *types.Election, user string, amount int64) (*types.CommonData, error) {
	return s.updateCommon(ctx, docs, func(c *types.CommonData) error {
		return s.ledger.Debit(c, snapshot, user, amount)
	})
}

// refund undoes a debit whose election write failed. When the refund itself
// fails the caller gets a PartialFailureError.
func (s *Service) refund(ctx context.Context, docs guildDocs, user string, amount int64, cause error) error {
	_, err := s.updateCommon(ctx, docs, func(c *types.CommonData) error {
		return ledger.Credit(c, user, amount)
	})
	if err != nil {
		s.logger.Error("refund fail", "election", docs.entry.ElectionId, "user", user, "amount", amount, "cause", cause, "err", err)
		return &types.PartialFailureError{Completed: []string{stepLedgerDebit}, Failed: stepElectionCredit, Err: cause}
	}
	s.logger.Info("debit refunded", "user", user, "amount", amount, "cause", cause)
	return cause
}

// fund runs the debit-then-credit protocol: the ledger debit lands first,
// then fn runs inside the election transform with the amount held in escrow.
func (s *Service) fund(ctx context.Context, docs guildDocs, snapshot *types.Election, user string, amount int64, fn func(e *types.Election) error) (e *types.Election, c *types.CommonData, err error) {
	c, err = s.debit(ctx, docs, snapshot, user, amount)
	if err != nil {
		return
	}
	e, err = s.updateElection(ctx, docs, func(e *types.Election) error {
		return ledger.WithReservation(e, user, amount, func() error {
			return fn(e)
		})
	})
	if err != nil {
		return nil, nil, s.refund(ctx, docs, user, amount, err)
	}
	return
}

// CreateBond lets a party leader seed the party's curve from their own
// balance.
func (s *Service) CreateBond(ctx context.Context, caller Caller, party string, initialPool, totalTokens int64, alpha decimal.Decimal) (r *BondReceipt, err error) {
	docs, snap, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if err = lifecycle.Allow(lifecycle.OpCreateBond, snap.Status); err != nil {
		return
	}
	p, err := partyOf(snap, party)
	if err != nil {
		return
	}
	trial := *p
	if err = market.CreateBond(&trial, caller.User, initialPool, totalTokens, alpha); err != nil {
		return
	}

	e, c, err := s.fund(ctx, docs, snap, caller.User, initialPool, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpCreateBond, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		return market.CreateBond(p, caller.User, initialPool, totalTokens, alpha)
	})
	if err != nil {
		return
	}
	p = e.Parties[party]
	s.logger.Info("bonds created", "guild", caller.Guild, "party", party, "pool", initialPool, "tokens", totalTokens, "alpha", alpha)
	return &BondReceipt{
		Guild:      caller.Guild,
		ElectionId: e.ElectionId,
		Party:      party,
		Leader:     caller.User,
		Amount:     initialPool,
		Pool:       p.Pool,
		Vault:      p.Vault,
		Tokens:     p.IssuedTokens,
		Alpha:      p.Alpha,
		Balance:    s.ledger.Balance(c, caller.User),
	}, nil
}

func (s *Service) tradeReceipt(caller Caller, e *types.Election, party, side string, coins, tokens int64, c *types.CommonData) *TradeReceipt {
	p := e.Parties[party]
	return &TradeReceipt{
		Guild:      caller.Guild,
		ElectionId: e.ElectionId,
		Party:      party,
		User:       caller.User,
		Side:       side,
		Coins:      coins,
		Tokens:     tokens,
		Pool:       p.Pool,
		Vault:      p.Vault,
		Remaining:  p.Remaining(),
		Price:      market.Price(p),
		Holdings:   p.TokenHolders[caller.User],
		Balance:    s.ledger.Balance(c, caller.User),
		Timestamp:  e.Meta.LastUpdated,
	}
}

// Buy spends up to coinSpend from the caller's balance on party tokens. The
// part the curve does not need for whole tokens is credited back.
func (s *Service) Buy(ctx context.Context, caller Caller, party string, coinSpend int64) (r *TradeReceipt, err error) {
	docs, snap, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if err = lifecycle.Allow(lifecycle.OpBuy, snap.Status); err != nil {
		return
	}
	p, err := partyOf(snap, party)
	if err != nil {
		return
	}
	if _, err = market.QuoteBuy(p, coinSpend); err != nil {
		return
	}

	var q market.BuyQuote
	e, c, err := s.fund(ctx, docs, snap, caller.User, coinSpend, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpBuy, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		q, err = market.Buy(p, caller.User, coinSpend)
		return err
	})
	if err != nil {
		return
	}
	if q.Unspent > 0 {
		c, err = s.updateCommon(ctx, docs, func(c *types.CommonData) error {
			return ledger.Credit(c, caller.User, q.Unspent)
		})
		if err != nil {
			s.logger.Error("unspent refund fail", "guild", caller.Guild, "party", party, "user", caller.User, "unspent", q.Unspent, "err", err)
			return nil, &types.PartialFailureError{Completed: []string{stepLedgerDebit, stepElectionCredit}, Failed: stepLedgerRefund, Err: err}
		}
	}
	s.logger.Info("bonds bought", "guild", caller.Guild, "party", party, "user", caller.User, "coins", q.Cost, "unspent", q.Unspent, "tokens", q.TokensAcquired)
	return s.tradeReceipt(caller, e, party, types.SideBuy, q.Cost, q.TokensAcquired, c), nil
}

// Sell returns tokens to the curve. The election write lands first, then the
// refund is credited.
func (s *Service) Sell(ctx context.Context, caller Caller, party string, tokens int64) (r *TradeReceipt, err error) {
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	var q market.SellQuote
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpSell, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		q, err = market.Sell(p, caller.User, tokens)
		return err
	})
	if err != nil {
		return
	}
	c, err := s.updateCommon(ctx, docs, func(c *types.CommonData) error {
		return ledger.Credit(c, caller.User, q.CoinsRefunded)
	})
	if err != nil {
		s.logger.Error("sell credit fail", "guild", caller.Guild, "party", party, "user", caller.User, "tokens", tokens, "coins", q.CoinsRefunded, "err", err)
		return nil, &types.PartialFailureError{Completed: []string{stepElectionDebit}, Failed: stepLedgerCredit, Err: err}
	}
	s.logger.Info("bonds sold", "guild", caller.Guild, "party", party, "user", caller.User, "tokens", tokens, "coins", q.CoinsRefunded)
	return s.tradeReceipt(caller, e, party, types.SideSell, q.CoinsRefunded, tokens, c), nil
}

// TransferToParty moves coins from a member's balance into their party's
// vault.
func (s *Service) TransferToParty(ctx context.Context, caller Caller, party string, amount int64) (r *TransferReceipt, err error) {
	if err = s.ledger.CheckTransfer(amount); err != nil {
		return
	}
	docs, snap, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if err = lifecycle.Allow(lifecycle.OpTransfer, snap.Status); err != nil {
		return
	}
	p, err := partyOf(snap, party)
	if err != nil {
		return
	}
	if !p.IsMember(caller.User) {
		return nil, types.Permission("only members of %s can fund its vault", p.Name)
	}

	e, c, err := s.fund(ctx, docs, snap, caller.User, amount, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpTransfer, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		if !p.IsMember(caller.User) {
			return types.Permission("only members of %s can fund its vault", p.Name)
		}
		vault, err := numeric.SafeAdd(p.Vault, amount)
		if err != nil {
			return err
		}
		p.Vault = vault
		return nil
	})
	if err != nil {
		return
	}
	s.logger.Info("vault funded", "guild", caller.Guild, "party", party, "user", caller.User, "amount", amount)
	return &TransferReceipt{
		Guild:      caller.Guild,
		ElectionId: e.ElectionId,
		Party:      party,
		User:       caller.User,
		Amount:     amount,
		Vault:      e.Parties[party].Vault,
		Balance:    s.ledger.Balance(c, caller.User),
	}, nil
}

// CampaignCost is the vault charge of a post, one coin per started
// block of charsPerCoin characters and at least one coin.
func CampaignCost(headline, body string, charsPerCoin int) int64 {
	chars := utf8.RuneCountInString(headline) + utf8.RuneCountInString(body)
	coins := (chars + charsPerCoin - 1) / charsPerCoin
	return int64(max(1, coins))
}

// Campaign publishes a post paid for out of the party vault. The charge
// leaves circulation.
func (s *Service) Campaign(ctx context.Context, caller Caller, party, headline, body string) (r *CampaignReceipt, err error) {
	if headline == "" || utf8.RuneCountInString(headline) > MaxHeadlineLength {
		return nil, types.Validation("headline must be 1 to %d characters", MaxHeadlineLength)
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, types.Validation("body is longer than %d characters", MaxBodyLength)
	}
	cost, err := s.units.FromCoins(CampaignCost(headline, body, s.cfg.CampaignCharsPerCoin))
	if err != nil {
		return
	}
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpCampaign, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		if !p.IsMember(caller.User) {
			return types.Permission("only members of %s can campaign for it", p.Name)
		}
		if p.Vault < cost {
			return fmt.Errorf("%w: vault holds %d, post costs %d", types.ErrInsufficientFunds, p.Vault, cost)
		}
		p.Vault -= cost
		return nil
	})
	if err != nil {
		return
	}
	s.logger.Info("campaign posted", "guild", caller.Guild, "party", party, "user", caller.User, "cost", cost)
	return &CampaignReceipt{
		Guild:      caller.Guild,
		ElectionId: e.ElectionId,
		Post: types.CampaignPost{
			PartyName: party,
			UserId:    caller.User,
			Headline:  headline,
			Body:      body,
			Cost:      cost,
			Timestamp: e.Meta.LastUpdated,
		},
		Vault: e.Parties[party].Vault,
	}, nil
}
