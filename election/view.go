package election

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/market"
	"github.com/calehh/hac-election/types"
)

type BalanceView struct {
	Guild       string `json:"guild"`
	User        string `json:"user"`
	Base        int64  `json:"base"`
	Adjustments int64  `json:"adjustments"`
	Reserved    int64  `json:"reserved"`
	Available   int64  `json:"available"`
}

type PartyView struct {
	Name          string           `json:"name"`
	Emoji         string           `json:"emoji"`
	Agenda        string           `json:"agenda"`
	LeaderId      string           `json:"leaderId"`
	Members       []string         `json:"members"`
	Vault         int64            `json:"vault"`
	Pool          int64            `json:"pool"`
	IssuedTokens  int64            `json:"issuedTokens"`
	SoldTokens    int64            `json:"soldTokens"`
	Alpha         decimal.Decimal  `json:"alpha"`
	Price         decimal.Decimal  `json:"price"`
	MarginalPrice decimal.Decimal  `json:"marginalPrice"`
	Holders       map[string]int64 `json:"holders"`
}

type ElectionView struct {
	ElectionSummary
	Remaining  time.Duration           `json:"remaining"`
	Parties    []PartyView             `json:"parties"`
	Settlement *types.SettlementRecord `json:"settlement,omitempty"`
}

func partyView(p *types.Party) PartyView {
	return PartyView{
		Name:          p.Name,
		Emoji:         p.Emoji,
		Agenda:        p.Agenda,
		LeaderId:      p.LeaderId,
		Members:       p.Members,
		Vault:         p.Vault,
		Pool:          p.Pool,
		IssuedTokens:  p.IssuedTokens,
		SoldTokens:    p.SoldTokens,
		Alpha:         p.Alpha,
		Price:         market.Price(p),
		MarginalPrice: market.MarginalPrice(p),
		Holders:       p.TokenHolders,
	}
}

// Balance works without an election; the ledger outlives elections.
func (s *Service) Balance(ctx context.Context, guild, user string) (v *BalanceView, err error) {
	idx, err := s.index(ctx)
	if err != nil {
		return
	}
	v = &BalanceView{Guild: guild, User: user, Base: s.cfg.BaseBalance}
	commonId, ok := idx.Commons[guild]
	if !ok {
		v.Available = v.Base
		return v, nil
	}
	c, err := s.common(ctx, commonId)
	if err != nil {
		return nil, err
	}
	var e *types.Election
	if _, e1, err1 := s.load(ctx, guild); err1 == nil {
		e = e1
	} else if !errors.Is(err1, types.ErrValidation) {
		return nil, err1
	}
	v.Adjustments = c.Balances[user]
	if e != nil {
		v.Reserved = e.Reserved[user]
	}
	v.Available = s.ledger.Available(c, e, user)
	return v, nil
}

func (s *Service) Election(ctx context.Context, guild string) (*ElectionView, error) {
	_, e, err := s.load(ctx, guild)
	if err != nil {
		return nil, err
	}
	v := &ElectionView{
		ElectionSummary: summarize(e),
		Remaining:       lifecycle.Remaining(e, s.clock()),
		Settlement:      e.Settlement,
	}
	for _, name := range e.PartyNames() {
		v.Parties = append(v.Parties, partyView(e.Parties[name]))
	}
	return v, nil
}

func (s *Service) Parties(ctx context.Context, guild string) ([]PartyView, error) {
	v, err := s.Election(ctx, guild)
	if err != nil {
		return nil, err
	}
	return v.Parties, nil
}

// QuoteBuy prices a purchase against the current curve without trading.
func (s *Service) QuoteBuy(ctx context.Context, guild, party string, coinSpend int64) (q market.BuyQuote, err error) {
	_, e, err := s.load(ctx, guild)
	if err != nil {
		return
	}
	p, err := partyOf(e, party)
	if err != nil {
		return
	}
	return market.QuoteBuy(p, coinSpend)
}

func (s *Service) QuoteSell(ctx context.Context, caller Caller, party string, tokens int64) (q market.SellQuote, err error) {
	_, e, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	p, err := partyOf(e, party)
	if err != nil {
		return
	}
	return market.QuoteSell(p, tokens, p.TokenHolders[caller.User])
}

// Curve samples the price curve of a party over its unsold float.
func (s *Service) Curve(ctx context.Context, guild, party string, points int) ([]decimal.Decimal, error) {
	_, e, err := s.load(ctx, guild)
	if err != nil {
		return nil, err
	}
	p, err := partyOf(e, party)
	if err != nil {
		return nil, err
	}
	if !p.HasBonds() {
		return nil, types.Validation("party %s has not created bonds", p.Name)
	}
	return market.Curve(p, points), nil
}
