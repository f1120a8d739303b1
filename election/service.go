// Package election runs each guild command against the versioned documents:
// it loads the election and ledger, gates on the lifecycle, computes with
// market, ledger and settlement, and writes through state.AtomicUpdate.
package election

import (
	"context"
	"errors"
	"fmt"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/hac-election/ledger"
	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/numeric"
	"github.com/calehh/hac-election/settlement"
	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/types"
)

const DefaultIndexId = "election-index"

// Caller is an already authenticated front end user.
type Caller struct {
	Guild string `json:"guild"`
	User  string `json:"user"`
	Admin bool   `json:"admin"`
}

// Verifier checks a vote signature against a registered public key.
type Verifier interface {
	Verify(message, signature, publicKeyPem string) bool
	ValidatePublicKey(publicKeyPem string) error
}

type Config struct {
	BaseBalance          int64
	MicrocoinsPerCoin    int64
	MinTransfer          int64
	DefaultDurationHours int64
	MaxDurationHours     int64
	CampaignCharsPerCoin int
	Settlement           settlement.Policy
	IndexId              string
	Maintainer           string
	JoinTimeout          time.Duration
	VoteConfirmTimeout   time.Duration
	PendingCapacity      int
}

func DefaultConfig() Config {
	return Config{
		BaseBalance:          100 * numeric.DefaultMicrocoinsPerCoin,
		MicrocoinsPerCoin:    numeric.DefaultMicrocoinsPerCoin,
		MinTransfer:          1000,
		DefaultDurationHours: 24,
		MaxDurationHours:     168,
		CampaignCharsPerCoin: 100,
		Settlement:           settlement.Policy{OnEmptyVault: settlement.EmptyVaultBurn},
		IndexId:              DefaultIndexId,
		Maintainer:           "hac-election",
		JoinTimeout:          5 * time.Minute,
		VoteConfirmTimeout:   time.Minute,
		PendingCapacity:      4096,
	}
}

type Service struct {
	logger   cmtlog.Logger
	store    *state.Store
	cfg      Config
	ledger   ledger.Policy
	units    numeric.Units
	verifier Verifier
	now      func() time.Time

	joins *pending[JoinRequest]
	votes *pending[VoteTicket]
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store *state.Store, verifier Verifier, cfg Config, logger cmtlog.Logger, opts ...Option) (*Service, error) {
	def := DefaultConfig()
	if cfg.IndexId == "" {
		cfg.IndexId = def.IndexId
	}
	if cfg.MicrocoinsPerCoin <= 0 {
		cfg.MicrocoinsPerCoin = def.MicrocoinsPerCoin
	}
	if cfg.MaxDurationHours <= 0 {
		cfg.MaxDurationHours = def.MaxDurationHours
	}
	if cfg.DefaultDurationHours <= 0 {
		cfg.DefaultDurationHours = def.DefaultDurationHours
	}
	if cfg.CampaignCharsPerCoin <= 0 {
		cfg.CampaignCharsPerCoin = def.CampaignCharsPerCoin
	}
	if cfg.PendingCapacity <= 0 {
		cfg.PendingCapacity = def.PendingCapacity
	}
	s := &Service{
		logger:   logger.With("module", "election"),
		store:    store,
		cfg:      cfg,
		ledger:   ledger.Policy{BaseBalance: cfg.BaseBalance, MinTransfer: cfg.MinTransfer},
		units:    numeric.NewUnits(cfg.MicrocoinsPerCoin),
		verifier: verifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	var err error
	s.joins, err = newPending[JoinRequest](cfg.PendingCapacity, cfg.JoinTimeout, s.clock)
	if err != nil {
		return nil, err
	}
	s.votes, err = newPending[VoteTicket](cfg.PendingCapacity, cfg.VoteConfirmTimeout, s.clock)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) Units() numeric.Units {
	return s.units
}

func (s *Service) Config() Config {
	return s.cfg
}

func requireAdmin(caller Caller) error {
	if !caller.Admin {
		return types.Permission("admin role required")
	}
	return nil
}

// ensureIndex creates the index document on first use.
func (s *Service) ensureIndex(ctx context.Context) error {
	_, _, err := s.store.Transport().GetDocument(ctx, s.cfg.IndexId)
	if err == nil {
		return nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return err
	}
	idx := &types.Index{Maintainer: s.cfg.Maintainer}
	idx.Normalize()
	err = state.CreateNamed(ctx, s.store, s.cfg.IndexId, idx)
	if err != nil && !errors.Is(err, state.ErrExists) {
		return err
	}
	s.logger.Info("index created", "id", s.cfg.IndexId)
	return nil
}

func (s *Service) index(ctx context.Context) (*types.Index, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	idx, _, err := state.Get[types.Index](ctx, s.store, s.cfg.IndexId)
	return idx, err
}

type guildDocs struct {
	entry    types.IndexEntry
	commonId string
}

func (s *Service) lookup(ctx context.Context, guild string) (docs guildDocs, err error) {
	idx, err := s.index(ctx)
	if err != nil {
		return
	}
	entry, ok := idx.Entries[guild]
	if !ok {
		err = types.Validation("no election in this guild")
		return
	}
	commonId, ok := idx.Commons[guild]
	if !ok {
		err = fmt.Errorf("guild %s has an election but no ledger", guild)
		return
	}
	return guildDocs{entry: entry, commonId: commonId}, nil
}

// load returns the guild's documents and a refreshed election snapshot.
func (s *Service) load(ctx context.Context, guild string) (docs guildDocs, e *types.Election, err error) {
	docs, err = s.lookup(ctx, guild)
	if err != nil {
		return
	}
	e, _, err = state.Get[types.Election](ctx, s.store, docs.entry.ElectionDocId)
	if err != nil {
		return
	}
	lifecycle.Refresh(e, s.clock())
	return
}

func (s *Service) common(ctx context.Context, id string) (*types.CommonData, error) {
	c, _, err := state.Get[types.CommonData](ctx, s.store, id)
	return c, err
}

func (s *Service) updateElection(ctx context.Context, docs guildDocs, fn func(e *types.Election) error) (*types.Election, error) {
	return state.AtomicUpdate(ctx, s.store, docs.entry.ElectionDocId, func(e *types.Election) error {
		lifecycle.Refresh(e, s.clock())
		return fn(e)
	})
}

func (s *Service) updateCommon(ctx context.Context, docs guildDocs, fn func(c *types.CommonData) error) (*types.CommonData, error) {
	return state.AtomicUpdate(ctx, s.store, docs.commonId, fn)
}

func partyOf(e *types.Election, name string) (*types.Party, error) {
	p, ok := e.Parties[name]
	if !ok {
		return nil, types.Validation("party %q not found", name)
	}
	return p, nil
}
