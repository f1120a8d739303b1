package app

import (
	"context"
	"fmt"
	"io"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/calehh/hac-election/config"
	"github.com/calehh/hac-election/crypto"
	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/settlement"
	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/tx/handler"
)

// EventSink receives every executed command with its result, failed ones
// included.
type EventSink interface {
	Index(ctx context.Context, cmd *tx.Command, res *abcitypes.ExecTxResult, at time.Time) error
}

type App struct {
	cfg    *config.Config
	logger cmtlog.Logger

	transport state.Transport
	store     *state.Store
	svc       *election.Service
	registry  *prometheus.Registry
	metrics   *appMetrics
	now       func() time.Time

	cmdHdlrs map[tx.CommandType]handler.CommandHandler
	queriers map[string]Querier
	sinks    []EventSink
}

type Option func(*App)

// WithTransport replaces the backend selected by store.backend.
func WithTransport(t state.Transport) Option {
	return func(app *App) {
		app.transport = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(app *App) {
		app.now = now
	}
}

func WithEventSink(sink EventSink) Option {
	return func(app *App) {
		app.sinks = append(app.sinks, sink)
	}
}

func NewApp(cfg *config.Config, logger cmtlog.Logger, opts ...Option) (app *App, err error) {
	logger = logger.With("module", "app")
	app = &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		now:      time.Now,
		cmdHdlrs: make(map[tx.CommandType]handler.CommandHandler),
		queriers: make(map[string]Querier),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = newAppMetrics(app.registry)

	if app.transport == nil {
		app.transport, err = openTransport(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	app.store = state.NewStore(app.transport, logger, state.Options{
		MaxRetries:      cfg.Store.MaxRetries,
		InitialInterval: cfg.Store.InitialInterval,
		MaxInterval:     cfg.Store.MaxInterval,
		Now:             app.now,
		Registry:        app.registry,
	})

	svcCfg, err := serviceConfig(cfg)
	if err != nil {
		app.Stop()
		return nil, err
	}
	keyTypes, err := crypto.ParseKeyTypes(cfg.Verifier.KeyTypes)
	if err != nil {
		app.Stop()
		return nil, err
	}
	app.svc, err = election.NewService(app.store, crypto.NewMultiVerifier(keyTypes...), svcCfg, logger, election.WithClock(app.now))
	if err != nil {
		app.Stop()
		return nil, err
	}
	app.registerCommandHandler()
	app.registerQuerier()
	return
}

func openTransport(cfg *config.Config, logger cmtlog.Logger) (state.Transport, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return state.NewMemoryTransport(), nil
	case config.BackendTree:
		return state.NewTreeTransport(cfg.Path(cfg.Store.Dir), logger)
	case config.BackendBadger:
		return state.NewBadgerTransport(cfg.Path(cfg.Store.Dir), logger)
	case config.BackendHTTP:
		return state.NewHTTPTransport(cfg.Store.Url, cfg.Store.RequestTimeout, logger), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func serviceConfig(cfg *config.Config) (c election.Config, err error) {
	policy, err := settlement.ParseEmptyVaultPolicy(cfg.Economy.EmptyVault)
	if err != nil {
		return
	}
	c = election.Config{
		BaseBalance:          cfg.Economy.BaseBalance,
		MicrocoinsPerCoin:    cfg.Economy.MicrocoinsPerCoin,
		MinTransfer:          cfg.Economy.MinTransfer,
		DefaultDurationHours: cfg.Economy.DefaultDurationHours,
		MaxDurationHours:     cfg.Economy.MaxDurationHours,
		CampaignCharsPerCoin: cfg.Economy.CampaignCharsPerCoin,
		Settlement:           settlement.Policy{OnEmptyVault: policy, AdminSink: cfg.Economy.AdminSink},
		IndexId:              cfg.Store.IndexId,
		Maintainer:           cfg.App.Maintainer,
		JoinTimeout:          cfg.Timeouts.Join,
		VoteConfirmTimeout:   cfg.Timeouts.VoteConfirm,
	}
	return
}

func (app *App) registerCommandHandler() {
	electionHdlr := handler.NewElectionHandler(app.logger)
	partyHdlr := handler.NewPartyHandler(app.logger)
	bondHdlr := handler.NewBondHandler(app.logger)
	voteHdlr := handler.NewVoteHandler(app.logger)
	settleHdlr := handler.NewSettleHandler(app.logger)
	app.cmdHdlrs = map[tx.CommandType]handler.CommandHandler{
		tx.CommandTypeCreateElection:      electionHdlr,
		tx.CommandTypeDeleteElection:      electionHdlr,
		tx.CommandTypeResetGuild:          electionHdlr,
		tx.CommandTypeCreateParty:         partyHdlr,
		tx.CommandTypeRequestJoin:         partyHdlr,
		tx.CommandTypeDecideJoin:          partyHdlr,
		tx.CommandTypeLeaveParty:          partyHdlr,
		tx.CommandTypeEditParty:           partyHdlr,
		tx.CommandTypeDeleteParty:         partyHdlr,
		tx.CommandTypeCreateBond:          bondHdlr,
		tx.CommandTypeBuy:                 bondHdlr,
		tx.CommandTypeSell:                bondHdlr,
		tx.CommandTypeTransfer:            bondHdlr,
		tx.CommandTypeCampaign:            bondHdlr,
		tx.CommandTypeRegisterVoter:       voteHdlr,
		tx.CommandTypeVote:                voteHdlr,
		tx.CommandTypePrepareVote:         voteHdlr,
		tx.CommandTypeConfirmVote:         voteHdlr,
		tx.CommandTypeSettle:              settleHdlr,
		tx.CommandTypeReconcileSettlement: settleHdlr,
	}
}

func (app *App) Service() *election.Service {
	return app.svc
}

func (app *App) Store() *state.Store {
	return app.store
}

func (app *App) Registry() *prometheus.Registry {
	return app.registry
}

func (app *App) Stop() {
	if c, ok := app.transport.(io.Closer); ok {
		if err := c.Close(); err != nil {
			app.logger.Error("close store fail", "err", err)
		}
	}
	app.logger.Info("election app stopped")
}
