package app

import (
	"context"
	"encoding/json"
	"strings"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/tx/handler"
	"github.com/calehh/hac-election/types"
)

const (
	QueryElections = "/elections/"
	QueryElection  = "/election/"
	QueryParties   = "/parties/"
	QueryBalance   = "/balance/"
	QueryQuoteBuy  = "/quote/buy/"
	QueryQuoteSell = "/quote/sell/"
	QueryCurve     = "/curve/"
	QueryVotes     = "/votes/"
	QueryStatus    = "/status/"
)

// QueryRequest is the JSON body of RequestQuery.Data. Each path reads the
// fields it needs.
type QueryRequest struct {
	Guild  string `json:"guild"`
	User   string `json:"user"`
	Party  string `json:"party"`
	Amount int64  `json:"amount"`
	Points int    `json:"points"`
}

type Querier interface {
	Query(ctx context.Context, req *QueryRequest) (value any, err error)
}

type QuerierFunc func(ctx context.Context, req *QueryRequest) (any, error)

func (f QuerierFunc) Query(ctx context.Context, req *QueryRequest) (any, error) {
	return f(ctx, req)
}

func (app *App) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{Codespace: handler.Codespace}
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res.Code = 404
		res.Log = "unknown query path " + req.Path
		return
	}
	var qr QueryRequest
	if len(req.Data) > 0 {
		if err1 := json.Unmarshal(req.Data, &qr); err1 != nil {
			res.Code = types.CodeValidation
			res.Log = err1.Error()
			return
		}
	}
	value, err1 := q.Query(ctx, &qr)
	if err1 == nil {
		res.Value, err1 = json.Marshal(value)
	}
	if err1 != nil {
		res.Code = types.CodeOf(err1)
		res.Log = err1.Error()
		res.Info = types.CodeName(res.Code)
	}
	return
}

// QueryJSON runs a query by path with a typed request.
func (app *App) QueryJSON(ctx context.Context, path string, qr *QueryRequest) (*abcitypes.ResponseQuery, error) {
	dat, err := json.Marshal(qr)
	if err != nil {
		return nil, err
	}
	return app.Query(ctx, &abcitypes.RequestQuery{Path: path, Data: dat})
}

type ElectionQuerier struct {
	svc    *election.Service
	logger cmtlog.Logger
}

func NewElectionQuerier(svc *election.Service, logger cmtlog.Logger) (q *ElectionQuerier) {
	q = &ElectionQuerier{
		svc:    svc,
		logger: logger,
	}
	return
}

func (q *ElectionQuerier) Query(ctx context.Context, req *QueryRequest) (any, error) {
	if req.Guild == "" {
		return nil, types.Validation("guild is required")
	}
	return q.svc.Election(ctx, req.Guild)
}

func (app *App) registerQuerier() {
	svc := app.svc
	app.queriers[QueryElection] = NewElectionQuerier(svc, app.logger)
	app.queriers[QueryElections] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return svc.ListElections(ctx)
	})
	app.queriers[QueryParties] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return svc.Parties(ctx, req.Guild)
	})
	app.queriers[QueryBalance] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		if req.User == "" {
			return nil, types.Validation("user is required")
		}
		return svc.Balance(ctx, req.Guild, req.User)
	})
	app.queriers[QueryQuoteBuy] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return svc.QuoteBuy(ctx, req.Guild, req.Party, req.Amount)
	})
	app.queriers[QueryQuoteSell] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return svc.QuoteSell(ctx, election.Caller{Guild: req.Guild, User: req.User}, req.Party, req.Amount)
	})
	app.queriers[QueryCurve] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return svc.Curve(ctx, req.Guild, req.Party, req.Points)
	})
	app.queriers[QueryVotes] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return svc.Votes(ctx, req.Guild)
	})
	app.queriers[QueryStatus] = QuerierFunc(func(ctx context.Context, req *QueryRequest) (any, error) {
		return app.metrics.snapshot(app.registry)
	})
}
