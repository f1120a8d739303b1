package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calehh/hac-election/app"
	"github.com/calehh/hac-election/types"
)

// Service is the HTTP front of the app: commands, live queries, indexed
// history, metrics and optionally the raw document store.
type Service struct {
	engine  *gin.Engine
	app     *app.App
	indexer *Indexer
	server  *http.Server
	logger  cmtlog.Logger
}

// NewService wires the routes. indexer may be nil, in which case the history
// endpoints answer 404.
func NewService(listenAddr string, a *app.App, indexer *Indexer, docs *DocumentServer, logger cmtlog.Logger) *Service {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		engine:  r,
		app:     a,
		indexer: indexer,
		logger:  logger.With("module", "api"),
	}
	s.server = &http.Server{Addr: listenAddr, Handler: r}

	v1 := r.Group("/v1")
	v1.POST("/commands", s.handleCommand)
	v1.POST("/commands/check", s.handleCheck)
	v1.GET("/elections", s.handleQuery(app.QueryElections, nil))
	v1.GET("/elections/:guild", s.handleQuery(app.QueryElection, nil))
	v1.GET("/elections/:guild/parties", s.handleQuery(app.QueryParties, nil))
	v1.GET("/elections/:guild/balances/:user", s.handleQuery(app.QueryBalance, nil))
	v1.GET("/elections/:guild/votes", s.handleQuery(app.QueryVotes, nil))
	v1.GET("/elections/:guild/parties/:party/quote/buy", s.handleQuery(app.QueryQuoteBuy, []string{"amount"}))
	v1.GET("/elections/:guild/parties/:party/quote/sell", s.handleQuery(app.QueryQuoteSell, []string{"amount", "user"}))
	v1.GET("/elections/:guild/parties/:party/curve", s.handleQuery(app.QueryCurve, []string{"points"}))
	v1.GET("/status", s.handleQuery(app.QueryStatus, nil))

	r.POST("/getCommands", s.handleGetCommands)
	r.POST("/getElections", s.handleGetElections)
	r.POST("/getParties", s.handleGetParties)
	r.POST("/getTrades", s.handleGetTrades)
	r.POST("/getPriceHistory", s.handleGetPriceHistory)
	r.POST("/getCampaigns", s.handleGetCampaigns)
	r.POST("/getSettlements", s.handleGetSettlements)
	r.POST("/getBalances", s.handleGetBalances)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry(), promhttp.HandlerOpts{})))
	if docs != nil {
		docs.Register(r)
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called.
func (s *Service) Start() error {
	s.logger.Info("api listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type CommandResponse struct {
	Code   uint32            `json:"code"`
	Status string            `json:"status"`
	Log    string            `json:"log,omitempty"`
	Data   json.RawMessage   `json:"data,omitempty"`
	Events []abcitypes.Event `json:"events,omitempty"`
}

func (s *Service) handleCommand(c *gin.Context) {
	dat, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := s.app.Execute(c.Request.Context(), dat)
	c.JSON(types.HTTPStatus(res.Code), CommandResponse{
		Code:   res.Code,
		Status: types.CodeName(res.Code),
		Log:    res.Log,
		Data:   res.Data,
		Events: res.Events,
	})
}

func (s *Service) handleCheck(c *gin.Context) {
	dat, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := s.app.CheckCommand(c.Request.Context(), dat)
	c.JSON(types.HTTPStatus(res.Code), CommandResponse{Code: res.Code, Status: types.CodeName(res.Code), Log: res.Log})
}

// handleQuery maps path parameters and the named query parameters onto a
// QueryRequest.
func (s *Service) handleQuery(path string, params []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		qr := app.QueryRequest{
			Guild: c.Param("guild"),
			User:  c.Param("user"),
			Party: c.Param("party"),
		}
		for _, p := range params {
			v := c.Query(p)
			if v == "" {
				continue
			}
			var err error
			switch p {
			case "amount":
				qr.Amount, err = strconv.ParseInt(v, 10, 64)
			case "points":
				qr.Points, err = strconv.Atoi(v)
			case "user":
				qr.User = v
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		res, err := s.app.QueryJSON(c.Request.Context(), path, &qr)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if res.Code != types.CodeOK {
			status := http.StatusNotFound
			if res.Code != 404 {
				status = types.HTTPStatus(res.Code)
			}
			c.JSON(status, gin.H{"error": res.Log, "status": types.CodeName(res.Code)})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", res.Value)
	}
}

type PageReq struct {
	Guild    string `json:"guild"`
	Election string `json:"election"`
	Party    string `json:"party"`
	User     string `json:"user"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type PageResponse[T any] struct {
	Items []T    `json:"items"`
	Total uint64 `json:"total"`
}

func (s *Service) bindPage(c *gin.Context) (req PageReq, ok bool) {
	if s.indexer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "indexer disabled"})
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	return req, true
}

func respondPage[T any](c *gin.Context, items []T, total uint64, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, PageResponse[T]{Items: items, Total: total})
}

func (s *Service) handleGetCommands(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getCommands(req.Guild, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}

func (s *Service) handleGetElections(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getElections(req.Guild, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}

func (s *Service) handleGetParties(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getParties(req.Guild, req.Election, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}

func (s *Service) handleGetTrades(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getTrades(req.Guild, req.Party, req.User, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}

func (s *Service) handleGetPriceHistory(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	if req.Guild == "" || req.Party == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild and party are required"})
		return
	}
	points, err := s.indexer.getPriceHistory(req.Guild, req.Election, req.Party, req.PageSize)
	respondPage(c, points, uint64(len(points)), err)
}

func (s *Service) handleGetCampaigns(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getCampaigns(req.Guild, req.Party, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}

func (s *Service) handleGetSettlements(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getSettlements(req.Guild, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}

func (s *Service) handleGetBalances(c *gin.Context) {
	req, ok := s.bindPage(c)
	if !ok {
		return
	}
	items, total, err := s.indexer.getBalances(req.Guild, req.Page, req.PageSize)
	respondPage(c, items, total, err)
}
