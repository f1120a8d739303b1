package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

var ErrDecodeEvent = errors.New("decode event fail")

const maxPageSize = 1000

// Indexer keeps a queryable sqlite history of executed commands and their
// events. It is fed by the app after every command.
type Indexer struct {
	logger        cmtlog.Logger
	db            *gorm.DB
	mtx           sync.Mutex
	eventHandlers map[string]eventHandler
}

type eventHandler func(ctx context.Context, event abci.Event, at time.Time) error

func NewIndexer(logger cmtlog.Logger, dbPath string) (*Indexer, error) {
	logger.Info("NewIndexer", "dbPath", dbPath)
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.DB().SetMaxOpenConns(1)
	if err := db.AutoMigrate(&CommandLog{}, &ElectionRecord{}, &PartyRecord{}, &Bond{}, &Trade{}, &Transfer{},
		&Campaign{}, &VoteRecord{}, &Settlement{}, &Balance{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	c := &Indexer{
		logger: logger.With("module", "indexer"),
		db:     db,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventElectionType: c.handleEventElection,
		types.EventPartyType:    c.handleEventParty,
		types.EventBondType:     c.handleEventBond,
		types.EventTradeType:    c.handleEventTrade,
		types.EventTransferType: c.handleEventTransfer,
		types.EventCampaignType: c.handleEventCampaign,
		types.EventVoteType:     c.handleEventVote,
		types.EventSettleType:   c.handleEventSettle,
		types.EventBalanceType:  c.handleEventBalance,
	}
	return c, nil
}

func (c *Indexer) Close() error {
	return c.db.Close()
}

// Index records cmd and every event of res. Event failures are logged and
// the rest of the events still land.
func (c *Indexer) Index(ctx context.Context, cmd *tx.Command, res *abci.ExecTxResult, at time.Time) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	entry := CommandLog{
		Type:      cmd.Type.String(),
		Guild:     cmd.Guild,
		User:      cmd.User,
		Code:      res.Code,
		Log:       res.Log,
		Timestamp: at.UTC(),
	}
	if err := c.db.Create(&entry).Error; err != nil {
		return err
	}
	for _, event := range res.Events {
		c.handleEvent(ctx, event, at.UTC())
	}
	return nil
}

func (c *Indexer) handleEvent(ctx context.Context, event abci.Event, at time.Time) {
	h, ok := c.eventHandlers[event.Type]
	if !ok {
		return
	}
	if err := h(ctx, event, at); err != nil {
		c.logger.Error("index event fail", "type", event.Type, "err", err)
	}
}

func (c *Indexer) handleEventElection(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventElection(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&ElectionRecord{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Name:      ev.Name,
		Action:    ev.Action,
		Status:    ev.Status,
		Timestamp: at,
	}).Error
}

func (c *Indexer) handleEventParty(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventParty(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&PartyRecord{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Party:     ev.Party,
		User:      ev.User,
		Action:    ev.Action,
		Burned:    ev.Burned,
		Timestamp: at,
	}).Error
}

func (c *Indexer) handleEventBond(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventBond(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&Bond{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Party:     ev.Party,
		Leader:    ev.Leader,
		Amount:    ev.Amount,
		Pool:      ev.Pool,
		Vault:     ev.Vault,
		Tokens:    ev.Tokens,
		Alpha:     ev.Alpha.String(),
		Timestamp: at,
	}).Error
}

func (c *Indexer) handleEventTrade(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventTrade(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&Trade{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Party:     ev.Party,
		User:      ev.User,
		Side:      ev.Side,
		Coins:     ev.Coins,
		Tokens:    ev.Tokens,
		Pool:      ev.Pool,
		Remaining: ev.Remaining,
		Price:     ev.Price.String(),
		Timestamp: ev.Timestamp,
	}).Error
}

func (c *Indexer) handleEventTransfer(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventTransfer(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&Transfer{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Party:     ev.Party,
		User:      ev.User,
		Amount:    ev.Amount,
		Vault:     ev.Vault,
		Timestamp: at,
	}).Error
}

func (c *Indexer) handleEventCampaign(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventCampaign(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&Campaign{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Party:     ev.Party,
		User:      ev.User,
		Headline:  ev.Headline,
		Body:      ev.Body,
		Cost:      ev.Cost,
		Timestamp: ev.Timestamp,
	}).Error
}

func (c *Indexer) handleEventVote(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Create(&VoteRecord{
		Guild:     ev.Guild,
		Election:  ev.Election,
		Voter:     ev.Voter,
		Action:    ev.Action,
		Timestamp: at,
	}).Error
}

func (c *Indexer) handleEventSettle(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventSettle(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	var s Settlement
	err := c.db.Where("election = ?", ev.Election).First(&s).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	s.Guild = ev.Guild
	s.Election = ev.Election
	s.Winner = ev.Winner
	s.CombinedPool = ev.CombinedPool
	s.FinalPrice = ev.FinalPrice.String()
	s.Burned = ev.Burned
	s.Holders = ev.Holders
	s.Timestamp = at
	return c.db.Save(&s).Error
}

func (c *Indexer) handleEventBalance(ctx context.Context, event abci.Event, at time.Time) error {
	ev := types.DecodeEventBalance(event)
	if ev == nil {
		return ErrDecodeEvent
	}
	return c.db.Save(&Balance{
		Guild:     ev.Guild,
		User:      ev.User,
		Balance:   ev.Balance,
		LastDelta: ev.Delta,
		Timestamp: at,
	}).Error
}

func clampPage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// page runs query twice: once for the requested rows, newest first, and
// once for the total.
func page[T any](db *gorm.DB, page, pageSize int) ([]T, uint64, error) {
	page, pageSize = clampPage(page, pageSize)
	rows := make([]T, 0)
	var model T
	var total uint64
	if err := db.Model(&model).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func scoped(db *gorm.DB, conds map[string]string) *gorm.DB {
	for col, v := range conds {
		if v != "" {
			db = db.Where(fmt.Sprintf("%s = ?", col), v)
		}
	}
	return db
}

func (c *Indexer) getCommands(guild string, p, pageSize int) ([]CommandLog, uint64, error) {
	return page[CommandLog](scoped(c.db, map[string]string{"guild": guild}), p, pageSize)
}

func (c *Indexer) getElections(guild string, p, pageSize int) ([]ElectionRecord, uint64, error) {
	return page[ElectionRecord](scoped(c.db, map[string]string{"guild": guild}), p, pageSize)
}

func (c *Indexer) getParties(guild, election string, p, pageSize int) ([]PartyRecord, uint64, error) {
	return page[PartyRecord](scoped(c.db, map[string]string{"guild": guild, "election": election}), p, pageSize)
}

func (c *Indexer) getTrades(guild, party, user string, p, pageSize int) ([]Trade, uint64, error) {
	return page[Trade](scoped(c.db, map[string]string{"guild": guild, "party": party, "user": user}), p, pageSize)
}

func (c *Indexer) getCampaigns(guild, party string, p, pageSize int) ([]Campaign, uint64, error) {
	return page[Campaign](scoped(c.db, map[string]string{"guild": guild, "party": party}), p, pageSize)
}

func (c *Indexer) getSettlements(guild string, p, pageSize int) ([]Settlement, uint64, error) {
	return page[Settlement](scoped(c.db, map[string]string{"guild": guild}), p, pageSize)
}

type PricePoint struct {
	Price     string    `json:"price"`
	Pool      int64     `json:"pool"`
	Remaining int64     `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

// getPriceHistory lists the price after each trade of a party, oldest first.
func (c *Indexer) getPriceHistory(guild, election, party string, limit int) ([]PricePoint, error) {
	_, limit = clampPage(0, limit)
	var trades []Trade
	err := scoped(c.db, map[string]string{"guild": guild, "election": election, "party": party}).
		Order("id desc").Limit(limit).Find(&trades).Error
	if err != nil {
		return nil, err
	}
	points := make([]PricePoint, len(trades))
	for i, t := range trades {
		points[len(trades)-1-i] = PricePoint{Price: t.Price, Pool: t.Pool, Remaining: t.Remaining, Timestamp: t.Timestamp}
	}
	return points, nil
}

func (c *Indexer) getBalances(guild string, p, pageSize int) ([]Balance, uint64, error) {
	p, pageSize = clampPage(p, pageSize)
	db := scoped(c.db, map[string]string{"guild": guild})
	var total uint64
	if err := db.Model(&Balance{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	rows := make([]Balance, 0)
	err := db.Order("balance desc").Offset(p * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
