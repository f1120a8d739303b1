package types

import (
	"fmt"
	"strconv"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/shopspring/decimal"
)

const (
	EventElectionType = "election"
	EventPartyType    = "party"
	EventBondType     = "create_bond"
	EventTradeType    = "trade"
	EventTransferType = "transfer"
	EventCampaignType = "campaign"
	EventVoteType     = "vote"
	EventSettleType   = "settle"
	EventBalanceType  = "balance"
)

const (
	ActionCreate = "create"
	ActionDelete = "delete"
	ActionJoin   = "join"
	ActionLeave  = "leave"
	ActionEdit   = "edit"
	ActionReset  = "reset"

	SideBuy  = "buy"
	SideSell = "sell"
)

type EventElection struct {
	Guild    string `json:"guild"`
	Election string `json:"election"`
	Name     string `json:"name"`
	Action   string `json:"action"`
	Status   string `json:"status"`
}

func EncodeEventElection(event *EventElection) abci.Event {
	return abci.Event{
		Type: EventElectionType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "name", Value: event.Name, Index: false},
			{Key: "action", Value: event.Action, Index: false},
			{Key: "status", Value: event.Status, Index: false},
		},
	}
}

func DecodeEventElection(originEvent abci.Event) *EventElection {
	event := &EventElection{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "name":
			event.Name = v.Value
		case "action":
			event.Action = v.Value
		case "status":
			event.Status = v.Value
		}
	}
	return event
}

type EventParty struct {
	Guild    string `json:"guild"`
	Election string `json:"election"`
	Party    string `json:"party"`
	User     string `json:"user"`
	Action   string `json:"action"`
	Burned   int64  `json:"burned"`
}

func EncodeEventParty(event *EventParty) abci.Event {
	return abci.Event{
		Type: EventPartyType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "party", Value: event.Party, Index: true},
			{Key: "user", Value: event.User, Index: true},
			{Key: "action", Value: event.Action, Index: false},
			{Key: "burned", Value: fmt.Sprintf("%v", event.Burned), Index: false},
		},
	}
}

func DecodeEventParty(originEvent abci.Event) *EventParty {
	event := &EventParty{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "party":
			event.Party = v.Value
		case "user":
			event.User = v.Value
		case "action":
			event.Action = v.Value
		case "burned":
			burned, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Burned = burned
		}
	}
	return event
}

type EventBond struct {
	Guild    string          `json:"guild"`
	Election string          `json:"election"`
	Party    string          `json:"party"`
	Leader   string          `json:"leader"`
	Amount   int64           `json:"amount"`
	Pool     int64           `json:"pool"`
	Vault    int64           `json:"vault"`
	Tokens   int64           `json:"tokens"`
	Alpha    decimal.Decimal `json:"alpha"`
}

func EncodeEventBond(event *EventBond) abci.Event {
	return abci.Event{
		Type: EventBondType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "party", Value: event.Party, Index: true},
			{Key: "leader", Value: event.Leader, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "pool", Value: fmt.Sprintf("%v", event.Pool), Index: false},
			{Key: "vault", Value: fmt.Sprintf("%v", event.Vault), Index: false},
			{Key: "tokens", Value: fmt.Sprintf("%v", event.Tokens), Index: false},
			{Key: "alpha", Value: event.Alpha.String(), Index: false},
		},
	}
}

func DecodeEventBond(originEvent abci.Event) *EventBond {
	event := &EventBond{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "party":
			event.Party = v.Value
		case "leader":
			event.Leader = v.Value
		case "amount":
			event.Amount, err = strconv.ParseInt(v.Value, 10, 64)
		case "pool":
			event.Pool, err = strconv.ParseInt(v.Value, 10, 64)
		case "vault":
			event.Vault, err = strconv.ParseInt(v.Value, 10, 64)
		case "tokens":
			event.Tokens, err = strconv.ParseInt(v.Value, 10, 64)
		case "alpha":
			event.Alpha, err = decimal.NewFromString(v.Value)
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventTrade struct {
	Guild     string          `json:"guild"`
	Election  string          `json:"election"`
	Party     string          `json:"party"`
	User      string          `json:"user"`
	Side      string          `json:"side"`
	Coins     int64           `json:"coins"`
	Tokens    int64           `json:"tokens"`
	Pool      int64           `json:"pool"`
	Remaining int64           `json:"remaining"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

func EncodeEventTrade(event *EventTrade) abci.Event {
	return abci.Event{
		Type: EventTradeType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "party", Value: event.Party, Index: true},
			{Key: "user", Value: event.User, Index: true},
			{Key: "side", Value: event.Side, Index: true},
			{Key: "coins", Value: fmt.Sprintf("%v", event.Coins), Index: false},
			{Key: "tokens", Value: fmt.Sprintf("%v", event.Tokens), Index: false},
			{Key: "pool", Value: fmt.Sprintf("%v", event.Pool), Index: false},
			{Key: "remaining", Value: fmt.Sprintf("%v", event.Remaining), Index: false},
			{Key: "price", Value: event.Price.String(), Index: false},
			{Key: "timestamp", Value: fmt.Sprintf("%v", event.Timestamp.UnixMilli()), Index: false},
		},
	}
}

func DecodeEventTrade(originEvent abci.Event) *EventTrade {
	event := &EventTrade{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "party":
			event.Party = v.Value
		case "user":
			event.User = v.Value
		case "side":
			event.Side = v.Value
		case "coins":
			event.Coins, err = strconv.ParseInt(v.Value, 10, 64)
		case "tokens":
			event.Tokens, err = strconv.ParseInt(v.Value, 10, 64)
		case "pool":
			event.Pool, err = strconv.ParseInt(v.Value, 10, 64)
		case "remaining":
			event.Remaining, err = strconv.ParseInt(v.Value, 10, 64)
		case "price":
			event.Price, err = decimal.NewFromString(v.Value)
		case "timestamp":
			var ms int64
			ms, err = strconv.ParseInt(v.Value, 10, 64)
			event.Timestamp = time.UnixMilli(ms).UTC()
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventTransfer struct {
	Guild    string `json:"guild"`
	Election string `json:"election"`
	Party    string `json:"party"`
	User     string `json:"user"`
	Amount   int64  `json:"amount"`
	Vault    int64  `json:"vault"`
}

func EncodeEventTransfer(event *EventTransfer) abci.Event {
	return abci.Event{
		Type: EventTransferType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "party", Value: event.Party, Index: true},
			{Key: "user", Value: event.User, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "vault", Value: fmt.Sprintf("%v", event.Vault), Index: false},
		},
	}
}

func DecodeEventTransfer(originEvent abci.Event) *EventTransfer {
	event := &EventTransfer{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "party":
			event.Party = v.Value
		case "user":
			event.User = v.Value
		case "amount":
			event.Amount, err = strconv.ParseInt(v.Value, 10, 64)
		case "vault":
			event.Vault, err = strconv.ParseInt(v.Value, 10, 64)
		}
		if err != nil {
			return nil
		}
	}
	return event
}

type EventCampaign struct {
	Guild     string    `json:"guild"`
	Election  string    `json:"election"`
	Party     string    `json:"party"`
	User      string    `json:"user"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body"`
	Cost      int64     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

func EncodeEventCampaign(event *EventCampaign) abci.Event {
	return abci.Event{
		Type: EventCampaignType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "party", Value: event.Party, Index: true},
			{Key: "user", Value: event.User, Index: true},
			{Key: "headline", Value: event.Headline, Index: false},
			{Key: "body", Value: event.Body, Index: false},
			{Key: "cost", Value: fmt.Sprintf("%v", event.Cost), Index: false},
			{Key: "timestamp", Value: fmt.Sprintf("%v", event.Timestamp.UnixMilli()), Index: false},
		},
	}
}

func DecodeEventCampaign(originEvent abci.Event) *EventCampaign {
	event := &EventCampaign{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "party":
			event.Party = v.Value
		case "user":
			event.User = v.Value
		case "headline":
			event.Headline = v.Value
		case "body":
			event.Body = v.Value
		case "cost":
			cost, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Cost = cost
		case "timestamp":
			ms, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Timestamp = time.UnixMilli(ms).UTC()
		}
	}
	return event
}

// EventVote never carries the chosen party.
type EventVote struct {
	Guild    string `json:"guild"`
	Election string `json:"election"`
	Voter    string `json:"voter"`
	Action   string `json:"action"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "action", Value: event.Action, Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "voter":
			event.Voter = v.Value
		case "action":
			event.Action = v.Value
		}
	}
	return event
}

type EventSettle struct {
	Guild        string          `json:"guild"`
	Election     string          `json:"election"`
	Winner       string          `json:"winner"`
	CombinedPool int64           `json:"combinedPool"`
	FinalPrice   decimal.Decimal `json:"finalPrice"`
	Burned       int64           `json:"burned"`
	Holders      int             `json:"holders"`
}

func EncodeEventSettle(event *EventSettle) abci.Event {
	return abci.Event{
		Type: EventSettleType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "election", Value: event.Election, Index: true},
			{Key: "winner", Value: event.Winner, Index: true},
			{Key: "combinedPool", Value: fmt.Sprintf("%v", event.CombinedPool), Index: false},
			{Key: "finalPrice", Value: event.FinalPrice.String(), Index: false},
			{Key: "burned", Value: fmt.Sprintf("%v", event.Burned), Index: false},
			{Key: "holders", Value: fmt.Sprintf("%v", event.Holders), Index: false},
		},
	}
}

func DecodeEventSettle(originEvent abci.Event) *EventSettle {
	event := &EventSettle{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "election":
			event.Election = v.Value
		case "winner":
			event.Winner = v.Value
		case "combinedPool":
			event.CombinedPool, err = strconv.ParseInt(v.Value, 10, 64)
		case "finalPrice":
			event.FinalPrice, err = decimal.NewFromString(v.Value)
		case "burned":
			event.Burned, err = strconv.ParseInt(v.Value, 10, 64)
		case "holders":
			event.Holders, err = strconv.Atoi(v.Value)
		}
		if err != nil {
			return nil
		}
	}
	return event
}

// EventBalance is emitted once per user whose ledger delta changed.
type EventBalance struct {
	Guild   string `json:"guild"`
	User    string `json:"user"`
	Delta   int64  `json:"delta"`
	Balance int64  `json:"balance"`
}

func EncodeEventBalance(event *EventBalance) abci.Event {
	return abci.Event{
		Type: EventBalanceType,
		Attributes: []abci.EventAttribute{
			{Key: "guild", Value: event.Guild, Index: true},
			{Key: "user", Value: event.User, Index: true},
			{Key: "delta", Value: fmt.Sprintf("%v", event.Delta), Index: false},
			{Key: "balance", Value: fmt.Sprintf("%v", event.Balance), Index: false},
		},
	}
}

func DecodeEventBalance(originEvent abci.Event) *EventBalance {
	event := &EventBalance{}
	for _, v := range originEvent.Attributes {
		var err error
		switch v.Key {
		case "guild":
			event.Guild = v.Value
		case "user":
			event.User = v.Value
		case "delta":
			event.Delta, err = strconv.ParseInt(v.Value, 10, 64)
		case "balance":
			event.Balance, err = strconv.ParseInt(v.Value, 10, 64)
		}
		if err != nil {
			return nil
		}
	}
	return event
}
