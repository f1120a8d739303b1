package types

import (
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

type ElectionStatus string

const (
	StatusScheduled ElectionStatus = "scheduled"
	StatusRunning   ElectionStatus = "running"
	StatusEnded     ElectionStatus = "ended"
	StatusFinalized ElectionStatus = "finalized"
)

type Meta struct {
	Version     uint64    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (m *Meta) Stamp(version uint64, at time.Time) {
	m.Version = version
	m.LastUpdated = at
}

type Party struct {
	Name         string           `json:"name"`
	Emoji        string           `json:"emoji"`
	Agenda       string           `json:"agenda"`
	LeaderId     string           `json:"leaderId"`
	Members      []string         `json:"members"`
	Vault        int64            `json:"vault"`
	Pool         int64            `json:"pool"`
	IssuedTokens int64            `json:"issuedTokens"`
	SoldTokens   int64            `json:"soldTokens"`
	Alpha        decimal.Decimal  `json:"alpha"`
	K            sdkmath.Int      `json:"k"`
	TokenHolders map[string]int64 `json:"tokenHolders"`
}

func NewParty(name, emoji, agenda, leader string) *Party {
	return &Party{
		Name:         name,
		Emoji:        emoji,
		Agenda:       agenda,
		LeaderId:     leader,
		Members:      []string{leader},
		Alpha:        decimal.Zero,
		K:            sdkmath.ZeroInt(),
		TokenHolders: map[string]int64{},
	}
}

func (p *Party) normalize() {
	if p.TokenHolders == nil {
		p.TokenHolders = map[string]int64{}
	}
	if p.K.IsNil() {
		p.K = sdkmath.ZeroInt()
	}
	if p.Members == nil {
		p.Members = []string{}
	}
}

// Remaining is the unsold float of the curve.
func (p *Party) Remaining() int64 {
	return p.IssuedTokens - p.SoldTokens
}

func (p *Party) HasBonds() bool {
	return p.IssuedTokens > 0
}

func (p *Party) IsMember(user string) bool {
	for _, m := range p.Members {
		if m == user {
			return true
		}
	}
	return false
}

func (p *Party) AddMember(user string) {
	if !p.IsMember(user) {
		p.Members = append(p.Members, user)
	}
}

func (p *Party) RemoveMember(user string) {
	members := p.Members[:0]
	for _, m := range p.Members {
		if m != user {
			members = append(members, m)
		}
	}
	p.Members = members
}

type Election struct {
	ElectionId       string            `json:"electionId"`
	Name             string            `json:"name"`
	GuildId          string            `json:"guildId"`
	CreatedAt        time.Time         `json:"createdAt"`
	StartAt          time.Time         `json:"startAt"`
	DurationHours    int64             `json:"durationHours"`
	Status           ElectionStatus    `json:"status"`
	Parties          map[string]*Party `json:"parties"`
	Reserved         map[string]int64  `json:"reserved"`
	RegisteredVoters map[string]string `json:"registeredVoters"`
	Settlement       *SettlementRecord `json:"settlement,omitempty"`
	Meta             `json:"meta"`
}

func (e *Election) Normalize() {
	if e.Parties == nil {
		e.Parties = map[string]*Party{}
	}
	if e.Reserved == nil {
		e.Reserved = map[string]int64{}
	}
	if e.RegisteredVoters == nil {
		e.RegisteredVoters = map[string]string{}
	}
	for _, p := range e.Parties {
		p.normalize()
	}
}

func (e *Election) EndAt() time.Time {
	return e.StartAt.Add(time.Duration(e.DurationHours) * time.Hour)
}

// PartyOf returns the party the user belongs to, if any.
func (e *Election) PartyOf(user string) *Party {
	for _, p := range e.Parties {
		if p.IsMember(user) {
			return p
		}
	}
	return nil
}

// PartyNames returns party names in a stable order.
func (e *Election) PartyNames() []string {
	names := make([]string, 0, len(e.Parties))
	for name := range e.Parties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type CommonData struct {
	GuildId  string               `json:"guildId"`
	Balances map[string]int64     `json:"balances"`
	Settled  map[string]time.Time `json:"settled"`
	Meta     `json:"meta"`
}

func (c *CommonData) Normalize() {
	if c.Balances == nil {
		c.Balances = map[string]int64{}
	}
	if c.Settled == nil {
		c.Settled = map[string]time.Time{}
	}
}

type Vote struct {
	VoterId   string    `json:"voterId"`
	Message   string    `json:"message"`
	Signature string    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
}

type VoteBox struct {
	ElectionId string `json:"electionId"`
	Votes      []Vote `json:"votes"`
	Meta       `json:"meta"`
}

func (b *VoteBox) Normalize() {
	if b.Votes == nil {
		b.Votes = []Vote{}
	}
}

func (b *VoteBox) HasVoted(user string) bool {
	for _, v := range b.Votes {
		if v.VoterId == user {
			return true
		}
	}
	return false
}

type IndexEntry struct {
	ElectionDocId string    `json:"electionDocId"`
	VotesDocId    string    `json:"votesDocId"`
	ElectionId    string    `json:"electionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Index maps guilds to their documents. Commons outlives election entries.
type Index struct {
	Maintainer string                `json:"maintainer"`
	Entries    map[string]IndexEntry `json:"entries"`
	Commons    map[string]string     `json:"commons"`
	Meta       `json:"meta"`
}

func (i *Index) Normalize() {
	if i.Entries == nil {
		i.Entries = map[string]IndexEntry{}
	}
	if i.Commons == nil {
		i.Commons = map[string]string{}
	}
}

type SettlementRecord struct {
	Winner             string           `json:"winner,omitempty"`
	Tally              map[string]int64 `json:"tally"`
	CombinedPool       int64            `json:"combinedPool"`
	FinalPrice         decimal.Decimal  `json:"finalPrice"`
	Liquidations       map[string]int64 `json:"liquidations"`
	VaultDistributions map[string]int64 `json:"vaultDistributions"`
	Deltas             map[string]int64 `json:"deltas"`
	UnsoldToVault      int64            `json:"unsoldToVault"`
	Burned             int64            `json:"burned"`
	AdminSink          string           `json:"adminSink,omitempty"`
	AdminSinkAmount    int64            `json:"adminSinkAmount"`
	SettledAt          time.Time        `json:"settledAt"`
}

type BondTransaction struct {
	Type      string    `json:"type"`
	UserId    string    `json:"userId"`
	PartyName string    `json:"partyName"`
	Coins     int64     `json:"coins"`
	Tokens    int64     `json:"tokens"`
	Timestamp time.Time `json:"timestamp"`
}

type CampaignPost struct {
	PartyName string    `json:"partyName"`
	UserId    string    `json:"userId"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body"`
	Cost      int64     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}
