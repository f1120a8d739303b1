package agent

import "time"

// sqlite models

type CommandLog struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Type      string    `gorm:"index" json:"type"`
	Guild     string    `gorm:"index" json:"guild"`
	User      string    `json:"user"`
	Code      uint32    `json:"code"`
	Log       string    `json:"log"`
	Timestamp time.Time `json:"timestamp"`
}

type ElectionRecord struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type PartyRecord struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Party     string    `json:"party"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Burned    int64     `json:"burned"`
	Timestamp time.Time `json:"timestamp"`
}

type Bond struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Party     string    `json:"party"`
	Leader    string    `json:"leader"`
	Amount    int64     `json:"amount"`
	Pool      int64     `json:"pool"`
	Vault     int64     `json:"vault"`
	Tokens    int64     `json:"tokens"`
	Alpha     string    `json:"alpha"`
	Timestamp time.Time `json:"timestamp"`
}

type Trade struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Party     string    `gorm:"index" json:"party"`
	User      string    `json:"user"`
	Side      string    `json:"side"`
	Coins     int64     `json:"coins"`
	Tokens    int64     `json:"tokens"`
	Pool      int64     `json:"pool"`
	Remaining int64     `json:"remaining"`
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type Transfer struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Party     string    `json:"party"`
	User      string    `json:"user"`
	Amount    int64     `json:"amount"`
	Vault     int64     `json:"vault"`
	Timestamp time.Time `json:"timestamp"`
}

type Campaign struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Party     string    `gorm:"index" json:"party"`
	User      string    `json:"user"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body"`
	Cost      int64     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// VoteRecord never holds the chosen party.
type VoteRecord struct {
	Id        uint64    `gorm:"primary_key" json:"id"`
	Guild     string    `gorm:"index" json:"guild"`
	Election  string    `gorm:"index" json:"election"`
	Voter     string    `json:"voter"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type Settlement struct {
	Id           uint64    `gorm:"primary_key" json:"id"`
	Guild        string    `gorm:"index" json:"guild"`
	Election     string    `gorm:"unique_index" json:"election"`
	Winner       string    `json:"winner"`
	CombinedPool int64     `json:"combined_pool"`
	FinalPrice   string    `json:"final_price"`
	Burned       int64     `json:"burned"`
	Holders      int       `json:"holders"`
	Timestamp    time.Time `json:"timestamp"`
}

// Balance is the last seen balance per guild member.
type Balance struct {
	Guild     string    `gorm:"primary_key" json:"guild"`
	User      string    `gorm:"primary_key" json:"user"`
	Balance   int64     `json:"balance"`
	LastDelta int64     `json:"last_delta"`
	Timestamp time.Time `json:"timestamp"`
}
