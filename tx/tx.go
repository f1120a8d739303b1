package tx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Command is the JSON envelope a front end submits. The caller fields are
// trusted: the front end has already authenticated the user.
type Command struct {
	Version uint8       `json:"version"`
	Type    CommandType `json:"type"`
	Guild   string      `json:"guild"`
	User    string      `json:"user"`
	Admin   bool        `json:"admin"`
	Tx      any         `json:"tx"`
}

type CreateElectionTx struct {
	Name          string     `json:"name"`
	StartAt       *time.Time `json:"startAt,omitempty"`
	DurationHours int64      `json:"durationHours"`
}

type EmptyTx struct{}

type CreatePartyTx struct {
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Agenda string `json:"agenda"`
}

type PartyTx struct {
	Party string `json:"party"`
}

type DecideJoinTx struct {
	Request string `json:"request"`
	Approve bool   `json:"approve"`
}

type EditPartyTx struct {
	Party  string `json:"party"`
	Agenda string `json:"agenda"`
	Emoji  string `json:"emoji"`
}

type CreateBondTx struct {
	Party       string          `json:"party"`
	InitialPool int64           `json:"initialPool"`
	TotalTokens int64           `json:"totalTokens"`
	Alpha       decimal.Decimal `json:"alpha"`
}

type BuyTx struct {
	Party     string `json:"party"`
	CoinSpend int64  `json:"coinSpend"`
}

type SellTx struct {
	Party  string `json:"party"`
	Tokens int64  `json:"tokens"`
}

type TransferTx struct {
	Party  string `json:"party"`
	Amount int64  `json:"amount"`
}

type CampaignTx struct {
	Party    string `json:"party"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

type RegisterVoterTx struct {
	PublicKey string `json:"publicKey"`
}

type VoteTx struct {
	Party     string `json:"party"`
	Signature string `json:"signature"`
}

type ConfirmVoteTx struct {
	Ticket string `json:"ticket"`
}

type commandTmpl[Tx any] struct {
	Version uint8       `json:"version"`
	Type    CommandType `json:"type"`
	Guild   string      `json:"guild"`
	User    string      `json:"user"`
	Admin   bool        `json:"admin"`
	Tx      Tx          `json:"tx"`
}

func parseCommandType(dat []byte) CommandType {
	var cmd struct {
		Type CommandType `json:"type"`
	}
	err := json.Unmarshal(dat, &cmd)
	if err != nil {
		return CommandTypeUnknown
	}
	return cmd.Type
}

func unmarshalCommand[Tx any](dat []byte) (cmd *Command, err error) {
	var tmpl commandTmpl[Tx]
	err = json.Unmarshal(dat, &tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if tmpl.Version != CommandVersion0 {
		return nil, ErrUnsupportedVersion
	}
	cmd = new(Command)
	cmd.Version = tmpl.Version
	cmd.Type = tmpl.Type
	cmd.Guild = tmpl.Guild
	cmd.User = tmpl.User
	cmd.Admin = tmpl.Admin
	cmd.Tx = &tmpl.Tx
	return
}

func UnmarshalCommand(dat []byte) (cmd *Command, err error) {
	tp := parseCommandType(dat)
	switch tp {
	case CommandTypeCreateElection:
		cmd, err = unmarshalCommand[CreateElectionTx](dat)
	case CommandTypeDeleteElection, CommandTypeResetGuild, CommandTypeLeaveParty,
		CommandTypeSettle, CommandTypeReconcileSettlement:
		cmd, err = unmarshalCommand[EmptyTx](dat)
	case CommandTypeCreateParty:
		cmd, err = unmarshalCommand[CreatePartyTx](dat)
	case CommandTypeRequestJoin, CommandTypeDeleteParty:
		cmd, err = unmarshalCommand[PartyTx](dat)
	case CommandTypeDecideJoin:
		cmd, err = unmarshalCommand[DecideJoinTx](dat)
	case CommandTypeEditParty:
		cmd, err = unmarshalCommand[EditPartyTx](dat)
	case CommandTypeCreateBond:
		cmd, err = unmarshalCommand[CreateBondTx](dat)
	case CommandTypeBuy:
		cmd, err = unmarshalCommand[BuyTx](dat)
	case CommandTypeSell:
		cmd, err = unmarshalCommand[SellTx](dat)
	case CommandTypeTransfer:
		cmd, err = unmarshalCommand[TransferTx](dat)
	case CommandTypeCampaign:
		cmd, err = unmarshalCommand[CampaignTx](dat)
	case CommandTypeRegisterVoter:
		cmd, err = unmarshalCommand[RegisterVoterTx](dat)
	case CommandTypeVote, CommandTypePrepareVote:
		cmd, err = unmarshalCommand[VoteTx](dat)
	case CommandTypeConfirmVote:
		cmd, err = unmarshalCommand[ConfirmVoteTx](dat)
	default:
		err = ErrUnsupportedCommandType
	}
	if err == nil && (cmd.Guild == "" || cmd.User == "") {
		return nil, fmt.Errorf("%w: guild and user are required", ErrInvalidCommand)
	}
	return
}

func MarshalCommand(cmd *Command) (dat []byte, err error) {
	return json.Marshal(cmd)
}

// Payload returns cmd.Tx as *T.
func Payload[T any](cmd *Command) (*T, error) {
	p, ok := cmd.Tx.(*T)
	if !ok {
		return nil, fmt.Errorf("%w: %s carries %T", ErrUnmatchedCommandType, cmd.Type, cmd.Tx)
	}
	return p, nil
}
