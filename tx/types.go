package tx

import (
	"errors"
)

type CommandType uint8

const (
	CommandTypeUnknown             CommandType = 0
	CommandTypeCreateElection      CommandType = 1
	CommandTypeDeleteElection      CommandType = 2
	CommandTypeResetGuild          CommandType = 3
	CommandTypeCreateParty         CommandType = 4
	CommandTypeRequestJoin         CommandType = 5
	CommandTypeDecideJoin          CommandType = 6
	CommandTypeLeaveParty          CommandType = 7
	CommandTypeEditParty           CommandType = 8
	CommandTypeDeleteParty         CommandType = 9
	CommandTypeCreateBond          CommandType = 10
	CommandTypeBuy                 CommandType = 11
	CommandTypeSell                CommandType = 12
	CommandTypeTransfer            CommandType = 13
	CommandTypeCampaign            CommandType = 14
	CommandTypeRegisterVoter       CommandType = 15
	CommandTypeVote                CommandType = 16
	CommandTypePrepareVote         CommandType = 17
	CommandTypeConfirmVote         CommandType = 18
	CommandTypeSettle              CommandType = 19
	CommandTypeReconcileSettlement CommandType = 20
)

var commandNames = map[CommandType]string{
	CommandTypeCreateElection:      "create_election",
	CommandTypeDeleteElection:      "delete_election",
	CommandTypeResetGuild:          "reset_guild",
	CommandTypeCreateParty:         "create_party",
	CommandTypeRequestJoin:         "request_join",
	CommandTypeDecideJoin:          "decide_join",
	CommandTypeLeaveParty:          "leave_party",
	CommandTypeEditParty:           "edit_party",
	CommandTypeDeleteParty:         "delete_party",
	CommandTypeCreateBond:          "create_bond",
	CommandTypeBuy:                 "buy",
	CommandTypeSell:                "sell",
	CommandTypeTransfer:            "transfer",
	CommandTypeCampaign:            "campaign",
	CommandTypeRegisterVoter:       "register_voter",
	CommandTypeVote:                "vote",
	CommandTypePrepareVote:         "prepare_vote",
	CommandTypeConfirmVote:         "confirm_vote",
	CommandTypeSettle:              "settle",
	CommandTypeReconcileSettlement: "reconcile_settlement",
}

func (t CommandType) String() string {
	if n, ok := commandNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseCommandType accepts the names String returns.
func ParseCommandType(name string) CommandType {
	for t, n := range commandNames {
		if n == name {
			return t
		}
	}
	return CommandTypeUnknown
}

const (
	CommandVersion0 uint8 = 0
)

var (
	ErrInvalidCommand         = errors.New("invalid command")
	ErrUnsupportedCommandType = errors.New("unsupported command type")
	ErrUnmatchedCommandType   = errors.New("unmatched command type")
	ErrUnsupportedVersion     = errors.New("unsupported command version")
)
