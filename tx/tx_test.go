package tx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalCommand(t *testing.T) {
	dat, err := MarshalCommand(&Command{
		Type:  CommandTypeCreateBond,
		Guild: "g1",
		User:  "alice",
		Tx:    CreateBondTx{Party: "Green", InitialPool: 100, TotalTokens: 1000, Alpha: decimal.RequireFromString("0.8")},
	})
	require.NoError(t, err)

	cmd, err := UnmarshalCommand(dat)
	require.NoError(t, err)
	assert.Equal(t, CommandTypeCreateBond, cmd.Type)
	assert.Equal(t, "create_bond", cmd.Type.String())
	bond, err := Payload[CreateBondTx](cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bond.TotalTokens)
	assert.True(t, bond.Alpha.Equal(decimal.RequireFromString("0.8")))

	_, err = Payload[BuyTx](cmd)
	require.ErrorIs(t, err, ErrUnmatchedCommandType)
}

func TestUnmarshalCommandRejects(t *testing.T) {
	tests := []struct {
		name string
		dat  string
		err  error
	}{
		{"unknown type", `{"type":99,"guild":"g","user":"u","tx":{}}`, ErrUnsupportedCommandType},
		{"not json", `buy 100`, ErrUnsupportedCommandType},
		{"no guild", `{"type":11,"user":"u","tx":{"party":"Green","coinSpend":1}}`, ErrInvalidCommand},
		{"bad payload", `{"type":11,"guild":"g","user":"u","tx":{"coinSpend":"lots"}}`, ErrInvalidCommand},
		{"future version", `{"version":3,"type":19,"guild":"g","user":"u","tx":{}}`, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCommand([]byte(tt.dat))
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseCommandType(t *testing.T) {
	for tp := range commandNames {
		assert.Equal(t, tp, ParseCommandType(tp.String()))
	}
	assert.Equal(t, CommandTypeUnknown, ParseCommandType("mint"))
}
