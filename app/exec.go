package app

import (
	"context"
	"errors"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/tx/handler"
	"github.com/calehh/hac-election/types"
)

var ErrUnexpectedCommandProcess = errors.New("unexpected command process")

func (app *App) parseCommand(dat []byte) (cmd *tx.Command, h handler.CommandHandler, err error) {
	cmd, err = tx.UnmarshalCommand(dat)
	if err != nil {
		return nil, nil, types.Validation("%v", err)
	}
	h, ok := app.cmdHdlrs[cmd.Type]
	if !ok {
		return cmd, nil, types.Validation("%v: %s", tx.ErrUnsupportedCommandType, cmd.Type)
	}
	return
}

// CheckCommand validates the envelope and payload without touching state.
func (app *App) CheckCommand(ctx context.Context, dat []byte) (res *abcitypes.ResponseCheckTx) {
	res = &abcitypes.ResponseCheckTx{Code: types.CodeOK, Codespace: handler.Codespace}
	cmd, h, err := app.parseCommand(dat)
	if err == nil {
		err = h.Check(ctx, cmd)
	}
	if err != nil {
		app.logger.Debug("check command fail", "err", err)
		res.Code = types.CodeOf(err)
		res.Log = err.Error()
		res.Info = types.CodeName(res.Code)
	}
	return
}

// Execute runs one serialized command. Rejections come back as a result
// with a non-zero code, never as a Go error.
func (app *App) Execute(ctx context.Context, dat []byte) (res *abcitypes.ExecTxResult) {
	start := app.now()
	cmd, h, err := app.parseCommand(dat)
	if err != nil {
		app.logger.Info("parse command fail", "err", err)
		res = handler.Failure(err)
		app.metrics.observe(tx.CommandTypeUnknown, res, app.now().Sub(start))
		return
	}
	res = app.run(ctx, h, cmd)
	app.metrics.observe(cmd.Type, res, app.now().Sub(start))
	app.publish(ctx, cmd, res, start)
	return
}

// ExecuteCommand runs an already decoded command.
func (app *App) ExecuteCommand(ctx context.Context, cmd *tx.Command) (res *abcitypes.ExecTxResult) {
	dat, err := tx.MarshalCommand(cmd)
	if err != nil {
		return handler.Failure(types.Validation("%v", err))
	}
	return app.Execute(ctx, dat)
}

// ExecuteBatch runs commands in order. Each command stands alone: a failed
// one does not undo the ones before it.
func (app *App) ExecuteBatch(ctx context.Context, txs [][]byte) (res []*abcitypes.ExecTxResult) {
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, dat := range txs {
		res[i] = app.Execute(ctx, dat)
	}
	return
}

func (app *App) run(ctx context.Context, h handler.CommandHandler, cmd *tx.Command) (res *abcitypes.ExecTxResult) {
	if err := h.Check(ctx, cmd); err != nil {
		app.logger.Info("check command fail", "type", cmd.Type, "guild", cmd.Guild, "user", cmd.User, "err", err)
		return handler.Failure(err)
	}
	res, err := h.Process(ctx, app.svc, cmd)
	if err == nil && res == nil {
		err = ErrUnexpectedCommandProcess
	}
	if err != nil {
		var partial *types.PartialFailureError
		if errors.As(err, &partial) {
			app.logger.Error("command partially applied", "type", cmd.Type, "guild", cmd.Guild, "user", cmd.User,
				"completed", partial.Completed, "failed", partial.Failed, "err", partial.Err)
		} else {
			app.logger.Info("process command fail", "type", cmd.Type, "guild", cmd.Guild, "user", cmd.User, "err", err)
		}
		return handler.Failure(err)
	}
	app.logger.Info("command executed", "type", cmd.Type, "guild", cmd.Guild, "user", cmd.User, "events", len(res.Events))
	return
}

func (app *App) publish(ctx context.Context, cmd *tx.Command, res *abcitypes.ExecTxResult, at time.Time) {
	for _, sink := range app.sinks {
		if err := sink.Index(ctx, cmd, res, at); err != nil {
			app.logger.Error("index command fail", "type", cmd.Type, "err", err)
		}
	}
}
