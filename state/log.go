package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// iavlLogger hands a cometbft logger to iavl, which wants cosmossdk.io/log.
type iavlLogger struct {
	logger cmtlog.Logger
}

func newIavlLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return iavlLogger{logger: lg.With("module", "iavl")}
}

func (l iavlLogger) Info(msg string, keyVals ...any) {
	l.logger.Info(msg, keyVals...)
}

func (l iavlLogger) Warn(msg string, keyVals ...any) {
	l.logger.Info(msg, append(keyVals, "level", "warn")...)
}

func (l iavlLogger) Error(msg string, keyVals ...any) {
	l.logger.Error(msg, keyVals...)
}

func (l iavlLogger) Debug(msg string, keyVals ...any) {
	l.logger.Debug(msg, keyVals...)
}

func (l iavlLogger) With(keyVals ...any) cosmoslog.Logger {
	return iavlLogger{l.logger.With(keyVals...)}
}

func (l iavlLogger) Impl() any {
	return l.logger
}
