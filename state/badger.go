package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerTransport stores documents in badger. Conditional writes run in a
// badger transaction, and badger's own conflict detection backs up the
// version check.
type BadgerTransport struct {
	logger cmtlog.Logger
	db     *badger.DB
}

var _ Transport = (*BadgerTransport)(nil)

// NewBadgerTransport opens dir, or an in-memory database when dir is empty.
func NewBadgerTransport(dir string, logger cmtlog.Logger) (*BadgerTransport, error) {
	logger = logger.With("module", "badger")
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(badgerLogger{logger}).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerTransport{logger: logger, db: db}, nil
}

func (b *BadgerTransport) Close() error {
	return b.db.Close()
}

func badgerKey(id string) []byte {
	return []byte(fmt.Sprintf(KeyDocument, id))
}

func readRecord(txn *badger.Txn, id string) (*treeRecord, error) {
	item, err := txn.Get(badgerKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	rec := new(treeRecord)
	if err = json.Unmarshal(val, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func writeRecord(txn *badger.Txn, id string, rec *treeRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(badgerKey(id), val)
}

func conflictOf(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return ErrVersionConflict
	}
	return err
}

func (b *BadgerTransport) GetDocument(ctx context.Context, id string) (body []byte, version uint64, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	err = b.db.View(func(txn *badger.Txn) error {
		rec, err1 := readRecord(txn, id)
		if err1 != nil {
			return err1
		}
		body, version = rec.Body, rec.Version
		return nil
	})
	return
}

func (b *BadgerTransport) CreateDocument(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	return id, b.CreateNamedDocument(ctx, id, body)
}

func (b *BadgerTransport) CreateNamedDocument(ctx context.Context, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err1 := readRecord(txn, id)
		if err1 == nil {
			return ErrExists
		}
		if !errors.Is(err1, ErrNotFound) {
			return err1
		}
		return writeRecord(txn, id, &treeRecord{Version: 1, Body: body})
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrExists
	}
	return err
}

func (b *BadgerTransport) UpdateDocument(ctx context.Context, id string, body []byte, expectedVersion uint64) (version uint64, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		rec, err1 := readRecord(txn, id)
		if err1 != nil {
			return err1
		}
		if rec.Version != expectedVersion {
			return ErrVersionConflict
		}
		version = rec.Version + 1
		return writeRecord(txn, id, &treeRecord{Version: version, Body: body})
	})
	if err != nil {
		return 0, conflictOf(err)
	}
	return
}

func (b *BadgerTransport) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err1 := txn.Get(badgerKey(id)); err1 != nil {
			if errors.Is(err1, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err1
		}
		return txn.Delete(badgerKey(id))
	})
	return conflictOf(err)
}

type badgerLogger struct {
	logger cmtlog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...), "level", "warn")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
