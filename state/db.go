package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
)

const KeyDocument = "d/%s"

type treeRecord struct {
	Version uint64          `json:"version"`
	Body    json.RawMessage `json:"body"`
}

// TreeTransport stores documents in an iavl tree over goleveldb. Every
// write commits a tree version, so RootHash fingerprints the whole store.
type TreeTransport struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64
	hash   common.Hash
}

var _ Transport = (*TreeTransport)(nil)

func NewTreeTransport(dir string, logger cmtlog.Logger) (t *TreeTransport, err error) {
	logger = logger.With("module", "docdb")
	ldb, err := dbm.NewDB("documents", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	t, err = newTreeTransport(ldb, logger)
	if err != nil {
		return nil, err
	}
	t.dir = dir
	return
}

// NewMemTreeTransport keeps the tree in memory.
func NewMemTreeTransport(logger cmtlog.Logger) (*TreeTransport, error) {
	return newTreeTransport(dbm.NewMemDB(), logger.With("module", "docdb"))
}

func newTreeTransport(ldb dbm.DB, logger cmtlog.Logger) (*TreeTransport, error) {
	tdb := iavl.NewMutableTree(ldb, 128, true, newIavlLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	t := &TreeTransport{
		logger: logger,
		db:     tdb,
		dbVer:  version,
	}
	if h := tdb.Hash(); h != nil {
		t.hash = crypto.Keccak256Hash(h)
	}
	return t, nil
}

func (t *TreeTransport) Close() (err error) {
	err = t.db.Close()
	return
}

// RootHash is the Keccak256 of the iavl root after the last write.
func (t *TreeTransport) RootHash() common.Hash {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.hash
}

func (t *TreeTransport) Version() int64 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.dbVer
}

func (t *TreeTransport) get(id string) (rec *treeRecord, err error) {
	val, err := t.db.Get([]byte(fmt.Sprintf(KeyDocument, id)))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if val == nil {
		return nil, ErrNotFound
	}
	rec = new(treeRecord)
	err = json.Unmarshal(val, rec)
	return
}

func (t *TreeTransport) put(id string, rec *treeRecord) (err error) {
	val, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_, err = t.db.Set([]byte(fmt.Sprintf(KeyDocument, id)), val)
	if err != nil {
		t.db.Rollback()
		return
	}
	return t.save()
}

func (t *TreeTransport) save() error {
	hash, ver, err := t.db.SaveVersion()
	if err != nil {
		t.db.Rollback()
		return err
	}
	t.dbVer = ver
	t.hash = crypto.Keccak256Hash(hash)
	return nil
}

func (t *TreeTransport) GetDocument(ctx context.Context, id string) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	rec, err := t.get(id)
	if err != nil {
		return nil, 0, err
	}
	return rec.Body, rec.Version, nil
}

func (t *TreeTransport) CreateDocument(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	return id, t.CreateNamedDocument(ctx, id, body)
}

func (t *TreeTransport) CreateNamedDocument(ctx context.Context, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	_, err := t.get(id)
	if err == nil {
		return ErrExists
	}
	if err != ErrNotFound {
		return err
	}
	return t.put(id, &treeRecord{Version: 1, Body: body})
}

func (t *TreeTransport) UpdateDocument(ctx context.Context, id string, body []byte, expectedVersion uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	rec, err := t.get(id)
	if err != nil {
		return 0, err
	}
	if rec.Version != expectedVersion {
		return 0, ErrVersionConflict
	}
	rec = &treeRecord{Version: rec.Version + 1, Body: body}
	if err = t.put(id, rec); err != nil {
		return 0, err
	}
	return rec.Version, nil
}

func (t *TreeTransport) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	_, removed, err := t.db.Remove([]byte(fmt.Sprintf(KeyDocument, id)))
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return t.save()
}

// Documents lists stored ids in key order.
func (t *TreeTransport) Documents() (ids []string, err error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	start := []byte(fmt.Sprintf(KeyDocument, ""))
	it, err := t.db.Iterator(start, PrefixEndBytes(start), true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		ids = append(ids, string(it.Key()[len(start):]))
	}
	return ids, it.Error()
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
