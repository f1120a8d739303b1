package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrExists              = errors.New("document already exists")
	ErrVersionConflict     = errors.New("document version conflict")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Transport is the CRUD surface of a document store. UpdateDocument only
// writes when the stored version equals expectedVersion, and every
// successful write bumps the version by one.
type Transport interface {
	GetDocument(ctx context.Context, id string) (body []byte, version uint64, err error)
	CreateDocument(ctx context.Context, body []byte) (id string, err error)
	CreateNamedDocument(ctx context.Context, id string, body []byte) error
	UpdateDocument(ctx context.Context, id string, body []byte, expectedVersion uint64) (version uint64, err error)
	DeleteDocument(ctx context.Context, id string) error
}

type normalizer interface {
	Normalize()
}

type stamper interface {
	Stamp(version uint64, at time.Time)
}

type Options struct {
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Now             func() time.Time
	Registry        prometheus.Registerer
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:      5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Now:             time.Now,
	}
}

type Store struct {
	transport Transport
	logger    cmtlog.Logger
	opts      Options
	metrics   *storeMetrics
}

func NewStore(transport Transport, logger cmtlog.Logger, opts Options) *Store {
	def := DefaultOptions()
	if opts.MaxRetries == 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = def.InitialInterval
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = def.MaxInterval
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Store{
		transport: transport,
		logger:    logger.With("module", "store"),
		opts:      opts,
		metrics:   newStoreMetrics(opts.Registry),
	}
}

func (s *Store) Transport() Transport {
	return s.transport
}

func decode[T any](body []byte) (*T, error) {
	doc := new(T)
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, err
	}
	if n, ok := any(doc).(normalizer); ok {
		n.Normalize()
	}
	return doc, nil
}

func (s *Store) encode(doc any, version uint64) ([]byte, error) {
	if st, ok := doc.(stamper); ok {
		st.Stamp(version, s.opts.Now().UTC())
	}
	return json.Marshal(doc)
}

func Get[T any](ctx context.Context, s *Store, id string) (doc *T, version uint64, err error) {
	body, version, err := s.transport.GetDocument(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", id, err)
	}
	doc, err = decode[T](body)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", id, err)
	}
	return
}

func Create[T any](ctx context.Context, s *Store, doc *T) (id string, err error) {
	body, err := s.encode(doc, 1)
	if err != nil {
		return "", err
	}
	id, err = s.transport.CreateDocument(ctx, body)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	s.logger.Debug("document created", "id", id)
	return
}

// CreateNamed stores doc under a fixed id; ErrExists when the id is taken.
func CreateNamed[T any](ctx context.Context, s *Store, id string, doc *T) error {
	body, err := s.encode(doc, 1)
	if err != nil {
		return err
	}
	if err = s.transport.CreateNamedDocument(ctx, id, body); err != nil {
		return fmt.Errorf("create %s: %w", id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.transport.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.logger.Debug("document deleted", "id", id)
	return nil
}

// AtomicUpdate reads id, applies fn and writes the result back conditioned
// on the version read. A version conflict re-reads and re-applies fn with
// exponential backoff until MaxRetries attempts are spent, which yields
// ErrConcurrencyConflict. An error from fn aborts without writing.
func AtomicUpdate[T any](ctx context.Context, s *Store, id string, fn func(doc *T) error) (*T, error) {
	attempts := 0
	op := func() (*T, error) {
		attempts++
		body, version, err := s.transport.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, backoff.Permanent(fmt.Errorf("get %s: %w", id, err))
			}
			return nil, err
		}
		doc, err := decode[T](body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode %s: %w", id, err))
		}
		if err = fn(doc); err != nil {
			return nil, backoff.Permanent(err)
		}
		body, err = s.encode(doc, version+1)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		_, err = s.transport.UpdateDocument(ctx, id, body, version)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				s.metrics.conflicts.Inc()
			}
			if errors.Is(err, ErrNotFound) {
				return nil, backoff.Permanent(fmt.Errorf("update %s: %w", id, err))
			}
			return nil, err
		}
		return doc, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.InitialInterval
	bo.MaxInterval = s.opts.MaxInterval
	doc, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.opts.MaxRetries),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.logger.Debug("retry update", "id", id, "attempt", attempts, "wait", d, "err", err)
		}),
	)
	s.metrics.attempts.Observe(float64(attempts))
	if err == nil {
		s.metrics.updates.WithLabelValues("ok").Inc()
		return doc, nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	switch {
	case errors.Is(err, ErrVersionConflict):
		s.metrics.updates.WithLabelValues("conflict").Inc()
		s.logger.Info("update gave up", "id", id, "attempts", attempts)
		return nil, fmt.Errorf("%w: %s after %d attempts", ErrConcurrencyConflict, id, attempts)
	default:
		s.metrics.updates.WithLabelValues("error").Inc()
		return nil, err
	}
}
