package election

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/calehh/hac-election/types"
)

var (
	ErrTicketUnknown = fmt.Errorf("%w: unknown or already used request", types.ErrValidation)
	ErrTicketExpired = fmt.Errorf("%w: request expired", types.ErrValidation)
)

type JoinRequest struct {
	Guild      string    `json:"guild"`
	ElectionId string    `json:"electionId"`
	Party      string    `json:"party"`
	User       string    `json:"user"`
	Leader     string    `json:"leader"`
	CreatedAt  time.Time `json:"createdAt"`
}

type VoteTicket struct {
	Guild      string    `json:"guild"`
	ElectionId string    `json:"electionId"`
	User       string    `json:"user"`
	Party      string    `json:"party"`
	Signature  string    `json:"signature"`
	CreatedAt  time.Time `json:"createdAt"`
}

type pendingEntry[T any] struct {
	value   T
	expires time.Time
}

// pending holds confirmation flows in memory. Abandoned entries hold no
// document state, so expiry is checked on access and the LRU bounds memory.
type pending[T any] struct {
	cache *lru.Cache[string, pendingEntry[T]]
	ttl   time.Duration
	now   func() time.Time
}

func newPending[T any](size int, ttl time.Duration, now func() time.Time) (*pending[T], error) {
	cache, err := lru.New[string, pendingEntry[T]](size)
	if err != nil {
		return nil, err
	}
	return &pending[T]{cache: cache, ttl: ttl, now: now}, nil
}

func (p *pending[T]) Put(value T) (id string, expires time.Time) {
	id = uuid.NewString()
	expires = p.now().Add(p.ttl)
	p.cache.Add(id, pendingEntry[T]{value: value, expires: expires})
	return
}

func (p *pending[T]) Peek(id string) (value T, err error) {
	e, ok := p.cache.Peek(id)
	if !ok {
		err = ErrTicketUnknown
		return
	}
	if !p.now().Before(e.expires) {
		p.cache.Remove(id)
		err = ErrTicketExpired
		return
	}
	return e.value, nil
}

// Take removes the entry; a second Take of the same id fails.
func (p *pending[T]) Take(id string) (value T, err error) {
	value, err = p.Peek(id)
	if err != nil {
		return
	}
	p.cache.Remove(id)
	return
}

func (p *pending[T]) Len() int {
	return p.cache.Len()
}
