package election

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/types"
)

var errUnavailable = errors.New("store unavailable")

type fakeVerifier struct{}

func (fakeVerifier) Verify(message, signature, publicKeyPem string) bool {
	return signature == sign(publicKeyPem, message)
}

func (fakeVerifier) ValidatePublicKey(publicKeyPem string) error {
	if !strings.HasPrefix(publicKeyPem, "key-") {
		return errors.New("not a key")
	}
	return nil
}

func sign(key, message string) string {
	return key + "/" + message
}

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

// flakyTransport fails updates picked by failUpdate.
type flakyTransport struct {
	state.Transport
	mtx        sync.Mutex
	failUpdate func(id string) bool
}

func (f *flakyTransport) setFail(fn func(id string) bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.failUpdate = fn
}

func (f *flakyTransport) UpdateDocument(ctx context.Context, id string, body []byte, expectedVersion uint64) (uint64, error) {
	f.mtx.Lock()
	fail := f.failUpdate != nil && f.failUpdate(id)
	f.mtx.Unlock()
	if fail {
		return 0, errUnavailable
	}
	return f.Transport.UpdateDocument(ctx, id, body, expectedVersion)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	svc       *Service
	clock     *fakeClock
	transport *flakyTransport
}

var (
	admin = Caller{Guild: "g1", User: "admin", Admin: true}
	alice = Caller{Guild: "g1", User: "alice"}
	bob   = Caller{Guild: "g1", User: "bob"}
	carol = Caller{Guild: "g1", User: "carol"}
	one   = decimal.NewFromInt(1)
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tr := &flakyTransport{Transport: state.NewMemoryTransport()}
	store := state.NewStore(tr, cmtlog.NewNopLogger(), state.Options{
		MaxRetries:      200,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Now:             clock.Now,
	})
	cfg := DefaultConfig()
	cfg.BaseBalance = 1000
	cfg.MicrocoinsPerCoin = 10
	cfg.MinTransfer = 10
	svc, err := NewService(store, fakeVerifier{}, cfg, cmtlog.NewNopLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	return &harness{t: t, ctx: context.Background(), svc: svc, clock: clock, transport: tr}
}

func (h *harness) running() *types.Election {
	e, err := h.svc.CreateElection(h.ctx, admin, "Spring", time.Time{}, 0)
	require.NoError(h.t, err)
	require.Equal(h.t, types.StatusRunning, e.Status)
	return e
}

func (h *harness) party(leader Caller, name string) {
	_, err := h.svc.CreateParty(h.ctx, leader, name, "", "agenda of "+name)
	require.NoError(h.t, err)
}

func (h *harness) bonded(leader Caller, name string, pool, tokens int64) {
	h.party(leader, name)
	_, err := h.svc.CreateBond(h.ctx, leader, name, pool, tokens, one)
	require.NoError(h.t, err)
}

func (h *harness) available(c Caller) int64 {
	v, err := h.svc.Balance(h.ctx, c.Guild, c.User)
	require.NoError(h.t, err)
	return v.Available
}

func (h *harness) docs() guildDocs {
	docs, err := h.svc.lookup(h.ctx, admin.Guild)
	require.NoError(h.t, err)
	return docs
}

func TestCreateElection(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateElection(h.ctx, alice, "Spring", time.Time{}, 0)
	require.ErrorIs(t, err, types.ErrPermission)
	_, err = h.svc.CreateElection(h.ctx, admin, "  ", time.Time{}, 0)
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.CreateElection(h.ctx, admin, "Spring", time.Time{}, 169)
	require.ErrorIs(t, err, types.ErrValidation)

	e := h.running()
	assert.Equal(t, int64(24), e.DurationHours)
	assert.Equal(t, uint64(1), e.Meta.Version)

	_, err = h.svc.CreateElection(h.ctx, admin, "Autumn", time.Time{}, 0)
	require.ErrorIs(t, err, types.ErrValidation)

	got, err := h.svc.GetElection(h.ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, e.ElectionId, got.ElectionId)

	later, err := h.svc.CreateElection(h.ctx, Caller{Guild: "g2", User: "admin", Admin: true}, "Later", h.clock.Now().Add(time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, types.StatusScheduled, later.Status)

	list, err := h.svc.ListElections(h.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "g1", list[0].Guild)
	assert.Equal(t, "g2", list[1].Guild)
	assert.Equal(t, h.clock.Now().Add(3*time.Hour), list[1].EndAt)
}

func TestDeleteElectionKeepsLedger(t *testing.T) {
	h := newHarness(t)
	h.running()
	h.bonded(alice, "Green", 100, 100)
	require.Equal(t, int64(900), h.available(alice))
	docs := h.docs()

	_, err := h.svc.DeleteElection(h.ctx, alice)
	require.ErrorIs(t, err, types.ErrPermission)
	summary, err := h.svc.DeleteElection(h.ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Parties)

	_, err = h.svc.GetElection(h.ctx, "g1")
	require.ErrorIs(t, err, types.ErrValidation)
	_, _, err = h.transport.GetDocument(h.ctx, docs.entry.ElectionDocId)
	require.ErrorIs(t, err, state.ErrNotFound)
	assert.Equal(t, int64(900), h.available(alice))

	e := h.running()
	assert.NotEqual(t, docs.entry.ElectionId, e.ElectionId)
	assert.Equal(t, docs.commonId, h.docs().commonId)
}

func TestResetGuildForgetsDocuments(t *testing.T) {
	h := newHarness(t)
	h.running()
	h.bonded(alice, "Green", 100, 100)
	docs := h.docs()

	forgot, err := h.svc.ResetGuild(h.ctx, admin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{docs.entry.ElectionDocId, docs.entry.VotesDocId, docs.commonId}, forgot)
	_, _, err = h.transport.GetDocument(h.ctx, docs.entry.ElectionDocId)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), h.available(alice))
	h.running()
	assert.NotEqual(t, docs.commonId, h.docs().commonId)
}

func TestPartyMembership(t *testing.T) {
	h := newHarness(t)
	h.running()

	_, err := h.svc.CreateParty(h.ctx, alice, "Green!", "", "")
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.CreateParty(h.ctx, alice, strings.Repeat("a", 51), "", "")
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.CreateParty(h.ctx, alice, "Green", "", strings.Repeat("a", 501))
	require.ErrorIs(t, err, types.ErrValidation)

	h.party(alice, "Green")
	_, err = h.svc.CreateParty(h.ctx, bob, "green", "", "")
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.CreateParty(h.ctx, alice, "Blue", "", "")
	require.ErrorIs(t, err, types.ErrValidation)

	id, req, expires, err := h.svc.RequestJoin(h.ctx, bob, "Green")
	require.NoError(t, err)
	assert.Equal(t, "alice", req.Leader)
	assert.Equal(t, h.clock.Now().Add(5*time.Minute), expires)

	_, err = h.svc.DecideJoin(h.ctx, carol, id, true)
	require.ErrorIs(t, err, types.ErrPermission)
	r, err := h.svc.DecideJoin(h.ctx, alice, id, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, r.Party.Members)
	_, err = h.svc.DecideJoin(h.ctx, alice, id, true)
	require.ErrorIs(t, err, ErrTicketUnknown)

	_, err = h.svc.EditParty(h.ctx, bob, "Green", "more trees", "🌳")
	require.NoError(t, err)
	_, err = h.svc.EditParty(h.ctx, carol, "Green", "no trees", "")
	require.ErrorIs(t, err, types.ErrPermission)

	_, err = h.svc.LeaveParty(h.ctx, alice)
	require.ErrorIs(t, err, types.ErrValidation)
	r, err = h.svc.LeaveParty(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, r.Party.Members)
	assert.Equal(t, "more trees", r.Party.Agenda)
	assert.Equal(t, "🌳", r.Party.Emoji)
	_, err = h.svc.LeaveParty(h.ctx, bob)
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestJoinRequestExpires(t *testing.T) {
	h := newHarness(t)
	h.running()
	h.party(alice, "Green")

	id, _, _, err := h.svc.RequestJoin(h.ctx, bob, "Green")
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)
	_, err = h.svc.DecideJoin(h.ctx, alice, id, true)
	require.ErrorIs(t, err, ErrTicketExpired)
	require.ErrorIs(t, err, types.ErrValidation)

	e, err := h.svc.GetElection(h.ctx, "g1")
	require.NoError(t, err)
	assert.False(t, e.Parties["Green"].IsMember("bob"))

	id, _, _, err = h.svc.RequestJoin(h.ctx, bob, "Green")
	require.NoError(t, err)
	r, err := h.svc.DecideJoin(h.ctx, alice, id, false)
	require.NoError(t, err)
	assert.Equal(t, "decline", r.Action)
	assert.Equal(t, 0, h.svc.joins.Len())
}

func TestDeletePartyBurnsFunds(t *testing.T) {
	h := newHarness(t)
	h.running()
	h.bonded(alice, "Green", 100, 100)
	_, err := h.svc.Buy(h.ctx, bob, "Green", 100)
	require.NoError(t, err)

	_, err = h.svc.DeleteParty(h.ctx, bob, "Green")
	require.ErrorIs(t, err, types.ErrPermission)
	r, err := h.svc.DeleteParty(h.ctx, admin, "Green")
	require.NoError(t, err)
	assert.Equal(t, int64(200), r.Burned)
	assert.Equal(t, int64(50), r.Party.TokenHolders["bob"])

	parties, err := h.svc.Parties(h.ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, parties)
	assert.Equal(t, int64(900), h.available(bob))
}

func TestLifecycleGating(t *testing.T) {
	h := newHarness(t)
	start := h.clock.Now().Add(time.Hour)
	e, err := h.svc.CreateElection(h.ctx, admin, "Spring", start, 24)
	require.NoError(t, err)
	require.Equal(t, types.StatusScheduled, e.Status)

	h.party(alice, "Green")
	_, err = h.svc.CreateBond(h.ctx, alice, "Green", 100, 100, one)
	require.NoError(t, err)
	_, err = h.svc.RegisterVoter(h.ctx, bob, "key-bob")
	require.NoError(t, err)

	_, err = h.svc.Buy(h.ctx, bob, "Green", 100)
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.Vote(h.ctx, bob, "Green", sign("key-bob", "Green"))
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.Campaign(h.ctx, alice, "Green", "hello", "")
	require.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, int64(1000), h.available(bob))

	h.clock.Advance(time.Hour)
	_, err = h.svc.Buy(h.ctx, bob, "Green", 100)
	require.NoError(t, err)
	_, err = h.svc.Settle(h.ctx, admin)
	require.ErrorIs(t, err, types.ErrValidation)

	h.clock.Advance(24 * time.Hour)
	_, err = h.svc.Sell(h.ctx, bob, "Green", 10)
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.CreateParty(h.ctx, carol, "Blue", "", "")
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = h.svc.RegisterVoter(h.ctx, carol, "key-carol")
	require.ErrorIs(t, err, types.ErrValidation)

	view, err := h.svc.Election(h.ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusEnded, view.Status)
	assert.Zero(t, view.Remaining)

	_, err = h.svc.Settle(h.ctx, admin)
	require.NoError(t, err)
}
