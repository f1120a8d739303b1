package election

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/types"
)

const MaxElectionNameLength = 100

type ElectionSummary struct {
	Guild      string               `json:"guild"`
	ElectionId string               `json:"electionId"`
	Name       string               `json:"name"`
	Status     types.ElectionStatus `json:"status"`
	StartAt    time.Time            `json:"startAt"`
	EndAt      time.Time            `json:"endAt"`
	Parties    int                  `json:"parties"`
	Voters     int                  `json:"voters"`
}

func summarize(e *types.Election) ElectionSummary {
	return ElectionSummary{
		Guild:      e.GuildId,
		ElectionId: e.ElectionId,
		Name:       e.Name,
		Status:     e.Status,
		StartAt:    e.StartAt,
		EndAt:      e.EndAt(),
		Parties:    len(e.Parties),
		Voters:     len(e.RegisteredVoters),
	}
}

// discard deletes documents created by a command that did not complete.
func (s *Service) discard(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, state.ErrNotFound) {
			s.logger.Error("discard document fail", "id", id, "err", err)
		}
	}
}

// CreateElection opens a new election for the caller's guild. A zero startAt
// starts it now and a zero duration takes the configured default. A guild
// may only replace its election once the previous one is finalized.
func (s *Service) CreateElection(ctx context.Context, caller Caller, name string, startAt time.Time, durationHours int64) (e *types.Election, err error) {
	if err = requireAdmin(caller); err != nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxElectionNameLength {
		return nil, types.Validation("election name must be 1 to %d characters", MaxElectionNameLength)
	}
	if durationHours == 0 {
		durationHours = s.cfg.DefaultDurationHours
	}
	if err = lifecycle.ValidateDuration(durationHours, s.cfg.MaxDurationHours); err != nil {
		return
	}
	now := s.clock()
	if startAt.IsZero() {
		startAt = now
	}

	idx, err := s.index(ctx)
	if err != nil {
		return
	}
	var previous types.IndexEntry
	if entry, ok := idx.Entries[caller.Guild]; ok {
		old, _, err1 := state.Get[types.Election](ctx, s.store, entry.ElectionDocId)
		switch {
		case err1 == nil && old.Status != types.StatusFinalized:
			return nil, types.Validation("guild already has an active election %q", old.Name)
		case err1 != nil && !errors.Is(err1, state.ErrNotFound):
			return nil, err1
		}
		previous = entry
	}

	commonId, hasCommon := idx.Commons[caller.Guild]
	var createdCommon string
	if !hasCommon {
		c := &types.CommonData{GuildId: caller.Guild}
		c.Normalize()
		if createdCommon, err = state.Create(ctx, s.store, c); err != nil {
			return
		}
		commonId = createdCommon
	}

	e = &types.Election{
		ElectionId:    uuid.NewString(),
		Name:          name,
		GuildId:       caller.Guild,
		CreatedAt:     now,
		StartAt:       startAt.UTC(),
		DurationHours: durationHours,
		Status:        lifecycle.InitialStatus(startAt, now),
	}
	e.Normalize()
	electionDocId, err := state.Create(ctx, s.store, e)
	if err != nil {
		s.discard(ctx, createdCommon)
		return nil, err
	}
	box := &types.VoteBox{ElectionId: e.ElectionId}
	box.Normalize()
	votesDocId, err := state.Create(ctx, s.store, box)
	if err != nil {
		s.discard(ctx, createdCommon, electionDocId)
		return nil, err
	}

	_, err = state.AtomicUpdate(ctx, s.store, s.cfg.IndexId, func(idx *types.Index) error {
		if cur, ok := idx.Entries[caller.Guild]; ok && cur.ElectionId != previous.ElectionId {
			return types.Validation("another election was created concurrently")
		}
		if existing, ok := idx.Commons[caller.Guild]; ok {
			commonId = existing
		} else {
			idx.Commons[caller.Guild] = commonId
		}
		idx.Entries[caller.Guild] = types.IndexEntry{
			ElectionDocId: electionDocId,
			VotesDocId:    votesDocId,
			ElectionId:    e.ElectionId,
			CreatedAt:     now,
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, createdCommon, electionDocId, votesDocId)
		return nil, err
	}
	if createdCommon != "" && createdCommon != commonId {
		s.discard(ctx, createdCommon)
	}
	if previous.ElectionId != "" {
		s.discard(ctx, previous.ElectionDocId, previous.VotesDocId)
	}
	s.logger.Info("election created", "guild", caller.Guild, "election", e.ElectionId, "status", e.Status, "start", e.StartAt, "hours", durationHours)
	return e, nil
}

func (s *Service) GetElection(ctx context.Context, guild string) (*types.Election, error) {
	_, e, err := s.load(ctx, guild)
	return e, err
}

func (s *Service) ListElections(ctx context.Context) ([]ElectionSummary, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	guilds := make([]string, 0, len(idx.Entries))
	for g := range idx.Entries {
		guilds = append(guilds, g)
	}
	sort.Strings(guilds)
	out := make([]ElectionSummary, 0, len(guilds))
	for _, g := range guilds {
		e, _, err := state.Get[types.Election](ctx, s.store, idx.Entries[g].ElectionDocId)
		if err != nil {
			s.logger.Error("load election fail", "guild", g, "err", err)
			continue
		}
		lifecycle.Refresh(e, s.clock())
		out = append(out, summarize(e))
	}
	return out, nil
}

// DeleteElection removes the guild's election and votes. The ledger stays.
func (s *Service) DeleteElection(ctx context.Context, caller Caller) (summary ElectionSummary, err error) {
	if err = requireAdmin(caller); err != nil {
		return
	}
	docs, e, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	_, err = state.AtomicUpdate(ctx, s.store, s.cfg.IndexId, func(idx *types.Index) error {
		if cur, ok := idx.Entries[caller.Guild]; ok && cur.ElectionId == docs.entry.ElectionId {
			delete(idx.Entries, caller.Guild)
		}
		return nil
	})
	if err != nil {
		return
	}
	s.discard(ctx, docs.entry.ElectionDocId, docs.entry.VotesDocId)
	s.logger.Info("election deleted", "guild", caller.Guild, "election", e.ElectionId)
	return summarize(e), nil
}

// ResetGuild forgets the guild's election and ledger without deleting any
// document.
func (s *Service) ResetGuild(ctx context.Context, caller Caller) (forgot []string, err error) {
	if err = requireAdmin(caller); err != nil {
		return
	}
	_, err = state.AtomicUpdate(ctx, s.store, s.cfg.IndexId, func(idx *types.Index) error {
		forgot = forgot[:0]
		if entry, ok := idx.Entries[caller.Guild]; ok {
			forgot = append(forgot, entry.ElectionDocId, entry.VotesDocId)
			delete(idx.Entries, caller.Guild)
		}
		if id, ok := idx.Commons[caller.Guild]; ok {
			forgot = append(forgot, id)
			delete(idx.Commons, caller.Guild)
		}
		return nil
	})
	if err == nil {
		s.logger.Info("guild reset", "guild", caller.Guild, "documents", len(forgot))
	}
	return
}
