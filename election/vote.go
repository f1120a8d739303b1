package election

import (
	"context"
	"time"

	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/types"
)

type VoteReceipt struct {
	Guild      string    `json:"guild"`
	ElectionId string    `json:"electionId"`
	Voter      string    `json:"voter"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
}

// RegisterVoter stores the caller's public key for this election. A key can
// be registered once.
func (s *Service) RegisterVoter(ctx context.Context, caller Caller, publicKeyPem string) (r *VoteReceipt, err error) {
	if s.verifier == nil {
		return nil, types.Validation("voting is not configured")
	}
	if err = s.verifier.ValidatePublicKey(publicKeyPem); err != nil {
		return nil, types.Validation("invalid public key: %v", err)
	}
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpRegisterVoter, e.Status); err != nil {
			return err
		}
		if _, ok := e.RegisteredVoters[caller.User]; ok {
			return types.Validation("you are already registered to vote")
		}
		e.RegisteredVoters[caller.User] = publicKeyPem
		return nil
	})
	if err != nil {
		return
	}
	s.logger.Info("voter registered", "guild", caller.Guild, "voter", caller.User)
	return &VoteReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, Voter: caller.User, Action: "register", Timestamp: e.Meta.LastUpdated}, nil
}

// checkBallot validates a ballot against the current election without
// writing anything.
func (s *Service) checkBallot(ctx context.Context, caller Caller, party, signature string) (docs guildDocs, e *types.Election, err error) {
	if s.verifier == nil {
		err = types.Validation("voting is not configured")
		return
	}
	docs, e, err = s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if err = lifecycle.Allow(lifecycle.OpVote, e.Status); err != nil {
		return
	}
	pem, ok := e.RegisteredVoters[caller.User]
	if !ok {
		err = types.Validation("you must register a voting key first")
		return
	}
	if _, err = partyOf(e, party); err != nil {
		return
	}
	if !s.verifier.Verify(party, signature, pem) {
		err = types.Validation("signature does not verify against your registered key")
		return
	}
	return
}

// castVote appends the ballot. The vote box is the only document written,
// so a voter is deduplicated at append time.
func (s *Service) castVote(ctx context.Context, caller Caller, docs guildDocs, e *types.Election, party, signature string) (*VoteReceipt, error) {
	endAt := e.EndAt()
	var at time.Time
	_, err := state.AtomicUpdate(ctx, s.store, docs.entry.VotesDocId, func(box *types.VoteBox) error {
		at = s.clock()
		if !at.Before(endAt) {
			return types.Validation("voting has closed")
		}
		if box.HasVoted(caller.User) {
			return types.Validation("you have already voted")
		}
		box.Votes = append(box.Votes, types.Vote{
			VoterId:   caller.User,
			Message:   party,
			Signature: signature,
			Timestamp: at,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("vote cast", "guild", caller.Guild, "election", e.ElectionId, "voter", caller.User)
	return &VoteReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, Voter: caller.User, Action: "cast", Timestamp: at}, nil
}

// Vote casts a signed ballot for party. The signed message is the party name.
func (s *Service) Vote(ctx context.Context, caller Caller, party, signature string) (*VoteReceipt, error) {
	docs, e, err := s.checkBallot(ctx, caller, party, signature)
	if err != nil {
		return nil, err
	}
	return s.castVote(ctx, caller, docs, e, party, signature)
}

// PrepareVote checks a ballot and parks it until ConfirmVote or the confirm
// timeout.
func (s *Service) PrepareVote(ctx context.Context, caller Caller, party, signature string) (id string, expires time.Time, err error) {
	_, e, err := s.checkBallot(ctx, caller, party, signature)
	if err != nil {
		return
	}
	id, expires = s.votes.Put(VoteTicket{
		Guild:      caller.Guild,
		ElectionId: e.ElectionId,
		User:       caller.User,
		Party:      party,
		Signature:  signature,
		CreatedAt:  s.clock(),
	})
	return
}

func (s *Service) ConfirmVote(ctx context.Context, caller Caller, id string) (*VoteReceipt, error) {
	t, err := s.votes.Peek(id)
	if err != nil {
		return nil, err
	}
	if t.Guild != caller.Guild || t.User != caller.User {
		return nil, types.Permission("this ballot belongs to someone else")
	}
	if _, err = s.votes.Take(id); err != nil {
		return nil, err
	}
	docs, e, err := s.checkBallot(ctx, caller, t.Party, t.Signature)
	if err != nil {
		return nil, err
	}
	if e.ElectionId != t.ElectionId {
		return nil, types.Validation("the election has changed since the ballot was prepared")
	}
	return s.castVote(ctx, caller, docs, e, t.Party, t.Signature)
}

// CancelVote drops a prepared ballot.
func (s *Service) CancelVote(caller Caller, id string) error {
	t, err := s.votes.Peek(id)
	if err != nil {
		return err
	}
	if t.Guild != caller.Guild || t.User != caller.User {
		return types.Permission("this ballot belongs to someone else")
	}
	_, err = s.votes.Take(id)
	return err
}

// Votes reveals the ballots of a finalized election.
func (s *Service) Votes(ctx context.Context, guild string) ([]types.Vote, error) {
	docs, e, err := s.load(ctx, guild)
	if err != nil {
		return nil, err
	}
	if e.Status != types.StatusFinalized {
		return nil, types.Validation("votes stay sealed until the election is settled")
	}
	box, _, err := state.Get[types.VoteBox](ctx, s.store, docs.entry.VotesDocId)
	if err != nil {
		return nil, err
	}
	return box.Votes, nil
}
