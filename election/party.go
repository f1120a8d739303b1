package election

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/types"
)

const (
	MaxPartyNameLength = 50
	MaxAgendaLength    = 500
	MaxEmojiLength     = 16
)

var partyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)

func validatePartyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxPartyNameLength || !partyNamePattern.MatchString(name) {
		return "", types.Validation("party name must be 1 to %d letters, digits or spaces", MaxPartyNameLength)
	}
	return name, nil
}

func validateAgenda(agenda string) error {
	if utf8.RuneCountInString(agenda) > MaxAgendaLength {
		return types.Validation("agenda is longer than %d characters", MaxAgendaLength)
	}
	return nil
}

type PartyReceipt struct {
	Guild      string       `json:"guild"`
	ElectionId string       `json:"electionId"`
	User       string       `json:"user"`
	Action     string       `json:"action"`
	Party      *types.Party `json:"party,omitempty"`
	Burned     int64        `json:"burned,omitempty"`
}

func (s *Service) CreateParty(ctx context.Context, caller Caller, name, emoji, agenda string) (r *PartyReceipt, err error) {
	if name, err = validatePartyName(name); err != nil {
		return
	}
	if err = validateAgenda(agenda); err != nil {
		return
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return nil, types.Validation("emoji is too long")
	}
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	var created *types.Party
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpCreateParty, e.Status); err != nil {
			return err
		}
		for existing := range e.Parties {
			if strings.EqualFold(existing, name) {
				return types.Validation("party %q already exists", existing)
			}
		}
		if p := e.PartyOf(caller.User); p != nil {
			return types.Validation("you are already a member of %s", p.Name)
		}
		created = types.NewParty(name, emoji, agenda, caller.User)
		e.Parties[name] = created
		return nil
	})
	if err != nil {
		return
	}
	s.logger.Info("party created", "guild", caller.Guild, "party", name, "leader", caller.User)
	return &PartyReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, User: caller.User, Action: types.ActionCreate, Party: created}, nil
}

// RequestJoin parks a join request until the party leader decides on it.
func (s *Service) RequestJoin(ctx context.Context, caller Caller, party string) (id string, req JoinRequest, expires time.Time, err error) {
	_, e, err := s.load(ctx, caller.Guild)
	if err != nil {
		return
	}
	if err = lifecycle.Allow(lifecycle.OpJoinParty, e.Status); err != nil {
		return
	}
	p, err := partyOf(e, party)
	if err != nil {
		return
	}
	if cur := e.PartyOf(caller.User); cur != nil {
		err = types.Validation("you are already a member of %s", cur.Name)
		return
	}
	req = JoinRequest{
		Guild:      caller.Guild,
		ElectionId: e.ElectionId,
		Party:      p.Name,
		User:       caller.User,
		Leader:     p.LeaderId,
		CreatedAt:  s.clock(),
	}
	id, expires = s.joins.Put(req)
	s.logger.Debug("join requested", "guild", caller.Guild, "party", p.Name, "user", caller.User, "request", id)
	return
}

func (s *Service) PendingJoin(id string) (JoinRequest, error) {
	return s.joins.Peek(id)
}

// DecideJoin lets the party leader accept or decline a pending request. Only
// the leader consumes the request.
func (s *Service) DecideJoin(ctx context.Context, caller Caller, id string, approve bool) (r *PartyReceipt, err error) {
	req, err := s.joins.Peek(id)
	if err != nil {
		return
	}
	if req.Guild != caller.Guild || req.Leader != caller.User {
		return nil, types.Permission("only the leader of %s can respond to join requests", req.Party)
	}
	if _, err = s.joins.Take(id); err != nil {
		return
	}
	r = &PartyReceipt{Guild: req.Guild, ElectionId: req.ElectionId, User: req.User, Action: "decline"}
	if !approve {
		s.logger.Info("join declined", "guild", req.Guild, "party", req.Party, "user", req.User)
		return r, nil
	}
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return nil, err
	}
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if e.ElectionId != req.ElectionId {
			return types.Validation("the election has changed since the request")
		}
		if err := lifecycle.Allow(lifecycle.OpJoinParty, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, req.Party)
		if err != nil {
			return err
		}
		if p.LeaderId != caller.User {
			return types.Permission("only the leader of %s can respond to join requests", p.Name)
		}
		if cur := e.PartyOf(req.User); cur != nil {
			return types.Validation("user is already a member of %s", cur.Name)
		}
		p.AddMember(req.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("party joined", "guild", req.Guild, "party", req.Party, "user", req.User)
	r.Action = types.ActionJoin
	r.Party = e.Parties[req.Party]
	return r, nil
}

// LeaveParty removes the caller from their party. Tokens they hold stay
// theirs.
func (s *Service) LeaveParty(ctx context.Context, caller Caller) (r *PartyReceipt, err error) {
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	var left string
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpLeaveParty, e.Status); err != nil {
			return err
		}
		p := e.PartyOf(caller.User)
		if p == nil {
			return types.Validation("you are not a member of any party")
		}
		if p.LeaderId == caller.User {
			return types.Validation("party leaders cannot leave, delete the party instead")
		}
		p.RemoveMember(caller.User)
		left = p.Name
		return nil
	})
	if err != nil {
		return
	}
	s.logger.Info("party left", "guild", caller.Guild, "party", left, "user", caller.User)
	return &PartyReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, User: caller.User, Action: types.ActionLeave, Party: e.Parties[left]}, nil
}

// EditParty replaces the agenda and, when given, the emoji.
func (s *Service) EditParty(ctx context.Context, caller Caller, party, agenda, emoji string) (r *PartyReceipt, err error) {
	if err = validateAgenda(agenda); err != nil {
		return
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return nil, types.Validation("emoji is too long")
	}
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpEditParty, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		if !p.IsMember(caller.User) {
			return types.Permission("only leaders and members of %s can edit it", p.Name)
		}
		p.Agenda = agenda
		if emoji != "" {
			p.Emoji = emoji
		}
		return nil
	})
	if err != nil {
		return
	}
	return &PartyReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, User: caller.User, Action: types.ActionEdit, Party: e.Parties[party]}, nil
}

// DeleteParty removes a party. Its vault and pool are burned, and its token
// holders lose their tokens.
func (s *Service) DeleteParty(ctx context.Context, caller Caller, party string) (r *PartyReceipt, err error) {
	docs, err := s.lookup(ctx, caller.Guild)
	if err != nil {
		return
	}
	var removed *types.Party
	e, err := s.updateElection(ctx, docs, func(e *types.Election) error {
		if err := lifecycle.Allow(lifecycle.OpDeleteParty, e.Status); err != nil {
			return err
		}
		p, err := partyOf(e, party)
		if err != nil {
			return err
		}
		if p.LeaderId != caller.User && !caller.Admin {
			return types.Permission("only the leader of %s or an admin can delete it", p.Name)
		}
		removed = p
		delete(e.Parties, party)
		return nil
	})
	if err != nil {
		return
	}
	burned := removed.Vault + removed.Pool
	s.logger.Info("party deleted", "guild", caller.Guild, "party", party, "by", caller.User, "burned", burned, "holders", len(removed.TokenHolders))
	return &PartyReceipt{Guild: caller.Guild, ElectionId: e.ElectionId, User: caller.User, Action: types.ActionDelete, Party: removed, Burned: burned}, nil
}
