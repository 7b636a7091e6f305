package federation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bartossh/Federation/logger"
)

// Signature is a signature entry recorded by a single federator.
// The signature string is opaque, it may hold a single signature or a bundle of
// input indexed signatures, it is stored and republished as given.
type Signature struct {
	Member    Identity `json:"member"`
	Signature string   `json:"signature"`
	Valid     bool     `json:"valid"`
}

type proposal struct {
	payload      []byte
	finalPayload []byte
	processed    bool
	signatures   []Signature
	signedBy     map[Identity]struct{}
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Federation coordinates the fixed set of federators that jointly authorize
// cross-ledger transfers. It owns the members set and the proposals and mutates them
// only through its methods. Every mutation is validated against the current state,
// written to the journal, applied and published as a single atomic step.
type Federation struct {
	mux       sync.Mutex
	owner     Identity
	members   map[Identity]struct{}
	order     []Identity
	proposals map[TxID]*proposal
	journal   Journal
	pub       Publisher
	log       logger.Logger
	now       func() time.Time
}

// New creates the Federation.
// When journal contains events the state is restored from them and members and owner
// arguments are not used, otherwise the federation is initialized with given members and owner.
func New(
	ctx context.Context, members []Identity, owner Identity,
	j Journal, pub Publisher, log logger.Logger,
) (*Federation, error) {
	if pub == nil {
		pub = nopPublisher{}
	}
	f := &Federation{
		members:   make(map[Identity]struct{}, len(members)),
		proposals: make(map[TxID]*proposal),
		journal:   j,
		pub:       pub,
		log:       log,
		now:       time.Now,
	}

	events, err := j.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if len(events) > 0 {
		if err := f.replay(events); err != nil {
			return nil, err
		}
		if f.owner != owner || !f.hasExactly(members) {
			f.log.Warn("federation restored from journal, configured members and owner differ from the journal state and are ignored")
		}
		f.log.Info(fmt.Sprintf("federation restored from journal, events [ %d ], members [ %d ], proposals [ %d ]",
			len(events), len(f.members), len(f.proposals)))
		return f, nil
	}

	ev := Event{
		Kind:    EventInitialized,
		Caller:  owner,
		Members: append([]Identity{}, members...),
		Owner:   owner,
	}
	if err := f.commit(ctx, &ev); err != nil {
		return nil, err
	}
	f.log.Info(fmt.Sprintf("federation initialized, members [ %d ], owner [ %s ]", len(f.members), f.owner))

	return f, nil
}

// Owner returns the administrative identity.
func (f *Federation) Owner() Identity {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.owner
}

// IsMember returns true if identity is a current federator.
func (f *Federation) IsMember(identity Identity) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	_, ok := f.members[identity]
	return ok
}

// Members returns current federators in the order they were added.
func (f *Federation) Members() []Identity {
	f.mux.Lock()
	defer f.mux.Unlock()
	return append([]Identity{}, f.order...)
}

// AddMember adds a federator. Only the owner can add members.
func (f *Federation) AddMember(ctx context.Context, caller, member Identity) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.commit(ctx, &Event{Kind: EventMemberAdded, Caller: caller, Member: member})
}

// RemoveMember removes a federator. Only the owner can remove members
// and the last member can never be removed.
func (f *Federation) RemoveMember(ctx context.Context, caller, member Identity) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.commit(ctx, &Event{Kind: EventMemberRemoved, Caller: caller, Member: member})
}

// TransferOwnership hands the administration over to the new owner.
func (f *Federation) TransferOwnership(ctx context.Context, caller, newOwner Identity) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.commit(ctx, &Event{Kind: EventOwnershipTransferred, Caller: caller, Owner: newOwner})
}

// commit runs the event through validation, journal, state and publisher.
// Must be called with the lock held.
func (f *Federation) commit(ctx context.Context, ev *Event) error {
	if err := f.validate(ev); err != nil {
		return err
	}
	ev.CreatedAt = f.now().UTC()
	if err := f.journal.Append(ctx, ev); err != nil {
		f.log.Error(fmt.Sprintf("federation journal append of [ %s ] failed: %s", ev.Kind, err))
		return errors.Join(ErrJournalWrite, err)
	}
	f.apply(ev)
	f.pub.Publish(cloneEvent(ev))
	f.log.Debug(fmt.Sprintf("federation event [ %s ] committed, caller [ %s ]", ev.Kind, ev.Caller))
	return nil
}

func (f *Federation) replay(events []Event) error {
	for i := range events {
		ev := &events[i]
		if i == 0 && ev.Kind != EventInitialized {
			return errors.Join(ErrCorruptedJournal, fmt.Errorf("first event is [ %s ]", ev.Kind))
		}
		if err := f.validate(ev); err != nil {
			return errors.Join(ErrCorruptedJournal, fmt.Errorf("event %d [ %s ]: %w", i, ev.Kind, err))
		}
		f.apply(ev)
	}
	return nil
}

func (f *Federation) validate(ev *Event) error {
	switch ev.Kind {
	case EventInitialized:
		return f.validateInitialized(ev)
	case EventMemberAdded:
		if err := f.requireOwner(ev.Caller); err != nil {
			return err
		}
		if ev.Member == "" {
			return ErrInvalidIdentity
		}
		if _, ok := f.members[ev.Member]; ok {
			return ErrAlreadyMember
		}
	case EventMemberRemoved:
		if err := f.requireOwner(ev.Caller); err != nil {
			return err
		}
		if _, ok := f.members[ev.Member]; !ok {
			return ErrUnknownMember
		}
		if len(f.members) == 1 {
			return ErrLastMemberRemoval
		}
	case EventOwnershipTransferred:
		if err := f.requireOwner(ev.Caller); err != nil {
			return err
		}
		if ev.Owner == "" {
			return ErrInvalidIdentity
		}
	case EventProposalCreated, EventProposalSigned, EventProposalSent, EventProposalFailed:
		return f.validateProposal(ev)
	default:
		return ErrUnknownEvent
	}
	return nil
}

func (f *Federation) validateInitialized(ev *Event) error {
	if f.owner != "" || len(f.members) > 0 {
		return errors.New("federation is already initialized")
	}
	if ev.Owner == "" {
		return ErrInvalidIdentity
	}
	if len(ev.Members) == 0 {
		return ErrEmptyMembers
	}
	seen := make(map[Identity]struct{}, len(ev.Members))
	for _, m := range ev.Members {
		if m == "" {
			return ErrInvalidIdentity
		}
		if _, ok := seen[m]; ok {
			return ErrAlreadyMember
		}
		seen[m] = struct{}{}
	}
	return nil
}

func (f *Federation) apply(ev *Event) {
	switch ev.Kind {
	case EventInitialized:
		f.owner = ev.Owner
		for _, m := range ev.Members {
			f.members[m] = struct{}{}
			f.order = append(f.order, m)
		}
	case EventMemberAdded:
		f.members[ev.Member] = struct{}{}
		f.order = append(f.order, ev.Member)
	case EventMemberRemoved:
		delete(f.members, ev.Member)
		for i, m := range f.order {
			if m == ev.Member {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	case EventOwnershipTransferred:
		f.owner = ev.Owner
	default:
		f.applyProposal(ev)
	}
}

func (f *Federation) requireOwner(caller Identity) error {
	if caller == "" || caller != f.owner {
		return ErrNotOwner
	}
	return nil
}

func (f *Federation) requireMember(caller Identity) error {
	if _, ok := f.members[caller]; !ok {
		return ErrNotFederator
	}
	return nil
}

func (f *Federation) hasExactly(members []Identity) bool {
	if len(members) != len(f.members) {
		return false
	}
	for _, m := range members {
		if _, ok := f.members[m]; !ok {
			return false
		}
	}
	return true
}

func cloneEvent(ev *Event) Event {
	c := *ev
	c.Key = ev.Key.clone()
	if ev.Members != nil {
		c.Members = append([]Identity{}, ev.Members...)
	}
	if ev.Payload != nil {
		c.Payload = append(HexBytes{}, ev.Payload...)
	}
	return c
}
