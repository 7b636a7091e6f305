package federation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/bartossh/Federation/logging"
	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	mux    sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) kinds() []EventKind {
	p.mux.Lock()
	defer p.mux.Unlock()
	kinds := make([]EventKind, 0, len(p.events))
	for _, ev := range p.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type failingJournal struct {
	*MemoryJournal
	fail bool
}

func (j *failingJournal) Append(ctx context.Context, ev *Event) error {
	if j.fail {
		return errors.New("disk is full")
	}
	return j.MemoryJournal.Append(ctx, ev)
}

func testLogger() logging.Helper {
	return logging.New(func(error) {}, func(error) {}, io.Discard)
}

func newTestFederation(t *testing.T, members ...Identity) (*Federation, *MemoryJournal, *recordingPublisher) {
	t.Helper()
	j := NewMemoryJournal()
	pub := &recordingPublisher{}
	f, err := New(context.Background(), members, "O", j, pub, testLogger())
	assert.Nil(t, err)
	return f, j, pub
}

func TestNewFederation(t *testing.T) {
	f, j, pub := newTestFederation(t, "A", "B")

	assert.Equal(t, Identity("O"), f.Owner())
	assert.Equal(t, []Identity{"A", "B"}, f.Members())
	assert.True(t, f.IsMember("A"))
	assert.True(t, f.IsMember("B"))
	assert.False(t, f.IsMember("O"))
	assert.Equal(t, 1, j.Len())
	assert.Equal(t, []EventKind{EventInitialized}, pub.kinds())
}

func TestNewFederationInvalidMembers(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, nil, "O", NewMemoryJournal(), nil, testLogger())
	assert.ErrorIs(t, err, ErrEmptyMembers)

	_, err = New(ctx, []Identity{"A", "A"}, "O", NewMemoryJournal(), nil, testLogger())
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = New(ctx, []Identity{"A", ""}, "O", NewMemoryJournal(), nil, testLogger())
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = New(ctx, []Identity{"A"}, "", NewMemoryJournal(), nil, testLogger())
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestMembersOrderIsStable(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A", "B", "C")

	assert.Nil(t, f.AddMember(ctx, "O", "D"))
	assert.Nil(t, f.RemoveMember(ctx, "O", "B"))
	assert.Equal(t, []Identity{"A", "C", "D"}, f.Members())
	assert.Equal(t, f.Members(), f.Members())

	members := f.Members()
	members[0] = "X"
	assert.Equal(t, Identity("A"), f.Members()[0])
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	f, _, pub := newTestFederation(t, "A")

	assert.ErrorIs(t, f.AddMember(ctx, "A", "D"), ErrNotOwner)
	assert.ErrorIs(t, f.AddMember(ctx, "O", "A"), ErrAlreadyMember)
	assert.ErrorIs(t, f.AddMember(ctx, "O", ""), ErrInvalidIdentity)
	assert.False(t, f.IsMember("D"))

	assert.Nil(t, f.AddMember(ctx, "O", "D"))
	assert.True(t, f.IsMember("D"))
	assert.Equal(t, []EventKind{EventInitialized, EventMemberAdded}, pub.kinds())
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A", "B")

	assert.ErrorIs(t, f.RemoveMember(ctx, "A", "B"), ErrNotOwner)
	assert.ErrorIs(t, f.RemoveMember(ctx, "O", "X"), ErrUnknownMember)

	assert.Nil(t, f.RemoveMember(ctx, "O", "A"))
	assert.False(t, f.IsMember("A"))

	assert.ErrorIs(t, f.RemoveMember(ctx, "O", "B"), ErrLastMemberRemoval)
	assert.True(t, f.IsMember("B"))
	assert.Equal(t, []Identity{"B"}, f.Members())
}

func TestLastMemberInvariant(t *testing.T) {
	ctx := context.Background()
	members := []Identity{"A", "B", "C", "D", "E"}
	f, _, _ := newTestFederation(t, members...)

	for _, m := range members {
		err := f.RemoveMember(ctx, "O", m)
		if len(f.Members()) == 1 && f.IsMember(m) {
			assert.ErrorIs(t, err, ErrLastMemberRemoval)
		}
		assert.NotEmpty(t, f.Members())
	}
	assert.Equal(t, []Identity{"E"}, f.Members())
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")

	assert.ErrorIs(t, f.TransferOwnership(ctx, "A", "A"), ErrNotOwner)
	assert.ErrorIs(t, f.TransferOwnership(ctx, "O", ""), ErrInvalidIdentity)

	assert.Nil(t, f.TransferOwnership(ctx, "O", "P"))
	assert.Equal(t, Identity("P"), f.Owner())
	assert.ErrorIs(t, f.AddMember(ctx, "O", "D"), ErrNotOwner)
	assert.Nil(t, f.AddMember(ctx, "P", "D"))
}

func TestJournalFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	j := &failingJournal{MemoryJournal: NewMemoryJournal()}
	pub := &recordingPublisher{}
	f, err := New(ctx, []Identity{"A", "B"}, "O", j, pub, testLogger())
	assert.Nil(t, err)

	k := testKey()
	id, err := f.SendTransactionProposal(ctx, "A", k, []byte("payload"))
	assert.Nil(t, err)

	j.fail = true
	assert.ErrorIs(t, f.AddMember(ctx, "O", "D"), ErrJournalWrite)
	assert.False(t, f.IsMember("D"))

	_, err = f.UpdateSignatureState(ctx, "A", k, "sig", true)
	assert.ErrorIs(t, err, ErrJournalWrite)
	assert.False(t, f.IsSigned(id, "A"))
	assert.Equal(t, 0, f.SignatureCount(id))

	_, err = f.SetTransactionFailed(ctx, "O", k)
	assert.ErrorIs(t, err, ErrJournalWrite)
	assert.True(t, f.IsProposed(id))

	assert.Equal(t, []EventKind{EventInitialized, EventProposalCreated}, pub.kinds())
	assert.Equal(t, 2, j.Len())
}

func TestRestoreFromJournal(t *testing.T) {
	ctx := context.Background()
	f, j, _ := newTestFederation(t, "A", "B")

	k := testKey()
	id, err := f.SendTransactionProposal(ctx, "A", k, []byte("payload"))
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig-a", true)
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "B", k, "sig-b", false)
	assert.Nil(t, err)
	_, err = f.UpdateTransactionState(ctx, "B", k, []byte("final"), true)
	assert.Nil(t, err)

	other := testKey()
	other.Receiver = "other"
	otherID, err := f.SendTransactionProposal(ctx, "B", other, nil)
	assert.Nil(t, err)
	_, err = f.SetTransactionFailed(ctx, "O", other)
	assert.Nil(t, err)

	assert.Nil(t, f.AddMember(ctx, "O", "C"))
	assert.Nil(t, f.RemoveMember(ctx, "O", "A"))
	assert.Nil(t, f.TransferOwnership(ctx, "O", "P"))

	restored, err := New(ctx, []Identity{"X"}, "Y", j, nil, testLogger())
	assert.Nil(t, err)

	assert.Equal(t, Identity("P"), restored.Owner())
	assert.Equal(t, []Identity{"B", "C"}, restored.Members())
	assert.True(t, restored.IsProcessed(id))
	assert.False(t, restored.IsProposed(otherID))

	want, err := f.Proposal(id)
	assert.Nil(t, err)
	got, err := restored.Proposal(id)
	assert.Nil(t, err)
	assert.Equal(t, want, got)
}

func TestRestoreFromCorruptedJournal(t *testing.T) {
	ctx := context.Background()

	j := NewMemoryJournal()
	assert.Nil(t, j.Append(ctx, &Event{Kind: EventMemberAdded, Caller: "O", Member: "A"}))
	_, err := New(ctx, []Identity{"A"}, "O", j, nil, testLogger())
	assert.ErrorIs(t, err, ErrCorruptedJournal)

	j = NewMemoryJournal()
	assert.Nil(t, j.Append(ctx, &Event{Kind: EventInitialized, Caller: "O", Owner: "O", Members: []Identity{"A"}}))
	k := testKey()
	id, err := TransactionID(k)
	assert.Nil(t, err)
	assert.Nil(t, j.Append(ctx, &Event{Kind: EventProposalSigned, Key: k, TxID: id, Caller: "A"}))
	_, err = New(ctx, []Identity{"A"}, "O", j, nil, testLogger())
	assert.ErrorIs(t, err, ErrCorruptedJournal)
	assert.ErrorIs(t, err, ErrNotProposed)
}

func TestPublishedEventsAreCopies(t *testing.T) {
	ctx := context.Background()
	f, _, pub := newTestFederation(t, "A")

	payload := []byte("payload")
	id, err := f.SendTransactionProposal(ctx, "A", testKey(), payload)
	assert.Nil(t, err)
	payload[0] = 'X'

	pub.mux.Lock()
	pub.events[1].Payload[1] = 'Y'
	pub.mux.Unlock()

	p, err := f.Proposal(id)
	assert.Nil(t, err)
	assert.Equal(t, HexBytes("payload"), p.Payload)
}

func TestMemoryJournalTransactionHistory(t *testing.T) {
	ctx := context.Background()
	f, j, _ := newTestFederation(t, "A")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig", true)
	assert.Nil(t, err)
	_, err = f.SetTransactionFailed(ctx, "O", k)
	assert.Nil(t, err)
	assert.Nil(t, f.AddMember(ctx, "O", "B"))

	history, err := j.ReadTransactionHistory(ctx, id)
	assert.Nil(t, err)
	kinds := make([]EventKind, 0, len(history))
	for _, ev := range history {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventProposalCreated, EventProposalSigned, EventProposalFailed}, kinds)

	other, err := j.ReadTransactionHistory(ctx, TxID{})
	assert.Nil(t, err)
	assert.Empty(t, other)
}

func TestConfigValidate(t *testing.T) {
	c := Config{Members: []Identity{"A"}, Owner: "O"}
	assert.Nil(t, c.Validate())
	assert.Equal(t, StorageMemory, c.Storage)

	c.Storage = "redis"
	assert.ErrorIs(t, c.Validate(), ErrUnknownStorage)

	c.Storage = StorageMongo
	c.Owner = ""
	assert.ErrorIs(t, c.Validate(), ErrInvalidIdentity)

	c.Owner = "O"
	c.Members = nil
	assert.ErrorIs(t, c.Validate(), ErrEmptyMembers)
}
