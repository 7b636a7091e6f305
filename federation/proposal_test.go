package federation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProposalLifecycle(t *testing.T) {
	ctx := context.Background()
	f, _, pub := newTestFederation(t, "A", "B")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, []byte("payload"))
	assert.Nil(t, err)
	expected, err := f.GetTransactionID(k)
	assert.Nil(t, err)
	assert.Equal(t, expected, id)
	assert.True(t, f.IsProposed(id))
	assert.False(t, f.IsProcessed(id))
	assert.Equal(t, 0, f.SignatureCount(id))

	_, err = f.UpdateSignatureState(ctx, "A", k, "sig-a", true)
	assert.Nil(t, err)
	assert.True(t, f.IsSigned(id, "A"))
	assert.False(t, f.IsSigned(id, "B"))
	assert.Equal(t, 1, f.SignatureCount(id))

	_, err = f.UpdateSignatureState(ctx, "B", k, "sig-b", false)
	assert.Nil(t, err)
	assert.Equal(t, 2, f.SignatureCount(id))

	sigs, err := f.Signatures(id)
	assert.Nil(t, err)
	assert.Equal(t, []Signature{
		{Member: "A", Signature: "sig-a", Valid: true},
		{Member: "B", Signature: "sig-b", Valid: false},
	}, sigs)

	sig, err := f.Signature(id, 1)
	assert.Nil(t, err)
	assert.Equal(t, Identity("B"), sig.Member)

	_, err = f.UpdateTransactionState(ctx, "A", k, []byte("final"), true)
	assert.Nil(t, err)
	assert.True(t, f.IsProcessed(id))

	_, err = f.UpdateTransactionState(ctx, "A", k, []byte("final"), true)
	assert.ErrorIs(t, err, ErrAlreadySent)

	p, err := f.Proposal(id)
	assert.Nil(t, err)
	assert.Equal(t, HexBytes("payload"), p.Payload)
	assert.Equal(t, HexBytes("final"), p.FinalPayload)

	assert.Equal(t, []EventKind{
		EventInitialized, EventProposalCreated, EventProposalSigned, EventProposalSigned, EventProposalSent,
	}, pub.kinds())
}

func TestFailBeforeSendAllowsReproposal(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A", "B")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig-a", true)
	assert.Nil(t, err)

	_, err = f.SetTransactionFailed(ctx, "A", k)
	assert.ErrorIs(t, err, ErrNotOwner)

	failed, err := f.SetTransactionFailed(ctx, "O", k)
	assert.Nil(t, err)
	assert.Equal(t, id, failed)
	assert.False(t, f.IsProposed(id))
	assert.False(t, f.IsSigned(id, "A"))
	assert.Equal(t, 0, f.SignatureCount(id))

	again, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	assert.Equal(t, id, again)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig-a", true)
	assert.Nil(t, err)
}

func TestFailAfterSendIsRejected(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.UpdateTransactionState(ctx, "A", k, nil, true)
	assert.Nil(t, err)

	_, err = f.SetTransactionFailed(ctx, "O", k)
	assert.ErrorIs(t, err, ErrAlreadySent)
	assert.True(t, f.IsProposed(id))
	assert.True(t, f.IsProcessed(id))
}

func TestNoDoublePropose(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A", "B")
	k := testKey()

	_, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.SendTransactionProposal(ctx, "B", k, []byte("other"))
	assert.ErrorIs(t, err, ErrAlreadyProposed)
}

func TestNoDoubleSign(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "", false)
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig-a", true)
	assert.ErrorIs(t, err, ErrAlreadySigned)
	assert.Equal(t, 1, f.SignatureCount(id))

	sig, err := f.Signature(id, 0)
	assert.Nil(t, err)
	assert.Equal(t, "", sig.Signature)
	assert.False(t, sig.Valid)
}

func TestMembershipGating(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")
	k := testKey()

	_, err := f.SendTransactionProposal(ctx, "Z", k, nil)
	assert.ErrorIs(t, err, ErrNotFederator)
	_, err = f.SendTransactionProposal(ctx, "O", k, nil)
	assert.ErrorIs(t, err, ErrNotFederator)

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)

	_, err = f.UpdateSignatureState(ctx, "Z", k, "sig", true)
	assert.ErrorIs(t, err, ErrNotFederator)
	_, err = f.UpdateTransactionState(ctx, "Z", k, nil, true)
	assert.ErrorIs(t, err, ErrNotFederator)
	assert.Equal(t, 0, f.SignatureCount(id))
	assert.False(t, f.IsProcessed(id))
}

func TestNotProposed(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")
	k := testKey()
	id, err := TransactionID(k)
	assert.Nil(t, err)

	_, err = f.UpdateSignatureState(ctx, "A", k, "sig", true)
	assert.ErrorIs(t, err, ErrNotProposed)
	_, err = f.UpdateTransactionState(ctx, "A", k, nil, true)
	assert.ErrorIs(t, err, ErrNotProposed)
	_, err = f.SetTransactionFailed(ctx, "O", k)
	assert.ErrorIs(t, err, ErrNotProposed)

	_, err = f.Signature(id, 0)
	assert.ErrorIs(t, err, ErrNotProposed)
	_, err = f.Signatures(id)
	assert.ErrorIs(t, err, ErrNotProposed)
	_, err = f.Proposal(id)
	assert.ErrorIs(t, err, ErrNotProposed)
	assert.False(t, f.IsSigned(id, "A"))
	assert.False(t, f.IsProcessed(id))
}

func TestUpdateTransactionStateNotSent(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)

	_, err = f.UpdateTransactionState(ctx, "A", k, []byte("draft"), false)
	assert.Nil(t, err)
	assert.False(t, f.IsProcessed(id))

	_, err = f.UpdateTransactionState(ctx, "A", k, []byte("final"), true)
	assert.Nil(t, err)
	p, err := f.Proposal(id)
	assert.Nil(t, err)
	assert.Equal(t, HexBytes("final"), p.FinalPayload)
}

func TestSignatureIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.Signature(id, 0)
	assert.ErrorIs(t, err, ErrSignatureIndexOutOfRange)
	_, err = f.Signature(id, -1)
	assert.ErrorIs(t, err, ErrSignatureIndexOutOfRange)
}

func TestRemovedMemberSignaturesAreKept(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newTestFederation(t, "A", "B")
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, "A", k, nil)
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig-a", true)
	assert.Nil(t, err)

	assert.Nil(t, f.RemoveMember(ctx, "O", "A"))
	assert.True(t, f.IsSigned(id, "A"))
	assert.Equal(t, 1, f.SignatureCount(id))

	_, err = f.UpdateTransactionState(ctx, "A", k, nil, true)
	assert.ErrorIs(t, err, ErrNotFederator)
}

func TestConcurrentSigning(t *testing.T) {
	ctx := context.Background()
	members := make([]Identity, 0, 32)
	for i := 0; i < 32; i++ {
		members = append(members, Identity(fmt.Sprintf("member-%d", i)))
	}
	f, _, _ := newTestFederation(t, members...)
	k := testKey()

	id, err := f.SendTransactionProposal(ctx, members[0], k, nil)
	assert.Nil(t, err)

	var wg sync.WaitGroup
	for _, m := range members {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(m Identity) {
				defer wg.Done()
				f.UpdateSignatureState(ctx, m, k, string(m), true)
			}(m)
		}
	}
	wg.Wait()

	assert.Equal(t, len(members), f.SignatureCount(id))
	for _, m := range members {
		assert.True(t, f.IsSigned(id, m))
	}
}
