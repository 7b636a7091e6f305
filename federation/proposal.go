package federation

import (
	"context"
)

// ProposalView is a read only snapshot of a proposal.
type ProposalView struct {
	TxID         TxID        `json:"tx_id"`
	Processed    bool        `json:"processed"`
	Payload      HexBytes    `json:"payload"`
	FinalPayload HexBytes    `json:"final_payload"`
	Signatures   []Signature `json:"signatures"`
}

// GetTransactionID computes the identifier of the proposal described by the key.
// It does not touch the federation state.
func (f *Federation) GetTransactionID(k ProposalKey) (TxID, error) {
	return TransactionID(k)
}

// SendTransactionProposal registers a new proposal with the opaque payload.
// Only a federator can propose and the proposal can be created only once.
func (f *Federation) SendTransactionProposal(ctx context.Context, caller Identity, k ProposalKey, payload []byte) (TxID, error) {
	id, err := TransactionID(k)
	if err != nil {
		return TxID{}, err
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	ev := Event{
		Kind:    EventProposalCreated,
		Key:     k.clone(),
		TxID:    id,
		Caller:  caller,
		Payload: cloneBytes(payload),
	}
	if err := f.commit(ctx, &ev); err != nil {
		return TxID{}, err
	}
	return id, nil
}

// UpdateSignatureState records the caller signature for the proposal.
// Each federator can sign a proposal only once.
func (f *Federation) UpdateSignatureState(ctx context.Context, caller Identity, k ProposalKey, signature string, valid bool) (TxID, error) {
	id, err := TransactionID(k)
	if err != nil {
		return TxID{}, err
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if err := f.commit(ctx, &Event{
		Kind:      EventProposalSigned,
		Key:       k.clone(),
		TxID:      id,
		Caller:    caller,
		Signature: signature,
		Valid:     valid,
	}); err != nil {
		return TxID{}, err
	}
	return id, nil
}

// UpdateTransactionState stores the final payload and marks the proposal as processed when sent is true.
// Once processed the proposal cannot be updated anymore.
func (f *Federation) UpdateTransactionState(ctx context.Context, caller Identity, k ProposalKey, payload []byte, sent bool) (TxID, error) {
	id, err := TransactionID(k)
	if err != nil {
		return TxID{}, err
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if err := f.commit(ctx, &Event{
		Kind:    EventProposalSent,
		Key:     k.clone(),
		TxID:    id,
		Caller:  caller,
		Payload: cloneBytes(payload),
		Sent:    sent,
	}); err != nil {
		return TxID{}, err
	}
	return id, nil
}

// SetTransactionFailed clears the proposal and all its signatures so it can be proposed again.
// Only the owner can fail a proposal and processed proposals cannot be failed.
func (f *Federation) SetTransactionFailed(ctx context.Context, caller Identity, k ProposalKey) (TxID, error) {
	id, err := TransactionID(k)
	if err != nil {
		return TxID{}, err
	}

	f.mux.Lock()
	defer f.mux.Unlock()

	if err := f.commit(ctx, &Event{
		Kind:   EventProposalFailed,
		Key:    k.clone(),
		TxID:   id,
		Caller: caller,
	}); err != nil {
		return TxID{}, err
	}
	return id, nil
}

// IsProposed returns true if the proposal exists.
func (f *Federation) IsProposed(id TxID) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	_, ok := f.proposals[id]
	return ok
}

// IsProcessed returns true if the proposal has been marked as sent.
func (f *Federation) IsProcessed(id TxID) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	p, ok := f.proposals[id]
	return ok && p.processed
}

// IsSigned returns true if the member has signed the proposal.
func (f *Federation) IsSigned(id TxID, member Identity) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return false
	}
	_, ok = p.signedBy[member]
	return ok
}

// SignatureCount returns the number of signatures recorded for the proposal.
func (f *Federation) SignatureCount(id TxID) int {
	f.mux.Lock()
	defer f.mux.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return 0
	}
	return len(p.signatures)
}

// Signature returns the signature at index in the order signatures were recorded.
func (f *Federation) Signature(id TxID, index int) (Signature, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return Signature{}, ErrNotProposed
	}
	if index < 0 || index >= len(p.signatures) {
		return Signature{}, ErrSignatureIndexOutOfRange
	}
	return p.signatures[index], nil
}

// Signatures returns all signatures recorded for the proposal.
func (f *Federation) Signatures(id TxID) ([]Signature, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return nil, ErrNotProposed
	}
	return append([]Signature{}, p.signatures...), nil
}

// Proposal returns a snapshot of the proposal.
func (f *Federation) Proposal(id TxID) (ProposalView, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return ProposalView{}, ErrNotProposed
	}
	return ProposalView{
		TxID:         id,
		Processed:    p.processed,
		Payload:      cloneBytes(p.payload),
		FinalPayload: cloneBytes(p.finalPayload),
		Signatures:   append([]Signature{}, p.signatures...),
	}, nil
}

func (f *Federation) validateProposal(ev *Event) error {
	id, err := TransactionID(ev.Key)
	if err != nil {
		return err
	}
	if id != ev.TxID {
		return ErrCorruptedJournal
	}

	switch ev.Kind {
	case EventProposalFailed:
		if err := f.requireOwner(ev.Caller); err != nil {
			return err
		}
	default:
		if err := f.requireMember(ev.Caller); err != nil {
			return err
		}
	}

	p, ok := f.proposals[id]
	switch ev.Kind {
	case EventProposalCreated:
		if ok {
			return ErrAlreadyProposed
		}
	case EventProposalSigned:
		if !ok {
			return ErrNotProposed
		}
		if _, signed := p.signedBy[ev.Caller]; signed {
			return ErrAlreadySigned
		}
	case EventProposalSent, EventProposalFailed:
		if !ok {
			return ErrNotProposed
		}
		if p.processed {
			return ErrAlreadySent
		}
	}
	return nil
}

func (f *Federation) applyProposal(ev *Event) {
	switch ev.Kind {
	case EventProposalCreated:
		f.proposals[ev.TxID] = &proposal{
			payload:  cloneBytes(ev.Payload),
			signedBy: make(map[Identity]struct{}),
		}
	case EventProposalSigned:
		p := f.proposals[ev.TxID]
		p.signatures = append(p.signatures, Signature{Member: ev.Caller, Signature: ev.Signature, Valid: ev.Valid})
		p.signedBy[ev.Caller] = struct{}{}
	case EventProposalSent:
		p := f.proposals[ev.TxID]
		p.finalPayload = cloneBytes(ev.Payload)
		p.processed = ev.Sent
	case EventProposalFailed:
		delete(f.proposals, ev.TxID)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
