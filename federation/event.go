package federation

import (
	"fmt"
	"time"
)

// EventKind describes what happened to the federation state.
type EventKind uint8

const (
	EventInitialized          EventKind = iota + 1 // EventInitialized sets the initial members and owner.
	EventMemberAdded                               // EventMemberAdded adds a federator.
	EventMemberRemoved                             // EventMemberRemoved removes a federator.
	EventOwnershipTransferred                      // EventOwnershipTransferred hands administration to a new owner.
	EventProposalCreated                           // EventProposalCreated registers a new proposal.
	EventProposalSigned                            // EventProposalSigned records a federator signature.
	EventProposalSent                              // EventProposalSent marks the proposal as processed.
	EventProposalFailed                            // EventProposalFailed clears the proposal and its signatures.
)

var eventKindNames = map[EventKind]string{
	EventInitialized:          "initialized",
	EventMemberAdded:          "member_added",
	EventMemberRemoved:        "member_removed",
	EventOwnershipTransferred: "ownership_transferred",
	EventProposalCreated:      "proposal_created",
	EventProposalSigned:       "proposal_signed",
	EventProposalSent:         "proposal_sent",
	EventProposalFailed:       "proposal_failed",
}

// EventKinds returns all known event kinds in order.
func EventKinds() []EventKind {
	return []EventKind{
		EventInitialized, EventMemberAdded, EventMemberRemoved, EventOwnershipTransferred,
		EventProposalCreated, EventProposalSigned, EventProposalSent, EventProposalFailed,
	}
}

// String returns the event kind name.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	if _, ok := eventKindNames[k]; !ok {
		return nil, ErrUnknownEvent
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEventKind returns the kind of given name.
func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, ErrUnknownEvent
}

// IsProposal returns true for events that carry a proposal key.
func (k EventKind) IsProposal() bool {
	switch k {
	case EventProposalCreated, EventProposalSigned, EventProposalSent, EventProposalFailed:
		return true
	default:
		return false
	}
}

// Event is a notification about a state transition.
// Proposal events carry the full key so the whole proposal history can be rebuilt
// from the stream of events alone.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Key       ProposalKey `json:"key"`
	TxID      TxID        `json:"tx_id"`
	Caller    Identity    `json:"caller"`
	Member    Identity    `json:"member,omitempty"`
	Members   []Identity  `json:"members,omitempty"`
	Owner     Identity    `json:"owner,omitempty"`
	Payload   HexBytes    `json:"payload,omitempty"`
	Signature string      `json:"signature,omitempty"`
	Valid     bool        `json:"valid"`
	Sent      bool        `json:"sent"`
	CreatedAt time.Time   `json:"created_at"`
}
