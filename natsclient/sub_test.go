package natsclient

import (
	"io"
	"math/big"
	"testing"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logging"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "federation.proposal_signed", Subject(federation.EventProposalSigned))
	assert.Equal(t, "federation.member_added", Subject(federation.EventMemberAdded))
}

func TestEventHandlerDecodesEvent(t *testing.T) {
	log := logging.New(func(error) {}, func(error) {}, io.Discard)
	ev := federation.Event{
		Kind:    federation.EventProposalCreated,
		Key:     federation.ProposalKey{Value: big.NewInt(10), Sender: "alice", Receiver: "bob"},
		Caller:  "A",
		Payload: federation.HexBytes("payload"),
	}
	id, err := federation.TransactionID(ev.Key)
	assert.Nil(t, err)
	ev.TxID = id
	raw, err := ev.Encode()
	assert.Nil(t, err)

	var got []federation.Event
	h := eventHandler(func(ev federation.Event) { got = append(got, ev) }, log)
	h(&nats.Msg{Subject: Subject(ev.Kind), Data: raw})
	h(&nats.Msg{Subject: Subject(ev.Kind), Data: []byte{0xff}})

	assert.Len(t, got, 1)
	assert.Equal(t, id, got[0].TxID)
	assert.Equal(t, federation.HexBytes("payload"), got[0].Payload)
}
