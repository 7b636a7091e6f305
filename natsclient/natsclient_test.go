//go:build integration

package natsclient

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logging"
	"github.com/bartossh/Federation/stdoutwriter"
	"github.com/joho/godotenv"
	"gotest.tools/assert"
)

func natsPubSubTestHelper(tb testing.TB) (*Publisher, *Subscriber) {
	godotenv.Load("../.env")
	cfg := Config{
		Address: "nats://127.0.0.1:4222",
		Name:    "integration-test-1",
		Token:   os.Getenv("NATS_TOKEN"),
	}

	p, err := PublisherConnect(cfg)
	assert.NilError(tb, err)

	s, err := SubscriberConnect(cfg)
	assert.NilError(tb, err)

	return p, s
}

func TestPubSubCycle(t *testing.T) {
	p, s := natsPubSubTestHelper(t)

	callbackOnErr := func(err error) {
		fmt.Println("Error with logger: ", err)
	}
	callbackOnFatal := func(err error) {
		panic(fmt.Sprintf("Error with logger: %s", err))
	}
	log := logging.New(callbackOnErr, callbackOnFatal, stdoutwriter.Logger{})

	received := make(chan federation.Event, 1)
	err := s.SubscribeEvents(func(ev federation.Event) { received <- ev }, log)
	assert.NilError(t, err)

	ev := federation.Event{Kind: federation.EventMemberAdded, Caller: "O", Member: "D", CreatedAt: time.Now().UTC()}
	err = p.PublishEvent(&ev)
	assert.NilError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, ev.Kind, got.Kind)
		assert.Equal(t, ev.Member, got.Member)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}

	assert.NilError(t, p.Disconnect())
	assert.NilError(t, s.Disconnect())
}
