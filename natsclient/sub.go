package natsclient

import (
	"fmt"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logger"
	"github.com/nats-io/nats.go"
)

// Subscriber provides functionality to pull federation events from the pub/sub queue.
type Subscriber struct {
	*socket
}

// SubscriberConnect connects subscriber to the pub/sub queue using provided config.
func SubscriberConnect(cfg Config) (*Subscriber, error) {
	s, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Subscriber{socket: s}, nil
}

// SubscribeEvents subscribes to all federation events and calls the call function for each decoded event.
// Messages that cannot be decoded are logged and skipped.
func (s *Subscriber) SubscribeEvents(call func(ev federation.Event), log logger.Logger) error {
	_, err := s.conn.Subscribe(SubjectAll, eventHandler(call, log))
	return err
}

func eventHandler(call func(ev federation.Event), log logger.Logger) nats.MsgHandler {
	return func(m *nats.Msg) {
		ev, err := federation.DecodeEvent(m.Data)
		if err != nil {
			log.Error(fmt.Sprintf("nats subscriber cannot decode message on subject [ %s ]: %s", m.Subject, err))
			return
		}
		if m.Subject != Subject(ev.Kind) {
			log.Warn(fmt.Sprintf("nats subscriber received [ %s ] event on subject [ %s ]", ev.Kind, m.Subject))
		}
		call(ev)
	}
}
