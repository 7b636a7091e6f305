package natsclient

import (
	"github.com/bartossh/Federation/federation"
)

// Publisher provides functionality to push federation events to the pub/sub queue.
type Publisher struct {
	*socket
}

// PublisherConnect connects publisher to the pub/sub queue using provided config.
func PublisherConnect(cfg Config) (*Publisher, error) {
	s, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{socket: s}, nil
}

// PublishEvent publishes the binary encoded event on the subject of its kind.
func (p *Publisher) PublishEvent(ev *federation.Event) error {
	msg, err := ev.Encode()
	if err != nil {
		return err
	}
	return p.conn.Publish(Subject(ev.Kind), msg)
}
