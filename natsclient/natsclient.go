package natsclient

import (
	"net/url"

	"github.com/bartossh/Federation/federation"
	"github.com/nats-io/nats.go"
)

const (
	subjectPrefix = "federation."
	// SubjectAll matches every federation event subject.
	SubjectAll = subjectPrefix + ">"
)

// Config contains all arguments required to connect to the nats service.
type Config struct {
	Address string `yaml:"server_address"`
	Name    string `yaml:"client_name"`
	Token   string `yaml:"token"`
}

// Subject returns the subject the event of given kind is published on.
func Subject(kind federation.EventKind) string {
	return subjectPrefix + kind.String()
}

type socket struct {
	conn *nats.Conn
}

func connect(cfg Config) (*socket, error) {
	if _, err := url.Parse(cfg.Address); err != nil {
		return nil, err
	}
	opts := []nats.Option{nats.Name(cfg.Name)}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, err
	}
	return &socket{conn: conn}, nil
}

// Disconnect drains the message queue and disconnects from the pub/sub.
// Nats Drain will put a connection into a drain state.
// All subscriptions will immediately be put into a drain state.
// Upon completion, the publishers will be drained and can not publish any additional messages.
func (s *socket) Disconnect() error {
	return s.conn.Drain()
}
