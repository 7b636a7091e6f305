package zincadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bartossh/Federation/httpclient"
)

const (
	healthz        = "/healthz"
	createDocument = "/api/%s/_doc"
)

const timeout = time.Second * 5

var (
	ErrZincServerNotResponding = errors.New("zinc server not responding on given address")
	ErrZincServerWriteFailed   = errors.New("zinc server write failed")
	ErrIndexNotSet             = errors.New("zinc index not set")
)

// Config contains configuration of the zincsearch log back-end.
type Config struct {
	Address string `yaml:"address"` // zincsearch server address, empty disables the back-end
	Index   string `yaml:"index"`   // index name per federation node to easy search for the node logs
	Token   string `yaml:"token"`   // value of the Authorization header, e.g. Basic base64(user:password)
}

type document struct {
	Service string          `json:"service"`
	Log     json.RawMessage `json:"log,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ZincClient sends federation node logs to the zincsearch backend as documents.
// ZincClient implements io.Writer so it can be one of the logging writers.
type ZincClient struct {
	url   string
	index string
	token string
}

// New creates a new ZincClient after checking the zincsearch server is alive.
func New(cfg Config) (*ZincClient, error) {
	if cfg.Index == "" {
		return nil, ErrIndexNotSet
	}
	if err := httpclient.MakeGet(timeout, cfg.Address+healthz, nil); err != nil {
		return nil, errors.Join(ErrZincServerNotResponding, err)
	}
	return &ZincClient{
		url:   cfg.Address + fmt.Sprintf(createDocument, cfg.Index),
		index: cfg.Index,
		token: cfg.Token,
	}, nil
}

// Write satisfies io.Writer abstraction.
// JSON log records are indexed as structured documents, anything else as a plain message.
func (z *ZincClient) Write(p []byte) (int, error) {
	doc := document{Service: z.index}
	trimmed := bytes.TrimSpace(p)
	if json.Valid(trimmed) {
		doc.Log = trimmed
	} else {
		doc.Message = string(trimmed)
	}
	if err := httpclient.MakePostAuthorized(timeout, z.url, z.token, doc, nil); err != nil {
		return 0, errors.Join(ErrZincServerWriteFailed, err)
	}
	return len(p), nil
}
