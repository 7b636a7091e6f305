package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logger"
	"github.com/bartossh/Federation/webhooks"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	ApiVersion = "1.0.0"
	Header     = "Federation-Node"
)

const (
	dataURL             = "/data"
	ownerGroupURL       = "/owner"
	memberGroupURL      = "/member"
	transactionGroupURL = "/transaction"
	webhookGroupURL     = "/webhook"
	transferURL         = "/transfer"
	listURL             = "/list"
	addURL              = "/add"
	removeURL           = "/remove"
	idURL               = "/id"
	proposeURL          = "/propose"
	signURL             = "/sign"
	sentURL             = "/sent"
	failedURL           = "/failed"
	createURL           = "/create"
	addressParam        = "address"
	txIDParam           = "txid"
	indexParam          = "index"
)

const (
	AliveURL              = "/alive"                         // URL to check if server is alive and version.
	DataToSignURL         = dataURL                          // URL to get one-shot challenge data to sign.
	OwnerURL              = ownerGroupURL                    // URL to read the federation owner.
	TransferOwnershipURL  = ownerGroupURL + transferURL      // URL to transfer the ownership.
	MembersURL            = memberGroupURL + listURL         // URL to list federators.
	MemberURL             = memberGroupURL                   // URL prefix to check the membership of the address.
	AddMemberURL          = memberGroupURL + addURL          // URL to add federator.
	RemoveMemberURL       = memberGroupURL + removeURL       // URL to remove federator.
	TransactionIDURL      = transactionGroupURL + idURL      // URL to compute transaction id from proposal key.
	ProposeTransactionURL = transactionGroupURL + proposeURL // URL to propose transaction.
	SignTransactionURL    = transactionGroupURL + signURL    // URL to record a federator signature.
	SentTransactionURL    = transactionGroupURL + sentURL    // URL to store final payload and mark transaction as sent.
	FailedTransactionURL  = transactionGroupURL + failedURL  // URL to fail the transaction proposal.
	TransactionURL        = transactionGroupURL              // URL prefix to read the transaction proposal.
	CreateWebhookURL      = webhookGroupURL + createURL      // URL to create webhook.
	RemoveWebhookURL      = webhookGroupURL + removeURL      // URL to remove webhook.
	WsURL                 = "/ws"                            // URL to connect to websocket.
)

const (
	transactionPathPattern = "/:" + txIDParam
	signaturePathPattern   = transactionPathPattern + "/signature/:" + indexParam
	signedPathPattern      = transactionPathPattern + "/signed/:" + addressParam
	historyPathPattern     = transactionPathPattern + "/history"
)

const (
	defaultDataSize     = 1 << 20
	eventsBufferSize    = 256
	membersGauge        = "members"
	proposalsCounter    = "proposals_created_total"
	eventsCounter       = "events_total"
	natsFailuresCounter = "nats_publish_failures_total"
	webhookDropsCounter = "webhook_events_dropped_total"
)

var (
	ErrWrongPortSpecified = errors.New("port must be between 1 and 65535")
	ErrWrongMessageSize   = errors.New("message size must be between 1024 and 15000000")
)

// Federator abstracts the federation coordinator operations exposed by the server.
type Federator interface {
	Owner() federation.Identity
	IsMember(identity federation.Identity) bool
	Members() []federation.Identity
	AddMember(ctx context.Context, caller, member federation.Identity) error
	RemoveMember(ctx context.Context, caller, member federation.Identity) error
	TransferOwnership(ctx context.Context, caller, newOwner federation.Identity) error
	GetTransactionID(k federation.ProposalKey) (federation.TxID, error)
	SendTransactionProposal(ctx context.Context, caller federation.Identity, k federation.ProposalKey, payload []byte) (federation.TxID, error)
	UpdateSignatureState(ctx context.Context, caller federation.Identity, k federation.ProposalKey, signature string, valid bool) (federation.TxID, error)
	UpdateTransactionState(ctx context.Context, caller federation.Identity, k federation.ProposalKey, payload []byte, sent bool) (federation.TxID, error)
	SetTransactionFailed(ctx context.Context, caller federation.Identity, k federation.ProposalKey) (federation.TxID, error)
	IsSigned(id federation.TxID, member federation.Identity) bool
	Signature(id federation.TxID, index int) (federation.Signature, error)
	Proposal(id federation.TxID) (federation.ProposalView, error)
}

// HistoryReader reads all journaled events of the transaction proposal.
type HistoryReader interface {
	ReadTransactionHistory(ctx context.Context, id federation.TxID) ([]federation.Event, error)
}

// RandomDataProvideConsumer provides random binary data for signing to prove identity and
// consumes it once it was used.
type RandomDataProvideConsumer interface {
	ProvideData(address string) []byte
	ConsumeData(address string, data []byte) bool
}

// Verifier provides methods to verify the signature of the challenge.
type Verifier interface {
	VerifyChallenge(data, subject, signature []byte, hash [32]byte, address string) error
}

// WebhookCreateRemovePoster provides webhook registration and posting.
type WebhookCreateRemovePoster interface {
	CreateWebhook(trigger federation.EventKind, address string, h webhooks.Hook) error
	RemoveWebhook(trigger federation.EventKind, address string) error
	PostWebhookEvent(ev *federation.Event)
}

// EventPublisher publishes committed events to the message broker.
type EventPublisher interface {
	PublishEvent(ev *federation.Event) error
}

// ReactiveSubscriberProvider provides reactive subscription to the committed federation events.
type ReactiveSubscriberProvider interface {
	Cancel()
	Channel() <-chan federation.Event
}

// Telemetry records the server measurements.
type Telemetry interface {
	CreateUpdateObservableHistogtram(name, description string)
	RecordHistogramTime(name string, t time.Duration) bool
	CreateUpdateObservableGauge(name, description string)
	SetGauge(name string, f float64) bool
	CreateUpdateObservableCounter(name, description string)
	AddToCounter(name string, f float64) bool
}

// Config contains configuration of the server.
type Config struct {
	Port          int `yaml:"port"`            // Port to listen on.
	DataSizeBytes int `yaml:"data_size_bytes"` // Maximum size of the request body.
}

// Dependencies are the services the server routes requests to.
// Publisher is optional, all other fields are required.
type Dependencies struct {
	Federation   Federator
	History      HistoryReader
	DataProvider RandomDataProvideConsumer
	Verifier     Verifier
	Webhooks     WebhookCreateRemovePoster
	Publisher    EventPublisher
	Subscription ReactiveSubscriberProvider
	Telemetry    Telemetry
}

type server struct {
	fed       Federator
	history   HistoryReader
	randData  RandomDataProvideConsumer
	verifier  Verifier
	webhooks  WebhookCreateRemovePoster
	publisher EventPublisher
	rx        ReactiveSubscriberProvider
	tele      Telemetry
	hub       *hub
	hooksCh   chan federation.Event
	log       logger.Logger
}

// Run initializes routing and runs the server. To stop the server cancel the context.
// It blocks until the context is canceled.
func Run(ctx context.Context, c Config, d Dependencies, log logger.Logger) error {
	var err error
	ctxx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateConfig(&c); err != nil {
		return err
	}

	s := newServer(d, log)
	router := s.newRouter(ctxx, c)

	go func() {
		if errx := router.Listen(fmt.Sprintf("0.0.0.0:%v", c.Port)); errx != nil {
			log.Error(fmt.Sprintf("server listener stopped: %s", errx))
			cancel()
		}
	}()
	go s.hub.run(ctxx)
	go s.runSubscriber(ctxx)
	go s.runWebhooks(ctxx)

	<-ctxx.Done()

	if errx := router.Shutdown(); errx != nil {
		err = errors.Join(err, errx)
	}

	return err
}

func newServer(d Dependencies, log logger.Logger) *server {
	s := &server{
		fed:       d.Federation,
		history:   d.History,
		randData:  d.DataProvider,
		verifier:  d.Verifier,
		webhooks:  d.Webhooks,
		publisher: d.Publisher,
		rx:        d.Subscription,
		tele:      d.Telemetry,
		hub:       newHub(log),
		hooksCh:   make(chan federation.Event, eventsBufferSize),
		log:       log,
	}
	s.registerMeasurements()
	s.tele.SetGauge(membersGauge, float64(len(s.fed.Members())))
	return s
}

func (s *server) newRouter(ctx context.Context, c Config) *fiber.App {
	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   time.Second * 5,
		WriteTimeout:  time.Second * 5,
		ServerHeader:  Header,
		AppName:       ApiVersion,
		Concurrency:   4096,
		BodyLimit:     c.DataSizeBytes,
		ErrorHandler:  errorHandler,
	})
	router.Use(recover.New())

	router.Get(AliveURL, s.alive)
	router.Post(DataToSignURL, s.data)

	owner := router.Group(ownerGroupURL)
	owner.Get("", s.owner)
	owner.Post(transferURL, s.transferOwnership)

	member := router.Group(memberGroupURL)
	member.Get(listURL, s.members)
	member.Post(addURL, s.addMember)
	member.Post(removeURL, s.removeMember)
	member.Get("/:"+addressParam, s.member)

	transaction := router.Group(transactionGroupURL)
	transaction.Post(idURL, s.transactionID)
	transaction.Post(proposeURL, s.propose)
	transaction.Post(signURL, s.sign)
	transaction.Post(sentURL, s.sent)
	transaction.Post(failedURL, s.failed)
	transaction.Get(signaturePathPattern, s.signature)
	transaction.Get(signedPathPattern, s.signed)
	transaction.Get(historyPathPattern, s.transactionHistory)
	transaction.Get(transactionPathPattern, s.transaction)

	webhook := router.Group(webhookGroupURL)
	webhook.Post(createURL, s.createWebhook)
	webhook.Post(removeURL, s.removeWebhook)

	router.Get(WsURL, func(c *fiber.Ctx) error { return s.wsWrapper(ctx, c) })

	return router
}

func validateConfig(c *Config) error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrWrongPortSpecified
	}
	if c.DataSizeBytes == 0 {
		c.DataSizeBytes = defaultDataSize
	}
	if c.DataSizeBytes < 1024 || c.DataSizeBytes > 15000000 {
		return ErrWrongMessageSize
	}
	return nil
}

func (s *server) registerMeasurements() {
	for _, name := range measuredEndpoints {
		s.tele.CreateUpdateObservableHistogtram(name, fmt.Sprintf("Time of %s request handling.", name))
	}
	s.tele.CreateUpdateObservableGauge(membersGauge, "Number of federators.")
	s.tele.CreateUpdateObservableCounter(proposalsCounter, "Number of created transaction proposals.")
	s.tele.CreateUpdateObservableCounter(eventsCounter, "Number of committed federation events.")
	s.tele.CreateUpdateObservableCounter(natsFailuresCounter, "Number of events that failed to be published to nats.")
	s.tele.CreateUpdateObservableCounter(webhookDropsCounter, "Number of events not delivered to webhooks due to full buffer.")
}

func (s *server) measure(name string, start time.Time) {
	s.tele.RecordHistogramTime(name, time.Since(start))
}

// runSubscriber fans out committed events to websocket clients, nats and webhooks.
func (s *server) runSubscriber(ctx context.Context) {
	defer s.rx.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.rx.Channel():
			if !ok {
				return
			}
			s.fanOut(ctx, ev)
		}
	}
}

func (s *server) fanOut(ctx context.Context, ev federation.Event) {
	s.tele.AddToCounter(eventsCounter, 1)
	switch ev.Kind {
	case federation.EventMemberAdded, federation.EventMemberRemoved:
		s.tele.SetGauge(membersGauge, float64(len(s.fed.Members())))
	case federation.EventProposalCreated:
		s.tele.AddToCounter(proposalsCounter, 1)
	}

	select {
	case s.hub.broadcast <- &Message{Command: CommandEvent, Event: &ev}:
	case <-ctx.Done():
		return
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEvent(&ev); err != nil {
			s.tele.AddToCounter(natsFailuresCounter, 1)
			s.log.Error(fmt.Sprintf("server publishing event [ %s ] failed: %s", ev.Kind, err))
		}
	}

	select {
	case s.hooksCh <- ev:
	default:
		s.tele.AddToCounter(webhookDropsCounter, 1)
		s.log.Warn(fmt.Sprintf("server webhooks buffer is full, event [ %s ] not posted", ev.Kind))
	}
}

// runWebhooks posts events to webhooks in commit order.
func (s *server) runWebhooks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.hooksCh:
			s.webhooks.PostWebhookEvent(&ev)
		}
	}
}
