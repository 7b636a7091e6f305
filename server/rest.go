package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/webhooks"
	"github.com/gofiber/fiber/v2"
)

const (
	aliveTime             = "alive_request_duration"
	dataTime              = "data_request_duration"
	ownerTime             = "owner_request_duration"
	transferOwnershipTime = "transfer_ownership_request_duration"
	membersTime           = "members_request_duration"
	memberTime            = "member_request_duration"
	addMemberTime         = "add_member_request_duration"
	removeMemberTime      = "remove_member_request_duration"
	transactionIDTime     = "transaction_id_request_duration"
	proposeTime           = "propose_request_duration"
	signTime              = "sign_request_duration"
	sentTime              = "sent_request_duration"
	failedTime            = "failed_request_duration"
	transactionTime       = "transaction_request_duration"
	signatureTime         = "signature_request_duration"
	signedTime            = "signed_request_duration"
	historyTime           = "history_request_duration"
	createWebhookTime     = "create_webhook_request_duration"
	removeWebhookTime     = "remove_webhook_request_duration"
)

var measuredEndpoints = []string{
	aliveTime, dataTime, ownerTime, transferOwnershipTime, membersTime, memberTime,
	addMemberTime, removeMemberTime, transactionIDTime, proposeTime, signTime, sentTime,
	failedTime, transactionTime, signatureTime, signedTime, historyTime,
	createWebhookTime, removeWebhookTime,
}

// AliveResponse is a response for alive and version check.
type AliveResponse struct {
	Alive      bool   `json:"alive"`
	APIVersion string `json:"api_version"`
	APIHeader  string `json:"api_header"`
}

func (s *server) alive(c *fiber.Ctx) error {
	defer s.measure(aliveTime, time.Now())
	return c.JSON(
		AliveResponse{
			Alive:      true,
			APIVersion: ApiVersion,
			APIHeader:  Header,
		})
}

// SuccessResponse is a response confirming the state change.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// DataToSignRequest is a request to get the challenge data to sign.
type DataToSignRequest struct {
	Address string `json:"address"`
}

// DataToSignResponse is a response containing the one-shot challenge.
type DataToSignResponse struct {
	Data federation.HexBytes `json:"data"`
}

func (s *server) data(c *fiber.Ctx) error {
	defer s.measure(dataTime, time.Now())

	var req DataToSignRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	if req.Address == "" {
		return apiError(ErrMalformedRequest)
	}

	return c.JSON(DataToSignResponse{Data: s.randData.ProvideData(req.Address)})
}

// OwnerResponse is a response containing the federation owner.
type OwnerResponse struct {
	Owner federation.Identity `json:"owner"`
}

func (s *server) owner(c *fiber.Ctx) error {
	defer s.measure(ownerTime, time.Now())
	return c.JSON(OwnerResponse{Owner: s.fed.Owner()})
}

// TransferOwnershipRequest is a request to transfer ownership signed by the current owner.
// The signature subject is the new owner address.
type TransferOwnershipRequest struct {
	Auth     Authorization       `json:"auth"`
	NewOwner federation.Identity `json:"new_owner"`
}

func (s *server) transferOwnership(c *fiber.Ctx) error {
	defer s.measure(transferOwnershipTime, time.Now())

	var req TransferOwnershipRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorize(req.Auth, []byte(req.NewOwner))
	if err != nil {
		return apiError(err)
	}
	if err := s.fed.TransferOwnership(c.Context(), caller, req.NewOwner); err != nil {
		return apiError(err)
	}

	return c.JSON(SuccessResponse{Success: true})
}

// MembersResponse is a response containing federators in the order they were added.
type MembersResponse struct {
	Members []federation.Identity `json:"members"`
}

func (s *server) members(c *fiber.Ctx) error {
	defer s.measure(membersTime, time.Now())
	return c.JSON(MembersResponse{Members: s.fed.Members()})
}

// MemberResponse is a response describing the role of the address.
type MemberResponse struct {
	Address federation.Identity `json:"address"`
	Member  bool                `json:"member"`
	Owner   bool                `json:"owner"`
}

func (s *server) member(c *fiber.Ctx) error {
	defer s.measure(memberTime, time.Now())

	addr := federation.Identity(c.Params(addressParam))
	return c.JSON(MemberResponse{
		Address: addr,
		Member:  s.fed.IsMember(addr),
		Owner:   s.fed.Owner() == addr,
	})
}

// MemberRequest is a request to add or remove the federator signed by the owner.
// The signature subject is the member address.
type MemberRequest struct {
	Auth   Authorization       `json:"auth"`
	Member federation.Identity `json:"member"`
}

func (s *server) addMember(c *fiber.Ctx) error {
	defer s.measure(addMemberTime, time.Now())

	var req MemberRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorize(req.Auth, []byte(req.Member))
	if err != nil {
		return apiError(err)
	}
	if err := s.fed.AddMember(c.Context(), caller, req.Member); err != nil {
		return apiError(err)
	}

	return c.JSON(SuccessResponse{Success: true})
}

func (s *server) removeMember(c *fiber.Ctx) error {
	defer s.measure(removeMemberTime, time.Now())

	var req MemberRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorize(req.Auth, []byte(req.Member))
	if err != nil {
		return apiError(err)
	}
	if err := s.fed.RemoveMember(c.Context(), caller, req.Member); err != nil {
		return apiError(err)
	}

	return c.JSON(SuccessResponse{Success: true})
}

// TransactionIDRequest is a request to compute the transaction id.
type TransactionIDRequest struct {
	Key federation.ProposalKey `json:"key"`
}

// TransactionResponse is a response containing the transaction id of the affected proposal.
type TransactionResponse struct {
	Success bool            `json:"success"`
	TxID    federation.TxID `json:"tx_id"`
}

func (s *server) transactionID(c *fiber.Ctx) error {
	defer s.measure(transactionIDTime, time.Now())

	var req TransactionIDRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	id, err := s.fed.GetTransactionID(req.Key)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(TransactionResponse{Success: true, TxID: id})
}

// ProposeRequest is a request to propose the transaction signed by the federator.
// The signature subject of all transaction requests is the transaction id.
type ProposeRequest struct {
	Auth    Authorization          `json:"auth"`
	Key     federation.ProposalKey `json:"key"`
	Payload federation.HexBytes    `json:"payload"`
}

func (s *server) propose(c *fiber.Ctx) error {
	defer s.measure(proposeTime, time.Now())

	var req ProposeRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorizeTransaction(req.Auth, req.Key, func(id federation.TxID) []byte {
		return ProposeSubject(id, req.Payload)
	})
	if err != nil {
		return apiError(err)
	}
	id, err := s.fed.SendTransactionProposal(c.Context(), caller, req.Key, req.Payload)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(TransactionResponse{Success: true, TxID: id})
}

// SignRequest is a request to record the federator signature of the transaction.
type SignRequest struct {
	Auth      Authorization          `json:"auth"`
	Key       federation.ProposalKey `json:"key"`
	Signature string                 `json:"signature"`
	Valid     bool                   `json:"valid"`
}

func (s *server) sign(c *fiber.Ctx) error {
	defer s.measure(signTime, time.Now())

	var req SignRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorizeTransaction(req.Auth, req.Key, func(id federation.TxID) []byte {
		return SignSubject(id, req.Signature, req.Valid)
	})
	if err != nil {
		return apiError(err)
	}
	id, err := s.fed.UpdateSignatureState(c.Context(), caller, req.Key, req.Signature, req.Valid)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(TransactionResponse{Success: true, TxID: id})
}

// SentRequest is a request to store the final payload of the transaction.
type SentRequest struct {
	Auth    Authorization          `json:"auth"`
	Key     federation.ProposalKey `json:"key"`
	Payload federation.HexBytes    `json:"payload"`
	Sent    bool                   `json:"sent"`
}

func (s *server) sent(c *fiber.Ctx) error {
	defer s.measure(sentTime, time.Now())

	var req SentRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorizeTransaction(req.Auth, req.Key, func(id federation.TxID) []byte {
		return SentSubject(id, req.Payload, req.Sent)
	})
	if err != nil {
		return apiError(err)
	}
	id, err := s.fed.UpdateTransactionState(c.Context(), caller, req.Key, req.Payload, req.Sent)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(TransactionResponse{Success: true, TxID: id})
}

// FailRequest is a request to fail the transaction proposal signed by the owner.
type FailRequest struct {
	Auth Authorization          `json:"auth"`
	Key  federation.ProposalKey `json:"key"`
}

func (s *server) failed(c *fiber.Ctx) error {
	defer s.measure(failedTime, time.Now())

	var req FailRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorizeTransaction(req.Auth, req.Key, FailSubject)
	if err != nil {
		return apiError(err)
	}
	id, err := s.fed.SetTransactionFailed(c.Context(), caller, req.Key)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(TransactionResponse{Success: true, TxID: id})
}

func (s *server) transaction(c *fiber.Ctx) error {
	defer s.measure(transactionTime, time.Now())

	id, err := txIDFromParams(c)
	if err != nil {
		return apiError(err)
	}
	view, err := s.fed.Proposal(id)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(view)
}

func (s *server) signature(c *fiber.Ctx) error {
	defer s.measure(signatureTime, time.Now())

	id, err := txIDFromParams(c)
	if err != nil {
		return apiError(err)
	}
	index, err := c.ParamsInt(indexParam)
	if err != nil {
		return apiError(errors.Join(ErrMalformedRequest, err))
	}
	sig, err := s.fed.Signature(id, index)
	if err != nil {
		return apiError(err)
	}

	return c.JSON(sig)
}

// SignedResponse is a response telling if the address signed the transaction.
type SignedResponse struct {
	TxID    federation.TxID     `json:"tx_id"`
	Address federation.Identity `json:"address"`
	Signed  bool                `json:"signed"`
}

func (s *server) signed(c *fiber.Ctx) error {
	defer s.measure(signedTime, time.Now())

	id, err := txIDFromParams(c)
	if err != nil {
		return apiError(err)
	}
	addr := federation.Identity(c.Params(addressParam))

	return c.JSON(SignedResponse{TxID: id, Address: addr, Signed: s.fed.IsSigned(id, addr)})
}

// HistoryResponse is a response containing all journaled events of the transaction
// including the events of failed attempts.
type HistoryResponse struct {
	Events []federation.Event `json:"events"`
}

func (s *server) transactionHistory(c *fiber.Ctx) error {
	defer s.measure(historyTime, time.Now())

	id, err := txIDFromParams(c)
	if err != nil {
		return apiError(err)
	}
	events, err := s.history.ReadTransactionHistory(c.Context(), id)
	if err != nil {
		s.log.Error(fmt.Sprintf("server reading history of transaction [ %s ] failed: %s", id, err))
		return apiError(err)
	}

	return c.JSON(HistoryResponse{Events: events})
}

// CreateWebhookRequest is a request to register the webhook signed by a federator or the owner.
// The signature subject is the webhook url.
type CreateWebhookRequest struct {
	Auth    Authorization        `json:"auth"`
	Trigger federation.EventKind `json:"trigger"`
	URL     string               `json:"url"`
	Token   string               `json:"token"`
}

func (s *server) createWebhook(c *fiber.Ctx) error {
	defer s.measure(createWebhookTime, time.Now())

	var req CreateWebhookRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorizeParticipant(req.Auth, []byte(req.URL))
	if err != nil {
		return apiError(err)
	}
	if err := s.webhooks.CreateWebhook(req.Trigger, string(caller), webhooks.Hook{URL: req.URL, Token: req.Token}); err != nil {
		return apiError(err)
	}

	return c.JSON(SuccessResponse{Success: true})
}

// RemoveWebhookRequest is a request to remove the caller webhook.
// The signature subject is the trigger name.
type RemoveWebhookRequest struct {
	Auth    Authorization        `json:"auth"`
	Trigger federation.EventKind `json:"trigger"`
}

func (s *server) removeWebhook(c *fiber.Ctx) error {
	defer s.measure(removeWebhookTime, time.Now())

	var req RemoveWebhookRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	caller, err := s.authorizeParticipant(req.Auth, []byte(req.Trigger.String()))
	if err != nil {
		return apiError(err)
	}
	if err := s.webhooks.RemoveWebhook(req.Trigger, string(caller)); err != nil {
		return apiError(err)
	}

	return c.JSON(SuccessResponse{Success: true})
}

func (s *server) parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		s.log.Warn(fmt.Sprintf("server request [ %s ] from [ %s ] is malformed: %s", c.Path(), c.IP(), err))
		return apiError(ErrMalformedRequest)
	}
	return nil
}

// authorizeTransaction verifies the caller signed the subject built from the transaction id of the key.
func (s *server) authorizeTransaction(a Authorization, k federation.ProposalKey, subject func(federation.TxID) []byte) (federation.Identity, error) {
	id, err := s.fed.GetTransactionID(k)
	if err != nil {
		return "", err
	}
	return s.authorize(a, subject(id))
}

// authorizeParticipant authorizes callers being a federator or the owner.
func (s *server) authorizeParticipant(a Authorization, subject []byte) (federation.Identity, error) {
	caller, err := s.authorize(a, subject)
	if err != nil {
		return "", err
	}
	if !s.fed.IsMember(caller) && s.fed.Owner() != caller {
		return "", federation.ErrNotFederator
	}
	return caller, nil
}

func txIDFromParams(c *fiber.Ctx) (federation.TxID, error) {
	id, err := federation.ParseTxID(c.Params(txIDParam))
	if err != nil {
		return federation.TxID{}, errors.Join(ErrMalformedRequest, err)
	}
	return id, nil
}
