package client

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/httpclient"
	"github.com/bartossh/Federation/server"
	"github.com/bartossh/Federation/wallet"
	"github.com/bartossh/Federation/webhooks"
	"github.com/fasthttp/websocket"
)

var (
	ErrWalletNotReady                = errors.New("wallet not ready, read wallet first")
	ErrServerReturnsInconsistentData = errors.New("server returns inconsistent data")
)

// knownErrors are matched against the error message returned by the server
// so callers can use errors.Is on the client errors.
var knownErrors = []error{
	federation.ErrNotFederator,
	federation.ErrNotOwner,
	federation.ErrAlreadyProposed,
	federation.ErrAlreadySigned,
	federation.ErrAlreadySent,
	federation.ErrNotProposed,
	federation.ErrLastMemberRemoval,
	federation.ErrUnknownMember,
	federation.ErrAlreadyMember,
	federation.ErrEmptyMembers,
	federation.ErrInvalidIdentity,
	federation.ErrInvalidValue,
	federation.ErrSignatureIndexOutOfRange,
	federation.ErrJournalWrite,
	server.ErrUnauthorized,
	server.ErrMalformedRequest,
	webhooks.ErrorHookNotFound,
	webhooks.ErrorHookNotImplemented,
	webhooks.ErrorHookURLInvalid,
}

// WalletReadSaver allows to read and save the wallet.
type WalletReadSaver interface {
	ReadWallet() (wallet.Wallet, error)
	SaveWallet(w *wallet.Wallet) error
}

// NewWalletCreator is a function that creates a new wallet.
type NewWalletCreator func() (wallet.Wallet, error)

// Rest is a rest client for the federation node API.
// Every state changing call is authorized with a fresh challenge signed by the wallet.
type Rest struct {
	apiRoot       string
	timeout       time.Duration
	wrs           WalletReadSaver
	w             wallet.Wallet
	walletCreator NewWalletCreator
	ready         bool
}

// NewRest creates a new rest client.
func NewRest(apiRoot string, timeout time.Duration, wrs WalletReadSaver, walletCreator NewWalletCreator) *Rest {
	return &Rest{apiRoot: strings.TrimSuffix(apiRoot, "/"), timeout: timeout, wrs: wrs, walletCreator: walletCreator}
}

// ValidateApiVersion makes a call to the API server and validates client and server API versions and header correctness.
func (r *Rest) ValidateApiVersion() error {
	var alive server.AliveResponse
	if err := r.makeGet(server.AliveURL, &alive); err != nil {
		return err
	}

	if alive.APIVersion != server.ApiVersion {
		return errors.Join(httpclient.ErrApiVersionMismatch, fmt.Errorf("expected %s but got %s", server.ApiVersion, alive.APIVersion))
	}

	if alive.APIHeader != server.Header {
		return errors.Join(httpclient.ErrApiHeaderMismatch, fmt.Errorf("expected %s but got %s", server.Header, alive.APIHeader))
	}

	return nil
}

// NewWallet creates a new wallet and keeps it in memory.
func (r *Rest) NewWallet() error {
	w, err := r.walletCreator()
	if err != nil {
		return err
	}
	r.w = w
	r.ready = true
	return nil
}

// Address reads the wallet address.
func (r *Rest) Address() (string, error) {
	if !r.ready {
		return "", ErrWalletNotReady
	}
	return r.w.Address(), nil
}

// SaveWalletToFile saves the wallet to the file.
func (r *Rest) SaveWalletToFile() error {
	if !r.ready {
		return ErrWalletNotReady
	}
	return r.wrs.SaveWallet(&r.w)
}

// ReadWalletFromFile reads the wallet from the file.
func (r *Rest) ReadWalletFromFile() error {
	w, err := r.wrs.ReadWallet()
	if err != nil {
		return err
	}
	r.w = w
	r.ready = true
	return nil
}

// FlushWalletFromMemory flushes the wallet from the memory.
func (r *Rest) FlushWalletFromMemory() {
	r.w = wallet.Wallet{}
	r.ready = false
}

// Owner reads the federation owner.
func (r *Rest) Owner() (federation.Identity, error) {
	var res server.OwnerResponse
	if err := r.makeGet(server.OwnerURL, &res); err != nil {
		return "", err
	}
	return res.Owner, nil
}

// Members reads federators in the order they were added.
func (r *Rest) Members() ([]federation.Identity, error) {
	var res server.MembersResponse
	if err := r.makeGet(server.MembersURL, &res); err != nil {
		return nil, err
	}
	return res.Members, nil
}

// Member reads the role of the address.
func (r *Rest) Member(address federation.Identity) (server.MemberResponse, error) {
	var res server.MemberResponse
	if err := r.makeGet(server.MemberURL+"/"+url.PathEscape(string(address)), &res); err != nil {
		return server.MemberResponse{}, err
	}
	return res, nil
}

// AddMember adds the federator, the wallet must belong to the owner.
func (r *Rest) AddMember(member federation.Identity) error {
	return r.changeMember(server.AddMemberURL, member)
}

// RemoveMember removes the federator, the wallet must belong to the owner.
func (r *Rest) RemoveMember(member federation.Identity) error {
	return r.changeMember(server.RemoveMemberURL, member)
}

func (r *Rest) changeMember(path string, member federation.Identity) error {
	auth, err := r.authorize([]byte(member))
	if err != nil {
		return err
	}
	var res server.SuccessResponse
	if err := r.makePost(path, server.MemberRequest{Auth: auth, Member: member}, &res); err != nil {
		return err
	}
	return confirmed(res.Success)
}

// TransferOwnership hands the federation over to the new owner, the wallet must belong to the owner.
func (r *Rest) TransferOwnership(newOwner federation.Identity) error {
	auth, err := r.authorize([]byte(newOwner))
	if err != nil {
		return err
	}
	var res server.SuccessResponse
	if err := r.makePost(server.TransferOwnershipURL, server.TransferOwnershipRequest{Auth: auth, NewOwner: newOwner}, &res); err != nil {
		return err
	}
	return confirmed(res.Success)
}

// TransactionID asks the node to compute the transaction id of the key.
func (r *Rest) TransactionID(k federation.ProposalKey) (federation.TxID, error) {
	var res server.TransactionResponse
	if err := r.makePost(server.TransactionIDURL, server.TransactionIDRequest{Key: k}, &res); err != nil {
		return federation.TxID{}, err
	}
	return res.TxID, nil
}

// ProposeTransaction proposes the transaction with the opaque payload.
func (r *Rest) ProposeTransaction(k federation.ProposalKey, payload []byte) (federation.TxID, error) {
	id, auth, err := r.authorizeTransaction(k, func(id federation.TxID) []byte {
		return server.ProposeSubject(id, payload)
	})
	if err != nil {
		return federation.TxID{}, err
	}
	req := server.ProposeRequest{Auth: auth, Key: k, Payload: payload}
	return r.postTransaction(server.ProposeTransactionURL, id, req)
}

// SignTransaction records the wallet owner signature of the transaction.
func (r *Rest) SignTransaction(k federation.ProposalKey, signature string, valid bool) (federation.TxID, error) {
	id, auth, err := r.authorizeTransaction(k, func(id federation.TxID) []byte {
		return server.SignSubject(id, signature, valid)
	})
	if err != nil {
		return federation.TxID{}, err
	}
	req := server.SignRequest{Auth: auth, Key: k, Signature: signature, Valid: valid}
	return r.postTransaction(server.SignTransactionURL, id, req)
}

// SentTransaction stores the final payload and marks the transaction as sent when sent is true.
func (r *Rest) SentTransaction(k federation.ProposalKey, payload []byte, sent bool) (federation.TxID, error) {
	id, auth, err := r.authorizeTransaction(k, func(id federation.TxID) []byte {
		return server.SentSubject(id, payload, sent)
	})
	if err != nil {
		return federation.TxID{}, err
	}
	req := server.SentRequest{Auth: auth, Key: k, Payload: payload, Sent: sent}
	return r.postTransaction(server.SentTransactionURL, id, req)
}

// FailTransaction fails the transaction proposal, the wallet must belong to the owner.
func (r *Rest) FailTransaction(k federation.ProposalKey) (federation.TxID, error) {
	id, auth, err := r.authorizeTransaction(k, server.FailSubject)
	if err != nil {
		return federation.TxID{}, err
	}
	req := server.FailRequest{Auth: auth, Key: k}
	return r.postTransaction(server.FailedTransactionURL, id, req)
}

// Transaction reads the transaction proposal.
func (r *Rest) Transaction(id federation.TxID) (federation.ProposalView, error) {
	var res federation.ProposalView
	if err := r.makeGet(transactionPath(id), &res); err != nil {
		return federation.ProposalView{}, err
	}
	return res, nil
}

// Signature reads the signature of the transaction at the index.
func (r *Rest) Signature(id federation.TxID, index int) (federation.Signature, error) {
	var res federation.Signature
	if err := r.makeGet(fmt.Sprintf("%s/signature/%d", transactionPath(id), index), &res); err != nil {
		return federation.Signature{}, err
	}
	return res, nil
}

// IsSigned checks if the address signed the transaction.
func (r *Rest) IsSigned(id federation.TxID, address federation.Identity) (bool, error) {
	var res server.SignedResponse
	if err := r.makeGet(transactionPath(id)+"/signed/"+url.PathEscape(string(address)), &res); err != nil {
		return false, err
	}
	return res.Signed, nil
}

// TransactionHistory reads all journaled events of the transaction.
func (r *Rest) TransactionHistory(id federation.TxID) ([]federation.Event, error) {
	var res server.HistoryResponse
	if err := r.makeGet(transactionPath(id)+"/history", &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

// CreateWebhook registers the webhook for the trigger.
func (r *Rest) CreateWebhook(trigger federation.EventKind, hookURL, token string) error {
	auth, err := r.authorize([]byte(hookURL))
	if err != nil {
		return err
	}
	req := server.CreateWebhookRequest{Auth: auth, Trigger: trigger, URL: hookURL, Token: token}
	var res server.SuccessResponse
	if err := r.makePost(server.CreateWebhookURL, req, &res); err != nil {
		return err
	}
	return confirmed(res.Success)
}

// RemoveWebhook removes the webhook registered for the trigger.
func (r *Rest) RemoveWebhook(trigger federation.EventKind) error {
	auth, err := r.authorize([]byte(trigger.String()))
	if err != nil {
		return err
	}
	var res server.SuccessResponse
	if err := r.makePost(server.RemoveWebhookURL, server.RemoveWebhookRequest{Auth: auth, Trigger: trigger}, &res); err != nil {
		return err
	}
	return confirmed(res.Success)
}

// Subscribe connects to the node websocket and calls call for every committed event.
// It blocks until the context is canceled or the connection is closed.
func (r *Rest) Subscribe(ctx context.Context, call func(ev federation.Event)) error {
	auth, err := r.authorize(nil)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Address", auth.Address)
	header.Set("Data", hex.EncodeToString(auth.Data))
	header.Set("Hash", hex.EncodeToString(auth.Hash[:]))
	header.Set("Signature", hex.EncodeToString(auth.Signature))

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, "ws"+strings.TrimPrefix(r.apiRoot, "http")+server.WsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if msg.Command == server.CommandEvent && msg.Event != nil {
			call(*msg.Event)
		}
	}
}

func (r *Rest) authorize(subject []byte) (server.Authorization, error) {
	if !r.ready {
		return server.Authorization{}, ErrWalletNotReady
	}
	var data server.DataToSignResponse
	if err := r.makePost(server.DataToSignURL, server.DataToSignRequest{Address: r.w.Address()}, &data); err != nil {
		return server.Authorization{}, err
	}
	digest, signature := r.w.SignChallenge(data.Data, subject)
	return server.Authorization{
		Address:   r.w.Address(),
		Data:      data.Data,
		Hash:      digest,
		Signature: signature,
	}, nil
}

func (r *Rest) authorizeTransaction(k federation.ProposalKey, subject func(federation.TxID) []byte) (federation.TxID, server.Authorization, error) {
	id, err := federation.TransactionID(k)
	if err != nil {
		return federation.TxID{}, server.Authorization{}, err
	}
	auth, err := r.authorize(subject(id))
	if err != nil {
		return federation.TxID{}, server.Authorization{}, err
	}
	return id, auth, nil
}

func (r *Rest) postTransaction(path string, id federation.TxID, req any) (federation.TxID, error) {
	var res server.TransactionResponse
	if err := r.makePost(path, req, &res); err != nil {
		return federation.TxID{}, err
	}
	if err := confirmed(res.Success); err != nil {
		return federation.TxID{}, err
	}
	if res.TxID != id {
		return federation.TxID{}, errors.Join(ErrServerReturnsInconsistentData, fmt.Errorf("expected transaction id %s but got %s", id, res.TxID))
	}
	return id, nil
}

func (r *Rest) makePost(path string, out, in any) error {
	return mapError(httpclient.MakePost(r.timeout, r.apiRoot+path, out, in))
}

func (r *Rest) makeGet(path string, out any) error {
	return mapError(httpclient.MakeGet(r.timeout, r.apiRoot+path, out))
}

func transactionPath(id federation.TxID) string {
	return server.TransactionURL + "/" + id.String()
}

func confirmed(success bool) error {
	if !success {
		return errors.Join(httpclient.ErrRejectedByServer, errors.New("server did not confirm the request"))
	}
	return nil
}

// mapError joins the server error with the matching package error.
func mapError(err error) error {
	var re *httpclient.ResponseError
	if !errors.As(err, &re) {
		return err
	}
	for _, known := range knownErrors {
		if re.Message == known.Error() {
			return errors.Join(known, err)
		}
	}
	return err
}

// Config holds the federator client configuration.
type Config struct {
	NodeURL        string `yaml:"node_url"`        // NodeURL is the root url of the federation node API.
	TimeoutSeconds int    `yaml:"timeout_seconds"` // TimeoutSeconds limits a single request, 5 seconds when not set.
}

// Timeout returns the request timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
