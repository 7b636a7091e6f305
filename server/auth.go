package server

import (
	"fmt"

	"github.com/bartossh/Federation/federation"
)

// Authorization proves the caller controls the address.
// Data is the challenge received from the data endpoint, signature covers data followed by
// the request subject and hash is the sha256 digest of that message.
type Authorization struct {
	Address   string              `json:"address"`
	Data      federation.HexBytes `json:"data"`
	Hash      federation.Bytes32  `json:"hash"`
	Signature federation.HexBytes `json:"signature"`
}

// authorize verifies the signature and consumes the challenge.
// The authenticated address becomes the caller identity.
func (s *server) authorize(a Authorization, subject []byte) (federation.Identity, error) {
	if a.Address == "" || len(a.Data) == 0 || len(a.Signature) == 0 {
		return "", ErrUnauthorized
	}
	if err := s.verifier.VerifyChallenge(a.Data, subject, a.Signature, a.Hash, a.Address); err != nil {
		s.log.Warn(fmt.Sprintf("server authorization of address [ %s ] failed: %s", a.Address, err))
		return "", ErrUnauthorized
	}
	if !s.randData.ConsumeData(a.Address, a.Data) {
		s.log.Warn(fmt.Sprintf("server authorization of address [ %s ] failed: challenge is unknown or expired", a.Address))
		return "", ErrUnauthorized
	}
	return federation.Identity(a.Address), nil
}

// ProposeSubject is the subject signed by the caller proposing the transaction.
func ProposeSubject(id federation.TxID, payload []byte) []byte {
	return transactionSubject(federation.EventProposalCreated, id, payload)
}

// SignSubject is the subject signed by the federator recording its transaction signature.
func SignSubject(id federation.TxID, signature string, valid bool) []byte {
	return transactionSubject(federation.EventProposalSigned, id, []byte(signature), flag(valid))
}

// SentSubject is the subject signed by the federator storing the final transaction payload.
func SentSubject(id federation.TxID, payload []byte, sent bool) []byte {
	return transactionSubject(federation.EventProposalSent, id, payload, flag(sent))
}

// FailSubject is the subject signed by the owner failing the transaction.
func FailSubject(id federation.TxID) []byte {
	return transactionSubject(federation.EventProposalFailed, id)
}

// transactionSubject packs kind ‖ txId ‖ fields.
// A variable length field is either the last one or followed by a single flag byte.
func transactionSubject(kind federation.EventKind, id federation.TxID, fields ...[]byte) []byte {
	size := 1 + len(id)
	for _, f := range fields {
		size += len(f)
	}
	subject := make([]byte, 0, size)
	subject = append(subject, byte(kind))
	subject = append(subject, id[:]...)
	for _, f := range fields {
		subject = append(subject, f...)
	}
	return subject
}

func flag(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}
