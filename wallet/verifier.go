package wallet

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
)

var (
	ErrInvalidAddress   = errors.New("address is not a valid wallet address")
	ErrAddressChecksum  = errors.New("address checksum is not equal")
	ErrHashCorrupted    = errors.New("hash is corrupted")
	ErrInvalidSignature = errors.New("message signature isn't valid")
)

// Helper provides wallet helper functionalities without knowing about wallet private and public keys.
type Helper struct{}

// NewVerifier creates new wallet Helper verifier.
func NewVerifier() Helper {
	return Helper{}
}

// Verify verifies if message is signed by given key and hash is equal.
func (h Helper) Verify(message, signature []byte, hash [32]byte, address string) error {
	digest := sha256.Sum256(message)
	if !bytes.Equal(hash[:], digest[:]) {
		return ErrHashCorrupted
	}

	pubKey, err := AddressToPubKey(address)
	if err != nil {
		return err
	}

	if !ed25519.Verify(pubKey, digest[:], signature) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyChallenge verifies the signature of the challenge data bound to the subject.
func (h Helper) VerifyChallenge(data, subject, signature []byte, hash [32]byte, address string) error {
	return h.Verify(ChallengeMessage(data, subject), signature, hash, address)
}
