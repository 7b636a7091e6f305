package wallet

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/gob"
	"encoding/pem"
	"errors"
	"os"

	"github.com/bartossh/Federation/federation"
)

// Wallet holds public and private key of the federator or of the owner.
type Wallet struct {
	Private ed25519.PrivateKey `json:"private"`
	Public  ed25519.PublicKey  `json:"public"`
}

// New tries to creates a new Wallet or returns error otherwise.
func New() (Wallet, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{Private: private, Public: public}, nil
}

// SaveToPem saves wallet private and public key to the PEM format file.
// Saved files are like in the example:
// - PRIVATE: "your/path/name"
// - PUBLIC: "your/path/name.pub"
func (w *Wallet) SaveToPem(filepath string) error {
	prv, err := x509.MarshalPKCS8PrivateKey(w.Private)
	if err != nil {
		return err
	}
	pub, err := x509.MarshalPKIXPublicKey(w.Public)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: prv}), 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath+".pub", pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}), 0644)
}

// ReadFromPem creates Wallet from PEM format file.
// Provide the path to a file without specifying the extension : <your/path/name".
func ReadFromPem(filepath string) (Wallet, error) {
	rawPub, err := os.ReadFile(filepath + ".pub")
	if err != nil {
		return Wallet{}, err
	}
	rawPrv, err := os.ReadFile(filepath)
	if err != nil {
		return Wallet{}, err
	}

	blockPub, _ := pem.Decode(rawPub)
	if blockPub == nil || blockPub.Type != "PUBLIC KEY" {
		return Wallet{}, errors.New("cannot decode public key from PEM format")
	}
	pub, err := x509.ParsePKIXPublicKey(blockPub.Bytes)
	if err != nil {
		return Wallet{}, err
	}
	blockPrv, _ := pem.Decode(rawPrv)
	if blockPrv == nil || blockPrv.Type != "PRIVATE KEY" {
		return Wallet{}, errors.New("cannot decode private key from PEM format")
	}
	prv, err := x509.ParsePKCS8PrivateKey(blockPrv.Bytes)
	if err != nil {
		return Wallet{}, err
	}

	var w Wallet
	var ok bool
	if w.Public, ok = pub.(ed25519.PublicKey); !ok {
		return Wallet{}, errors.New("cannot cast x509 decoded parsed key to ed25519 public key")
	}
	if w.Private, ok = prv.(ed25519.PrivateKey); !ok {
		return Wallet{}, errors.New("cannot cast x509 decoded parsed key to ed25519 private key")
	}
	if !bytes.Equal(w.Private.Public().(ed25519.PublicKey), w.Public) {
		return Wallet{}, errors.New("public key does not match the private key")
	}
	return w, nil
}

// DecodeGOBWallet tries to decode Wallet from gob representation or returns error otherwise.
func DecodeGOBWallet(data []byte) (Wallet, error) {
	var w Wallet
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return Wallet{}, err
	}
	if len(w.Private) != ed25519.PrivateKeySize || len(w.Public) != ed25519.PublicKeySize {
		return Wallet{}, errors.New("decoded wallet has keys of invalid length")
	}
	return w, nil
}

// EncodeGOB tries to encodes Wallet in to the gob representation or returns error otherwise.
func (w *Wallet) EncodeGOB() ([]byte, error) {
	var content bytes.Buffer
	if err := gob.NewEncoder(&content).Encode(w); err != nil {
		return nil, err
	}
	return content.Bytes(), nil
}

// Address creates address from the public key that contains wallet version and checksum.
func (w *Wallet) Address() string {
	return encodeAddress(w.Public)
}

// Identity returns the wallet address as the federation identity.
func (w *Wallet) Identity() federation.Identity {
	return federation.Identity(w.Address())
}

// Sign signs the message with Ed25519 signature.
// Returns digest hash sha256 and signature.
func (w *Wallet) Sign(message []byte) (digest [32]byte, signature []byte) {
	digest = sha256.Sum256(message)
	signature = ed25519.Sign(w.Private, digest[:])
	return digest, signature
}

// SignChallenge signs the challenge data issued by the node bound to the subject of the request.
func (w *Wallet) SignChallenge(data, subject []byte) (digest [32]byte, signature []byte) {
	return w.Sign(ChallengeMessage(data, subject))
}

// Verify verifies message ED25519 signature and hash.
// Uses hashing sha256.
func (w *Wallet) Verify(message, signature []byte, hash [32]byte) bool {
	digest := sha256.Sum256(message)
	if !bytes.Equal(hash[:], digest[:]) {
		return false
	}
	return ed25519.Verify(w.Public, digest[:], signature)
}

// ChallengeMessage builds the message signed to authorize a request.
func ChallengeMessage(data, subject []byte) []byte {
	msg := make([]byte, 0, len(data)+len(subject))
	msg = append(msg, data...)
	return append(msg, subject...)
}
