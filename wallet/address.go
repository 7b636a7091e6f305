package wallet

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

const (
	checksumLength = 4
	version        = byte(0x00)
)

// encodeAddress encodes version, public key and checksum in base58.
func encodeAddress(pub ed25519.PublicKey) string {
	full := make([]byte, 0, 1+len(pub)+checksumLength)
	full = append(full, version)
	full = append(full, pub...)
	full = append(full, checksum(full)...)
	return base58.Encode(full)
}

// AddressToPubKey creates ED25519 public key from address, or returns error otherwise.
func AddressToPubKey(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	if len(raw) != 1+ed25519.PublicKeySize+checksumLength {
		return nil, ErrInvalidAddress
	}
	if raw[0] != version {
		return nil, ErrInvalidAddress
	}
	body, actual := raw[:len(raw)-checksumLength], raw[len(raw)-checksumLength:]
	if !bytes.Equal(actual, checksum(body)) {
		return nil, ErrAddressChecksum
	}
	return ed25519.PublicKey(body[1:]), nil
}

func checksum(payload []byte) []byte {
	firstHash := sha256.Sum256(payload)
	secondHash := sha256.Sum256(firstHash[:])
	return secondHash[:checksumLength]
}
