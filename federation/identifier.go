package federation

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	bytes32Length = 32
	valueBits     = 256
)

// Identity is an address of a federator or of the owner.
type Identity string

// TransactionType is a tag distinguishing transfer kinds on the external ledger.
type TransactionType uint8

const (
	TransactionTypeMelt     TransactionType = iota // TransactionTypeMelt melts wrapped tokens.
	TransactionTypeMint                            // TransactionTypeMint mints wrapped tokens.
	TransactionTypeTransfer                        // TransactionTypeTransfer is a standard transfer.
	TransactionTypeReturn                          // TransactionTypeReturn returns funds to the origin.
)

// Bytes32 is a fixed size opaque identifier, hex encoded in JSON as 0x prefixed string.
type Bytes32 [bytes32Length]byte

// MarshalText implements encoding.TextMarshaler.
func (b Bytes32) MarshalText() ([]byte, error) {
	return encodeHex(b[:]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Shorter values are right padded with zeros the same way bytes32 literals are.
func (b *Bytes32) UnmarshalText(text []byte) error {
	raw, err := decodeHex(text)
	if err != nil {
		return err
	}
	if len(raw) > bytes32Length {
		return fmt.Errorf("value of %d bytes exceeds %d bytes", len(raw), bytes32Length)
	}
	*b = Bytes32{}
	copy(b[:], raw)
	return nil
}

// String returns 0x prefixed hex representation.
func (b Bytes32) String() string {
	return string(encodeHex(b[:]))
}

// TxID is a deterministic proposal identifier.
type TxID [bytes32Length]byte

// ParseTxID parses 0x prefixed or plain hex string in to the TxID.
func ParseTxID(s string) (TxID, error) {
	var id TxID
	raw, err := decodeHex([]byte(s))
	if err != nil {
		return id, err
	}
	if len(raw) != bytes32Length {
		return id, fmt.Errorf("transaction id must be %d bytes long, got %d", bytes32Length, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id TxID) MarshalText() ([]byte, error) {
	return encodeHex(id[:]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *TxID) UnmarshalText(text []byte) error {
	parsed, err := ParseTxID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// String returns 0x prefixed hex representation.
func (id TxID) String() string {
	return string(encodeHex(id[:]))
}

// HexBytes is an opaque payload, hex encoded in JSON as 0x prefixed string.
type HexBytes []byte

// MarshalText implements encoding.TextMarshaler.
func (h HexBytes) MarshalText() ([]byte, error) {
	return encodeHex(h), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HexBytes) UnmarshalText(text []byte) error {
	raw, err := decodeHex(text)
	if err != nil {
		return err
	}
	*h = raw
	return nil
}

// ProposalKey holds the six fields identifying a proposal.
// Fields are immutable once the proposal exists.
type ProposalKey struct {
	OriginalTokenAddress Bytes32         `json:"original_token_address"`
	TransactionHash      Bytes32         `json:"transaction_hash"`
	Value                *big.Int        `json:"value"`
	Sender               string          `json:"sender"`
	Receiver             string          `json:"receiver"`
	TransactionType      TransactionType `json:"transaction_type"`
}

// Validate checks if value fits in to unsigned 256 bit integer.
func (k ProposalKey) Validate() error {
	if k.Value == nil || k.Value.Sign() < 0 || k.Value.BitLen() > valueBits {
		return ErrInvalidValue
	}
	return nil
}

func (k ProposalKey) clone() ProposalKey {
	c := k
	if k.Value != nil {
		c.Value = new(big.Int).Set(k.Value)
	}
	return c
}

// TransactionID computes the identifier of the proposal described by the key.
// The digest is keccak256 over the packed fields in the order:
// token address, transaction hash, value as 32 bytes big endian, sender, receiver, type.
// The same packing is produced by solidity abi.encodePacked so identifiers can be
// computed independently by the off-chain parties.
func TransactionID(k ProposalKey) (TxID, error) {
	if err := k.Validate(); err != nil {
		return TxID{}, err
	}

	var value [bytes32Length]byte
	k.Value.FillBytes(value[:])

	return keccak256(
		k.OriginalTokenAddress[:],
		k.TransactionHash[:],
		value[:],
		[]byte(k.Sender),
		[]byte(k.Receiver),
		[]byte{byte(k.TransactionType)},
	), nil
}

func keccak256(parts ...[]byte) TxID {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var id TxID
	h.Sum(id[:0])
	return id
}

func encodeHex(src []byte) []byte {
	dst := make([]byte, 2+hex.EncodedLen(len(src)))
	copy(dst, "0x")
	hex.Encode(dst[2:], src)
	return dst
}

func decodeHex(src []byte) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(string(src), "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
