package federation

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the event wire format. Numbers are never reused.
const (
	fieldKind protowire.Number = iota + 1
	fieldOriginalTokenAddress
	fieldTransactionHash
	fieldValue
	fieldSender
	fieldReceiver
	fieldTransactionType
	fieldTxID
	fieldCaller
	fieldMember
	fieldMembers
	fieldOwner
	fieldPayload
	fieldSignature
	fieldValid
	fieldSent
	fieldCreatedAt
)

// Encode encodes event in to protobuf wire format.
func (e *Event) Encode() ([]byte, error) {
	if _, ok := eventKindNames[e.Kind]; !ok {
		return nil, ErrUnknownEvent
	}

	buf := make([]byte, 0, 256+len(e.Payload)+len(e.Signature))
	buf = appendVarint(buf, fieldKind, uint64(e.Kind))

	if e.Kind.IsProposal() {
		if err := e.Key.Validate(); err != nil {
			return nil, err
		}
		buf = appendBytes(buf, fieldOriginalTokenAddress, e.Key.OriginalTokenAddress[:])
		buf = appendBytes(buf, fieldTransactionHash, e.Key.TransactionHash[:])
		buf = appendBytes(buf, fieldValue, e.Key.Value.Bytes())
		buf = appendBytes(buf, fieldSender, []byte(e.Key.Sender))
		buf = appendBytes(buf, fieldReceiver, []byte(e.Key.Receiver))
		buf = appendVarint(buf, fieldTransactionType, uint64(e.Key.TransactionType))
		buf = appendBytes(buf, fieldTxID, e.TxID[:])
	}

	buf = appendBytes(buf, fieldCaller, []byte(e.Caller))
	if e.Member != "" {
		buf = appendBytes(buf, fieldMember, []byte(e.Member))
	}
	for _, m := range e.Members {
		buf = appendBytes(buf, fieldMembers, []byte(m))
	}
	if e.Owner != "" {
		buf = appendBytes(buf, fieldOwner, []byte(e.Owner))
	}
	if len(e.Payload) > 0 {
		buf = appendBytes(buf, fieldPayload, e.Payload)
	}
	if e.Signature != "" {
		buf = appendBytes(buf, fieldSignature, []byte(e.Signature))
	}
	buf = appendVarint(buf, fieldValid, protowire.EncodeBool(e.Valid))
	buf = appendVarint(buf, fieldSent, protowire.EncodeBool(e.Sent))
	buf = appendVarint(buf, fieldCreatedAt, uint64(e.CreatedAt.UnixMicro()))

	return buf, nil
}

// DecodeEvent decodes event from protobuf wire format.
// Unknown fields are skipped.
func DecodeEvent(buf []byte) (Event, error) {
	var e Event
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Event{}, errors.Join(ErrMalformedEvent, protowire.ParseError(n))
		}
		buf = buf[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return Event{}, errors.Join(ErrMalformedEvent, protowire.ParseError(n))
			}
			buf = buf[n:]
			if err := e.setVarint(num, v); err != nil {
				return Event{}, err
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return Event{}, errors.Join(ErrMalformedEvent, protowire.ParseError(n))
			}
			buf = buf[n:]
			if err := e.setBytes(num, v); err != nil {
				return Event{}, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Event{}, errors.Join(ErrMalformedEvent, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}

	if _, ok := eventKindNames[e.Kind]; !ok {
		return Event{}, ErrUnknownEvent
	}
	if e.Kind.IsProposal() && e.Key.Value == nil {
		return Event{}, errors.Join(ErrMalformedEvent, errors.New("proposal event without value"))
	}

	return e, nil
}

func (e *Event) setVarint(num protowire.Number, v uint64) error {
	switch num {
	case fieldKind:
		if v > 0xff {
			return fmt.Errorf("%w: kind %d out of range", ErrMalformedEvent, v)
		}
		e.Kind = EventKind(v)
	case fieldTransactionType:
		if v > 0xff {
			return fmt.Errorf("%w: transaction type %d out of range", ErrMalformedEvent, v)
		}
		e.Key.TransactionType = TransactionType(v)
	case fieldValid:
		e.Valid = protowire.DecodeBool(v)
	case fieldSent:
		e.Sent = protowire.DecodeBool(v)
	case fieldCreatedAt:
		e.CreatedAt = time.UnixMicro(int64(v)).UTC()
	}
	return nil
}

func (e *Event) setBytes(num protowire.Number, v []byte) error {
	switch num {
	case fieldOriginalTokenAddress:
		if len(v) != bytes32Length {
			return fmt.Errorf("%w: token address of %d bytes", ErrMalformedEvent, len(v))
		}
		copy(e.Key.OriginalTokenAddress[:], v)
	case fieldTransactionHash:
		if len(v) != bytes32Length {
			return fmt.Errorf("%w: transaction hash of %d bytes", ErrMalformedEvent, len(v))
		}
		copy(e.Key.TransactionHash[:], v)
	case fieldValue:
		e.Key.Value = new(big.Int).SetBytes(v)
	case fieldSender:
		e.Key.Sender = string(v)
	case fieldReceiver:
		e.Key.Receiver = string(v)
	case fieldTxID:
		if len(v) != bytes32Length {
			return fmt.Errorf("%w: transaction id of %d bytes", ErrMalformedEvent, len(v))
		}
		copy(e.TxID[:], v)
	case fieldCaller:
		e.Caller = Identity(v)
	case fieldMember:
		e.Member = Identity(v)
	case fieldMembers:
		e.Members = append(e.Members, Identity(v))
	case fieldOwner:
		e.Owner = Identity(v)
	case fieldPayload:
		e.Payload = append(HexBytes{}, v...)
	case fieldSignature:
		e.Signature = string(v)
	}
	return nil
}

func appendVarint(buf []byte, num protowire.Number, v uint64) []byte {
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendBytes(buf []byte, num protowire.Number, v []byte) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}
