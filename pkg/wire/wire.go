// Package wire defines the messages exchanged between peers and their
// CBOR encoding. Encoding and decoding are pure functions: decoding never
// returns a partially populated message.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	// ProtocolVersion is the version stamped on every outgoing message.
	ProtocolVersion = "1.0.0"
	// UnknownVersion is the version of messages sent by peers that don't
	// declare one.
	UnknownVersion = ""

	// MaxEnvelopeSize is the max size of an encoded envelope.
	MaxEnvelopeSize = 16 << 20
	// MaxPayloadSize is the max size of an envelope payload. The rest is
	// left to the envelope header.
	MaxPayloadSize = MaxEnvelopeSize - envelopeHeaderAllowance

	envelopeHeaderAllowance = 4 << 10
)

// Kind tells how to interpret the payload of an envelope.
type Kind uint8

const (
	KindPreliminaryGetDataRequest Kind = iota + 1
	KindGetUpdatedDataRequest
	KindGetDataResponse
	KindTradeMessage
)

func (k Kind) String() string {
	switch k {
	case KindPreliminaryGetDataRequest:
		return "PRELIMINARY_GET_DATA_REQUEST"
	case KindGetUpdatedDataRequest:
		return "GET_UPDATED_DATA_REQUEST"
	case KindGetDataResponse:
		return "GET_DATA_RESPONSE"
	case KindTradeMessage:
		return "TRADE_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

func (k Kind) IsValid() bool {
	return k >= KindPreliminaryGetDataRequest && k <= KindTradeMessage
}

var (
	// ErrMalformedMessage is returned when a message can't be decoded.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrMissingField is returned when a mandatory field is absent.
	ErrMissingField = errors.New("missing mandatory field")
	// ErrUnknownKind is returned for envelopes or entries of unknown kind.
	ErrUnknownKind = errors.New("unknown kind")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 20,
	}).DecMode(); err != nil {
		panic(err)
	}
}

// Envelope is the unit of transmission between peers.
type Envelope struct {
	Version string          `cbor:"1,keyasint,omitempty"`
	Kind    Kind            `cbor:"2,keyasint"`
	Sender  string          `cbor:"3,keyasint"`
	Payload cbor.RawMessage `cbor:"4,keyasint"`
}

// NewEnvelope wraps the encoded payload into an envelope stamped with the
// current protocol version.
func NewEnvelope(kind Kind, sender string, payload []byte) Envelope {
	return Envelope{
		Version: ProtocolVersion,
		Kind:    kind,
		Sender:  sender,
		Payload: payload,
	}
}

func EncodeEnvelope(env Envelope) ([]byte, error) {
	if !env.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Kind)
	}
	return encMode.Marshal(env)
}

func DecodeEnvelope(buf []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := decMode.Unmarshal(buf, env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	if !env.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Kind)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload", ErrMissingField)
	}
	return env, nil
}

func decode(buf []byte, v interface{}) error {
	if err := decMode.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	return nil
}
