package wire

import (
	"fmt"
	"math"
	"time"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

// GetDataRequest asks a peer for the content of its shared payload store.
type GetDataRequest struct {
	Nonce                   uint32
	IsGetUpdatedDataRequest bool
	Capabilities            domain.Capabilities
	// ExcludedKeys are the keys of the items the requester already has.
	ExcludedKeys []domain.StorageKey
	Version      string
}

// Kind returns the envelope kind for the request.
func (r GetDataRequest) Kind() Kind {
	if r.IsGetUpdatedDataRequest {
		return KindGetUpdatedDataRequest
	}
	return KindPreliminaryGetDataRequest
}

// GetDataResponse is the reply to a GetDataRequest.
type GetDataResponse struct {
	ProtectedEntries         []domain.ProtectedStorageEntry
	PersistablePayloads      []domain.PersistableNetworkPayload
	Nonce                    uint32
	IsGetUpdatedDataResponse bool
	WasTruncated             bool
	Capabilities             domain.Capabilities
	Version                  string
}

// AssociatedRequestKind returns the kind of the request the response
// answers to.
func (r GetDataResponse) AssociatedRequestKind() Kind {
	if r.IsGetUpdatedDataResponse {
		return KindGetUpdatedDataRequest
	}
	return KindPreliminaryGetDataRequest
}

type getDataRequestMsg struct {
	Nonce                   *uint32  `cbor:"1,keyasint"`
	IsGetUpdatedDataRequest bool     `cbor:"2,keyasint"`
	Capabilities            []uint32 `cbor:"3,keyasint"`
	ExcludedKeys            [][]byte `cbor:"4,keyasint,omitempty"`
	Version                 *string  `cbor:"5,keyasint,omitempty"`
}

type protectedEntryMsg struct {
	Kind           *uint8   `cbor:"1,keyasint"`
	PayloadType    string   `cbor:"2,keyasint"`
	PayloadData    []byte   `cbor:"3,keyasint"`
	RequiredCaps   []uint32 `cbor:"4,keyasint,omitempty"`
	OwnerPubKey    []byte   `cbor:"5,keyasint"`
	ReceiverPubKey []byte   `cbor:"6,keyasint,omitempty"`
	SequenceNumber uint32   `cbor:"7,keyasint"`
	TTL            int64    `cbor:"8,keyasint,omitempty"`
	CreationTime   int64    `cbor:"9,keyasint"`
	Signature      []byte   `cbor:"10,keyasint"`
	Removed        bool     `cbor:"11,keyasint,omitempty"`
}

type persistablePayloadMsg struct {
	Type         string   `cbor:"1,keyasint"`
	Data         []byte   `cbor:"2,keyasint"`
	RequiredCaps []uint32 `cbor:"3,keyasint,omitempty"`
	CreationTime int64    `cbor:"4,keyasint,omitempty"`
}

type getDataResponseMsg struct {
	ProtectedEntries         []protectedEntryMsg     `cbor:"1,keyasint"`
	PersistablePayloads      []persistablePayloadMsg `cbor:"2,keyasint"`
	Nonce                    *uint32                 `cbor:"3,keyasint"`
	IsGetUpdatedDataResponse bool                    `cbor:"4,keyasint"`
	Capabilities             []uint32                `cbor:"5,keyasint"`
	WasTruncated             *bool                   `cbor:"6,keyasint,omitempty"`
	Version                  *string                 `cbor:"7,keyasint,omitempty"`
}

func EncodeGetDataRequest(req GetDataRequest) ([]byte, error) {
	nonce := req.Nonce
	version := req.Version
	if version == UnknownVersion {
		version = ProtocolVersion
	}
	keys := make([][]byte, 0, len(req.ExcludedKeys))
	for _, k := range req.ExcludedKeys {
		keys = append(keys, k.Bytes())
	}
	return encMode.Marshal(getDataRequestMsg{
		Nonce:                   &nonce,
		IsGetUpdatedDataRequest: req.IsGetUpdatedDataRequest,
		Capabilities:            req.Capabilities.ToIntList(),
		ExcludedKeys:            keys,
		Version:                 &version,
	})
}

func DecodeGetDataRequest(buf []byte) (*GetDataRequest, error) {
	msg := getDataRequestMsg{}
	if err := decode(buf, &msg); err != nil {
		return nil, err
	}
	if msg.Nonce == nil {
		return nil, fmt.Errorf("%w: nonce", ErrMissingField)
	}

	keys := make([]domain.StorageKey, 0, len(msg.ExcludedKeys))
	for _, k := range msg.ExcludedKeys {
		keys = append(keys, domain.StorageKeyFromBytes(k))
	}
	version := UnknownVersion
	if msg.Version != nil {
		version = *msg.Version
	}
	return &GetDataRequest{
		Nonce:                   *msg.Nonce,
		IsGetUpdatedDataRequest: msg.IsGetUpdatedDataRequest,
		Capabilities:            domain.CapabilitiesFromIntList(msg.Capabilities),
		ExcludedKeys:            keys,
		Version:                 version,
	}, nil
}

func EncodeGetDataResponse(res GetDataResponse) ([]byte, error) {
	entries := make([]protectedEntryMsg, 0, len(res.ProtectedEntries))
	for _, e := range res.ProtectedEntries {
		entries = append(entries, protectedEntryToMsg(e))
	}
	payloads := make([]persistablePayloadMsg, 0, len(res.PersistablePayloads))
	for _, p := range res.PersistablePayloads {
		payloads = append(payloads, persistablePayloadToMsg(p))
	}

	nonce := res.Nonce
	truncated := res.WasTruncated
	version := res.Version
	return encMode.Marshal(getDataResponseMsg{
		ProtectedEntries:         entries,
		PersistablePayloads:      payloads,
		Nonce:                    &nonce,
		IsGetUpdatedDataResponse: res.IsGetUpdatedDataResponse,
		Capabilities:             res.Capabilities.ToIntList(),
		WasTruncated:             &truncated,
		Version:                  &version,
	})
}

// DecodeGetDataResponse decodes a response. Fields unknown to this version
// are ignored, a missing truncation flag defaults to false and a missing
// version to UnknownVersion. An entry of unknown kind makes the whole
// message invalid.
func DecodeGetDataResponse(buf []byte) (*GetDataResponse, error) {
	msg := getDataResponseMsg{}
	if err := decode(buf, &msg); err != nil {
		return nil, err
	}
	if msg.Nonce == nil {
		return nil, fmt.Errorf("%w: nonce", ErrMissingField)
	}

	entries := make([]domain.ProtectedStorageEntry, 0, len(msg.ProtectedEntries))
	for i, m := range msg.ProtectedEntries {
		entry, err := protectedEntryFromMsg(m)
		if err != nil {
			return nil, fmt.Errorf("protected entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	payloads := make([]domain.PersistableNetworkPayload, 0, len(msg.PersistablePayloads))
	for i, m := range msg.PersistablePayloads {
		if m.Type == "" || len(m.Data) == 0 {
			return nil, fmt.Errorf(
				"persistable payload %d: %w: type or data", i, ErrMissingField,
			)
		}
		payloads = append(payloads, persistablePayloadFromMsg(m))
	}

	res := &GetDataResponse{
		ProtectedEntries:         entries,
		PersistablePayloads:      payloads,
		Nonce:                    *msg.Nonce,
		IsGetUpdatedDataResponse: msg.IsGetUpdatedDataResponse,
		Capabilities:             domain.CapabilitiesFromIntList(msg.Capabilities),
		Version:                  UnknownVersion,
	}
	if msg.WasTruncated != nil {
		res.WasTruncated = *msg.WasTruncated
	}
	if msg.Version != nil {
		res.Version = *msg.Version
	}
	return res, nil
}

// GetDataResponseOverhead returns an upper bound of the size of a response
// with the given capabilities and version, excluding its items. It accounts
// for the largest nonce and for the headers of the item arrays at their
// largest.
func GetDataResponseOverhead(
	capabilities domain.Capabilities, version string,
) (int, error) {
	buf, err := EncodeGetDataResponse(GetDataResponse{
		Nonce:                    math.MaxUint32,
		IsGetUpdatedDataResponse: true,
		WasTruncated:             true,
		Capabilities:             capabilities,
		Version:                  version,
	})
	if err != nil {
		return 0, err
	}
	// An empty array header takes 1 byte, the largest one 9.
	return len(buf) + 2*8, nil
}

// ProtectedEntrySize returns the size of the encoded entry.
func ProtectedEntrySize(entry domain.ProtectedStorageEntry) (int, error) {
	buf, err := encMode.Marshal(protectedEntryToMsg(entry))
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

// PersistablePayloadSize returns the size of the encoded payload.
func PersistablePayloadSize(payload domain.PersistableNetworkPayload) (int, error) {
	buf, err := encMode.Marshal(persistablePayloadToMsg(payload))
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

func protectedEntryToMsg(e domain.ProtectedStorageEntry) protectedEntryMsg {
	kind := uint8(e.Kind)
	return protectedEntryMsg{
		Kind:           &kind,
		PayloadType:    e.Payload.Type,
		PayloadData:    e.Payload.Data,
		RequiredCaps:   capsToInts(e.Payload.RequiredCapabilities),
		OwnerPubKey:    e.OwnerPubKey,
		ReceiverPubKey: e.ReceiverPubKey,
		SequenceNumber: e.SequenceNumber,
		TTL:            e.TTL.Milliseconds(),
		CreationTime:   e.CreationTime,
		Signature:      e.Signature,
		Removed:        e.Removed,
	}
}

func protectedEntryFromMsg(m protectedEntryMsg) (domain.ProtectedStorageEntry, error) {
	if m.Kind == nil {
		return domain.ProtectedStorageEntry{}, fmt.Errorf("%w: kind", ErrMissingField)
	}
	kind := domain.EntryKind(*m.Kind)
	switch kind {
	case domain.EntryKindPlain:
	case domain.EntryKindMailbox:
		if len(m.ReceiverPubKey) == 0 {
			return domain.ProtectedStorageEntry{}, fmt.Errorf(
				"%w: receiver pubkey", ErrMissingField,
			)
		}
	default:
		return domain.ProtectedStorageEntry{}, fmt.Errorf(
			"%w: entry kind %d", ErrUnknownKind, *m.Kind,
		)
	}
	if m.PayloadType == "" || len(m.OwnerPubKey) == 0 {
		return domain.ProtectedStorageEntry{}, fmt.Errorf(
			"%w: payload type or owner pubkey", ErrMissingField,
		)
	}

	return domain.ProtectedStorageEntry{
		Kind: kind,
		Payload: domain.StoragePayload{
			Type:                 m.PayloadType,
			Data:                 m.PayloadData,
			RequiredCapabilities: intsToCaps(m.RequiredCaps),
		},
		OwnerPubKey:    m.OwnerPubKey,
		ReceiverPubKey: m.ReceiverPubKey,
		SequenceNumber: m.SequenceNumber,
		TTL:            time.Duration(m.TTL) * time.Millisecond,
		CreationTime:   m.CreationTime,
		Signature:      m.Signature,
		Removed:        m.Removed,
	}, nil
}

func persistablePayloadToMsg(p domain.PersistableNetworkPayload) persistablePayloadMsg {
	return persistablePayloadMsg{
		Type:         p.Type,
		Data:         p.Data,
		RequiredCaps: capsToInts(p.RequiredCapabilities),
		CreationTime: p.CreationTime,
	}
}

func persistablePayloadFromMsg(m persistablePayloadMsg) domain.PersistableNetworkPayload {
	return domain.PersistableNetworkPayload{
		Type:                 m.Type,
		Data:                 m.Data,
		RequiredCapabilities: intsToCaps(m.RequiredCaps),
		CreationTime:         m.CreationTime,
	}
}

func capsToInts(caps []domain.Capability) []uint32 {
	if len(caps) == 0 {
		return nil
	}
	list := make([]uint32, 0, len(caps))
	for _, c := range caps {
		list = append(list, uint32(c))
	}
	return list
}

func intsToCaps(list []uint32) []domain.Capability {
	if len(list) == 0 {
		return nil
	}
	caps := make([]domain.Capability, 0, len(list))
	for _, v := range list {
		caps = append(caps, domain.Capability(v))
	}
	return caps
}
