package domain

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// PayloadTypeOffer is the type of the protected payloads that carry offers.
const PayloadTypeOffer = "offer"

// EntryKind tags a protected storage entry as plain or mailbox.
type EntryKind int

const (
	EntryKindPlain EntryKind = iota
	EntryKindMailbox
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindPlain:
		return "PLAIN"
	case EntryKindMailbox:
		return "MAILBOX"
	default:
		return "UNKNOWN"
	}
}

// Hash is a blake2b-256 digest.
type Hash [blake2b.Size256]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// StorageKey uniquely identifies an item of the shared payload store.
type StorageKey string

func (k StorageKey) Bytes() []byte {
	b, _ := hex.DecodeString(string(k))
	return b
}

// StorageKeyFromBytes is the inverse of StorageKey.Bytes.
func StorageKeyFromBytes(b []byte) StorageKey {
	return StorageKey(hex.EncodeToString(b))
}

// StoragePayload is the content of a protected storage entry.
type StoragePayload struct {
	Type                 string
	Data                 []byte
	RequiredCapabilities []Capability
}

// Hash returns the payload identity. The required capabilities are part of
// it so that they can't be changed without invalidating the owner signature.
func (p StoragePayload) Hash() Hash {
	return hashParts([]byte(p.Type), p.Data, capsBytes(p.RequiredCapabilities))
}

// ProtectedStorageEntry is an owner-signed, replaceable entry of the shared
// store. A newer entry for the same payload and owner carries a strictly
// greater sequence number.
type ProtectedStorageEntry struct {
	Kind           EntryKind
	Payload        StoragePayload
	OwnerPubKey    []byte
	ReceiverPubKey []byte
	SequenceNumber uint32
	TTL            time.Duration
	CreationTime   int64
	Signature      []byte
	// Removed marks the entry as the withdrawal of its payload by the owner.
	// It's stored and relayed like any other entry until it expires, so that
	// older versions can't be stored again.
	Removed bool
}

// Key identifies the entry by the (payload, owner) pair.
func (e ProtectedStorageEntry) Key() StorageKey {
	payloadHash := e.Payload.Hash()
	h := hashParts(payloadHash[:], e.OwnerPubKey)
	return StorageKeyFromBytes(h[:])
}

func (e ProtectedStorageEntry) IsMailbox() bool {
	return e.Kind == EntryKindMailbox
}

// Requirements returns the capabilities a peer must declare to receive this
// entry. Mailbox entries always require CapabilityMailbox.
func (e ProtectedStorageEntry) Requirements() Capabilities {
	caps := NewCapabilities(e.Payload.RequiredCapabilities...)
	if e.IsMailbox() {
		caps = caps.With(CapabilityMailbox)
	}
	return caps
}

// IsExpired returns whether the entry's TTL elapsed at the given time.
// Entries with no TTL never expire.
func (e ProtectedStorageEntry) IsExpired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	expiry := time.UnixMilli(e.CreationTime).Add(e.TTL)
	return now.After(expiry)
}

// Supersedes returns whether the entry replaces the other one.
func (e ProtectedStorageEntry) Supersedes(other ProtectedStorageEntry) bool {
	return e.SequenceNumber > other.SequenceNumber
}

// Sign sets the entry signature with the owner's private key. The owner
// public key is derived from it.
func (e *ProtectedStorageEntry) Sign(key ed25519.PrivateKey) {
	e.OwnerPubKey = key.Public().(ed25519.PublicKey)
	e.Signature = ed25519.Sign(key, e.signedMessage())
}

// VerifySignature checks the entry signature against the owner key.
func (e ProtectedStorageEntry) VerifySignature() bool {
	if len(e.OwnerPubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(e.OwnerPubKey, e.signedMessage(), e.Signature)
}

// signedMessage commits to every field but the owner key and the signature.
// The TTL is committed with millisecond precision, as it travels on the wire.
func (e ProtectedStorageEntry) signedMessage() []byte {
	payloadHash := e.Payload.Hash()
	seq := make([]byte, 4)
	binary.BigEndian.PutUint32(seq, e.SequenceNumber)
	ttl := make([]byte, 8)
	binary.BigEndian.PutUint64(ttl, uint64(e.TTL.Milliseconds()))
	creationTime := make([]byte, 8)
	binary.BigEndian.PutUint64(creationTime, uint64(e.CreationTime))
	removed := byte(0)
	if e.Removed {
		removed = 1
	}
	h := hashParts(
		payloadHash[:], []byte{byte(e.Kind), removed}, seq, ttl, creationTime,
		e.ReceiverPubKey,
	)
	return h[:]
}

// PersistableNetworkPayload is an immutable, content-addressed item of the
// shared store.
type PersistableNetworkPayload struct {
	Type                 string
	Data                 []byte
	RequiredCapabilities []Capability
	CreationTime         int64
}

func (p PersistableNetworkPayload) Hash() Hash {
	return hashParts([]byte(p.Type), p.Data)
}

func (p PersistableNetworkPayload) Key() StorageKey {
	h := p.Hash()
	return StorageKeyFromBytes(h[:])
}

func (p PersistableNetworkPayload) Requirements() Capabilities {
	return NewCapabilities(p.RequiredCapabilities...)
}

// capsBytes encodes the capabilities in their canonical, sorted form.
func capsBytes(caps []Capability) []byte {
	list := NewCapabilities(caps...).ToIntList()
	buf := make([]byte, 4*len(list))
	for i, c := range list {
		binary.BigEndian.PutUint32(buf[4*i:], c)
	}
	return buf
}

func hashParts(parts ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		l := make([]byte, 4)
		binary.BigEndian.PutUint32(l, uint32(len(p)))
		h.Write(l)
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
