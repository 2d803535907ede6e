package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Capability identifies an optional protocol feature a peer can support.
type Capability uint32

const (
	CapabilitySeedNode Capability = iota
	CapabilityMailbox
	CapabilityTradeStatistics
	CapabilityAccountAgeWitness
	CapabilitySignedAccountAgeWitness
	CapabilityMediation
	CapabilityBundleOfEnvelopes
)

var capabilityLabels = map[Capability]string{
	CapabilitySeedNode:                "SEED_NODE",
	CapabilityMailbox:                 "MAILBOX",
	CapabilityTradeStatistics:         "TRADE_STATISTICS",
	CapabilityAccountAgeWitness:       "ACCOUNT_AGE_WITNESS",
	CapabilitySignedAccountAgeWitness: "SIGNED_ACCOUNT_AGE_WITNESS",
	CapabilityMediation:               "MEDIATION",
	CapabilityBundleOfEnvelopes:       "BUNDLE_OF_ENVELOPES",
}

func (c Capability) String() string {
	if label, ok := capabilityLabels[c]; ok {
		return label
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(c))
}

// Capabilities is an immutable set of capabilities. Values not known to this
// node are kept as they are so that they can be relayed to other peers.
type Capabilities struct {
	set map[Capability]struct{}
}

// NodeCapabilities are the capabilities declared by this node.
var NodeCapabilities = NewCapabilities(
	CapabilityMailbox,
	CapabilityTradeStatistics,
	CapabilityAccountAgeWitness,
	CapabilitySignedAccountAgeWitness,
	CapabilityMediation,
	CapabilityBundleOfEnvelopes,
)

// NewCapabilities returns the set made of the given capabilities.
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return Capabilities{set}
}

// CapabilitiesFromIntList is the inverse of ToIntList.
func CapabilitiesFromIntList(list []uint32) Capabilities {
	caps := make([]Capability, 0, len(list))
	for _, v := range list {
		caps = append(caps, Capability(v))
	}
	return NewCapabilities(caps...)
}

// ToIntList returns the sorted list of capabilities as plain integers.
func (c Capabilities) ToIntList() []uint32 {
	list := make([]uint32, 0, len(c.set))
	for v := range c.set {
		list = append(list, uint32(v))
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Contains returns whether the capability is in the set.
func (c Capabilities) Contains(capability Capability) bool {
	_, ok := c.set[capability]
	return ok
}

// ContainsAll returns whether every capability of other is in the set.
// An empty other is always contained.
func (c Capabilities) ContainsAll(other Capabilities) bool {
	for v := range other.set {
		if !c.Contains(v) {
			return false
		}
	}
	return true
}

// With returns a new set with the given capabilities added.
func (c Capabilities) With(caps ...Capability) Capabilities {
	all := make([]Capability, 0, len(c.set)+len(caps))
	for v := range c.set {
		all = append(all, v)
	}
	return NewCapabilities(append(all, caps...)...)
}

func (c Capabilities) Len() int {
	return len(c.set)
}

func (c Capabilities) IsEmpty() bool {
	return len(c.set) == 0
}

// Equal returns whether both sets hold the same capabilities.
func (c Capabilities) Equal(other Capabilities) bool {
	return c.Len() == other.Len() && c.ContainsAll(other)
}

func (c Capabilities) String() string {
	labels := make([]string, 0, len(c.set))
	for _, v := range c.ToIntList() {
		labels = append(labels, Capability(v).String())
	}
	return "[" + strings.Join(labels, ", ") + "]"
}
