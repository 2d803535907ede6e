package ports

import (
	"context"

	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

// Messenger sends envelopes to other peers. Peers are identified by their
// multiaddress.
type Messenger interface {
	// Address returns the address other peers can reach this node at.
	Address() string
	// Send delivers the envelope to the given peer.
	Send(ctx context.Context, peer string, env wire.Envelope) error
	Close()
}
