package datasync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/stats"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
	"golang.org/x/sync/errgroup"
)

// RequestState is the state of an outgoing data request.
type RequestState int

const (
	RequestStateRequested RequestState = iota
	RequestStateResponded
	RequestStateTimedOut
	RequestStateFailed
)

func (s RequestState) String() string {
	switch s {
	case RequestStateRequested:
		return "REQUESTED"
	case RequestStateResponded:
		return "RESPONDED"
	case RequestStateTimedOut:
		return "TIMED_OUT"
	case RequestStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type pendingRequest struct {
	peer  string
	kind  wire.Kind
	nonce uint32

	lock  sync.Mutex
	state RequestState
	done  chan struct{}
}

// complete moves the request out of the REQUESTED state. It returns false if
// the request was already completed.
func (r *pendingRequest) complete(state RequestState) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.state != RequestStateRequested {
		return false
	}
	r.state = state
	close(r.done)
	return true
}

func (r *pendingRequest) getState() RequestState {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

// RequestManager sends data requests to other peers, correlates the
// responses to the pending requests and merges their content into the
// payload store.
type RequestManager struct {
	store     domain.PayloadStore
	messenger ports.Messenger
	pending   *cache.Cache

	peerCapsLock sync.RWMutex
	peerCaps     map[string]domain.Capabilities
}

// NewRequestManager returns a manager whose requests time out if not
// responded within requestTimeout.
func NewRequestManager(
	store domain.PayloadStore, messenger ports.Messenger,
	requestTimeout time.Duration,
) (*RequestManager, error) {
	if store == nil {
		return nil, fmt.Errorf("missing payload store")
	}
	if messenger == nil {
		return nil, fmt.Errorf("missing messenger")
	}
	if requestTimeout <= 0 {
		return nil, ErrInvalidRequestTimeout
	}

	cleanupInterval := requestTimeout / 4
	if cleanupInterval < 10*time.Millisecond {
		cleanupInterval = 10 * time.Millisecond
	}
	pending := cache.New(requestTimeout, cleanupInterval)
	pending.OnEvicted(onRequestEvicted)

	return &RequestManager{
		store:     store,
		messenger: messenger,
		pending:   pending,
		peerCaps:  make(map[string]domain.Capabilities),
	}, nil
}

// onRequestEvicted is called both when a request expires and when it's
// deleted after being responded. Only the former marks it as timed out.
func onRequestEvicted(key string, item interface{}) {
	req, ok := item.(*pendingRequest)
	if !ok {
		return
	}
	if req.complete(RequestStateTimedOut) {
		stats.DataRequests.WithLabelValues(req.kind.String(), "timed_out").Inc()
		log.WithField("peer", req.peer).Warnf("data request %s timed out", key)
	}
}

// RequestInitialData sends a preliminary data request to every seed node
// concurrently. It fails only if none of them could be reached.
func (m *RequestManager) RequestInitialData(
	ctx context.Context, seedNodes []string,
) ([]uint32, error) {
	if len(seedNodes) == 0 {
		return nil, ErrNoSeedNodes
	}

	var reached int32
	nonces := make([]uint32, len(seedNodes))
	g, gctx := errgroup.WithContext(ctx)
	for i, peer := range seedNodes {
		i, peer := i, peer
		g.Go(func() error {
			nonce, err := m.RequestData(gctx, peer, false, nil)
			if err != nil {
				log.WithError(err).WithField("peer", peer).Warn(
					"failed to send initial data request",
				)
				return nil
			}
			nonces[i] = nonce
			atomic.AddInt32(&reached, 1)
			return nil
		})
	}
	_ = g.Wait()

	if reached == 0 {
		return nil, ErrSeedNodesUnreachable
	}
	sent := make([]uint32, 0, reached)
	for _, n := range nonces {
		if n != 0 {
			sent = append(sent, n)
		}
	}
	return sent, nil
}

// RequestData sends a data request to the given peer and registers it as
// pending. The returned nonce identifies the request.
func (m *RequestManager) RequestData(
	ctx context.Context, peer string, isUpdate bool,
	excludedKeys []domain.StorageKey,
) (uint32, error) {
	req := wire.GetDataRequest{
		Nonce:                   newNonce(),
		IsGetUpdatedDataRequest: isUpdate,
		Capabilities:            domain.NodeCapabilities,
		ExcludedKeys:            excludedKeys,
		Version:                 wire.ProtocolVersion,
	}
	payload, err := wire.EncodeGetDataRequest(req)
	if err != nil {
		return 0, err
	}

	key := requestKey(req.Kind(), req.Nonce)
	pending := &pendingRequest{
		peer:  peer,
		kind:  req.Kind(),
		nonce: req.Nonce,
		state: RequestStateRequested,
		done:  make(chan struct{}),
	}
	if err := m.pending.Add(key, pending, cache.DefaultExpiration); err != nil {
		return 0, err
	}

	env := wire.NewEnvelope(req.Kind(), m.messenger.Address(), payload)
	if err := m.messenger.Send(ctx, peer, env); err != nil {
		// Completed first so that the eviction doesn't count as a timeout.
		pending.complete(RequestStateFailed)
		m.pending.Delete(key)
		stats.DataRequests.WithLabelValues(req.Kind().String(), "failed").Inc()
		return 0, fmt.Errorf("failed to send data request to %s: %w", peer, err)
	}

	stats.DataRequests.WithLabelValues(req.Kind().String(), "sent").Inc()
	log.Debugf("sent data request %s to %s", key, peer)
	return req.Nonce, nil
}

// HandleGetDataResponse merges the response into the payload store if it
// answers a pending request sent to the same peer, otherwise it's
// discarded. A non-empty truncated response makes the manager ask the same
// peer for the remaining items, excluding all the known ones.
func (m *RequestManager) HandleGetDataResponse(
	ctx context.Context, sender string, res wire.GetDataResponse,
) error {
	key := requestKey(res.AssociatedRequestKind(), res.Nonce)
	item, ok := m.pending.Get(key)
	if !ok {
		m.discard(sender, key)
		return nil
	}
	req := item.(*pendingRequest)
	if req.peer != sender {
		m.discard(sender, key)
		return nil
	}
	if !req.complete(RequestStateResponded) {
		m.discard(sender, key)
		return nil
	}
	m.pending.Delete(key)
	stats.DataRequests.WithLabelValues(req.kind.String(), "responded").Inc()

	m.peerCapsLock.Lock()
	m.peerCaps[req.peer] = res.Capabilities
	m.peerCapsLock.Unlock()

	if err := m.merge(ctx, res); err != nil {
		return err
	}

	if res.WasTruncated {
		// An empty truncated response means the peer can't fit any of the
		// remaining items, asking again would loop.
		if len(res.ProtectedEntries) == 0 && len(res.PersistablePayloads) == 0 {
			log.WithField("peer", req.peer).Warn(
				"received empty truncated response, skipping follow-up request",
			)
			return nil
		}
		keys, err := m.store.GetKeys(ctx)
		if err != nil {
			return err
		}
		if _, err := m.RequestData(ctx, req.peer, true, keys); err != nil {
			return err
		}
	}
	return nil
}

// RequestState returns the state of the request with the given kind and
// nonce, if still tracked.
func (m *RequestManager) RequestState(kind wire.Kind, nonce uint32) (RequestState, bool) {
	item, ok := m.pending.Get(requestKey(kind, nonce))
	if !ok {
		return 0, false
	}
	return item.(*pendingRequest).getState(), true
}

// WaitForRequest blocks until the request is either responded or timed out
// and returns its final state.
func (m *RequestManager) WaitForRequest(
	ctx context.Context, kind wire.Kind, nonce uint32,
) (RequestState, error) {
	item, ok := m.pending.Get(requestKey(kind, nonce))
	if !ok {
		return 0, ErrRequestNotPending
	}
	req := item.(*pendingRequest)

	select {
	case <-req.done:
		return req.getState(), nil
	case <-ctx.Done():
		return req.getState(), ctx.Err()
	}
}

// PeerCapabilities returns the capabilities the peer declared in its last
// response.
func (m *RequestManager) PeerCapabilities(peer string) (domain.Capabilities, bool) {
	m.peerCapsLock.RLock()
	defer m.peerCapsLock.RUnlock()
	caps, ok := m.peerCaps[peer]
	return caps, ok
}

func (m *RequestManager) NumOfPendingRequests() int {
	return m.pending.ItemCount()
}

func (m *RequestManager) merge(ctx context.Context, res wire.GetDataResponse) error {
	for _, entry := range res.ProtectedEntries {
		if !entry.VerifySignature() {
			stats.MergedItems.WithLabelValues("protected", "invalid").Inc()
			log.Warnf("dropping protected entry %s with invalid signature", entry.Key())
			continue
		}
		stored, err := m.store.AddProtectedEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("failed to merge protected entry: %w", err)
		}
		stats.MergedItems.WithLabelValues("protected", mergeResult(stored)).Inc()
	}
	for _, payload := range res.PersistablePayloads {
		stored, err := m.store.AddPersistablePayload(ctx, payload)
		if err != nil {
			return fmt.Errorf("failed to merge persistable payload: %w", err)
		}
		stats.MergedItems.WithLabelValues("persistable", mergeResult(stored)).Inc()
	}

	log.Debugf(
		"merged %d entries and %d payloads from response %d",
		len(res.ProtectedEntries), len(res.PersistablePayloads), res.Nonce,
	)
	return nil
}

func (m *RequestManager) discard(sender, key string) {
	stats.StaleDataResponses.Inc()
	log.WithField("peer", sender).Infof(
		"discarding response %s not matching any pending request", key,
	)
}

func mergeResult(stored bool) string {
	if stored {
		return "stored"
	}
	return "ignored"
}

func requestKey(kind wire.Kind, nonce uint32) string {
	return fmt.Sprintf("%s:%d", kind, nonce)
}

func newNonce() uint32 {
	for {
		if n := uuid.New().ID(); n != 0 {
			return n
		}
	}
}
