package datasync

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/pkg/stats"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
	"go.uber.org/ratelimit"
)

// RequestHandler builds the responses to the data requests of other peers.
type RequestHandler struct {
	store        domain.PayloadStore
	// maxItemsSize is the max response size net of the response header.
	maxItemsSize int
	limiter      ratelimit.Limiter
}

// NewRequestHandler returns a handler serving at most requestsPerSecond
// requests. Responses are truncated so that their encoding doesn't exceed
// maxResponseSize bytes.
func NewRequestHandler(
	store domain.PayloadStore, maxResponseSize, requestsPerSecond int,
) (*RequestHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("missing payload store")
	}
	overhead, err := wire.GetDataResponseOverhead(
		domain.NodeCapabilities, wire.ProtocolVersion,
	)
	if err != nil {
		return nil, err
	}
	if maxResponseSize <= overhead || maxResponseSize > wire.MaxPayloadSize {
		return nil, ErrInvalidMaxResponseSize
	}
	limiter := ratelimit.NewUnlimited()
	if requestsPerSecond > 0 {
		limiter = ratelimit.New(requestsPerSecond)
	}
	return &RequestHandler{store, maxResponseSize - overhead, limiter}, nil
}

// HandleGetDataRequest returns the content of the store the requester can
// deal with. Items requiring capabilities the requester didn't declare,
// expired entries and items whose key is excluded by the request are left
// out. If the remaining items exceed the max response size, protected
// entries are preferred to persistable payloads, newer items to older ones,
// and the response is flagged as truncated.
func (h *RequestHandler) HandleGetDataRequest(
	ctx context.Context, req wire.GetDataRequest,
) (*wire.GetDataResponse, error) {
	h.limiter.Take()

	entries, err := h.store.GetProtectedEntries(ctx)
	if err != nil {
		return nil, err
	}
	payloads, err := h.store.GetPersistablePayloads(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	excluded := make(map[domain.StorageKey]struct{}, len(req.ExcludedKeys))
	for _, k := range req.ExcludedKeys {
		excluded[k] = struct{}{}
	}

	filteredEntries := make([]domain.ProtectedStorageEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := excluded[e.Key()]; ok {
			continue
		}
		if e.IsExpired(now) || !req.Capabilities.ContainsAll(e.Requirements()) {
			continue
		}
		filteredEntries = append(filteredEntries, e)
	}
	filteredPayloads := make([]domain.PersistableNetworkPayload, 0, len(payloads))
	for _, p := range payloads {
		if _, ok := excluded[p.Key()]; ok {
			continue
		}
		if !req.Capabilities.ContainsAll(p.Requirements()) {
			continue
		}
		filteredPayloads = append(filteredPayloads, p)
	}

	sort.SliceStable(filteredEntries, func(i, j int) bool {
		return filteredEntries[i].CreationTime > filteredEntries[j].CreationTime
	})
	sort.SliceStable(filteredPayloads, func(i, j int) bool {
		return filteredPayloads[i].CreationTime > filteredPayloads[j].CreationTime
	})

	resEntries, resPayloads, truncated, err := h.truncate(
		filteredEntries, filteredPayloads,
	)
	if err != nil {
		return nil, err
	}

	res := &wire.GetDataResponse{
		ProtectedEntries:         resEntries,
		PersistablePayloads:      resPayloads,
		Nonce:                    req.Nonce,
		IsGetUpdatedDataResponse: req.IsGetUpdatedDataRequest,
		WasTruncated:             truncated,
		Capabilities:             domain.NodeCapabilities,
		Version:                  wire.ProtocolVersion,
	}

	stats.DataResponsesServed.WithLabelValues(fmt.Sprint(truncated)).Inc()
	log.Debugf(
		"serving %d entries and %d payloads for request %s:%d (truncated: %t)",
		len(resEntries), len(resPayloads), req.Kind(), req.Nonce, truncated,
	)
	return res, nil
}

func (h *RequestHandler) truncate(
	entries []domain.ProtectedStorageEntry,
	payloads []domain.PersistableNetworkPayload,
) ([]domain.ProtectedStorageEntry, []domain.PersistableNetworkPayload, bool, error) {
	budget := h.maxItemsSize

	for i, e := range entries {
		size, err := wire.ProtectedEntrySize(e)
		if err != nil {
			return nil, nil, false, err
		}
		if size > budget {
			return entries[:i], []domain.PersistableNetworkPayload{}, true, nil
		}
		budget -= size
	}
	for i, p := range payloads {
		size, err := wire.PersistablePayloadSize(p)
		if err != nil {
			return nil, nil, false, err
		}
		if size > budget {
			return entries, payloads[:i], true, nil
		}
		budget -= size
	}
	return entries, payloads, false, nil
}
