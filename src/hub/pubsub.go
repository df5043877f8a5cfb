package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/orchestra-mcp/metax/src/types"
)

// RegisterListener subscribes l to updates of the resource rawID.
// The first listener for a resource registers it on the remote service;
// the local entry exists only once that call has succeeded.
func (h *Hub) RegisterListener(ctx context.Context, rawID string, l types.ResourceListener, suppressSelfEcho bool) error {
	id, err := types.ParseResourceID(rawID)
	if err != nil {
		return err
	}
	if !comparableListener(l) {
		return types.ErrInvalidListener
	}
	if err := h.acquire(ctx, id); err != nil {
		return err
	}
	defer h.release(id)

	h.mu.Lock()
	subs, exists := h.resources[id]
	if indexOf(subs, l) >= 0 {
		h.mu.Unlock()
		return fmt.Errorf("%w: resource %s", types.ErrDuplicateSubscription, id)
	}
	h.mu.Unlock()

	if !exists {
		if err := h.remote.RegisterListener(ctx, id); err != nil {
			h.logger.Error().Err(err).Str("uuid", id.String()).Msg("remote register failed")
			return fmt.Errorf("%w: register %s: %w", types.ErrRemoteRegistrationFailed, id, err)
		}
	}

	h.mu.Lock()
	h.resources[id] = append(h.resources[id], subscriber{listener: l, suppressSelfEcho: suppressSelfEcho})
	count := len(h.resources[id])
	h.metrics.SetWatchedResources(len(h.resources))
	h.mu.Unlock()

	h.logger.Debug().
		Str("uuid", id.String()).
		Int("listeners", count).
		Bool("suppress_self_echo", suppressSelfEcho).
		Msg("listener registered")
	return nil
}

// UnregisterListener removes l from the resource rawID. Removing the last
// listener unregisters the resource remotely first; on failure the local
// subscription is kept so the mismatch stays visible.
func (h *Hub) UnregisterListener(ctx context.Context, rawID string, l types.ResourceListener) error {
	id, err := types.ParseResourceID(rawID)
	if err != nil {
		return err
	}
	if !comparableListener(l) {
		return types.ErrInvalidListener
	}
	if err := h.acquire(ctx, id); err != nil {
		return err
	}
	defer h.release(id)

	h.mu.Lock()
	subs, ok := h.resources[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: resource %s", types.ErrNotFound, id)
	}
	i := indexOf(subs, l)
	if i < 0 {
		h.mu.Unlock()
		return fmt.Errorf("%w: resource %s", types.ErrUnknownCallback, id)
	}
	if len(subs) > 1 {
		h.resources[id] = slices.Delete(slices.Clone(subs), i, i+1)
		h.mu.Unlock()
		h.logger.Debug().Str("uuid", id.String()).Msg("listener removed")
		return nil
	}
	h.mu.Unlock()

	if err := h.remote.UnregisterListener(ctx, id); err != nil {
		h.logger.Error().Err(err).Str("uuid", id.String()).Msg("remote unregister failed")
		return fmt.Errorf("%w: unregister %s: %w", types.ErrRemoteRegistrationFailed, id, err)
	}

	h.mu.Lock()
	delete(h.resources, id)
	h.metrics.SetWatchedResources(len(h.resources))
	h.mu.Unlock()

	h.logger.Debug().Str("uuid", id.String()).Msg("resource unwatched")
	return nil
}

// dispatchResourceUpdate delivers event to the listeners of rawID in
// registration order. Relayed frames for unwatched resources are ignored;
// local ones are protocol violations.
func (h *Hub) dispatchResourceUpdate(rawID string, event json.RawMessage, relayed bool) error {
	id, err := types.ParseResourceID(rawID)
	if err != nil {
		h.metricsRef().ProtocolViolation()
		h.logger.Warn().Str("uuid", rawID).Msg("update with malformed uuid")
		return fmt.Errorf("%w: %w", types.ErrProtocolViolation, err)
	}

	h.mu.Lock()
	subs := slices.Clone(h.resources[id])
	h.mu.Unlock()

	if len(subs) == 0 {
		if relayed {
			h.logger.Debug().Str("uuid", id.String()).Msg("relayed update for unwatched resource")
			return nil
		}
		h.metricsRef().ProtocolViolation()
		h.logger.Warn().Str("uuid", id.String()).Msg("update for unwatched resource")
		return fmt.Errorf("%w: update for unwatched resource %s", types.ErrProtocolViolation, id)
	}

	for _, s := range subs {
		if s.suppressSelfEcho {
			continue
		}
		h.invoke("resource", func() error {
			return s.listener.HandleResourceUpdate(id, event)
		})
	}
	return nil
}

func indexOf(subs []subscriber, l types.ResourceListener) int {
	for i, s := range subs {
		if s.listener == l {
			return i
		}
	}
	return -1
}
