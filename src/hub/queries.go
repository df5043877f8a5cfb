package hub

import (
	"slices"

	"github.com/orchestra-mcp/metax/src/types"
)

// Resources returns the watched resource IDs in sorted order.
func (h *Hub) Resources() []types.ResourceID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]types.ResourceID, 0, len(h.resources))
	for id := range h.resources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ResourceCount returns the number of watched resources.
func (h *Hub) ResourceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resources)
}

// ListenerCount returns the listeners registered for rawID, or 0.
func (h *Hub) ListenerCount(rawID string) int {
	id, err := types.ParseResourceID(rawID)
	if err != nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resources[id])
}

// SystemListenerCount returns the number of system event listeners.
func (h *Hub) SystemListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.system.listeners)
}

// GenericListenerCount returns the number of generic listeners.
func (h *Hub) GenericListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.generic.listeners)
}
