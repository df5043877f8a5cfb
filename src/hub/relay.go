package hub

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultRelayWindow is how long a frame is remembered for matching the
	// upstream copy against relayed copies.
	DefaultRelayWindow = 10 * time.Second
	relayWindowSize    = 4096
)

type frameOrigin uint8

const (
	originUpstream frameOrigin = iota + 1
	originRelay
)

// relayWindow remembers recently delivered frames by content hash so that a
// push arriving both upstream and through the bridge is delivered once.
// Repeats on the upstream channel are always delivered.
type relayWindow struct {
	mu   sync.Mutex
	seen *expirable.LRU[uint64, frameOrigin]
}

func newRelayWindow(ttl time.Duration) *relayWindow {
	if ttl <= 0 {
		ttl = DefaultRelayWindow
	}
	return &relayWindow{seen: expirable.NewLRU[uint64, frameOrigin](relayWindowSize, nil, ttl)}
}

// admitUpstream reports whether an upstream frame should be delivered.
// It is skipped only when a relayed copy was already delivered.
func (w *relayWindow) admitUpstream(frame []byte) bool {
	key := xxhash.Sum64(frame)
	w.mu.Lock()
	defer w.mu.Unlock()
	origin, ok := w.seen.Get(key)
	w.seen.Add(key, originUpstream)
	return !ok || origin != originRelay
}

// admitRelayed reports whether a relayed frame should be delivered.
// Any copy seen within the window suppresses it.
func (w *relayWindow) admitRelayed(frame []byte) bool {
	key := xxhash.Sum64(frame)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen.Get(key); ok {
		return false
	}
	w.seen.Add(key, originRelay)
	return true
}
