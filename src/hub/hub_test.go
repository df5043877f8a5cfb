package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orchestra-mcp/metax/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "3fae2b3a-1111-2222-3333-444455556666"

// fakeCoordinator records remote register/unregister calls.
type fakeCoordinator struct {
	mu            sync.Mutex
	registered    []types.ResourceID
	unregistered  []types.ResourceID
	registerErr   error
	unregisterErr error
	gate          chan struct{} // when set, register blocks until closed
}

func (f *fakeCoordinator) RegisterListener(_ context.Context, id types.ResourceID) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, id)
	return nil
}

func (f *fakeCoordinator) UnregisterListener(_ context.Context, id types.ResourceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unregisterErr != nil {
		return f.unregisterErr
	}
	f.unregistered = append(f.unregistered, id)
	return nil
}

func (f *fakeCoordinator) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered), len(f.unregistered)
}

// recorder collects resource updates delivered to it.
type recorder struct {
	mu     sync.Mutex
	name   string
	log    *[]string
	events []json.RawMessage
	ids    []types.ResourceID
	err    error
	panics bool
}

func (r *recorder) HandleResourceUpdate(id types.ResourceID, event json.RawMessage) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.events = append(r.events, event)
	if r.log != nil {
		*r.log = append(*r.log, r.name)
	}
	r.mu.Unlock()
	if r.panics {
		panic("listener " + r.name)
	}
	return r.err
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestHub(t *testing.T) (*Hub, *fakeCoordinator) {
	t.Helper()
	remote := &fakeCoordinator{}
	return New(remote, zerolog.Nop()), remote
}

func TestRegisterThenUnregisterLeavesNoEntry(t *testing.T) {
	h, remote := newTestHub(t)
	ctx := context.Background()
	cb := &recorder{}

	require.NoError(t, h.RegisterListener(ctx, testID, cb, false))
	assert.Equal(t, 1, h.ListenerCount(testID))

	require.NoError(t, h.UnregisterListener(ctx, testID, cb))
	assert.Equal(t, 0, h.ResourceCount())

	reg, unreg := remote.counts()
	assert.Equal(t, 1, reg)
	assert.Equal(t, 1, unreg)
}

func TestRegisterDuplicateIssuesNoSecondRemoteCall(t *testing.T) {
	h, remote := newTestHub(t)
	ctx := context.Background()
	cb := &recorder{}

	require.NoError(t, h.RegisterListener(ctx, testID, cb, false))
	err := h.RegisterListener(ctx, testID, cb, false)
	assert.ErrorIs(t, err, types.ErrDuplicateSubscription)

	// Case differences name the same resource.
	err = h.RegisterListener(ctx, "3FAE2B3A-1111-2222-3333-444455556666", cb, true)
	assert.ErrorIs(t, err, types.ErrDuplicateSubscription)

	reg, _ := remote.counts()
	assert.Equal(t, 1, reg)
	assert.Equal(t, 1, h.ListenerCount(testID))
}

func TestSecondListenerDoesNotRegisterRemotely(t *testing.T) {
	h, remote := newTestHub(t)
	ctx := context.Background()
	a, b := &recorder{}, &recorder{}

	require.NoError(t, h.RegisterListener(ctx, testID, a, false))
	require.NoError(t, h.RegisterListener(ctx, testID, b, false))
	reg, _ := remote.counts()
	assert.Equal(t, 1, reg)

	// Removing one of two listeners is local only.
	require.NoError(t, h.UnregisterListener(ctx, testID, a))
	_, unreg := remote.counts()
	assert.Equal(t, 0, unreg)
	assert.Equal(t, 1, h.ListenerCount(testID))
}

func TestRegisterInvalidIdentifier(t *testing.T) {
	h, remote := newTestHub(t)
	err := h.RegisterListener(context.Background(), "nope", &recorder{}, false)
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)

	err = h.UnregisterListener(context.Background(), "nope", &recorder{})
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)

	reg, unreg := remote.counts()
	assert.Zero(t, reg)
	assert.Zero(t, unreg)
}

func TestRegisterInvalidListener(t *testing.T) {
	h, _ := newTestHub(t)
	var nilRecorder *recorder
	assert.ErrorIs(t, h.RegisterListener(context.Background(), testID, nil, false), types.ErrInvalidListener)
	assert.ErrorIs(t, h.RegisterListener(context.Background(), testID, nilRecorder, false), types.ErrInvalidListener)
}

func TestRemoteRegisterFailureLeavesNoEntry(t *testing.T) {
	h, remote := newTestHub(t)
	remote.registerErr = errors.New("503")

	err := h.RegisterListener(context.Background(), testID, &recorder{}, false)
	assert.ErrorIs(t, err, types.ErrRemoteRegistrationFailed)
	assert.Equal(t, 0, h.ResourceCount())

	// A retry after the service recovers succeeds.
	remote.mu.Lock()
	remote.registerErr = nil
	remote.mu.Unlock()
	require.NoError(t, h.RegisterListener(context.Background(), testID, &recorder{}, false))
	assert.Equal(t, 1, h.ResourceCount())
}

func TestRemoteUnregisterFailureKeepsSubscription(t *testing.T) {
	h, remote := newTestHub(t)
	ctx := context.Background()
	cb := &recorder{}
	require.NoError(t, h.RegisterListener(ctx, testID, cb, false))

	remote.unregisterErr = errors.New("boom")
	err := h.UnregisterListener(ctx, testID, cb)
	assert.ErrorIs(t, err, types.ErrRemoteRegistrationFailed)
	assert.Equal(t, 1, h.ListenerCount(testID))

	require.NoError(t, h.Dispatch([]byte(`{"event":1,"uuid":"`+testID+`"}`)))
	assert.Equal(t, 1, cb.calls())
}

func TestUnregisterErrors(t *testing.T) {
	h, remote := newTestHub(t)
	ctx := context.Background()

	err := h.UnregisterListener(ctx, testID, &recorder{})
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, h.RegisterListener(ctx, testID, &recorder{}, false))
	err = h.UnregisterListener(ctx, testID, &recorder{})
	assert.ErrorIs(t, err, types.ErrUnknownCallback)

	_, unreg := remote.counts()
	assert.Zero(t, unreg)
}

func TestConcurrentRegisterIssuesOneRemoteCall(t *testing.T) {
	h, remote := newTestHub(t)
	remote.gate = make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.RegisterListener(context.Background(), testID, &recorder{}, false)
		}()
	}
	close(remote.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	reg, _ := remote.counts()
	assert.Equal(t, 1, reg)
	assert.Equal(t, n, h.ListenerCount(testID))
}

func TestRegisterWaitRespectsContext(t *testing.T) {
	h, remote := newTestHub(t)
	remote.gate = make(chan struct{})
	defer close(remote.gate)

	go func() {
		_ = h.RegisterListener(context.Background(), testID, &recorder{}, false)
	}()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		_, busy := h.inflight[types.ResourceID(testID)]
		return busy
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.RegisterListener(ctx, testID, &recorder{}, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResourcesSorted(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	ids := []string{
		"ffffffff-0000-0000-0000-000000000000",
		"00000000-0000-0000-0000-000000000001",
		"AAAAAAAA-0000-0000-0000-000000000000",
	}
	for _, id := range ids {
		require.NoError(t, h.RegisterListener(ctx, id, &recorder{}, false))
	}
	assert.Equal(t, []types.ResourceID{
		"00000000-0000-0000-0000-000000000001",
		"aaaaaaaa-0000-0000-0000-000000000000",
		"ffffffff-0000-0000-0000-000000000000",
	}, h.Resources())
}
