package listener

import (
	"sync"
	"testing"

	"github.com/pixil98/go-testutil"
)

func newTestClient() *wsClient {
	return &wsClient{
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		subs: map[string]func(){},
	}
}

func TestWsClient_EnqueueAfterTeardown(t *testing.T) {
	c := newTestClient()

	unsubscribed := false
	c.subs["room.ABC123"] = func() { unsubscribed = true }

	c.enqueue([]byte(`{"event":"room:update"}`))
	testutil.AssertEqual(t, "queued", len(c.send), 1)

	c.teardown()
	testutil.AssertEqual(t, "unsubscribed", unsubscribed, true)

	// A bus handler that was already in flight when its subscription
	// was dropped must be a no-op here, never a panic.
	c.enqueue([]byte(`{"event":"room:update"}`))
	testutil.AssertEqual(t, "late frame dropped", len(c.send), 1)
}

func TestWsClient_TeardownRacesDelivery(t *testing.T) {
	c := newTestClient()

	var wg sync.WaitGroup
	for i := 0; i < 2*sendBuffer; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.enqueue([]byte(`{"event":"game:task"}`))
		}()
	}

	c.teardown()
	wg.Wait()

	select {
	case <-c.done:
	default:
		t.Error("expected done to be closed after teardown")
	}
}
