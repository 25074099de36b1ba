package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func newTestClient(userID, deviceID, routerID string) *Client {
	return &Client{
		UserID:   userID,
		DeviceID: deviceID,
		RouterID: routerID,
		Send:     make(chan []byte, 8),
	}
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env
	default:
		t.Fatalf("expected a frame, channel empty")
		return Envelope{}
	}
}

func TestRegisterAndClientCount(t *testing.T) {
	h := NewHub()
	a := newTestClient("user-1", "dev-1", "")
	b := newTestClient("user-1", "dev-2", "")

	h.Register(a)
	h.Register(b)
	if got := h.ClientCount(); got != 2 {
		t.Fatalf("client count = %d, want 2", got)
	}

	h.Unregister(a)
	if got := h.ClientCount(); got != 1 {
		t.Fatalf("client count after unregister = %d, want 1", got)
	}

	// Unregister is idempotent and must not close Send twice.
	h.Unregister(a)
}

func TestSendToUserReachesAllUserConnections(t *testing.T) {
	h := NewHub()
	a := newTestClient("user-1", "dev-1", "")
	b := newTestClient("user-1", "dev-2", "")
	other := newTestClient("user-2", "dev-3", "")
	h.Register(a)
	h.Register(b)
	h.Register(other)

	h.SendToUser("user-1", "stage-changed", map[string]string{"_id": "s1"})

	for _, c := range []*Client{a, b} {
		env := receiveEnvelope(t, c)
		if env.Event != "stage-changed" {
			t.Errorf("event = %s, want stage-changed", env.Event)
		}
	}
	select {
	case <-other.Send:
		t.Errorf("user-2 must not receive user-1 events")
	default:
	}
}

func TestSendToDeviceTargetsSingleDevice(t *testing.T) {
	h := NewHub()
	a := newTestClient("user-1", "dev-1", "")
	b := newTestClient("user-1", "dev-2", "")
	h.Register(a)
	h.Register(b)

	h.SendToDevice("dev-2", "ready", nil)

	env := receiveEnvelope(t, b)
	if env.Event != "ready" {
		t.Errorf("event = %s, want ready", env.Event)
	}
	select {
	case <-a.Send:
		t.Errorf("dev-1 must not receive dev-2 events")
	default:
	}
}

func TestSendToRouter(t *testing.T) {
	h := NewHub()
	r := newTestClient("", "", "router-1")
	h.Register(r)

	h.SendToRouter("router-1", "stage-serve", map[string]string{"_id": "s1"})

	env := receiveEnvelope(t, r)
	if env.Event != "stage-serve" {
		t.Errorf("event = %s, want stage-serve", env.Event)
	}
}

func TestSendToAll(t *testing.T) {
	h := NewHub()
	clients := []*Client{
		newTestClient("user-1", "dev-1", ""),
		newTestClient("user-2", "dev-2", ""),
		newTestClient("", "", "router-1"),
	}
	for _, c := range clients {
		h.Register(c)
	}

	h.SendToAll("shutdown", nil)

	for _, c := range clients {
		env := receiveEnvelope(t, c)
		if env.Event != "shutdown" {
			t.Errorf("event = %s, want shutdown", env.Event)
		}
	}
}

func TestDeliverLocalScopes(t *testing.T) {
	h := NewHub()
	u := newTestClient("user-1", "dev-1", "")
	r := newTestClient("", "", "router-1")
	h.Register(u)
	h.Register(r)

	frame := []byte(`{"event":"relayed"}`)

	h.DeliverLocal(scopeUser, "user-1", frame)
	if env := receiveEnvelope(t, u); env.Event != "relayed" {
		t.Errorf("user scope delivery failed: %+v", env)
	}

	h.DeliverLocal(scopeRouter, "router-1", frame)
	if env := receiveEnvelope(t, r); env.Event != "relayed" {
		t.Errorf("router scope delivery failed: %+v", env)
	}

	h.DeliverLocal(scopeAll, "", frame)
	receiveEnvelope(t, u)
	receiveEnvelope(t, r)
}

func TestSlowConsumerIsDropped(t *testing.T) {
	h := NewHub()
	slow := &Client{UserID: "user-1", DeviceID: "dev-1", Send: make(chan []byte)}
	h.Register(slow)

	// Nobody reads from Send, so the delivery falls through to the
	// default branch and the connection is dropped.
	h.SendToUser("user-1", "stage-changed", nil)

	if got := h.ClientCount(); got != 0 {
		t.Fatalf("slow consumer still registered, count = %d", got)
	}
	if _, open := <-slow.Send; open {
		t.Errorf("send channel should be closed after drop")
	}
}

func TestConcurrentFanOutWithSlowConsumers(t *testing.T) {
	h := NewHub()
	for i := 0; i < 500; i++ {
		h.Register(&Client{
			UserID:   "user-1",
			DeviceID: fmt.Sprintf("dev-%d", i),
			Send:     make(chan []byte),
		})
	}

	// Concurrent fan-outs race each other into dropping the same stalled
	// connections; none of them may hit a closed Send channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.SendToUser("user-1", "stage-changed", nil)
		}()
	}
	wg.Wait()

	if got := h.ClientCount(); got != 0 {
		t.Fatalf("all stalled connections should be dropped, %d left", got)
	}
}

func TestPushAfterUnregister(t *testing.T) {
	h := NewHub()
	c := newTestClient("user-1", "dev-1", "")
	h.Register(c)
	h.Unregister(c)

	// Send is closed by now; the push must skip the dead connection.
	h.Push(c, []byte(`{"event":"late"}`))
}

func TestUnregisterCleansIndexes(t *testing.T) {
	h := NewHub()
	c := newTestClient("user-1", "dev-1", "")
	h.Register(c)
	h.Unregister(c)

	h.SendToUser("user-1", "stage-changed", nil)
	h.SendToDevice("dev-1", "stage-changed", nil)

	if len(h.byUser) != 0 || len(h.byDevice) != 0 {
		t.Errorf("indexes not cleaned: users=%d devices=%d", len(h.byUser), len(h.byDevice))
	}
}
