package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/studyarc/platform/internal/access"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_ScopeEnforced(t *testing.T) {
	h := testHub()
	client := &Client{
		scope: access.ScopeFilter{AccountID: "acc_1"},
		sub:   Subscription{AllEvents: true},
	}

	own := &Event{Type: EventTransaction, AccountID: "acc_1"}
	foreign := &Event{Type: EventTransaction, AccountID: "acc_2"}
	global := &Event{Type: EventAccountAdmin}

	if !h.shouldSend(client, own) {
		t.Error("Should receive events in own account scope")
	}
	if h.shouldSend(client, foreign) {
		t.Error("Should NOT receive another account's events")
	}
	if h.shouldSend(client, global) {
		t.Error("Should NOT receive unscoped platform events")
	}
}

func TestShouldSend_AgencyScope(t *testing.T) {
	h := testHub()
	client := &Client{
		scope: access.ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"},
		sub:   Subscription{AllEvents: true},
	}

	own := &Event{Type: EventOfferLetter, AccountID: "acc_1", AgencyID: "agc_1"}
	sibling := &Event{Type: EventOfferLetter, AccountID: "acc_1", AgencyID: "agc_2"}
	accountWide := &Event{Type: EventAccountAdmin, AccountID: "acc_1"}

	if !h.shouldSend(client, own) {
		t.Error("Should receive own agency's events")
	}
	if h.shouldSend(client, sibling) {
		t.Error("Should NOT receive sibling agency's events")
	}
	if h.shouldSend(client, accountWide) {
		t.Error("Agency client should NOT receive account-wide events")
	}
}

func TestShouldSend_PlatformSeesEverything(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}} // unrestricted scope

	events := []*Event{
		{Type: EventTransaction, AccountID: "acc_1"},
		{Type: EventOfferLetter, AccountID: "acc_2", AgencyID: "agc_9"},
		{Type: EventScheduleRun},
	}
	for _, e := range events {
		if !h.shouldSend(client, e) {
			t.Errorf("Platform client should receive %s events", e.Type)
		}
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{
		scope: access.ScopeFilter{AccountID: "acc_1"},
		sub:   Subscription{EventTypes: []EventType{EventTransaction}},
	}

	tx := &Event{Type: EventTransaction, AccountID: "acc_1"}
	letter := &Event{Type: EventOfferLetter, AccountID: "acc_1"}

	if !h.shouldSend(client, tx) {
		t.Error("Should receive transaction events")
	}
	if h.shouldSend(client, letter) {
		t.Error("Should NOT receive offer letter events")
	}
}

func TestShouldSend_AgencyNarrowing(t *testing.T) {
	h := testHub()

	client := &Client{
		scope: access.ScopeFilter{AccountID: "acc_1"},
		sub:   Subscription{AllEvents: true, AgencyID: "agc_1"},
	}

	own := &Event{Type: EventTransaction, AccountID: "acc_1", AgencyID: "agc_1"}
	other := &Event{Type: EventTransaction, AccountID: "acc_1", AgencyID: "agc_2"}

	if !h.shouldSend(client, own) {
		t.Error("Should receive events for subscribed agency")
	}
	if h.shouldSend(client, other) {
		t.Error("Should NOT receive events for other agencies after narrowing")
	}
}

func TestShouldSend_SubscriptionCannotWidenScope(t *testing.T) {
	h := testHub()

	// Agency-scoped client subscribing to another agency still gets nothing
	// outside its connect-time scope.
	client := &Client{
		scope: access.ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"},
		sub:   Subscription{AllEvents: true, AgencyID: "agc_2"},
	}

	other := &Event{Type: EventTransaction, AccountID: "acc_1", AgencyID: "agc_2"}
	if h.shouldSend(client, other) {
		t.Error("Subscription must not widen the connect-time scope")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle
// ---------------------------------------------------------------------------

func TestHubBroadcastDelivery(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{
		hub:   h,
		send:  make(chan []byte, 8),
		scope: access.ScopeFilter{AccountID: "acc_1"},
		sub:   Subscription{AllEvents: true},
	}
	h.register <- client

	h.Publish(EventTransaction, "acc_1", "", map[string]any{"id": "txn_1"})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("expected serialized event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	client := &Client{
		hub:  h,
		send: make(chan []byte, 1),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// The send channel is closed during shutdown; drain until it reports so.
	for {
		select {
		case _, ok := <-client.send:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("client send channel was not closed after shutdown")
		}
	}
}
