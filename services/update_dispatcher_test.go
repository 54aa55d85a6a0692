package services

import (
	"testing"

	"oddsfeed-service/models"
)

func TestDispatcherRoutesByIdentifier(t *testing.T) {
	backend := newFakeBackend()
	coordinator := newTestCoordinator(t, backend)
	if err := coordinator.Start(); err != nil {
		t.Fatal(err)
	}

	dispatcher := NewUpdateDispatcher("session-1")
	dispatcher.Register(coordinator)

	dispatcher.DispatchContentUpdate(models.ContentUpdate{
		Identifier: groupIdentifier(),
		Kind:       models.UpdateKindEventSnapshot,
		Event:      sampleEvent(),
	})

	if coordinator.Storage().StoredEvent() == nil {
		t.Error("Expected snapshot routed to the registered coordinator")
	}

	home := 1
	dispatcher.DispatchLiveData(models.LiveDataEnvelope{
		Identifier: groupIdentifier(),
		HomeScore:  &home,
	})

	if got := coordinator.Storage().StoredEvent().HomeScore; got != 1 {
		t.Errorf("Expected live data routed, got home score %d", got)
	}
}

func TestDispatcherDropsUnknownIdentifier(t *testing.T) {
	dispatcher := NewUpdateDispatcher("session-1")

	// 没有匹配协调器时静默丢弃，不应崩溃
	dispatcher.DispatchContentUpdate(models.ContentUpdate{
		Identifier: groupIdentifier(),
		Kind:       models.UpdateKindEventSnapshot,
		Event:      sampleEvent(),
	})
	dispatcher.DispatchLiveData(models.LiveDataEnvelope{Identifier: groupIdentifier()})
}

func TestDispatcherRegisterAndUnregister(t *testing.T) {
	backend := newFakeBackend()
	coordinator := newTestCoordinator(t, backend)

	dispatcher := NewUpdateDispatcher("session-1")
	dispatcher.Register(coordinator)

	if dispatcher.Coordinator(groupIdentifier()) == nil {
		t.Fatal("Expected coordinator registered")
	}

	dispatcher.Unregister(groupIdentifier())

	if dispatcher.Coordinator(groupIdentifier()) != nil {
		t.Error("Expected coordinator unregistered")
	}
}

func TestReconnectAllRotatesSessionToken(t *testing.T) {
	backend := newFakeBackend()
	coordinator := newTestCoordinator(t, backend)
	if err := coordinator.Start(); err != nil {
		t.Fatal(err)
	}

	dispatcher := NewUpdateDispatcher("session-1")
	dispatcher.Register(coordinator)

	dispatcher.ReconnectAll("session-2")

	if got := dispatcher.CurrentSessionToken(); got != "session-2" {
		t.Errorf("Expected current session token session-2, got %q", got)
	}

	backend.mu.Lock()
	token := backend.lastSessionTok
	backend.mu.Unlock()
	if token != "session-2" {
		t.Errorf("Expected coordinator resubscribed under session-2, got %q", token)
	}
}
