package services

import (
	"testing"
	"time"
)

// receiveValue 等待订阅通道上的下一个值，超时失败
func receiveValue[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
		panic("unreachable")
	}
}

// expectNoValue 短暂等待，确认订阅通道上没有新值
func expectNoValue[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value: %v", v)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeDeliversCurrentValue(t *testing.T) {
	pub := NewPublisher(42)

	sub := pub.Subscribe()
	defer sub.Cancel()

	got := receiveValue(t, sub.Updates())
	if got != 42 {
		t.Errorf("Expected current value 42, got %d", got)
	}
}

func TestPublishDeliversLatestValue(t *testing.T) {
	pub := NewPublisher(0)

	sub := pub.Subscribe()
	defer sub.Cancel()

	if got := receiveValue(t, sub.Updates()); got != 0 {
		t.Fatalf("Expected initial value 0, got %d", got)
	}

	// 慢订阅者丢中间值，不丢最新值
	pub.Publish(1)
	pub.Publish(2)
	pub.Publish(3)

	if got := receiveValue(t, sub.Updates()); got != 3 {
		t.Errorf("Expected latest value 3, got %d", got)
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	pub := NewPublisher("initial")

	first := pub.Subscribe()
	second := pub.Subscribe()
	defer first.Cancel()
	defer second.Cancel()

	receiveValue(t, first.Updates())
	receiveValue(t, second.Updates())

	pub.Publish("changed")

	if got := receiveValue(t, first.Updates()); got != "changed" {
		t.Errorf("Expected first subscriber to get 'changed', got %q", got)
	}
	if got := receiveValue(t, second.Updates()); got != "changed" {
		t.Errorf("Expected second subscriber to get 'changed', got %q", got)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	pub := NewPublisher(1)

	sub := pub.Subscribe()
	receiveValue(t, sub.Updates())
	sub.Cancel()

	if _, ok := <-sub.Updates(); ok {
		t.Error("Expected channel to be closed after cancel")
	}

	// 取消后再次取消无副作用
	sub.Cancel()

	if pub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", pub.SubscriberCount())
	}
}

func TestOnEmptyCalledOnLastCancel(t *testing.T) {
	pub := NewPublisher(1)

	called := 0
	pub.SetOnEmpty(func() { called++ })

	first := pub.Subscribe()
	second := pub.Subscribe()

	first.Cancel()
	if called != 0 {
		t.Errorf("Expected onEmpty not called with a subscriber remaining, got %d calls", called)
	}

	second.Cancel()
	if called != 1 {
		t.Errorf("Expected onEmpty called once, got %d calls", called)
	}
}

func TestValueTracksLatestPublish(t *testing.T) {
	pub := NewPublisher(10)
	pub.Publish(20)

	if got := pub.Value(); got != 20 {
		t.Errorf("Expected value 20, got %d", got)
	}
}
