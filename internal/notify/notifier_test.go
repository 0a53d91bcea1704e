package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/eventlake/eventlake/pkg/types"
)

func TestNotifier_PublishNoSubscribers(t *testing.T) {
	n := NewNotifier(10)
	// Should not panic and should not block
	n.Publish(Notification{Kind: types.OpInsert, Key: "u1", Seq: 1})

	var nilNotifier *Notifier
	nilNotifier.Publish(Notification{Key: "u1"})
}

func TestNotifier_SubscribeReceivesNotification(t *testing.T) {
	n := NewNotifier(10)
	sub := n.Subscribe("relay")

	n.Publish(Notification{Kind: types.OpInsert, Key: "u1", Seq: 7, Timestamp: time.Now().UnixMilli()})

	select {
	case got := <-sub.Ch:
		if got.Key != "u1" || got.Seq != 7 || got.Kind != types.OpInsert {
			t.Errorf("unexpected notification %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive notification within timeout")
	}
}

func TestNotifier_Filters(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		key     string
		want    bool
	}{
		{"no filters", nil, "u1", true},
		{"matching prefix", []string{"tenant-a/"}, "tenant-a/u1", true},
		{"non-matching prefix", []string{"tenant-a/"}, "tenant-b/u1", false},
		{"any of several", []string{"x", "tenant-b/"}, "tenant-b/u1", true},
		{"empty filter", []string{""}, "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotifier(1)
			sub := n.Subscribe("s", tt.filters...)
			n.Publish(Notification{Key: tt.key})

			select {
			case <-sub.Ch:
				if !tt.want {
					t.Error("notification should have been filtered")
				}
			default:
				if tt.want {
					t.Error("notification should have been delivered")
				}
			}
		})
	}
}

func TestNotifier_FullChannelDrops(t *testing.T) {
	n := NewNotifier(2)
	sub := n.Subscribe("slow")

	for i := 0; i < 10; i++ {
		n.Publish(Notification{Seq: int64(i)})
	}
	if len(sub.Ch) != 2 {
		t.Errorf("buffered = %d, want 2", len(sub.Ch))
	}
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(4)
	sub := n.Subscribe("relay")
	n.Unsubscribe("relay")

	if _, ok := <-sub.Ch; ok {
		t.Error("channel should be closed")
	}
	if n.Len() != 0 {
		t.Errorf("subscribers = %d", n.Len())
	}
	// Publishing and unsubscribing again are harmless.
	n.Publish(Notification{Key: "u1"})
	n.Unsubscribe("relay")
}

func TestNotifier_ConcurrentPublishUnsubscribe(t *testing.T) {
	n := NewNotifier(1)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		sub := n.Subscribe("s")
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				n.Publish(Notification{Seq: int64(j)})
			}
		}()
		go func() {
			defer wg.Done()
			n.Unsubscribe(sub.ID)
		}()
		wg.Wait()
	}
}
