package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jeongyiya/steno-caption/internal/model"
	"go.uber.org/zap"
)

func receive(t *testing.T, sub *Subscription) model.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return model.Envelope{}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case env := <-sub.C:
		t.Fatalf("unexpected message %s %s", env.Event, env.Data)
	default:
	}
}

func decodeMessage(t *testing.T, env model.Envelope) model.BroadcastMessage {
	t.Helper()
	if env.Event != model.EventShowFullText {
		t.Fatalf("event = %q, want %q", env.Event, model.EventShowFullText)
	}
	var msg model.BroadcastMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestPublishFanOut(t *testing.T) {
	r := NewBroadcastRouter(8, zap.NewNop())
	all1, unsub1 := r.Subscribe("")
	defer unsub1()
	all2, unsub2 := r.Subscribe("")
	defer unsub2()
	filtered, unsub3 := r.Subscribe("AB12CD")
	defer unsub3()
	other, unsub4 := r.Subscribe("ZZZZZZ")
	defer unsub4()

	r.Publish("AB12CD", "Hello")

	want := model.BroadcastMessage{JobID: "AB12CD", Text: "Hello"}
	for _, sub := range []*Subscription{all1, all2, filtered} {
		if got := decodeMessage(t, receive(t, sub)); got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
	assertEmpty(t, other)
}

func TestPublishGlobal(t *testing.T) {
	r := NewBroadcastRouter(8, zap.NewNop())
	sub, unsub := r.Subscribe("")
	defer unsub()

	r.PublishGlobal("raw body")
	got := decodeMessage(t, receive(t, sub))
	if got.JobID != model.GlobalJobID || got.Text != "raw body" {
		t.Fatalf("got %+v", got)
	}
}

func TestPublishSlowSubscriberDoesNotBlock(t *testing.T) {
	r := NewBroadcastRouter(1, zap.NewNop())
	slow, unsubSlow := r.Subscribe("")
	defer unsubSlow()
	fast, unsubFast := r.Subscribe("")
	defer unsubFast()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.Publish("AB12CD", "snapshot")
			<-fast.C
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	receive(t, slow)
	assertEmpty(t, slow)
}

func TestUnsubscribeAndClose(t *testing.T) {
	r := NewBroadcastRouter(4, zap.NewNop())
	sub, unsub := r.Subscribe("AB12CD")
	if r.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", r.SubscriberCount())
	}
	unsub()
	unsub()
	if _, ok := <-sub.C; ok {
		t.Fatal("channel open after unsubscribe")
	}
	if r.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", r.SubscriberCount())
	}

	live, unsubLive := r.Subscribe("")
	r.Close()
	if _, ok := <-live.C; ok {
		t.Fatal("channel open after Close")
	}
	unsubLive()
	r.Publish("AB12CD", "after close")

	late, _ := r.Subscribe("")
	if _, ok := <-late.C; ok {
		t.Fatal("subscription after Close should be closed")
	}
}

func TestEndJobNotifiesFilteredSubscribers(t *testing.T) {
	r := NewBroadcastRouter(4, zap.NewNop())
	all, unsubAll := r.Subscribe("")
	defer unsubAll()
	filtered, unsubFiltered := r.Subscribe("AB12CD")
	defer unsubFiltered()

	r.EndJob("AB12CD")

	env := receive(t, filtered)
	if env.Event != model.EventJobEnded {
		t.Fatalf("event = %q, want %q", env.Event, model.EventJobEnded)
	}
	assertEmpty(t, all)
}
