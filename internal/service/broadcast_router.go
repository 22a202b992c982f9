package service

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jeongyiya/steno-caption/internal/model"
	"go.uber.org/zap"
)

// Subscription is one viewer channel registered with the router.
type Subscription struct {
	ID    string
	JobID string // empty receives every job
	C     <-chan model.Envelope

	send chan model.Envelope
}

// BroadcastRouter fans transcript snapshots out to subscribers.
type BroadcastRouter struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{} // jobID ("" = all) -> subscribers
	buffer int
	closed bool
	log    *zap.Logger
}

// NewBroadcastRouter creates a router whose subscribers buffer up to buffer
// pending messages.
func NewBroadcastRouter(buffer int, log *zap.Logger) *BroadcastRouter {
	if buffer < 1 {
		buffer = 1
	}
	return &BroadcastRouter{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a subscriber and returns it with an unsubscribe
// function. jobID filters delivery to one job; empty means all jobs.
func (r *BroadcastRouter) Subscribe(jobID string) (*Subscription, func()) {
	ch := make(chan model.Envelope, r.buffer)
	sub := &Subscription{
		ID:    uuid.New().String(),
		JobID: jobID,
		C:     ch,
		send:  ch,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return sub, func() {}
	}
	if r.topics[jobID] == nil {
		r.topics[jobID] = make(map[*Subscription]struct{})
	}
	r.topics[jobID][sub] = struct{}{}
	r.mu.Unlock()

	r.log.Debug("subscriber registered",
		zap.String("subscriber_id", sub.ID),
		zap.String("job_id", jobID))

	var once sync.Once
	return sub, func() { once.Do(func() { r.unsubscribe(sub) }) }
}

func (r *BroadcastRouter) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.topics[sub.JobID]
	if !ok {
		return
	}
	if _, ok := m[sub]; !ok {
		return
	}
	delete(m, sub)
	if len(m) == 0 {
		delete(r.topics, sub.JobID)
	}
	close(sub.send)
	r.log.Debug("subscriber unregistered", zap.String("subscriber_id", sub.ID))
}

// Publish sends a full-text snapshot tagged with jobID to every unfiltered
// subscriber and every subscriber filtered on jobID. It never blocks: a
// subscriber with a full buffer misses this message.
func (r *BroadcastRouter) Publish(jobID, text string) {
	data, err := json.Marshal(model.BroadcastMessage{JobID: jobID, Text: text})
	if err != nil {
		r.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	n := r.deliver(jobID, true, model.Envelope{Event: model.EventShowFullText, Data: data})
	r.log.Debug("broadcast", zap.String("job_id", jobID), zap.Int("subscribers", n))
}

// PublishGlobal publishes text under the GLOBAL job id.
func (r *BroadcastRouter) PublishGlobal(text string) {
	r.Publish(model.GlobalJobID, text)
}

// EndJob tells subscribers filtered on jobID that the job has ended.
func (r *BroadcastRouter) EndJob(jobID string) {
	data, _ := json.Marshal(model.JobEndedPayload{JobID: jobID})
	r.deliver(jobID, false, model.Envelope{Event: model.EventJobEnded, Data: data})
}

func (r *BroadcastRouter) deliver(jobID string, includeAll bool, env model.Envelope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	send := func(m map[*Subscription]struct{}) {
		for sub := range m {
			select {
			case sub.send <- env:
				n++
			default:
				r.log.Warn("subscriber buffer full, message dropped",
					zap.String("subscriber_id", sub.ID),
					zap.String("job_id", jobID))
			}
		}
	}
	if includeAll {
		send(r.topics[""])
	}
	if jobID != "" {
		send(r.topics[jobID])
	}
	return n
}

// SubscriberCount returns the number of registered subscribers.
func (r *BroadcastRouter) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.topics {
		n += len(m)
	}
	return n
}

// Close unregisters every subscriber and closes their channels.
func (r *BroadcastRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for jobID, m := range r.topics {
		for sub := range m {
			close(sub.send)
		}
		delete(r.topics, jobID)
	}
}
