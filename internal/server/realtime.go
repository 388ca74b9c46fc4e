package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventNoteChanged = "note-change"
	realtimeEventHeartbeat   = "heartbeat"
	realtimeSource           = "versenotes"
	realtimeBufferSize       = 16
)

// RealtimeMessage announces a note mutation to the subscribers of one subject.
type RealtimeMessage struct {
	Subject   string
	EventType string
	Operation string
	NoteIDs   []string
	Timestamp time.Time
}

// RealtimeDispatcher fans note changes out to stream subscribers. Slow
// subscribers miss messages rather than block publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]chan RealtimeMessage
	nextID      int64
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]chan RealtimeMessage),
	}
}

// Subscribe registers a stream for subject until ctx ends or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, subject string) (<-chan RealtimeMessage, func()) {
	if subject == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}

	stream := make(chan RealtimeMessage, realtimeBufferSize)
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	if _, ok := d.subscribers[subject]; !ok {
		d.subscribers[subject] = make(map[int64]chan RealtimeMessage)
	}
	d.subscribers[subject][id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(subject, id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.Subject == "" || message.EventType == "" {
		return
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, stream := range d.subscribers[message.Subject] {
		select {
		case stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the number of open streams for subject.
func (d *RealtimeDispatcher) SubscriberCount(subject string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[subject])
}

func (d *RealtimeDispatcher) unregister(subject string, id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subscribers := d.subscribers[subject]
	if subscribers == nil {
		return
	}
	delete(subscribers, id)
	if len(subscribers) == 0 {
		delete(d.subscribers, subject)
	}
}
