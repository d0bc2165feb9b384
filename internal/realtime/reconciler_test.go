package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	notified []Event
	refetch  []string
	signal   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan struct{}, 32)}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Notify: func(e Event) {
			r.mu.Lock()
			r.notified = append(r.notified, e)
			r.mu.Unlock()
			r.signal <- struct{}{}
		},
		Refetch: func(table string) {
			r.mu.Lock()
			r.refetch = append(r.refetch, table)
			r.mu.Unlock()
			r.signal <- struct{}{}
		},
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler")
	}
}

func (r *recorder) quiet(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
		t.Fatal("unexpected handler call")
	case <-time.After(50 * time.Millisecond):
	}
}

func thanksTo(userID string) Event {
	return Event{Table: TableThanks, Type: Insert, Columns: map[string]string{"to_id": userID, "from_id": "other"}, Record: "thanks!"}
}

func TestReconcilerNotifiesOnThanksForUser(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	rec := newRecorder()
	r := NewReconciler(b, "alice", rec.handlers())
	r.Start()
	defer r.Close()

	b.Publish(thanksTo("bob"))
	rec.quiet(t)

	b.Publish(thanksTo("alice"))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.notified, 1)
	assert.Equal(t, "thanks!", rec.notified[0].Record)
	assert.Empty(t, rec.refetch)
}

func TestReconcilerIgnoresThanksUpdates(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	rec := newRecorder()
	r := NewReconciler(b, "alice", rec.handlers())
	r.Start()
	defer r.Close()

	e := thanksTo("alice")
	e.Type = Update
	b.Publish(e)
	rec.quiet(t)
}

func TestReconcilerRefetchesHouseholdChores(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	rec := newRecorder()
	r := NewReconciler(b, "alice", rec.handlers())
	r.Start()
	defer r.Close()

	b.Publish(Event{Table: TableChores, Type: Insert, Columns: map[string]string{"owner_id": "alice"}})
	rec.wait(t)
	b.Publish(Event{Table: TableChores, Type: Update, Columns: map[string]string{"owner_id": "bob", "partner_id": "alice"}})
	rec.wait(t)
	b.Publish(Event{Table: TableChores, Type: Delete, Columns: map[string]string{"owner_id": "carol"}})
	rec.quiet(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{TableChores, TableChores}, rec.refetch)
}

func TestReconcilerStartIsIdempotent(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	rec := newRecorder()
	r := NewReconciler(b, "alice", rec.handlers())
	r.Start()
	r.Start()
	defer r.Close()

	b.Publish(thanksTo("alice"))
	rec.wait(t)
	rec.quiet(t)
}

func TestReconcilerCloseIsIdempotent(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	rec := newRecorder()
	r := NewReconciler(b, "alice", rec.handlers())
	r.Start()
	r.Close()
	r.Close()

	b.Publish(thanksTo("alice"))
	rec.quiet(t)
}

func TestReconcilerCloseBeforeStart(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	rec := newRecorder()
	r := NewReconciler(b, "alice", rec.handlers())
	r.Close()
	r.Start()

	b.Publish(thanksTo("alice"))
	rec.quiet(t)
}
