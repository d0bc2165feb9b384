package realtime

import (
	"log/slog"
	"sync"
)

// Table names carried on events published by the services.
const (
	TableThanks      = "thanks"
	TableChores      = "chores"
	TableProfiles    = "profiles"
	TableInvitations = "partner_invitations"
)

// Handlers receive reconciler callbacks. Notify gets every thank-you addressed
// to the user; Refetch is told which table changed and must reload it from
// storage rather than trust the event payload.
type Handlers struct {
	Notify  func(e Event)
	Refetch func(table string)
}

// Reconciler keeps one user session in sync with the broker.
type Reconciler struct {
	broker   *Broker
	userID   string
	handlers Handlers

	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.Mutex
	subs      []*Subscription
	wg        sync.WaitGroup
}

// NewReconciler creates a reconciler for userID. Nothing is subscribed until Start.
func NewReconciler(b *Broker, userID string, h Handlers) *Reconciler {
	return &Reconciler{broker: b, userID: userID, handlers: h}
}

// Start subscribes the session. Only the first call has any effect.
func (r *Reconciler) Start() {
	r.startOnce.Do(func() {
		thanks := r.broker.Subscribe(ChannelName("thanks", r.userID),
			Filter{Table: TableThanks, Type: Insert, Column: "to_id", Value: r.userID},
		)
		household := r.broker.Subscribe(ChannelName("household", r.userID),
			Filter{Table: TableChores, Column: "owner_id", Value: r.userID},
			Filter{Table: TableChores, Column: "partner_id", Value: r.userID},
			Filter{Table: TableProfiles, Column: "id", Value: r.userID},
			Filter{Table: TableInvitations, Column: "inviter_id", Value: r.userID},
		)

		r.mu.Lock()
		r.subs = append(r.subs, thanks, household)
		r.mu.Unlock()

		r.wg.Add(2)
		go r.consume(thanks)
		go r.consume(household)
		slog.Debug("Reconciler started", "user_id", r.userID)
	})
}

func (r *Reconciler) consume(s *Subscription) {
	defer r.wg.Done()
	for e := range s.C {
		if e.Table == TableThanks {
			if r.handlers.Notify != nil {
				r.handlers.Notify(e)
			}
			continue
		}
		if r.handlers.Refetch != nil {
			r.handlers.Refetch(e.Table)
		}
	}
}

// Close unsubscribes and waits for in-flight handlers. Safe to call more than
// once, and before Start.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		// Block a late Start from subscribing after Close.
		r.startOnce.Do(func() {})

		r.mu.Lock()
		subs := r.subs
		r.subs = nil
		r.mu.Unlock()

		for _, s := range subs {
			s.Unsubscribe()
		}
		r.wg.Wait()
		slog.Debug("Reconciler closed", "user_id", r.userID)
	})
}
