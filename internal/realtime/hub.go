package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/opsdesk/opsdesk/models"
)

// Hub is the authoritative set of live sessions plus the secondary indices
// used to resolve event audiences: per-user, per-topic and per-role.
//
// One coarse RWMutex guards all maps; register/unregister/subscribe are
// synchronous so no caller ever observes a partially updated index.
// Delivery resolves its target set under a read lock into a snapshot and
// performs network writes outside the lock.
type Hub struct {
	mu sync.RWMutex

	// byUser is the forward map: a user may hold several concurrent
	// sessions (multiple devices/tabs).
	byUser map[string]map[*Session]struct{}

	// registered is the reverse membership set. A session is in registered
	// iff it is reachable through byUser for its own user id.
	registered map[*Session]struct{}

	// topics maps a topic id to its interested sessions. Topics are created
	// lazily on first subscribe and pruned when their set empties.
	topics map[string]map[*Session]struct{}

	// sessionTopics mirrors topics per session so eviction is proportional
	// to the topics a session joined, not to all topics.
	sessionTopics map[*Session]map[string]struct{}
}

// NewHub creates an empty hub. Each test and each server instance gets its
// own hub; there is no package-level singleton.
func NewHub() *Hub {
	return &Hub{
		byUser:        make(map[string]map[*Session]struct{}),
		registered:    make(map[*Session]struct{}),
		topics:        make(map[string]map[*Session]struct{}),
		sessionTopics: make(map[*Session]map[string]struct{}),
	}
}

// Register admits s: it becomes visible to all subsequent deliveries.
// Registering an already-registered session is a no-op.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.registered[s]; ok {
		return
	}
	set, ok := h.byUser[s.userID]
	if !ok {
		set = make(map[*Session]struct{})
		h.byUser[s.userID] = set
	}
	set[s] = struct{}{}
	h.registered[s] = struct{}{}
	s.setState(StateOpen)

	if len(set) == 1 {
		slog.Debug("realtime: user connected", "user_id", s.userID, "role", s.role)
	}
}

// Unregister removes s from the registry and from every topic it joined,
// and marks it Closed. Multiple teardown paths (read-loop error, send
// failure, explicit close) may race here; later calls observe "not found"
// and return.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(s)
}

func (h *Hub) unregisterLocked(s *Session) {
	if _, ok := h.registered[s]; !ok {
		return
	}
	delete(h.registered, s)

	if set, ok := h.byUser[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.byUser, s.userID)
			slog.Debug("realtime: user disconnected", "user_id", s.userID)
		}
	}

	for topic := range h.sessionTopics[s] {
		if set, ok := h.topics[topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.sessionTopics, s)

	s.setState(StateClosed)
}

// Subscribe adds s to topic, creating the topic on first interest.
// Unregistered sessions are ignored so the index never references a session
// outside the registry.
func (h *Hub) Subscribe(s *Session, topic string) {
	if topic == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.registered[s]; !ok {
		return
	}
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Session]struct{})
		h.topics[topic] = set
	}
	set[s] = struct{}{}

	mine, ok := h.sessionTopics[s]
	if !ok {
		mine = make(map[string]struct{})
		h.sessionTopics[s] = mine
	}
	mine[topic] = struct{}{}
}

// Unsubscribe removes s from topic and prunes the topic once empty, so
// memory stays bounded by active interest.
func (h *Hub) Unsubscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.topics[topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
	if mine, ok := h.sessionTopics[s]; ok {
		delete(mine, topic)
		if len(mine) == 0 {
			delete(h.sessionTopics, s)
		}
	}
}

// SessionsForUser returns a snapshot of the user's live sessions.
// Unknown or offline users yield an empty slice: offline delivery is a
// no-op, never queued.
func (h *Hub) SessionsForUser(userID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.byUser[userID])
}

// SessionsForTopic returns a snapshot of the sessions subscribed to topic.
func (h *Hub) SessionsForTopic(topic string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.topics[topic])
}

// SessionsForRole returns a snapshot of sessions whose user holds role.
// Implemented as a scan of the registry: roles never change mid-session and
// role broadcasts are rare, so a maintained index is not worth its
// invariants at this scale.
func (h *Hub) SessionsForRole(role models.Role) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0)
	for s := range h.registered {
		if s.role == role {
			out = append(out, s)
		}
	}
	return out
}

// Sessions returns a snapshot of every registered session.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.registered)
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.registered)
}

// UserCount returns the number of distinct connected users.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// TopicCount returns the number of topics with at least one subscriber.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// Deliver resolves evt's audience and attempts one best-effort write per
// target session: at most once per session per call, no retry, no buffering.
// A failing target never aborts delivery to the rest; failed sessions are
// evicted after the delivery pass so index mutation never interleaves with
// target iteration. Deliver never reports failure to the producer.
func (h *Hub) Deliver(ctx context.Context, evt Event) {
	data, err := evt.encode()
	if err != nil {
		slog.Warn("realtime: failed to encode event", "type", evt.Type, "error", err)
		return
	}

	targets := h.resolve(evt.To)
	if len(targets) == 0 {
		return
	}

	var failed []*Session
	for _, s := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := s.send(data); err != nil {
			if errors.Is(err, errNotOpen) {
				continue
			}
			slog.Debug("realtime: send failed, evicting session",
				"type", evt.Type, "user_id", s.userID, "error", err)
			failed = append(failed, s)
		}
	}

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, s := range failed {
		h.unregisterLocked(s)
	}
	h.mu.Unlock()
	for _, s := range failed {
		s.Close(closeGoingAway, "send failed")
	}
}

// closeGoingAway matches RFC 6455 close code 1001.
const closeGoingAway = 1001

// resolve snapshots the target set for an address under the read lock.
func (h *Hub) resolve(to Address) []*Session {
	switch to.mode {
	case modeUnicast:
		return h.SessionsForUser(to.user)
	case modeMulticast:
		return h.sessionsForUsers(to.users)
	case modeTopic:
		return h.SessionsForTopic(to.topic)
	case modeRole:
		return h.SessionsForRole(to.role)
	case modeBroadcast:
		return h.Sessions()
	}
	return nil
}

// sessionsForUsers unions the sessions of the listed users, deduplicated.
func (h *Hub) sessionsForUsers(userIDs []string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Session]struct{})
	out := make([]*Session, 0)
	for _, id := range userIDs {
		for s := range h.byUser[id] {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func snapshot(set map[*Session]struct{}) []*Session {
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}
