// Package contextwindow manages per-session conversation windows:
// recent turns, retrieved memories, and a rolling summary, kept inside
// a token budget.
package contextwindow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kindredlabs/recall/internal/memory"
	"github.com/kindredlabs/recall/internal/model"
	"github.com/kindredlabs/recall/internal/store"
	"github.com/kindredlabs/recall/internal/tokens"
)

const (
	// DefaultBudget is the token budget for a window.
	DefaultBudget = 4000

	// DefaultRetrieveLimit is how many memories each user message
	// pulls into the window.
	DefaultRetrieveLimit = 5

	// DefaultMaxIdle is how long a window may sit untouched before
	// Cleanup sweeps it.
	DefaultMaxIdle = 24 * time.Hour

	// keepRecentTurns is how many trailing turns survive optimization
	// verbatim; older turns collapse into the summary.
	keepRecentTurns = 3
)

// Window is one session's conversation state. The mutable fields are
// guarded by the window's own mutex, so sessions never block each
// other.
type Window struct {
	OwnerID   string
	ScopeID   string
	SessionID string

	mu          sync.Mutex
	turns       []model.Turn
	memories    []memory.Scored
	summary     string
	totalTokens int
	createdAt   time.Time
	lastUpdated time.Time
}

// Usage reports a window's token accounting.
type Usage struct {
	TotalTokens     int `json:"total_tokens"`
	Budget          int `json:"budget"`
	RemainingTokens int `json:"remaining_tokens"`
}

// Context is what Integrate hands back for prompt construction.
type Context struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
	Summary   string `json:"summary,omitempty"`
	Turns     int    `json:"turns"`
	Memories  int    `json:"memories"`
	Usage     Usage  `json:"usage"`
}

// Manager owns the active windows for a process. Windows are keyed by
// owner, scope, and session; the manager's mutex only guards the map,
// so operations on different windows proceed in parallel.
type Manager struct {
	mem     *memory.MemoryStore
	store   store.Store
	counter tokens.Counter

	budget        int
	retrieveLimit int
	log           *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	windows map[string]*Window
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBudget sets the token budget for new windows.
func WithBudget(budget int) ManagerOption {
	return func(m *Manager) { m.budget = budget }
}

// WithRetrieveLimit sets how many memories each message retrieves.
func WithRetrieveLimit(limit int) ManagerOption {
	return func(m *Manager) { m.retrieveLimit = limit }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a window manager over the memory store. st
// persists snapshots of cleared windows; it may be nil to skip that.
func NewManager(mem *memory.MemoryStore, st store.Store, counter tokens.Counter, opts ...ManagerOption) *Manager {
	m := &Manager{
		mem:           mem,
		store:         st,
		counter:       counter,
		budget:        DefaultBudget,
		retrieveLimit: DefaultRetrieveLimit,
		log:           slog.Default(),
		now:           time.Now,
		windows:       make(map[string]*Window),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.counter == nil {
		m.counter = tokens.WordCounter{}
	}
	return m
}

func windowKey(ownerID, scopeID, sessionID string) string {
	return ownerID + "|" + scopeID + "|" + sessionID
}

// Integrate records a user message, retrieves relevant memories into
// the window, and optimizes the window back under budget. An empty
// sessionID starts a new session.
func (m *Manager) Integrate(ctx context.Context, ownerID, scopeID, sessionID, userText string) (*Context, error) {
	if ownerID == "" || scopeID == "" {
		return nil, fmt.Errorf("%w: owner and scope ids are required", memory.ErrValidation)
	}
	if userText == "" {
		return nil, fmt.Errorf("%w: message is required", memory.ErrValidation)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// Retrieval happens before taking the manager lock; it can hit the
	// network.
	retrieved, err := m.mem.Retrieve(ctx, memory.RetrieveParams{
		OwnerID: ownerID,
		ScopeID: scopeID,
		Query:   userText,
		Limit:   m.retrieveLimit,
	})
	if err != nil {
		m.log.Warn("memory retrieval failed, continuing without memories", "error", err)
		retrieved = nil
	}

	m.mu.Lock()
	key := windowKey(ownerID, scopeID, sessionID)
	w := m.windows[key]
	if w == nil {
		w = &Window{
			OwnerID:   ownerID,
			ScopeID:   scopeID,
			SessionID: sessionID,
			createdAt: m.now(),
		}
		m.windows[key] = w
	}
	m.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.turns = append(w.turns, model.Turn{UserText: userText, Timestamp: m.now()})

	seen := make(map[string]bool, len(w.memories))
	for _, mem := range w.memories {
		seen[mem.ID] = true
	}
	for _, r := range retrieved {
		if !seen[r.ID] {
			w.memories = append(w.memories, r)
		}
	}

	w.lastUpdated = m.now()
	m.optimize(w)
	return m.snapshotLocked(w), nil
}

// RecordResponse fills in the assistant's reply on the latest pending
// turn. A turn that already has a reply is never overwritten.
func (m *Manager) RecordResponse(ownerID, scopeID, sessionID, aiText string) error {
	m.mu.Lock()
	w := m.windows[windowKey(ownerID, scopeID, sessionID)]
	m.mu.Unlock()
	if w == nil {
		return fmt.Errorf("no active window for session %s", sessionID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.turns) == 0 || w.turns[len(w.turns)-1].AIText != "" {
		return fmt.Errorf("no pending turn for session %s", sessionID)
	}
	w.turns[len(w.turns)-1].AIText = aiText
	w.lastUpdated = m.now()
	m.optimize(w)
	return nil
}

// Get returns the current context for a session without modifying it.
func (m *Manager) Get(ownerID, scopeID, sessionID string) (*Context, bool) {
	m.mu.Lock()
	w := m.windows[windowKey(ownerID, scopeID, sessionID)]
	m.mu.Unlock()
	if w == nil {
		return nil, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return m.snapshotLocked(w), true
}

// Clear summarizes and removes a session's window, persisting the
// final summary as a context snapshot. Clearing an unknown session is
// not an error.
func (m *Manager) Clear(ctx context.Context, ownerID, scopeID, sessionID string) (*model.ContextSnapshot, error) {
	m.mu.Lock()
	key := windowKey(ownerID, scopeID, sessionID)
	w := m.windows[key]
	if w == nil {
		m.mu.Unlock()
		return nil, nil
	}
	delete(m.windows, key)
	m.mu.Unlock()

	w.mu.Lock()
	snap := m.finalSnapshotLocked(w)
	w.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveSnapshot(ctx, *snap); err != nil {
			return snap, fmt.Errorf("save context snapshot: %w", err)
		}
	}
	m.log.Info("context window cleared", "owner_id", ownerID, "session_id", sessionID)
	return snap, nil
}

// Cleanup sweeps windows idle longer than maxAge, persisting each one's
// final summary first. Returns the number of windows removed.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxIdle
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	var stale []*model.ContextSnapshot
	for key, w := range m.windows {
		w.mu.Lock()
		if w.lastUpdated.Before(cutoff) {
			stale = append(stale, m.finalSnapshotLocked(w))
			delete(m.windows, key)
		}
		w.mu.Unlock()
	}
	m.mu.Unlock()

	if m.store != nil {
		for _, snap := range stale {
			if err := m.store.SaveSnapshot(ctx, *snap); err != nil {
				return len(stale), fmt.Errorf("save context snapshot: %w", err)
			}
		}
	}
	if len(stale) > 0 {
		m.log.Info("idle context windows swept", "count", len(stale))
	}
	return len(stale), nil
}

// Active returns the number of live windows.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// optimize brings the window back under budget: first collapse old
// turns into the summary, then drop the least relevant memories until
// the window fits.
func (m *Manager) optimize(w *Window) {
	w.totalTokens = m.countTokens(w)
	if w.totalTokens <= m.budget {
		return
	}

	if len(w.turns) > keepRecentTurns {
		old := w.turns[:len(w.turns)-keepRecentTurns]
		summary := Summarize(old, m.counter, DefaultSummaryTokens)
		if summary != "" {
			if w.summary != "" {
				w.summary = w.summary + "\n\nPrevious conversation: " + summary
			} else {
				w.summary = "Previous conversation: " + summary
			}
		}
		w.turns = append([]model.Turn(nil), w.turns[len(w.turns)-keepRecentTurns:]...)
		w.totalTokens = m.countTokens(w)
	}

	if w.totalTokens > m.budget {
		sort.SliceStable(w.memories, func(i, j int) bool {
			return w.memories[i].Score > w.memories[j].Score
		})
		for w.totalTokens > m.budget && len(w.memories) > 0 {
			w.memories = w.memories[:len(w.memories)-1]
			w.totalTokens = m.countTokens(w)
		}
	}
}

func (m *Manager) countTokens(w *Window) int {
	total := m.counter.Count(w.summary)
	for _, t := range w.turns {
		total += m.counter.Count(t.UserText)
		total += m.counter.Count(t.AIText)
	}
	for _, mem := range w.memories {
		total += m.counter.Count(mem.Content)
	}
	return total
}

func (m *Manager) snapshotLocked(w *Window) *Context {
	return &Context{
		SessionID: w.SessionID,
		Prompt:    FormatPrompt(w.summary, w.turns, w.memories),
		Summary:   w.summary,
		Turns:     len(w.turns),
		Memories:  len(w.memories),
		Usage: Usage{
			TotalTokens:     w.totalTokens,
			Budget:          m.budget,
			RemainingTokens: m.budget - w.totalTokens,
		},
	}
}

func (m *Manager) finalSnapshotLocked(w *Window) *model.ContextSnapshot {
	summary := Summarize(w.turns, m.counter, DefaultSummaryTokens)
	if w.summary != "" {
		if summary != "" {
			summary = w.summary + "\n\nPrevious conversation: " + summary
		} else {
			summary = w.summary
		}
	}
	return &model.ContextSnapshot{
		OwnerID:     w.OwnerID,
		ScopeID:     w.ScopeID,
		SessionID:   w.SessionID,
		Summary:     summary,
		LastUpdated: m.now().UTC(),
	}
}
