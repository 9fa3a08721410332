// Package workspace keeps each session's imported sheet and tag selection
// in process memory. Nothing here is persisted; a workspace disappears on
// removal, sign-out, or after sitting idle.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/tagdesk/internal/importer"
	"github.com/benvon/tagdesk/internal/tagging"
	"go.uber.org/zap"
)

// ErrNoWorkspace is returned for row operations when no file is loaded. With
// nothing loaded every row id is unknown, so it matches tagging.ErrUnknownRow.
var ErrNoWorkspace = fmt.Errorf("no file loaded: %w", tagging.ErrUnknownRow)

// DefaultIdleTTL is how long an untouched workspace is kept.
const DefaultIdleTTL = 2 * time.Hour

// View is a read-only snapshot of a workspace for rendering.
type View struct {
	FileName string            `json:"file_name"`
	Format   importer.Format   `json:"format"`
	LoadedAt time.Time         `json:"loaded_at"`
	Rows     []tagging.RowView `json:"rows"`
}

// Loaded reports whether a file is currently loaded.
func (v *View) Loaded() bool {
	return v != nil && v.FileName != ""
}

type workspace struct {
	mu        sync.Mutex
	fileName  string
	format    importer.Format
	loadedAt  time.Time
	touchedAt time.Time
	store     *tagging.Store
}

// Registry maps session ids to workspaces.
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]*workspace
	idleTTL    time.Duration
	interval   time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewRegistry creates a registry that drops workspaces idle for longer than
// idleTTL.
func NewRegistry(idleTTL time.Duration, log *zap.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	interval := idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &Registry{
		workspaces: make(map[string]*workspace),
		idleTTL:    idleTTL,
		interval:   interval,
		log:        log,
		now:        time.Now,
	}
}

func (r *Registry) get(sessionID string) *workspace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workspaces[sessionID]
}

// Load replaces the session's workspace with a freshly parsed batch. Any
// previous rows and selections are discarded.
func (r *Registry) Load(sessionID string, batch *importer.Batch) *View {
	now := r.now()
	ws := &workspace{
		fileName:  batch.FileName,
		format:    batch.Format,
		loadedAt:  now,
		touchedAt: now,
		store:     tagging.NewStore(batch.Rows),
	}
	view := ws.view()
	r.mu.Lock()
	r.workspaces[sessionID] = ws
	r.mu.Unlock()

	r.log.Debug("workspace_loaded",
		zap.String("file_name", batch.FileName),
		zap.Int("rows", len(batch.Rows)),
	)
	return view
}

// Remove discards the session's workspace. It reports whether one existed.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[sessionID]; !ok {
		return false
	}
	delete(r.workspaces, sessionID)
	return true
}

// View returns a snapshot of the session's workspace, or nil if no file is
// loaded.
func (r *Registry) View(sessionID string) *View {
	ws := r.get(sessionID)
	if ws == nil {
		return nil
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.touchedAt = r.now()
	return ws.view()
}

// Select records tag as selected on a row of the session's workspace.
func (r *Registry) Select(sessionID, rowID, tag string) error {
	return r.with(sessionID, func(s *tagging.Store) error {
		return s.Select(rowID, tag)
	})
}

// Deselect removes tag from a row of the session's workspace.
func (r *Registry) Deselect(sessionID, rowID, tag string) error {
	return r.with(sessionID, func(s *tagging.Store) error {
		return s.Deselect(rowID, tag)
	})
}

// Available returns the unselected candidate tags of a row.
func (r *Registry) Available(sessionID, rowID string) ([]string, error) {
	var out []string
	err := r.with(sessionID, func(s *tagging.Store) error {
		var err error
		out, err = s.Available(rowID)
		return err
	})
	return out, err
}

// ResetSelections clears every selection in the session's workspace while
// keeping its rows.
func (r *Registry) ResetSelections(sessionID string) error {
	return r.with(sessionID, func(s *tagging.Store) error {
		s.Reset()
		return nil
	})
}

// with runs fn against the session's store under the workspace lock.
func (r *Registry) with(sessionID string, fn func(*tagging.Store) error) error {
	ws := r.get(sessionID)
	if ws == nil {
		return ErrNoWorkspace
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.touchedAt = r.now()
	return fn(ws.store)
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// Start sweeps idle workspaces until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep drops workspaces idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, ws := range r.workspaces {
		ws.mu.Lock()
		idle := ws.touchedAt.Before(cutoff)
		ws.mu.Unlock()
		if idle {
			delete(r.workspaces, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Info("workspaces_expired", zap.Int("count", removed))
	}
	return removed
}

func (ws *workspace) view() *View {
	return &View{
		FileName: ws.fileName,
		Format:   ws.format,
		LoadedAt: ws.loadedAt,
		Rows:     ws.store.Snapshot(),
	}
}
