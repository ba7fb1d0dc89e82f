// Package selection lets players select regions by marking two corners.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/df-mc/foundation/server/region"
	"github.com/df-mc/foundation/server/region/store"
	"github.com/df-mc/foundation/server/visual"
	"github.com/google/uuid"
)

// ErrNoSelection is returned when a player has not selected anything.
var ErrNoSelection = errors.New("no selection")

// Labels shown above the marked corners.
const (
	PrimaryLabel   = "Primary"
	SecondaryLabel = "Secondary"
)

// Config holds the settings of a Manager.
type Config struct {
	Scheduler *visual.Scheduler
	Renderer  *visual.Renderer
	Blocks    visual.BlocksConfig
	Outline   visual.RegionConfig
	Log       *slog.Logger
}

// Manager keeps one selection per player.
type Manager struct {
	conf Config
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

type session struct {
	viewer  visual.Viewer
	region  *region.Region
	corners *visual.Blocks
	outline *visual.Region

	primary, secondary *region.BlockPos
}

// New creates a Manager.
func New(conf Config) *Manager {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Renderer == nil {
		conf.Renderer = visual.NewRenderer()
	}
	conf.Blocks.Log, conf.Outline.Log = conf.Log, conf.Log
	return &Manager{conf: conf, log: conf.Log.With("subsystem", "selection"), sessions: make(map[uuid.UUID]*session)}
}

func (m *Manager) session(v visual.Viewer) *session {
	s, ok := m.sessions[v.UUID()]
	if !ok {
		r, _ := region.New("selection", nil, nil)
		s = &session{
			viewer:  v,
			region:  r,
			corners: visual.NewBlocks(m.conf.Renderer, m.conf.Blocks),
			outline: visual.NewRegion(r, m.conf.Scheduler, m.conf.Renderer, m.conf.Outline),
		}
		s.corners.AddViewer(v)
		m.sessions[v.UUID()] = s
	}
	return s
}

// Primary marks loc as the primary corner of the selection of v.
func (m *Manager) Primary(v visual.Viewer, loc region.Location) error {
	return m.mark(v, loc, true)
}

// Secondary marks loc as the secondary corner of the selection of v.
func (m *Manager) Secondary(v visual.Viewer, loc region.Location) error {
	return m.mark(v, loc, false)
}

func (m *Manager) mark(v visual.Viewer, loc region.Location, primary bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(v)

	set, label, pos, other := s.region.SetPrimary, PrimaryLabel, &s.primary, &s.secondary
	clearOther := s.region.SetSecondary
	if !primary {
		set, label, pos, other = s.region.SetSecondary, SecondaryLabel, &s.secondary, &s.primary
		clearOther = s.region.SetPrimary
	}
	if err := set(&loc); errors.Is(err, region.ErrWorldMismatch) {
		// A corner in another world starts a new selection.
		_ = clearOther(nil)
		if *other != nil {
			s.corners.Hide(**other)
			*other = nil
		}
		if err := set(&loc); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if *pos != nil {
		s.corners.Hide(**pos)
	}
	block := loc.Block()
	*pos = &block
	s.corners.Show(block, visual.ModeGlow, label)

	if !s.region.IsWhole() {
		_ = s.outline.Hide(v.UUID())
		return nil
	}
	s.outline.Refresh()
	if err := s.outline.Show(v); err != nil && !errors.Is(err, visual.ErrAlreadyViewing) {
		return fmt.Errorf("show selection: %w", err)
	}
	return nil
}

// Selection returns a copy of the region selected by the player with the id
// passed.
func (m *Manager) Selection(id uuid.UUID) (*region.Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.region.Clone("selection"), true
}

// Clear removes the selection of the player with the id passed and hides
// everything shown for it.
func (m *Manager) Clear(id uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.corners.HideAll()
	s.corners.RemoveViewer(id)
	s.outline.HideAll()
}

// Save stores the selection of the player with the id passed as a region
// named name.
func (m *Manager) Save(id uuid.UUID, name string, st store.Store) (*region.Region, error) {
	sel, ok := m.Selection(id)
	if !ok {
		return nil, ErrNoSelection
	}
	if !sel.IsWhole() {
		return nil, fmt.Errorf("save selection: %w", region.ErrIncomplete)
	}
	r := sel.Clone(name)
	if err := st.Put(r); err != nil {
		return nil, fmt.Errorf("save selection: %w", err)
	}
	m.log.Info("Region saved.", "region", name, "player", id)
	return r, nil
}

// Len returns the amount of active selections.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
