package visual

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/df-mc/foundation/server/region"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// DefaultRange is the distance in blocks beyond which viewers no longer see an
// outline.
const DefaultRange = 100

// RegionConfig holds the optional settings of a visualised region.
type RegionConfig struct {
	// Particle is the particle the outline is drawn with.
	Particle string
	// Interval is the time between two redraws.
	Interval time.Duration
	// Range is the maximum distance between a viewer and the region.
	Range float64
	Log   *slog.Logger
}

// Region shows the outline of a region to a set of viewers. The outline is
// redrawn periodically while at least one viewer sees it.
type Region struct {
	region *region.Region
	conf   RegionConfig
	sched  *Scheduler
	rend   *Renderer

	mu      sync.Mutex
	viewers map[uuid.UUID]Viewer
	hides   map[uuid.UUID]uuid.UUID
	points  []mgl64.Vec3
	job     uuid.UUID
}

// NewRegion prepares r for visualisation. Nothing is shown until Show is called.
func NewRegion(r *region.Region, sched *Scheduler, rend *Renderer, conf RegionConfig) *Region {
	if conf.Particle == "" {
		conf.Particle = DefaultParticle
	}
	if conf.Interval <= 0 {
		conf.Interval = DefaultInterval
	}
	if conf.Range <= 0 {
		conf.Range = DefaultRange
	}
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("subsystem", "visual", "region", r.Name())
	return &Region{
		region:  r,
		conf:    conf,
		sched:   sched,
		rend:    rend,
		viewers: make(map[uuid.UUID]Viewer),
		hides:   make(map[uuid.UUID]uuid.UUID),
	}
}

// Region returns the region visualised.
func (r *Region) Region() *region.Region {
	return r.region
}

// Show starts showing the outline to v.
func (r *Region) Show(v Viewer) error {
	if err := r.add(v); err != nil {
		return err
	}
	r.render(v, r.outline())
	return nil
}

func (r *Region) add(v Viewer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.region.IsWhole() {
		return fmt.Errorf("%w: %s", ErrIncomplete, r.region.Name())
	}
	if _, ok := r.viewers[v.UUID()]; ok {
		return ErrAlreadyViewing
	}
	if len(r.viewers) == 0 {
		r.points = r.region.BoundingBox()
		job, err := r.sched.every(r.conf.Interval, r.tick)
		if err != nil {
			return fmt.Errorf("schedule outline: %w", err)
		}
		r.job = job
	}
	r.viewers[v.UUID()] = v
	return nil
}

// ShowFor shows the outline to v and hides it again after d, unless it was
// hidden before that.
func (r *Region) ShowFor(v Viewer, d time.Duration) error {
	if err := r.Show(v); err != nil {
		return err
	}
	id := v.UUID()
	job, err := r.sched.after(d, func() {
		r.mu.Lock()
		delete(r.hides, id)
		r.mu.Unlock()
		if err := r.Hide(id); err != nil {
			r.conf.Log.Debug("Timed hide skipped.", "viewer", id, "error", err)
		}
	})
	if err != nil {
		_ = r.Hide(id)
		return fmt.Errorf("schedule hide: %w", err)
	}
	r.mu.Lock()
	_, viewing := r.viewers[id]
	if viewing {
		r.hides[id] = job
	}
	r.mu.Unlock()
	if !viewing {
		r.sched.cancel(job)
	}
	return nil
}

// Hide stops showing the outline to the viewer with the id passed. The last
// viewer leaving stops the redraws.
func (r *Region) Hide(id uuid.UUID) error {
	r.mu.Lock()
	if _, ok := r.viewers[id]; !ok {
		r.mu.Unlock()
		return ErrNotViewing
	}
	delete(r.viewers, id)
	hide, job := r.hides[id], uuid.Nil
	delete(r.hides, id)
	if len(r.viewers) == 0 {
		job, r.job = r.job, uuid.Nil
	}
	r.mu.Unlock()

	r.sched.cancel(hide)
	r.sched.cancel(job)
	return nil
}

// HideAll hides the outline from every viewer.
func (r *Region) HideAll() {
	for _, id := range r.Viewers() {
		_ = r.Hide(id)
	}
}

// Viewing reports whether the viewer with the id passed sees the outline.
func (r *Region) Viewing(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.viewers[id]
	return ok
}

// Viewers returns the ids of all viewers.
func (r *Region) Viewers() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.viewers))
	for id := range r.viewers {
		ids = append(ids, id)
	}
	return ids
}

// Active reports whether the outline is being redrawn.
func (r *Region) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job != uuid.Nil
}

// Refresh recomputes the outline after the corners of the region changed.
func (r *Region) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = r.region.BoundingBox()
}

func (r *Region) outline() []mgl64.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points
}

func (r *Region) tick() {
	r.mu.Lock()
	points := r.points
	viewers := make([]Viewer, 0, len(r.viewers))
	for _, v := range r.viewers {
		viewers = append(viewers, v)
	}
	r.mu.Unlock()

	for _, v := range viewers {
		r.render(v, points)
	}
}

// render draws points for v if v is close enough to the region.
func (r *Region) render(v Viewer, points []mgl64.Vec3) {
	if v.World() != r.region.World() {
		return
	}
	min, max, ok := r.region.Corners()
	if !ok || distanceToBox(v.Position(), min, max) > r.conf.Range {
		return
	}
	if err := r.rend.Particles(v, r.region.World(), r.conf.Particle, points); err != nil {
		r.conf.Log.Debug("Render outline.", "viewer", v.UUID(), "error", err)
	}
}

// distanceToBox returns the distance between p and the closest point of the
// blocks from min to max. It is 0 if p lies inside.
func distanceToBox(p mgl64.Vec3, min, max region.BlockPos) float64 {
	var sq float64
	for i := range 3 {
		lo, hi := float64(min[i]), float64(max[i]+1)
		switch {
		case p[i] < lo:
			sq += (lo - p[i]) * (lo - p[i])
		case p[i] > hi:
			sq += (p[i] - hi) * (p[i] - hi)
		}
	}
	return math.Sqrt(sq)
}
