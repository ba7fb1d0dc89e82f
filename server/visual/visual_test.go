package visual

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/df-mc/foundation/server/region"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

type fakeViewer struct {
	id    uuid.UUID
	world string
	pos   mgl64.Vec3

	mu      sync.Mutex
	packets []packet.Packet
}

func newFakeViewer(world string, pos mgl64.Vec3) *fakeViewer {
	return &fakeViewer{id: uuid.New(), world: world, pos: pos}
}

func (v *fakeViewer) UUID() uuid.UUID      { return v.id }
func (v *fakeViewer) World() string        { return v.world }
func (v *fakeViewer) Position() mgl64.Vec3 { return v.pos }

func (v *fakeViewer) WritePacket(pk packet.Packet) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.packets = append(v.packets, pk)
	return nil
}

func (v *fakeViewer) take() []packet.Packet {
	v.mu.Lock()
	defer v.mu.Unlock()
	p := v.packets
	v.packets = nil
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(discardLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRegion() *region.Region {
	return region.MustNew("arena", region.Loc("world", 0, 0, 0), region.Loc("world", 2, 3, 2))
}

func TestRegionShowHide(t *testing.T) {
	sched := newScheduler(t)
	vr := NewRegion(testRegion(), sched, NewRenderer(), RegionConfig{Interval: time.Hour, Log: discardLogger()})
	near := newFakeViewer("world", mgl64.Vec3{1, 1, 1})

	if err := vr.Show(near); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := vr.Show(near); !errors.Is(err, ErrAlreadyViewing) {
		t.Fatalf("expected ErrAlreadyViewing, got %v", err)
	}
	if !vr.Active() || sched.Jobs() != 1 {
		t.Fatalf("expected one redraw job, got %d", sched.Jobs())
	}
	points := len(testRegion().BoundingBox())
	pks := near.take()
	if len(pks) != points {
		t.Fatalf("expected %d particles on show, got %d", points, len(pks))
	}
	for i, pk := range pks {
		if _, ok := pk.(*packet.SpawnParticleEffect); !ok {
			t.Fatalf("packet %d is %T, not a particle", i, pk)
		}
	}

	if err := vr.Hide(near.UUID()); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if err := vr.Hide(near.UUID()); !errors.Is(err, ErrNotViewing) {
		t.Fatalf("expected ErrNotViewing, got %v", err)
	}
	if vr.Active() {
		t.Fatalf("redraws continued after the last viewer left")
	}
}

func TestRegionIncomplete(t *testing.T) {
	r, _ := region.New("half", &region.Location{World: "world"}, nil)
	vr := NewRegion(r, newScheduler(t), NewRenderer(), RegionConfig{Log: discardLogger()})
	if err := vr.Show(newFakeViewer("world", mgl64.Vec3{})); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestRegionTickFiltersViewers(t *testing.T) {
	vr := NewRegion(testRegion(), newScheduler(t), NewRenderer(), RegionConfig{Interval: time.Hour, Range: 10, Log: discardLogger()})
	near := newFakeViewer("world", mgl64.Vec3{12, 1, 1})
	far := newFakeViewer("world", mgl64.Vec3{50, 1, 1})
	elsewhere := newFakeViewer("nether", mgl64.Vec3{1, 1, 1})
	for _, v := range []*fakeViewer{near, far, elsewhere} {
		if err := vr.Show(v); err != nil {
			t.Fatalf("show: %v", err)
		}
		v.take()
	}

	vr.tick()
	if len(near.take()) == 0 {
		t.Fatalf("viewer in range received no particles")
	}
	if n := len(far.take()); n != 0 {
		t.Fatalf("viewer out of range received %d particles", n)
	}
	if n := len(elsewhere.take()); n != 0 {
		t.Fatalf("viewer in another world received %d particles", n)
	}
}

func TestRegionRedrawsPeriodically(t *testing.T) {
	vr := NewRegion(testRegion(), newScheduler(t), NewRenderer(), RegionConfig{Interval: 20 * time.Millisecond, Log: discardLogger()})
	v := newFakeViewer("world", mgl64.Vec3{})
	if err := vr.Show(v); err != nil {
		t.Fatalf("show: %v", err)
	}
	v.take()
	deadline := time.Now().Add(2 * time.Second)
	for len(v.take()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("outline was not redrawn")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRegionShowFor(t *testing.T) {
	vr := NewRegion(testRegion(), newScheduler(t), NewRenderer(), RegionConfig{Interval: time.Hour, Log: discardLogger()})
	v := newFakeViewer("world", mgl64.Vec3{})
	if err := vr.ShowFor(v, 30*time.Millisecond); err != nil {
		t.Fatalf("show for: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for vr.Viewing(v.UUID()) {
		if time.Now().After(deadline) {
			t.Fatalf("viewer was not hidden after the duration")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if vr.Active() {
		t.Fatalf("redraws continued after the timed hide")
	}
}

func TestRegionShowForReleasesJobs(t *testing.T) {
	sched := newScheduler(t)
	vr := NewRegion(testRegion(), sched, NewRenderer(), RegionConfig{Interval: time.Hour, Log: discardLogger()})
	v := newFakeViewer("world", mgl64.Vec3{})
	for range 5 {
		if err := vr.ShowFor(v, 20*time.Millisecond); err != nil {
			t.Fatalf("show for: %v", err)
		}
		deadline := time.Now().Add(2 * time.Second)
		for vr.Viewing(v.UUID()) {
			if time.Now().After(deadline) {
				t.Fatalf("viewer was not hidden after the duration")
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for sched.Jobs() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler still holds %d jobs after every timed hide ran", sched.Jobs())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBlocksMaskAndGlow(t *testing.T) {
	b := NewBlocks(NewRenderer(), BlocksConfig{
		MaskRuntimeID:    7,
		FallingRuntimeID: 9,
		Original:         func(region.BlockPos) uint32 { return 3 },
		Log:              discardLogger(),
	})
	v := newFakeViewer("world", mgl64.Vec3{})
	b.AddViewer(v)

	mask, glow := region.BlockPos{1, 2, 3}, region.BlockPos{-4, 5, -6}
	b.Show(mask, ModeMask, "")
	b.Show(glow, ModeGlow, "Primary")
	if !b.Visualized(mask) || !b.Visualized(glow) || b.Len() != 2 {
		t.Fatalf("expected two highlighted blocks")
	}

	pks := v.take()
	if len(pks) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(pks))
	}
	ub, ok := pks[0].(*packet.UpdateBlock)
	if !ok || ub.NewBlockRuntimeID != 7 {
		t.Fatalf("expected masking block update, got %#v", pks[0])
	}
	add, ok := pks[1].(*packet.AddActor)
	if !ok || add.EntityType != fallingBlockEntity {
		t.Fatalf("expected falling block entity, got %#v", pks[1])
	}

	if !b.Hide(mask) || b.Hide(mask) {
		t.Fatalf("expected Hide to succeed exactly once")
	}
	pks = v.take()
	if ub, ok := pks[0].(*packet.UpdateBlock); !ok || ub.NewBlockRuntimeID != 3 {
		t.Fatalf("expected original block to be restored, got %#v", pks[0])
	}

	b.HideAll()
	pks = v.take()
	rm, ok := pks[0].(*packet.RemoveActor)
	if !ok || rm.EntityUniqueID != add.EntityUniqueID {
		t.Fatalf("expected glow entity %d to be removed, got %#v", add.EntityUniqueID, pks[0])
	}
	if b.Len() != 0 {
		t.Fatalf("blocks left highlighted after HideAll")
	}
}

func TestBlocksNewViewerSeesExisting(t *testing.T) {
	b := NewBlocks(NewRenderer(), BlocksConfig{Log: discardLogger()})
	b.Show(region.BlockPos{0, 0, 0}, ModeMask, "")
	b.Show(region.BlockPos{1, 0, 0}, ModeGlow, "")

	v := newFakeViewer("world", mgl64.Vec3{})
	b.AddViewer(v)
	if n := len(v.take()); n != 2 {
		t.Fatalf("expected 2 packets for the late viewer, got %d", n)
	}
	b.RemoveViewer(v.UUID())
	if n := len(v.take()); n != 2 {
		t.Fatalf("expected 2 restoring packets, got %d", n)
	}
}

func TestPackPosDistinct(t *testing.T) {
	seen := map[int64]region.BlockPos{}
	for _, pos := range []region.BlockPos{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {-1, 0, 0}, {0, -64, 0}, {0, 0, -1}, {30000, 319, -30000}} {
		k := packPos(pos)
		if other, ok := seen[k]; ok {
			t.Fatalf("%v and %v pack to the same key", pos, other)
		}
		seen[k] = pos
	}
}
