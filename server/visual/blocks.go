package visual

import (
	"log/slog"
	"sync"

	"github.com/brentp/intintmap"
	"github.com/df-mc/foundation/server/region"
	"github.com/google/uuid"
)

// Mode is the way a single block is highlighted.
type Mode uint8

const (
	// ModeMask replaces the block with another block on the client.
	ModeMask Mode = iota
	// ModeGlow spawns a labelled falling block entity inside the block.
	ModeGlow
)

// String ...
func (m Mode) String() string {
	if m == ModeGlow {
		return "glow"
	}
	return "mask"
}

// BlocksConfig holds the settings of a Blocks visualiser.
type BlocksConfig struct {
	// MaskRuntimeID is the runtime id of the block shown in mask mode.
	MaskRuntimeID uint32
	// FallingRuntimeID is the runtime id of the block the falling block entity
	// looks like in glow mode.
	FallingRuntimeID uint32
	// Original returns the runtime id of the block actually at a position. It
	// is used to restore masked blocks. If nil, AirRuntimeID is restored.
	Original     func(pos region.BlockPos) uint32
	AirRuntimeID uint32
	Log          *slog.Logger
}

type shownBlock struct {
	mode  Mode
	label string
}

// Blocks highlights single blocks, such as the corners of a selection, for a
// set of viewers.
type Blocks struct {
	conf BlocksConfig
	rend *Renderer

	mu      sync.Mutex
	viewers map[uuid.UUID]Viewer
	shown   map[region.BlockPos]shownBlock
	// entities maps packed block positions to the ids of their glow entities.
	entities *intintmap.Map
}

// NewBlocks ...
func NewBlocks(rend *Renderer, conf BlocksConfig) *Blocks {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("subsystem", "visual")
	return &Blocks{
		conf:     conf,
		rend:     rend,
		viewers:  make(map[uuid.UUID]Viewer),
		shown:    make(map[region.BlockPos]shownBlock),
		entities: intintmap.New(16, 0.6),
	}
}

// packPos packs a block position into a single integer: 26 bits for X and Z
// and 12 bits for Y.
func packPos(pos region.BlockPos) int64 {
	return int64(pos[0]&0x3ffffff)<<38 | int64(pos[2]&0x3ffffff)<<12 | int64(pos[1]&0xfff)
}

// AddViewer renders every highlighted block to v and keeps v updated.
func (b *Blocks) AddViewer(v Viewer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.viewers[v.UUID()]; ok {
		return
	}
	b.viewers[v.UUID()] = v
	for pos, s := range b.shown {
		b.renderTo(v, pos, s)
	}
}

// RemoveViewer restores every highlighted block for the viewer with the id
// passed and stops updating it.
func (b *Blocks) RemoveViewer(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.viewers[id]
	if !ok {
		return
	}
	delete(b.viewers, id)
	for pos, s := range b.shown {
		b.restoreFor(v, pos, s)
	}
}

// Show highlights the block at pos. A block that is already highlighted is
// redrawn in the new mode.
func (b *Blocks) Show(pos region.BlockPos, mode Mode, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.shown[pos]; ok {
		b.restore(pos, old)
	}
	s := shownBlock{mode: mode, label: label}
	if mode == ModeGlow {
		b.entities.Put(packPos(pos), b.rend.NewEntityID())
	}
	b.shown[pos] = s
	for _, v := range b.viewers {
		b.renderTo(v, pos, s)
	}
}

// Hide stops highlighting the block at pos. It returns false if the block was
// not highlighted.
func (b *Blocks) Hide(pos region.BlockPos) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.shown[pos]
	if !ok {
		return false
	}
	b.restore(pos, s)
	return true
}

// HideAll stops highlighting every block.
func (b *Blocks) HideAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pos, s := range b.shown {
		b.restore(pos, s)
	}
}

// Visualized reports whether the block at pos is highlighted.
func (b *Blocks) Visualized(pos region.BlockPos) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.shown[pos]
	return ok
}

// Len returns the amount of highlighted blocks.
func (b *Blocks) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.shown)
}

// restore undoes the highlight of pos for all viewers and forgets it.
func (b *Blocks) restore(pos region.BlockPos, s shownBlock) {
	for _, v := range b.viewers {
		b.restoreFor(v, pos, s)
	}
	if s.mode == ModeGlow {
		b.entities.Del(packPos(pos))
	}
	delete(b.shown, pos)
}

func (b *Blocks) renderTo(v Viewer, pos region.BlockPos, s shownBlock) {
	var err error
	switch s.mode {
	case ModeGlow:
		id, _ := b.entities.Get(packPos(pos))
		err = b.rend.FallingBlock(v, id, pos, b.conf.FallingRuntimeID, s.label)
	default:
		err = b.rend.FakeBlock(v, pos, b.conf.MaskRuntimeID)
	}
	if err != nil {
		b.conf.Log.Debug("Render block.", "pos", pos, "mode", s.mode, "viewer", v.UUID(), "error", err)
	}
}

func (b *Blocks) restoreFor(v Viewer, pos region.BlockPos, s shownBlock) {
	var err error
	switch s.mode {
	case ModeGlow:
		id, _ := b.entities.Get(packPos(pos))
		err = b.rend.RemoveEntity(v, id)
	default:
		rid := b.conf.AirRuntimeID
		if b.conf.Original != nil {
			rid = b.conf.Original(pos)
		}
		err = b.rend.FakeBlock(v, pos, rid)
	}
	if err != nil {
		b.conf.Log.Debug("Restore block.", "pos", pos, "mode", s.mode, "viewer", v.UUID(), "error", err)
	}
}
