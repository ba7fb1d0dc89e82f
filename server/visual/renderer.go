package visual

import (
	"sync/atomic"

	"github.com/df-mc/foundation/server/region"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// DefaultParticle is the particle regions are outlined with.
const DefaultParticle = "minecraft:villager_happy"

// fallingBlockEntity is the entity type used to highlight blocks in glow mode.
const fallingBlockEntity = "minecraft:falling_block"

// entityIDBase is far above the ids a server hands out to its own entities so
// that client side entities never collide with them.
const entityIDBase = 1 << 40

// Renderer turns visualisations into packets.
type Renderer struct {
	nextID atomic.Int64
}

// NewRenderer ...
func NewRenderer() *Renderer {
	r := &Renderer{}
	r.nextID.Store(entityIDBase)
	return r
}

// Particles spawns particle name at every point for v.
func (r *Renderer) Particles(v Viewer, world, name string, points []mgl64.Vec3) error {
	dim := dimensionOf(world)
	for _, p := range points {
		if err := v.WritePacket(&packet.SpawnParticleEffect{
			Dimension:      byte(dim),
			EntityUniqueID: -1,
			Position:       vec32(p),
			ParticleName:   name,
		}); err != nil {
			return err
		}
	}
	return nil
}

// FakeBlock makes the client of v display the block with runtimeID at pos
// without changing the world.
func (r *Renderer) FakeBlock(v Viewer, pos region.BlockPos, runtimeID uint32) error {
	return v.WritePacket(&packet.UpdateBlock{
		Position:          protocol.BlockPos{int32(pos[0]), int32(pos[1]), int32(pos[2])},
		NewBlockRuntimeID: runtimeID,
		Flags:             packet.BlockUpdateNetwork,
	})
}

// NewEntityID returns a unique id for a client side entity.
func (r *Renderer) NewEntityID() int64 {
	return r.nextID.Add(1)
}

// FallingBlock spawns a client side falling block entity with the id passed in
// the centre of pos. If label is not empty it is shown above the block.
func (r *Renderer) FallingBlock(v Viewer, id int64, pos region.BlockPos, runtimeID uint32, label string) error {
	meta := map[uint32]any{
		protocol.EntityDataKeyVariant: int32(runtimeID),
	}
	if label != "" {
		meta[protocol.EntityDataKeyName] = label
		meta[protocol.EntityDataKeyFlags] = int64(1 << protocol.EntityDataFlagAlwaysShowName)
	}
	p := pos.Vec3()
	return v.WritePacket(&packet.AddActor{
		EntityUniqueID:  id,
		EntityRuntimeID: uint64(id),
		EntityType:      fallingBlockEntity,
		Position:        vec32(p.Add(mgl64.Vec3{0.5, 0, 0.5})),
		EntityMetadata:  meta,
	})
}

// RemoveEntity removes a client side entity spawned earlier.
func (r *Renderer) RemoveEntity(v Viewer, id int64) error {
	return v.WritePacket(&packet.RemoveActor{EntityUniqueID: id})
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}
