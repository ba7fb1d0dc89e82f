// Package visual shows regions and single blocks to players using particles,
// fake block updates and client side entities.
package visual

import (
	"errors"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

var (
	// ErrAlreadyViewing is returned when a viewer is shown something it already
	// sees.
	ErrAlreadyViewing = errors.New("viewer already sees the region")
	// ErrNotViewing is returned when hiding something from a viewer that does
	// not see it.
	ErrNotViewing = errors.New("viewer does not see the region")
	// ErrIncomplete is returned when showing a region that has a corner unset.
	ErrIncomplete = errors.New("region is incomplete")
)

// Viewer is a player that visualisations are rendered to. It is typically
// backed by the connection of a player.
type Viewer interface {
	UUID() uuid.UUID
	// World returns the name of the world the viewer is in.
	World() string
	// Position returns the current position of the viewer.
	Position() mgl64.Vec3
	// WritePacket sends a packet to the client of the viewer.
	WritePacket(pk packet.Packet) error
}

// Dimension ids used in packets.
const (
	DimensionOverworld = iota
	DimensionNether
	DimensionEnd
)

// dimensionOf guesses the dimension of a world from its name.
func dimensionOf(world string) int32 {
	w := strings.ToLower(world)
	switch {
	case strings.HasSuffix(w, "nether"):
		return DimensionNether
	case strings.HasSuffix(w, "end"):
		return DimensionEnd
	}
	return DimensionOverworld
}
