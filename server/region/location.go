package region

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-gl/mathgl/mgl64"
)

// Location is a position in a named world.
type Location struct {
	World string
	Vec   mgl64.Vec3
}

// Loc is a shorthand for creating a Location.
func Loc(world string, x, y, z float64) Location {
	return Location{World: world, Vec: mgl64.Vec3{x, y, z}}
}

// Block returns the position of the block the location is in.
func (l Location) Block() BlockPos {
	return BlockPos{int(math.Floor(l.Vec[0])), int(math.Floor(l.Vec[1])), int(math.Floor(l.Vec[2]))}
}

// Distance returns the distance between two locations. Locations in different
// worlds are infinitely far apart.
func (l Location) Distance(o Location) float64 {
	if l.World != o.World {
		return math.Inf(1)
	}
	return l.Vec.Sub(o.Vec).Len()
}

// String returns the location in the "world x y z" form read by ParseLocation.
func (l Location) String() string {
	return l.World + " " + formatFloat(l.Vec[0]) + " " + formatFloat(l.Vec[1]) + " " + formatFloat(l.Vec[2])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseLocation parses a location in the "world x y z" form. The last three
// fields are the coordinates, so world names may contain spaces.
func ParseLocation(s string) (Location, error) {
	rest := strings.TrimSpace(s)
	var (
		vec    mgl64.Vec3
		fields [3]string
	)
	for i := 2; i >= 0; i-- {
		j := strings.LastIndexFunc(rest, unicode.IsSpace)
		if j == -1 {
			return Location{}, fmt.Errorf("%w: expected \"world x y z\", got %q", ErrInvalidLocation, s)
		}
		fields[i] = rest[j+1:]
		rest = strings.TrimRightFunc(rest[:j], unicode.IsSpace)
	}
	if rest == "" {
		return Location{}, fmt.Errorf("%w: expected \"world x y z\", got %q", ErrInvalidLocation, s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Location{}, fmt.Errorf("%w: bad coordinate %q", ErrInvalidLocation, f)
		}
		vec[i] = v
	}
	return Location{World: rest, Vec: vec}, nil
}

// BlockPos is the integer position of a block.
type BlockPos [3]int

// X ...
func (p BlockPos) X() int { return p[0] }

// Y ...
func (p BlockPos) Y() int { return p[1] }

// Z ...
func (p BlockPos) Z() int { return p[2] }

// Vec3 returns the position of the lowest corner of the block.
func (p BlockPos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// Vec3Centre returns the position of the centre of the block.
func (p BlockPos) Vec3Centre() mgl64.Vec3 {
	return p.Vec3().Add(mgl64.Vec3{0.5, 0.5, 0.5})
}

// Add returns p offset by o.
func (p BlockPos) Add(o BlockPos) BlockPos {
	return BlockPos{p[0] + o[0], p[1] + o[1], p[2] + o[2]}
}

// String ...
func (p BlockPos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p[0], p[1], p[2])
}
