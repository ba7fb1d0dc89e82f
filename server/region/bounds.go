package region

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ringSpacing is the vertical distance between the horizontal outlines drawn
// along the sides of a bounding box.
const ringSpacing = 2

// BoundingBox returns the points outlining the region. The outline covers the
// outer faces of the blocks at the corners, so the highest corner is extended
// by one block on the X and Z axis and the top edges lie on top of the highest
// blocks. Edges carry one point per block of length and rings are added every
// two blocks of height. BoundingBox returns nil if the region is not whole.
func (r *Region) BoundingBox() []mgl64.Vec3 {
	min, max, ok := r.Corners()
	if !ok {
		return nil
	}
	minX, minY, minZ := float64(min[0]), float64(min[1]), float64(min[2])
	maxX, maxZ := float64(max[0]+1), float64(max[2]+1)
	height := max[1] - min[1] + 1
	topY := minY + float64(height)

	corners := [4][2]float64{{minX, minZ}, {maxX, minZ}, {maxX, maxZ}, {minX, maxZ}}
	edge := func(i int, y float64) (mgl64.Vec3, mgl64.Vec3) {
		a, b := corners[i], corners[(i+1)%4]
		return mgl64.Vec3{a[0], y, a[1]}, mgl64.Vec3{b[0], y, b[1]}
	}

	var set pointSet
	for i := range corners {
		set.addAll(plotLine(edge(i, minY)))
		set.addAll(plotLine(edge(i, topY)))
		c := corners[i]
		set.addAll(plotLine(mgl64.Vec3{c[0], minY, c[1]}, mgl64.Vec3{c[0], topY, c[1]}))
	}
	for y := min[1] + ringSpacing; float64(y) < topY; y += ringSpacing {
		for i := range corners {
			set.addAll(plotLine(edge(i, float64(y))))
		}
	}
	return set.points
}

// plotLine returns evenly spaced points from a to b, both included, with one
// point per block of distance.
func plotLine(a, b mgl64.Vec3) []mgl64.Vec3 {
	dist := b.Sub(a).Len()
	n := int(dist) + 1
	if n == 1 {
		return []mgl64.Vec3{a}
	}
	points := make([]mgl64.Vec3, n)
	step := b.Sub(a).Mul(1 / float64(n-1))
	for i := range points {
		points[i] = a.Add(step.Mul(float64(i)))
	}
	points[n-1] = b
	return points
}

// pointSet collects points in insertion order, dropping points that round to
// one already present.
type pointSet struct {
	seen   map[[3]int64]struct{}
	points []mgl64.Vec3
}

func (s *pointSet) addAll(points []mgl64.Vec3) {
	if s.seen == nil {
		s.seen = make(map[[3]int64]struct{})
	}
	for _, p := range points {
		k := [3]int64{round(p[0]), round(p[1]), round(p[2])}
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		s.points = append(s.points, p)
	}
}

func round(f float64) int64 {
	return int64(math.Round(f * 1000))
}
