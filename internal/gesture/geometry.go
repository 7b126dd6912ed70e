package gesture

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/detector"
)

// project drops the depth component of a landmark.
func project(p detector.Point3D) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// orientation returns +1 when a, b, c turn counter-clockwise, -1 when they turn
// clockwise and 0 when the cross product (b-a) × (c-a) is within eps of zero.
func orientation(a, b, c r2.Vec, eps float64) int {
	cross := r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
	switch {
	case cross > eps:
		return 1
	case cross < -eps:
		return -1
	default:
		return 0
	}
}

// SegmentsIntersect reports whether segment AB properly crosses segment CD:
// A and B lie strictly on opposite sides of line CD, and C and D lie strictly
// on opposite sides of line AB.
//
// Collinear, touching and zero-length configurations report false. eps widens
// the band treated as collinear; 0 gives the exact test.
func SegmentsIntersect(a, b, c, d r2.Vec, eps float64) bool {
	o1 := orientation(c, d, a, eps)
	o2 := orientation(c, d, b, eps)
	o3 := orientation(a, b, c, eps)
	o4 := orientation(a, b, d, eps)
	return o1*o2 < 0 && o3*o4 < 0
}

// distance2D is the Euclidean distance between two landmarks in the image plane.
func distance2D(p, q detector.Point3D) float64 {
	return r2.Norm(r2.Sub(project(p), project(q)))
}
