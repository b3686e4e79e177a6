package geometry

import (
	"fmt"
	"math"
)

// Point is a position in PDF user space.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned box in PDF user space (origin bottom-left, units in points).
// X0/Y0 is the lower-left corner and X1/Y1 the upper-right one.
type Rect struct {
	X0 float64 `json:"x0" parquet:"x0"`
	Y0 float64 `json:"y0" parquet:"y0"`
	X1 float64 `json:"x1" parquet:"x1"`
	Y1 float64 `json:"y1" parquet:"y1"`
}

// NewRect builds a normalized rectangle from two opposite corners.
func NewRect(x0, y0, x1, y1 float64) Rect {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// BoundingBox returns the smallest rectangle containing every point.
func BoundingBox(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X0: minX, Y0: minY, X1: maxX, Y1: maxY}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Area is zero for degenerate rectangles.
func (r Rect) Area() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.Width() * r.Height()
}

// IsEmpty reports whether the rectangle encloses no area.
func (r Rect) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: (r.X0 + r.X1) / 2, Y: (r.Y0 + r.Y1) / 2}
}

// Intersect returns the overlap of r and o, empty when they are disjoint.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		X0: math.Max(r.X0, o.X0),
		Y0: math.Max(r.Y0, o.Y0),
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Intersects reports whether r and o overlap with a positive area.
func (r Rect) Intersects(o Rect) bool {
	return !r.Intersect(o).IsEmpty()
}

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	if r == (Rect{}) {
		return o
	}
	if o == (Rect{}) {
		return r
	}
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Contains reports whether o lies entirely within r, with tolerance eps.
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.X0 >= r.X0-eps && o.Y0 >= r.Y0-eps && o.X1 <= r.X1+eps && o.Y1 <= r.Y1+eps
}

// ContainsPoint reports whether p lies inside r (edges included).
func (r Rect) ContainsPoint(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// Clip restricts r to the bounds of box.
func (r Rect) Clip(box Rect) Rect {
	return r.Intersect(box)
}

// ApproxEqual compares two rectangles coordinate by coordinate.
func (r Rect) ApproxEqual(o Rect, eps float64) bool {
	return math.Abs(r.X0-o.X0) <= eps &&
		math.Abs(r.Y0-o.Y0) <= eps &&
		math.Abs(r.X1-o.X1) <= eps &&
		math.Abs(r.Y1-o.Y1) <= eps
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", r.X0, r.Y0, r.X1, r.Y1)
}

// Matrix is a PDF transformation matrix [a b c d e f] applied to row vectors.
type Matrix [6]float64

// Identity returns the identity transformation.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a scaling by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Transform applies the matrix to a point.
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// TransformRect maps all four corners of r and returns their bounding box.
func (m Matrix) TransformRect(r Rect) Rect {
	return BoundingBox(
		m.Transform(Point{X: r.X0, Y: r.Y0}),
		m.Transform(Point{X: r.X1, Y: r.Y0}),
		m.Transform(Point{X: r.X0, Y: r.Y1}),
		m.Transform(Point{X: r.X1, Y: r.Y1}),
	)
}
