package geo

import (
	"math"
	"testing"
)

var (
	campusCenter = Point{Lat: 15.39285, Lon: 75.025185}
	nearPoint    = Point{Lat: 15.39290, Lon: 75.025190}
	farPoint     = Point{Lat: 15.39400, Lon: 75.02600}
)

func TestDistanceIdentity(t *testing.T) {
	points := []Point{
		{0, 0},
		campusCenter,
		{-89.9, 179.9},
		{45.0, -120.5},
	}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	ab := Distance(campusCenter, farPoint)
	ba := Distance(farPoint, campusCenter)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("Distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestDistanceKnownScales(t *testing.T) {
	// ~6m and ~130m per the surveyed campus coordinates.
	if d := Distance(campusCenter, nearPoint); d < 1 || d > 10 {
		t.Errorf("near point distance = %v, want ~6m", d)
	}
	if d := Distance(campusCenter, farPoint); d < 100 || d > 160 {
		t.Errorf("far point distance = %v, want ~130m", d)
	}
}

func TestCircleContains(t *testing.T) {
	fence := Circle{Center: campusCenter, Radius: 20}

	if !fence.Contains(Position{Point: nearPoint}) {
		t.Error("point ~6m from center should be inside a 20m fence")
	}
	if fence.Contains(Position{Point: farPoint}) {
		t.Error("point ~130m from center should be outside a 20m fence")
	}
}

func TestCircleRadiusMonotonic(t *testing.T) {
	pos := Position{Point: nearPoint}
	inside := false
	for radius := 1.0; radius <= 200; radius += 1 {
		now := Circle{Center: campusCenter, Radius: radius}.Contains(pos)
		if inside && !now {
			t.Fatalf("radius %v: point flipped from inside to outside", radius)
		}
		inside = now
	}
	if !inside {
		t.Error("point should be inside at 200m radius")
	}
}

func TestBox3DContains(t *testing.T) {
	room := Box3D{
		Corners: []Point{
			{15.4007844, 75.0258996},
			{15.4002653, 75.0158310},
			{15.3897100, 75.0167238},
			{15.3856518, 75.0246933},
		},
		MinAlt: 500,
		MaxAlt: 750,
	}

	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"inside with valid altitude", Position{Point: Point{15.3950, 75.0200}, Altitude: 600}, true},
		{"inside footprint below band", Position{Point: Point{15.3950, 75.0200}, Altitude: 100}, false},
		{"inside footprint above band", Position{Point: Point{15.3950, 75.0200}, Altitude: 900}, false},
		{"outside footprint", Position{Point: Point{15.5000, 75.0200}, Altitude: 600}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := room.Contains(tt.pos); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestBox3DEmpty(t *testing.T) {
	if (Box3D{}).Contains(Position{Altitude: 0}) {
		t.Error("empty box should contain nothing")
	}
}
