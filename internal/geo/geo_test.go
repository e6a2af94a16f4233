package geo

import (
	"errors"
	"math"
	"testing"
)

func TestParseLatLon_Origin(t *testing.T) {
	point, err := ParseLatLon("0", "0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 {
		t.Errorf("expected X=0, got %f", coords.X)
	}
	if math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected Y=0, got %f", coords.Y)
	}
}

func TestParseLatLon_Antimeridian(t *testing.T) {
	point, err := ParseLatLon("0", "180")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	// half the Web Mercator world width
	if math.Abs(coords.X-20037508.342789244) > 0.01 {
		t.Errorf("expected X=20037508.34, got %f", coords.X)
	}
}

func TestParseLatLon_BangladeshPoint(t *testing.T) {
	// Dhaka area, roughly where the N1 starts
	point, err := ParseLatLon("23.7106", "90.4074")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X < 10.0e6 || coords.X > 10.1e6 {
		t.Errorf("projected X out of expected envelope: %f", coords.X)
	}
	if coords.Y < 2.70e6 || coords.Y > 2.74e6 {
		t.Errorf("projected Y out of expected envelope: %f", coords.Y)
	}
}

func TestParseLatLon_NotANumber(t *testing.T) {
	_, err := ParseLatLon("abc", "90.1")
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestParseLatLon_OutOfRange(t *testing.T) {
	if _, err := ParseLatLon("91", "0"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for latitude 91, got %v", err)
	}
	if _, err := ParseLatLon("23.7", "181"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for longitude 181, got %v", err)
	}
}

func TestParseLatLon_TrimsWhitespace(t *testing.T) {
	_, err := ParseLatLon(" 23.7106 ", " 90.4074 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
