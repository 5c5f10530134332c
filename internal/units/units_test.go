package units

import "testing"

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0.4, 0}, {0.5, 1}, {1.5, 2}, {2.5, 3}, {-0.5, -1}, {12.49, 12},
	}
	for _, c := range cases {
		if got := Round(c.in); got != c.want {
			t.Fatalf("Round(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMetersAndKm(t *testing.T) {
	if got := Meters(1.2346); got != 1235 {
		t.Fatalf("Meters(1.2346) = %d, want 1235", got)
	}
	if got := Km(1500); got != 1.5 {
		t.Fatalf("Km(1500) = %v, want 1.5", got)
	}
}

func TestTravelSeconds(t *testing.T) {
	// 36 km/h is 10 m/s
	if got := TravelSeconds(1000, 36); got != 100 {
		t.Fatalf("TravelSeconds = %d, want 100", got)
	}
	if got := TravelSeconds(1000, 0); got != 0 {
		t.Fatalf("TravelSeconds with zero speed = %d, want 0", got)
	}
	if got := EstimateSeconds(20, 40); got != 1800 {
		t.Fatalf("EstimateSeconds = %d, want 1800", got)
	}
}
