package x11

import "testing"

func TestMonitorFor(t *testing.T) {
	monitors := []Monitor{
		{ID: 0, X: 0, Y: 0, Width: 1920, Height: 1080},
		{ID: 1, X: 1920, Y: 0, Width: 2560, Height: 1440},
	}
	tests := []struct {
		name string
		x, y int
		w, h int
		want int
	}{
		{"inside first", 100, 100, 800, 600, 0},
		{"inside second", 2000, 100, 800, 600, 1},
		{"mostly second", 1800, 0, 1000, 500, 1},
		{"mostly first", 1000, 0, 1000, 500, 0},
		{"offscreen", -5000, -5000, 10, 10, 0},
		{"zero sized center on second", 2500, 500, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonitorFor(monitors, tt.x, tt.y, tt.w, tt.h); got != tt.want {
				t.Fatalf("MonitorFor = %d, want %d", got, tt.want)
			}
		})
	}
	if got := MonitorFor(nil, 0, 0, 1, 1); got != -1 {
		t.Fatalf("expected -1 without monitors, got %d", got)
	}
}
