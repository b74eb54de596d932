package services

import (
	"testing"
	"time"
)

func TestCheckinWindowOpen(t *testing.T) {
	start := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)
	window := 30 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before window", start.Add(-2 * time.Hour), false},
		{"one second before opening", start.Add(-window).Add(-time.Second), false},
		{"exactly at opening", start.Add(-window), true},
		{"inside window", start.Add(-10 * time.Minute), true},
		{"one second before start", start.Add(-time.Second), true},
		{"exactly at start", start, false},
		{"after start", start.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckinWindowOpen(tt.now, start, window); got != tt.want {
				t.Errorf("CheckinWindowOpen(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestCheckinOpensAt(t *testing.T) {
	start := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)
	got := CheckinOpensAt(start, 30*time.Minute)
	want := time.Date(2026, 5, 10, 17, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CheckinOpensAt = %v, want %v", got, want)
	}
}

func TestUndoWindowExpired(t *testing.T) {
	checkedInAt := time.Date(2026, 5, 10, 17, 40, 0, 0, time.UTC)
	window := 15 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after check-in", checkedInAt, false},
		{"inside window", checkedInAt.Add(4 * time.Minute), false},
		{"exactly at deadline", checkedInAt.Add(window), false},
		{"one second past deadline", checkedInAt.Add(window).Add(time.Second), true},
		{"long after", checkedInAt.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UndoWindowExpired(tt.now, checkedInAt, window); got != tt.want {
				t.Errorf("UndoWindowExpired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestUndoDeadline(t *testing.T) {
	checkedInAt := time.Date(2026, 5, 10, 17, 40, 0, 0, time.UTC)
	got := UndoDeadline(checkedInAt, 15*time.Minute)
	want := time.Date(2026, 5, 10, 17, 55, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("UndoDeadline = %v, want %v", got, want)
	}
}
