package clock

import (
	"sync"
	"testing"
	"time"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	actual := Real{}.Now()
	after := time.Now()

	if actual.Before(before) || actual.After(after) {
		t.Errorf("Real.Now() = %v, expected between %v and %v", actual, before, after)
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		drive    func(c *Fake)
		expected time.Time
	}{
		{name: "fixed", drive: func(*Fake) {}, expected: start},
		{name: "advance", drive: func(c *Fake) { c.Advance(2 * time.Hour) }, expected: start.Add(2 * time.Hour)},
		{name: "advances_accumulate", drive: func(c *Fake) {
			c.Advance(time.Hour)
			c.Advance(30 * time.Minute)
		}, expected: start.Add(90 * time.Minute)},
		{name: "negative_advance", drive: func(c *Fake) { c.Advance(-time.Hour) }, expected: start.Add(-time.Hour)},
		{name: "set_backwards", drive: func(c *Fake) { c.Set(start.AddDate(-1, 0, 0)) }, expected: start.AddDate(-1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFake(start)
			tt.drive(c)
			if got := c.Now(); !got.Equal(tt.expected) {
				t.Errorf("Now() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFake_ConcurrentAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Minute)
			_ = c.Now()
		}()
	}
	wg.Wait()

	if got := c.Now(); !got.Equal(start.Add(10 * time.Minute)) {
		t.Errorf("Now() = %v, want %v", got, start.Add(10*time.Minute))
	}
}
