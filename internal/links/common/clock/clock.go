package clock

import "time"

// Clock abstracts time so rule timestamps and snapshot ages are testable.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now().UTC()
}

// MockClock returns CurrentTime until advanced. Not safe for concurrent Advance.
type MockClock struct {
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
