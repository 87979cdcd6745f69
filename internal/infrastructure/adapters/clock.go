package adapters

import (
	"time"

	"ifsync/internal/domain/interfaces"
)

// RealClock is the wall clock
type RealClock struct{}

func NewRealClock() interfaces.Clock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}
