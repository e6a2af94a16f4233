package sim

import (
	"strconv"
	"sync"
)

// TruckCounter issues sequential truck names. Every Simulation owns its own
// counter, so numbering restarts at Truck0 for each run.
type TruckCounter struct {
	mu sync.Mutex
	v  int
}

// Next returns the next truck name and advances the sequence.
func (c *TruckCounter) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := "Truck" + strconv.Itoa(c.v)
	c.v++
	return name
}

// Value returns how many names have been issued.
func (c *TruckCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}
