package ledger

import "time"

// Clock es el reloj simulado de una única simulación. Cada tarea tiene el suyo;
// nunca se comparte entre goroutines.
type Clock struct {
	now time.Time
}

// NewClock crea un reloj parado en start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now devuelve la hora simulada actual.
func (c *Clock) Now() time.Time {
	return c.now
}

// NextMinute avanza exactamente un minuto y devuelve la nueva hora.
func (c *Clock) NextMinute() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}
