package camera

import "time"

type Settings struct {
	Address string
	// Timeout bounds one whole fetch. Zero leaves it to the transport.
	Timeout time.Duration
}
