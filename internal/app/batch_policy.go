package app

import "github.com/bft-labs/tracebeacon/internal/domain"

// Default batch sizing.
const (
	DefaultMinNumberOfEvents = 40
	DefaultMaxNumberOfEvents = 100

	// Byte budget for GET beacons. Some browsers cap URLs near 2048 characters.
	DefaultMinLength = 1700
	DefaultMaxLength = 2000
)

// BatchPolicy decides how many queued events form the next batch.
type BatchPolicy interface {
	// Cut returns the number of events to take from the front of queue,
	// or 0 if no batch should be sent yet. force is set by Flush.
	Cut(queue []domain.Event, force bool) int

	// MaxLength is the payload ceiling in characters, 0 if the policy has none.
	MaxLength() int
}

// CountPolicy batches by number of events.
type CountPolicy struct {
	Min int
	Max int

	// MaxChars is reported as MaxLength. Count batching never enforces it.
	MaxChars int
}

// Cut implements BatchPolicy.
func (p CountPolicy) Cut(queue []domain.Event, force bool) int {
	n := len(queue)
	if p.Max > 0 && n > p.Max {
		n = p.Max
	}
	if n == 0 {
		return 0
	}
	if n >= p.Min || force {
		return n
	}
	return 0
}

// MaxLength implements BatchPolicy.
func (p CountPolicy) MaxLength() int { return p.MaxChars }

// LengthPolicy batches by the length of the resulting GET URL.
type LengthPolicy struct {
	BaseURL string
	Min     int
	Max     int

	// oversize is called when the first queued event alone exceeds Max.
	oversize func(ev domain.Event, length int)
}

// Cut implements BatchPolicy. It takes the longest prefix whose URL stays
// below Max; the batch waits for more events while the URL is shorter than
// Min unless forced. An event too large to fit on its own is sent alone.
func (p LengthPolicy) Cut(queue []domain.Event, force bool) int {
	total := len(p.BaseURL) + 1
	pairs := 0
	n := 0
	for i, ev := range queue {
		l, c := queryLength(ev, i)
		next := total + l
		if pairs > 0 && c > 0 {
			next += c // '&' before each new pair
		} else if c > 1 {
			next += c - 1
		}
		if next >= p.Max {
			if i == 0 {
				if p.oversize != nil {
					p.oversize(ev, next)
				}
				return 1
			}
			break
		}
		total = next
		pairs += c
		n++
	}
	if n == 0 {
		return 0
	}
	if !force && total < p.Min {
		return 0
	}
	return n
}

// MaxLength implements BatchPolicy.
func (p LengthPolicy) MaxLength() int { return p.Max }
