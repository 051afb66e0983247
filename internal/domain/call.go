package domain

import "time"

// CallRecord summarises one ended call for archiving.
type CallRecord struct {
	CallID      string
	EndedAt     time.Time
	EndedReason string
	Turns       int
}
