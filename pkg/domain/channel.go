package domain

import "time"

// Channel is a named value served by the archiver feed.
type Channel struct {
	Name      string    `json:"name"`
	Value     any       `json:"value,omitempty"`
	Timestamp time.Time `json:"tstamp,omitempty"`
}
