package model

import "time"

// Session groups the transactions extracted from one or more statement
// uploads so they can be re-queried, analyzed, and exported later. Sessions
// are the unit of persistence; the analytics endpoints also accept inline
// transactions for callers that keep state client-side.
type Session struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	SourceFiles []string  `json:"sourceFiles,omitempty"`
	TxCount     int       `json:"txCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
