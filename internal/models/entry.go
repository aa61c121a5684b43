// Package models defines the value types shared between the stores.
package models

import "time"

// Entry is one file found by a store listing.
type Entry struct {
	Name    string    `json:"name"`     // file name relative to the store root
	ID      string    `json:"id"`       // Name without the listed suffix
	ModTime time.Time `json:"mod_time"` // filesystem modification time
}
