// Package models holds the persisted server-side entities.
package models

import "time"

// Envelope is one encrypted message record. Once persisted it is never
// mutated or deleted; ID order is the canonical history order.
type Envelope struct {
	ID            int64
	FromUser      string
	ToUser        string
	IVB64         string
	CiphertextB64 string
	EncKeyToB64   string
	EncKeyFromB64 string
	CreatedAt     time.Time
}
