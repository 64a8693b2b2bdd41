package models

import "time"

// PublicKey is the directory record mapping a username to its PEM-encoded
// public key material.
type PublicKey struct {
	Username  string
	PEM       string
	UpdatedAt time.Time
}
