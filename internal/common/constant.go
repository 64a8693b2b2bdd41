package common

// Size bounds for base64-encoded packet fields. Packets exceeding any of
// these are dropped before persistence to cap storage growth.
const (
	MaxIVB64Len         = 200
	MaxCiphertextB64Len = 50000
	MaxWrappedKeyB64Len = 10000
)

// MaxUsernameLen matches the width of the from_user/to_user columns.
const MaxUsernameLen = 50

// DefaultHistoryLimit is the number of most recent envelopes replayed to a
// freshly connected session.
const DefaultHistoryLimit = 50
