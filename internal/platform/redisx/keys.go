package redisx

import "time"

const (
	// Settled order snapshot: payments:order:{code} -> JSON
	KeySettledOrder = "payments:order:%d"
)

var (
	TTLSettledOrder = 10 * time.Minute
)
