package gcra

import "errors"

// ErrInvalidParameters is returned when max_burst, count_per_period, or
// period is not positive.
var ErrInvalidParameters = errors.New("gcra: max_burst, count_per_period and period must be positive")

// ErrNegativeQuantity is returned when the requested quantity is negative.
var ErrNegativeQuantity = errors.New("gcra: quantity must not be negative")

// ErrStoreContention is returned when the store refuses the engine's write
// on every one of maxCASAttempts attempts.
var ErrStoreContention = errors.New("gcra: store did not accept the update after repeated attempts")
