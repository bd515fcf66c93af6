package actor

import "errors"

// ErrUnavailable is returned to a caller whose request could not be
// delivered because the actor's inbox is closed (the actor has shut down).
var ErrUnavailable = errors.New("actor: rate limiter unavailable")
