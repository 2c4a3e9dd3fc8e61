package activity

import "errors"

// ErrInvalidEntry is returned by Record for entries missing required fields.
var ErrInvalidEntry = errors.New("activity: invalid entry")
