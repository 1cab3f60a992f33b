package domain

import "errors"

// ErrUniqueViolation is returned by repositories when an insert collides with
// an existing unique key (user email, wallet owner).
var ErrUniqueViolation = errors.New("unique constraint violation")
