package services

import "errors"

// Sentinel errors returned by the domain services
var (
	ErrEmptyTestName        = errors.New("test name is empty")
	ErrDuplicateTest        = errors.New("duplicate test name")
	ErrDuplicateTarget      = errors.New("duplicate build target")
	ErrDuplicateArchiveName = errors.New("archive name is not unique")
	ErrInvalidArchiveName   = errors.New("invalid archive name")
	ErrInvalidVersion       = errors.New("invalid semantic version")
	ErrInvalidTemplate      = errors.New("invalid template")
)
