package gateways

import "errors"

var (
	// ErrUnknownPackageManager is returned for distributions without a known package manager
	ErrUnknownPackageManager = errors.New("unknown package manager")
	// ErrChecksumMismatch is returned when a file does not match its manifest entry
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrBinaryNotFound is returned when a build did not produce the expected output
	ErrBinaryNotFound = errors.New("build output not found")
)
