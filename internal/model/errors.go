package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a configuration or request is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRootfsMissing is returned when the target rootfs directory does not
	// exist or is not a directory.
	ErrRootfsMissing = errors.New("rootfs directory missing")
	// ErrBackendUnavailable is returned when the isolation backend executable
	// is not installed and cannot be downloaded for this architecture.
	ErrBackendUnavailable = errors.New("isolation backend unavailable")
)
