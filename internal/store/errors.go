package store

import "errors"

var (
	// ErrNodeNotFound is returned when a camera node row does not exist.
	ErrNodeNotFound = errors.New("store: node not found")

	// ErrInvalidNode is returned for nodes without an id or vendor family.
	ErrInvalidNode = errors.New("store: invalid node")
)
