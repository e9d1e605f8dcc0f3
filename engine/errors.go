package engine

import "errors"

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

// ErrEmptyBatch is returned for appends that carry no records.
var ErrEmptyBatch = errors.New("empty batch")

// ErrInvalidWindow is returned for reads with an empty or inverted window.
var ErrInvalidWindow = errors.New("invalid read window")
