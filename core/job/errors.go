package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hlsladder/storage"
)

// Failure markers. Every error a job reports carries exactly one of them.
var (
	ErrSourceNotFound      = errors.New("source not found")
	ErrTransientIO         = errors.New("transient io")
	ErrEncodeFailure       = errors.New("encode failure")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrVerificationFailure = errors.New("verification failure")
)

var markers = []error{
	ErrSourceNotFound,
	ErrTransientIO,
	ErrEncodeFailure,
	ErrPermissionDenied,
	ErrVerificationFailure,
}

// Wrap tags err with marker and a stage/message context.
func Wrap(marker error, stage, message string, err error) error {
	detail := strings.TrimSpace(stage)
	if message = strings.TrimSpace(message); message != "" {
		if detail != "" {
			detail += ": "
		}
		detail += message
	}
	if marker == nil {
		marker = ErrTransientIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the marker carried by err, or nil.
func Kind(err error) error {
	for _, m := range markers {
		if errors.Is(err, m) {
			return m
		}
	}
	return nil
}

// Retryable reports whether a failed attempt may be redone.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch Kind(err) {
	case ErrSourceNotFound, ErrPermissionDenied:
		return false
	default:
		return true
	}
}

// storageErr classifies a gateway error.
func storageErr(stage, message string, err error) error {
	switch {
	case errors.Is(err, storage.ErrPermissionDenied):
		return Wrap(ErrPermissionDenied, stage, message, err)
	default:
		return Wrap(ErrTransientIO, stage, message, err)
	}
}
