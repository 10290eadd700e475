// Package errors re-exports github.com/cockroachdb/errors and adds the
// transient/permanent marks the job pipeline uses to decide between retry and
// dead-letter.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	WithHint     = crdb.WithHint
	WithDetail   = crdb.WithDetail
	Mark         = crdb.Mark
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
)

var (
	ErrNotFound        = New("not found")
	ErrUnauthorized    = New("unauthorized")
	ErrInvalidArgument = New("invalid argument")

	// ErrTransient marks failures worth retrying (timeouts, 429, 5xx, network).
	ErrTransient = New("transient failure")
	// ErrPermanent marks failures that will not succeed on retry.
	ErrPermanent = New("permanent failure")
)

func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrTransient)
}

func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrPermanent)
}

func IsTransient(err error) bool {
	return err != nil && Is(err, ErrTransient) && !Is(err, ErrPermanent)
}
