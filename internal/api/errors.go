package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/menta2k/photocard"
	"github.com/menta2k/photocard/pkg/coords"
	"github.com/menta2k/photocard/pkg/cropper"
	"github.com/menta2k/photocard/pkg/layout"
	"github.com/menta2k/photocard/pkg/normalizer"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/render"
)

// Error is an error with the HTTP status it is reported with
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

// NewError creates a coded error with a fixed message
func NewError(code int, msg string) error {
	return &Error{code, errors.New(msg)}
}

var errInternal = errors.New("internal server error")

var statusFor = []struct {
	target error
	code   int
}{
	{layout.ErrCardNotFound, http.StatusNotFound},
	{layout.ErrUnknownElement, http.StatusBadRequest},
	{layout.ErrEmptyCommit, http.StatusBadRequest},
	{coords.ErrInvalidContainer, http.StatusBadRequest},
	{coords.ErrNotResizable, http.StatusBadRequest},
	{cropper.ErrInvalidRegion, http.StatusBadRequest},
	{cropper.ErrNoImage, http.StatusBadRequest},
	{raster.ErrUnsupportedFormat, http.StatusBadRequest},
	{render.ErrInvalidViewport, http.StatusBadRequest},
	{normalizer.ErrDecode, http.StatusUnprocessableEntity},
	{photocard.ErrNoPhoto, http.StatusConflict},
	{render.ErrNotReady, http.StatusConflict},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{context.Canceled, http.StatusRequestTimeout},
}

// asError maps a pipeline error to a coded error. Render failures collapse
// to a single retryable message and unknown errors are not exposed.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, render.ErrRender) {
		return &Error{http.StatusInternalServerError, render.ErrRender}
	}
	for _, s := range statusFor {
		if errors.Is(err, s.target) {
			return &Error{s.code, err}
		}
	}
	return &Error{http.StatusInternalServerError, errInternal}
}
