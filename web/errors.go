package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pderoovere/dimo-labeling/dataset"
)

// badRequestError is a request the client got wrong.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func newBadRequestError(format string, args ...interface{}) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// errNoSolver is returned by /pose when the server was started without a pose solver.
var errNoSolver = errors.New("no pose solver configured")

// statusCode maps an error to the HTTP status reported to the client.
func statusCode(err error) int {
	var (
		missing      *dataset.MissingAssetError
		inconsistent *dataset.InconsistentAnnotationError
		badRequest   *badRequestError
		syntax       *json.SyntaxError
		typeErr      *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, errNoSolver):
		return http.StatusNotImplemented
	case errors.As(err, &missing):
		return http.StatusNotFound
	case errors.As(err, &inconsistent), errors.As(err, &badRequest), errors.As(err, &syntax), errors.As(err, &typeErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
