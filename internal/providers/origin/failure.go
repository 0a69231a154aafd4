package origin

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
)

// Failure is a transient delivery failure. It is rendered as an error
// document rather than returned to the visitor.
type Failure struct {
	Reason  types.Reason
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	switch {
	case f.Status != 0:
		return fmt.Sprintf("%s: upstream status %d", f.Reason, f.Status)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	default:
		return string(f.Reason)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func networkFailure(err error) *Failure {
	if isTimeout(err) {
		return &Failure{Reason: types.ReasonProxyTimeout, Message: types.ReasonProxyTimeout.Message(), Err: err}
	}
	return &Failure{Reason: types.ReasonProxyError, Message: types.ReasonProxyError.Message(), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// countsAgainstOrigin reports whether err says the origin itself is unreachable.
// HTTP errors and content problems mean it answered.
func countsAgainstOrigin(err error) bool {
	f, ok := AsFailure(err)
	if !ok {
		return err != nil
	}
	return f.Reason == types.ReasonProxyTimeout || f.Reason == types.ReasonProxyError
}
