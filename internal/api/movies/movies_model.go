package movies

import (
	"errors"
	"fmt"
)

// The proxy collapses every upstream failure into one generic external
// response, but internally the cause classes stay distinguishable so logs
// and metrics keep their meaning.
var ErrUpstreamUnreachable = errors.New("upstream provider unreachable")
var ErrMalformedPayload = errors.New("malformed upstream payload")

// UpstreamStatusError reports a non-2xx answer from the provider.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream provider returned status %d", e.StatusCode)
}
