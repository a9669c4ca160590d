package gateway

import "fmt"

// ProviderError reports that the upstream provider could not be reached or
// replied with a transport-level failure. The gateway never retries; retry
// policy belongs to the caller.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
