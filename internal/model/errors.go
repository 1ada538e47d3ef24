package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies failures of calls against the remote service.
type ErrorKind string

const (
	// KindNetwork: the request never reached the server or the response was lost.
	KindNetwork ErrorKind = "network"
	// KindServerRejected: the server answered with an error response.
	KindServerRejected ErrorKind = "server_rejected"
	// KindUnknown: anything else, including malformed success responses.
	KindUnknown ErrorKind = "unknown"
	// KindClientMisuse: the caller asked for something the core refuses locally.
	KindClientMisuse ErrorKind = "client_misuse"
)

// RemoteError is the structured error delivered for failed remote calls.
type RemoteError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 when no response was received
	Code    string // error code from the response envelope, if any
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unclassified context and net errors count as network
// failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	var netErr net.Error
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}
