package domain

import (
	"errors"
	"fmt"
)

// Ordering anomalies. These are absorbed by the caller (logged, never fatal):
// the relay delivers at-least-once and the two sides race, so stale and
// duplicate messages are expected in normal operation.
var (
	ErrInvalidTransition = errors.New("duocall: operation invalid for current negotiation state")
	ErrUnexpectedOffer   = errors.New("duocall: offer received after answering began")
	ErrUnexpectedAnswer  = errors.New("duocall: answer received outside offer-sent state")
)

// TransportError is a fatal media-engine failure. Unlike the ordering
// anomalies above it ends the session: the negotiator moves to Failed and
// the application must tear down and start over.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("duocall: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
