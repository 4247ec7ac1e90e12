package model

import "fmt"

// AdapterError reports a failed exchange call. The cycle that issued it is aborted and retried on the next tick.
type AdapterError struct {
	Op  string // "fetch_balances", "fetch_prices", "list_symbols"
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("exchange %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
