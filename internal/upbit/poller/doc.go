// Package poller implements the periodic balance and price poller.
//
// The poller:
//   - Fetches balances and prices from the exchange once per interval
//   - Never has more than one fetch in flight; ticks arriving during a cycle are skipped
//   - Diffs prices against the previous cycle and publishes one UpdateEvent per cycle
//   - Aborts a failed cycle without touching the price store and reports it on Errors()
//   - Backs off exponentially (bounded) after consecutive failures
package poller
