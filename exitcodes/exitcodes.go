// Package exitcodes defines the exit codes used by op-matrix.
package exitcodes

// * Success (0): every item passed, was blocked, or was never started
// * TestFailure (1): at least one item failed after all retry rounds
// * RuntimeErr (2): configuration errors and other failures that stopped the run
const (
	Success     = 0 // No failed items
	TestFailure = 1 // Item failures
	RuntimeErr  = 2 // Configuration or runtime errors
)
