// Package exitcodes defines the standard exit codes used by nutest.
package exitcodes

// Exit code constants used by nutest:
//
// * Success (0): all tests passed, or --list completed
// * TestFailure (1): one or more tests failed
// * RuntimeErr (2): discovery, scan or configuration errors
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
