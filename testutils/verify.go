package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the tests of a package and fails if goroutines outlive them.
func VerifyTestMain(m goleak.TestingM) {
	goleak.VerifyTestMain(m,
		// net/http keeps idle keep-alive connections of httptest clients around briefly.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
