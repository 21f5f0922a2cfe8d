// Package netutil classifies transport errors seen while talking to the
// Telegram Bot API.
package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// transient are low level failures that a fresh attempt usually survives.
var transient = []error{io.ErrUnexpectedEOF, syscall.ECONNRESET, syscall.ECONNREFUSED}

// ShouldRetry reports whether another attempt of the failed call may
// succeed: dial failures, timeouts and dropped connections. Cancellation
// and API answers are final.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	for _, target := range transient {
		if errors.Is(err, target) {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
