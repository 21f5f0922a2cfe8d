package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Failure classes reported by Classify.
const (
	KindCanceled    = "canceled"
	KindTimeout     = "timeout"
	KindDNS         = "dns"
	KindDial        = "dial"
	KindTLS         = "tls"
	KindRateLimited = "rate_limited"
	KindClient      = "http_4xx"
	KindServer      = "http_5xx"
	KindUnknown     = "unknown"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify names the failure class of err for logs; nil yields "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return KindTLS
	}

	switch status := APIStatus(err); {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	}
	return KindUnknown
}

// APIStatus extracts the HTTP status of a Bot API error, 0 when err carries
// none. telebot renders unknown API errors as "description (code)", so the
// trailing parenthesised number is used as a last resort.
func APIStatus(err error) int {
	if err == nil {
		return 0
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var migrated tele.GroupError
	if errors.As(err, &migrated) {
		return http.StatusBadRequest
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndex(msg, "(")
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}

// Redact renders err with bot tokens masked; request URLs embed the token.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
