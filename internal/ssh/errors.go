package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ConnectError wraps an SSH connection error with a user-friendly hint.
type ConnectError struct {
	Host      string
	Err       error
	Hint      string
	Retryable bool
}

func (e *ConnectError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (hint: %s)", e.Err, e.Hint)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Transient reports whether a fresh connection attempt may succeed.
func (e *ConnectError) Transient() bool {
	return e.Retryable
}

type hintRule struct {
	match func(err error, msg string) bool
	hint  func(host string) string
}

func contains(subs ...string) func(error, string) bool {
	return func(_ error, msg string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
}

func fixed(s string) func(string) string {
	return func(string) string { return s }
}

// Order matters: DNS errors arrive wrapped in *net.OpError and auth
// failures mention "handshake failed".
var hintRules = []hintRule{
	{
		match: func(_ error, msg string) bool {
			return strings.Contains(msg, "permission denied") && strings.Contains(msg, "key")
		},
		hint: fixed("check SSH key permissions (chmod 600)"),
	},
	{
		match: func(err error, msg string) bool {
			var dnsErr *net.DNSError
			return errors.As(err, &dnsErr) || strings.Contains(msg, "no such host")
		},
		hint: fixed("verify hostname is correct"),
	},
	{
		match: func(err error, msg string) bool {
			var keyErr *knownhosts.KeyError
			return errors.As(err, &keyErr) && len(keyErr.Want) > 0
		},
		hint: func(host string) string { return fmt.Sprintf("remove old key with: ssh-keygen -R %s", host) },
	},
	{
		match: contains("no known_hosts", "knownhosts"),
		hint:  func(host string) string { return fmt.Sprintf("use --insecure or connect once with: ssh %s", host) },
	},
	{
		match: func(err error, msg string) bool {
			var authErr *ssh.ServerAuthError
			return errors.As(err, &authErr) ||
				contains("unable to authenticate", "no supported methods remain", "handshake failed")(err, msg)
		},
		hint: func(host string) string { return fmt.Sprintf("verify your SSH key or agent. Try: ssh -v %s", host) },
	},
	{
		match: contains("connection refused"),
		hint:  fixed("verify SSH daemon is running on the target host"),
	},
	{
		match: contains("i/o timeout", "no route to host"),
		hint:  fixed("check the host is up and port 22 is reachable"),
	},
}

// WrapConnectError wraps an SSH connection error with a friendly hint and
// classifies it as transient or permanent.
func WrapConnectError(host string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return err
	}

	msg := err.Error()
	wrapped := &ConnectError{Host: host, Err: err, Retryable: isTransient(err)}
	for _, r := range hintRules {
		if r.match(err, msg) {
			wrapped.Hint = r.hint(host)
			break
		}
	}
	return wrapped
}

// isTransient reports whether err looks like a network hiccup that a fresh
// dial might get past. Authentication, host key and DNS failures are
// permanent, as is cancellation.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary
	}
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return false
	}
	var authErr *ssh.ServerAuthError
	if errors.As(err, &authErr) {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "known_hosts") {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout")
}
