package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh/knownhosts"
)

func TestWrapConnectError_ConnectionRefused(t *testing.T) {
	err := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: fmt.Errorf("connection refused"),
	}
	wrapped := WrapConnectError("myhost", err)
	ce, ok := wrapped.(*ConnectError)
	if !ok {
		t.Fatalf("expected *ConnectError, got %T", wrapped)
	}
	if !strings.Contains(ce.Hint, "SSH daemon") {
		t.Errorf("hint = %q, want mention of SSH daemon", ce.Hint)
	}
}

func TestWrapConnectError_DNSFailure(t *testing.T) {
	err := &net.DNSError{
		Err:  "no such host",
		Name: "badhost",
	}
	wrapped := WrapConnectError("badhost", err)
	ce, ok := wrapped.(*ConnectError)
	if !ok {
		t.Fatalf("expected *ConnectError, got %T", wrapped)
	}
	if !strings.Contains(ce.Hint, "hostname") {
		t.Errorf("hint = %q, want mention of hostname", ce.Hint)
	}
}

func TestWrapConnectError_AuthFailure(t *testing.T) {
	err := fmt.Errorf("ssh: unable to authenticate")
	wrapped := WrapConnectError("myhost", err)
	ce, ok := wrapped.(*ConnectError)
	if !ok {
		t.Fatalf("expected *ConnectError, got %T", wrapped)
	}
	if !strings.Contains(ce.Hint, "SSH key") {
		t.Errorf("hint = %q, want mention of SSH key", ce.Hint)
	}
}

func TestWrapConnectError_KnownHostsMissing(t *testing.T) {
	err := fmt.Errorf("no known_hosts file found at /home/user/.ssh/known_hosts")
	wrapped := WrapConnectError("myhost", err)
	ce, ok := wrapped.(*ConnectError)
	if !ok {
		t.Fatalf("expected *ConnectError, got %T", wrapped)
	}
	if !strings.Contains(ce.Hint, "--insecure") {
		t.Errorf("hint = %q, want mention of --insecure", ce.Hint)
	}
}

func TestWrapConnectError_Nil(t *testing.T) {
	if err := WrapConnectError("host", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrapConnectError_Unknown(t *testing.T) {
	err := fmt.Errorf("some random error")
	wrapped := WrapConnectError("host", err)
	ce, ok := wrapped.(*ConnectError)
	if !ok {
		t.Fatalf("expected *ConnectError, got %T", wrapped)
	}
	if ce.Hint != "" {
		t.Errorf("hint = %q, want none", ce.Hint)
	}
	if wrapped.Error() != "some random error" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if ce.Transient() {
		t.Error("unknown errors are not retried")
	}
}

func TestWrapConnectError_AlreadyWrapped(t *testing.T) {
	inner := &ConnectError{Host: "a", Err: errors.New("x"), Hint: "h"}
	outer := fmt.Errorf("connect: %w", inner)
	if got := WrapConnectError("a", outer); got != outer {
		t.Errorf("already wrapped error should pass through, got %v", got)
	}
}

func TestWrapConnectError_HintInMessage(t *testing.T) {
	err := WrapConnectError("myhost", errors.New("dial tcp 10.0.0.1:22: connect: connection refused"))
	want := "dial tcp 10.0.0.1:22: connect: connection refused (hint: verify SSH daemon is running on the target host)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", fmt.Errorf("handshake: %w", io.EOF), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"net op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"timeout text", errors.New("dial tcp: i/o timeout"), true},
		{"dns", &net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "x"}}, false},
		{"temporary dns", &net.DNSError{Err: "server misbehaving", Name: "x", IsTemporary: true}, true},
		{"auth", errors.New("ssh: handshake failed: ssh: unable to authenticate"), false},
		{"host key mismatch", &knownhosts.KeyError{Want: []knownhosts.KnownKey{{}}}, false},
		{"missing known_hosts", errors.New("no known_hosts file found at /x"), false},
		{"cancelled", fmt.Errorf("dial: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"other", errors.New("something else"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTransient(tc.err); got != tc.want {
				t.Errorf("isTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
