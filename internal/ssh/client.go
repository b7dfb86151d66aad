package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	sshconfig "github.com/kevinburke/ssh_config"

	"github.com/agent462/corral/internal/pathutil"
)

// ClientConfig holds options for creating an SSH client.
type ClientConfig struct {
	// User overrides the SSH username. If empty, resolved from
	// ~/.ssh/config or the current OS user.
	User string

	// Port overrides the SSH port. If zero, resolved from
	// ~/.ssh/config or defaults to 22.
	Port int

	// IdentityFiles lists explicit private key paths to try.
	// If empty, resolved from ~/.ssh/config and default key locations.
	IdentityFiles []string

	// Password is tried after agent and key auth.
	Password string

	// AcceptUnknownHosts controls whether to accept hosts not in known_hosts.
	AcceptUnknownHosts bool

	// HostKeyCallback overrides the default host key verification.
	// If nil, knownhosts is used (with AcceptUnknownHosts controlling unknowns).
	HostKeyCallback ssh.HostKeyCallback

	// ProxyJump lists comma-separated jump hosts
	// (e.g. "bastion" or "user@jump1:2222,user@jump2"). "none" disables it.
	ProxyJump string
}

// Client is one SSH connection to a host, plus the jump-host connections
// it was tunneled through.
type Client struct {
	host  string
	ssh   *ssh.Client
	jumps []*Client
}

// Dial connects to host, tunneling through conf.ProxyJump when set.
func Dial(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	if conf.ProxyJump == "" || conf.ProxyJump == "none" {
		return dialDirect(ctx, host, conf)
	}
	return dialViaProxy(ctx, host, conf)
}

func dialDirect(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	return handshake(ctx, host, conf, func(addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return conn, nil
	})
}

func dialThrough(ctx context.Context, jump *Client, host string, conf ClientConfig) (*Client, error) {
	c, err := handshake(ctx, host, conf, func(addr string) (net.Conn, error) {
		conn, err := jump.ssh.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("tunnel through %s to %s: %w", jump.host, addr, err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("via %s: %w", jump.host, err)
	}
	return c, nil
}

// handshake opens the transport with dial and runs the SSH handshake over
// it. The agent connection, if any, only lives for the handshake.
func handshake(ctx context.Context, host string, conf ClientConfig, dial func(addr string) (net.Conn, error)) (*Client, error) {
	user, addr := resolveTarget(host, conf)

	hostKeyCallback, err := resolveHostKeyCallback(conf)
	if err != nil {
		return nil, fmt.Errorf("host key callback: %w", err)
	}

	auth, agentConn := buildAuthMethods(host, conf)
	if agentConn != nil {
		defer agentConn.Close()
	}

	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}

	// Closing conn aborts a handshake stuck on a silent server.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	})
	if !stop() {
		if err == nil {
			sshConn.Close()
		}
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &Client{host: host, ssh: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// dialViaProxy walks the jump chain hop by hop, then reaches host through
// the last hop. Jump hosts inherit credentials and host key policy from
// conf; user and port come from each hop's own spec.
func dialViaProxy(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	var jumps []*Client
	closeJumps := func() {
		for i := len(jumps) - 1; i >= 0; i-- {
			jumps[i].Close()
		}
	}

	for _, hop := range strings.Split(conf.ProxyJump, ",") {
		user, hostname, port := parseJumpHost(hop)
		hopConf := ClientConfig{
			User:               user,
			Port:               port,
			IdentityFiles:      conf.IdentityFiles,
			Password:           conf.Password,
			AcceptUnknownHosts: conf.AcceptUnknownHosts,
			HostKeyCallback:    conf.HostKeyCallback,
		}

		var c *Client
		var err error
		if len(jumps) == 0 {
			c, err = dialDirect(ctx, hostname, hopConf)
		} else {
			c, err = dialThrough(ctx, jumps[len(jumps)-1], hostname, hopConf)
		}
		if err != nil {
			closeJumps()
			return nil, fmt.Errorf("dial jump host %q: %w", strings.TrimSpace(hop), err)
		}
		jumps = append(jumps, c)
	}

	target := conf
	target.ProxyJump = ""
	c, err := dialThrough(ctx, jumps[len(jumps)-1], host, target)
	if err != nil {
		closeJumps()
		return nil, fmt.Errorf("dial target %s via proxy: %w", host, err)
	}
	c.jumps = jumps
	return c, nil
}

// parseJumpHost splits "[user@]host[:port]". A missing port is 0.
func parseJumpHost(spec string) (user, hostname string, port int) {
	spec = strings.TrimSpace(spec)
	if u, rest, ok := strings.Cut(spec, "@"); ok {
		user, spec = u, rest
	}
	hostname = spec
	if h, p, err := net.SplitHostPort(spec); err == nil {
		hostname = h
		port, _ = strconv.Atoi(p)
	}
	return user, hostname, port
}

// RunCommand runs command in a new session. A non-zero exit status is
// reported through exitCode with a nil error; exitCode is -1 when the
// command did not finish. On cancellation the output gathered so far is
// returned with ctx.Err().
func (c *Client) RunCommand(ctx context.Context, command string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf safeBuffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return outBuf.Bytes(), errBuf.Bytes(), -1, ctx.Err()
	case err := <-done:
		var exitErr *ssh.ExitError
		switch {
		case err == nil:
			return outBuf.Bytes(), errBuf.Bytes(), 0, nil
		case errors.As(err, &exitErr):
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(), nil
		default:
			return outBuf.Bytes(), errBuf.Bytes(), -1, err
		}
	}
}

// Close closes the connection, then its jump hosts from the innermost out.
func (c *Client) Close() error {
	err := c.ssh.Close()
	for i := len(c.jumps) - 1; i >= 0; i-- {
		if jerr := c.jumps[i].Close(); err == nil {
			err = jerr
		}
	}
	return err
}

// resolveTarget picks the login user and dial address for host. Values
// set in conf win over ~/.ssh/config. host is already the final name to
// dial: the inventory loader applied any Hostname directive.
func resolveTarget(host string, conf ClientConfig) (user, addr string) {
	user = firstNonEmpty(conf.User, sshconfig.Get(host, "User"), os.Getenv("USER"), "root")

	port := conf.Port
	if port == 0 {
		port, _ = strconv.Atoi(sshconfig.Get(host, "Port"))
	}
	if port == 0 {
		port = 22
	}
	return user, net.JoinHostPort(host, strconv.Itoa(port))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// buildAuthMethods returns the auth chain: agent, key files, then the
// static password. The returned closer is the agent connection, nil when
// no agent is in use; the caller closes it after the handshake.
func buildAuthMethods(host string, conf ClientConfig) ([]ssh.AuthMethod, io.Closer) {
	var methods []ssh.AuthMethod

	agentConn := dialAgent()
	if agentConn != nil {
		methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
	}

	keyFiles := conf.IdentityFiles
	if len(keyFiles) == 0 {
		keyFiles = resolveKeyFiles(host)
	}
	for _, path := range keyFiles {
		if signer := loadKeySigner(path); signer != nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if conf.Password != "" {
		methods = append(methods, ssh.Password(conf.Password))
	}

	if agentConn == nil {
		return methods, nil
	}
	return methods, agentConn
}

// dialAgent connects to $SSH_AUTH_SOCK. It returns nil when no agent is
// running or the agent holds no keys.
func dialAgent() net.Conn {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil
	}
	if keys, err := agent.NewClient(conn).List(); err != nil || len(keys) == 0 {
		conn.Close()
		return nil
	}
	return conn
}

// resolveKeyFiles lists the ssh_config IdentityFile for host followed by
// the default key locations, keeping only files that exist.
func resolveKeyFiles(host string) []string {
	var candidates []string
	if identity := sshconfig.Get(host, "IdentityFile"); identity != "" {
		candidates = append(candidates, pathutil.ExpandHome(identity))
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
			candidates = append(candidates, filepath.Join(home, ".ssh", name))
		}
	}

	var files []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	return files
}

// loadKeySigner returns nil for unreadable or passphrase-protected keys.
func loadKeySigner(path string) ssh.Signer {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return signer
}

func resolveHostKeyCallback(conf ClientConfig) (ssh.HostKeyCallback, error) {
	switch {
	case conf.HostKeyCallback != nil:
		return conf.HostKeyCallback, nil
	case conf.AcceptUnknownHosts:
		return ssh.InsecureIgnoreHostKey(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no known_hosts file found at %s; use --insecure to skip host key verification", path)
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}
