package ssh

import (
	"context"
	"fmt"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/executor"
)

// Connector implements executor.Connector over real SSH connections.
// Every Connect dials a fresh client; the executor closes it when the
// host's task list is done.
type Connector struct {
	base ClientConfig
}

// NewConnector creates a Connector. base supplies settings shared by all
// hosts (host key policy, --ask-pass password); per-host inventory fields
// override it.
func NewConnector(base ClientConfig) *Connector {
	return &Connector{base: base}
}

// Connect dials host. Errors are *ConnectError values carrying a hint and
// the transient/permanent classification used for retries.
func (c *Connector) Connect(ctx context.Context, host config.Host) (executor.Conn, error) {
	conf := c.clientConfig(host)
	dialHost := host.Hostname
	if dialHost == "" {
		dialHost = host.Name
	}

	client, err := Dial(ctx, dialHost, conf)
	if err != nil {
		return nil, WrapConnectError(host.Name, fmt.Errorf("connect: %w", err))
	}
	return &conn{client: client}, nil
}

func (c *Connector) clientConfig(host config.Host) ClientConfig {
	conf := c.base
	if host.User != "" {
		conf.User = host.User
	}
	if host.Port != 0 {
		conf.Port = host.Port
	}
	if host.IdentityFile != "" {
		conf.IdentityFiles = []string{host.IdentityFile}
	}
	if host.Password != "" {
		conf.Password = host.Password
	}
	if host.ProxyJump != "" {
		conf.ProxyJump = host.ProxyJump
	}
	return conf
}

// conn adapts a Client to executor.Conn.
type conn struct {
	client *Client
}

func (c *conn) Run(ctx context.Context, command string) ([]byte, []byte, int, error) {
	return c.client.RunCommand(ctx, command)
}

func (c *conn) Upload(ctx context.Context, localPath, remotePath string) error {
	return c.client.Upload(ctx, localPath, remotePath)
}

func (c *conn) Close() error {
	return c.client.Close()
}
