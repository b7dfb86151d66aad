package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
	"gopkg.in/yaml.v3"

	"github.com/agent462/corral/internal/pathutil"
)

// Host represents a resolved SSH host with connection details.
// Hosts are not modified after loading.
type Host struct {
	Name         string // Display/identity label (original input, e.g. "admin@server1")
	Hostname     string // Actual SSH hostname to connect to (e.g. "server1")
	User         string
	Port         int // 0 means unset; the SSH layer falls back to 22
	IdentityFile string
	Password     string
	ProxyJump    string
}

// inventoryFile is the mapping form of an inventory: a "hosts" key with
// a list of entries. A bare sequence of entries is accepted as well.
type inventoryFile struct {
	Hosts []hostEntry `yaml:"hosts"`
}

// hostEntry is either a plain "user@host:port" string or a mapping with
// explicit per-host connection parameters.
type hostEntry struct {
	Host         string `yaml:"host"`
	User         string `yaml:"user,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	IdentityFile string `yaml:"identity_file,omitempty"`
	Password     string `yaml:"password,omitempty"`
	ProxyJump    string `yaml:"proxy_jump,omitempty"`
}

func (h *hostEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&h.Host)
	}
	type plain hostEntry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*h = hostEntry(p)
	return nil
}

// LoadInventory reads a host list from path. The result is ordered as in
// the file and contains no duplicate names. A missing or malformed file, or
// one that yields zero hosts, returns a *ConfigError.
func LoadInventory(path string) ([]Host, error) {
	data, err := ReadInventorySource(path)
	if err != nil {
		return nil, err
	}
	hosts, err := ParseInventory(data)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return hosts, nil
}

// ParseInventory parses inventory YAML already in memory.
func ParseInventory(data []byte) ([]Host, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErr("", "parsing inventory: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, configErr("", "inventory is empty")
	}

	var entries []hostEntry
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entries); err != nil {
			return nil, configErr("", "parsing inventory: %w", err)
		}
	case yaml.MappingNode:
		var inv inventoryFile
		if err := root.Decode(&inv); err != nil {
			return nil, configErr("", "parsing inventory: %w", err)
		}
		entries = inv.Hosts
	default:
		return nil, configErr("", "inventory must be a list of hosts or a mapping with a hosts key")
	}

	return buildHosts(entries)
}

// ParseHosts builds hosts from command-line style specs ("web-01",
// "deploy@web-02", "web-03:2222"). The same rules as inventory files apply.
func ParseHosts(specs []string) ([]Host, error) {
	entries := make([]hostEntry, len(specs))
	for i, s := range specs {
		entries[i] = hostEntry{Host: s}
	}
	return buildHosts(entries)
}

func buildHosts(entries []hostEntry) ([]Host, error) {
	if len(entries) == 0 {
		return nil, configErr("", "no hosts specified")
	}

	hosts := make([]Host, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Host)
		if name == "" {
			return nil, configErr("", "host %d: empty address", i+1)
		}
		if seen[name] {
			return nil, configErr("", "duplicate host %q", name)
		}
		seen[name] = true

		user, hostname, port, err := parseHostSpec(name)
		if err != nil {
			return nil, configErr("", "host %q: %w", name, err)
		}
		host := Host{
			Name:         name,
			Hostname:     hostname,
			User:         user,
			Port:         port,
			IdentityFile: pathutil.ExpandHome(e.IdentityFile),
			Password:     e.Password,
			ProxyJump:    e.ProxyJump,
		}
		if e.User != "" {
			host.User = e.User
		}
		if e.Port != 0 {
			if e.Port < 0 || e.Port > 65535 {
				return nil, configErr("", "host %q: port %d out of range", name, e.Port)
			}
			host.Port = e.Port
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// ApplyDefaults fills unset per-host fields from run-wide defaults.
func ApplyDefaults(hosts []Host, d Defaults) []Host {
	out := make([]Host, len(hosts))
	for i, h := range hosts {
		if h.User == "" {
			h.User = d.User
		}
		if h.Port == 0 {
			h.Port = d.Port
		}
		if h.IdentityFile == "" && d.IdentityFile != "" {
			h.IdentityFile = pathutil.ExpandHome(d.IdentityFile)
		}
		out[i] = h
	}
	return out
}

// MergeSSHConfig reads ~/.ssh/config and fills in User, Port, IdentityFile,
// and ProxyJump for the host if they are not already set. Lookups use
// the Hostname field (the actual SSH target), not the display Name.
func MergeSSHConfig(host *Host) {
	lookup := host.Hostname
	if lookup == "" {
		lookup = host.Name
	}

	if host.User == "" {
		if user := sshConfigGet(lookup, "User"); user != "" {
			host.User = user
		}
	}

	if host.Port == 0 {
		if portStr := sshConfigGet(lookup, "Port"); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
				host.Port = port
			}
		}
	}

	if host.IdentityFile == "" {
		if identity := sshConfigGet(lookup, "IdentityFile"); identity != "" {
			expanded := pathutil.ExpandHome(identity)
			if _, err := os.Stat(expanded); err == nil {
				host.IdentityFile = expanded
			}
		}
	}

	if host.ProxyJump == "" {
		if proxy := sshConfigGet(lookup, "ProxyJump"); proxy != "" {
			host.ProxyJump = proxy
		}
	}
}

// sshConfigGet looks up a key for a host in the user's SSH config.
func sshConfigGet(hostname, key string) string {
	val, err := ssh_config.GetStrict(hostname, key)
	if err != nil {
		return ""
	}
	return val
}

// parseHostSpec splits "user@host:port" into its components. Both the user
// and the port are optional; IPv6 literals must be bracketed when a port is
// given ("[::1]:2222").
func parseHostSpec(s string) (user, host string, port int, err error) {
	host = s
	if i := strings.LastIndex(host, "@"); i >= 0 {
		if i == 0 {
			return "", "", 0, fmt.Errorf("empty user before @")
		}
		user, host = host[:i], host[i+1:]
	}

	if h, p, splitErr := net.SplitHostPort(host); splitErr == nil {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n <= 0 || n > 65535 {
			return "", "", 0, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	if host == "" {
		return "", "", 0, fmt.Errorf("empty hostname")
	}
	return user, host, port, nil
}
