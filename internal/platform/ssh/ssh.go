// Package ssh provides SSH connectivity to the lab hosts under test.
// It handles key-based authentication and connection establishment with
// a small dial retry, leaving session management to the caller.
//
// Security: host key verification is disabled by default because the
// target and initiator are ephemeral lab machines. Provide a
// HostKeyCallback for environments with persistent hosts.
package ssh

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fabriclab/fabtest/internal/util/retry"
)

const (
	defaultPort         = 22
	defaultDialTimeout  = 10 * time.Second
	defaultDialAttempts = 3
	defaultRetryDelay   = 2 * time.Second
	defaultMaxDelay     = 10 * time.Second
)

// Config holds SSH client configuration for one host.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// DialAttempts is the total number of connection attempts.
	// If zero, defaultDialAttempts is used.
	DialAttempts int

	// RetryDelay is the initial delay between dial attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Client dials SSH connections to a single host. The private key is
// parsed once during construction; connections are created on demand.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.DialAttempts == 0 {
		configCopy.DialAttempts = defaultDialAttempts
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Default for ephemeral lab hosts
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: &configCopy,
		signer: signer,
	}, nil
}

// Addr returns the host:port this client dials.
func (c *Client) Addr() string {
	return fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
}

// Dial establishes an SSH connection with a bounded dial retry.
// The caller owns the returned connection and must close it.
func (c *Client) Dial(ctx context.Context) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := c.Addr()
	var client *ssh.Client

	err := retry.Do(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		return dialErr
	},
		retry.WithMaxAttempts(c.config.DialAttempts),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s after %d attempts: %w",
			addr, c.config.DialAttempts, err)
	}

	return client, nil
}
