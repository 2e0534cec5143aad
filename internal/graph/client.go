// Package graph commits extraction results to the Neo4j knowledge graph.
//
// All writes are idempotent MERGE upserts keyed by natural identity
// (entity type + value); the store's transaction guarantees serialize
// concurrent upserts for the same key, so no application-level locking is
// needed. One document's upserts form a single write transaction.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fingraph/fingraph/internal/logging"
)

// Config holds graph store connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration // connect/verify timeout
}

// Client wraps the Neo4j driver with the connection conventions used across
// fingraph.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logging.Logger
}

// NewClient connects to Neo4j and verifies connectivity.
func NewClient(cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("graph: URI required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	return &Client{Driver: driver, Database: cfg.Database, log: log.With("client", "neo4j")}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

// writeSession opens a write session against the configured database.
func (c *Client) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
}
