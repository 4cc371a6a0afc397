package db

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

type Client struct {
	BoltDB *bbolt.DB

	path      string
	ephemeral bool
}

// DefaultOptions returns the standard bbolt options used across the application
func DefaultOptions() *bbolt.Options {
	return &bbolt.Options{
		PageSize:     16 * 1024,
		NoGrowSync:   true,
		NoSync:       true,
		FreelistType: bbolt.FreelistArrayType,
	}
}

// Open opens a bbolt database with default options
func Open(dbPath string) (*Client, error) {
	return OpenWithOptions(dbPath, DefaultOptions())
}

// OpenWithOptions opens a bbolt database with custom options
func OpenWithOptions(dbPath string, opts *bbolt.Options) (*Client, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Client{BoltDB: db, path: dbPath}, nil
}

// OpenEphemeral opens a fresh database file under dir which is deleted on Close.
func OpenEphemeral(dir, pattern string) (*Client, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	name := f.Name()
	_ = f.Close()

	client, err := Open(name)
	if err != nil {
		_ = os.Remove(name)
		return nil, err
	}
	client.ephemeral = true
	return client, nil
}

func (c *Client) Path() string {
	return c.path
}

func (c *Client) Close() error {
	err := c.BoltDB.Close()
	if c.ephemeral {
		if rmErr := os.Remove(c.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}
