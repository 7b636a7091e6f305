package federation

import (
	"errors"
	"fmt"
)

// Journal storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

var ErrUnknownStorage = errors.New("federation: unknown journal storage")

// Config holds the genesis members and owner and the journal storage kind.
// Members and owner are used only when the journal is empty.
type Config struct {
	Members []Identity `yaml:"members"`
	Owner   Identity   `yaml:"owner"`
	Storage string     `yaml:"storage"` // One of memory, postgres or mongo, memory when not set.
}

// Validate checks the genesis state and the storage kind.
func (c *Config) Validate() error {
	switch c.Storage {
	case "":
		c.Storage = StorageMemory
	case StorageMemory, StoragePostgres, StorageMongo:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage)
	}
	if c.Owner == "" {
		return ErrInvalidIdentity
	}
	if len(c.Members) == 0 {
		return ErrEmptyMembers
	}
	return nil
}
