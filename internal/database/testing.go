package database

import (
	"fmt"

	"storycraft/internal/config"

	"github.com/google/uuid"
)

// MemoryConfig returns an sqlite configuration for a private in-memory database.
// Each call yields a distinct database, so tests do not see each other's rows.
func MemoryConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
}
