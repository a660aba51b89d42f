package backend

import (
	"fmt"
	"strings"

	"rkas/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	CacheType CacheType
	CachePath string

	RemoteType   RemoteType
	RemoteURL    string
	RemoteKey    string
	EnsureSchema bool

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// CacheType represents the kind of local cache
type CacheType string

const (
	SQLiteCache CacheType = "sqlite"
	MemoryCache CacheType = "memory"
)

// RemoteType represents the kind of remote store
type RemoteType string

const (
	PostgresRemote RemoteType = "postgres"
	MemoryRemote   RemoteType = "memory"
	NoRemote       RemoteType = "none"
)

// String implements fmt.Stringer
func (ct CacheType) String() string {
	return string(ct)
}

// IsValid returns true if the cache type is valid
func (ct CacheType) IsValid() bool {
	switch ct {
	case SQLiteCache, MemoryCache:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (rt RemoteType) String() string {
	return string(rt)
}

// IsValid returns true if the remote type is valid
func (rt RemoteType) IsValid() bool {
	switch rt {
	case PostgresRemote, MemoryRemote, NoRemote:
		return true
	default:
		return false
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		CacheType:    SQLiteCache,
		CachePath:    appConfig.Cache.Path,
		RemoteType:   NoRemote,
		EnsureSchema: appConfig.Remote.EnsureSchema,
	}
	if c.CachePath == "" {
		c.CacheType = MemoryCache
	}

	if appConfig.RemoteConfigured() {
		c.RemoteURL = appConfig.Remote.URL
		c.RemoteKey = appConfig.Remote.Key
		c.RemoteType = PostgresRemote
		if strings.HasPrefix(c.RemoteURL, "memory:") {
			c.RemoteType = MemoryRemote
		}
	}

	if appConfig.AMQPConfigured() {
		c.AMQPURL = appConfig.AMQP.URL
		c.AMQPExchange = appConfig.AMQP.Exchange
		c.AMQPQueue = appConfig.AMQP.Queue
	}

	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.CacheType.IsValid() {
		return fmt.Errorf("invalid cache type: %s", c.CacheType)
	}
	if !c.RemoteType.IsValid() {
		return fmt.Errorf("invalid remote type: %s", c.RemoteType)
	}

	if c.CacheType == SQLiteCache && c.CachePath == "" {
		return fmt.Errorf("cache path is required for sqlite cache")
	}
	if c.RemoteType == PostgresRemote && (c.RemoteURL == "" || c.RemoteKey == "") {
		return fmt.Errorf("remote URL and key are required for postgres remote")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}

	return nil
}
