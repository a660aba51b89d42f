package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rkas/internal/config"
	remotemem "rkas/internal/remote/memory"
	"rkas/internal/storage"
	kvmem "rkas/internal/storage/memory"
)

func appConfig() *config.Config {
	var c config.Config
	c.HTTP.Port = 8080
	c.Remote.LoadTimeout = 10 * time.Second
	c.AMQP.Exchange = "rkas"
	c.AMQP.Queue = "budget_changes"
	return &c
}

func TestFromAppConfig(t *testing.T) {
	t.Run("local only with memory cache", func(t *testing.T) {
		c, err := FromAppConfig(appConfig())
		require.NoError(t, err)
		assert.Equal(t, MemoryCache, c.CacheType)
		assert.Equal(t, NoRemote, c.RemoteType)
		assert.Empty(t, c.AMQPURL)
	})

	t.Run("undefined credentials stay local only", func(t *testing.T) {
		app := appConfig()
		app.Cache.Path = "./data/rkas.db"
		app.Remote.URL = "postgres://db.example.co/postgres"
		app.Remote.Key = "undefined"
		app.AMQP.URL = "undefined"

		c, err := FromAppConfig(app)
		require.NoError(t, err)
		assert.Equal(t, SQLiteCache, c.CacheType)
		assert.Equal(t, NoRemote, c.RemoteType)
		assert.Empty(t, c.AMQPURL)
	})

	t.Run("postgres and memory remotes", func(t *testing.T) {
		app := appConfig()
		app.Remote.URL = "postgres://db.example.co/postgres"
		app.Remote.Key = "anon"
		c, err := FromAppConfig(app)
		require.NoError(t, err)
		assert.Equal(t, PostgresRemote, c.RemoteType)

		app.Remote.URL = "memory://"
		c, err = FromAppConfig(app)
		require.NoError(t, err)
		assert.Equal(t, MemoryRemote, c.RemoteType)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := FromAppConfig(nil)
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{CacheType: MemoryCache, RemoteType: NoRemote}.Validate())
	assert.Error(t, Config{CacheType: "redis", RemoteType: NoRemote}.Validate())
	assert.Error(t, Config{CacheType: SQLiteCache, RemoteType: NoRemote}.Validate())
	assert.Error(t, Config{CacheType: MemoryCache, RemoteType: PostgresRemote, RemoteURL: "postgres://x"}.Validate())
	assert.Error(t, Config{CacheType: MemoryCache, RemoteType: NoRemote, AMQPURL: "amqp://x"}.Validate())
}

func TestCreateBackend_Memory(t *testing.T) {
	f := NewFactory(nil)
	res, err := f.CreateBackend(context.Background(), Config{CacheType: MemoryCache, RemoteType: MemoryRemote})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.IsType(t, &kvmem.Store{}, res.Cache)
	assert.IsType(t, &remotemem.Store{}, res.Remote)
	assert.False(t, res.LocalOnly())
	assert.Nil(t, res.Events)
}

func TestCreateBackend_SQLiteLocalOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rkas.db")
	f := NewFactory(nil)
	res, err := f.CreateBackend(context.Background(), Config{CacheType: SQLiteCache, CachePath: path, RemoteType: NoRemote})
	require.NoError(t, err)

	assert.IsType(t, &storage.SQLiteRepository{}, res.Cache)
	assert.True(t, res.LocalOnly())
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackend_UnreachablePostgresIsNotFatal(t *testing.T) {
	f := NewFactory(nil)
	res, err := f.CreateBackend(context.Background(), Config{
		CacheType:  MemoryCache,
		RemoteType: PostgresRemote,
		RemoteURL:  "postgres://127.0.0.1:1/postgres?sslmode=disable",
		RemoteKey:  "anon",
	})
	require.NoError(t, err)
	defer res.Cleanup()
	assert.NotNil(t, res.Remote)
}
