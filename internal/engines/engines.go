// Package engines opens the storage backend selected in config.
package engines

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/matheus3301/msgvault/internal/account"
	"github.com/matheus3301/msgvault/internal/config"
	"github.com/matheus3301/msgvault/internal/engine"
	enginefs "github.com/matheus3301/msgvault/internal/engine/fs"
	"github.com/matheus3301/msgvault/internal/engine/memory"
	engineredis "github.com/matheus3301/msgvault/internal/engine/redis"
	"github.com/matheus3301/msgvault/internal/engine/remote"
	engines3 "github.com/matheus3301/msgvault/internal/engine/s3"
	"github.com/matheus3301/msgvault/internal/engine/sqlite"
)

// Kind normalizes the configured engine type; empty selects sqlite.
func Kind(cfg config.Engine) string {
	if cfg.Type == "" {
		return "sqlite"
	}
	return cfg.Type
}

// Open builds the engine selected by cfg for the named account. Backends
// with account-local defaults (fs root, sqlite path) create the account
// directory tree on first use.
func Open(ctx context.Context, cfg config.Engine, accountName string) (engine.Engine, error) {
	switch Kind(cfg) {
	case "memory":
		return memory.New(), nil
	case "fs":
		root := cfg.FS.Root
		if root == "" {
			if err := account.EnsureDir(accountName); err != nil {
				return nil, fmt.Errorf("ensure account dir: %w", err)
			}
			root = account.StoreDir(accountName)
		}
		return enginefs.New(root), nil
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			if err := account.EnsureDir(accountName); err != nil {
				return nil, fmt.Errorf("ensure account dir: %w", err)
			}
			path = account.DBPath(accountName)
		}
		return sqlite.Open(path)
	case "redis":
		return engineredis.Open(redisURL(cfg.Redis), cfg.Redis.Prefix)
	case "s3":
		return engines3.Open(ctx, engines3.Options{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			PathStyle:    cfg.S3.PathStyle,
			EnsureBucket: true,
		})
	case "remote":
		if cfg.Remote.BaseURL == "" {
			return nil, fmt.Errorf("remote engine: base_url is required")
		}
		return remote.New(cfg.Remote.BaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown engine type %q", cfg.Type)
	}
}

func redisURL(cfg config.Redis) string {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	u := url.URL{Scheme: "redis", Host: addr, Path: "/" + strconv.Itoa(cfg.DB)}
	if cfg.Password != "" {
		u.User = url.UserPassword("", cfg.Password)
	}
	return u.String()
}
