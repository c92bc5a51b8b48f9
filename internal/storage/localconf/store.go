// Package localconf provides the local configuration store: the record store
// holding each resource's locally tracked configuration (security level, SSL
// mode, bot protection flags, firewall rules) that is not fetched from the
// settings provider.
//
// Records are kept in a Badger key-value database, one record per resource,
// written transactionally so a Save is all-or-nothing per resource.
package localconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

const keyPrefix = "localconf/"

// ErrNotFound indicates no local configuration exists for the resource.
var ErrNotFound = errors.New("localconf: not found")

// Store persists per-resource local configuration.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Config configures the store.
type Config struct {
	// Dir is the Badger database directory. Required.
	Dir string

	// SyncWrites forces an fsync per transaction. Local config records are
	// small and rare, so durability beats throughput here.
	SyncWrites bool
}

// Open opens (or creates) the store.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrValidation.WithDetails("localconf: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrPersist.WithDetails("localconf: open db").WithCause(err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the local configuration for a resource.
func (s *Store) Load(ctx context.Context, resourceID string) (domain.LocalConfig, error) {
	var cfg domain.LocalConfig
	if err := ctx.Err(); err != nil {
		return cfg, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + resourceID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cfg)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return cfg, ErrNotFound
		}
		return cfg, domain.ErrPersist.WithDetails("localconf: load " + resourceID).WithCause(err)
	}
	return cfg, nil
}

// Save stores the local configuration for a resource in a single
// transaction.
func (s *Store) Save(ctx context.Context, resourceID string, cfg domain.LocalConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return domain.ErrPersist.WithDetails("localconf: encode " + resourceID).WithCause(err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+resourceID), raw)
	})
	if err != nil {
		return domain.ErrPersist.WithDetails("localconf: save " + resourceID).WithCause(err)
	}
	return nil
}

// badgerLogger adapts Badger's logger interface onto slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error("badger", "msg", sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn("badger", "msg", sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug("badger", "msg", sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug("badger", "msg", sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
