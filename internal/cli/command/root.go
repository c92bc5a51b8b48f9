package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/cli/output"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/service"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/infra/buildinfo"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/infra/confloader"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/provider/cloudflare"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/server/config"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/localconf"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/pkg/crypto/sealbox"
)

// Runtime is everything a command needs to run: the engine wired against
// the configured stores and provider, plus the configuration itself.
type Runtime struct {
	Engine *service.Engine
	Config *config.Config

	closers []func() error
}

// Close releases the runtime's resources in reverse open order.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// RuntimeFactory builds the Runtime on first use. Tests substitute a
// factory returning an engine backed by fakes.
type RuntimeFactory func(c *cli.Context) (*Runtime, error)

const (
	metaFactory = "runtimeFactory"
	metaRuntime = "runtime"
)

// App creates the cfsm-cli application.
func App() *cli.App {
	app := &cli.App{
		Name:    "cfsm-cli",
		Usage:   "Cloudflare zone configuration snapshot tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SnapshotCommand(),
			DiffCommand(),
			MergeCommand(),
			RestoreCommand(),
			PruneCommand(),
			ExportCommand(),
			ConfigCommand(),
		},
		Metadata: map[string]any{
			metaFactory: RuntimeFactory(defaultRuntime),
		},
		After: func(c *cli.Context) error {
			if rt, ok := c.App.Metadata[metaRuntime].(*Runtime); ok {
				rt.Close()
			}
			return nil
		},
	}
	return app
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			EnvVars: []string{"CFSM_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:    "actor",
			Usage:   "Actor recorded in the audit trail",
			EnvVars: []string{"CFSM_ACTOR"},
			Value:   "cfsm-cli",
		},
	}
}

// runtime returns the lazily built, cached Runtime for this invocation.
func runtime(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[metaRuntime].(*Runtime); ok {
		return rt, nil
	}
	factory, ok := c.App.Metadata[metaFactory].(RuntimeFactory)
	if !ok {
		return nil, fmt.Errorf("no runtime factory registered")
	}
	rt, err := factory(c)
	if err != nil {
		return nil, err
	}
	c.App.Metadata[metaRuntime] = rt
	return rt, nil
}

// defaultRuntime wires the production engine from the configuration file
// and environment.
func defaultRuntime(c *cli.Context) (*Runtime, error) {
	cfg := config.Default()
	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	rt := &Runtime{Config: cfg}

	var cipher sealbox.Cipher
	if cfg.Security.EncryptionKey != "" {
		key, err := sealbox.ParseKey(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		if cipher, err = sealbox.New(key); err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
	}

	store, err := snapstore.NewFileStore(snapstore.FileStoreConfig{
		Root:   cfg.Storage.BackupDir,
		Cipher: cipher,
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	local, err := localconf.Open(localconf.Config{
		Dir:        cfg.Storage.LocalConfDir,
		SyncWrites: cfg.Storage.SyncWrites,
	}, logger.Underlying(log))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open local config store: %w", err)
	}
	rt.closers = append(rt.closers, local.Close)

	var recorder audit.Recorder = audit.Nop{}
	if cfg.Audit.Path != "" {
		fileRecorder, err := audit.NewFileRecorder(cfg.Audit.Path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		rt.closers = append(rt.closers, fileRecorder.Close)
		recorder = fileRecorder
	}

	provider := cloudflare.NewClient(cloudflare.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIToken:  cfg.Provider.APIToken,
		Timeout:   cfg.Provider.Timeout,
		RateLimit: cfg.Provider.RateLimit,
		Logger:    log,
	})

	rt.Engine = service.NewEngine(service.EngineConfig{
		Store:          store,
		Provider:       provider,
		Local:          local,
		Recorder:       recorder,
		Logger:         log,
		PacingInterval: cfg.Restore.PacingInterval,
		Parallelism:    cfg.Schedule.Parallelism,
	})
	return rt, nil
}

// formatter resolves the -o flag.
func formatter(c *cli.Context) (output.Formatter, error) {
	return output.New(output.Format(c.String("output")))
}

// render writes a command result through the selected formatter.
func render(c *cli.Context, data any) error {
	f, err := formatter(c)
	if err != nil {
		return err
	}
	return f.Format(c.App.Writer, data)
}
