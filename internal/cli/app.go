package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/weftworks/weft/internal/concepts"
	"github.com/weftworks/weft/internal/kernel"
	"github.com/weftworks/weft/internal/rulefile"
	"github.com/weftworks/weft/internal/storage"
)

// App is one assembled kernel: store opened, built-in concepts
// registered, rule files loaded.
type App struct {
	Kernel *kernel.Kernel
	Store  storage.Store
}

// openApp builds the kernel described by a config. Callers own Close.
func openApp(cfg *Config, logger *slog.Logger) (*App, error) {
	var store storage.Store
	if cfg.Store == "" || cfg.Store == ":memory:" {
		store = storage.NewMemory()
	} else {
		db, err := storage.OpenSQLite(cfg.Store)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: "open store", Err: err}
		}
		store = db
	}

	opts := []kernel.Option{kernel.WithLogger(logger)}
	if cfg.Budget > 0 {
		opts = append(opts, kernel.WithBudget(cfg.Budget))
	}
	if timeout, err := cfg.invokeTimeout(); err == nil && timeout > 0 {
		opts = append(opts, kernel.WithInvokeTimeout(timeout))
	}

	k := kernel.New(opts...)
	if err := concepts.RegisterDefaults(k, store); err != nil {
		store.Close()
		return nil, err
	}

	for _, path := range cfg.Rules {
		syncs, err := rulefile.LoadFile(path)
		if err != nil {
			store.Close()
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("load rules %s", path), Err: err}
		}
		for _, s := range syncs {
			if err := k.RegisterSync(s); err != nil {
				store.Close()
				return nil, &ExitError{Code: ExitFailure, Message: fmt.Sprintf("register sync %s", s.Name), Err: err}
			}
		}
	}

	return &App{Kernel: k, Store: store}, nil
}

// Close releases the app's store.
func (a *App) Close() error {
	return a.Store.Close()
}

// newLogger builds the slog logger for a command run. Verbose turns on
// debug level; diagnostics always go to the error stream.
func newLogger(errOut io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
}
