package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/privileges-api/privileges/internal/config"
	"github.com/privileges-api/privileges/internal/store"
)

// loadSettings decodes and validates the effective configuration.
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

// newLogger builds the process logger from the logging section. Validate
// has already rejected unknown levels and formats.
func newLogger(s *config.Settings, w io.Writer) *slog.Logger {
	var level slog.Level
	level.UnmarshalText([]byte(s.Logging.Level))

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore connects to the configured database, applying migrations.
func openStore(ctx context.Context, s *config.Settings) (*store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver:          s.Database.Driver,
		DSN:             s.Database.DSN,
		MaxOpenConns:    s.Database.MaxOpenConns,
		MaxIdleConns:    s.Database.MaxIdleConns,
		ConnMaxLifetime: s.Database.Lifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// colorize disables colour unless w is a terminal.
func colorize(w io.Writer) {
	f, ok := w.(*os.File)
	color.NoColor = !ok || !term.IsTerminal(int(f.Fd()))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
