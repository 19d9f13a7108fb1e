package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/privileges-api/privileges/internal/server"
	"github.com/privileges-api/privileges/internal/service"
	"github.com/privileges-api/privileges/internal/token"
)

func newServeCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Privileges API server",
		Long: `Start the HTTP server that receives Privileges webhooks and exposes the
query, analytics, export and token management API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, baseURL)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().Bool("enable-delete", false, "Enable DELETE /api/v1/webhooks/{id}")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public URL advertised in the OpenAPI document")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("features.enable_delete_endpoint", cmd.Flags().Lookup("enable-delete"))

	return cmd
}

func runServe(cmd *cobra.Command, baseURL string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(settings, os.Stderr)

	ctx := context.Background()
	st, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	logger.Info("store opened", "driver", settings.Database.Driver)

	if settings.Auth.APIToken == "" {
		logger.Warn("no environment secret configured; only database tokens can authenticate")
	}

	codec := token.NewCodec(token.SystemClock)
	svc := server.Services{
		Auth:   service.NewAuthService(st, codec, settings.Auth.APIToken, logger),
		Events: service.NewEventService(st, token.SystemClock, logger),
		Tokens: service.NewTokenService(st, codec, logger),
	}

	read, write, shutdown := settings.Server.Timeouts()
	srvCfg := server.Config{
		Host:            settings.Server.Host,
		Port:            settings.Server.Port,
		ShutdownTimeout: shutdown,
		ReadTimeout:     read,
		WriteTimeout:    write,
		CORSOrigins:     settings.Server.CORSOrigins,
		MaxBodySize:     settings.Server.MaxBodySize,
		EnableDelete:    settings.Features.EnableDeleteEndpoint,
		Version:         versionString(),
		BaseURL:         baseURL,
	}

	srv, err := server.New(srvCfg, st, svc, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("build server: %w", err)
	}

	out := cmd.OutOrStdout()
	colorize(out)
	cyan := color.New(color.FgCyan)
	addr := fmt.Sprintf("http://%s:%d", srvCfg.Host, srvCfg.Port)
	cyan.Fprintf(out, "→ Privileges API %s (%s)\n", versionString(), settings.Environment)
	fmt.Fprintf(out, "→ Listening on %s\n", addr)
	fmt.Fprintf(out, "→ Swagger UI:   %s/api/v1/ui\n", addr)
	fmt.Fprintf(out, "→ OpenAPI:      %s/api/v1/openapi\n", addr)
	fmt.Fprintf(out, "→ Health:       %s/healthz\n", addr)
	fmt.Fprintln(out)

	return srv.ListenAndServe()
}
