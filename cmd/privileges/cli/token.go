package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/service"
	"github.com/privileges-api/privileges/internal/store"
	"github.com/privileges-api/privileges/internal/token"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "token",
		Aliases: []string{"tokens"},
		Short:   "Manage API tokens",
		Long: `Create, list, revoke and delete the database tokens used to authenticate
against the REST API. These commands act as the operator and are not subject to
the permission checks applied to HTTP callers.`,
	}

	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenActionCmd(service.ActionRevoke))
	cmd.AddCommand(newTokenActionCmd(service.ActionDelete))

	return cmd
}

// withTokenService runs fn against a token service backed by the configured
// store.
func withTokenService(fn func(ctx context.Context, svc *service.TokenService) error) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := newLogger(settings, os.Stderr)
	return fn(ctx, service.NewTokenService(st, token.NewCodec(token.SystemClock), logger))
}

// ---------- token create ----------

type createFlags struct {
	name            string
	description     string
	expires         string
	read            bool
	write           bool
	delete          bool
	tokenManagement bool
	serviceToken    bool
	jsonOutput      bool
}

func newTokenCreateCmd() *cobra.Command {
	var f createFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		Long: `Generate a new API token. The raw key is shown once and cannot be retrieved
again. Without any permission flag the token is read-only.

--expires takes one of ` + strings.Join(token.Durations, ", ") + `, or a unix timestamp in the future.`,
		Example: `  privileges token create --name "Grafana" --expires 90d
  privileges token create --name admin --read --write --delete --token-management
  privileges token create --name ci --service --expires 1767225600`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			return withTokenService(func(ctx context.Context, svc *service.TokenService) error {
				created, err := svc.Create(ctx, nil, req)
				if err != nil {
					return createError(err)
				}
				return printCreated(cmd.OutOrStdout(), created, f.jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "Token name (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&f.expires, "expires", "30d", "Expiry code or unix timestamp")
	cmd.Flags().BoolVar(&f.read, "read", false, "Grant read")
	cmd.Flags().BoolVar(&f.write, "write", false, "Grant write")
	cmd.Flags().BoolVar(&f.delete, "delete", false, "Grant delete")
	cmd.Flags().BoolVar(&f.tokenManagement, "token-management", false, "Grant token management")
	cmd.Flags().BoolVar(&f.serviceToken, "service", false, "Mark as a service token (denied on /api/v1/tokens)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("name")

	return cmd
}

func (f createFlags) request() (model.TokenCreateRequest, error) {
	if !token.IsKnownDuration(f.expires) {
		if _, err := strconv.ParseInt(f.expires, 10, 64); err != nil {
			return model.TokenCreateRequest{}, fmt.Errorf("--expires: %q is neither one of %s nor a unix timestamp",
				f.expires, strings.Join(token.Durations, ", "))
		}
	}

	req := model.TokenCreateRequest{
		Name:           f.name,
		ExpiresIn:      f.expires,
		IsServiceToken: f.serviceToken,
	}
	if f.description != "" {
		req.Description = &f.description
	}
	if f.read || f.write || f.delete || f.tokenManagement {
		req.Permissions = &model.Permissions{
			Read:            f.read,
			Write:           f.write,
			Delete:          f.delete,
			TokenManagement: f.tokenManagement,
		}
	}
	return req, nil
}

func createError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidExpiration):
		return errors.New("--expires: expiration time must be in the future")
	case errors.Is(err, service.ErrValidation):
		return err
	default:
		return fmt.Errorf("create token: %w", err)
	}
}

func printCreated(w io.Writer, t *model.CreatedToken, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	colorize(w)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w, "API token created:")
	fmt.Fprintln(w)
	fmt.Fprint(w, "  Token:       ")
	green.Fprintln(w, t.Token)
	fmt.Fprintf(w, "  ID:          %s\n", t.ID)
	fmt.Fprintf(w, "  Name:        %s\n", t.Name)
	fmt.Fprintf(w, "  Permissions: %s\n", permissionList(t.Permissions))
	fmt.Fprintf(w, "  Expires:     %s\n", formatUnix(t.ExpiresAt))
	if t.IsServiceToken {
		fmt.Fprintln(w, "  Service:     yes")
	}
	fmt.Fprintln(w)
	yellow.Fprintln(w, "  Save this token now - it cannot be retrieved again.")
	return nil
}

// ---------- token list ----------

func newTokenListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokenService(func(ctx context.Context, svc *service.TokenService) error {
				tokens, err := svc.List(ctx)
				if err != nil {
					return fmt.Errorf("list tokens: %w", err)
				}
				return printTokens(cmd.OutOrStdout(), tokens, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printTokens(w io.Writer, tokens []model.Token, jsonOutput bool) error {
	if jsonOutput {
		if tokens == nil {
			tokens = []model.Token{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tokens)
	}

	if len(tokens) == 0 {
		fmt.Fprintln(w, "No API tokens. Use 'privileges token create' to create one.")
		return nil
	}

	colorize(w)
	red := color.New(color.FgRed)

	const row = "%-36s  %-12s  %-20s  %-34s  %-20s  %s\n"
	fmt.Fprintf(w, row, "ID", "PREFIX", "NAME", "PERMISSIONS", "EXPIRES", "STATUS")
	for _, t := range tokens {
		status := "active"
		if !t.IsActive {
			status = red.Sprint("revoked")
		}
		if t.IsServiceToken {
			status += " (service)"
		}
		fmt.Fprintf(w, row, t.ID, t.KeyPrefix, t.Name, permissionList(t.Permissions), formatUnix(t.ExpiresAt), status)
	}
	return nil
}

// ---------- token revoke / delete ----------

func newTokenActionCmd(action service.TokenAction) *cobra.Command {
	short := "Revoke an API token (it stays listed but can no longer authenticate)"
	if action == service.ActionDelete {
		short = "Permanently delete an API token"
	}

	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokenService(func(ctx context.Context, svc *service.TokenService) error {
				res, err := svc.Apply(ctx, nil, args[0], action)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("token %q not found", args[0])
					}
					return fmt.Errorf("%s token: %w", action, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			})
		},
	}
}

func permissionList(p model.Permissions) string {
	var names []string
	for _, perm := range []model.Permission{model.PermRead, model.PermWrite, model.PermDelete, model.PermTokenManagement} {
		if p.Has(perm) {
			names = append(names, string(perm))
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

func formatUnix(ts *int64) string {
	if ts == nil {
		return "never"
	}
	return time.Unix(*ts, 0).UTC().Format(time.RFC3339)
}
