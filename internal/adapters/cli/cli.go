// Package cli exposes the ApplicationService as one-shot cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"shop-ledger/internal/adapters/web"
	"shop-ledger/internal/app"
	"shop-ledger/internal/bootstrap"
	"shop-ledger/internal/config"
	"shop-ledger/internal/core"
	"shop-ledger/internal/db"
	"shop-ledger/internal/logger"
)

// ServiceFactory builds the ApplicationService for a command. The returned func
// releases its resources.
type ServiceFactory func(ctx context.Context) (app.ApplicationService, func(), error)

// env is shared by every subcommand.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	factory ServiceFactory

	actorID int64
	role    string
	shopID  int64
}

// actorContext attaches the --actor/--role/--shop flags to ctx.
func (e *env) actorContext(ctx context.Context) (context.Context, error) {
	role, err := core.ParseRole(e.role)
	if err != nil {
		return nil, err
	}
	a := core.Actor{ID: e.actorID, Role: role}
	if e.shopID > 0 {
		shop := e.shopID
		a.ShopID = &shop
	}
	return app.WithActor(ctx, a), nil
}

// service builds the ApplicationService and an actor-scoped context.
func (e *env) service(cmd *cobra.Command) (context.Context, app.ApplicationService, func(), error) {
	ctx, err := e.actorContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	svc, release, err := e.factory(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, svc, release, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewRootCommand builds the command tree. factory may be nil, in which case the
// configured store is wired through bootstrap.Build.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	e := &env{factory: factory}

	root := &cobra.Command{
		Use:           "shop-ledger",
		Short:         "Shop ledger command-line interface",
		Long:          "Records sales, drives the invoice workflow and reads customer balances from the shell.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			l, err := logger.Setup(cfg.GetLoggerConfig())
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = l.With().Str("component", "cli").Logger()
			if e.factory == nil {
				e.factory = func(ctx context.Context) (app.ApplicationService, func(), error) {
					rt, err := bootstrap.Build(ctx, cfg, e.log)
					if err != nil {
						return nil, nil, err
					}
					return rt.Service, rt.Close, nil
				}
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.Int64Var(&e.actorID, "actor", 1, "acting user id")
	pf.StringVar(&e.role, "role", string(core.RoleOwner), "acting role (OWNER, ADMIN, STAFF, CUSTOMER)")
	pf.Int64Var(&e.shopID, "shop", 0, "acting user's shop id (0 for none)")

	root.AddCommand(
		newMigrateCommand(e),
		newSeedCommand(e),
		newBalanceCommand(e),
		newInvoiceCommand(e),
		newLedgerCommand(e),
		newSaleCommand(e),
		newShopCommand(e),
		newTokenCommand(e),
	)
	return root
}

// Execute runs the root command and reports the error on stderr.
func Execute(ctx context.Context) error {
	root := NewRootCommand(nil)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// ── migrate ─────────────────────────────────────────────────────────────────

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(db.Up), string(db.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.StoreDriver != config.DriverPostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=postgres")
			}
			dir := db.Up
			if len(args) == 1 {
				dir = db.Direction(args[0])
			}
			pool, err := db.NewPool(cmd.Context(), db.PoolConfig{URL: e.cfg.DatabaseURL})
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.Migrate(pool, dir, e.log)
		},
	}
}

// ── token ───────────────────────────────────────────────────────────────────

func newTokenCommand(e *env) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireJWTSecret(); err != nil {
				return err
			}
			ctx, err := e.actorContext(cmd.Context())
			if err != nil {
				return err
			}
			actor, _ := app.ActorFromContext(ctx)
			tok, err := web.SignToken(e.cfg.JWTSecret, actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
