package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/potwatch/potwatch/internal/accounts"
	"github.com/potwatch/potwatch/internal/auth"
	"github.com/potwatch/potwatch/internal/balances"
	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/money"
	"github.com/potwatch/potwatch/internal/monzo"
	"github.com/potwatch/potwatch/internal/server"
	"github.com/potwatch/potwatch/internal/store"
	"github.com/potwatch/potwatch/internal/token"
)

// startStopTimeout bounds fx lifecycle hooks, not request handling
const startStopTimeout = 15 * time.Second

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "potwatch",
	Short: "A Monzo pot balance server",
	Long: `Potwatch connects a Monzo account through OAuth and serves pot and
account balances over HTTP for dashboards to consume.`,
	Run: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

// runServer loads the configuration and runs the server until a signal stops it
func runServer(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		pterm.Error.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// run assembles the dependency graph and serves until shutdown
func run(cfg *config.Config) error {
	var srv *server.Server
	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger()}
		}),
		store.Module,
		monzo.Module,
		auth.Module,
		token.Module,
		accounts.Module,
		money.Module,
		balances.Module,
		server.Module,
		fx.Populate(&srv),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, startStopTimeout)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	serveErr := srv.Start(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		if serveErr == nil {
			return err
		}
		logger.Error("Failed to stop cleanly", zap.Error(err))
	}
	return serveErr
}
