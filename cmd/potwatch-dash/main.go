package main

import (
	"os"
	"runtime/debug"

	"github.com/pterm/pterm"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/tui"
	"github.com/spf13/cobra"
)

func main() {
	Execute()
}

var (
	serverURL string
	secret    string
	userID    string
	potIDs    []string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "potwatch-dash",
	Short: "A terminal dashboard for potwatch balances",
	Long: `Potwatch-dash renders the balances served by a running potwatch
instance as a terminal dashboard. Point it at the server with --server,
authenticate with the shared secret, and refresh with 'r'.`,
	Run: runDashboard,
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
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the potwatch server")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "", "Shared secret configured on the server")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "Monzo user ID to show balances for")
	rootCmd.PersistentFlags().StringSliceVar(&potIDs, "pots", nil, "Pot IDs to show (default: all visible pots)")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

// runDashboard validates the flags and runs the dashboard program
func runDashboard(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	if secret == "" {
		pterm.Error.Println("Secret is required, you must supply it with --secret")
		os.Exit(1)
	}
	if userID == "" {
		pterm.Error.Println("User ID is required, you must supply it with --user")
		os.Exit(1)
	}

	client := tui.NewClient(serverURL, secret, userID, potIDs)
	p := tea.NewProgram(tui.NewDashboardModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		pterm.Error.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
