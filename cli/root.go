// ABOUTME: Root command and global flags for the trustcache CLI
// ABOUTME: Loads .env and config, builds the logger, and wires subcommands
package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var versionInfo = VersionInfo{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// VersionInfo contains build information
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// SetVersion sets the version information (called from main)
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// globalOptions are resolved once in the root pre-run and shared by subcommands.
type globalOptions struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "trustcache",
		Short: "Contact trust cache for email triage",
		Long: `trustcache keeps a local cache of your address books and answers
"how much do I trust this sender?" for email classification.

Contacts are synced from Google Contacts and a shared Charm KV contact
book into SQLite, scored from relationship strength and interaction
history, and served over the CLI or an MCP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: "+config.Path()+")")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db-path", "", "Database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newTrustCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newClearCmd(opts))
	cmd.AddCommand(newInteractionCmd(opts))
	cmd.AddCommand(newContactCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (o *globalOptions) load(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(o.configPathOrDefault())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:           cfg.Level(),
		ReportTimestamp: true,
	})
	if o.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	o.cfg = cfg
	o.logger = logger
	return nil
}

func (o *globalOptions) configPathOrDefault() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trustcache %s\n", versionInfo.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", versionInfo.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built:  %s\n", versionInfo.Date)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
