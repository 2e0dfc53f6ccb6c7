package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"securecode/internal/config"
	"securecode/internal/logging"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	settings config.Settings
	logger   = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "securecode",
	Short: "Function-level vulnerability scanning for C source",
	Long: "securecode extracts C function definitions, classifies them with a vulnerability model,\n" +
		"builds labelled training data from Juliet-style test suites and indexes functions for search.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env first so ~/.securecode/config.json can still override it.
		if err := config.LoadDotEnv(); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Failed to load .env: %v\n", err)
		}
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Failed to load config: %v\n", err)
		}

		s, err := config.LoadSettings()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			s.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		settings = s
		logger = logging.New(logging.Config{
			Level:  s.LogLevel,
			Pretty: true,
			Output: cmd.ErrOrStderr(),
		})
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "securecode %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")

	scanCmd.Flags().Float64("threshold", config.DefaultThreshold, "Report functions whose vulnerable score exceeds this value")
	scanCmd.Flags().String("model", "", "Classifier model (defaults to SECURECODE_MODEL)")
	extractCmd.Flags().Bool("json", false, "Print records as JSON")
	prepareCmd.Flags().String("root", ".", "Dataset root directory to walk for .c files")
	prepareCmd.Flags().String("out", "dataset.jsonl", "Output JSONL file")
	prepareCmd.Flags().Int("min-length", config.DefaultMinLength, "Minimum function length in characters")
	prepareCmd.Flags().Int("workers", config.DefaultWorkers, "Number of parsing workers")
	prepareCmd.Flags().StringSlice("ignore", nil, "Extra ignore patterns (gitignore style)")
	prepareCmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	indexCmd.Flags().String("dir", ".", "Project root directory")
	searchCmd.Flags().String("q", "", "Natural language query")
	searchCmd.Flags().Int("top_k", 10, "Maximum number of results to return")
	searchCmd.Flags().String("dir", ".", "Project root directory (must match the directory passed to 'securecode index')")
	clearIndexCmd.Flags().String("dir", ".", "Project root directory to clear from Qdrant")
	mcpCmd.Flags().String("dir", ".", "Project root directory used by search_functions")
	mcpCmd.Flags().Bool("no-index", false, "Serve without Qdrant; search_functions is disabled")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(clearIndexCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree; SIGINT/SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
