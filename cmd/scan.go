package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"securecode/internal/classifier"
	"securecode/internal/dataset"
	"securecode/internal/detector"
	"securecode/internal/parser"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file.c>",
	Short: "Scan a C file and report functions the model considers vulnerable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold := settings.Threshold
		if cmd.Flags().Changed("threshold") {
			threshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		model := settings.Model
		if cmd.Flags().Changed("model") {
			model, _ = cmd.Flags().GetString("model")
		}

		clf := classifier.NewFromEnv(model, logger.With().Str("component", "classifier").Logger())
		d := detector.New(clf,
			detector.WithThreshold(threshold),
			detector.WithLogger(logger.With().Str("component", "detector").Logger()),
		)

		report, err := d.ScanFile(cmd.Context(), args[0])
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("the file at '%s' was not found", args[0])
			}
			return err
		}
		return detector.WriteReport(cmd.OutOrStdout(), report)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.c>",
	Short: "Print the function definitions found in a C file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		funcs, err := parser.Extract(code)
		if err != nil {
			logger.Debug().Err(err).Str("file", args[0]).Msg("extraction was partial")
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if funcs == nil {
				funcs = []parser.FunctionRecord{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(funcs)
		}

		if len(funcs) == 0 {
			fmt.Fprintln(out, "⚠ No functions found")
			return nil
		}
		for _, fn := range funcs {
			fmt.Fprintf(out, "%s\tlines %d-%d\t%d bytes\n", fn.Name, fn.StartLine, fn.EndLine, len(fn.Code))
		}
		fmt.Fprintf(out, "✓ %d functions\n", len(funcs))
		return nil
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Build a labelled JSONL dataset from a Juliet-style test suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		out, _ := cmd.Flags().GetString("out")
		ignore, _ := cmd.Flags().GetStringSlice("ignore")
		noProgress, _ := cmd.Flags().GetBool("no-progress")

		opts := dataset.Options{
			MinLength: settings.MinLength,
			Workers:   settings.Workers,
			Ignore:    ignore,
			Logger:    logger.With().Str("component", "dataset").Logger(),
		}
		if cmd.Flags().Changed("min-length") {
			opts.MinLength, _ = cmd.Flags().GetInt("min-length")
		}
		if cmd.Flags().Changed("workers") {
			opts.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if !noProgress {
			opts.Progress = cmd.ErrOrStderr()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "→ Processing %s\n", root)
		stats, err := dataset.PrepareFile(cmd.Context(), root, out, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Parsed %d files, %d functions\n", stats.Files, stats.Functions)
		if stats.Skipped > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠ Skipped %d unreadable files\n", stats.Skipped)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %d labelled functions to %s\n", stats.Saved, out)
		return nil
	},
}
