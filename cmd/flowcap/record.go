package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowcap/pkg/action"
	"flowcap/pkg/config"
	"flowcap/pkg/dom"
	"flowcap/pkg/recording"
	"flowcap/pkg/selector"
)

// newRecordCommand creates the record command with subcommands
func newRecordCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect and manage captured recordings",
		Long: `Recording commands operate on the action logs captured by the daemon.
The recording lifecycle itself (start, pause, stop) is driven from the
browser side; these commands work with the artifacts it leaves behind.

Available subcommands:
  - list:      List stored recordings
  - show:      Show details of a specific recording
  - delete:    Delete recordings
  - export:    Export a recording to a different format
  - verify:    Check a recording's selectors against a page snapshot`,
		Example: `  # List all recordings
  flowcap record list

  # Show the actions of a recording
  flowcap record show abc123def

  # Export a recording as YAML
  flowcap record export abc123def --format yaml --output checkout.yaml

  # Verify selectors still resolve against a saved page
  flowcap record verify abc123def --html snapshot.html`,
	}

	// Add subcommands
	cmd.AddCommand(newRecordListCommand(ctx, logger))
	cmd.AddCommand(newRecordShowCommand(ctx, logger))
	cmd.AddCommand(newRecordDeleteCommand(ctx, logger))
	cmd.AddCommand(newRecordExportCommand(ctx, logger))
	cmd.AddCommand(newRecordVerifyCommand(ctx, logger))

	return cmd
}

// newRecordListCommand creates the record list subcommand
func newRecordListCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	var configPath string
	var limit int
	var testName string
	var since string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recordings",
		Long:  `List stored recordings with optional filtering.`,
		Example: `  # List all recordings
  flowcap record list

  # List last 10 recordings
  flowcap record list --limit 10

  # List recordings for a test name
  flowcap record list --name checkout

  # List recordings from the last hour
  flowcap record list --since 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordList(ctx, logger, configPath, limit, testName, since)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of recordings to list")
	cmd.Flags().StringVarP(&testName, "name", "n", "", "Filter by test name substring")
	cmd.Flags().StringVar(&since, "since", "", "Filter by time (e.g., 1h, 30m, 24h)")

	return cmd
}

// newRecordShowCommand creates the record show subcommand
func newRecordShowCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	var configPath string
	var format string

	cmd := &cobra.Command{
		Use:   "show <recording-id>",
		Short: "Show details of a specific recording",
		Long:  `Display the header and action list of a specific recording.`,
		Args:  cobra.ExactArgs(1),
		Example: `  # Show recording details
  flowcap record show abc123def

  # Show recording in JSON format
  flowcap record show abc123def --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordShow(ctx, logger, configPath, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")

	return cmd
}

// newRecordDeleteCommand creates the record delete subcommand
func newRecordDeleteCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	var configPath string
	var all bool
	var force bool

	cmd := &cobra.Command{
		Use:   "delete [recording-id...]",
		Short: "Delete recordings",
		Long:  `Delete one or more recordings by ID, or delete all recordings.`,
		Example: `  # Delete specific recordings
  flowcap record delete abc123def xyz789abc

  # Delete all recordings (with confirmation)
  flowcap record delete --all

  # Force delete all recordings without confirmation
  flowcap record delete --all --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordDelete(ctx, logger, configPath, args, all, force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVar(&all, "all", false, "Delete all recordings")
	cmd.Flags().BoolVar(&force, "force", false, "Force deletion without confirmation")

	return cmd
}

// newRecordExportCommand creates the record export subcommand
func newRecordExportCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	var configPath string
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export <recording-id>",
		Short: "Export a recording to a different format",
		Long:  `Export a recording as JSON or YAML, to a file or stdout.`,
		Args:  cobra.ExactArgs(1),
		Example: `  # Export a recording as JSON to stdout
  flowcap record export abc123def

  # Export a recording as YAML to a file
  flowcap record export abc123def --format yaml --output checkout.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordExport(ctx, logger, configPath, args[0], format, output)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&format, "format", "json", "Export format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// newRecordVerifyCommand creates the record verify subcommand
func newRecordVerifyCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	var configPath string
	var htmlPath string

	cmd := &cobra.Command{
		Use:   "verify <recording-id>",
		Short: "Check a recording's selectors against a page snapshot",
		Long: `Resolve each action's selector strategy against a saved HTML snapshot
and report which actions would still find their target. Useful after a
frontend change to see how much of a recorded flow survived.`,
		Args: cobra.ExactArgs(1),
		Example: `  # Verify a recording against a saved page
  flowcap record verify abc123def --html snapshot.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordVerify(ctx, logger, configPath, args[0], htmlPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Path to an HTML snapshot of the page (required)")

	cmd.MarkFlagRequired("html")

	return cmd
}

// Implementation functions

func runRecordList(ctx context.Context, logger *zap.Logger, configPath string, limit int, testName, since string) error {
	store, err := openRecordingStore(configPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Build filter
	filter := recording.ListFilter{
		Limit:    limit,
		TestName: testName,
	}

	if since != "" {
		duration, err := time.ParseDuration(since)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", since)
		}
		filter.Since = time.Now().Add(-duration)
	}

	// List recordings
	recordings, err := store.List(filter)
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}

	// Display results
	fmt.Printf("📋 Found %d recordings:\n\n", len(recordings))
	fmt.Printf("%-38s %-24s %-40s %-8s %-20s\n", "ID", "TEST", "URL", "ACTIONS", "STARTED")
	fmt.Printf("%s\n", strings.Repeat("-", 134))

	for _, rec := range recordings {
		fmt.Printf("%-38s %-24s %-40s %-8d %-20s\n",
			rec.ID,
			truncateString(rec.TestName, 24),
			truncateString(rec.URL, 40),
			rec.ActionCount(),
			formatRecordingTime(rec.StartTime))
	}

	return nil
}

func runRecordShow(ctx context.Context, logger *zap.Logger, configPath, recordingID, format string) error {
	store, err := openRecordingStore(configPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Load recording
	rec, err := store.Load(recordingID)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}

	// Display recording based on format
	switch format {
	case "json", "yaml":
		data, err := recording.Export(rec, format)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	default:
		return displayRecordingTable(rec)
	}
}

func runRecordDelete(ctx context.Context, logger *zap.Logger, configPath string, recordingIDs []string, all bool, force bool) error {
	store, err := openRecordingStore(configPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if all {
		if !force {
			fmt.Print("⚠️  Are you sure you want to delete ALL recordings? (y/N): ")
			var response string
			fmt.Scanln(&response)
			if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
				fmt.Println("❌ Deletion cancelled")
				return nil
			}
		}

		if err := store.DeleteAll(); err != nil {
			return fmt.Errorf("failed to delete all recordings: %w", err)
		}

		fmt.Println("✅ All recordings deleted")
		return nil
	}

	if len(recordingIDs) == 0 {
		return fmt.Errorf("no recording IDs specified")
	}

	// Delete specific recordings
	for _, id := range recordingIDs {
		if err := store.Delete(id); err != nil {
			logger.Error("Failed to delete recording", zap.String("id", id), zap.Error(err))
			fmt.Printf("❌ Failed to delete recording %s: %v\n", id, err)
		} else {
			fmt.Printf("✅ Deleted recording %s\n", id)
		}
	}

	return nil
}

func runRecordExport(ctx context.Context, logger *zap.Logger, configPath, recordingID, format, output string) error {
	store, err := openRecordingStore(configPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Load(recordingID)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}

	data, err := recording.Export(rec, format)
	if err != nil {
		return fmt.Errorf("failed to export recording: %w", err)
	}

	if output == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("📤 Exported recording %s to %s (%d bytes)\n", rec.ID, output, len(data))
	return nil
}

func runRecordVerify(ctx context.Context, logger *zap.Logger, configPath, recordingID, htmlPath string) error {
	store, err := openRecordingStore(configPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Load(recordingID)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}

	markup, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("failed to read HTML snapshot: %w", err)
	}

	snap, err := dom.Parse(string(markup), rec.URL)
	if err != nil {
		return fmt.Errorf("failed to parse HTML snapshot: %w", err)
	}

	fmt.Printf("🔍 Verifying %s against %s\n\n", rec.ID, htmlPath)
	fmt.Printf("%-8s %-12s %-40s %-10s\n", "ID", "TYPE", "TARGET", "RESOLVED")
	fmt.Printf("%s\n", strings.Repeat("-", 74))

	var checked, resolved int
	for _, a := range rec.Actions {
		if a.Selector == nil {
			continue
		}
		checked++

		found := selector.Resolve(snap, a.Selector) != nil
		status := "❌ no"
		if found {
			resolved++
			status = "✅ yes"
		}

		fmt.Printf("%-8s %-12s %-40s %-10s\n",
			a.ID,
			string(a.Type),
			truncateString(a.Selector.Fingerprint(), 40),
			status)
	}

	fmt.Printf("\n📊 %d of %d targeted actions still resolve\n", resolved, checked)
	if checked > 0 && resolved < checked {
		return fmt.Errorf("%d selectors no longer resolve", checked-resolved)
	}
	return nil
}

// Helper functions

func loadConfigForRecordings(configPath string) (*config.Config, error) {
	// If no config path specified, use defaults
	if configPath == "" {
		return config.DefaultConfig(), nil
	}

	// Load configuration from file
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func openRecordingStore(configPath string, logger *zap.Logger) (*recording.FileStore, error) {
	cfg, err := loadConfigForRecordings(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := recording.NewFileStore(cfg.Recordings.Directory, cfg.Recordings.MaxFiles, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording store: %w", err)
	}

	return store, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatRecordingTime reformats a stored RFC3339 timestamp for table
// output, falling back to the raw string if it does not parse.
func formatRecordingTime(stored string) string {
	t, err := recording.ParseTime(stored)
	if err != nil {
		return stored
	}
	return t.Format("2006-01-02 15:04:05")
}

func displayRecordingTable(rec *recording.Recording) error {
	fmt.Printf("🎬 Recording Details\n\n")
	fmt.Printf("ID:         %s\n", rec.ID)
	fmt.Printf("Test:       %s\n", rec.TestName)
	fmt.Printf("URL:        %s\n", rec.URL)
	fmt.Printf("Viewport:   %dx%d\n", rec.Viewport.Width, rec.Viewport.Height)
	if rec.UserAgent != "" {
		fmt.Printf("User agent: %s\n", truncateString(rec.UserAgent, 80))
	}
	fmt.Printf("Started:    %s\n", formatRecordingTime(rec.StartTime))
	fmt.Printf("Duration:   %v\n", rec.Duration())
	fmt.Printf("Actions:    %d\n", rec.ActionCount())

	fmt.Printf("\n%-8s %-12s %-13s %-34s %-30s\n", "ID", "TYPE", "TIMESTAMP", "TARGET", "DETAIL")
	fmt.Printf("%s\n", strings.Repeat("-", 102))

	for _, a := range rec.Actions {
		target := ""
		if a.Selector != nil {
			target = a.Selector.Fingerprint()
		}
		fmt.Printf("%-8s %-12s %-13d %-34s %-30s\n",
			a.ID,
			string(a.Type),
			a.Timestamp,
			truncateString(target, 34),
			truncateString(actionDetail(a), 30))
	}

	return nil
}

// actionDetail renders the payload of an action as a single table cell.
func actionDetail(a *action.Action) string {
	switch {
	case a.Click != nil:
		return fmt.Sprintf("(%d,%d) %s", a.Click.X, a.Click.Y, a.Click.Button)
	case a.Input != nil:
		return a.Input.Value
	case a.Select != nil:
		return a.Select.Value
	case a.Submit != nil:
		if a.Submit.FormID != "" {
			return "form#" + a.Submit.FormID
		}
		return a.Submit.FormAction
	case a.Keypress != nil:
		return a.Keypress.Key
	case a.Scroll != nil:
		return fmt.Sprintf("y=%d", a.Scroll.ScrollY)
	case a.Navigation != nil:
		return "to " + a.Navigation.ToURL
	default:
		return ""
	}
}
