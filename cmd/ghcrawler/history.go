package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nao1215/ghcrawler/internal/config"
	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show previous search runs",
		Long: `History lists the search runs recorded in the history database, newest
first. Given a run ID, it prints the listings of that run instead.

Examples:
  # List the last 20 runs
  ghcrawler history

  # List every run that found a given repository
  ghcrawler history --url https://github.com/encode/httpx

  # Print the result of one run as Markdown
  ghcrawler history --markdown 0b6f3c1e-5d0a-4f55-9d0e-6a1c2b3d4e5f`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().StringP("url", "u", "",
		"Only list runs whose results include this URL")
	addHistoryFlags(cmd)

	return cmd
}

// addHistoryFlags adds the flags shared by the commands reading history.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "",
		"Directory of the run history database (default: XDG data directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ghcrawler in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := historyWriter(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if len(args) == 1 {
		return showRun(ctx, cmd, db, args[0])
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	url, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}

	runs, err := listRuns(ctx, db, limit, url)
	if err != nil {
		return err
	}

	_, err = w.WriteHistory(runs)
	return err
}

// listRuns returns up to limit runs, restricted to those containing url
// when it is not empty.
func listRuns(ctx context.Context, db *database.RunDB, limit int, url string) ([]database.RunSummary, error) {
	if url == "" {
		return db.ListRuns(ctx, limit)
	}

	ids, err := db.RunsWithURL(ctx, url)
	if err != nil {
		return nil, err
	}
	all, err := db.ListRuns(ctx, 0)
	if err != nil {
		return nil, err
	}

	runs := lo.Filter(all, func(r database.RunSummary, _ int) bool {
		return lo.Contains(ids, r.ID)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// showRun prints the listings of one stored run. JSON is the default
// format so the output matches that of the search command.
func showRun(ctx context.Context, cmd *cobra.Command, db *database.RunDB, id string) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", id)
	}

	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	var w report.Writer = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
	if markdownOutput {
		w = report.NewMarkdownWriter(cmd.OutOrStdout())
	}
	_, err = w.WriteListings(run.Listings)
	return err
}

// historyWriter returns the writer selected by the format flags.
// Plain text is the default.
func historyWriter(cmd *cobra.Command) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return report.NewJSONWriter(out, report.WithPrettyPrint()), nil
	case markdownOutput:
		return report.NewMarkdownWriter(out), nil
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(getVerboseFlag(cmd))), nil
	}
}

// openHistory opens the history database. Its directory comes from
// --db-dir, then the configuration file, then the XDG data directory.
func openHistory(cmd *cobra.Command) (*database.RunDB, error) {
	dbDir, err := historyDir(cmd)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func historyDir(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("db-dir") {
		return cmd.Flags().GetString("db-dir")
	}

	cfg := config.NewConfig()
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if path := config.FindConfigFile(configFile); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
	} else if configFile != "" {
		return "", newUsageError(fmt.Errorf("%w: %s", config.ErrConfigNotFound, configFile))
	}

	if cfg.DBDir == "" {
		return "", errors.New("no history database directory configured")
	}
	return cfg.DBDir, nil
}
