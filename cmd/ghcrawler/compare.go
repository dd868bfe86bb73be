package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/model"
)

// NewCompareCmd creates the compare command.
// This command compares the results of two runs stored in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <run-id> [other-run-id]",
		Short: "Compare the results of two runs",
		Long: `Compare shows which result URLs appeared and disappeared between two runs.

With one run ID, the run is compared with the previous successful run of the
same query and search type. With two, the first is treated as the older run.
Use 'ghcrawler history' to find run IDs.

Examples:
  # Compare a run with the previous run of the same query
  ghcrawler compare 0b6f3c1e-5d0a-4f55-9d0e-6a1c2b3d4e5f

  # Compare two specific runs as JSON
  ghcrawler compare --json <older-run-id> <newer-run-id>`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCompareCmd,
	}

	addHistoryFlags(cmd)

	return cmd
}

// ComparisonResult holds the comparison between two runs.
type ComparisonResult struct {
	Query      string            `json:"query"`
	SearchType model.SearchType  `json:"search_type"`
	Previous   RunInfo           `json:"previous"`
	Current    RunInfo           `json:"current"`
	Diff       model.ListingDiff `json:"diff"`
}

// RunInfo identifies one side of a comparison.
type RunInfo struct {
	ID           string `json:"id"`
	StartedAt    string `json:"started_at"`
	ListingCount int    `json:"listing_count"`
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	previous, current, err := loadComparedRuns(cmd.Context(), db, args)
	if err != nil {
		return err
	}

	result := compareRuns(previous, current)

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// loadComparedRuns returns the older and newer run named by args.
func loadComparedRuns(ctx context.Context, db *database.RunDB, args []string) (*model.Run, *model.Run, error) {
	first, err := getRun(ctx, db, args[0])
	if err != nil {
		return nil, nil, err
	}

	if len(args) == 2 {
		second, err := getRun(ctx, db, args[1])
		if err != nil {
			return nil, nil, err
		}
		return first, second, nil
	}

	previous, err := db.PreviousRun(ctx, first.Query(), first.SearchType, first.StartedAt)
	if err != nil {
		return nil, nil, err
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("no earlier run of %q (%s) to compare with", first.Query(), first.SearchType)
	}
	return previous, first, nil
}

func getRun(ctx context.Context, db *database.RunDB, id string) (*model.Run, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, nil
}

// compareRuns computes the comparison between previous and current.
func compareRuns(previous, current *model.Run) *ComparisonResult {
	return &ComparisonResult{
		Query:      current.Query(),
		SearchType: current.SearchType,
		Previous:   newRunInfo(previous),
		Current:    newRunInfo(current),
		Diff:       model.DiffListings(previous.Listings, current.Listings),
	}
}

func newRunInfo(r *model.Run) RunInfo {
	return RunInfo{
		ID:           r.ID,
		StartedAt:    r.StartedAt.Format("2006-01-02 15:04:05"),
		ListingCount: len(r.Listings),
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(w io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run Comparison: %s (%s)\n\n", result.Query, result.SearchType)

	sb.WriteString("| Metric | Previous | Current |\n")
	sb.WriteString("|--------|----------|---------|\n")
	fmt.Fprintf(&sb, "| Run | `%s` | `%s` |\n", result.Previous.ID, result.Current.ID)
	fmt.Fprintf(&sb, "| Date | %s | %s |\n", result.Previous.StartedAt, result.Current.StartedAt)
	fmt.Fprintf(&sb, "| Results | %d | %d |\n", result.Previous.ListingCount, result.Current.ListingCount)

	if len(result.Diff.Added) > 0 {
		fmt.Fprintf(&sb, "\n## New Results (%d)\n\n", len(result.Diff.Added))
		for _, u := range result.Diff.Added {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}

	if len(result.Diff.Removed) > 0 {
		fmt.Fprintf(&sb, "\n## Dropped Results (%d)\n\n", len(result.Diff.Removed))
		for _, u := range result.Diff.Removed {
			fmt.Fprintf(&sb, "- ~~%s~~\n", u)
		}
	}

	if len(result.Diff.Kept) > 0 {
		fmt.Fprintf(&sb, "\n---\n\n*%d results unchanged*\n", len(result.Diff.Kept))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: %s (%s)\n", result.Query, result.SearchType)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nPrevious run: %s  %s  (%d results)\n",
		shortRunID(result.Previous.ID), result.Previous.StartedAt, result.Previous.ListingCount)
	fmt.Fprintf(&sb, "Current run:  %s  %s  (%d results)\n",
		shortRunID(result.Current.ID), result.Current.StartedAt, result.Current.ListingCount)

	if !result.Diff.Changed() {
		sb.WriteString("\nResults: UNCHANGED\n")
	}

	if len(result.Diff.Added) > 0 {
		fmt.Fprintf(&sb, "\nNew Results (%d):\n", len(result.Diff.Added))
		for _, u := range result.Diff.Added {
			fmt.Fprintf(&sb, "  [+] %s\n", u)
		}
	}

	if len(result.Diff.Removed) > 0 {
		fmt.Fprintf(&sb, "\nDropped Results (%d):\n", len(result.Diff.Removed))
		for _, u := range result.Diff.Removed {
			fmt.Fprintf(&sb, "  [-] %s\n", u)
		}
	}

	if len(result.Diff.Kept) > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d results\n", len(result.Diff.Kept))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// shortRunID returns the first eight characters of a run ID.
func shortRunID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
