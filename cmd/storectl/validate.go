package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"pipe-company/internal/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newValidateCmd(a *app) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the data integrity checks",
		Long: `validate runs every consistency check against the database and exits
non-zero when any error-level check finds violations. With --fix, orphaned
rows are repaired first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}
			checker := integrity.NewChecker(db.DB(), a.log)
			return runValidate(cmd, a, checker, fix)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "delete orphaned rows before checking")
	return cmd
}

func runValidate(cmd *cobra.Command, a *app, checker *integrity.Checker, fix bool) error {
	ctx := cmd.Context()

	if state, err := checker.MigrationState(ctx); err != nil {
		a.log.Warn("Could not read migration state", zap.Error(err))
	} else if !state.UpToDate() {
		a.printf("Schema is behind: version %d of %d, %d pending\n", state.CurrentVersion, state.LatestVersion, state.Pending)
	}

	if fix {
		result, err := checker.FixOrphans(ctx)
		if err != nil {
			return err
		}
		a.printf("Repaired %d row(s): %d images, %d documents, %d discounts, %d quote items detached\n",
			result.Total(), result.ImagesDeleted, result.DocumentsDeleted, result.DiscountsDeleted, result.QuoteItemsDetached)
	}

	report := checker.Run(ctx)
	if err := writeReport(a.out, report); err != nil {
		return err
	}
	if !report.Passed {
		return errChecksFailed
	}
	return nil
}

func writeReport(w io.Writer, report *integrity.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSEVERITY\tRESULT\tSAMPLES")
	for _, c := range report.Checks {
		result := "ok"
		switch {
		case c.Errored():
			result = "error: " + c.Error
		case c.Violations > 0:
			result = fmt.Sprintf("%d violation(s)", c.Violations)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Severity, result, strings.Join(c.SampleIDs, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := "PASSED"
	if !report.Passed {
		status = "FAILED"
	}
	_, err := fmt.Fprintf(w, "\n%s: %d error(s), %d warning(s) in %s\n", status, report.Errors, report.Warnings, report.Duration.Round(time.Millisecond))
	return err
}
