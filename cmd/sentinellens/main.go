package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yaserfarook1/SentinalLens/internal/logging"
)

var (
	version = "1.0.0"
	verbose bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitNetwork    = 5
	ExitFindings   = 6
)

// FindingsError indicates the audit completed but new findings were detected.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d new findings detected", e.Count)
}

func main() {
	logging.Init(false)

	root := &cobra.Command{
		Use:   "sentinellens",
		Short: "Security workspace log table auditor",
		Long: `SentinelLens audits a security workspace to find log tables that no
detection rule, workbook, or hunt query references, and estimates the
savings of moving them to a cheaper retention tier.

It inspects analytics rules, workbooks, hunt queries, and data connector
feeds, then produces a categorized report with per-table savings.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewAuditCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewVersionCmd())

	if err := root.Execute(); err != nil {
		exitCode := classifyError(err)
		var fe *FindingsError
		if errors.As(err, &fe) {
			slog.Info("findings detected", slog.Int("count", fe.Count))
		} else {
			slog.Error("command failed", slog.String("error", err.Error()))
		}
		os.Exit(exitCode)
	}
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}

	if os.IsNotExist(err) {
		return ExitNotFound
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "not a directory") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") ||
		strings.Contains(msg, "not found") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "temporarily unavailable") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") {
		return ExitInvalidArg
	}

	return ExitInternal
}
