package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apporte/internal/exitcode"
	"github.com/felixgeelhaar/apporte/internal/health"
	"github.com/felixgeelhaar/apporte/internal/log"
)

// doctorReport is the JSON form of 'doctor'
type doctorReport struct {
	Status health.Status    `json:"status"`
	Config string           `json:"config"`
	Checks []*health.Result `json:"checks"`
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, storage and API access",
		Long: `Check that apporte can work: the token storage backend can be read, the
API host answers, and the stored session has not expired. The session check
reads the token locally and never calls the API, so it does not sign you out.

Exits 0 when nothing is broken (a missing session only warns) and 1
otherwise.

Examples:
  apporte doctor
  apporte doctor --json`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}

	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())
	log.SetDefaultLogger(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	storage, closer, openErr := openStorage(ctx, cfg.Storage)
	if closer != nil {
		defer func() { _ = closer() }()
	}

	manager := health.NewManager()
	manager.AddChecker(health.NewStorageChecker(storage, openErr))
	manager.AddChecker(health.NewAPIChecker(cfg.APIURL, &http.Client{Timeout: cfg.RequestTimeout}))
	if openErr == nil {
		manager.AddChecker(health.NewSessionChecker(storage))
	}

	results := manager.Check(ctx)
	report := doctorReport{
		Status: health.Overall(results),
		Config: cfg.File(),
		Checks: results,
	}
	checkLog := logger.WithGroup("check")
	for _, r := range results {
		checkLog.Debug("health check", "name", r.Name, "status", r.Status.String(), "latency", r.Latency)
	}

	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, renderDoctor(cc, report))
	}

	if report.Status == health.StatusUnhealthy {
		return exitcode.WithCode(exitcode.GeneralError, nil)
	}
	return nil
}

func renderDoctor(cc *CommandContext, r doctorReport) string {
	styles := outputStyles(cc)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", styles.Muted.Render("Config: "+r.Config))

	for _, c := range r.Checks {
		var mark string
		switch c.Status {
		case health.StatusHealthy:
			mark = styles.Success.Render("✓")
		case health.StatusDegraded:
			mark = styles.Warning.Render("!")
		default:
			mark = styles.Error.Render("✗")
		}
		fmt.Fprintf(&b, "%s %-8s %s\n", mark, c.Name, c.Message)

		keys := make([]string, 0, len(c.Details))
		for k := range c.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s\n", styles.Muted.Render(fmt.Sprintf("%s: %v", k, c.Details[k])))
		}
		if c.Suggestion != "" {
			fmt.Fprintf(&b, "  → %s\n", c.Suggestion)
		}
	}

	fmt.Fprintf(&b, "\nOverall: %s\n", r.Status)
	return b.String()
}
