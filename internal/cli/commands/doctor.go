package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/internal/config"
	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/registry"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
	"github.com/spf13/cobra"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// errUnhealthy is returned when at least one check failed.
var errUnhealthy = errors.New("one or more checks failed")

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check every configured source",
		Long: `Check the configuration and every configured source.

For each source the doctor verifies that the vendor is registered, that the
identity settings parse, that the schema snapshot holds an entry for it, and,
unless running offline, that a connection opens and the catalog can be read.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  leapentity doctor
  leapentity doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionOf(cmd)
			if err != nil {
				return err
			}
			report := runDoctor(cmd.Context(), s.Config, s.Logger)

			switch s.Out.Mode() {
			case output.ModeJSON:
				err = s.Out.JSON(report)
			case output.ModeMarkdown:
				renderDoctorMarkdown(s.Out, report)
			default:
				renderDoctorText(s.Out, report)
			}
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return errUnhealthy
			}
			return nil
		},
	}
}

// DoctorOutput is the result of the doctor command.
type DoctorOutput struct {
	ConfigFile string         `json:"config_file,omitempty"`
	SchemaFile string         `json:"schema_file,omitempty"`
	Offline    bool           `json:"offline"`
	Sources    []SourceHealth `json:"sources"`
	Failed     int            `json:"failed"`
	Warnings   int            `json:"warnings"`
}

// SourceHealth groups the checks of one source.
type SourceHealth struct {
	Name   string        `json:"name"`
	Vendor string        `json:"vendor"`
	Checks []HealthCheck `json:"checks"`
}

// HealthCheck is a single check result.
type HealthCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func runDoctor(ctx context.Context, cfg *config.Config, logger *slog.Logger) *DoctorOutput {
	report := &DoctorOutput{ConfigFile: cfg.ConfigFile, SchemaFile: cfg.SchemaFile, Offline: cfg.Offline}

	var snapshot *schemacache.File
	var snapshotErr error
	if cfg.SchemaFile != "" {
		if _, err := os.Stat(cfg.SchemaFile); err == nil || cfg.Offline {
			snapshot, snapshotErr = schemacache.Load(cfg.SchemaFile)
		}
	}

	for _, name := range cfg.SourceNames() {
		src := cfg.Sources[name]
		h := SourceHealth{Name: name, Vendor: src.Vendor}
		h.Checks = checkSource(ctx, cfg, name, src, snapshot, snapshotErr, logger)
		for _, c := range h.Checks {
			switch c.Status {
			case statusError:
				report.Failed++
			case statusWarn:
				report.Warnings++
			}
		}
		report.Sources = append(report.Sources, h)
	}
	return report
}

func checkSource(ctx context.Context, cfg *config.Config, name string, src config.SourceConfig, snapshot *schemacache.File, snapshotErr error, logger *slog.Logger) []HealthCheck {
	var checks []HealthCheck
	add := func(check, status, detail string) {
		checks = append(checks, HealthCheck{Name: check, Status: status, Detail: detail})
	}

	if !provider.IsRegistered(src.Vendor) {
		add("vendor", statusError, fmt.Sprintf("%q is not registered (have %s)", src.Vendor, strings.Join(provider.ListProviders(), ", ")))
		return checks
	}
	add("vendor", statusPass, src.Vendor)

	id, err := src.Identity(name)
	if err == nil {
		_, err = src.IsolationLevel()
	}
	if err != nil {
		add("identity", statusError, err.Error())
		return checks
	}
	add("identity", statusPass, id.Key())

	var entry *schemacache.Snapshot
	switch {
	case snapshotErr != nil:
		add("snapshot", statusError, snapshotErr.Error())
	case snapshot == nil:
		status := statusPass
		if cfg.Offline {
			status = statusError
		}
		add("snapshot", status, "no snapshot file")
	default:
		if s, ok := snapshot.Providers[id.Key()]; ok {
			entry = &s
			add("snapshot", statusPass, fmt.Sprintf("%d tables", len(s.Tables)))
		} else {
			status := statusWarn
			if cfg.Offline {
				status = statusError
			}
			add("snapshot", status, "no entry for this source")
		}
	}

	if cfg.Offline {
		if entry != nil {
			add("connect", statusPass, "skipped, offline")
		}
		return checks
	}

	reg := registry.New(registry.WithLogger(logger))
	defer func() { _ = reg.Close() }()
	p, err := reg.GetOrCreate(ctx, id, src.Connection)
	if err != nil {
		add("connect", statusError, err.Error())
		return checks
	}
	if p.Dialect().SchemaOnly {
		add("connect", statusPass, "schema-only provider")
		return checks
	}
	conn, err := p.Open(ctx, src.Connection)
	if err != nil {
		add("connect", statusError, err.Error())
		return checks
	}
	defer func() { _ = p.Release(conn) }()
	add("connect", statusPass, "")

	tables, err := p.Tables(ctx, conn)
	if err != nil {
		add("catalog", statusError, err.Error())
		return checks
	}
	status := statusPass
	if len(tables) == 0 {
		status = statusWarn
	}
	add("catalog", status, fmt.Sprintf("%d tables", len(tables)))
	return checks
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()
	titleCaser := cases.Title(language.English)

	r.Println("")
	r.Println(styles.Header.Render("LeapEntity Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	if out.ConfigFile != "" {
		r.Printf("   Config: %s\n", out.ConfigFile)
	}
	if out.SchemaFile != "" {
		r.Printf("   Schema: %s (offline: %t)\n", out.SchemaFile, out.Offline)
	}
	r.Println("")

	if len(out.Sources) == 0 {
		r.Println(styles.Warning.Render("   No sources configured"))
	}
	for _, src := range out.Sources {
		r.Println(styles.Bold.Render(fmt.Sprintf("   %s (%s)", src.Name, src.Vendor)))
		r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		for _, c := range src.Checks {
			line := fmt.Sprintf("   %s  %s", styles.Status(c.Status), titleCaser.String(c.Name))
			if c.Detail != "" {
				line += styles.Muted.Render(": " + c.Detail)
			}
			r.Println(line)
		}
		r.Println("")
	}

	summary := fmt.Sprintf("   %d failed, %d warnings", out.Failed, out.Warnings)
	switch {
	case out.Failed > 0:
		r.Println(styles.Error.Render(summary))
	case out.Warnings > 0:
		r.Println(styles.Warning.Render(summary))
	default:
		r.Println(styles.Success.Render(summary))
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	titleCaser := cases.Title(language.English)

	r.Println("# LeapEntity Health Report")
	r.Println("")
	if out.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.ConfigFile)
	}
	if out.SchemaFile != "" {
		r.Printf("- **Schema**: %s\n", out.SchemaFile)
	}
	r.Printf("- **Offline**: %t\n", out.Offline)
	r.Println("")

	for _, src := range out.Sources {
		r.Printf("## %s (%s)\n\n", src.Name, src.Vendor)
		for _, c := range src.Checks {
			r.Printf("- **[%s]** %s", strings.ToUpper(c.Status), titleCaser.String(c.Name))
			if c.Detail != "" {
				r.Printf(": %s", c.Detail)
			}
			r.Println("")
		}
		r.Println("")
	}
	r.Printf("**%d failed, %d warnings**\n", out.Failed, out.Warnings)
}
