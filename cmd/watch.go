package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotplate/pkg/hotplate"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Recompile templates on change and report each result",
	Long: `Watch the template root and recompile after every burst of changes,
printing one line per reload attempt. A failed compile lists its problems and
keeps the previous templates active.

Examples:
  hotplate watch
  hotplate watch --debounce 250ms --pattern '*.html'
  hotplate watch --format json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchFormat string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "text", "Output format (text, json)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(watchFormat, "text", "json"); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tmpl, err := openTemplates(cfg, logger, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %s (%d templates, debounce %s)\n",
		tmpl.Root(), len(tmpl.Names()), cfg.Development.Debounce)
	return watchTemplates(ctx, tmpl, out, watchFormat)
}

// watchTemplates reports reload events until ctx is cancelled or the watch
// session ends.
func watchTemplates(ctx context.Context, tmpl *hotplate.Templates, out io.Writer, format string) error {
	events := tmpl.Subscribe()
	defer tmpl.Unsubscribe(events)

	session, err := tmpl.Watch(ctx)
	if err != nil {
		return err
	}
	defer session.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-session.Done():
			break loop
		case e, ok := <-events:
			if !ok {
				break loop
			}
			if err := writeEvent(out, format, e); err != nil {
				return err
			}
		}
	}

	if format == "text" {
		stats := session.Stats()
		fmt.Fprintf(out, "stopped after %d reload(s), %d failure(s)\n", stats.Reloads, stats.Failures)
	}
	return nil
}

type eventRecord struct {
	Generation uint64    `json:"generation"`
	Templates  int       `json:"templates"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	Problems   []string  `json:"problems,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func writeEvent(out io.Writer, format string, e hotplate.ReloadEvent) error {
	rec := eventRecord{
		Generation: e.Generation,
		Templates:  e.Templates,
		OK:         e.Succeeded(),
		DurationMs: e.Duration.Milliseconds(),
		Timestamp:  e.Timestamp,
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
		for _, p := range hotplate.Problems(e.Err) {
			rec.Problems = append(rec.Problems, formatProblem(p))
		}
	}

	if format == "json" {
		return json.NewEncoder(out).Encode(rec)
	}

	stamp := rec.Timestamp.Format("15:04:05")
	if rec.OK {
		_, err := fmt.Fprintf(out, "%s generation %d: %d template(s) in %s\n",
			stamp, rec.Generation, rec.Templates, e.Duration.Round(time.Microsecond))
		return err
	}

	if _, err := fmt.Fprintf(out, "%s reload failed, keeping generation %d\n", stamp, rec.Generation); err != nil {
		return err
	}
	if len(rec.Problems) == 0 {
		_, err := fmt.Fprintf(out, "  %s\n", rec.Error)
		return err
	}
	for _, p := range rec.Problems {
		if _, err := fmt.Fprintf(out, "  %s\n", p); err != nil {
			return err
		}
	}
	return nil
}
