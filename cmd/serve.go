package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotplate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Preview templates over HTTP with live reload",
	Long: `Start a development server that renders templates on request.

  GET /                 index.html, or a listing of every template
  GET /<name>?k=v       renders <name> with the query string as context
  GET /_templates       JSON list of templates and the active generation
  GET /_health          liveness and generation
  GET /_livereload      websocket pushing every reload attempt

The root is watched for changes when development.hot_reload is set, or with
--watch, which overrides it. Broken edits keep the last good templates live
and are reported in the log and to open pages.

Examples:
  hotplate serve --watch
  hotplate serve --port 3000 --root ./site
  HOTPLATE_DEVELOPMENT_HOT_RELOAD=true hotplate serve
  hotplate serve --live-reload=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addServerFlags(serveCmd.Flags())
	addWatchFlag(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tmpl, err := openTemplates(cfg, logger, cfg.Development.HotReload)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := tmpl.Watch(ctx)
	if err != nil {
		return err
	}
	defer session.Stop()

	return server.New(tmpl, cfg.Server, logger).Start(ctx)
}
