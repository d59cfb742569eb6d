package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/acpthread/internal/config"
	"github.com/opencode-ai/acpthread/internal/logging"
	"github.com/opencode-ai/acpthread/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose a thread over HTTP",
	Long: `Connect to the agent, create a session, and serve the thread over
HTTP: state, messages, plan, file changes, and a server-sent event
stream. POST endpoints accept prompts, cancellation, mode changes, and
permission replies.

Examples:
  acpthread serve
  acpthread serve --listen 127.0.0.1:7433`,
	RunE: serveThread,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "Listen address (overrides config)")
}

func serveThread(cmd *cobra.Command, args []string) error {
	dir, settings, err := loadSettings()
	if err != nil {
		return err
	}
	if len(settings.AgentCommand) == 0 {
		return fmt.Errorf("no agent command configured (set agentCommand or pass --agent)")
	}

	addr := settings.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	thread, changes, cleanup, err := buildThread(dir, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := connect(thread); err != nil {
		return err
	}
	if err := establishSession(thread, ""); err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	if addr != "" {
		cfg.Addr = addr
	}
	srv := server.New(cfg, thread, changes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config edits take effect on the logger without a restart.
	stopWatch, err := config.Watch(dir, func(s *config.Settings) {
		logging.Init(logging.Config{Level: logging.ParseLevel(s.LogLevel)})
	})
	if err == nil {
		defer stopWatch()
	}

	fmt.Printf("session %s on http://%s\n", thread.SessionID(), cfg.Addr)
	return srv.Run(ctx)
}
