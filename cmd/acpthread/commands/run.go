package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/acpthread/internal/acp"
	"github.com/opencode-ai/acpthread/internal/command"
	"github.com/opencode-ai/acpthread/internal/config"
	"github.com/opencode-ai/acpthread/internal/engine"
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/internal/toolcall"
	"github.com/opencode-ai/acpthread/internal/track"
	"github.com/opencode-ai/acpthread/pkg/types"
)

var (
	runSession string
	runTitle   string
	runMode    string
	runYolo    bool
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send one prompt turn to the agent and stream the reply",
	Long: `Send one prompt turn to the agent and stream the reply to stdout.

Examples:
  acpthread run "Fix the bug in main.go"
  acpthread run --agent "claude-code-acp" "Explain this code"
  acpthread run --session sess_abc123 "Continue where we left off"
  acpthread run --mode plan "Outline the refactor first"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func init() {
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to resume")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Thread title")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Session mode to select before prompting")
	runCmd.Flags().BoolVar(&runYolo, "yolo", false, "Auto-approve permission requests")
}

func runTurn(cmd *cobra.Command, args []string) error {
	dir, settings, err := loadSettings()
	if err != nil {
		return err
	}
	if len(settings.AgentCommand) == 0 {
		return fmt.Errorf("no agent command configured (set agentCommand or pass --agent)")
	}
	message := strings.Join(args, " ")

	thread, changes, cleanup, err := buildThread(dir, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	// Stream assistant text as it arrives.
	unsubChunk := thread.Bus().Subscribe(event.Chunk, func(ev event.Event) {
		if data, ok := ev.Data.(event.ChunkData); ok {
			fmt.Print(data.Text)
		}
	})
	defer unsubChunk()

	unsubPerm := thread.Bus().Subscribe(event.PermissionRequested, func(ev event.Event) {
		data, ok := ev.Data.(event.PermissionRequestedData)
		if !ok {
			return
		}
		req, ok := data.Request.(*engine.PermissionRequest)
		if !ok {
			return
		}
		answerPermission(req, runYolo)
	})
	defer unsubPerm()

	if err := connect(thread); err != nil {
		return err
	}
	if err := establishSession(thread, runSession); err != nil {
		return err
	}

	if runMode != "" {
		done := make(chan error, 1)
		thread.SetMode(runMode, func(err error) { done <- err })
		if err := <-done; err != nil {
			return fmt.Errorf("set mode %q: %w", runMode, err)
		}
	}

	// Ctrl-C cancels the turn instead of killing the process outright.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		fmt.Fprintln(os.Stderr, "\ncancelling...")
		_ = thread.Cancel()
	}()

	stopped := make(chan error, 1)
	err = thread.SendPrompt(message, func(stop *types.StopInfo, err error) {
		if err == nil && stop != nil && stop.Reason != types.StopEndTurn {
			fmt.Fprintf(os.Stderr, "\nturn stopped: %s\n", stop.Reason)
		}
		stopped <- err
	})
	if err != nil {
		return err
	}
	if err := <-stopped; err != nil {
		return err
	}

	fmt.Println()
	printSummary(thread, changes)
	return nil
}

// buildThread wires the engine, its transport, and the tool-call
// consumers from the effective settings.
func buildThread(dir string, settings *config.Settings) (*engine.Engine, *track.ChangeTracker, func(), error) {
	client := acp.NewClient(acp.Config{
		Command: settings.AgentCommand,
		Cwd:     dir,
	})

	thread := engine.New(client,
		engine.WithTitle(runTitle),
		engine.WithCwd(dir),
		engine.WithDefaultMode(settings.DefaultMode),
		engine.WithMCPServers(settings.MCPServers),
		engine.WithMatcher(toolcall.NewMatcher(settings.PlanWriteTools, settings.PlanModeTools)),
		engine.WithCommandRegistry(command.NewRegistry()),
	)

	changes := track.NewChangeTracker(thread.Bus())

	var follower *track.Follower
	if settings.FollowMode {
		follower = track.NewFollower(thread.Bus())
	}

	cleanup := func() {
		changes.Close()
		if follower != nil {
			follower.Close()
		}
		_ = client.Disconnect()
	}
	return thread, changes, cleanup, nil
}

func connect(thread *engine.Engine) error {
	done := make(chan error, 1)
	thread.Connect(func(err error) { done <- err })
	if err := <-done; err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func establishSession(thread *engine.Engine, sessionID string) error {
	done := make(chan error, 1)
	cb := func(id string, err error) { done <- err }
	if sessionID != "" {
		thread.LoadSession(sessionID, cb)
	} else {
		thread.NewSession(cb)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// answerPermission resolves an approval request without a UI: approve
// the first allow option under --yolo, otherwise decline.
func answerPermission(req *engine.PermissionRequest, approve bool) {
	if !approve {
		req.Respond("", true)
		return
	}
	for _, opt := range req.Options {
		if strings.HasPrefix(opt.Kind, "allow") {
			req.Respond(opt.ID, false)
			return
		}
	}
	if len(req.Options) > 0 {
		req.Respond(req.Options[0].ID, false)
		return
	}
	req.Respond("", true)
}

// printSummary reports plan progress and touched files after a turn.
func printSummary(thread *engine.Engine, changes *track.ChangeTracker) {
	if progress := thread.Plan().Progress(); progress != "" {
		fmt.Fprintf(os.Stderr, "plan: %s\n", progress)
	}
	for _, fc := range changes.Changes() {
		fmt.Fprintf(os.Stderr, "%s  +%d -%d\n", fc.Path, fc.Additions, fc.Deletions)
	}
}
