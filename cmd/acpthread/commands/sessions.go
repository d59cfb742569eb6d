package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/acpthread/internal/acp"
	"github.com/opencode-ai/acpthread/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions the agent can resume",
	RunE:  listAgentSessions,
}

func listAgentSessions(cmd *cobra.Command, args []string) error {
	dir, settings, err := loadSettings()
	if err != nil {
		return err
	}
	if len(settings.AgentCommand) == 0 {
		return fmt.Errorf("no agent command configured (set agentCommand or pass --agent)")
	}

	client := acp.NewClient(acp.Config{
		Command: settings.AgentCommand,
		Cwd:     dir,
	})
	defer client.Disconnect()

	connected := make(chan error, 1)
	client.Connect(func(err error) { connected <- err })
	if err := <-connected; err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	type result struct {
		sessions []types.SessionInfo
		err      error
	}
	done := make(chan result, 1)
	client.ListSessions(func(sessions []types.SessionInfo, err error) {
		done <- result{sessions, err}
	})
	res := <-done
	if res.err != nil {
		return res.err
	}

	if len(res.sessions) == 0 {
		fmt.Println("no resumable sessions")
		return nil
	}
	for _, s := range res.sessions {
		if s.Title != "" {
			fmt.Printf("%s  %s\n", s.ID, s.Title)
		} else {
			fmt.Println(s.ID)
		}
	}
	return nil
}
