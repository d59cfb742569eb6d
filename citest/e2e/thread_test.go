package e2e_test

import (
	"encoding/json"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/acpthread/internal/engine"
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/internal/track"
	"github.com/opencode-ai/acpthread/pkg/types"
)

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	return raw
}

// startThread connects and establishes a session synchronously.
func startThread(agent *scriptedAgent, opts ...engine.Option) *engine.Engine {
	thread := engine.New(agent, opts...)

	connected := make(chan error, 1)
	thread.Connect(func(err error) { connected <- err })
	Eventually(connected).Should(Receive(BeNil()))

	created := make(chan error, 1)
	thread.NewSession(func(id string, err error) { created <- err })
	Eventually(created).Should(Receive(BeNil()))
	return thread
}

// promptAndWait sends one turn and blocks until its stop outcome.
func promptAndWait(thread *engine.Engine, text string) *types.StopInfo {
	done := make(chan *types.StopInfo, 1)
	err := thread.SendPrompt(text, func(stop *types.StopInfo, err error) {
		Expect(err).NotTo(HaveOccurred())
		done <- stop
	})
	Expect(err).NotTo(HaveOccurred())

	var stop *types.StopInfo
	Eventually(done, 5*time.Second).Should(Receive(&stop))
	return stop
}

var _ = Describe("Thread lifecycle", func() {
	It("streams a full coding turn end to end", func() {
		agent := newScriptedAgent()
		agent.script = func(a *scriptedAgent, sessionID string) {
			a.emit(sessionID, &types.SessionUpdate{Kind: types.UpdateAgentThoughtChunk, Text: "planning the edit"})
			a.emit(sessionID, &types.SessionUpdate{Kind: types.UpdateAgentMessageChunk, Text: "Fixing"})
			a.emit(sessionID, &types.SessionUpdate{Kind: types.UpdateAgentMessageChunk, Text: " the bug now."})
			a.emit(sessionID, &types.SessionUpdate{
				Kind: types.UpdateToolCall,
				ToolCall: &types.ToolCallUpdate{
					ID:     "t1",
					Kind:   "edit",
					Title:  "Edit(src/a.lua)",
					Status: types.ToolStatusPending,
					RawInput: mustJSON(map[string]string{
						"file_path":  "src/a.lua",
						"old_string": "return 1\n",
						"new_string": "return 2\n",
					}),
				},
			})
			a.emit(sessionID, &types.SessionUpdate{
				Kind:     types.UpdateToolCallUpdate,
				ToolCall: &types.ToolCallUpdate{ID: "t1", Status: types.ToolStatusCompleted},
			})
		}

		thread := startThread(agent)
		changes := track.NewChangeTracker(thread.Bus())
		defer changes.Close()

		stop := promptAndWait(thread, "fix src/a.lua")
		Expect(stop.Reason).To(Equal(types.StopEndTurn))
		Expect(thread.State()).To(Equal(engine.StateIdle))

		msgs := thread.Messages()
		// user + thought + text + tool call + tool result
		Expect(msgs).To(HaveLen(5))
		Expect(msgs[0].Role).To(Equal(types.RoleUser))
		Expect(msgs[1].ThinkingBlock().Thinking).To(Equal("planning the edit"))
		Expect(msgs[2].Text()).To(Equal("Fixing the bug now."))

		Expect(msgs[3].ToolCall).NotTo(BeNil())
		Expect(msgs[3].ToolCall.Status).To(Equal(types.ToolStatusCompleted))

		result, ok := msgs[4].Blocks[0].(*types.ToolResultBlock)
		Expect(ok).To(BeTrue())
		Expect(result.ToolUseID).To(Equal("t1"))
		Expect(result.IsError).To(BeFalse())

		Eventually(func() int {
			return len(changes.Changes())
		}, 2*time.Second).Should(Equal(1))
		fc, found := changes.Change("src/a.lua")
		Expect(found).To(BeTrue())
		Expect(fc.Writes).To(Equal(1))
		Expect(fc.Additions).To(Equal(1))
		Expect(fc.Deletions).To(Equal(1))
	})

	It("tracks the plan from write-plan tool calls", func() {
		agent := newScriptedAgent()
		agent.script = func(a *scriptedAgent, sessionID string) {
			a.emit(sessionID, &types.SessionUpdate{
				Kind: types.UpdateToolCall,
				ToolCall: &types.ToolCallUpdate{
					ID:     "plan1",
					Title:  "TodoWrite",
					Status: types.ToolStatusCompleted,
					RawInput: mustJSON(map[string]any{
						"todos": []map[string]string{
							{"content": "read the failing test", "status": "completed"},
							{"content": "patch the parser", "status": "in_progress"},
							{"content": "run the suite", "status": "pending"},
						},
					}),
				},
			})
		}

		thread := startThread(agent)
		promptAndWait(thread, "work through the fix")

		todos := thread.Plan().Todos()
		Expect(todos).To(HaveLen(3))
		Expect(todos[1].Status).To(Equal(types.PlanStatusInProgress))
		Expect(thread.Plan().Progress()).To(Equal("1/3 patch the parser"))
		Expect(thread.Plan().Markdown()).To(ContainSubstring("- [x] read the failing test"))
	})

	It("reports declined tool calls through the result message", func() {
		agent := newScriptedAgent()
		agent.script = func(a *scriptedAgent, sessionID string) {
			a.emit(sessionID, &types.SessionUpdate{
				Kind:     types.UpdateToolCall,
				ToolCall: &types.ToolCallUpdate{ID: "t1", Title: "Bash", Status: types.ToolStatusPending},
			})
			a.emit(sessionID, &types.SessionUpdate{
				Kind:     types.UpdateToolCallUpdate,
				ToolCall: &types.ToolCallUpdate{ID: "t1", Status: types.ToolStatusCancelled},
			})
		}

		thread := startThread(agent)
		promptAndWait(thread, "run the risky script")

		msgs := thread.Messages()
		Expect(msgs).To(HaveLen(3))
		result := msgs[2].Blocks[0].(*types.ToolResultBlock)
		Expect(result.IsUserDeclined).To(BeTrue())
	})

	It("answers pending permissions when the turn is cancelled", func() {
		agent := newScriptedAgent()
		agent.stop = types.StopCancelled

		permAnswered := make(chan bool, 1)
		release := make(chan struct{})
		agent.script = func(a *scriptedAgent, sessionID string) {
			a.requestPermission(&engine.PermissionRequest{
				ID:        "perm1",
				SessionID: sessionID,
				Respond: func(optionID string, cancelled bool) {
					permAnswered <- cancelled
				},
			})
			<-release
		}

		thread := startThread(agent)

		done := make(chan *types.StopInfo, 1)
		Expect(thread.SendPrompt("do something sensitive", func(stop *types.StopInfo, err error) {
			done <- stop
		})).To(Succeed())

		Eventually(thread.PendingPermissions, 2*time.Second).Should(HaveLen(1))

		Expect(thread.Cancel()).To(Succeed())
		Expect(thread.State()).To(Equal(engine.StateCancelled))
		Eventually(permAnswered).Should(Receive(BeTrue()))

		close(release)
		var stop *types.StopInfo
		Eventually(done, 5*time.Second).Should(Receive(&stop))
		Expect(stop.Reason).To(Equal(types.StopCancelled))
		Expect(thread.State()).To(Equal(engine.StateCancelled))
		Expect(agent.cancels).To(ConsistOf("sess_e2e"))
	})

	It("publishes chunk deltas and state changes on the bus", func() {
		agent := newScriptedAgent()
		agent.script = func(a *scriptedAgent, sessionID string) {
			a.emit(sessionID, &types.SessionUpdate{Kind: types.UpdateAgentMessageChunk, Text: "Hello"})
			a.emit(sessionID, &types.SessionUpdate{Kind: types.UpdateAgentMessageChunk, Text: " world"})
		}

		thread := startThread(agent)

		var mu sync.Mutex
		var deltas []string
		unsub := thread.Bus().Subscribe(event.Chunk, func(ev event.Event) {
			mu.Lock()
			defer mu.Unlock()
			deltas = append(deltas, ev.Data.(event.ChunkData).Text)
		})
		defer unsub()

		promptAndWait(thread, "say hello")

		Eventually(func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), deltas...)
		}, 2*time.Second).Should(Equal([]string{"Hello", " world"}))
	})
})
