// Package cli implements the stdin REPL that drives a research session:
// readline-backed input, color-coded progress streaming from the event bus,
// and direct reads from the event store for session listing/inspection.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"deepresearch/internal/config"
	"deepresearch/internal/core/domain/aggregate"
	"deepresearch/internal/core/ports"
	"deepresearch/internal/events"
	"deepresearch/internal/orchestrator"
)

var (
	colorPrompt = color.New(color.FgCyan, color.Bold)
	colorInfo   = color.New(color.FgBlue)
	colorOK     = color.New(color.FgGreen)
	colorWarn   = color.New(color.FgYellow)
	colorErr    = color.New(color.FgRed, color.Bold)
)

// CLI is the interactive shell: `research`, `resume`, `list`, `show`.
type CLI struct {
	cfg        *config.Config
	eventStore ports.EventStore
	bus        *events.Bus
	orch       *orchestrator.Orchestrator
	rl         *readline.Instance
}

// New constructs a CLI wired to the given store, bus, and orchestrator.
func New(cfg *config.Config, eventStore ports.EventStore, bus *events.Bus, orch *orchestrator.Orchestrator) (*CLI, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          colorPrompt.Sprint("research> "),
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}

	return &CLI{
		cfg:        cfg,
		eventStore: eventStore,
		bus:        bus,
		orch:       orch,
		rl:         rl,
	}, nil
}

// Close releases the readline terminal.
func (c *CLI) Close() error {
	return c.rl.Close()
}

// Run reads commands from stdin until EOF, "exit", or ctx cancellation.
// Returns a non-nil error only for an unhandled runtime failure (exit code 2).
func (c *CLI) Run(ctx context.Context) error {
	colorInfo.Println("deepresearch — type a command (research/resume/list/show), or \"exit\"")

	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("readline: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := c.dispatch(ctx, line); err != nil {
			colorErr.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *CLI) dispatch(ctx context.Context, line string) error {
	fields := strings.SplitN(line, " ", 2)
	cmd := fields[0]
	var arg string
	if len(fields) > 1 {
		arg = strings.TrimSpace(fields[1])
	}

	switch cmd {
	case "research":
		if arg == "" {
			return fmt.Errorf("usage: research <query>")
		}
		return c.cmdResearch(ctx, arg)

	case "resume":
		if arg == "" {
			return fmt.Errorf("usage: resume <id>")
		}
		return c.cmdResume(ctx, arg)

	case "list":
		return c.cmdList(ctx)

	case "show":
		if arg == "" {
			return fmt.Errorf("usage: show <id>")
		}
		return c.cmdShow(ctx, arg)

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (c *CLI) cmdResearch(ctx context.Context, query string) error {
	sessionID := newSessionID()
	colorOK.Printf("starting session %s\n", sessionID)

	done := c.streamProgress(sessionID)
	defer close(done)

	state, err := c.orch.Run(ctx, sessionID, query, "deep")
	if err != nil {
		return err
	}
	c.printSummary(state)
	return nil
}

func (c *CLI) cmdResume(ctx context.Context, sessionID string) error {
	colorOK.Printf("resuming session %s\n", sessionID)

	done := c.streamProgress(sessionID)
	defer close(done)

	state, err := c.orch.Resume(ctx, sessionID)
	if err != nil {
		return err
	}
	c.printSummary(state)
	return nil
}

func (c *CLI) cmdList(ctx context.Context) error {
	ids, err := c.eventStore.GetAllAggregateIDs(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		colorWarn.Println("no sessions found")
		return nil
	}

	for _, id := range ids {
		state, err := c.loadState(ctx, id)
		if err != nil {
			colorWarn.Printf("%s  (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("%-24s  %-12s  %6.1f%%  $%.4f  %s\n",
			id, state.Status, state.Progress*100, state.Cost.TotalCostUSD, truncate(state.Query, 40))
	}
	return nil
}

func (c *CLI) cmdShow(ctx context.Context, sessionID string) error {
	state, err := c.loadState(ctx, sessionID)
	if err != nil {
		return err
	}
	c.printSummary(state)
	return nil
}

func (c *CLI) loadState(ctx context.Context, sessionID string) (*aggregate.ResearchState, error) {
	rawEvents, err := c.eventStore.LoadEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(rawEvents) == 0 {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	eventInterfaces := make([]interface{}, len(rawEvents))
	for i, e := range rawEvents {
		eventInterfaces[i] = e
	}
	return aggregate.LoadFromEvents(sessionID, eventInterfaces)
}

func (c *CLI) printSummary(state *aggregate.ResearchState) {
	fmt.Println()
	colorInfo.Printf("session:   %s\n", state.ID)
	fmt.Printf("query:     %s\n", state.Query)
	fmt.Printf("mode:      %s\n", state.Mode)
	fmt.Printf("status:    %s\n", state.Status)
	fmt.Printf("progress:  %.0f%%\n", state.Progress*100)
	fmt.Printf("cost:      $%.4f (%d tokens)\n", state.Cost.TotalCostUSD, state.Cost.TotalTokens)
	if state.Report != nil {
		colorOK.Printf("report:    %s\n", state.Report.Title)
	}
	fmt.Println()
}

// streamProgress subscribes to the event bus and prints status lines until
// the returned channel is closed.
func (c *CLI) streamProgress(sessionID string) chan struct{} {
	done := make(chan struct{})
	ch := c.bus.Subscribe(
		events.EventPlanCreated,
		events.EventWorkerStarted,
		events.EventWorkerComplete,
		events.EventWorkerFailed,
		events.EventAnalysisComplete,
		events.EventSynthesisComplete,
		events.EventResearchComplete,
		events.EventError,
		events.EventReportWritten,
	)

	go func() {
		for {
			select {
			case <-done:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				c.printEvent(sessionID, evt)
			}
		}
	}()

	return done
}

func (c *CLI) printEvent(sessionID string, evt events.Event) {
	switch evt.Type {
	case events.EventPlanCreated:
		colorInfo.Println("  plan created")
	case events.EventWorkerStarted:
		if d, ok := evt.Data.(events.WorkerProgressData); ok {
			colorInfo.Printf("  worker %s started: %s\n", d.WorkerID, d.Objective)
		}
	case events.EventWorkerComplete:
		if d, ok := evt.Data.(events.WorkerProgressData); ok {
			colorOK.Printf("  worker %s complete\n", d.WorkerID)
		}
	case events.EventWorkerFailed:
		if d, ok := evt.Data.(events.WorkerProgressData); ok {
			colorWarn.Printf("  worker %s failed: %s\n", d.WorkerID, d.Message)
		}
	case events.EventAnalysisComplete:
		colorInfo.Println("  analysis complete")
	case events.EventSynthesisComplete:
		colorInfo.Println("  synthesis complete")
	case events.EventResearchComplete:
		colorOK.Println("  research complete")
	case events.EventReportWritten:
		if d, ok := evt.Data.(map[string]interface{}); ok {
			colorOK.Printf("  report written: %v\n", d["path"])
		}
	case events.EventError:
		if d, ok := evt.Data.(map[string]interface{}); ok {
			colorErr.Printf("  error in %v: %v\n", d["phase"], d["error"])
		}
	}
}

func newSessionID() string {
	return fmt.Sprintf("%s-%s", time.Now().Format("2006-01-02"), uuid.New().String()[:8])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
