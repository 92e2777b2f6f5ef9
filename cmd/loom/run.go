package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/api"
	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/internal/orchestrator"
	"github.com/loomworks/loom/internal/planner"
	"github.com/loomworks/loom/internal/synthesis"
	"github.com/loomworks/loom/internal/tools"
	"github.com/loomworks/loom/internal/worker"
	"github.com/loomworks/loom/internal/workspace"
)

var (
	runYes        bool
	runWorkdir    string
	runMode       string
	runConfigPath string
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Execute a coding request against the workspace",
	Long: `Run a natural-language coding request.

The request is classified or decomposed into subtasks, each subtask runs
against the model with workspace tools, and the results are synthesized
into one final answer printed to stdout.

Examples:
  loom run "explain what internal/parser does"
  loom run --yes "add input validation to the config loader"
  loom run --mode decompose "refactor the retry logic and add tests"

Create a file named .loom/signals/stop in the workspace to halt a run
before its next model or tool call.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Apply file writes without prompting")
	runCmd.Flags().StringVarP(&runWorkdir, "workdir", "w", ".", "Workspace directory")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Planning mode: classify or decompose")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to a config file")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show tool invocations as they happen")
}

func runRun(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	if runMode != "" {
		cfg.Planner.Mode = runMode
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	ws, err := workspace.NewLocal(workspace.Config{
		Root:           runWorkdir,
		Confirm:        confirmFunc(cfg),
		CommandTimeout: cfg.Workspace.CommandTimeout,
		MaxOutputBytes: cfg.Workspace.MaxOutputBytes,
		Watch:          cfg.Workspace.Watch,
	})
	if err != nil {
		return fmt.Errorf("opening workspace: %w", err)
	}
	defer ws.Close()

	stopWatcher, err := api.NewStopWatcher(runWorkdir)
	if err != nil {
		return fmt.Errorf("setting up stop watcher: %w", err)
	}
	defer stopWatcher.Close()
	stopWatcher.Clear()

	logger := orchestrator.NopLogger()
	if cfg.Run.DebugLog {
		logger = orchestrator.NewDebugLoggerForDir(runWorkdir)
	}
	defer logger.Close()

	emitter := orchestrator.NewEventEmitter(cfg.Run.EventBuffer)
	var render sync.WaitGroup
	render.Add(1)
	go func() {
		defer render.Done()
		renderEvents(emitter.Events())
	}()

	sched := orchestrator.New(orchestrator.Config{
		Planner: planner.New(client, planner.Mode(cfg.Planner.Mode)),
		Worker: worker.New(worker.Config{
			LLM:       client,
			Invoker:   tools.NewInvoker(ws),
			MaxRounds: cfg.Run.MaxToolRounds,
			Stop:      stopWatcher.ShouldStop,
			OnToolCall: func(name string) {
				emitter.Emit(orchestrator.Event{Type: orchestrator.EventToolInvoked, Message: name})
			},
		}),
		Synthesizer: synthesis.New(client),
		Emitter:     emitter,
		Logger:      logger,
		Tracker:     client.Tracker(),
	})

	outcome := sched.Execute(context.Background(), query)
	emitter.Close()
	render.Wait()

	fmt.Println()
	if !outcome.Success {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), outcome.Error)
		if outcome.Response != "" {
			fmt.Println(outcome.Response)
		}
		os.Exit(1)
	}

	fmt.Println(outcome.Response)
	return nil
}

func loadRunConfig() (*config.Config, error) {
	if runConfigPath != "" {
		return config.LoadFromPath(runConfigPath)
	}
	return config.Load()
}

func buildClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or run 'loom init' and edit %s",
				err, config.GetUserConfigPath())
		}
		clientCfg.APIKey = key
	}
	return api.NewClient(clientCfg)
}

// confirmFunc builds the write gate. With --yes or auto_approve the gate
// is nil and writes apply directly.
func confirmFunc(cfg *config.Config) workspace.ConfirmFunc {
	if runYes || cfg.Workspace.AutoApprove {
		return nil
	}
	reader := bufio.NewReader(os.Stdin)
	return func(path, content string) bool {
		fmt.Printf("\n%s write %d bytes to %s\n", color.YellowString("?"), len(content), path)
		fmt.Print("Apply this change? [y/N] ")
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

// renderEvents prints the progress stream until the emitter closes.
func renderEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventNodeEntered:
			fmt.Printf("%s %s\n", color.CyanString("→"), ev.Message)
		case orchestrator.EventSubtaskStarted:
			fmt.Printf("  %s subtask %s\n", color.CyanString("•"), ev.SubtaskID)
		case orchestrator.EventSubtaskFinished:
			if ev.Err != "" {
				fmt.Printf("  %s subtask %s: %s\n", color.RedString("✗"), ev.SubtaskID, ev.Err)
			} else {
				fmt.Printf("  %s subtask %s\n", color.GreenString("✓"), ev.SubtaskID)
			}
		case orchestrator.EventToolInvoked:
			if runVerbose {
				fmt.Printf("    %s %s\n", color.HiBlackString("tool"), ev.Message)
			}
		case orchestrator.EventRunFinished:
			if ev.Tokens > 0 {
				fmt.Printf("%s %d tokens, $%.4f, %s\n",
					color.HiBlackString("∑"), ev.Tokens, ev.Cost, ev.Duration.Round(10*time.Millisecond))
			}
		}
	}
}
