// Command simkernel drives a scenario file through the simulation kernel
// from the command line.
//
// Usage:
//
//	simkernel validate --scenario scenario.yaml
//	simkernel run --scenario scenario.yaml --roster roster.yaml --rounds 10
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/socialsim4/simkernel"
	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/config"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/logger"
	"github.com/socialsim4/simkernel/pkg/scenario"
	"github.com/socialsim4/simkernel/pkg/simtree"
	"github.com/socialsim4/simkernel/pkg/summarizer"
	"github.com/socialsim4/simkernel/pkg/telemetry"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Validate ValidateCmd `cmd:"" help:"Validate a scenario file."`
	Run      RunCmd      `cmd:"" help:"Run a scenario to completion and print its event log."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(simkernel.GetVersion().String())
	return nil
}

// ValidateCmd loads and validates a scenario file without running it.
type ValidateCmd struct {
	Scenario string `required:"" help:"Path to the scenario YAML file." type:"path"`
}

func (c *ValidateCmd) Run() error {
	spec, err := scenario.LoadSpecFile(c.Scenario)
	if err != nil {
		return fmt.Errorf("scenario invalid: %w", err)
	}
	fmt.Printf("scenario %q (%s) is valid: %d mechanic(s), visibility=%s, max_rounds=%d\n",
		spec.ID, spec.Name, len(spec.Mechanics), spec.Visibility, spec.MaxRounds)
	return nil
}

// RunCmd runs a scenario to completion (or --rounds turns, whichever comes
// first) and prints the resulting event log as newline-delimited JSON.
type RunCmd struct {
	Scenario    string `required:"" help:"Path to the scenario YAML file." type:"path"`
	Roster      string `required:"" help:"Path to the agent roster YAML file." type:"path"`
	Rounds      int    `help:"Maximum number of rounds to run." default:"10"`
	Debug       bool   `help:"Write every agent prompt/response pair to stderr."`
	MetricsAddr string `help:"Address to serve Prometheus metrics on (empty disables the endpoint)."`
}

func (c *RunCmd) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.GetLogger().Warn("shutdown requested, cancelling in-flight round")
		cancel()
	}()

	spec, err := scenario.LoadSpecFile(c.Scenario)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	llmConfigs, agents, order, err := loadRoster(c.Roster)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	registry := llm.NewRegistry()
	for name, cfg := range llmConfigs {
		if err := registry.RegisterFromConfig(name, cfg); err != nil {
			return fmt.Errorf("registering llm binding %q: %w", name, err)
		}
	}

	client, err := resolveClient(registry, agents, order)
	if err != nil {
		return err
	}

	tree := simtree.NewTree()
	root, err := tree.NewRoot(spec, agents, order)
	if err != nil {
		return fmt.Errorf("creating root branch: %w", err)
	}

	reg := prometheus.NewRegistry()
	tree.Recorder = telemetry.New("simkernel", reg)
	if c.MetricsAddr != "" {
		srv := &http.Server{Addr: c.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.GetLogger().Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.GetLogger().Info("metrics endpoint listening", "addr", c.MetricsAddr)
	}

	var debugSink io.Writer
	if c.Debug {
		debugSink = os.Stderr
	}

	summ := summarizer.New(client)
	runErr := tree.Run(ctx, root, c.Rounds, client, summ, debugSink)

	node, nodeErr := tree.Node(root)
	if nodeErr == nil {
		printLog(node.State.Log.All())
		logger.GetLogger().Info("run finished", "status", node.Status(), "turnsCompleted", node.TurnsCompleted)
	}

	return runErr
}

// resolveClient picks the llm.Client for the roster's agents. Every agent
// in this kernel's simplest deployment shares one binding, so the command
// resolves the first declared agent's binding and requires every other
// agent to share it; per-agent dispatch belongs to the Turn Pipeline, not
// this CLI.
func resolveClient(registry *llm.Registry, agents map[string]*agentstate.State, order []string) (llm.Client, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("roster declares no agents")
	}
	binding := agents[order[0]].LLMBinding
	for _, name := range order {
		if agents[name].LLMBinding != binding {
			return nil, fmt.Errorf("agent %q binds to %q, but this CLI only drives scenarios with a single shared llm binding", name, agents[name].LLMBinding)
		}
	}
	client, ok := registry.Get(binding)
	if !ok {
		return nil, fmt.Errorf("llm binding %q is not registered in the roster's llms section", binding)
	}
	return client, nil
}

func printLog(entries []eventlog.Entry) {
	enc := json.NewEncoder(os.Stdout)
	for _, entry := range entries {
		_ = enc.Encode(entry)
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("simkernel"),
		kong.Description("social-simulation engine kernel"),
		kong.UsageOnError(),
	)

	logCfg := config.LoggerConfig{Level: cli.LogLevel, File: cli.LogFile, Format: cli.LogFormat}
	logCfg.SetDefaults()
	if err := logCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(logCfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	output := os.Stderr
	if logCfg.File != "" {
		file, cleanup, err := logger.OpenLogFile(logCfg.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(level, output, logCfg.Format)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
