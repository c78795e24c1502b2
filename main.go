package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"taskmate/pkg/agent"
	"taskmate/pkg/channels"
	_ "taskmate/pkg/channels/autoload"
	"taskmate/pkg/config"
	"taskmate/pkg/gateway"
	"taskmate/pkg/handler"
	"taskmate/pkg/llm"
	_ "taskmate/pkg/llm/autoload"
	"taskmate/pkg/monitor"
	"taskmate/pkg/prompt"
	"taskmate/pkg/session"
	"taskmate/pkg/tasks"
	"taskmate/pkg/tools"

	jsoniter "github.com/json-iterator/go"
)

// defaultLogFile receives logs while the terminal front end owns the screen.
const defaultLogFile = "logs/taskmate.log"

func main() {
	configPath := flag.String("config", "config.json", "application config file")
	systemPath := flag.String("system", "system.json", "engine settings file")
	ui := flag.String("ui", "", "front end to run: web, terminal, plain or telegram (default: channels from config)")
	flag.Parse()

	if err := run(*configPath, *systemPath, *ui); err != nil {
		fmt.Fprintln(os.Stderr, "taskmate:", err)
		os.Exit(1)
	}
}

func run(configPath, systemPath, ui string) error {
	sys := config.LoadSystemConfig(systemPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	chanCfgs, err := selectChannels(cfg.Channels, ui)
	if err != nil {
		return err
	}
	_, terminalMode := chanCfgs["terminal"]

	logFile := sys.LogFile
	if terminalMode && logFile == "" {
		logFile = defaultLogFile
	}
	var logOut io.Writer = os.Stderr
	if logFile != "" {
		f, err := monitor.OpenLogFile(logFile)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	monitor.SetupSlog(sys.LogLevel, logOut)
	if !terminalMode {
		monitor.PrintBanner()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.WatchFiles(ctx, config.DefaultDebounce, func(string) {
		monitor.SetLevel(config.LoadSystemConfig(systemPath).LogLevel)
	}, systemPath); err != nil {
		slog.Warn("System config hot reload disabled", "error", err)
	}

	client, err := llm.NewFromConfig(cfg.LLM, sys)
	if err != nil {
		return fmt.Errorf("init LLM client: %w", err)
	}

	taskSvc := newTaskService(cfg.Tasks)
	sessions := session.NewManager()

	composer := prompt.NewComposer(cfg.SystemPrompt, session.PolicyFor(sys.HistoryWindow))
	engine := agent.NewAgentEngine(client, composer, sys)
	engine.SetToolRegistry(tools.NewTaskRegistry(taskSvc))

	chat := handler.NewChatHandler(engine, sessions, taskSvc, sys)

	done := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(done) }) }

	chans, err := channels.LoadFromConfig(chanCfgs, channels.Deps{
		System:   sys,
		Tasks:    taskSvc,
		Sessions: sessions,
		Shutdown: shutdown,
	})
	if err != nil {
		return err
	}

	builder := gateway.NewGatewayBuilder().
		WithChannel(chans...).
		WithHandler(chat)
	if !terminalMode {
		builder.WithMonitor(monitor.NewCLIMonitor(os.Stdout))
	}

	gw, err := builder.Build()
	if err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	slog.Info("Assistant ready", "channels", gw.ChannelIDs(), "tasks", cfg.Tasks.Type)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
	case <-done:
		slog.Info("Shutting down")
	}

	gw.Shutdown()
	return nil
}

// selectChannels narrows the configured front ends to the one named by
// the -ui flag. Its config section is reused when present.
func selectChannels(configured map[string]jsoniter.RawMessage, ui string) (map[string]jsoniter.RawMessage, error) {
	switch ui {
	case "":
		return configured, nil
	case "plain":
		return map[string]jsoniter.RawMessage{"terminal": jsoniter.RawMessage(`{"plain":true}`)}, nil
	case "web", "terminal", "telegram":
		raw, ok := configured[ui]
		if !ok {
			raw = jsoniter.RawMessage(`{}`)
		}
		return map[string]jsoniter.RawMessage{ui: raw}, nil
	default:
		return nil, fmt.Errorf("unknown -ui %q (want web, terminal, plain or telegram)", ui)
	}
}

func newTaskService(cfg config.TasksConfig) tasks.Service {
	if cfg.Type == "memory" {
		slog.Warn("Using the in-memory task list; tasks are lost on exit")
		return tasks.NewMemoryService()
	}
	return tasks.NewTodoistService(cfg.APIKey,
		tasks.WithBaseURL(cfg.BaseURL),
		tasks.WithPageSize(cfg.PageSize),
	)
}
