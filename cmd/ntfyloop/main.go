package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ntfyloop/internal/app"
	"ntfyloop/internal/config"
	"ntfyloop/internal/dispatch"
	"ntfyloop/internal/storage"
	"ntfyloop/internal/transport/ntfy"
	logx "ntfyloop/pkg/logx"
)

const (
	exitOK          = 0
	exitSetupFailed = 1
	exitBadConfig   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath    string
		topic      string
		message    string
		title      string
		tags       string
		priority   int
		delay      string
		interval   string
		iterations int
		verbose    bool
		logLevel   string
		server     string
	)
	flag.StringVar(&cfgPath, "config", "", "path to config file (json or yaml)")
	flag.StringVar(&topic, "topic", "my_test", "destination topic")
	flag.StringVar(&message, "message", "", "message body (required)")
	flag.StringVar(&title, "title", "", "notification title")
	flag.StringVar(&tags, "tags", "", "comma-separated tags (e.g. 'warning,skull')")
	flag.IntVar(&priority, "priority", 0, "priority 1..5")
	flag.StringVar(&delay, "delay", "", "server-side delivery delay (e.g. '10m', '1h')")
	flag.StringVar(&interval, "interval", "", "time between messages: seconds or duration (default 300)")
	flag.IntVar(&iterations, "iterations", 0, "number of messages to send; omit for unbounded")
	flag.IntVar(&iterations, "n", 0, "shorthand for -iterations")
	flag.BoolVar(&verbose, "verbose", false, "log response bodies")
	flag.StringVar(&logLevel, "log-level", "INFO", "log level (TRACE..ERROR)")
	flag.StringVar(&server, "server", "", "ntfy server base URL (default "+ntfy.DefaultBaseURL+")")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A config file with a schedule means daemon mode; the flag
	// surface applies to one-shot runs only.
	var fileCfg *config.Config
	if cfgPath != "" {
		cfg, err := config.NewManager(cfgPath).Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			return exitBadConfig
		}
		fileCfg = cfg
	}
	if fileCfg != nil && fileCfg.Schedule != "" {
		return runDaemon(ctx, cfgPath)
	}

	notify := config.NotifyConfig{}
	serverCfg := config.ServerConfig{}
	var storageCfg *config.StorageConfig
	if fileCfg != nil {
		// Full validation happens after flags are merged in; a file
		// can legitimately omit fields the command line supplies.
		notify = fileCfg.Notify
		serverCfg = fileCfg.Server
		storageCfg = fileCfg.Storage
		if !set["log-level"] && fileCfg.Logging.Level != "" {
			logLevel = fileCfg.Logging.Level
		}
	}

	// Flags win over file values.
	if set["topic"] || notify.Topic == "" {
		notify.Topic = topic
	}
	if set["message"] || notify.Message == "" {
		notify.Message = message
	}
	if set["title"] {
		notify.Title = title
	}
	if set["tags"] {
		notify.Tags = splitTags(tags)
	}
	if set["priority"] {
		notify.Priority = priority
	}
	if set["delay"] {
		notify.Delay = delay
	}
	if set["interval"] {
		notify.Interval = interval
	}
	if set["iterations"] || set["n"] {
		notify.Iterations = &iterations
	}
	if set["verbose"] {
		notify.Verbose = verbose
	}
	if set["server"] {
		serverCfg.URL = server
	}

	runCfg, err := notify.Dispatch()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitBadConfig
	}

	log := logx.NewConsole(logLevel)

	timeout, err := config.ParseDurationField("server.timeout", serverCfg.Timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitBadConfig
	}
	sender, err := ntfy.New(ntfy.Config{
		BaseURL: serverCfg.URL,
		Token:   serverCfg.Token,
		Timeout: timeout,
	}, log.With(logx.String("comp", "ntfy")))
	if err != nil {
		fmt.Fprintln(os.Stderr, "transport:", err)
		return exitSetupFailed
	}

	svc := dispatch.New(sender, dispatch.LogSink{Log: log}, log)
	sum, err := svc.Run(ctx, runCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dispatch:", err)
		return exitBadConfig
	}

	recordRun(log, storageCfg, runCfg.Topic, sum)

	// A cancelled run still exits cleanly; the summary already said so.
	return exitOK
}

func runDaemon(ctx context.Context, cfgPath string) int {
	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return exitSetupFailed
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		return exitSetupFailed
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx)
	return exitOK
}

// recordRun appends one history record for a CLI-triggered run when
// the config file asks for storage.
func recordRun(log logx.Logger, cfg *config.StorageConfig, topic string, sum dispatch.Summary) {
	if cfg == nil {
		return
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.BusyTimeout)
	if err != nil {
		log.Warn("run history disabled", logx.Err(err))
		return
	}
	store, err := storage.Open(storage.Config{Driver: cfg.Driver, Path: cfg.Path, BusyTimeout: busy}, log)
	if err != nil || store == nil {
		if err != nil {
			log.Warn("run history disabled", logx.Err(err))
		}
		return
	}
	defer store.Close()

	wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.AppendRun(wctx, storage.RunRecord{
		Topic:        topic,
		Trigger:      "cli",
		StartedAt:    sum.StartedAt,
		FinishedAt:   sum.FinishedAt,
		Sent:         sum.Sent,
		Failed:       sum.Failed,
		Attempted:    sum.Attempted,
		TerminatedBy: string(sum.TerminatedBy),
	}); err != nil {
		log.Warn("run history append failed", logx.Err(err))
	}
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
