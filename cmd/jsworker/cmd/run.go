package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/bootstrap"
	"github.com/GriffinCanCode/jsworker/internal/client"
	"github.com/GriffinCanCode/jsworker/internal/imports"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsworker/internal/worker"
)

type runFlags struct {
	js       []string
	values   []string
	env      []string
	imports  string
	modules  string
	pattern  string
	manifest string
	listen   []string
	remote   string
	host     string
	debug    bool
	linger   time.Duration
}

var run = runFlags{}

var runCmd = &cobra.Command{
	Use:   "run [main.js]",
	Short: "Run a worker function and bridge its messages to stdin and stdout",
	Long: `Run a worker function and bridge its messages to stdin and stdout.

main.js holds a single function expression. Each stdin line is a message
{"type": ..., "payload": ...} sent to the worker; messages of the kinds given
with --listen are printed to stdout in the same form.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWorker(ctx, args[0], c.InOrStdin(), c.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVar(&run.js, "js", nil, "function option name=file.js (repeatable)")
	f.StringArrayVar(&run.values, "value", nil, "plain option name=json (repeatable)")
	f.StringArrayVar(&run.env, "allow-env", nil, "environment variable the worker may read through getenv() (repeatable)")
	f.StringVar(&run.imports, "imports", "", "import map file (yaml or toml)")
	f.StringVar(&run.modules, "modules", cfg.Modules.Dir, "bundled module directory")
	f.StringVar(&run.pattern, "pattern", cfg.Modules.Pattern, "module file pattern inside --modules")
	f.StringVar(&run.manifest, "manifest", cfg.Modules.Manifest, "bundled module manifest (yaml, toml or json, optionally gzip or zstd)")
	f.StringArrayVar(&run.listen, "listen", nil, "message type to print (repeatable)")
	f.StringVar(&run.remote, "remote", "", "worker host spawn endpoint, e.g. ws://localhost:8000/spawn")
	f.StringVar(&run.host, "host", "", "worker host URL; spawns on its /spawn endpoint")
	f.BoolVar(&run.debug, "debug", false, "log every message on both sides")
	f.DurationVar(&run.linger, "linger", 500*time.Millisecond, "time to keep the worker after stdin closes")
	runCmd.MarkFlagsMutuallyExclusive("remote", "host")
	runCmd.MarkFlagsMutuallyExclusive("modules", "manifest")
	rootCmd.AddCommand(runCmd)
}

func runWorker(ctx context.Context, mainPath string, in io.Reader, out io.Writer) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	main, err := os.ReadFile(mainPath)
	if err != nil {
		return err
	}

	opts, err := buildOptions(run.js, run.values)
	if err != nil {
		return err
	}
	if len(run.env) > 0 {
		opts["getenv"] = getenv(run.env)
	}

	var importMap imports.ImportMap
	if run.imports != "" {
		if importMap, err = imports.LoadImportMap(run.imports); err != nil {
			return err
		}
	}

	table, err := loadTable(run.modules, run.pattern, run.manifest)
	if err != nil {
		return err
	}

	spawner, err := newSpawner(logger.Logger)
	if err != nil {
		return err
	}

	tracer := tracing.New("jsworker", logger.Logger)
	defer tracer.Close()
	span, ctx := tracer.StartSpan(ctx, "run")
	defer tracer.Finish(span)

	options := []worker.Option{
		worker.WithSpawner(spawner),
		worker.WithLogger(logger.Logger),
		worker.WithDebug(run.debug),
		worker.WithErrorHandler(func(err error) {
			logger.Error("Worker error", zap.Error(err))
		}),
	}
	if table != nil {
		options = append(options, worker.WithModules(table))
	}

	printer := &printer{out: out, log: logger.Logger}
	for _, kind := range run.listen {
		options = append(options, worker.WithHandler(kind, printer.handler(kind)))
	}

	w, err := worker.Create(ctx, string(main), opts, importMap, options...)
	if err != nil {
		span.SetError(err)
		return err
	}
	span.SetTag("worker_id", w.ID())

	go func() {
		if err := pump(w, in, cfg.Worker.MaxMessageBytes); err != nil {
			logger.Error("Reading input", zap.Error(err))
		}
		select {
		case <-w.Done():
		case <-time.After(run.linger):
			w.Terminate()
		}
	}()

	<-w.Done()
	err = w.Err()
	if errors.Is(err, bootstrap.ErrTerminated) || errors.Is(err, context.Canceled) {
		return nil
	}
	span.SetError(err)
	return err
}

func newSpawner(logger *zap.Logger) (worker.Spawner, error) {
	switch {
	case run.remote != "":
		return &worker.RemoteSpawner{URL: run.remote, Breaker: resilience.New(run.remote, resilience.Settings{})}, nil
	case run.host != "":
		hc, err := client.New(run.host, client.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return &worker.RemoteSpawner{URL: hc.SpawnURL(), Breaker: hc.Breaker()}, nil
	default:
		return &worker.LocalSpawner{
			MaxCallStackSize: cfg.Worker.MaxCallStackSize,
			BootTimeout:      cfg.Worker.BootTimeout,
			Logger:           logger,
		}, nil
	}
}

// message is one line of input or output.
type message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// pump sends every input line to w until in is exhausted or w stops.
func pump(w *worker.Worker, in io.Reader, maxLine int64) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), int(maxLine))

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg message
		if err := sonic.ConfigStd.Unmarshal(line, &msg); err != nil {
			return fmt.Errorf("decode input line: %w", err)
		}
		if msg.Type == "" {
			return errors.New("input line has no type")
		}

		select {
		case <-w.Done():
			return nil
		default:
		}
		w.Send(msg.Type, msg.Payload)
	}
	return scanner.Err()
}

// printer writes received messages as JSON lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	log *zap.Logger
}

func (p *printer) handler(kind string) worker.Handler {
	return func(payload any) {
		line, err := sonic.ConfigStd.Marshal(message{Type: kind, Payload: payload})
		if err != nil {
			p.log.Error("Encoding message", zap.String("type", kind), zap.Error(err))
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if _, err := p.out.Write(append(line, '\n')); err != nil {
			p.log.Error("Writing message", zap.String("type", kind), zap.Error(err))
		}
	}
}
