// Command scriptx evaluates scripts with one of the scriptx backends.
//
//	scriptx [-backend exprvm|gojajs|wasmvm] [-e source] [file ...]
//
// Without -e or files it reads stdin, prompting line by line when stdin is
// a terminal. A .env file in the working directory may set SCRIPTX_BACKEND,
// SCRIPTX_DEBUG and SCRIPTX_METRICS.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/buke/scriptx-go"
	"github.com/buke/scriptx-go/backend/exprvm"
	"github.com/buke/scriptx-go/backend/gojajs"
	"github.com/buke/scriptx-go/backend/wasmvm"
	"github.com/buke/scriptx-go/metrics"
)

var backends = map[string]func() scriptx.Backend{
	"exprvm": func() scriptx.Backend { return exprvm.New() },
	"gojajs": func() scriptx.Backend { return gojajs.New() },
	"wasmvm": func() scriptx.Backend { return wasmvm.New() },
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type config struct {
	backend string
	source  string
	metrics string
	debug   bool
	files   []string
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("scriptx", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.backend, "backend", envOr("SCRIPTX_BACKEND", "gojajs"), "backend: "+strings.Join(backendNames(), ", "))
	fs.StringVar(&cfg.source, "e", "", "evaluate source instead of files")
	fs.StringVar(&cfg.metrics, "metrics", os.Getenv("SCRIPTX_METRICS"), "serve Prometheus metrics on this address")
	fs.BoolVar(&cfg.debug, "debug", cast.ToBool(os.Getenv("SCRIPTX_DEBUG")), "log engine internals")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.files = fs.Args()
	if _, ok := backends[cfg.backend]; !ok {
		return cfg, fmt.Errorf("unknown backend %q", cfg.backend)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func backendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := zap.NewNop()
	if cfg.debug {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer func() { _ = logger.Sync() }()
	}
	scriptx.SetLogger(logger)
	exprvm.SetLogger(logger.Named("exprvm"))
	gojajs.SetLogger(logger.Named("gojajs"))
	wasmvm.SetLogger(logger.Named("wasmvm"))

	e, err := scriptx.NewEngine(backends[cfg.backend](),
		scriptx.WithStack(scriptx.NewStack()),
		scriptx.WithLogger(logger),
		scriptx.WithDebug(cfg.debug))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() {
		if err := e.Destroy(); err != nil {
			fmt.Fprintln(stderr, err)
		}
	}()

	if cfg.metrics != "" {
		serveMetrics(cfg.metrics, e, logger)
	}

	r := &runner{engine: e, stdout: stdout, stderr: stderr}
	if err := e.Run(r.install); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	switch {
	case cfg.source != "":
		return r.eval(cfg.source, "<flag>", true)
	case len(cfg.files) > 0:
		for _, f := range cfg.files {
			if code := r.evalFile(f); code != 0 {
				return code
			}
		}
		return 0
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return r.prompt(stdin)
	}
	src, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return r.eval(string(src), "<stdin>", true)
}

func serveMetrics(addr string, e *scriptx.Engine, logger *zap.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(e))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

type runner struct {
	engine *scriptx.Engine
	stdout io.Writer
	stderr io.Writer
}

// install defines print, which writes its arguments separated by spaces.
func (r *runner) install(sc *scriptx.EngineScope) error {
	fn, err := sc.NewFunction(func(args *scriptx.Arguments) (scriptx.Value, error) {
		parts := make([]string, args.Len())
		for i, a := range args.All() {
			s, err := a.DescribeUTF8()
			if err != nil {
				return scriptx.Value{}, err
			}
			parts[i] = s
		}
		fmt.Fprintln(r.stdout, strings.Join(parts, " "))
		return scriptx.Value{}, nil
	})
	if err != nil {
		return err
	}
	return sc.Set("print", fn)
}

func (r *runner) eval(source, name string, echo bool) int {
	err := r.engine.Run(func(sc *scriptx.EngineScope) error {
		v, err := sc.Eval(source, scriptx.EvalFileName(name))
		if err != nil {
			return err
		}
		if echo && !v.IsNull() {
			s, err := v.DescribeUTF8()
			if err != nil {
				return err
			}
			fmt.Fprintln(r.stdout, s)
		}
		return nil
	})
	if err != nil {
		report(r.stderr, err)
		return 1
	}
	return 0
}

func (r *runner) evalFile(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(r.stderr, err)
		return 1
	}
	return r.eval(string(src), path, false)
}

// prompt evaluates stdin line by line until EOF. Errors are reported and
// the session goes on.
func (r *runner) prompt(stdin io.Reader) int {
	scanner := bufio.NewScanner(stdin)
	fmt.Fprint(r.stdout, "> ")
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			r.eval(line, "<repl>", true)
		}
		fmt.Fprint(r.stdout, "> ")
	}
	fmt.Fprintln(r.stdout)
	return 0
}

func report(w io.Writer, err error) {
	var exc *scriptx.Exception
	if errors.As(err, &exc) {
		fmt.Fprintf(w, "%s: %s\n", exc.Name, exc.Message)
		if exc.Stack != "" {
			fmt.Fprintln(w, exc.Stack)
		}
		return
	}
	fmt.Fprintln(w, err)
}
