// Command intcode executes Intcode programs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nf/intcode/config"
	"github.com/nf/intcode/intcode"
	"github.com/nf/intcode/pipeline"
	"github.com/nf/intcode/program"
)

func main() {
	var (
		configFlag = flag.String("config", "", "read settings from TOML `file`")
		devFlag    = flag.Bool("dev", false, "enable developer mode (re-run the program whenever its file changes)")
		debugFlag  = flag.Bool("debug", false, "enable debugger")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)
	flag.String("input", "", "comma-separated `values` queued as input before running")
	flag.Bool("ascii", false, "exchange input and output as ASCII text")
	flag.String("poke", "", "patch memory before running, as comma-separated `addr=value` pairs")
	flag.String("pipeline", "", "run one machine per comma-separated `seed`, each stage feeding the next")
	flag.Bool("feedback", false, "wire the last pipeline stage back to the first")
	flag.Bool("trace", false, "log every executed instruction")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <program.txt>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -config <intcode.toml> [flags] [program.txt]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
	}

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		if cfg, err = config.Load(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "intcode: %v\n", err)
			os.Exit(1)
		}
	}
	if err := applyFlags(cfg, flag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "intcode: %v\n", err)
		flag.Usage()
	}
	if flag.NArg() == 1 {
		cfg.Program = flag.Arg(0)
	}
	if cfg.Program == "" {
		flag.Usage()
	}

	log := newLogger(cfg.Run.Trace)
	defer log.Sync()

	if *debugFlag {
		if err := debugMode(cfg); err != nil {
			log.Fatal("debug", zap.Error(err))
		}
		return
	}
	if *devFlag {
		if err := devMode(cfg, log); err != nil {
			log.Fatal("dev", zap.Error(err))
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatal("creating CPU profile file", zap.Error(err))
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	image, err := program.ParseFile(cfg.Program)
	if err == nil {
		err = run(context.Background(), cfg, image, log, newConsole(os.Stdin, os.Stdout, cfg.Run.ASCII))
	}

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Error("run failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) (err error) {
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "input":
			cfg.Run.Input, err = program.ParseString(v)
		case "ascii":
			cfg.Run.ASCII = v == "true"
		case "trace":
			cfg.Run.Trace = v == "true"
		case "poke":
			err = parsePokes(cfg.Run.Poke, v)
		case "pipeline":
			cfg.Pipeline.Seeds, err = program.ParseString(v)
		case "feedback":
			cfg.Pipeline.Feedback = v == "true"
		}
		if err != nil {
			err = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	return err
}

func parsePokes(dst map[int64]int64, s string) error {
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		a, v, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("bad poke %q, want addr=value", p)
		}
		addr, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		if err != nil || addr < 0 {
			return fmt.Errorf("bad poke address %q", a)
		}
		val, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("bad poke value %q", v)
		}
		dst[addr] = val
	}
	return nil
}

func newLogger(trace bool) *zap.Logger {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.DisableCaller = true
	c.EncoderConfig.TimeKey = ""
	if !trace {
		c.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return zap.Must(c.Build()).Named("intcode")
}

// newMachine returns a machine loaded with image and patched per cfg.
func newMachine(cfg *config.Config, image []int64, log *zap.Logger) (*intcode.Machine, error) {
	m, err := intcode.New(image)
	if err != nil {
		return nil, err
	}
	for addr, v := range cfg.Run.Poke {
		if err := m.Poke(addr, v); err != nil {
			return nil, err
		}
	}
	if cfg.Run.Trace {
		m.Tracef = log.Sugar().Debugf
	}
	return m, nil
}

// run executes image as configured, reading input from and writing output
// to con. A configured pipeline runs one machine per seed and writes the
// values leaving its last stage.
func run(ctx context.Context, cfg *config.Config, image []int64, log *zap.Logger, con *console) error {
	if seeds := cfg.Pipeline.Seeds; len(seeds) > 0 {
		p, err := pipeline.New(image, seeds,
			pipeline.Feedback(cfg.Pipeline.Feedback),
			pipeline.Logger(log))
		if err != nil {
			return err
		}
		out, err := p.RunConcurrent(ctx, cfg.Run.Input...)
		con.write(out...)
		if ferr := con.flush(); err == nil {
			err = ferr
		}
		return err
	}

	m, err := newMachine(cfg, image, log)
	if err != nil {
		return err
	}
	m.PushInput(cfg.Run.Input...)
	err = con.run(ctx, m)
	log.Debug("machine stopped",
		zap.Stringer("status", m.Status()),
		zap.Int64("ip", m.IP()),
		zap.Int64("steps", m.Steps()))
	return err
}
