package main

import (
	"context"
	"errors"
	"flag"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nf/intcode/config"
	"github.com/nf/intcode/intcode"
)

func TestConsole(t *testing.T) {
	// Reads two values and outputs their sum.
	sum := []int64{3, 11, 3, 12, 1, 11, 12, 13, 4, 13, 99, 0, 0, 0}
	echo := []int64{3, 0, 4, 0, 99}
	ascii := []int64{3, 0, 4, 0, 3, 0, 4, 0, 104, 200, 99}

	for _, c := range []struct {
		name  string
		image []int64
		ascii bool
		pre   []int64
		in    string
		out   string
		err   error
	}{
		{name: "sum", image: sum, in: "2\n3\n", out: "5\n"},
		{name: "sum_one_line", image: sum, in: "2,3\n", out: "5\n"},
		{name: "sum_blank_lines", image: sum, in: "\n2\n\n40", out: "42\n"},
		{name: "sum_leading_zeros", image: sum, in: "010\n05\n", out: "15\n"},
		{name: "queued", image: sum, pre: []int64{4, 5}, out: "9\n"},
		{name: "echo_negative", image: echo, in: "-7\n", out: "-7\n"},
		{name: "ascii", image: ascii, ascii: true, in: "hi\n", out: "hi200\n"},
		{name: "eof", image: sum, in: "1\n", err: errInputClosed},
		{name: "fault", image: []int64{1, -1, 0, 0, 99}, err: intcode.ErrAddress},
	} {
		t.Run(c.name, func(t *testing.T) {
			var out strings.Builder
			con := newConsole(strings.NewReader(c.in), &out, c.ascii)
			m, err := intcode.New(c.image)
			if err != nil {
				t.Fatal(err)
			}
			m.PushInput(c.pre...)
			err = con.run(context.Background(), m)
			if !errors.Is(err, c.err) || (err == nil) != (c.err == nil) {
				t.Fatalf("run error = %v, want %v", err, c.err)
			}
			if g := out.String(); g != c.out {
				t.Errorf("output = %q, want %q", g, c.out)
			}
		})
	}
}

func TestConsoleCanceled(t *testing.T) {
	// Loops forever.
	m, err := intcode.New([]int64{1105, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out strings.Builder
	if err := newConsole(strings.NewReader(""), &out, false).run(ctx, m); err != context.Canceled {
		t.Errorf("run error = %v, want %v", err, context.Canceled)
	}
}

func TestRunPipeline(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Seeds = []int64{4, 3, 2, 1, 0}
	cfg.Run.Input = []int64{0}
	image := []int64{3, 15, 3, 16, 1002, 16, 10, 16, 1, 16, 15, 15, 4, 15, 99, 0, 0}

	var out strings.Builder
	con := newConsole(strings.NewReader(""), &out, false)
	if err := run(context.Background(), cfg, image, zap.NewNop(), con); err != nil {
		t.Fatal(err)
	}
	if g, w := out.String(), "43210\n"; g != w {
		t.Errorf("output = %q, want %q", g, w)
	}
}

func TestRunPoke(t *testing.T) {
	cfg := config.Default()
	cfg.Run.Poke[1] = 9
	cfg.Run.Poke[2] = 10
	// Outputs the product of the words at addresses 1 and 2.
	image := []int64{1102, 0, 0, 7, 4, 7, 99, 0}

	var out strings.Builder
	con := newConsole(strings.NewReader(""), &out, false)
	if err := run(context.Background(), cfg, image, zap.NewNop(), con); err != nil {
		t.Fatal(err)
	}
	if g, w := out.String(), "90\n"; g != w {
		t.Errorf("output = %q, want %q", g, w)
	}
}

func TestApplyFlags(t *testing.T) {
	fs := flag.NewFlagSet("intcode", flag.ContinueOnError)
	fs.String("input", "", "")
	fs.Bool("ascii", false, "")
	fs.String("poke", "", "")
	fs.String("pipeline", "", "")
	fs.Bool("feedback", false, "")
	fs.Bool("trace", false, "")
	err := fs.Parse([]string{"-input", "1,-2", "-ascii", "-poke", "1=12, 2=2", "-pipeline", "9,8", "-feedback"})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Run.Trace = true
	if err := applyFlags(cfg, fs); err != nil {
		t.Fatal(err)
	}
	if g := cfg.Run.Input; len(g) != 2 || g[0] != 1 || g[1] != -2 {
		t.Errorf("input = %v, want [1 -2]", g)
	}
	if !cfg.Run.ASCII || !cfg.Run.Trace || !cfg.Pipeline.Feedback {
		t.Errorf("ascii=%v trace=%v feedback=%v, want all true", cfg.Run.ASCII, cfg.Run.Trace, cfg.Pipeline.Feedback)
	}
	if g := cfg.Run.Poke; len(g) != 2 || g[1] != 12 || g[2] != 2 {
		t.Errorf("poke = %v, want map[1:12 2:2]", g)
	}
	if g := cfg.Pipeline.Seeds; len(g) != 2 || g[0] != 9 || g[1] != 8 {
		t.Errorf("seeds = %v, want [9 8]", g)
	}
}

func TestParsePokes(t *testing.T) {
	for _, bad := range []string{"1", "x=1", "-1=1", "1=y"} {
		if err := parsePokes(map[int64]int64{}, bad); err == nil {
			t.Errorf("parsePokes(%q) succeeded", bad)
		}
	}
}
