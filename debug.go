package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nf/intcode/config"
	"github.com/nf/intcode/intcode"
	"github.com/nf/intcode/program"
)

var debugCommands = []string{
	"step", "continue", "pause", "break", "watch", "input", "dump", "reset", "exit",
}

// maxDump is the largest memory, in words, that the dump command writes.
const maxDump = 1 << 20

type debugger struct {
	cfg   *config.Config
	image []int64
	log   *zap.Logger

	logView *tview.TextView
	watch   *tview.TextView
	state   *tview.TextView
	input   *tview.InputField
	cols    *tview.Flex
	rows    *tview.Flex
	app     *tview.Application

	cmds chan string

	// Owned by the loop goroutine.
	m       *intcode.Machine
	running bool
	from    int64 // steps executed when the last continue began
	breaks  map[int64]bool
	watches []int64
}

type stateKind int

const (
	clearState stateKind = iota
	pauseState
	breakState
	waitState
	haltState
	faultState
)

func debugMode(cfg *config.Config) error {
	image, err := program.ParseFile(cfg.Program)
	if err != nil {
		return err
	}
	d := newDebugger(cfg, image)
	if err := d.reset(); err != nil {
		return err
	}
	go d.loop()
	return d.app.Run()
}

func newDebugger(cfg *config.Config, image []int64) *debugger {
	d := &debugger{
		cfg:   cfg,
		image: image,
		logView: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app:    tview.NewApplication(),
		cmds:   make(chan string, 16),
		breaks: make(map[int64]bool),
	}
	level := zapcore.InfoLevel
	if cfg.Run.Trace {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	d.log = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.AddSync(d.logView),
		level,
	))

	d.logView.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.logView, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 3, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if t == "" || strings.Contains(t, " ") {
			return nil
		}
		for _, c := range debugCommands {
			if strings.HasPrefix(c, t) {
				entries = append(entries, c)
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := strings.TrimSpace(d.input.GetText())
		if cmd == "" {
			return
		}
		d.input.SetText("")
		if cmd == "exit" {
			d.app.Stop()
			return
		}
		go func() { d.cmds <- cmd }()
	})
	return d
}

// loop owns the machine. It executes commands and, while continuing,
// runs the machine a slice at a time so that commands such as pause are
// still seen.
func (d *debugger) loop() {
	d.show(clearState)
	for {
		var cmd string
		if d.running {
			select {
			case cmd = <-d.cmds:
			default:
			}
		} else {
			cmd = <-d.cmds
		}
		if cmd != "" {
			d.exec(cmd)
		}
		if d.running {
			d.cont()
		}
	}
}

func (d *debugger) exec(cmd string) {
	cmd, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "s", "step":
		n := int64(1)
		if arg != "" {
			v, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || v < 1 {
				d.log.Warn("invalid step count", zap.String("arg", arg))
				return
			}
			n = v
		}
		d.running = false
		for ; n > 0; n-- {
			s, err := d.m.Step()
			d.drain()
			if err != nil || s != intcode.Running {
				break
			}
		}
		d.show(d.kind(pauseState))
	case "c", "continue":
		d.running, d.from = true, d.m.Steps()
		d.show(clearState)
	case "p", "pause":
		d.running = false
		d.show(d.kind(pauseState))
	case "b", "break":
		if arg == "" {
			clear(d.breaks)
			d.log.Info("cleared breaks")
		} else if addr, ok := d.addr(arg); ok {
			d.breaks[addr] = !d.breaks[addr]
			if !d.breaks[addr] {
				delete(d.breaks, addr)
			}
			d.log.Info("break", zap.Int64("addr", addr), zap.Bool("set", d.breaks[addr]))
		}
		d.show(d.kind(pauseState))
	case "w", "watch":
		if arg == "" {
			d.watches = nil
			d.log.Info("cleared watches")
		} else if addr, ok := d.addr(arg); ok {
			d.watches = append(d.watches, addr)
			d.log.Info("watching", zap.Int64("addr", addr))
		}
		d.show(d.kind(pauseState))
	case "i", "input":
		vs, err := d.parseInput(arg)
		if err != nil {
			d.log.Warn("invalid input", zap.Error(err))
			return
		}
		d.m.PushInput(vs...)
		d.log.Info("queued input", zap.Int64s("values", vs))
		d.show(d.kind(pauseState))
	case "dump":
		if err := d.dump(arg); err != nil {
			d.log.Warn("dump", zap.Error(err))
		}
	case "r", "reset":
		if err := d.reset(); err != nil {
			d.log.Error("reset", zap.Error(err))
			return
		}
		d.log.Info("reset")
		d.show(clearState)
	default:
		d.log.Warn("unknown command", zap.String("cmd", cmd))
	}
}

// cont runs one slice of a continue, stopping at breakpoints and whenever
// the machine stops running.
func (d *debugger) cont() {
	for i := 0; i < slice; i++ {
		if d.m.Steps() != d.from && d.breaks[d.m.IP()] {
			d.running = false
			d.show(breakState)
			return
		}
		s, err := d.m.Step()
		d.drain()
		if err != nil || s != intcode.Running {
			d.running = false
			d.show(d.kind(pauseState))
			return
		}
	}
}

func (d *debugger) reset() error {
	m, err := newMachine(d.cfg, d.image, d.log)
	if err != nil {
		return err
	}
	m.PushInput(d.cfg.Run.Input...)
	d.m, d.running = m, false
	return nil
}

// drain logs the machine's output.
func (d *debugger) drain() {
	vs := d.m.Output()
	if len(vs) == 0 {
		return
	}
	if d.cfg.Run.ASCII {
		var b strings.Builder
		for _, v := range vs {
			if v >= 0 && v < 128 {
				b.WriteByte(byte(v))
			} else {
				fmt.Fprintf(&b, "<%d>", v)
			}
		}
		d.log.Info("output", zap.String("text", b.String()))
		return
	}
	d.log.Info("output", zap.Int64s("values", vs))
}

func (d *debugger) parseInput(arg string) ([]int64, error) {
	if d.cfg.Run.ASCII {
		vs := make([]int64, 0, len(arg)+1)
		for i := 0; i < len(arg); i++ {
			vs = append(vs, int64(arg[i]))
		}
		return append(vs, '\n'), nil
	}
	return program.ParseString(arg)
}

func (d *debugger) addr(arg string) (int64, bool) {
	addr, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || addr < 0 {
		d.log.Warn("invalid address", zap.String("arg", arg))
		return 0, false
	}
	return addr, true
}

// dump writes the machine's memory as a program image to the named file,
// or to the log if name is empty.
func (d *debugger) dump(name string) error {
	n := d.m.Mem.Len()
	if n > maxDump {
		return fmt.Errorf("memory extends to %d words, more than %d", n, maxDump)
	}
	image := make([]int64, n)
	for _, c := range d.m.Dump() {
		image[c.Addr] = c.Value
	}
	if name == "" {
		var b strings.Builder
		if err := program.Format(&b, image); err != nil {
			return err
		}
		d.log.Info("memory", zap.String("image", strings.TrimSpace(b.String())))
		return nil
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := program.Format(f, image); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	d.log.Info("dumped memory", zap.String("file", name), zap.Int64("words", n))
	return nil
}

// kind returns the state kind for the machine's status, or k if the
// machine is still running.
func (d *debugger) kind(k stateKind) stateKind {
	switch d.m.Status() {
	case intcode.WaitingForInput:
		return waitState
	case intcode.Halted:
		return haltState
	case intcode.Faulted:
		return faultState
	}
	return k
}

func (d *debugger) show(k stateKind) {
	var (
		watch = d.watchContent()
		state = stateMsg(d.m, k)
	)
	d.app.QueueUpdateDraw(func() {
		switch k {
		case clearState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case breakState, waitState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case pauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case haltState, faultState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		d.state.SetText(state)
	})
}

func stateMsg(m *intcode.Machine, k stateKind) string {
	var op string
	if in, err := m.Disassemble(m.IP()); err != nil {
		op = fmt.Sprintf("%d ?", m.Peek(m.IP()))
	} else {
		op = in.String()
	}
	kind := "       "
	switch k {
	case breakState:
		kind = "[break]"
	case pauseState:
		kind = "[pause]"
	case waitState:
		kind = "[wait!]"
	case haltState:
		kind = "[HALT!]"
	case faultState:
		kind = "[FAULT]"
	}
	detail := fmt.Sprintf("rb: %d  steps: %d  queued input: %d", m.RelativeBase(), m.Steps(), m.Pending())
	if err := m.Err(); err != nil {
		detail = err.Error()
	}
	return fmt.Sprintf("%.6d %-32s %s\n%s\n", m.IP(), op, kind, detail)
}

func (d *debugger) watchContent() string {
	var b strings.Builder
	breaks := make([]int64, 0, len(d.breaks))
	for addr := range d.breaks {
		breaks = append(breaks, addr)
	}
	sort.Slice(breaks, func(i, j int) bool { return breaks[i] < breaks[j] })
	for _, addr := range breaks {
		fmt.Fprintf(&b, "[%.6d] brk!\n", addr)
	}
	for _, addr := range d.watches {
		fmt.Fprintf(&b, "[%.6d] %d\n", addr, d.m.Peek(addr))
	}
	return b.String()
}
