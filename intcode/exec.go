// Package intcode provides an implementation of an Intcode computer, called
// Machine, that executes self-modifying programs of signed integers and
// exchanges values with its driver through an input and an output queue.
package intcode

import (
	"errors"
	"fmt"
)

// Machine is an Intcode computer. It is not safe for concurrent use;
// a driver owns it and hands values to it between calls to Step or Run.
type Machine struct {
	Mem *Memory

	// Tracef, if non-nil, is called before each instruction executes.
	Tracef func(format string, args ...any)

	ip     int64
	rb     int64
	status Status
	err    error
	steps  int64

	in  []int64
	out []int64
}

// Status is the execution state of a Machine.
type Status byte

const (
	Running Status = iota
	WaitingForInput
	Halted
	Faulted
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case WaitingForInput:
		return "waiting for input"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

var (
	// ErrEmptyProgram is returned by New when given an image with no words.
	ErrEmptyProgram = errors.New("empty program")

	// ErrNotRunning is returned by Step and Run when the machine has
	// already halted or faulted. The machine is left unchanged.
	ErrNotRunning = errors.New("machine is not running")
)

// New returns a Machine loaded with a copy of image at address 0.
func New(image []int64) (*Machine, error) {
	if len(image) == 0 {
		return nil, ErrEmptyProgram
	}
	return &Machine{Mem: NewMemory(image)}, nil
}

// IP returns the address of the next instruction to execute.
func (m *Machine) IP() int64 { return m.ip }

// RelativeBase returns the current relative base register.
func (m *Machine) RelativeBase() int64 { return m.rb }

// Status returns the current execution status.
func (m *Machine) Status() Status { return m.status }

// Err returns the fault that stopped the machine, if any.
func (m *Machine) Err() error { return m.err }

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() int64 { return m.steps }

// PushInput appends values to the input queue.
func (m *Machine) PushInput(v ...int64) { m.in = append(m.in, v...) }

// Pending returns the number of unread input values.
func (m *Machine) Pending() int { return len(m.in) }

// PopOutput removes and returns the oldest output value.
// It reports false if the output queue is empty.
func (m *Machine) PopOutput() (int64, bool) {
	if len(m.out) == 0 {
		return 0, false
	}
	v := m.out[0]
	m.out = m.out[1:]
	return v, true
}

// Output removes and returns every queued output value.
func (m *Machine) Output() []int64 {
	out := m.out
	m.out = nil
	return out
}

// Peek returns the word at addr, or zero if addr is negative.
func (m *Machine) Peek(addr int64) int64 {
	v, _ := m.Mem.Read(addr)
	return v
}

// Poke stores v at addr. It is intended for patching a program before it
// runs, such as setting its noun and verb.
func (m *Machine) Poke(addr, v int64) error {
	if err := m.Mem.Write(addr, v); err != nil {
		return FaultError{Code: AddressError, Addr: addr}
	}
	return nil
}

// Dump returns the populated memory of the machine.
func (m *Machine) Dump() []Cell { return m.Mem.Dump() }

// Run executes instructions until the machine halts, faults or blocks
// waiting for input, and returns the resulting status.
func (m *Machine) Run() (Status, error) {
	for {
		s, err := m.Step()
		if err != nil || s != Running {
			return s, err
		}
	}
}

// RunUntilOutput is like Run but also returns, with status Running, just
// after the machine has written a value to its output queue.
func (m *Machine) RunUntilOutput() (Status, error) {
	for {
		n := len(m.out)
		s, err := m.Step()
		if err != nil || s != Running || len(m.out) > n {
			return s, err
		}
	}
}

// Step executes the instruction at IP and returns the new status.
//
// If the instruction is an input and the input queue is empty, Step
// returns WaitingForInput without consuming anything or moving IP; calling
// Step again once input is available executes the same instruction.
// A fault leaves IP at the faulting instruction, sets the status to Faulted
// and returns a FaultError.
func (m *Machine) Step() (s Status, err error) {
	switch m.status {
	case Halted, Faulted:
		return m.status, ErrNotRunning
	}
	m.status = Running

	var (
		ip = m.ip
		op Op
	)
	defer func() {
		if e := recover(); e != nil {
			f, ok := e.(FaultError)
			if !ok {
				panic(e)
			}
			if f.Op == 0 {
				f.Op = op
			}
			f.IP = ip
			m.status, m.err = Faulted, f
			s, err = Faulted, f
		}
	}()

	word := m.load(ip)
	op, modes, derr := Decode(word)
	if derr != nil {
		panic(derr)
	}
	if m.Tracef != nil {
		m.Tracef("%.6d %s", ip, m.instruction(ip, word, op, modes))
	}

	next := ip + op.Width()
	switch op {
	case ADD:
		m.store(m.dst(ip, modes, 2), m.arg(ip, modes, 0)+m.arg(ip, modes, 1))
	case MUL:
		m.store(m.dst(ip, modes, 2), m.arg(ip, modes, 0)*m.arg(ip, modes, 1))
	case IN:
		if len(m.in) == 0 {
			m.status = WaitingForInput
			return m.status, nil
		}
		dst := m.dst(ip, modes, 0)
		m.store(dst, m.in[0])
		m.in = m.in[1:]
	case OUT:
		m.out = append(m.out, m.arg(ip, modes, 0))
	case JNZ:
		if m.arg(ip, modes, 0) != 0 {
			next = m.arg(ip, modes, 1)
		}
	case JZ:
		if m.arg(ip, modes, 0) == 0 {
			next = m.arg(ip, modes, 1)
		}
	case LT:
		m.store(m.dst(ip, modes, 2), boolWord(m.arg(ip, modes, 0) < m.arg(ip, modes, 1)))
	case EQ:
		m.store(m.dst(ip, modes, 2), boolWord(m.arg(ip, modes, 0) == m.arg(ip, modes, 1)))
	case ARB:
		m.rb += m.arg(ip, modes, 0)
	case HALT:
		m.steps++
		m.status = Halted
		return m.status, nil
	default:
		panic(fmt.Errorf("internal error: %v not implemented", op))
	}
	if next < 0 {
		panic(FaultError{Code: AddressError, Addr: next})
	}
	m.steps++
	m.ip = next
	return m.status, nil
}

// arg resolves read parameter i of the instruction at ip to a value.
func (m *Machine) arg(ip int64, modes [3]Mode, i int) int64 {
	raw := m.load(ip + 1 + int64(i))
	switch modes[i] {
	case Immediate:
		return raw
	case Relative:
		return m.load(m.rb + raw)
	default:
		return m.load(raw)
	}
}

// dst resolves write parameter i of the instruction at ip to an address.
func (m *Machine) dst(ip int64, modes [3]Mode, i int) int64 {
	raw := m.load(ip + 1 + int64(i))
	if modes[i] == Relative {
		return m.rb + raw
	}
	return raw
}

func (m *Machine) load(addr int64) int64 {
	v, err := m.Mem.Read(addr)
	if err != nil {
		panic(FaultError{Code: AddressError, Addr: addr})
	}
	return v
}

func (m *Machine) store(addr, v int64) {
	if err := m.Mem.Write(addr, v); err != nil {
		panic(FaultError{Code: AddressError, Addr: addr})
	}
}

func boolWord(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Disassemble decodes the instruction at addr without executing it.
func (m *Machine) Disassemble(addr int64) (Instruction, error) {
	word, err := m.Mem.Read(addr)
	if err != nil {
		return Instruction{}, FaultError{Code: AddressError, Addr: addr}
	}
	op, modes, err := Decode(word)
	if err != nil {
		return Instruction{Addr: addr, Word: word, Op: op}, err
	}
	return m.instruction(addr, word, op, modes), nil
}

func (m *Machine) instruction(addr, word int64, op Op, modes [3]Mode) Instruction {
	in := Instruction{Addr: addr, Word: word, Op: op, Modes: modes}
	for i := 0; i < op.Params(); i++ {
		in.Args = append(in.Args, m.Peek(addr+1+int64(i)))
	}
	return in
}

// FaultError is returned by Step and Run when the machine faults.
type FaultError struct {
	Code    FaultCode
	Op      Op
	IP      int64 // address of the faulting instruction
	Addr    int64 // offending address, for AddressError
	Operand int64 // offending mode digit or parameter index
}

func (e FaultError) Error() string {
	var detail string
	switch e.Code {
	case AddressError:
		detail = fmt.Sprintf(" %d", e.Addr)
	case InvalidMode:
		detail = fmt.Sprintf(" %d", e.Operand)
	case InvalidWriteMode:
		detail = fmt.Sprintf(" for parameter %d", e.Operand+1)
	}
	return fmt.Sprintf("%s%s executing %s at %d", e.Code, detail, e.Op, e.IP)
}

// Is reports whether target is the sentinel error for e's fault code.
func (e FaultError) Is(target error) bool {
	switch target {
	case ErrAddress:
		return e.Code == AddressError
	case ErrInvalidOpcode:
		return e.Code == InvalidOpcode
	case ErrInvalidWriteMode:
		return e.Code == InvalidWriteMode
	case ErrInvalidMode:
		return e.Code == InvalidMode
	}
	return false
}

// Sentinels matching each FaultCode under errors.Is.
var (
	ErrAddress          = errors.New("negative address")
	ErrInvalidOpcode    = errors.New("invalid opcode")
	ErrInvalidWriteMode = errors.New("immediate mode destination")
	ErrInvalidMode      = errors.New("invalid parameter mode")
)

// FaultCode signifies the type of condition that faulted execution.
type FaultCode byte

const (
	AddressError FaultCode = iota + 1
	InvalidOpcode
	InvalidWriteMode
	InvalidMode
)

func (c FaultCode) String() string {
	if s, ok := map[FaultCode]string{
		AddressError:     "negative address",
		InvalidOpcode:    "invalid opcode",
		InvalidWriteMode: "immediate mode destination",
		InvalidMode:      "invalid parameter mode",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}
