package intcode

import "fmt"

// Op represents an Intcode opcode, the low two decimal digits of an
// instruction word.
type Op int64

const (
	ADD  Op = 1
	MUL  Op = 2
	IN   Op = 3
	OUT  Op = 4
	JNZ  Op = 5
	JZ   Op = 6
	LT   Op = 7
	EQ   Op = 8
	ARB  Op = 9
	HALT Op = 99
)

// Params returns the number of parameters taken by op,
// or -1 if op is not a valid opcode.
func (op Op) Params() int {
	switch op {
	case ADD, MUL, LT, EQ:
		return 3
	case JNZ, JZ:
		return 2
	case IN, OUT, ARB:
		return 1
	case HALT:
		return 0
	}
	return -1
}

// Width is the number of words occupied by an instruction with opcode op.
func (op Op) Width() int64 { return int64(op.Params()) + 1 }

// Valid reports whether op is a known opcode.
func (op Op) Valid() bool { return op.Params() >= 0 }

// writes reports whether parameter i of op is a destination.
func (op Op) writes(i int) bool {
	switch op {
	case ADD, MUL, LT, EQ:
		return i == 2
	case IN:
		return i == 0
	}
	return false
}

func (op Op) String() string {
	if s, ok := map[Op]string{
		ADD:  "ADD",
		MUL:  "MUL",
		IN:   "IN",
		OUT:  "OUT",
		JNZ:  "JNZ",
		JZ:   "JZ",
		LT:   "LT",
		EQ:   "EQ",
		ARB:  "ARB",
		HALT: "HALT",
	}[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int64(op))
}

// Mode is a parameter addressing mode.
type Mode byte

const (
	Position  Mode = 0
	Immediate Mode = 1
	Relative  Mode = 2
)

func (m Mode) String() string {
	switch m {
	case Position:
		return "position"
	case Immediate:
		return "immediate"
	case Relative:
		return "relative"
	}
	return fmt.Sprintf("mode(%d)", byte(m))
}

// Decode splits an instruction word into its opcode and the modes of its
// parameters. Mode digits beyond the opcode's parameter count are ignored,
// so HALT decodes the same whatever its higher digits are.
func Decode(word int64) (op Op, modes [3]Mode, err error) {
	if word < 0 {
		return Op(word), modes, FaultError{Code: InvalidOpcode, Op: Op(word)}
	}
	op = Op(word % 100)
	if !op.Valid() {
		return op, modes, FaultError{Code: InvalidOpcode, Op: op}
	}
	word /= 100
	for i := 0; i < op.Params(); i++ {
		d := word % 10
		word /= 10
		if d > int64(Relative) {
			return op, modes, FaultError{Code: InvalidMode, Op: op, Operand: d}
		}
		if Mode(d) == Immediate && op.writes(i) {
			return op, modes, FaultError{Code: InvalidWriteMode, Op: op, Operand: int64(i)}
		}
		modes[i] = Mode(d)
	}
	return op, modes, nil
}

// Instruction is a decoded instruction, as reported by Disassemble.
type Instruction struct {
	Addr  int64
	Word  int64
	Op    Op
	Modes [3]Mode
	Args  []int64
}

func (in Instruction) String() string {
	s := in.Op.String()
	for i, a := range in.Args {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		switch in.Modes[i] {
		case Immediate:
			s += fmt.Sprint(a)
		case Relative:
			s += fmt.Sprintf("[rb%+d]", a)
		default:
			s += fmt.Sprintf("[%d]", a)
		}
	}
	return s
}
