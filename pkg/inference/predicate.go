/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: predicate.go
Description: Executable branch predicates over input strings. A predicate is a total boolean
function over code-point positions of its argument together with a canonical text form;
positions beyond the end of the argument make the predicate false.
*/

package inference

import (
	"fmt"
)

// MaxCodePoint is the largest Unicode code point
const MaxCodePoint = 0x10FFFF

// Op is a comparison operator
type Op int

const (
	OpEQ Op = iota
	OpLE
	OpGE
	OpNE
	OpLT
	OpGT
)

// PositiveOps hold for equal operands, NegativeOps are their complements
var (
	PositiveOps = []Op{OpEQ, OpLE, OpGE}
	NegativeOps = []Op{OpNE, OpLT, OpGT}
	AllOps      = []Op{OpEQ, OpLE, OpGE, OpNE, OpLT, OpGT}
)

// String returns the operator symbol
func (o Op) String() string {
	switch o {
	case OpEQ:
		return "=="
	case OpLE:
		return "<="
	case OpGE:
		return ">="
	case OpNE:
		return "!="
	case OpLT:
		return "<"
	case OpGT:
		return ">"
	default:
		return "?"
	}
}

// Compare applies the operator to a and b
func (o Op) Compare(a, b int) bool {
	switch o {
	case OpEQ:
		return a == b
	case OpLE:
		return a <= b
	case OpGE:
		return a >= b
	case OpNE:
		return a != b
	case OpLT:
		return a < b
	case OpGT:
		return a > b
	default:
		return false
	}
}

// Kind identifies a predicate template
type Kind int

const (
	KindEmpty    Kind = iota // len(x) == 0
	KindNonEmpty             // len(x) != 0
	KindUnary                // x[p] op 'c'
	KindBinary               // x[p1] op x[p2]
	KindInRange              // lo <= x[p] <= hi
	KindOutside              // x[p] < lo || x[p] > hi
	KindAbove                // x[p] > hi
	KindBelow                // x[p] < lo
)

var kindNames = map[Kind]string{
	KindEmpty:    "empty",
	KindNonEmpty: "non-empty",
	KindUnary:    "unary",
	KindBinary:   "binary",
	KindInRange:  "range",
	KindOutside:  "outside",
	KindAbove:    "above",
	KindBelow:    "below",
}

// String returns the template name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Predicate is a candidate branch condition
type Predicate struct {
	Kind    Kind
	Op      Op
	Pos     int
	Pos2    int
	Literal rune
	Lo      rune
	Hi      rune
}

// LengthZero returns len(x) == 0
func LengthZero() Predicate { return Predicate{Kind: KindEmpty} }

// LengthNonZero returns len(x) != 0
func LengthNonZero() Predicate { return Predicate{Kind: KindNonEmpty} }

// Unary returns x[pos] op lit
func Unary(pos int, op Op, lit rune) Predicate {
	return Predicate{Kind: KindUnary, Pos: pos, Op: op, Literal: lit}
}

// Binary returns x[pos1] op x[pos2]
func Binary(pos1 int, op Op, pos2 int) Predicate {
	return Predicate{Kind: KindBinary, Pos: pos1, Op: op, Pos2: pos2}
}

// InRange returns lo <= x[pos] <= hi
func InRange(pos int, lo, hi rune) Predicate {
	return Predicate{Kind: KindInRange, Pos: pos, Lo: lo, Hi: hi}
}

// Outside returns x[pos] < lo || x[pos] > hi
func Outside(pos int, lo, hi rune) Predicate {
	return Predicate{Kind: KindOutside, Pos: pos, Lo: lo, Hi: hi}
}

// Above returns x[pos] > hi
func Above(pos int, hi rune) Predicate {
	return Predicate{Kind: KindAbove, Pos: pos, Hi: hi}
}

// Below returns x[pos] < lo
func Below(pos int, lo rune) Predicate {
	return Predicate{Kind: KindBelow, Pos: pos, Lo: lo}
}

// Eval evaluates the predicate on x
func (p Predicate) Eval(x string) bool {
	return p.EvalRunes([]rune(x))
}

// EvalRunes evaluates the predicate on pre-decoded code points
func (p Predicate) EvalRunes(x []rune) bool {
	switch p.Kind {
	case KindEmpty:
		return len(x) == 0
	case KindNonEmpty:
		return len(x) != 0
	}
	if p.Pos < 0 || p.Pos >= len(x) {
		return false
	}
	c := x[p.Pos]
	switch p.Kind {
	case KindUnary:
		return p.Op.Compare(int(c), int(p.Literal))
	case KindBinary:
		if p.Pos2 < 0 || p.Pos2 >= len(x) {
			return false
		}
		return p.Op.Compare(int(c), int(x[p.Pos2]))
	case KindInRange:
		return c >= p.Lo && c <= p.Hi
	case KindOutside:
		return c < p.Lo || c > p.Hi
	case KindAbove:
		return c > p.Hi
	case KindBelow:
		return c < p.Lo
	default:
		return false
	}
}

// String returns the canonical formula text
func (p Predicate) String() string {
	switch p.Kind {
	case KindEmpty:
		return "len(x) == 0"
	case KindNonEmpty:
		return "len(x) != 0"
	case KindUnary:
		return fmt.Sprintf("x[%d] %s %s", p.Pos, p.Op, QuoteCodePoint(p.Literal))
	case KindBinary:
		return fmt.Sprintf("x[%d] %s x[%d]", p.Pos, p.Op, p.Pos2)
	case KindInRange:
		return fmt.Sprintf("%s <= x[%d] <= %s", QuoteCodePoint(p.Lo), p.Pos, QuoteCodePoint(p.Hi))
	case KindOutside:
		return fmt.Sprintf("x[%d] < %s || x[%d] > %s", p.Pos, QuoteCodePoint(p.Lo), p.Pos, QuoteCodePoint(p.Hi))
	case KindAbove:
		return fmt.Sprintf("x[%d] > %s", p.Pos, QuoteCodePoint(p.Hi))
	case KindBelow:
		return fmt.Sprintf("x[%d] < %s", p.Pos, QuoteCodePoint(p.Lo))
	default:
		return "false"
	}
}

// QuoteCodePoint renders a code point as a single-quoted literal. Printable ASCII is kept as is,
// everything else (surrogates included) is escaped by value.
func QuoteCodePoint(r rune) string {
	switch {
	case r == '\'':
		return `'\''`
	case r == '\\':
		return `'\\'`
	case r >= 32 && r <= 126:
		return "'" + string(r) + "'"
	case r < 0x10000:
		return `'\u` + fmt.Sprintf("%04x", r) + "'"
	default:
		return `'\U` + fmt.Sprintf("%08x", r) + "'"
	}
}
