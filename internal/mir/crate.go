package mir

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"minimize/internal/types"
)

type Block struct {
	Stmts []Statement `msgpack:",omitempty"`
	Term  Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Body is a function's control-flow graph. Locals[0] is the return place and
// Locals[1..ArgCount] receive the arguments. Execution starts at block 0.
type Body struct {
	Locals   []Local
	ArgCount int
	Blocks   []Block
}

// Args returns the locals receiving the arguments.
func (b *Body) Args() []LocalID {
	out := make([]LocalID, 0, b.ArgCount)
	for i := 1; i <= b.ArgCount; i++ {
		out = append(out, LocalID(i))
	}
	return out
}

type FuncKind uint8

const (
	// FuncBody is a function with a MIR body.
	FuncBody FuncKind = iota
	// FuncIntrinsic is provided by the machine; Intrinsic names it.
	FuncIntrinsic
)

type FuncDecl struct {
	Name      string
	Kind      FuncKind
	Intrinsic string `msgpack:",omitempty"`
	Body      *Body  `msgpack:",omitempty"`
}

// ConstItem is a named constant whose value the host compiler has already
// evaluated.
type ConstItem struct {
	Name  string
	Value Const
}

// Crate is everything the host compiler exports for one program.
type Crate struct {
	Types  *types.Interner `msgpack:"-"`
	Funcs  []FuncDecl
	Consts []ConstItem
	Entry  string
}

// Lookup finds a function by name.
func (c *Crate) Lookup(name string) (FuncID, bool) {
	for i := range c.Funcs {
		if c.Funcs[i].Name == name {
			return FuncID(i), true
		}
	}
	return NoFuncID, false
}

// Intrinsics the machine provides. "exit" ends the program.
var intrinsicNames = map[string]bool{
	"exit":       true,
	"print":      true,
	"eprint":     true,
	"allocate":   true,
	"deallocate": true,
	"spawn":      true,
	"join":       true,
}

// IsIntrinsic reports whether name is an intrinsic the machine provides.
func IsIntrinsic(name string) bool {
	return intrinsicNames[name]
}

type crateFile struct {
	Types  types.Table `msgpack:"types"`
	Funcs  []FuncDecl  `msgpack:"funcs"`
	Consts []ConstItem `msgpack:"consts"`
	Entry  string      `msgpack:"entry"`
}

var (
	_ msgpack.CustomEncoder = (*Crate)(nil)
	_ msgpack.CustomDecoder = (*Crate)(nil)
)

// EncodeMsgpack writes the crate together with its type table.
func (c *Crate) EncodeMsgpack(enc *msgpack.Encoder) error {
	if c.Types == nil {
		return fmt.Errorf("crate has no type table")
	}
	return enc.Encode(&crateFile{
		Types:  c.Types.Table(),
		Funcs:  c.Funcs,
		Consts: c.Consts,
		Entry:  c.Entry,
	})
}

// DecodeMsgpack reads a crate written by EncodeMsgpack.
func (c *Crate) DecodeMsgpack(dec *msgpack.Decoder) error {
	var f crateFile
	if err := dec.Decode(&f); err != nil {
		return err
	}
	in, err := types.FromTable(f.Types)
	if err != nil {
		return err
	}
	*c = Crate{Types: in, Funcs: f.Funcs, Consts: f.Consts, Entry: f.Entry}
	return nil
}

// WriteCrate encodes c to w.
func WriteCrate(w io.Writer, c *Crate) error {
	return msgpack.NewEncoder(w).Encode(c)
}

// ReadCrate decodes a crate from r.
func ReadCrate(r io.Reader) (*Crate, error) {
	c := &Crate{}
	if err := msgpack.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("decode crate: %w", err)
	}
	return c, nil
}
