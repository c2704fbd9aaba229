package policy

import "strings"

// Class is the fusion behaviour of an operator type.
type Class int

const (
	// Opaque operators (matmul, convolution, unknown types) never fuse.
	Opaque Class = iota
	// Data nodes (inputs, constants, parameters) never fuse.
	Data
	Elementwise
	Broadcast
	Reduce
	Split
	Concat
)

func (c Class) String() string {
	switch c {
	case Data:
		return "data"
	case Elementwise:
		return "elementwise"
	case Broadcast:
		return "broadcast"
	case Reduce:
		return "reduce"
	case Split:
		return "split"
	case Concat:
		return "concat"
	}
	return "opaque"
}

var classes = map[string]Class{}

func register(c Class, types ...string) {
	for _, t := range types {
		classes[t] = c
	}
}

func init() {
	register(Data, "data", "input", "placeholder", "parameter", "const", "constant", "output")
	register(Elementwise,
		"add", "sub", "mul", "div", "neg", "abs", "exp", "log", "sqrt", "rsqrt", "pow",
		"relu", "gelu", "silu", "sigmoid", "tanh", "erf", "cast", "maximum", "minimum",
		"select", "where", "clip", "square", "reciprocal", "identity")
	register(Broadcast, "broadcast", "broadcastto", "expand", "unsqueeze", "squeeze", "reshape", "tile")
	register(Reduce, "reducesum", "reducemean", "reducemax", "reducemin", "reduceprod", "sum", "mean", "softmax", "layernorm")
	register(Split, "split", "slice", "chunk", "stridedslice")
	register(Concat, "concat", "concatenate", "stack", "pack")
	register(Opaque, "matmul", "batchmatmul", "gemm", "conv", "conv2d", "conv3d", "convtranspose", "attention")
}

// Classify maps an operator type to its class. Matching ignores case and
// underscores; unknown types are Opaque.
func Classify(typ string) Class {
	key := strings.ToLower(strings.ReplaceAll(typ, "_", ""))
	if c, ok := classes[key]; ok {
		return c
	}
	return Opaque
}
