package instr

import (
	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/frame"
)

// effect is a fixed stack contract: consumed sets bottom first, one pushed
// set or Void.
type effect struct {
	consumes []frame.TypeSet
	pushes   frame.TypeSet
}

func pops(sets ...frame.TypeSet) []frame.TypeSet { return sets }

const (
	tc  = frame.TwoComplement
	ref = frame.Reference
)

// effects holds the contract of every opcode whose effect depends on the
// opcode alone. Loads, ldc, field access, invokes and multianewarray are
// derived from operands instead.
var effects = map[bytecode.Opcode]effect{
	bytecode.OpNop: {},

	bytecode.OpAconstNull: {nil, ref},
	bytecode.OpIconstM1:   {nil, frame.Int},
	bytecode.OpIconst0:    {nil, frame.Int},
	bytecode.OpIconst1:    {nil, frame.Int},
	bytecode.OpIconst2:    {nil, frame.Int},
	bytecode.OpIconst3:    {nil, frame.Int},
	bytecode.OpIconst4:    {nil, frame.Int},
	bytecode.OpIconst5:    {nil, frame.Int},
	bytecode.OpLconst0:    {nil, frame.Long},
	bytecode.OpLconst1:    {nil, frame.Long},
	bytecode.OpFconst0:    {nil, frame.Float},
	bytecode.OpFconst1:    {nil, frame.Float},
	bytecode.OpFconst2:    {nil, frame.Float},
	bytecode.OpDconst0:    {nil, frame.Double},
	bytecode.OpDconst1:    {nil, frame.Double},
	bytecode.OpBipush:     {nil, frame.Int},
	bytecode.OpSipush:     {nil, frame.Int},

	// Array loads: arrayref, index
	bytecode.OpIaload: {pops(ref, tc), frame.Int},
	bytecode.OpLaload: {pops(ref, tc), frame.Long},
	bytecode.OpFaload: {pops(ref, tc), frame.Float},
	bytecode.OpDaload: {pops(ref, tc), frame.Double},
	bytecode.OpAaload: {pops(ref, tc), ref},
	bytecode.OpBaload: {pops(ref, tc), frame.Of(frame.KindByte, frame.KindBoolean)},
	bytecode.OpCaload: {pops(ref, tc), frame.Char},
	bytecode.OpSaload: {pops(ref, tc), frame.Short},

	// Array stores: arrayref, index, value
	bytecode.OpIastore: {pops(ref, tc, tc), frame.Void},
	bytecode.OpLastore: {pops(ref, tc, frame.Long), frame.Void},
	bytecode.OpFastore: {pops(ref, tc, frame.Float), frame.Void},
	bytecode.OpDastore: {pops(ref, tc, frame.Double), frame.Void},
	bytecode.OpAastore: {pops(ref, tc, ref), frame.Void},
	bytecode.OpBastore: {pops(ref, tc, tc), frame.Void},
	bytecode.OpCastore: {pops(ref, tc, tc), frame.Void},
	bytecode.OpSastore: {pops(ref, tc, tc), frame.Void},

	bytecode.OpIadd:  {pops(tc, tc), frame.Int},
	bytecode.OpLadd:  {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpFadd:  {pops(frame.Float, frame.Float), frame.Float},
	bytecode.OpDadd:  {pops(frame.Double, frame.Double), frame.Double},
	bytecode.OpIsub:  {pops(tc, tc), frame.Int},
	bytecode.OpLsub:  {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpFsub:  {pops(frame.Float, frame.Float), frame.Float},
	bytecode.OpDsub:  {pops(frame.Double, frame.Double), frame.Double},
	bytecode.OpImul:  {pops(tc, tc), frame.Int},
	bytecode.OpLmul:  {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpFmul:  {pops(frame.Float, frame.Float), frame.Float},
	bytecode.OpDmul:  {pops(frame.Double, frame.Double), frame.Double},
	bytecode.OpIdiv:  {pops(tc, tc), frame.Int},
	bytecode.OpLdiv:  {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpFdiv:  {pops(frame.Float, frame.Float), frame.Float},
	bytecode.OpDdiv:  {pops(frame.Double, frame.Double), frame.Double},
	bytecode.OpIrem:  {pops(tc, tc), frame.Int},
	bytecode.OpLrem:  {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpFrem:  {pops(frame.Float, frame.Float), frame.Float},
	bytecode.OpDrem:  {pops(frame.Double, frame.Double), frame.Double},
	bytecode.OpIshl:  {pops(tc, tc), frame.Int},
	bytecode.OpLshl:  {pops(frame.Long, tc), frame.Long},
	bytecode.OpIshr:  {pops(tc, tc), frame.Int},
	bytecode.OpLshr:  {pops(frame.Long, tc), frame.Long},
	bytecode.OpIushr: {pops(tc, tc), frame.Int},
	bytecode.OpLushr: {pops(frame.Long, tc), frame.Long},
	bytecode.OpIand:  {pops(tc, tc), frame.Int},
	bytecode.OpLand:  {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpIor:   {pops(tc, tc), frame.Int},
	bytecode.OpLor:   {pops(frame.Long, frame.Long), frame.Long},
	bytecode.OpIxor:  {pops(tc, tc), frame.Int},
	bytecode.OpLxor:  {pops(frame.Long, frame.Long), frame.Long},

	bytecode.OpIneg: {pops(tc), frame.Int},
	bytecode.OpLneg: {pops(frame.Long), frame.Long},
	bytecode.OpFneg: {pops(frame.Float), frame.Float},
	bytecode.OpDneg: {pops(frame.Double), frame.Double},

	bytecode.OpIinc: {},

	bytecode.OpI2l: {pops(tc), frame.Long},
	bytecode.OpI2f: {pops(tc), frame.Float},
	bytecode.OpI2d: {pops(tc), frame.Double},
	bytecode.OpL2i: {pops(frame.Long), frame.Int},
	bytecode.OpL2f: {pops(frame.Long), frame.Float},
	bytecode.OpL2d: {pops(frame.Long), frame.Double},
	bytecode.OpF2i: {pops(frame.Float), frame.Int},
	bytecode.OpF2l: {pops(frame.Float), frame.Long},
	bytecode.OpF2d: {pops(frame.Float), frame.Double},
	bytecode.OpD2i: {pops(frame.Double), frame.Int},
	bytecode.OpD2l: {pops(frame.Double), frame.Long},
	bytecode.OpD2f: {pops(frame.Double), frame.Float},
	bytecode.OpI2b: {pops(tc), frame.Byte},
	bytecode.OpI2c: {pops(tc), frame.Char},
	bytecode.OpI2s: {pops(tc), frame.Short},

	bytecode.OpLcmp:  {pops(frame.Long, frame.Long), frame.Int},
	bytecode.OpFcmpl: {pops(frame.Float, frame.Float), frame.Int},
	bytecode.OpFcmpg: {pops(frame.Float, frame.Float), frame.Int},
	bytecode.OpDcmpl: {pops(frame.Double, frame.Double), frame.Int},
	bytecode.OpDcmpg: {pops(frame.Double, frame.Double), frame.Int},

	bytecode.OpGoto:         {},
	bytecode.OpGotoW:        {},
	bytecode.OpTableswitch:  {pops(tc), frame.Void},
	bytecode.OpLookupswitch: {pops(tc), frame.Void},

	bytecode.OpIreturn: {pops(tc), frame.Void},
	bytecode.OpLreturn: {pops(frame.Long), frame.Void},
	bytecode.OpFreturn: {pops(frame.Float), frame.Void},
	bytecode.OpDreturn: {pops(frame.Double), frame.Void},
	bytecode.OpAreturn: {pops(ref), frame.Void},
	bytecode.OpReturn:  {},
	bytecode.OpAthrow:  {pops(ref), frame.Void},

	bytecode.OpNew:         {nil, ref},
	bytecode.OpNewarray:    {pops(tc), ref},
	bytecode.OpAnewarray:   {pops(tc), ref},
	bytecode.OpArraylength: {pops(ref), frame.Int},
	bytecode.OpCheckcast:   {pops(ref), ref},
	bytecode.OpInstanceof:  {pops(ref), frame.Int},

	bytecode.OpMonitorenter: {pops(ref), frame.Void},
	bytecode.OpMonitorexit:  {pops(ref), frame.Void},
}

// comparison describes a conditional jump: the operands it tests and the
// condition under which it branches. Adding a comparison kind is adding an
// entry here.
type comparison struct {
	op        bytecode.Opcode
	consumes  []frame.TypeSet
	condition string
}

var comparisons = []comparison{
	{bytecode.OpIfeq, pops(tc), "== 0"},
	{bytecode.OpIfne, pops(tc), "!= 0"},
	{bytecode.OpIflt, pops(tc), "< 0"},
	{bytecode.OpIfge, pops(tc), ">= 0"},
	{bytecode.OpIfgt, pops(tc), "> 0"},
	{bytecode.OpIfle, pops(tc), "<= 0"},
	{bytecode.OpIfIcmpeq, pops(tc, tc), "=="},
	{bytecode.OpIfIcmpne, pops(tc, tc), "!="},
	{bytecode.OpIfIcmplt, pops(tc, tc), "<"},
	{bytecode.OpIfIcmpge, pops(tc, tc), ">="},
	{bytecode.OpIfIcmpgt, pops(tc, tc), ">"},
	{bytecode.OpIfIcmple, pops(tc, tc), "<="},
	{bytecode.OpIfAcmpeq, pops(ref, ref), "=="},
	{bytecode.OpIfAcmpne, pops(ref, ref), "!="},
	{bytecode.OpIfnull, pops(ref), "== null"},
	{bytecode.OpIfnonnull, pops(ref), "!= null"},
}

var comparisonsByOpcode = func() map[bytecode.Opcode]comparison {
	m := make(map[bytecode.Opcode]comparison, len(comparisons))
	for _, c := range comparisons {
		m[c.op] = c
		effects[c.op] = effect{consumes: c.consumes, pushes: frame.Void}
	}
	return m
}()

// loadFamily is the set a load may push and a store may record, by the
// slot's declared type.
var loadFamily = map[bytecode.Opcode]frame.TypeSet{
	bytecode.OpIload: tc,
	bytecode.OpLload: frame.Long,
	bytecode.OpFload: frame.Float,
	bytecode.OpDload: frame.Double,
	bytecode.OpAload: ref,
}

// loadDefault is what a load pushes when the slot type is unknown.
var loadDefault = map[bytecode.Opcode]frame.TypeSet{
	bytecode.OpIload: frame.Int,
	bytecode.OpLload: frame.Long,
	bytecode.OpFload: frame.Float,
	bytecode.OpDload: frame.Double,
	bytecode.OpAload: ref,
}

// storeType is what a store consumes and records in the variable table.
var storeType = map[bytecode.Opcode]frame.TypeSet{
	bytecode.OpIstore: tc,
	bytecode.OpLstore: frame.Long,
	bytecode.OpFstore: frame.Float,
	bytecode.OpDstore: frame.Double,
	bytecode.OpAstore: ref | frame.ReturnAddress,
}

// baseLoadStore maps ILOAD_2, ASTORE_0 and friends onto the explicit-slot
// opcode of the same type.
func baseLoadStore(op bytecode.Opcode) bytecode.Opcode {
	switch {
	case op >= bytecode.OpIload0 && op <= bytecode.OpAload3:
		return bytecode.OpIload + (op-bytecode.OpIload0)/4
	case op >= bytecode.OpIstore0 && op <= bytecode.OpAstore3:
		return bytecode.OpIstore + (op-bytecode.OpIstore0)/4
	}
	return op
}

// ldcDefault is pushed by ldc when the constant's type is unknown.
func ldcDefault(op bytecode.Opcode) frame.TypeSet {
	if op == bytecode.OpLdc2W {
		return frame.Long | frame.Double
	}
	return frame.Category1 &^ frame.ReturnAddress
}

// shapes holds the forms of the shape-generic instructions. Each form lists
// the categories of the values it pops and which of them it pushes back.
var shapes = map[bytecode.Opcode]*frame.ShapeManipulation{
	bytecode.OpPop: frame.NewShape("POP",
		frame.Form{Consumes: []int{1}},
	),
	bytecode.OpPop2: frame.NewShape("POP2",
		frame.Form{Consumes: []int{1, 1}},
		frame.Form{Consumes: []int{2}},
	),
	bytecode.OpDup: frame.NewShape("DUP",
		frame.Form{Consumes: []int{1}, Produces: []int{0, 0}},
	),
	bytecode.OpDupX1: frame.NewShape("DUP_X1",
		frame.Form{Consumes: []int{1, 1}, Produces: []int{1, 0, 1}},
	),
	bytecode.OpDupX2: frame.NewShape("DUP_X2",
		frame.Form{Consumes: []int{1, 1, 1}, Produces: []int{2, 0, 1, 2}},
		frame.Form{Consumes: []int{2, 1}, Produces: []int{1, 0, 1}},
	),
	bytecode.OpDup2: frame.NewShape("DUP2",
		frame.Form{Consumes: []int{1, 1}, Produces: []int{0, 1, 0, 1}},
		frame.Form{Consumes: []int{2}, Produces: []int{0, 0}},
	),
	bytecode.OpDup2X1: frame.NewShape("DUP2_X1",
		frame.Form{Consumes: []int{1, 1, 1}, Produces: []int{1, 2, 0, 1, 2}},
		frame.Form{Consumes: []int{1, 2}, Produces: []int{1, 0, 1}},
	),
	bytecode.OpDup2X2: frame.NewShape("DUP2_X2",
		frame.Form{Consumes: []int{1, 1, 1, 1}, Produces: []int{2, 3, 0, 1, 2, 3}},
		frame.Form{Consumes: []int{1, 1, 2}, Produces: []int{2, 0, 1, 2}},
		frame.Form{Consumes: []int{2, 1, 1}, Produces: []int{1, 2, 0, 1, 2}},
		frame.Form{Consumes: []int{2, 2}, Produces: []int{1, 0, 1}},
	),
	bytecode.OpSwap: frame.NewShape("SWAP",
		frame.Form{Consumes: []int{1, 1}, Produces: []int{1, 0}},
	),
}

// ShapeOf returns the shape-generic manipulation of op, if it has one.
func ShapeOf(op bytecode.Opcode) (*frame.ShapeManipulation, bool) {
	m, ok := shapes[op]
	return m, ok
}
