package bytecode

// Opcode identifies a bytecode instruction. Every instruction is
// fixed-width: the opcode plus three operand slots.
type Opcode uint8

const (
	// Header / declarations
	OpRegVarDecl Opcode = iota // tmp-regs, local-var-regs, arg-regs
	OpVarDecl                  // name
	OpFuncDeclN                // name, arg-count
	OpFuncExprN                // result, name?, arg-count
	OpArrayDecl                // result, elt-count-hi, elt-count-lo
	OpObjDecl                  // result, prop-count-hi, prop-count-lo

	// Assignment: result, value-type tag, value
	OpAssignment

	// Binary arithmetic
	OpAddition
	OpSubstraction
	OpMultiplication
	OpDivision
	OpRemainder

	// Unary
	OpUnaryPlus
	OpUnaryMinus
	OpBNot
	OpLogicalNot

	// Bitwise / shifts
	OpBAnd
	OpBOr
	OpBXor
	OpBShiftLeft
	OpBShiftRight
	OpBShiftURight

	// Comparison
	OpEqualValue
	OpNotEqualValue
	OpEqualValueType
	OpNotEqualValueType
	OpLessThan
	OpGreaterThan
	OpLessOrEqualThan
	OpGreaterOrEqualThan
	OpInstanceof
	OpIn

	// Property access
	OpPropGetter // result, base, key
	OpPropSetter // base, key, value

	// Increments (operate on a named variable or a register)
	OpPreIncr
	OpPreDecr
	OpPostIncr
	OpPostDecr

	// Calls
	OpCallN      // result, callee, arg-count
	OpConstructN // result, callee, arg-count

	// Deletion / typeof
	OpDeleteVar  // result, name
	OpDeleteProp // result, base, key
	OpTypeof

	// Control flow
	OpJmpDown
	OpJmpUp
	OpIsTrueJmpDown
	OpIsTrueJmpUp
	OpIsFalseJmpDown
	OpIsFalseJmpUp
	OpJmpBreakContinue

	// Statement-level constructs
	OpWith     // expr, end-hi, end-lo
	OpForIn    // expr, end-hi, end-lo
	OpTryBlock // end-hi, end-lo
	OpThrow

	// Returns
	OpRet
	OpRetVal

	// Meta: meta-type, data1, data2
	OpMeta
)

var opcodeNames = map[Opcode]string{
	OpRegVarDecl:         "reg_var_decl",
	OpVarDecl:            "var_decl",
	OpFuncDeclN:          "func_decl_n",
	OpFuncExprN:          "func_expr_n",
	OpArrayDecl:          "array_decl",
	OpObjDecl:            "obj_decl",
	OpAssignment:         "assignment",
	OpAddition:           "addition",
	OpSubstraction:       "substraction",
	OpMultiplication:     "multiplication",
	OpDivision:           "division",
	OpRemainder:          "remainder",
	OpUnaryPlus:          "unary_plus",
	OpUnaryMinus:         "unary_minus",
	OpBNot:               "b_not",
	OpLogicalNot:         "logical_not",
	OpBAnd:               "b_and",
	OpBOr:                "b_or",
	OpBXor:               "b_xor",
	OpBShiftLeft:         "b_shift_left",
	OpBShiftRight:        "b_shift_right",
	OpBShiftURight:       "b_shift_uright",
	OpEqualValue:         "equal_value",
	OpNotEqualValue:      "not_equal_value",
	OpEqualValueType:     "equal_value_type",
	OpNotEqualValueType:  "not_equal_value_type",
	OpLessThan:           "less_than",
	OpGreaterThan:        "greater_than",
	OpLessOrEqualThan:    "less_or_equal_than",
	OpGreaterOrEqualThan: "greater_or_equal_than",
	OpInstanceof:         "instanceof",
	OpIn:                 "in",
	OpPropGetter:         "prop_getter",
	OpPropSetter:         "prop_setter",
	OpPreIncr:            "pre_incr",
	OpPreDecr:            "pre_decr",
	OpPostIncr:           "post_incr",
	OpPostDecr:           "post_decr",
	OpCallN:              "call_n",
	OpConstructN:         "construct_n",
	OpDeleteVar:          "delete_var",
	OpDeleteProp:         "delete_prop",
	OpTypeof:             "typeof",
	OpJmpDown:            "jmp_down",
	OpJmpUp:              "jmp_up",
	OpIsTrueJmpDown:      "is_true_jmp_down",
	OpIsTrueJmpUp:        "is_true_jmp_up",
	OpIsFalseJmpDown:     "is_false_jmp_down",
	OpIsFalseJmpUp:       "is_false_jmp_up",
	OpJmpBreakContinue:   "jmp_break_continue",
	OpWith:               "with",
	OpForIn:              "for_in",
	OpTryBlock:           "try_block",
	OpThrow:              "throw_value",
	OpRet:                "ret",
	OpRetVal:             "retval",
	OpMeta:               "meta",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "unknown_op"
}

// MetaType is carried in the first operand slot of OpMeta.
type MetaType Idx

const (
	MetaUndefined MetaType = iota
	MetaThisArg
	MetaVarg
	MetaVargPropData
	MetaVargPropGetter
	MetaVargPropSetter
	MetaEndWith
	MetaFunctionEnd
	MetaCatch
	MetaFinally
	MetaEndTryCatchFinally
	MetaCatchExceptionIdentifier
	MetaCallSiteInfo
	MetaEndForIn
	MetaScopeCodeFlags
)

// ScopeFlags is the payload of a scope-code-flags meta.
type ScopeFlags Idx

const (
	ScopeFlagStrict          ScopeFlags = 1 << 0
	ScopeFlagNotRefArguments ScopeFlags = 1 << 1
	ScopeFlagNotRefEval      ScopeFlags = 1 << 2
	ScopeFlagArgsOnRegisters ScopeFlags = 1 << 3
	ScopeFlagNoLexEnv        ScopeFlags = 1 << 4
)

var metaNames = map[MetaType]string{
	MetaUndefined:                "undefined",
	MetaThisArg:                  "this_arg",
	MetaVarg:                     "varg",
	MetaVargPropData:             "varg_prop_data",
	MetaVargPropGetter:           "varg_prop_getter",
	MetaVargPropSetter:           "varg_prop_setter",
	MetaEndWith:                  "end_with",
	MetaFunctionEnd:              "function_end",
	MetaCatch:                    "catch",
	MetaFinally:                  "finally",
	MetaEndTryCatchFinally:       "end_try_catch_finally",
	MetaCatchExceptionIdentifier: "catch_exception_identifier",
	MetaCallSiteInfo:             "call_site_info",
	MetaEndForIn:                 "end_for_in",
	MetaScopeCodeFlags:           "scope_code_flags",
}

func (m MetaType) String() string {
	if s, ok := metaNames[m]; ok {
		return s
	}
	return "bad_meta"
}

// ValueType is the second operand of OpAssignment: the type tag of
// the assigned value.
type ValueType Idx

const (
	ValueSimple   ValueType = iota // third slot is a SimpleValue constant
	ValueSmallint                  // third slot is the integer itself
	ValueNumber                    // third slot references a number literal
	ValueString                    // third slot references a string literal
	ValueRegexp                    // third slot references a regexp source literal
	ValueVariable                  // third slot is a register or a name literal
)

var valueTypeNames = map[ValueType]string{
	ValueSimple:   "simple",
	ValueSmallint: "smallint",
	ValueNumber:   "number",
	ValueString:   "string",
	ValueRegexp:   "regexp",
	ValueVariable: "variable",
}

func (v ValueType) String() string {
	if s, ok := valueTypeNames[v]; ok {
		return s
	}
	return "bad_value_type"
}

// SimpleValue constants for ValueSimple assignments.
const (
	SimpleUndefined Idx = iota
	SimpleNull
	SimpleFalse
	SimpleTrue
	SimpleArrayHole
)

// CallFlags are carried by a call-site-info meta.
type CallFlags Idx

const (
	CallFlagsNone         CallFlags = 0
	CallFlagsHaveThisArg  CallFlags = 1 << 0
	CallFlagsDirectEval   CallFlags = 1 << 1
)
