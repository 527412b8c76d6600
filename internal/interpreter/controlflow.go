package interpreter

// ControlFlowKind is the non-local-exit signal produced by a statement
// evaluation (§4.5): besides falling through normally, a statement can
// break/continue its nearest loop, exit the program, or return from the
// nearest action activation.
type ControlFlowKind int

const (
	FlowNone ControlFlowKind = iota
	FlowBreak
	FlowContinue
	FlowExit
	FlowReturn
)

// ControlFlow is returned alongside a Value from every statement evaluator;
// loops consume Break/Continue, action activations consume Return, and Exit
// propagates out of blocks and loops to the top-level Run. An action
// activation also stops Exit: an exit inside an action body ends only that
// activation, and the caller carries on.
type ControlFlow struct {
	Kind  ControlFlowKind
	Value Value // meaningful only for FlowReturn and FlowExit
}

var flowNone = ControlFlow{Kind: FlowNone}
