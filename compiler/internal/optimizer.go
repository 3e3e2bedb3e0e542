package internal

import "strings"

// The optimizer rewrites a function body with local patterns until none applies:
//
//	psh X; pop X            removed
//	psh X; pop Y            mov Y X, or imm Y X when X is not a register
//	r = ...; ... r = ...    the first write removed when r is not read in between
//	mov A A                 removed
//	mov A B; mov B A        the second move removed
//	jmp .L; .L              the jump removed
//	add/sub SP; add/sub SP  folded into one adjustment
//	.L never referenced     removed
//
// An opaque instruction may read or write any register or stack slot, so no window
// contains one, and a basic block ends at it.

type peepholeRule func(body []Instruction) ([]Instruction, bool)

type Optimizer struct {
	rules []peepholeRule
	// opaqueText holds the Asm Exec payloads of the whole program. A label named there
	// is kept even when no instruction refers to it.
	opaqueText []string
}

func NewOptimizer() *Optimizer {
	optimizer := &Optimizer{}
	optimizer.rules = []peepholeRule{
		pushFollowedByPopRule,
		voidMoveRule,
		repeatedMoveRule,
		jumpNextRule,
		repeatedStackAdjustRule,
		overwrittenResultRule,
		optimizer.unusedLabelRule,
	}
	return optimizer
}

// OptimizeProgram optimizes every function of program.
func (optimizer *Optimizer) OptimizeProgram(program *Program) {
	optimizer.opaqueText = nil
	for _, fn := range program.Functions {
		for _, inst := range fn.Body {
			if inst.Op == OpaqueOp {
				optimizer.opaqueText = append(optimizer.opaqueText, inst.Text)
			}
		}
	}
	for _, fn := range program.Functions {
		optimizer.Optimize(fn)
	}
}

// Optimize runs the rules on fn.Body until a fixpoint, so a second run changes nothing.
func (optimizer *Optimizer) Optimize(fn *Function) {
	for _, inst := range fn.Body {
		if inst.Op == OpaqueOp && !optimizer.hasOpaqueText(inst.Text) {
			optimizer.opaqueText = append(optimizer.opaqueText, inst.Text)
		}
	}
	body := fn.Body
	for changed := true; changed; {
		changed = false
		for _, rule := range optimizer.rules {
			var applied bool
			if body, applied = rule(body); applied {
				changed = true
			}
		}
	}
	fn.Body = body
}

func (optimizer *Optimizer) hasOpaqueText(text string) bool {
	for _, known := range optimizer.opaqueText {
		if known == text {
			return true
		}
	}
	return false
}

// rewritePairs calls rewrite on each adjacent pair. rewrite returns the replacement of the
// pair and whether it applies.
func rewritePairs(body []Instruction, rewrite func(first, second Instruction) ([]Instruction, bool)) ([]Instruction, bool) {
	changed := false
	out := make([]Instruction, 0, len(body))
	for i := 0; i < len(body); i++ {
		if i+1 < len(body) {
			if replacement, ok := rewrite(body[i], body[i+1]); ok {
				out = append(out, replacement...)
				changed = true
				i++
				continue
			}
		}
		out = append(out, body[i])
	}
	return out, changed
}

func pushFollowedByPopRule(body []Instruction) ([]Instruction, bool) {
	return rewritePairs(body, func(push, pop Instruction) ([]Instruction, bool) {
		if push.Op != PshOp || pop.Op != PopOp {
			return nil, false
		}
		source, target := push.Operands[0], pop.Operands[0]
		if source.IsReg(SP) || target.IsReg(SP) {
			return nil, false
		}
		switch {
		case source == target:
			return nil, true
		case target.IsReg(R0):
			return nil, true
		case source.Kind == RegisterOperand:
			return []Instruction{Inst(MovOp, target, source)}, true
		}
		return []Instruction{Inst(ImmOp, target, source)}, true
	})
}

func voidMoveRule(body []Instruction) ([]Instruction, bool) {
	changed := false
	out := body[:0:0]
	for _, inst := range body {
		if inst.Op == MovOp && inst.Operands[0] == inst.Operands[1] {
			changed = true
			continue
		}
		out = append(out, inst)
	}
	return out, changed
}

func repeatedMoveRule(body []Instruction) ([]Instruction, bool) {
	return rewritePairs(body, func(first, second Instruction) ([]Instruction, bool) {
		if first.Op != MovOp || second.Op != MovOp {
			return nil, false
		}
		if first.Operands[0] == second.Operands[1] && first.Operands[1] == second.Operands[0] {
			return []Instruction{first}, true
		}
		return nil, false
	})
}

func jumpNextRule(body []Instruction) ([]Instruction, bool) {
	return rewritePairs(body, func(jump, label Instruction) ([]Instruction, bool) {
		if jump.Op != JmpOp || label.Op != LabelOp || jump.Operands[0] != label.Operands[0] {
			return nil, false
		}
		return []Instruction{label}, true
	})
}

// stackAdjust returns the words an `add SP SP n` or `sub SP SP n` releases.
func stackAdjust(inst Instruction) (int64, bool) {
	if (inst.Op != AddOp && inst.Op != SubOp) || !inst.Operands[0].IsReg(SP) || !inst.Operands[1].IsReg(SP) ||
		inst.Operands[2].Kind != ImmediateOperand {
		return 0, false
	}
	if inst.Op == SubOp {
		return -inst.Operands[2].Value, true
	}
	return inst.Operands[2].Value, true
}

func makeStackAdjust(words int64) []Instruction {
	switch {
	case words > 0:
		return []Instruction{Inst(AddOp, Reg(SP), Reg(SP), Imm(words))}
	case words < 0:
		return []Instruction{Inst(SubOp, Reg(SP), Reg(SP), Imm(-words))}
	}
	return nil
}

func repeatedStackAdjustRule(body []Instruction) ([]Instruction, bool) {
	changed := false
	out := body[:0:0]
	for _, inst := range body {
		if words, ok := stackAdjust(inst); ok && words == 0 {
			changed = true
			continue
		}
		out = append(out, inst)
	}
	out, folded := rewritePairs(out, func(first, second Instruction) ([]Instruction, bool) {
		a, ok := stackAdjust(first)
		if !ok {
			return nil, false
		}
		b, ok := stackAdjust(second)
		if !ok {
			return nil, false
		}
		return makeStackAdjust(a + b), true
	})
	return out, changed || folded
}

// endsBlock reports whether inst ends a basic block for the register analysis.
func endsBlock(inst Instruction) bool {
	switch inst.Op {
	case LabelOp, JmpOp, BrzOp, BnzOp, CalOp, RetOp, HltOp, OpaqueOp:
		return true
	}
	return false
}

// overwrittenResultRule removes a pure write to a register that is written again in the
// same block before any read. SP is never considered.
func overwrittenResultRule(body []Instruction) ([]Instruction, bool) {
	dead := make([]bool, len(body))
	changed := false
	for i, inst := range body {
		if !inst.Op.isPure() {
			continue
		}
		reg, ok := inst.writes()
		if !ok || reg == SP {
			continue
		}
		for _, next := range body[i+1:] {
			if endsBlock(next) || next.reads(reg) {
				break
			}
			if written, ok := next.writes(); ok && written == reg {
				dead[i], changed = true, true
				break
			}
		}
	}
	if !changed {
		return body, false
	}
	out := make([]Instruction, 0, len(body))
	for i, inst := range body {
		if !dead[i] {
			out = append(out, inst)
		}
	}
	return out, true
}

func (optimizer *Optimizer) unusedLabelRule(body []Instruction) ([]Instruction, bool) {
	used := map[string]bool{}
	for _, inst := range body {
		if inst.Op == LabelOp {
			continue
		}
		for _, operand := range inst.Operands {
			if operand.Kind == LabelOperand {
				used[operand.Label] = true
			}
		}
	}
	changed := false
	out := body[:0:0]
	for _, inst := range body {
		if inst.Op == LabelOp && !used[inst.Operands[0].Label] && !optimizer.namedInOpaque(inst.Operands[0].Label) {
			changed = true
			continue
		}
		out = append(out, inst)
	}
	return out, changed
}

func (optimizer *Optimizer) namedInOpaque(label string) bool {
	for _, text := range optimizer.opaqueText {
		if strings.Contains(text, "."+label) {
			return true
		}
	}
	return false
}
