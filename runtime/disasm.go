package runtime

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Disassemble renders a FuncDef's code as a table: address, opcode
// mnemonic, raw operands, matching the original's "dump_state"-style
// instruction listing (§4.7 "OpCode is the 6-bit operation tag").
func Disassemble(fn *FuncDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s (%d params, %d registers)\n", fn.Name, fn.NParams, fn.NRegs)

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"PC", "OP", "A", "B", "C", "U/S", "line"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for pc, instr := range fn.Code {
		op := instr.Op()
		line := fn.LineForPC(pc)
		row := []string{
			fmt.Sprintf("%04d", pc),
			op.String(),
			fmt.Sprintf("%d", instr.A()),
			"",
			"",
			"",
			fmt.Sprintf("%d", line),
		}
		if usesWideOperand(op) {
			row[4] = ""
			row[5] = fmt.Sprintf("%d", instr.U())
		} else {
			row[4] = operandField(instr.C(), fn)
			row[5] = ""
			row[3] = operandField(instr.B(), fn)
		}
		table.Append(row)
	}
	table.Render()
	return b.String()
}

// usesWideOperand reports whether an opcode reads its B/C fields as the
// combined RU/RS operand rather than two independent registers, per §6.
func usesWideOperand(op OpCode) bool {
	switch op {
	case OpLDC, OpJmp, OpNewArray, OpNewMap, OpClosure:
		return true
	default:
		return false
	}
}

// operandField renders a 9-bit register/constant field, marking
// constant-pool references per §6's K[i] convention.
func operandField(field int, fn *FuncDef) string {
	if field == regConstReserved {
		return "-"
	}
	if isConstOperand(field) {
		idx := constIndex(field)
		if idx < len(fn.Consts) {
			return fmt.Sprintf("K[%d]=%s", idx, fn.Consts[idx].Format())
		}
		return fmt.Sprintf("K[%d]", idx)
	}
	return fmt.Sprintf("R[%d]", field)
}
