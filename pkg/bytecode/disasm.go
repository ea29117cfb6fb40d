package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; subpy bytecode v%d\n", WireVersion))
	sb.WriteString(fmt.Sprintf("; Instructions: %d\n", len(p.code)))
	if p.globals > 0 {
		sb.WriteString(fmt.Sprintf("; Globals: %d slots\n", p.globals))
	}

	// Functions
	labels := make(map[int]string, len(p.entries))
	if len(p.entries) > 0 {
		sb.WriteString("; Functions:\n")
		for _, e := range p.entries {
			sb.WriteString(fmt.Sprintf(";   %-16s @%04d args=%d locals=%d\n", e.Name, e.Offset, e.Args, e.Locals))
			labels[e.Offset] = e.Name
		}
	}
	sb.WriteString("\n")

	// Code section
	sb.WriteString("; Code:\n")
	lastLine := 0
	for i, in := range p.code {
		if label, ok := labels[i]; ok {
			sb.WriteString(fmt.Sprintf("%s:\n", label))
		}
		text := in.String()
		if in.Line > 0 && in.Line != lastLine {
			sb.WriteString(fmt.Sprintf("%04d  %-30s ; line %d\n", i, text, in.Line))
			lastLine = in.Line
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", i, text))
		}
	}

	return sb.String()
}
