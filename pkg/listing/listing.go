// Package listing renders generated assembly for terminals.
package listing

import (
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora"

	"stackcc/pkg/asm"
)

// Format returns lines as a numbered listing. Labels, directives, mnemonics
// and operands get their own colours when au has colours enabled.
func Format(lines []string, au aurora.Aurora) string {
	var sb strings.Builder
	width := len(fmt.Sprint(len(lines)))
	for i, l := range lines {
		fmt.Fprintf(&sb, "%s  %s\n", au.Gray(12, fmt.Sprintf("%*d", width, i+1)), Line(l, au))
	}
	return sb.String()
}

// Line colours a single assembly line.
func Line(l string, au aurora.Aurora) string {
	code, comment := l, ""
	if idx := strings.IndexByte(l, '#'); idx >= 0 {
		code, comment = l[:idx], l[idx:]
	}

	trimmed := strings.TrimSpace(code)
	indent := code[:len(code)-len(strings.TrimLeft(code, " \t"))]
	trailing := code[len(strings.TrimRight(code, " \t")):]

	var out string
	switch {
	case trimmed == "":
		out = code
	case strings.HasSuffix(trimmed, ":"):
		out = indent + au.Cyan(trimmed).String()
	case strings.HasPrefix(trimmed, ".") && !strings.HasPrefix(trimmed, ".L"):
		out = indent + au.Magenta(trimmed).String()
	default:
		out = indent + instruction(trimmed, au)
	}

	if comment != "" {
		if trimmed != "" {
			out += trailing
		}
		out += au.Green(comment).String()
	}
	return out
}

func instruction(text string, au aurora.Aurora) string {
	op, rest := text, ""
	if idx := strings.IndexAny(text, " \t"); idx >= 0 {
		op, rest = text[:idx], strings.TrimSpace(text[idx:])
	}

	mnemonic := au.Blue(op)
	if !asm.IsInstruction(op) {
		mnemonic = au.Red(op)
	}
	if rest == "" {
		return mnemonic.String()
	}

	args := strings.Split(rest, ",")
	for i, a := range args {
		a = strings.TrimSpace(a)
		switch {
		case strings.HasPrefix(a, "["):
			args[i] = au.Yellow(a).String()
		case strings.HasPrefix(a, ".L"):
			args[i] = au.Cyan(a).String()
		case len(a) > 0 && (a[0] == '-' || (a[0] >= '0' && a[0] <= '9')):
			args[i] = au.Red(a).String()
		default:
			args[i] = a
		}
	}
	return mnemonic.String() + " " + strings.Join(args, ", ")
}
