package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders seq as an assembly listing:
//
//	    LOAD_CONST 0
//	    GET_ITER
//	L0:
//	    FOR_ITER L1
//
// Labels keep their own names where they have one that is unique and
// valid in a listing; otherwise they are numbered in order of appearance. ParseListing reads
// the same format back.
func Format(seq []Element) string {
	names := labelNames(seq)

	var sb strings.Builder
	for _, el := range seq {
		switch el := el.(type) {
		case *Label:
			sb.WriteString(names[el])
			sb.WriteString(":\n")
		case *Op:
			sb.WriteString("    ")
			sb.WriteString(el.Name)
			switch arg := el.Arg.(type) {
			case *Label:
				sb.WriteString(" ")
				sb.WriteString(names[arg])
			case Imm:
				sb.WriteString(" ")
				sb.WriteString(arg.String())
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func labelNames(seq []Element) map[*Label]string {
	names := make(map[*Label]string)
	used := make(map[string]bool)
	next := 0
	assign := func(l *Label, prefix string) {
		if _, ok := names[l]; ok || l == nil {
			return
		}
		// Names the parser would reject are numbered instead.
		if name := prefix + l.name; isLabelName(l.name) && !used[name] {
			names[l] = name
			used[name] = true
			return
		}
		for {
			name := fmt.Sprintf("%sL%d", prefix, next)
			next++
			if !used[name] {
				names[l] = name
				used[name] = true
				return
			}
		}
	}

	// Defined labels first so that their numbering follows the code.
	for _, el := range seq {
		if l, ok := el.(*Label); ok {
			assign(l, "")
		}
	}
	// Labels referenced but never placed are marked so they stand out.
	for _, el := range seq {
		if op, ok := el.(*Op); ok && op != nil {
			assign(op.Target(), "?")
		}
	}
	return names
}

// ParseListing reads a listing in the format produced by Format. A ';'
// starts a comment that runs to the end of the line. Arguments are decimal
// or 0x-prefixed integers, or label names.
func ParseListing(text string) ([]Element, error) {
	var seq []Element
	labels := make(map[string]*Label)
	defined := make(map[string]bool)
	firstUse := make(map[string]int)

	label := func(name string) *Label {
		l, ok := labels[name]
		if !ok {
			l = NamedLabel(name)
			labels[name] = l
		}
		return l
	}

	for n, line := range strings.Split(text, "\n") {
		lineNo := n + 1
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if name, ok := strings.CutSuffix(line, ":"); ok {
			name = strings.TrimSpace(name)
			if !isLabelName(name) {
				return nil, fmt.Errorf("line %d: invalid label name %q", lineNo, name)
			}
			if defined[name] {
				return nil, fmt.Errorf("line %d: label %s defined twice", lineNo, name)
			}
			defined[name] = true
			seq = append(seq, label(name))
			continue
		}

		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			seq = append(seq, NewOp(fields[0]))
		case 2:
			tok := fields[1]
			if v, err := strconv.ParseInt(tok, 0, 64); err == nil {
				seq = append(seq, NewOpArg(fields[0], int(v)))
				continue
			}
			if !isLabelName(tok) {
				return nil, fmt.Errorf("line %d: argument %q is neither an integer nor a label", lineNo, tok)
			}
			if _, ok := firstUse[tok]; !ok {
				firstUse[tok] = lineNo
			}
			seq = append(seq, NewJump(fields[0], label(tok)))
		default:
			return nil, fmt.Errorf("line %d: expected \"NAME [ARG]\", got %q", lineNo, line)
		}
	}

	undefined, at := "", 0
	for name, lineNo := range firstUse {
		if !defined[name] && (undefined == "" || lineNo < at) {
			undefined, at = name, lineNo
		}
	}
	if undefined != "" {
		return nil, fmt.Errorf("line %d: undefined label %s", at, undefined)
	}
	return seq, nil
}

func isLabelName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
