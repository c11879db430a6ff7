package pipeline

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

const (
	snippetImport = "import torchio as tio"
	snippetOpen   = "transform = tio.Compose(["
	snippetClose  = "])"
)

// Snippet renders cfg as torchio source that rebuilds the pipeline
func Snippet(cfg Config) string {
	lines := []string{snippetImport, "", snippetOpen}
	for _, spec := range cfg.Transforms {
		args := spec.Params.Args()
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.Key + "=" + arg.Value.Repr()
		}
		lines = append(lines, fmt.Sprintf("    tio.%s(%s),", spec.Name(), strings.Join(parts, ", ")))
	}
	lines = append(lines, snippetClose)
	return strings.Join(lines, "\n")
}

// ParseSnippet reads the transform list back out of a snippet produced by
// Snippet. It understands the literal subset Snippet emits: integers,
// floats, quoted strings, tuples and lists.
func ParseSnippet(src string) ([]Spec, error) {
	start := strings.Index(src, "tio.Compose(")
	if start < 0 {
		return nil, fmt.Errorf("snippet has no tio.Compose call")
	}
	p := &snippetParser{src: src, pos: start + len("tio.Compose(")}

	if err := p.expect('['); err != nil {
		return nil, err
	}
	specs := []Spec{}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			break
		}
		spec, err := p.call()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, p.errorf("expected ',' or ']'")
		}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return specs, nil
}

type snippetParser struct {
	src string
	pos int
}

func (p *snippetParser) errorf(format string, args ...any) error {
	return fmt.Errorf("snippet offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *snippetParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// skipSpace skips whitespace and # comments
func (p *snippetParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		case unicode.IsSpace(rune(c)):
			p.pos++
		default:
			return
		}
	}
}

func (p *snippetParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *snippetParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// call parses tio.Name(key=value, ...)
func (p *snippetParser) call() (Spec, error) {
	if mod := p.ident(); mod != "tio" {
		return Spec{}, p.errorf("expected tio.<Transform>, got %q", mod)
	}
	if err := p.expect('.'); err != nil {
		return Spec{}, err
	}
	name := p.ident()
	if err := p.expect('('); err != nil {
		return Spec{}, err
	}

	args := map[string]Value{}
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			break
		}
		key := p.ident()
		if key == "" {
			return Spec{}, p.errorf("expected keyword argument")
		}
		if err := p.expect('='); err != nil {
			return Spec{}, err
		}
		v, err := p.value()
		if err != nil {
			return Spec{}, err
		}
		if _, dup := args[key]; dup {
			return Spec{}, p.errorf("duplicate argument %q", key)
		}
		args[key] = v

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
		default:
			return Spec{}, p.errorf("expected ',' or ')'")
		}
	}
	spec, err := specFromArgs(name, args)
	if err != nil {
		return Spec{}, p.errorf("%v", err)
	}
	return spec, nil
}

func (p *snippetParser) value() (Value, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '(' || c == '[':
		return p.sequence(c)
	case c == '\'' || c == '"':
		return p.str(c)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case c == 'i' || c == 'n':
		word := p.ident()
		switch word {
		case "inf":
			return Float(math.Inf(1)), nil
		case "nan":
			return Float(math.NaN()), nil
		}
		return Value{}, p.errorf("unexpected name %q", word)
	default:
		return Value{}, p.errorf("unexpected character %q", c)
	}
}

func (p *snippetParser) sequence(open byte) (Value, error) {
	closer := byte(')')
	if open == '[' {
		closer = ']'
	}
	p.pos++
	items := []Value{}
	for {
		p.skipSpace()
		if p.peek() == closer {
			p.pos++
			return Tuple(items...), nil
		}
		v, err := p.value()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
		default:
			return Value{}, p.errorf("expected ',' or %q", closer)
		}
	}
}

func (p *snippetParser) str(quote byte) (Value, error) {
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case quote:
			return String(sb.String()), nil
		case '\\':
			if p.pos >= len(p.src) {
				return Value{}, p.errorf("unterminated escape")
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(e)
			}
		case '\n':
			return Value{}, p.errorf("newline in string literal")
		default:
			sb.WriteByte(c)
		}
	}
	return Value{}, p.errorf("unterminated string literal")
}

func (p *snippetParser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	if strings.HasPrefix(p.src[p.pos:], "inf") {
		p.pos += len("inf")
		if p.src[start] == '-' {
			return Float(math.Inf(-1)), nil
		}
		return Float(math.Inf(1)), nil
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		isExpSign := (c == '-' || c == '+') && p.pos > start && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '_' || isExpSign {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(strings.TrimPrefix(p.src[start:p.pos], "+"), "_", "")
	v, ok := numberValue(text)
	if !ok {
		return Value{}, p.errorf("malformed number %q", p.src[start:p.pos])
	}
	return v, nil
}
