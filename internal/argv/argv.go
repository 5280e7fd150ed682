// Package argv splits command lines into arguments the way a POSIX shell
// does, without expansion.
package argv

import (
	"errors"
	"strings"
)

// ErrUnterminated is returned for a line ending inside a quote or after a
// lone backslash.
var ErrUnterminated = errors.New("unterminated quote or escape")

// Token is one argument and where it starts in the line, in bytes.
type Token struct {
	Text   string
	Offset int
	Quoted bool
}

// Tokenize splits line into tokens. Unquoted whitespace separates tokens.
// Single quotes keep their contents literally. Double quotes keep their
// contents except for backslash before $, `, " or \. An unquoted backslash
// escapes the next character. A # at the start of a token begins a comment
// running to the end of the line.
//
// On ErrUnterminated the tokens read so far are returned, the last one
// holding the partial text.
func Tokenize(line string) ([]Token, error) {
	toks, _, err := tokenize(line)
	return toks, err
}

// tokenize also reports whether the last token runs to the end of line.
func tokenize(line string) (out []Token, open bool, err error) {
	var (
		buf    strings.Builder
		cur    *Token
		quote  rune
		escape bool
		escAt  int
	)
	begin := func(offset int) {
		if cur == nil {
			cur = &Token{Offset: offset}
		}
	}
	end := func() {
		if cur != nil {
			cur.Text = buf.String()
			out = append(out, *cur)
			buf.Reset()
			cur = nil
		}
	}

	for i, r := range line {
		switch {
		case escape:
			escape = false
			if quote == '"' && !strings.ContainsRune("$`\"\\\n", r) {
				buf.WriteByte('\\')
			}
			if r != '\n' {
				begin(escAt)
				buf.WriteRune(r)
			}
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				buf.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escape = true
			default:
				buf.WriteRune(r)
			}
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			end()
		case r == '#' && cur == nil:
			return out, false, nil
		case r == '\'' || r == '"':
			begin(i)
			cur.Quoted = true
			quote = r
		case r == '\\':
			escape = true
			escAt = i
		default:
			begin(i)
			buf.WriteRune(r)
		}
	}

	if cur != nil {
		open = true
		cur.Text = buf.String()
		out = append(out, *cur)
	}
	if quote != 0 || escape {
		return out, open, ErrUnterminated
	}
	return out, open, nil
}

// Split returns the arguments of line.
func Split(line string) ([]string, error) {
	toks, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	args := make([]string, len(toks))
	for i, t := range toks {
		args[i] = t.Text
	}
	return args, nil
}

// BeforeCursor splits the text before the cursor into the completed
// arguments and the argument being typed, which is empty after whitespace.
func BeforeCursor(s string) (completed []string, current Token) {
	toks, open, _ := tokenize(s)
	if open {
		current = toks[len(toks)-1]
		toks = toks[:len(toks)-1]
	} else {
		current = Token{Offset: len(s)}
	}
	for _, t := range toks {
		completed = append(completed, t.Text)
	}
	return completed, current
}
