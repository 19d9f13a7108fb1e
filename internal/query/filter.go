package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidFilter is wrapped by every ParseFilter failure.
var ErrInvalidFilter = errors.New("invalid filter")

// operators maps filter keywords to SQL comparison operators.
var operators = map[string]string{
	"eq": "=",
	"ne": "!=",
	"gt": ">",
	"lt": "<",
	"ge": ">=",
	"le": "<=",
}

// Condition is one column comparison with a bound value. Column and
// Operator come from fixed tables, never from user text.
type Condition struct {
	Column   string
	Operator string
	Value    any
}

// ParseFilter parses expressions of the form
//
//	field op "value" [and field op "value" ...]
//
// where op is one of eq, ne, gt, lt, ge, le (any case) and field is a catalog
// name. Values may be double- or single-quoted; a doubled quote escapes
// itself. An empty expression yields no conditions.
func ParseFilter(expr string) ([]Condition, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	var conds []Condition
	for i := 0; i < len(tokens); {
		if len(conds) > 0 {
			if !tokens[i].isWord("and") {
				return nil, invalid("expected 'and' at position %d, got %q", tokens[i].pos, tokens[i].text)
			}
			i++
		}
		if i+3 > len(tokens) {
			return nil, invalid("incomplete comparison at end of filter")
		}
		cond, err := comparison(tokens[i], tokens[i+1], tokens[i+2])
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
		i += 3
	}
	return conds, nil
}

func comparison(fieldTok, opTok, valTok filterToken) (Condition, error) {
	if fieldTok.quoted {
		return Condition{}, invalid("expected field name at position %d", fieldTok.pos)
	}
	field, ok := Lookup(fieldTok.text)
	if !ok {
		return Condition{}, invalid("unknown field %q", fieldTok.text)
	}
	op, ok := operators[strings.ToLower(opTok.text)]
	if opTok.quoted || !ok {
		return Condition{}, invalid("unknown operator %q at position %d", opTok.text, opTok.pos)
	}
	val, err := convertValue(field, valTok.text)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Column: field.Column, Operator: op, Value: val}, nil
}

// convertValue binds booleans as 0/1 and numbers as integers, matching the
// stored representation.
func convertValue(f Field, raw string) (any, error) {
	switch f.Type {
	case "boolean":
		switch strings.ToLower(raw) {
		case "true", "1":
			return 1, nil
		case "false", "0":
			return 0, nil
		}
		return nil, invalid("field %q expects true or false, got %q", f.Name, raw)
	case "number":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, invalid("field %q expects an integer, got %q", f.Name, raw)
		}
		return n, nil
	default:
		v, err := SanitizeValue(raw)
		if err != nil {
			return nil, invalid("field %q: %v", f.Name, err)
		}
		return v, nil
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}

type filterToken struct {
	text   string
	quoted bool
	pos    int
}

func (t filterToken) isWord(w string) bool {
	return !t.quoted && strings.EqualFold(t.text, w)
}

func tokenize(input string) ([]filterToken, error) {
	var tokens []filterToken
	i, n := 0, len(input)

	for i < n {
		ch := input[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}

		if ch == '"' || ch == '\'' {
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if input[i] == ch {
					if i+1 < n && input[i+1] == ch {
						sb.WriteByte(ch)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, invalid("unterminated string starting at position %d", start)
			}
			tokens = append(tokens, filterToken{text: sb.String(), quoted: true, pos: start})
			continue
		}

		if isWordByte(ch) {
			start := i
			for i < n && isWordByte(input[i]) {
				i++
			}
			tokens = append(tokens, filterToken{text: input[start:i], pos: start})
			continue
		}

		return nil, invalid("unexpected character %q at position %d", ch, i)
	}
	return tokens, nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
