// Package jsonextract pulls a JSON object out of free text such as an LLM reply
// or an upstream response body wrapped in log noise or markdown fences.
package jsonextract

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoObject is returned when the text contains no well-formed JSON object.
var ErrNoObject = errors.New("no JSON object found")

// Object returns the first balanced {...} substring of text that is valid JSON.
// Braces inside string literals are ignored. Candidates are ordered by where they
// start, so an invalid or unclosed object does not hide a valid one nested in it
// or following it. The text is scanned once.
func Object(text string) (string, error) {
	var (
		open     []int // starts of unclosed objects
		starts   []int // every start, in order
		ends     = map[int]int{}
		checked  int // starts[:checked] already failed
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(open) > 0 {
				inString = true
			}
		case '{':
			open = append(open, i)
			starts = append(starts, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			begin := open[len(open)-1]
			open = open[:len(open)-1]
			ends[begin] = i
			if len(open) > 0 {
				continue
			}
			// Every start up to here is now closed.
			if obj, ok := firstValid(text, starts[checked:], ends); ok {
				return obj, nil
			}
			checked = len(starts)
		}
	}
	if obj, ok := firstValid(text, starts[checked:], ends); ok {
		return obj, nil
	}
	return "", ErrNoObject
}

func firstValid(text string, starts []int, ends map[int]int) (string, bool) {
	for _, s := range starts {
		e, ok := ends[s]
		if !ok {
			continue
		}
		if candidate := text[s : e+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// Decode extracts the first JSON object from text and unmarshals it into v.
func Decode(text string, v any) error {
	obj, err := Object(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode extracted object: %w", err)
	}
	return nil
}
