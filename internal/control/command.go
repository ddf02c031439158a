// Package control drives a flock with text commands of the form
//
//	method key:value key:value
//
// Commands are handled by a goakt actor so that every driver, local window
// or remote socket, goes through one mailbox.
package control

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Methods understood by the controller.
const (
	MethodResetFlock        = "resetFlock"
	MethodRunSimulation     = "runSimulation"
	MethodPauseSimulation   = "pauseSimulation"
	MethodSetAttractor      = "setAttractor"
	MethodResize            = "resize"
	MethodGetSimulationInfo = "getSimulationInfo"
)

// Reply methods.
const (
	ReplyOK                = "ok"
	ReplyError             = "error"
	ReplySetSimulationInfo = "setSimulationInfo"
)

var (
	ErrEmptyCommand  = errors.New("control: empty command")
	ErrUnknownMethod = errors.New("control: unknown method")
	ErrMissingParam  = errors.New("control: missing parameter")
	ErrOutOfRange    = errors.New("control: value out of range")
)

// Command is one parsed command or reply line.
type Command struct {
	Method string
	Params map[string]string
}

// NewCommand returns a command without parameters.
func NewCommand(method string) Command {
	return Command{Method: method, Params: map[string]string{}}
}

// With sets a parameter and returns the command.
func (c Command) With(key, value string) Command {
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	c.Params[key] = value
	return c
}

// ParseCommand splits line into a method and its key:value parameters.
// Values holding spaces are double quoted, with Go escapes.
func ParseCommand(line string) (Command, error) {
	fields, err := splitFields(line)
	if err != nil {
		return Command{}, err
	}
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	cmd := NewCommand(fields[0])
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, ":")
		if !ok || key == "" {
			return Command{}, fmt.Errorf("control: malformed parameter %q", field)
		}
		if strings.HasPrefix(value, `"`) {
			if value, err = strconv.Unquote(value); err != nil {
				return Command{}, fmt.Errorf("control: malformed value in %q: %w", field, err)
			}
		}
		cmd.Params[key] = value
	}
	return cmd, nil
}

// splitFields splits on white space outside double quotes.
func splitFields(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}

	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && unicode.IsSpace(r):
			flush()
			continue
		}
		current.WriteRune(r)
	}
	if quoted {
		return nil, fmt.Errorf("control: unterminated quote in %q", line)
	}
	flush()
	return fields, nil
}

// String formats the command back into a line, parameters sorted by key.
func (c Command) String() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(c.Method)
	for _, k := range keys {
		v := c.Params[k]
		if v == "" || strings.ContainsAny(v, " \t\n\"\\") {
			v = strconv.Quote(v)
		}
		b.WriteString(" " + k + ":" + v)
	}
	return b.String()
}

// Has reports whether key is set.
func (c Command) Has(key string) bool {
	_, ok := c.Params[key]
	return ok
}

// Get returns the raw value of key.
func (c Command) Get(key string) (string, error) {
	v, ok := c.Params[key]
	if !ok {
		return "", fmt.Errorf("%w %q in %s", ErrMissingParam, key, c.Method)
	}
	return v, nil
}

// Float parses key as a finite number.
func (c Command) Float(key string) (float64, error) {
	s, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("control: %s is not a number: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be finite, got %s", ErrOutOfRange, key, s)
	}
	return v, nil
}

func (c Command) Int(key string) (int, error) {
	s, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("control: %s is not an integer: %w", key, err)
	}
	return v, nil
}

// OK is the reply to a command that succeeded.
func OK(method string) Command {
	return NewCommand(ReplyOK).With("method", method)
}

// Error is the reply to a command that failed.
func Error(err error) Command {
	return NewCommand(ReplyError).With("message", err.Error())
}
