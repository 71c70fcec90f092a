package autograd

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilValue is returned when a terminal or built expression is nil.
	ErrNilValue = errors.New("nil value")
	// ErrCycleFound is returned when parent links loop back on themselves.
	ErrCycleFound = errors.New("graph contains a cycle")
)

// GraphError reports a malformed computation graph.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func cycleError(path []*Value) error {
	names := make([]string, 0, len(path))
	for _, v := range path {
		names = append(names, v.name())
	}
	msg := ""
	if len(names) > 0 {
		msg = strings.Join(names, " -> ")
	}
	return &GraphError{Kind: ErrCycleFound, Msg: msg}
}
