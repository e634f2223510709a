package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseError is returned when a stream line is not a well-formed JSON
// object. Callers log it and continue; a bad line never stops a stream.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse event line: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts one complete line of `gerrit stream-events` output into
// an Event. Every top-level field of the JSON object is retained: typed
// fields cover what the engine and shipped actions need, and the full
// object lands in Raw for anything else.
func Parse(line string) (*Event, error) {
	data := []byte(strings.TrimSpace(line))

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}

	ev.ID = uuid.NewString()
	ev.Received = time.Now()
	ev.Raw = raw
	return &ev, nil
}
