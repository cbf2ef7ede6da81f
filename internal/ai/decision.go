package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/v0xg/pagepilot/internal/action"
)

var (
	// ErrEmptyResponse is returned when a provider reply has no text part.
	ErrEmptyResponse = errors.New("empty response from provider")
	// ErrUndecodableResponse is returned when no JSON object can be recovered
	// from a provider reply.
	ErrUndecodableResponse = errors.New("undecodable provider response")
)

// Decision is the normalized output of one model call
type Decision struct {
	Thinking string
	Action   string
	// Raw is the extracted reply text, kept for the transcript.
	Raw string
}

// fenceRegex extracts the body of a markdown code block. \x60 is a backtick.
var fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// ParseDecision recovers {thinking, action} from reply text that may be bare
// JSON, fenced JSON or JSON surrounded by prose. The substring between the
// first '{' and the last '}' is tried first, then the body of a fenced block.
// Missing fields default to "".
func ParseDecision(text string) (*Decision, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	var firstErr error
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		d, err := decodeDecision(text[start : end+1])
		if err == nil {
			d.Raw = text
			return d, nil
		}
		firstErr = err
	}

	if m := fenceRegex.FindStringSubmatch(text); len(m) > 1 {
		d, err := decodeDecision(m[1])
		if err == nil {
			d.Raw = text
			return d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = errors.New("no JSON object found")
	}
	return nil, fmt.Errorf("%w: %v (response: %s)", ErrUndecodableResponse, firstErr, truncateString(text, 500))
}

type decisionPayload struct {
	Thinking json.RawMessage `json:"thinking"`
	Action   json.RawMessage `json:"action"`
}

func decodeDecision(s string) (*Decision, error) {
	var p decisionPayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	return &Decision{
		Thinking: rawString(p.Thinking),
		Action:   actionString(p.Action),
	}, nil
}

// actionString accepts either "Verb(args)" or {"action": ..., "parameters": ...}.
func actionString(raw json.RawMessage) string {
	var cmd struct {
		Action     string `json:"action"`
		Parameters any    `json:"parameters"`
	}
	if err := json.Unmarshal(raw, &cmd); err == nil && cmd.Action != "" {
		return action.Command{Action: cmd.Action, Parameters: parameterText(cmd.Parameters)}.String()
	}
	return rawString(raw)
}

func parameterText(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	case []any:
		parts := make([]string, 0, len(p))
		for _, item := range p {
			parts = append(parts, parameterText(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(p)
	}
}

// rawString decodes a JSON string, falling back to the literal JSON text for
// other value types and "" for null or absent values.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
