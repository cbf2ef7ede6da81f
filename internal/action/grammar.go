package action

import (
	"strconv"
	"strings"

	"github.com/v0xg/pagepilot/internal/crawler"
)

// Command is the structured form of an action: a verb plus its raw,
// comma-separated parameter text.
type Command struct {
	Action     string `json:"action"`
	Parameters string `json:"parameters"`
}

// String renders the command in call form, e.g. Type(2, hello).
func (c Command) String() string {
	return strings.TrimSpace(c.Action) + "(" + c.Parameters + ")"
}

var verbsByName = func() map[string]Verb {
	m := make(map[string]Verb, len(Verbs))
	for _, v := range Verbs {
		m[strings.ToLower(string(v))] = v
	}
	return m
}()

// Parse reads free text of the shape Verb(arg1, arg2, ...) and validates any
// element id against obs. It reports false for unknown verbs, malformed or
// missing arguments and out-of-range element ids; callers treat that as a
// skipped step, never as an error.
func Parse(raw string, obs *crawler.Observation) (Action, bool) {
	return parseCommand(splitCall(raw), obs)
}

// splitCall breaks Verb(params) into its structured form. A missing closing
// parenthesis is tolerated.
func splitCall(raw string) Command {
	raw = strings.TrimSpace(raw)
	open := strings.IndexByte(raw, '(')
	if open < 0 {
		return Command{Action: raw}
	}
	params := raw[open+1:]
	if end := strings.LastIndexByte(params, ')'); end >= 0 && strings.TrimSpace(params[end+1:]) == "" {
		params = params[:end]
	}
	return Command{Action: raw[:open], Parameters: params}
}

func parseCommand(cmd Command, obs *crawler.Observation) (Action, bool) {
	params := cmd.Parameters
	verb, ok := verbsByName[strings.ToLower(strings.TrimSpace(cmd.Action))]
	if !ok {
		return nil, false
	}

	switch verb {
	case VerbClick:
		id, ok := elementID(params, obs)
		if !ok {
			return nil, false
		}
		return Click{ElementID: id}, true

	case VerbHover:
		id, ok := elementID(params, obs)
		if !ok {
			return nil, false
		}
		return Hover{ElementID: id}, true

	case VerbType:
		idPart, text, found := strings.Cut(params, ",")
		if !found {
			return nil, false
		}
		id, ok := elementID(idPart, obs)
		if !ok {
			return nil, false
		}
		return Type{ElementID: id, Text: unquote(text)}, true

	case VerbScroll:
		if strings.EqualFold(unquote(params), string(Up)) {
			return Scroll{Direction: Up}, true
		}
		return Scroll{Direction: Down}, true

	case VerbSwitchTab:
		n, err := strconv.Atoi(unquote(params))
		if err != nil {
			return nil, false
		}
		return SwitchTab{TabIndex: n}, true

	case VerbGoTo:
		url := unquote(params)
		if url == "" {
			return nil, false
		}
		return GoTo{URL: url}, true

	case VerbDone:
		return Done{Summary: unquote(params)}, true

	case VerbGoBack:
		return GoBack{}, true
	case VerbGoForward:
		return GoForward{}, true
	case VerbRefresh:
		return Refresh{}, true
	case VerbCloseTab:
		return CloseTab{}, true
	case VerbNewTab:
		return NewTab{}, true
	}
	return nil, false
}

// elementID parses an element index and checks it against obs.
func elementID(s string, obs *crawler.Observation) (int, bool) {
	id, err := strconv.Atoi(unquote(s))
	if err != nil || id < 0 {
		return 0, false
	}
	if obs == nil || id >= len(obs.Elements) {
		return 0, false
	}
	return id, true
}

// unquote trims whitespace and strips one matching pair of surrounding
// quotes. Quotes inside the value, or unpaired at its ends, are kept.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
