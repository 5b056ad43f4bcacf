// Package outputparser implements the Output Parser (C5): a tolerant,
// line-oriented reader of ReAct-formatted model output, grounded on
// parseReAct in the reference agent engine's line-by-line header scan, but
// extended with hallucinated-Observation stripping, Final-Answer-wins
// semantics, and a legacy XML-ish tool-call fallback.
package outputparser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Result is the parsed shape of one model turn.
type Result struct {
	Thought                 string
	Action                  string
	ActionInput             map[string]any
	ActionInputRaw          string
	ActionInputError        bool
	FinalAnswer             string
	HasAction               bool
	HasFinalAnswer          bool
	HallucinatedObservation bool
	ParseFailed             bool
}

const (
	prefixThought      = "Thought:"
	prefixAction       = "Action:"
	prefixActionInput  = "Action Input:"
	prefixFinalAnswer  = "Final Answer:"
	prefixObservation  = "Observation:"
)

// legacyFunctionTag matches the <function>{...}</function> fallback format.
var legacyFunctionTag = regexp.MustCompile(`(?s)<function>\s*(\{.*?\})\s*</function>`)

// legacyNamedTag matches the malformed <toolName>{...}</function> variant,
// where the opening tag names the tool directly instead of "function".
var legacyNamedTag = regexp.MustCompile(`(?s)<([\w.\-]+)>\s*(\{.*?\})\s*</function>`)

// Parse reads text line by line, recognizing the four ReAct headers.
// Recognition is case-sensitive and line-leading, per the wire protocol's
// contract with the model (the system preamble instructs the model in these
// exact terms, so tolerance here would only mask prompt regressions).
func Parse(text string) Result {
	var r Result

	lines := strings.Split(text, "\n")
	var finalAnswerLines []string
	inFinalAnswer := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, prefixObservation):
			// A model-emitted Observation: line is a hallucination — the
			// system, never the model, produces observations. Strip this
			// line and everything after it.
			r.HallucinatedObservation = true
			inFinalAnswer = false
			i = len(lines)

		case strings.HasPrefix(trimmed, prefixThought):
			r.Thought = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixThought))
			inFinalAnswer = false

		case strings.HasPrefix(trimmed, prefixAction) && !strings.HasPrefix(trimmed, prefixActionInput):
			r.Action = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixAction))
			r.HasAction = r.Action != ""
			inFinalAnswer = false

		case strings.HasPrefix(trimmed, prefixActionInput):
			r.ActionInputRaw = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixActionInput))
			inFinalAnswer = false

		case strings.HasPrefix(trimmed, prefixFinalAnswer):
			finalAnswerLines = append(finalAnswerLines, strings.TrimSpace(strings.TrimPrefix(trimmed, prefixFinalAnswer)))
			inFinalAnswer = true

		case inFinalAnswer:
			// Final Answer may span multiple lines to the end of the buffer.
			finalAnswerLines = append(finalAnswerLines, line)
		}
	}

	if len(finalAnswerLines) > 0 {
		r.FinalAnswer = strings.TrimSpace(strings.Join(finalAnswerLines, "\n"))
		r.HasFinalAnswer = r.FinalAnswer != ""
	}

	// Rule: Final Answer wins over Action if both appear.
	if r.HasFinalAnswer && r.HasAction {
		r.HasAction = false
		r.Action = ""
		r.ActionInputRaw = ""
	}

	if r.HasAction {
		parseActionInput(&r)
	}

	if !r.HasAction && !r.HasFinalAnswer {
		if action, input, ok := parseLegacyTag(text); ok {
			r.HasAction = true
			r.Action = action
			r.ActionInput = input
		}
	}

	// Rule: a response with no Thought, no Final Answer and no action (in
	// either format) is a parse failure, and the whole response becomes a
	// last-resort final answer. A response without a Thought that still
	// carries an action or a Final Answer is accepted.
	if r.Thought == "" && !r.HasFinalAnswer && !r.HasAction {
		r.ParseFailed = true
		r.FinalAnswer = strings.TrimSpace(text)
		r.HasFinalAnswer = true
	}

	return r
}

func parseActionInput(r *Result) {
	if r.ActionInputRaw == "" {
		r.ActionInput = map[string]any{}
		return
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(r.ActionInputRaw), &obj); err != nil {
		r.ActionInputError = true
		return
	}
	r.ActionInput = obj
}

// parseLegacyTag recognizes <function>{"name":...,"parameters":...}</function>
// and the malformed <toolName>{...}</function> shorthand, normalizing both
// to (toolName, arguments).
func parseLegacyTag(text string) (string, map[string]any, bool) {
	if m := legacyFunctionTag.FindStringSubmatch(text); m != nil {
		var payload struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.Unmarshal([]byte(m[1]), &payload); err == nil && payload.Name != "" {
			return payload.Name, payload.Parameters, true
		}
	}
	if m := legacyNamedTag.FindStringSubmatch(text); m != nil && m[1] != "function" {
		var args map[string]any
		if err := json.Unmarshal([]byte(m[2]), &args); err == nil {
			return m[1], args, true
		}
	}
	return "", nil, false
}
