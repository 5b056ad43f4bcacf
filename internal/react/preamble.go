package react

import (
	"fmt"
	"strings"

	"github.com/nexus-react/core/pkg/core"
)

const maxContextPreviewChars = 500

// buildSystemPreamble constructs the system message fresh for each turn, per
// §4.6.1: tool enumeration, the retrieved-context block, few-shot examples,
// and the explicit rule list.
func buildSystemPreamble(bundle core.ContextBundle) string {
	var b strings.Builder

	b.WriteString("You are a ReAct agent that reasons step by step and uses tools when needed.\n\n")

	writeToolList(&b, bundle.Tools)
	writeContextBlock(&b, bundle.RelevantResources)
	writeFewShotExamples(&b)
	writeRules(&b, bundle.Tools)

	return b.String()
}

func writeToolList(b *strings.Builder, tools []core.Tool) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	fmt.Fprintf(b, "Use ONLY tools from: %s\n\n", strings.Join(names, ", "))

	if len(tools) == 0 {
		return
	}
	b.WriteString("Tool definitions:\n")
	for _, t := range tools {
		fmt.Fprintf(b, "- %s: %s\n", t.Name, t.Description)
		writeEnumHints(b, t.Parameters)
	}
	b.WriteString("\n")
}

// writeEnumHints surfaces allowed values for any enum/const parameter
// inline, so the model doesn't have to guess a Literal's allowed values
// from the schema alone.
func writeEnumHints(b *strings.Builder, schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}
	for name, rawProp := range props {
		prop, ok := rawProp.(map[string]any)
		if !ok {
			continue
		}
		values := extractEnumValues(prop)
		if len(values) > 0 {
			fmt.Fprintf(b, "    %s allowed values: %s\n", name, strings.Join(values, ", "))
		}
	}
}

// extractEnumValues normalizes both a top-level "enum" array and an
// "anyOf" list of {"const": ...} objects to a flat list of strings.
func extractEnumValues(prop map[string]any) []string {
	var values []string
	if enum, ok := prop["enum"].([]any); ok {
		for _, v := range enum {
			values = append(values, fmt.Sprintf("%v", v))
		}
		return values
	}
	if anyOf, ok := prop["anyOf"].([]any); ok {
		for _, entry := range anyOf {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if c, ok := m["const"]; ok {
				values = append(values, fmt.Sprintf("%v", c))
			}
		}
	}
	return values
}

func writeContextBlock(b *strings.Builder, resources []core.SearchResult) {
	if len(resources) == 0 {
		return
	}
	b.WriteString("## ⚠️ IMPORTANT - Context Already Available: CHECK THIS FIRST\n\n")
	for i, r := range resources {
		preview := r.Text
		if len(preview) > maxContextPreviewChars {
			preview = preview[:maxContextPreviewChars]
		}
		fmt.Fprintf(b, "[Context %d]: %s\n\n", i+1, preview)
	}
}

func writeFewShotExamples(b *strings.Builder) {
	b.WriteString("Examples:\n\n")
	b.WriteString("Example 1 (answer directly from context, no action):\n")
	b.WriteString("Thought: The context already contains the answer, so no tool call is needed.\n")
	b.WriteString("Final Answer: Based on [Context 1], the answer is ...\n\n")
	b.WriteString("Example 2 (one action, then a final answer):\n")
	b.WriteString("Thought: I need current data the context doesn't have.\n")
	b.WriteString("Action: search\n")
	b.WriteString("Action Input: {\"query\": \"current data\"}\n")
	b.WriteString("(... after receiving the observation in a later turn ...)\n")
	b.WriteString("Thought: The observation answers the question.\n")
	b.WriteString("Final Answer: According to the search result, ...\n\n")
}

func writeRules(b *strings.Builder, tools []core.Tool) {
	b.WriteString("Rules:\n")
	b.WriteString("1. Check the context above before deciding whether a tool is needed.\n")
	b.WriteString("2. Issue at most one action per response.\n")
	b.WriteString("3. Always include a Thought: line.\n")
	if len(tools) > 0 {
		b.WriteString("4. Tool names must come from the list above; never invent one.\n")
	} else {
		b.WriteString("4. No tools are available this turn; answer directly with a Final Answer.\n")
	}
	b.WriteString("5. Action Input must be valid JSON.\n")
	b.WriteString("6. Read tool results carefully before deciding the next step.\n")
	b.WriteString("7. Never emit an Observation: line yourself; only the system produces observations.\n")
}
