package agent

import (
	"encoding/json"
	"os"
)

// Built-in persona snippets appended to an agent's system prompt. The
// "normal" mode adds nothing. Deployments can override or extend the set
// with an output_modes.json document.
var builtinPersonas = map[string]string{
	"normal": "",
	"efficient": `## Output requirements (efficient mode)
1. Answer efficiently. Skip filler and flattery.
2. Structure your output in two parts:
   - [Answer]: the direct answer, no decoration
   - [Reasoning]: your rationale, compact and convincing`,
	"concise": `## Output requirements (concise mode)
1. Answer the question directly and extremely briefly.
2. No explanations, no filler, no pleasantries.
3. Output only the essential answer.`,
}

// Personas resolves a persona mode to its prompt snippet.
type Personas struct {
	modes map[string]string
}

type personaMode struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// LoadPersonas reads the optional mode document at path. A missing or
// unreadable file falls back to the built-in set.
func LoadPersonas(path string) *Personas {
	modes := make(map[string]string, len(builtinPersonas))
	for k, v := range builtinPersonas {
		modes[k] = v
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var loaded []personaMode
			if err := json.Unmarshal(data, &loaded); err == nil {
				for _, m := range loaded {
					modes[m.ID] = m.Prompt
				}
			}
		}
	}
	return &Personas{modes: modes}
}

// Get returns the snippet for mode; unknown modes behave like "normal".
func (p *Personas) Get(mode string) string {
	return p.modes[mode]
}
