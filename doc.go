// Package coworker is a multi-agent group chat orchestration core.
//
// A group pairs one supervisor agent with a set of worker agents. The
// supervisor plans in two phases: a single plan-initialization call that
// produces a goal, deliverables, and a process list, then one execution
// decision per turn, each dispatching at most one worker. Clients drive the
// loop turn by turn over HTTP, either as plain JSON responses or as an SSE
// event stream.
//
// # Quick Start
//
// Install the server:
//
//	go install github.com/coworkai/coworker/cmd/coworker@latest
//
// Drop a provider document into the data root:
//
//	{
//	  "providers": [
//	    {
//	      "id": "openai",
//	      "type": "openai",
//	      "name": "OpenAI",
//	      "models": ["gpt-4o-mini"],
//	      "api_key_env": "OPENAI_API_KEY"
//	    }
//	  ]
//	}
//
// Start serving:
//
//	coworker serve --addr :8080 --data-root ./data
//
// # Packages
//
//   - pkg/groupchat: the two-phase supervisor engine
//   - pkg/workflow: plan-document generation and sequential execution with
//     reviewer revision loops
//   - pkg/agent: agent configs, persona modes, and the bounded tool loop
//   - pkg/llms: the provider gateway (OpenAI dialect, Anthropic, Gemini)
//   - pkg/tools: the tool registry and built-in tools
//   - pkg/knowledge: per-agent retrieval over an embedded vector store
//   - pkg/stream: turn events, the producer queue, and the SSE writer
//   - pkg/store: JSON document persistence for groups and message logs
//   - pkg/server: the HTTP surface
package coworker
