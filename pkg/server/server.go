// Package server exposes the orchestration core over HTTP: group CRUD, the
// step-by-step chat endpoints, workflow planning and execution, and
// Prometheus metrics.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coworkai/coworker/pkg/agent"
	"github.com/coworkai/coworker/pkg/config"
	"github.com/coworkai/coworker/pkg/groupchat"
	"github.com/coworkai/coworker/pkg/knowledge"
	"github.com/coworkai/coworker/pkg/llms"
	"github.com/coworkai/coworker/pkg/observability"
	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/store"
	"github.com/coworkai/coworker/pkg/stream"
	"github.com/coworkai/coworker/pkg/tools"
)

// Server wires the core's components behind a chi router.
type Server struct {
	cfg       *config.Config
	groups    *store.GroupStore
	agents    *agent.Store
	gateway   *llms.Gateway
	registry  *tools.ToolRegistry
	knowledge *knowledge.Store
	personas  *agent.Personas

	// turnLocks serializes turns per group; overlapping turns for the same
	// group would interleave in the persisted log.
	turnLocks sync.Map
}

type Options struct {
	Config    *config.Config
	Groups    *store.GroupStore
	Agents    *agent.Store
	Gateway   *llms.Gateway
	Registry  *tools.ToolRegistry
	Knowledge *knowledge.Store
	Personas  *agent.Personas
}

func New(opts Options) *Server {
	return &Server{
		cfg:       opts.Config,
		groups:    opts.Groups,
		agents:    opts.Agents,
		gateway:   opts.Gateway,
		registry:  opts.Registry,
		knowledge: opts.Knowledge,
		personas:  opts.Personas,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/groups", func(r chi.Router) {
		r.Get("/list", s.handleListGroups)
		r.Post("/create", s.handleCreateGroup)
		r.Post("/update", s.handleUpdateGroup)
		r.Delete("/delete/{groupID}", s.handleDeleteGroup)
		r.Get("/{groupID}/messages", s.handleGetMessages)
		r.Post("/{groupID}/clear", s.handleClearMessages)

		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Post("/plan", s.handlePlan)
		r.Post("/execute", s.handleExecute)
	})

	if h := observability.MetricsHandler(); h != nil {
		r.Handle("/metrics", h)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// lockGroup serializes turns for one group. The returned func releases.
func (s *Server) lockGroup(workspace, groupID string) func() {
	key := workspace + "/" + groupID
	actual, _ := s.turnLocks.LoadOrStore(key, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// assembly is everything needed to run one group turn.
type assembly struct {
	group         *store.GroupConfig
	supervisorCfg *agent.Config
	members       map[string]*agent.Runner
	descriptions  map[string]string
	memberOrder   []string
}

// assemble loads the group and builds runners for its members. The
// supervisor is excluded from the worker set; members that fail to load are
// skipped with a warning so a group can run with a subset.
func (s *Server) assemble(workspace, groupID string) (*assembly, error) {
	group, err := s.groups.GetGroup(workspace, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, errNotFound("group " + groupID)
	}
	if group.SupervisorID == "" {
		return nil, errBadRequest("group has no supervisor configured")
	}

	supervisorCfg, err := s.agents.Get(workspace, group.SupervisorID)
	if err != nil {
		return nil, fmt.Errorf("supervisor %s: %w", group.SupervisorID, err)
	}

	a := &assembly{
		group:         group,
		supervisorCfg: supervisorCfg,
		members:       make(map[string]*agent.Runner),
		descriptions:  make(map[string]string),
	}
	for _, memberID := range group.Members {
		if memberID == group.SupervisorID {
			continue
		}
		cfg, err := s.agents.Get(workspace, memberID)
		if err != nil {
			slog.Warn("member not found, skipping", "group", groupID, "member", memberID, "error", err)
			continue
		}
		runner := agent.NewRunner(cfg, workspace, s.gateway, s.registry, s.knowledge, s.personas)
		a.members[cfg.Name] = runner
		a.descriptions[cfg.Name] = cfg.SystemPrompt
		a.memberOrder = append(a.memberOrder, cfg.Name)
	}
	return a, nil
}

// buildChat constructs the engine for one turn.
func (s *Server) buildChat(a *assembly, workspace string, history []protocol.Message, sink stream.Sink) (*groupchat.GroupChat, error) {
	state, err := groupchat.PlanStateFromMap(a.group.ChatState)
	if err != nil {
		return nil, err
	}

	chat := groupchat.New(groupchat.Options{
		Workspace:        workspace,
		GroupID:          a.group.ID,
		SupervisorCfg:    a.supervisorCfg,
		SupervisorPrompt: a.group.SupervisorPrompt,
		Gateway:          s.gateway,
		Store:            s.groups,
		Sink:             sink,
		State:            state,
		History:          history,
		MaxTurns:         s.cfg.MaxTurns,
	})
	for _, name := range a.memberOrder {
		chat.AddMember(a.members[name], a.descriptions[name])
	}
	return chat, nil
}
