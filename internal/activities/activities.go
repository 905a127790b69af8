package activities

import (
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith-ai/draftsmith/internal/db"
	"github.com/draftsmith-ai/draftsmith/internal/llm"
	"github.com/draftsmith-ai/draftsmith/internal/session"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
)

// Activities bundles the collaborators every report activity needs. The
// worker registers one instance; Temporal dispatches onto its methods.
type Activities struct {
	llm        *llm.Client
	dispatcher *tools.Dispatcher
	sessions   *session.Manager
	store      *db.Client
	approvals  *ApprovalStore
	logger     *zap.Logger
}

// Deps carries the constructor inputs. Sessions and store may be nil; the
// affected activities then degrade to no-ops instead of failing runs.
type Deps struct {
	LLM        *llm.Client
	Dispatcher *tools.Dispatcher
	Sessions   *session.Manager
	Store      *db.Client
	Logger     *zap.Logger
}

// New wires an Activities instance.
func New(deps Deps) *Activities {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Activities{
		llm:        deps.LLM,
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		store:      deps.Store,
		approvals:  NewApprovalStore(24 * time.Hour),
		logger:     deps.Logger,
	}
}

// Approvals exposes the approval store so the HTTP layer can route incoming
// decisions to it.
func (a *Activities) Approvals() *ApprovalStore {
	return a.approvals
}
