// Package session is the explicit per-user context that owns the dataset
// registry, the pivot views, and each view's conversation log. There are no
// hidden globals; every orchestrator call goes through a Session. One
// question is handled at a time; the session is not safe for concurrent
// mutation.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pivotlens/pivotlens/internal/ai"
	"github.com/pivotlens/pivotlens/internal/conversation"
	"github.com/pivotlens/pivotlens/internal/dataset"
	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/query"
)

// Session holds all mutable state for one user.
type Session struct {
	ID       string
	Registry *dataset.Registry

	llm       ai.Completer
	viewOrder []string
	views     map[string]*pivot.View
	logs      map[string]*conversation.Log
	engines   map[string]*query.Engine
}

// New starts an empty session.
func New(llm ai.Completer) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Registry: dataset.NewRegistry(),
		llm:      llm,
		views:    make(map[string]*pivot.View),
		logs:     make(map[string]*conversation.Log),
		engines:  make(map[string]*query.Engine),
	}
}

// CreatePivot validates the spec against the dataset, computes the view,
// and registers it.
func (s *Session) CreatePivot(name, datasetRef string, spec pivot.Spec) (*pivot.View, error) {
	ds, ok := s.Registry.Lookup(datasetRef)
	if !ok {
		return nil, fmt.Errorf("dataset %q not found", datasetRef)
	}
	if err := spec.Validate(ds.Table); err != nil {
		return nil, err
	}
	view, err := pivot.NewView(name, ds.ID, ds.Table, spec)
	if err != nil {
		return nil, err
	}
	s.addView(view)
	return view, nil
}

func (s *Session) addView(v *pivot.View) {
	s.viewOrder = append(s.viewOrder, v.ID)
	s.views[v.ID] = v
	s.logs[v.ID] = conversation.NewLog()
}

// DeletePivot removes a view and its conversation state.
func (s *Session) DeletePivot(id string) {
	if _, ok := s.views[id]; !ok {
		return
	}
	delete(s.views, id)
	delete(s.logs, id)
	delete(s.engines, id)
	for i, v := range s.viewOrder {
		if v == id {
			s.viewOrder = append(s.viewOrder[:i], s.viewOrder[i+1:]...)
			break
		}
	}
}

// Views lists pivot views in creation order.
func (s *Session) Views() []*pivot.View {
	out := make([]*pivot.View, 0, len(s.viewOrder))
	for _, id := range s.viewOrder {
		out = append(out, s.views[id])
	}
	return out
}

// View resolves a view by ID or name.
func (s *Session) View(ref string) (*pivot.View, bool) {
	if v, ok := s.views[ref]; ok {
		return v, true
	}
	for _, id := range s.viewOrder {
		if s.views[id].Name == ref {
			return s.views[id], true
		}
	}
	return nil, false
}

// Log returns the conversation log for a view.
func (s *Session) Log(viewID string) *conversation.Log { return s.logs[viewID] }

// engineFor lazily creates the per-view query engine on first question.
func (s *Session) engineFor(v *pivot.View) *query.Engine {
	if e, ok := s.engines[v.ID]; ok {
		return e
	}
	e := query.NewEngine(s.llm, v)
	s.engines[v.ID] = e
	return e
}

func (s *Session) sourceName(v *pivot.View) string {
	if ds, ok := s.Registry.Get(v.Source); ok {
		return ds.Name
	}
	return "(deleted dataset)"
}

// Ask handles one question against a view: builds context, records the user
// message, runs the orchestrator, and records exactly one assistant entry,
// error-flagged on failure. The session stays usable after any error.
func (s *Session) Ask(ctx context.Context, viewRef, question string) (conversation.Message, error) {
	v, ok := s.View(viewRef)
	if !ok {
		return conversation.Message{}, fmt.Errorf("pivot %q not found", viewRef)
	}
	log := s.logs[v.ID]
	convCtx := conversation.BuildContext(log, v, s.sourceName(v))
	log.Append(conversation.Message{Role: conversation.RoleUser, Content: question})

	resp, err := s.engineFor(v).Ask(ctx, question, convCtx, log)
	if err != nil {
		msg := conversation.Message{
			Role:    conversation.RoleAssistant,
			Content: userFacingError(err),
			IsError: true,
		}
		log.Append(msg)
		return msg, err
	}

	msg := conversation.Message{
		Role:       conversation.RoleAssistant,
		Content:    resp.Answer,
		Expression: resp.Expression,
	}
	log.Append(msg)
	return msg, nil
}

// ReAsk pops the last assistant answer and re-submits its paired user
// question as a fresh computational invocation.
func (s *Session) ReAsk(ctx context.Context, viewRef string) (conversation.Message, error) {
	v, ok := s.View(viewRef)
	if !ok {
		return conversation.Message{}, fmt.Errorf("pivot %q not found", viewRef)
	}
	log := s.logs[v.ID]
	last, ok := log.PopLast()
	if !ok || last.Role != conversation.RoleAssistant {
		if ok {
			log.Append(last) // not an answer; put it back
		}
		return conversation.Message{}, errors.New("no answer to retry")
	}
	question := ""
	for i := len(log.Messages()) - 1; i >= 0; i-- {
		if log.Messages()[i].Role == conversation.RoleUser {
			question = log.Messages()[i].Content
			break
		}
	}
	if question == "" {
		return conversation.Message{}, errors.New("no question to retry")
	}

	convCtx := conversation.BuildContext(log, v, s.sourceName(v))
	resp, err := s.engineFor(v).Recompute(ctx, question, convCtx)
	if err != nil {
		msg := conversation.Message{
			Role:    conversation.RoleAssistant,
			Content: userFacingError(err),
			IsError: true,
		}
		log.Append(msg)
		return msg, err
	}
	msg := conversation.Message{
		Role:       conversation.RoleAssistant,
		Content:    resp.Answer,
		Expression: resp.Expression,
	}
	log.Append(msg)
	return msg, nil
}

// Explain translates the most recent answer's expression to plain English.
func (s *Session) Explain(ctx context.Context, viewRef string) (string, error) {
	v, ok := s.View(viewRef)
	if !ok {
		return "", fmt.Errorf("pivot %q not found", viewRef)
	}
	last, ok := s.logs[v.ID].LastAssistant()
	if !ok || last.Expression == "" {
		return "", errors.New("no expression to explain yet")
	}
	return s.engineFor(v).ExplainExpression(ctx, last.Expression)
}

func userFacingError(err error) string {
	if errors.Is(err, query.ErrNoPriorResult) {
		return "There are no previous results to analyze yet. Ask a computational question first."
	}
	return fmt.Sprintf("I could not process that question. Please try rephrasing. (detail: %v)", err)
}
