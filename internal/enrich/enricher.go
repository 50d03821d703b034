// Package enrich runs the iterative field-enrichment loop: resolve a person
// and their company, search for the schema fields that are still missing
// until they are all known or the round budget runs out, then persist a
// context snippet and link the run's audit records to it.
package enrich

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/extract"
	"github.com/sells-group/research-agent/internal/harvest"
	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/reason"
	"github.com/sells-group/research-agent/internal/registry"
	"github.com/sells-group/research-agent/internal/search"
	"github.com/sells-group/research-agent/internal/store"
)

// State is a step of the run state machine.
type State string

const (
	StateInit      State = "INIT"
	StateResolving State = "RESOLVING_ENTITY"
	StateIterating State = "ITERATING"
	StateFinalize  State = "FINALIZING"
	StateDone      State = "DONE"
	StateAborted   State = "ABORTED"
)

// Searcher is satisfied by *search.Gateway. Implementations must not fail:
// errors travel in Outcome.Err.
type Searcher interface {
	Search(ctx context.Context, query string) search.Outcome
}

// Config tunes the loop.
type Config struct {
	Schema *registry.Schema
	// MaxIterations bounds the number of rounds. <= 0 means one round per
	// schema field.
	MaxIterations int
	Policy        QueryPolicy
	// SnippetEntity selects whether the snippet is attached to the company
	// or the person. Empty means company.
	SnippetEntity model.EntityType
	// OnTransition, when set, is called for every state change.
	OnTransition func(runID string, from, to State)
}

// Deps are the collaborators of a run. Reasoner may be nil.
type Deps struct {
	Lookup    store.Lookup
	Logs      store.LogSink
	Snippets  store.SnippetSink
	Search    Searcher
	Reasoner  reason.Reasoner
	Extractor extract.Extractor
}

// Result is the outcome of a run that reached DONE. Status is partial when
// any write failed; the computed snippet is returned either way.
type Result struct {
	Status        model.RunStatus      `json:"status"`
	RunID         string               `json:"run_id"`
	Person        model.Person         `json:"person"`
	Company       model.Company        `json:"company"`
	Snippet       model.ContextSnippet `json:"snippet"`
	Iterations    int                  `json:"iterations"`
	PersistErrors []string             `json:"persist_errors,omitempty"`
}

// Enricher runs enrichment for one person at a time. It is safe for
// concurrent use when its Deps are.
type Enricher struct {
	cfg  Config
	deps Deps

	newID func() string
	now   func() time.Time
}

// New validates cfg and deps.
func New(cfg Config, deps Deps) (*Enricher, error) {
	if cfg.Schema == nil || cfg.Schema.Len() == 0 {
		return nil, eris.New("enrich: schema is required")
	}
	if deps.Lookup == nil || deps.Logs == nil || deps.Snippets == nil {
		return nil, eris.New("enrich: lookup and sinks are required")
	}
	if deps.Search == nil {
		return nil, eris.New("enrich: searcher is required")
	}
	if deps.Extractor == nil {
		return nil, eris.New("enrich: extractor is required")
	}
	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy
	switch cfg.SnippetEntity {
	case "":
		cfg.SnippetEntity = model.EntityCompany
	case model.EntityCompany, model.EntityPerson:
	default:
		return nil, eris.Errorf("enrich: invalid snippet entity %q", cfg.SnippetEntity)
	}
	return &Enricher{
		cfg:   cfg,
		deps:  deps,
		newID: func() string { return uuid.New().String() },
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Budget returns the effective number of rounds.
func (e *Enricher) Budget() int {
	if e.cfg.MaxIterations <= 0 {
		return e.cfg.Schema.Len()
	}
	return e.cfg.MaxIterations
}

// run carries the mutable state of one Run call.
type run struct {
	id      string
	state   State
	log     *zap.Logger
	person  model.Person
	company model.Company
	fields  model.FieldMapping
	urls    harvest.Set
	rounds  int
	errs    []string
}

func (e *Enricher) moveTo(r *run, to State) {
	from := r.state
	r.state = to
	r.log.Debug("enrich: state", zap.String("from", string(from)), zap.String("to", string(to)))
	if e.cfg.OnTransition != nil {
		e.cfg.OnTransition(r.id, from, to)
	}
}

// Run enriches personID. It returns an *AbortError (wrapped) when the
// person or their company cannot be resolved, and ctx's error when ctx
// ends mid-run; in both cases no snippet is written.
func (e *Enricher) Run(ctx context.Context, personID string) (*Result, error) {
	r := &run{
		id:     e.newID(),
		state:  StateInit,
		fields: model.FieldMapping{},
		urls:   harvest.Set{},
	}
	r.log = zap.L().With(zap.String("run_id", r.id), zap.String("person_id", personID))
	r.log.Info("enrich: starting run", zap.String("schema", e.cfg.Schema.Name), zap.Int("budget", e.Budget()))

	e.moveTo(r, StateResolving)
	if err := e.resolve(ctx, r, personID); err != nil {
		e.moveTo(r, StateAborted)
		return nil, err
	}

	e.moveTo(r, StateIterating)
	if err := e.iterate(ctx, r); err != nil {
		e.moveTo(r, StateAborted)
		return nil, err
	}

	e.moveTo(r, StateFinalize)
	res := e.finalize(ctx, r)
	e.moveTo(r, StateDone)

	r.log.Info("enrich: run finished",
		zap.String("status", string(res.Status)),
		zap.Int("iterations", res.Iterations),
		zap.Int("fields", len(res.Snippet.Payload)),
		zap.Int("urls", len(res.Snippet.SourceURLs)),
	)
	return res, nil
}

func (e *Enricher) resolve(ctx context.Context, r *run, personID string) error {
	person, err := e.deps.Lookup.GetPerson(ctx, personID)
	if err != nil {
		return eris.Wrapf(err, "enrich: lookup person %s", personID)
	}
	if person == nil {
		r.log.Warn("enrich: person not found")
		return eris.Wrap(&AbortError{PersonID: personID, Reason: ErrPersonNotFound}, "enrich: resolve")
	}
	company, err := e.deps.Lookup.GetCompany(ctx, person.CompanyID)
	if err != nil {
		return eris.Wrapf(err, "enrich: lookup company %s", person.CompanyID)
	}
	if company == nil {
		r.log.Warn("enrich: company not found", zap.String("company_id", person.CompanyID))
		return eris.Wrap(&AbortError{PersonID: personID, Reason: ErrCompanyNotFound}, "enrich: resolve")
	}
	r.person, r.company = *person, *company
	r.log = r.log.With(zap.String("company_id", company.ID))
	return nil
}

func (e *Enricher) iterate(ctx context.Context, r *run) error {
	order := e.cfg.Schema.Keys()
	budget := e.Budget()

	for r.rounds < budget {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "enrich: run interrupted")
		}
		missing := r.fields.Missing(order)
		if len(missing) == 0 {
			r.log.Info("enrich: all fields known, stopping early", zap.Int("iteration", r.rounds))
			break
		}
		r.rounds++
		e.round(ctx, r, missing)
	}
	return nil
}

func (e *Enricher) round(ctx context.Context, r *run, missing []model.FieldKey) {
	targets := e.cfg.Policy.Targets(missing)
	query := e.cfg.Policy.Query(r.person, r.company, e.cfg.Schema, targets)
	log := r.log.With(zap.Int("iteration", r.rounds), zap.String("query", query))

	outcome := e.deps.Search.Search(ctx, query)
	payloads := []model.SearchPayload{outcome.Payload()}
	r.urls.Union(harvest.FromResults(outcome.Results))

	if answer, ok := e.reason(ctx, log, r, query, targets, outcome.Results); ok {
		payloads = append(payloads, answer.Payload())
		r.urls.Union(harvest.FromText(answer.Text))
		r.urls.Add(answer.Sources...)
	}

	before := len(r.fields)
	r.fields = e.deps.Extractor.Extract(extract.Input{Targets: targets, Payloads: payloads}, r.fields)

	rec := model.SearchLogRecord{
		ID:         e.newID(),
		RunID:      r.id,
		Iteration:  r.rounds,
		Query:      query,
		TopResults: outcome.Payload().AsResults(),
		CreatedAt:  e.now(),
	}
	if outcome.Err != nil {
		rec.SearchError = outcome.Err.Error()
	}
	if err := e.deps.Logs.AppendLog(ctx, rec); err != nil {
		log.Error("enrich: append search log failed", zap.Error(err))
		r.errs = append(r.errs, err.Error())
	}

	log.Info("enrich: round complete",
		zap.Int("results", len(outcome.Results)),
		zap.Int("new_fields", len(r.fields)-before),
		zap.Int("urls", len(r.urls)),
	)
}

// reason asks the optional reasoner for a free-text answer. A failure or an
// empty reply counts as no answer.
func (e *Enricher) reason(ctx context.Context, log *zap.Logger, r *run, query string, targets []model.FieldKey, results []model.SearchResult) (reason.Answer, bool) {
	if e.deps.Reasoner == nil {
		return reason.Answer{}, false
	}
	labels := make([]string, len(targets))
	for i, k := range targets {
		labels[i] = e.cfg.Schema.Label(k)
	}
	answer, err := e.deps.Reasoner.Reason(ctx, reason.Request{
		Query:   query,
		Person:  r.person,
		Company: r.company,
		Fields:  labels,
		Results: results,
	})
	if err != nil {
		log.Warn("enrich: reasoner failed, continuing without an answer", zap.Error(err))
		return reason.Answer{}, false
	}
	if answer.Text == "" && len(answer.Sources) == 0 {
		return reason.Answer{}, false
	}
	return answer, true
}

func (e *Enricher) finalize(ctx context.Context, r *run) *Result {
	entityID := r.company.ID
	if e.cfg.SnippetEntity == model.EntityPerson {
		entityID = r.person.ID
	}
	snippet := model.ContextSnippet{
		ID:          e.newID(),
		EntityType:  e.cfg.SnippetEntity,
		EntityID:    entityID,
		SnippetType: model.SnippetTypeResearch,
		Payload:     r.fields,
		SourceURLs:  r.urls.Sorted(),
		CreatedAt:   e.now(),
	}

	// Audit records keep a null snippet id unless the snippet was stored.
	if err := e.deps.Snippets.SaveSnippet(ctx, snippet); err != nil {
		r.log.Error("enrich: save snippet failed, skipping backfill", zap.String("snippet_id", snippet.ID), zap.Error(err))
		r.errs = append(r.errs, err.Error())
	} else if n, err := e.deps.Logs.BackfillSnippetID(ctx, r.id, snippet.ID); err != nil {
		r.log.Error("enrich: backfill snippet id failed", zap.String("snippet_id", snippet.ID), zap.Error(err))
		r.errs = append(r.errs, err.Error())
	} else {
		r.log.Debug("enrich: backfilled search logs", zap.Int64("records", n))
	}

	status := model.RunCompleted
	if len(r.errs) > 0 {
		status = model.RunPartial
	}
	return &Result{
		Status:        status,
		RunID:         r.id,
		Person:        r.person,
		Company:       r.company,
		Snippet:       snippet,
		Iterations:    r.rounds,
		PersistErrors: r.errs,
	}
}
