// internal/orchestrator/orchestrator.go

// Package orchestrator runs one conversation turn end to end: it merges
// overrides and extracted slots, routes the message, invokes the stage
// handler, chains at most one follow-up handler and commits the result.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/common/metrics"
	"loan-advisor/internal/common/observability"
	"loan-advisor/internal/extract"
	"loan-advisor/internal/models"
	"loan-advisor/internal/router"
	"loan-advisor/internal/stages"
	"loan-advisor/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var salutation = regexp.MustCompile(`(?i)^(?:hi|hello|hey|dear|namaste)\b[^,!.\n]{0,40}[,!.]\s*`)

// Orchestrator is safe for concurrent use. Turns on the same application
// run one at a time; different applications proceed in parallel.
type Orchestrator struct {
	repo   store.Repository
	stages *stages.Stages
	locks  *KeyedMutex
	hooks  []Hook
	obs    *observability.Observability
	log    logger.Logger
	now    func() time.Time
}

type Option func(*Orchestrator)

// WithHooks registers post-commit hooks, run in order.
func WithHooks(hooks ...Hook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, hooks...) }
}

// WithObservability enables spans and OTel turn metrics.
func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(repo store.Repository, s *stages.Stages, log logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Orchestrator{
		repo:   repo,
		stages: s,
		locks:  NewKeyedMutex(),
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Chat runs a turn for a request, creating the application when no ID is given.
func (o *Orchestrator) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if req.ApplicationID != "" {
		return o.ProcessMessage(ctx, req.ApplicationID, req.Message, req.DataUpdate)
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return models.ChatResponse{}, apperrors.NewValidationError("customer_id is required to start an application")
	}

	app := models.NewLoanApplication(req.CustomerID)
	app.CreatedAt, app.UpdatedAt = o.now(), o.now()

	unlock := o.locks.Lock(app.ID)
	defer unlock()
	return o.turn(ctx, app, true, req.Message, req.DataUpdate)
}

// ProcessMessage runs a turn for an existing application. Nothing is written
// unless the whole turn succeeds.
func (o *Orchestrator) ProcessMessage(ctx context.Context, appID, message string, overrides map[string]interface{}) (models.ChatResponse, error) {
	unlock := o.locks.Lock(appID)
	defer unlock()

	stored, err := o.repo.Get(ctx, appID)
	if err != nil {
		return models.ChatResponse{}, err
	}
	return o.turn(ctx, stored, false, message, overrides)
}

// Get returns a copy of the stored application.
func (o *Orchestrator) Get(ctx context.Context, appID string) (*models.LoanApplication, error) {
	return o.repo.Get(ctx, appID)
}

func (o *Orchestrator) turn(ctx context.Context, stored *models.LoanApplication, create bool, message string, overrides map[string]interface{}) (models.ChatResponse, error) {
	start := time.Now()
	log := o.log.WithFields(map[string]interface{}{
		"applicationId": stored.ID,
		"status":        stored.Status.String(),
	})

	ctx, end := o.startSpan(ctx, stored)

	app := stored.Clone()
	result, turn, err := o.run(ctx, app, message, overrides, log)
	if err != nil {
		end(err)
		o.recordFailure(ctx, stored.Status, err, time.Since(start))
		log.Warn("Turn failed, nothing committed", map[string]interface{}{
			"error": err.Error(),
			"code":  string(apperrors.CodeOf(err)),
		})
		return models.ChatResponse{}, err
	}

	app.UpdatedAt = o.now()
	if create {
		err = o.repo.Create(ctx, app)
	} else {
		err = o.repo.Put(ctx, app)
	}
	if err != nil {
		end(err)
		o.recordFailure(ctx, stored.Status, err, time.Since(start))
		log.Error("Failed to commit turn", map[string]interface{}{"error": err.Error()})
		return models.ChatResponse{}, err
	}
	end(nil)

	resp := models.ChatResponse{
		ApplicationID:  app.ID,
		AgentName:      result.Handler,
		Message:        result.Message,
		Status:         app.Status,
		ActionRequired: result.Action,
	}
	turn.ApplicationID = app.ID
	turn.CustomerID = app.Customer.ID
	turn.Message = message
	turn.Response = resp.Message
	turn.ToStatus = app.Status
	turn.Action = result.Action
	turn.OccurredAt = app.UpdatedAt

	duration := time.Since(start)
	o.recordSuccess(ctx, stored.Status, app.Status, result.Handler, duration)
	log.Info("Turn committed", map[string]interface{}{
		"handlers":    strings.Join(turn.Handlers, ","),
		"toStatus":    app.Status.String(),
		"rule":        turn.RoutingRule,
		"fields":      strings.Join(turn.Fields, ","),
		"duration_ms": duration.Milliseconds(),
	})

	o.runHooks(ctx, TurnEvent{
		Before:   stored,
		After:    app.Clone(),
		Turn:     turn,
		Response: resp,
		Duration: duration,
	}, log)
	return resp, nil
}

// run mutates app in place; the caller discards it on error.
func (o *Orchestrator) run(ctx context.Context, app *models.LoanApplication, message string, overrides map[string]interface{}, log logger.Logger) (models.HandlerResult, models.Turn, error) {
	turn := models.Turn{FromStatus: app.Status}

	overrideUpdates, err := models.ParseOverrides(overrides)
	if err != nil {
		return models.HandlerResult{}, turn, err
	}
	if err := app.Apply(overrideUpdates...); err != nil {
		return models.HandlerResult{}, turn, err
	}
	turn.Fields = appendFields(turn.Fields, overrideUpdates)

	// A closed application keeps its terms; only the caller can still edit it.
	slots := extract.Extract(message)
	if !app.Status.IsTerminal() {
		extracted := withoutFields(slots.Updates(app), overrideUpdates)
		if err := app.Apply(extracted...); err != nil {
			return models.HandlerResult{}, turn, err
		}
		turn.Fields = appendFields(turn.Fields, extracted)
	}

	decision := router.Route(app, message, slots)
	turn.RoutingRule = decision.Rule
	rerouted := decision.Rerouted(app.Status)
	metrics.RoutingDecisions.WithLabelValues(decision.Rule, strconv.FormatBool(rerouted)).Inc()
	if rerouted && !app.Status.IsTerminal() {
		log.Debug("Routing to a different stage", map[string]interface{}{
			"from": app.Status.String(),
			"to":   decision.Stage.String(),
			"rule": decision.Rule,
		})
		if err := app.Apply(models.SetStatus{Value: decision.Stage}); err != nil {
			return models.HandlerResult{}, turn, err
		}
	}

	result, err := o.invoke(ctx, app.Status, app, message)
	if err != nil {
		return models.HandlerResult{}, turn, err
	}
	turn.Handlers = append(turn.Handlers, result.Handler)
	turn.Fields = appendFields(turn.Fields, result.Updates)

	if result.HasNext() {
		chained, err := o.invoke(ctx, result.Next, app, "")
		if err != nil {
			return models.HandlerResult{}, turn, err
		}
		turn.Handlers = append(turn.Handlers, chained.Handler)
		turn.Fields = appendFields(turn.Fields, chained.Updates)
		if chained.HasNext() {
			log.Debug("Second chain deferred to the next turn", map[string]interface{}{
				"next": chained.Next.String(),
			})
		}
		// The turn is labelled by the stage that answered first; the chained
		// stage only contributes text and, when it asks for one, the next action.
		action := result.Action
		if chained.Action != "" {
			action = chained.Action
		}
		result = models.HandlerResult{
			Handler: result.Handler,
			Message: joinMessages(result.Message, chained.Message),
			Action:  action,
		}
	}
	return result, turn, nil
}

// invoke runs the handler for stage on a snapshot and applies its updates to app.
func (o *Orchestrator) invoke(ctx context.Context, stage models.Status, app *models.LoanApplication, message string) (models.HandlerResult, error) {
	h, err := o.stages.For(stage)
	if err != nil {
		return models.HandlerResult{}, err
	}
	result, err := h.Process(ctx, app.Clone(), message)
	if err != nil {
		return models.HandlerResult{}, err
	}
	if result.Handler == "" {
		result.Handler = h.Name()
	}
	if err := app.Apply(result.Updates...); err != nil {
		return models.HandlerResult{}, err
	}
	if result.HasNext() && app.Status != result.Next {
		return models.HandlerResult{}, apperrors.NewInvariantViolationError(
			fmt.Sprintf("%s chained to %s but left status %s", result.Handler, result.Next, app.Status))
	}
	return result, nil
}

func (o *Orchestrator) runHooks(ctx context.Context, event TurnEvent, log logger.Logger) {
	for _, h := range o.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.SideEffectFailures.WithLabelValues(h.Name()).Inc()
					log.Error("Post-commit hook panicked", map[string]interface{}{
						"hook":  h.Name(),
						"panic": fmt.Sprint(r),
					})
				}
			}()
			if err := h.AfterTurn(ctx, event); err != nil {
				metrics.SideEffectFailures.WithLabelValues(h.Name()).Inc()
				log.Warn("Post-commit hook failed", map[string]interface{}{
					"hook":  h.Name(),
					"error": err.Error(),
				})
			}
		}()
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, app *models.LoanApplication) (context.Context, func(error)) {
	if o.obs == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.obs.StartSpan(ctx, "conversation.turn",
		attribute.String("application.id", app.ID),
		attribute.String("application.status", app.Status.String()),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		}
		span.End()
	}
}

func (o *Orchestrator) recordSuccess(ctx context.Context, from, to models.Status, handler string, d time.Duration) {
	metrics.ConversationTurns.WithLabelValues(handler, "ok").Inc()
	metrics.ConversationTurnDuration.WithLabelValues(handler).Observe(d.Seconds())
	if from != to {
		metrics.StatusTransitions.WithLabelValues(from.String(), to.String()).Inc()
	}
	if o.obs != nil {
		o.obs.RecordTurn(ctx, handler, "ok", d)
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, status models.Status, err error, d time.Duration) {
	code := string(apperrors.CodeOf(err))
	metrics.ConversationTurns.WithLabelValues(status.String(), code).Inc()
	if o.obs != nil {
		o.obs.RecordTurn(ctx, status.String(), code, d)
	}
}

// joinMessages appends the chained text, dropping its salutation when the
// first text already greeted the customer.
func joinMessages(first, second string) string {
	second = strings.TrimSpace(second)
	if second == "" {
		return first
	}
	if salutation.MatchString(strings.TrimSpace(first)) {
		second = salutation.ReplaceAllString(second, "")
		if r, size := utf8.DecodeRuneInString(second); size > 0 {
			second = string(unicode.ToUpper(r)) + second[size:]
		}
	}
	if strings.TrimSpace(first) == "" {
		return second
	}
	return first + "\n\n" + second
}

// withoutFields drops extracted updates for fields the caller overrode.
func withoutFields(updates, overrides []models.Update) []models.Update {
	if len(overrides) == 0 {
		return updates
	}
	taken := make(map[string]bool, len(overrides))
	for _, u := range overrides {
		taken[u.Field()] = true
	}
	kept := updates[:0:0]
	for _, u := range updates {
		if !taken[u.Field()] {
			kept = append(kept, u)
		}
	}
	return kept
}

func appendFields(fields []string, updates []models.Update) []string {
	for _, u := range updates {
		fields = append(fields, u.Field())
	}
	return fields
}
