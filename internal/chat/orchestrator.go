package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dmarchetti/vera/internal/observability"
	"github.com/dmarchetti/vera/internal/profile"
	"github.com/dmarchetti/vera/internal/prompt"
	"github.com/dmarchetti/vera/internal/transcript"
	"github.com/dmarchetti/vera/internal/upstream"
)

// ErrEmptyMessage rejects a blank incoming message before any I/O happens.
var ErrEmptyMessage = errors.New("message must not be empty")

// ErrNotConfigured reports that no upstream generator is wired, before any
// store access happens.
var ErrNotConfigured = errors.New("upstream generation is not configured")

// Result is the outcome of one successful exchange.
type Result struct {
	Reply      string                `json:"reply"`
	Transcript transcript.Transcript `json:"transcript"`
}

// Orchestrator drives one chat exchange end-to-end: load transcript, build
// the bounded prompt, invoke the upstream generator, persist both turns
// atomically. It holds no per-user state of its own, so replicas are safe.
type Orchestrator struct {
	store        transcript.Store
	profiles     profile.Store
	invoker      *upstream.Invoker
	instructions string
	log          *zap.SugaredLogger
	metrics      *observability.Metrics
}

func New(store transcript.Store, profiles profile.Store, invoker *upstream.Invoker, instructions string, log *zap.SugaredLogger, metrics *observability.Metrics) *Orchestrator {
	if strings.TrimSpace(instructions) == "" {
		instructions = prompt.DefaultInstructions
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		store:        store,
		profiles:     profiles,
		invoker:      invoker,
		instructions: instructions,
		log:          log,
		metrics:      metrics,
	}
}

// Exchange performs one user-message round trip. On upstream failure the
// transcript is left untouched: the pending user turn is only persisted
// together with the model reply, in a single atomic append. A persistence
// failure after a successful generation fails the whole exchange; the reply
// is logged but not returned, so the caller can retry against a consistent
// transcript.
func (o *Orchestrator) Exchange(ctx context.Context, owner, message string) (Result, error) {
	start := time.Now()

	if strings.TrimSpace(message) == "" {
		o.metrics.Exchanges.WithLabelValues("invalid_message").Inc()
		return Result{}, ErrEmptyMessage
	}
	if o.invoker == nil {
		o.metrics.Exchanges.WithLabelValues("not_configured").Inc()
		return Result{}, ErrNotConfigured
	}

	tr, err := o.store.LoadOrCreate(ctx, owner)
	if err != nil {
		o.metrics.ObserveExchange("persistence_error", time.Since(start))
		return Result{}, fmt.Errorf("load transcript: %w", err)
	}

	facts := o.factsFor(ctx, owner)
	built, userTurn := prompt.Build(o.instructions, facts, tr, message)
	userTurn.CreatedAt = time.Now().UTC()

	reply, err := o.invoker.Generate(ctx, built)
	if err != nil {
		var ue *upstream.Error
		if errors.As(err, &ue) {
			o.metrics.ProviderErrors.WithLabelValues(string(ue.Kind)).Inc()
		}
		o.metrics.ObserveExchange("upstream_error", time.Since(start))
		o.log.Warnw("upstream generation failed", "owner", owner, "error", err)
		return Result{}, fmt.Errorf("generate reply: %w", err)
	}

	modelTurn := transcript.Turn{
		Role:      transcript.RoleModel,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	updated, err := o.store.Append(ctx, owner, []transcript.Turn{userTurn, modelTurn})
	if err != nil {
		o.metrics.ObserveExchange("persistence_error", time.Since(start))
		o.log.Errorw("exchange not persisted", "owner", owner, "reply_chars", len(reply), "error", err)
		return Result{}, fmt.Errorf("persist exchange: %w", err)
	}

	o.metrics.TurnsAppended.Add(2)
	o.metrics.ObserveExchange("ok", time.Since(start))
	return Result{Reply: reply, Transcript: updated}, nil
}

// History returns the stored transcript, or an empty one when the owner has
// never chatted. "No history" is not an error.
func (o *Orchestrator) History(ctx context.Context, owner string) (transcript.Transcript, error) {
	tr, err := o.store.Load(ctx, owner)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			return transcript.Transcript{Owner: owner}, nil
		}
		return transcript.Transcript{}, fmt.Errorf("load history: %w", err)
	}
	return tr, nil
}

// Reset deletes the owner's transcript. Resetting an absent transcript
// succeeds.
func (o *Orchestrator) Reset(ctx context.Context, owner string) error {
	if err := o.store.Delete(ctx, owner); err != nil {
		return fmt.Errorf("reset transcript: %w", err)
	}
	o.log.Infow("transcript reset", "owner", owner)
	return nil
}

// factsFor fetches profile facts. The facts only enrich the prompt, so a
// missing profile or a profile store fault degrades to empty facts instead
// of failing the exchange.
func (o *Orchestrator) factsFor(ctx context.Context, owner string) profile.Facts {
	rec, err := o.profiles.Get(ctx, owner)
	if errors.Is(err, profile.ErrNotFound) {
		return profile.Facts{}
	}
	if err != nil {
		o.log.Warnw("profile lookup failed, continuing without facts", "owner", owner, "error", err)
		return profile.Facts{}
	}
	return rec.Facts()
}
