// Package pipeline provides the sales pipeline bounded context module.
// This file defines the module that encapsulates all pipeline setup and
// route registration.
package pipeline

import (
	apphttp "pipeline_backend/internal/http"
	"pipeline_backend/internal/pipeline/cadence"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/handler"
	"pipeline_backend/internal/pipeline/reactivation"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/taskflow"
	"pipeline_backend/internal/pipeline/transition"
	"pipeline_backend/platform/config"
	"pipeline_backend/platform/events"
	"pipeline_backend/platform/logger"
	"pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SweepEnqueuer is the queue hook the sweep endpoint uses; the composition
// root passes the scheduler client, or nil to run sweeps inline.
type SweepEnqueuer = handler.SweepEnqueuer

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	transitions  *transition.Service
	cadences     *cadence.Engine
	tasks        *taskflow.Coordinator
	reactivation *reactivation.Service
}

// NewModule creates and initializes the pipeline module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger, sweeps SweepEnqueuer) *Module {
	repo := repository.New(pool)

	cadences := cadence.New(repo, eventBus, log)
	transitions := transition.New(repo, cadences, BandsFromConfig(cfg), eventBus, log)
	tasks := taskflow.New(repo, transitions, eventBus, log)
	react := reactivation.New(repo, eventBus, log, cfg)

	return &Module{
		handler:      handler.New(transitions, cadences, tasks, react, sweeps, repo, val),
		transitions:  transitions,
		cadences:     cadences,
		tasks:        tasks,
		reactivation: react,
	}
}

// Name returns the module identifier for logging.
func (m *Module) Name() string { return "pipeline" }

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/pipeline"))
}

// Reactivation exposes the sweep service for the background worker.
func (m *Module) Reactivation() *reactivation.Service { return m.reactivation }

// BandsFromConfig builds the probability model from configuration, falling
// back to the historical defaults for any missing group.
func BandsFromConfig(cfg config.ProbabilityConfig) domain.Bands {
	if cfg == nil {
		return domain.DefaultBands()
	}
	bands := domain.DefaultBands()
	if base, span, single := cfg.GetProbabilityBand("open"); base != 0 || span != 0 || single != 0 {
		bands.Open = domain.Band{Base: base, Span: span, Single: single}
	}
	if base, span, single := cfg.GetProbabilityBand("follow_up"); base != 0 || span != 0 || single != 0 {
		bands.FollowUp = domain.Band{Base: base, Span: span, Single: single}
	}
	if base, span, single := cfg.GetProbabilityBand("scheduling"); base != 0 || span != 0 || single != 0 {
		bands.Scheduling = domain.Band{Base: base, Span: span, Single: single}
	}
	return bands
}
