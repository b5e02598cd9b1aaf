// Package handler exposes the pipeline engine over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pipeline_backend/internal/pipeline/cadence"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/reactivation"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/taskflow"
	"pipeline_backend/internal/pipeline/transition"
	"pipeline_backend/internal/pipeline/transport"
	"pipeline_backend/platform/httpkit"
	"pipeline_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Reader provides the read-side queries the handler serves directly,
// without going through a service.
type Reader interface {
	repository.LeadReader
	repository.StageReader
	repository.NotificationStore
}

// SweepEnqueuer hands a sweep run to the background job queue. Implemented
// by the scheduler client; nil when no queue is configured.
type SweepEnqueuer interface {
	EnqueueReactivationSweep(ctx context.Context, runAt time.Time) error
}

type Handler struct {
	transitions  *transition.Service
	cadences     *cadence.Engine
	tasks        *taskflow.Coordinator
	reactivation *reactivation.Service
	sweeps       SweepEnqueuer
	reader       Reader
	val          *validator.Validator
}

func New(transitions *transition.Service, cadences *cadence.Engine, tasks *taskflow.Coordinator, react *reactivation.Service, sweeps SweepEnqueuer, reader Reader, val *validator.Validator) *Handler {
	return &Handler{
		transitions:  transitions,
		cadences:     cadences,
		tasks:        tasks,
		reactivation: react,
		sweeps:       sweeps,
		reader:       reader,
		val:          val,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stages", h.ListStages)
	rg.GET("/leads/:id", h.GetLead)
	rg.POST("/leads/:id/move", h.MoveLead)
	rg.POST("/leads/:id/lost", h.ConfirmLost)
	rg.POST("/leads/:id/cadence", h.ApplyCadence)
	rg.DELETE("/leads/:id/cadence", h.DeactivateCadence)
	rg.PATCH("/tasks/:id/status", h.SetTaskStatus)
	rg.GET("/notifications", h.ListNotifications)
	rg.POST("/notifications/:id/read", h.MarkNotificationRead)
	rg.POST("/sweep/run", h.RunSweep)
}

func (h *Handler) ListStages(c *gin.Context) {
	catalog, err := h.reader.GetCatalog(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	stages := catalog.Stages()
	out := make([]transport.StageResponse, 0, len(stages))
	for _, stage := range stages {
		out = append(out, transport.NewStageResponse(stage))
	}
	httpkit.OK(c, out)
}

func (h *Handler) GetLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.reader.GetLead(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.NewLeadResponse(lead))
}

func (h *Handler) MoveLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.MoveLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	outcome, err := h.transitions.MoveLead(c.Request.Context(), id, req.TargetStageID, domain.CauseUser)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	if outcome.PendingLost != nil {
		// 202: the move is accepted but requires confirmation with a
		// reason before it commits.
		httpkit.JSON(c, http.StatusAccepted, transport.MoveLeadResponse{
			PendingLostConfirmation: &transport.PendingLostConfirmation{
				LeadID:        outcome.PendingLost.LeadID,
				TargetStageID: outcome.PendingLost.TargetStageID,
			},
		})
		return
	}

	resp := transport.MoveLeadResponse{}
	lead := transport.NewLeadResponse(outcome.Lead)
	resp.Lead = &lead
	if outcome.MeetingTask != nil {
		task := transport.NewTaskResponse(*outcome.MeetingTask)
		resp.MeetingTask = &task
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ConfirmLost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ConfirmLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.transitions.ConfirmLost(c.Request.Context(), id, req.TargetStageID, req.Reason, req.ReactivationDate)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.NewLeadResponse(lead))
}

func (h *Handler) ApplyCadence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ApplyCadenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, created, err := h.cadences.Apply(c.Request.Context(), id, req.CadenceID, time.Now())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.ApplyCadenceResponse{Lead: transport.NewLeadResponse(lead)}
	for _, task := range created {
		resp.Tasks = append(resp.Tasks, transport.NewTaskResponse(task))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) DeactivateCadence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.cadences.Deactivate(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.NewLeadResponse(lead))
}

func (h *Handler) SetTaskStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	task, advance, err := h.tasks.SetTaskStatus(c.Request.Context(), id, domain.TaskStatus(req.Status))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.SetTaskStatusResponse{Task: transport.NewTaskResponse(task)}
	if advance != nil {
		resp.AutoAdvance = &transport.AutoAdvance{
			LeadID:        advance.LeadID,
			TargetStageID: advance.TargetStageID,
		}
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.reader.ListNotifications(c.Request.Context(), unreadOnly)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]transport.NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, transport.NewNotificationResponse(n))
	}
	httpkit.OK(c, out)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.reader.MarkNotificationRead(c.Request.Context(), id); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RunSweep triggers a reactivation sweep out of schedule. The scheduled run
// is idempotent against it. With a job queue configured the sweep runs on
// the worker; otherwise it runs inline in the request.
func (h *Handler) RunSweep(c *gin.Context) {
	if h.sweeps != nil {
		if err := h.sweeps.EnqueueReactivationSweep(c.Request.Context(), time.Now()); err != nil {
			httpkit.HandleError(c, err)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, transport.SweepEnqueuedResponse{Enqueued: true})
		return
	}

	result, err := h.reactivation.Sweep(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.SweepResponse{
		Candidates:           result.Candidates,
		TasksCreated:         result.TasksCreated,
		NotificationsCreated: result.NotificationsCreated,
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	httpkit.JSON(c, http.StatusOK, resp)
}
