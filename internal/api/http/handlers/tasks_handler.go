package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-board/internal/api/dto"
	"github.com/spec-kit/task-board/internal/auth"
	"github.com/spec-kit/task-board/internal/domain"
	"github.com/spec-kit/task-board/internal/service"
	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

// TasksHandler manages task endpoints.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// List GET /api/tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	opts := parseListOptions(c)
	if assignedTo := c.Query("assignedTo"); assignedTo != "" {
		opts.AssignedTo = &assignedTo
	}
	if createdBy := c.Query("createdBy"); createdBy != "" {
		opts.CreatedBy = &createdBy
	}
	if search := c.Query("search"); search != "" {
		opts.Search = &search
	}
	opts.SortBy = c.Query("sortBy", "createdAt")
	opts.SortOrder = c.Query("sortOrder", "desc")

	page, err := h.service.ListTasks(c.Context(), principal.Actor(), opts)
	if err != nil {
		return err
	}
	return c.JSON(taskPageResponse(page))
}

// MyTasks GET /api/tasks/my-tasks.
func (h *TasksHandler) MyTasks(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	page, err := h.service.ListAssignedTasks(c.Context(), principal.Actor(), parseListOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(taskPageResponse(page))
}

// CreatedByMe GET /api/tasks/created-by-me.
func (h *TasksHandler) CreatedByMe(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	page, err := h.service.ListCreatedTasks(c.Context(), principal.Actor(), parseListOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(taskPageResponse(page))
}

// Get GET /api/tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	task, logs, err := h.service.GetTask(c.Context(), principal.Actor(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"task":         dto.NewTaskResponse(task),
		"activityLogs": dto.NewActivityLogResponses(logs),
	})
}

// Create POST /api/tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	input := service.TaskCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
		Tags:        req.Tags,
	}
	task, err := h.service.CreateTask(c.Context(), principal.Actor(), c.IP(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Task created successfully",
		"task":    dto.NewTaskResponse(task),
	})
}

// Update PUT /api/tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	task, err := h.service.UpdateTask(c.Context(), principal.Actor(), c.IP(), c.Params("id"), req.ToUpdate())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task updated successfully",
		"task":    dto.NewTaskResponse(task),
	})
}

// UpdateStatus PATCH /api/tasks/:id/status.
func (h *TasksHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateTaskStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	task, err := h.service.UpdateTaskStatus(c.Context(), principal.Actor(), c.IP(), c.Params("id"), domain.TaskStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task status updated successfully",
		"task":    dto.NewTaskResponse(task),
	})
}

// Delete DELETE /api/tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.service.DeleteTask(c.Context(), principal.Actor(), c.IP(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task deleted successfully",
	})
}

// Stats GET /api/tasks/stats.
func (h *TasksHandler) Stats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	stats, err := h.service.GetTaskStats(c.Context(), principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stats": dto.TaskStatsResponse{
			Total:      stats.Total,
			ByStatus:   stats.ByStatus,
			ByPriority: stats.ByPriority,
		},
	})
}

// ActivityLogs GET /api/tasks/activity-logs.
func (h *TasksHandler) ActivityLogs(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var taskID *string
	if id := c.Query("taskId"); id != "" {
		taskID = &id
	}
	page := parseInt(c.Query("page"), 1)
	limit := parseInt(c.Query("limit"), 20)

	logs, err := h.service.GetActivityLogs(c.Context(), principal.Actor(), taskID, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"count":       len(logs.Logs),
		"total":       logs.Total,
		"totalPages":  logs.TotalPages,
		"currentPage": logs.CurrentPage,
		"logs":        dto.NewActivityLogResponses(logs.Logs),
	})
}

func parseListOptions(c *fiber.Ctx) service.TaskListOptions {
	opts := service.TaskListOptions{
		Page:  parseInt(c.Query("page"), 1),
		Limit: parseInt(c.Query("limit"), 10),
	}
	if status := c.Query("status"); status != "" {
		value := domain.TaskStatus(status)
		opts.Status = &value
	}
	if priority := c.Query("priority"); priority != "" {
		value := domain.TaskPriority(priority)
		opts.Priority = &value
	}
	return opts
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func taskPageResponse(page *service.TaskPage) fiber.Map {
	return fiber.Map{
		"success":     true,
		"count":       len(page.Tasks),
		"total":       page.Total,
		"totalPages":  page.TotalPages,
		"currentPage": page.CurrentPage,
		"tasks":       dto.NewTaskResponses(page.Tasks),
	}
}
