package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

const (
	maxBodySize          = 1 << 20
	headerIdempotencyKey = "Idempotency-Key"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	e.GET("/healthz", healthz(d))

	g := e.Group("/api")
	g.GET("/tasks/my-tasks", getMyTasks(d))
	g.GET("/tasks/project/:projectId", getProjectTasks(d))
	g.POST("/tasks", postTask(d))
	g.PUT("/tasks/:id", putTask(d))
	g.DELETE("/tasks/:id", deleteTask(d))

	g.POST("/projects", postProject(d))
	g.GET("/projects/my-projects", getMyProjects(d))
	g.GET("/projects/:id", getProject(d))
	g.POST("/projects/:id/members", postMember(d))
	g.GET("/projects/:id/stream", streamProject(d))
	g.GET("/projects/:id/ws", projectSocket(d))
}

type errorResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func healthz(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		if d.Health != nil {
			if err := d.Health(c.Request().Context()); err != nil {
				d.Logger.WithError(err).Warn("health check failed")
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Message: "unavailable"})
			}
		}
		return c.NoContent(http.StatusOK)
	}
}

// errorStatus maps a service error to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	var ve domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Not authorized to access this project"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

func respondError(c echo.Context, logger *log.Logger, err error) (int, error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(log.Fields{"method": c.Request().Method, "route": c.Path()}).Error("request failed")
	}
	return status, c.JSON(status, errorResponse{Message: msg})
}

func unauthorized(c echo.Context, err error) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
}

// decodeBody reads a size limited JSON body into v.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	if err := sonic.ConfigStd.NewDecoder(lr).Decode(v); err != nil {
		var ve domain.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return domain.ValidationError{Field: "body", Message: "invalid body"}
	}
	return nil
}

func getProjectTasks(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		tasks, err := d.Tasks.ListProjectTasks(c.Request().Context(), userID, c.Param("projectId"))
		if err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func getMyTasks(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		tasks, err := d.Tasks.ListUserTasks(c.Request().Context(), userID)
		if err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func postTask(d Deps) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newMutationMetrics(c.Request().Context(), d.Logger, "/api/tasks", "create")
		c.SetRequest(c.Request().WithContext(ctx))
		status := http.StatusCreated
		var failure error
		defer func() {
			metrics.Log(status, failure)
		}()

		userID, authErr := authenticate(c, d.Auth)
		if authErr != nil {
			metrics.SetErrorStage("auth")
			status = http.StatusUnauthorized
			return unauthorized(c, authErr)
		}

		var in domain.NewTask
		if decErr := decodeBody(c, &in); decErr != nil {
			metrics.SetErrorStage("decode")
			status, err = respondError(c, d.Logger, decErr)
			return err
		}
		metrics.SetProject(strings.TrimSpace(in.Project))

		key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
		if key != "" && d.Deduper != nil {
			added, dedupErr := d.Deduper.Add(ctx, userID, key)
			switch {
			case dedupErr != nil:
				d.Logger.WithError(dedupErr).Warn("idempotency check failed; processing request")
				key = ""
			case !added:
				metrics.SetErrorStage("duplicate")
				status = http.StatusConflict
				return c.JSON(status, errorResponse{Message: "Duplicate request"})
			}
		} else {
			key = ""
		}

		task, createErr := d.Tasks.CreateTask(ctx, userID, in)
		if createErr != nil {
			if key != "" {
				if rmErr := d.Deduper.Remove(ctx, userID, key); rmErr != nil {
					d.Logger.WithError(rmErr).Warn("release idempotency key")
				}
			}
			metrics.SetErrorStage("create")
			status, err = respondError(c, d.Logger, createErr)
			if status >= http.StatusInternalServerError {
				failure = createErr
			}
			return err
		}
		metrics.SetTask(task.ID)
		metrics.SetScore(task.PriorityScore)
		return c.JSON(status, task)
	}
}

func putTask(d Deps) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newMutationMetrics(c.Request().Context(), d.Logger, "/api/tasks/:id", "update")
		c.SetRequest(c.Request().WithContext(ctx))
		status := http.StatusOK
		var failure error
		defer func() {
			metrics.Log(status, failure)
		}()

		taskID := c.Param("id")
		metrics.SetTask(taskID)
		userID, authErr := authenticate(c, d.Auth)
		if authErr != nil {
			metrics.SetErrorStage("auth")
			status = http.StatusUnauthorized
			return unauthorized(c, authErr)
		}

		var patch domain.TaskPatch
		if decErr := decodeBody(c, &patch); decErr != nil {
			metrics.SetErrorStage("decode")
			status, err = respondError(c, d.Logger, decErr)
			return err
		}

		task, updErr := d.Tasks.UpdateTask(ctx, userID, taskID, patch)
		if updErr != nil {
			metrics.SetErrorStage("update")
			status, err = respondError(c, d.Logger, updErr)
			if status >= http.StatusInternalServerError {
				failure = updErr
			}
			return err
		}
		metrics.SetProject(task.Project)
		metrics.SetScore(task.PriorityScore)
		return c.JSON(status, task)
	}
}

func deleteTask(d Deps) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newMutationMetrics(c.Request().Context(), d.Logger, "/api/tasks/:id", "delete")
		c.SetRequest(c.Request().WithContext(ctx))
		status := http.StatusOK
		var failure error
		defer func() {
			metrics.Log(status, failure)
		}()

		taskID := c.Param("id")
		metrics.SetTask(taskID)
		userID, authErr := authenticate(c, d.Auth)
		if authErr != nil {
			metrics.SetErrorStage("auth")
			status = http.StatusUnauthorized
			return unauthorized(c, authErr)
		}

		if delErr := d.Tasks.DeleteTask(ctx, userID, taskID); delErr != nil {
			metrics.SetErrorStage("delete")
			status, err = respondError(c, d.Logger, delErr)
			if status >= http.StatusInternalServerError {
				failure = delErr
			}
			return err
		}
		return c.JSON(status, messageResponse{Message: "Task deleted successfully"})
	}
}

func postProject(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		var in domain.NewProject
		if err := decodeBody(c, &in); err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		p, err := d.Projects.CreateProject(c.Request().Context(), userID, in)
		if err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func getMyProjects(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		ps, err := d.Projects.ListUserProjects(c.Request().Context(), userID)
		if err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		return c.JSON(http.StatusOK, ps)
	}
}

func getProject(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		p, err := d.Projects.GetProject(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}

func postMember(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		var in domain.NewMember
		if err := decodeBody(c, &in); err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		p, err := d.Projects.AddMember(c.Request().Context(), userID, c.Param("id"), in)
		if err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}
