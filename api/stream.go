package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/broadcast"
)

const (
	keepAliveInterval = 25 * time.Second
	socketWriteWait   = 5 * time.Second
	maxSocketMessage  = 4 << 10
)

func nextConnID(kind string) string {
	return kind + "-" + uuid.NewString()
}

// streamProject streams the events of one project as server-sent events.
// Nothing historical is replayed; clients refetch the task list on connect.
func streamProject(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		ctx := c.Request().Context()
		projectID := c.Param("id")
		if err := d.Projects.Authorize(ctx, userID, projectID); err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}

		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)

		sub := broadcast.NewSubscriber(nextConnID("sse"), d.MailboxSize)
		d.Hub.Subscribe(projectID, sub)
		defer d.Hub.Disconnect(sub)
		logger := d.Logger.WithFields(log.Fields{"project": projectID, "user": userID, "conn": sub.ID()})
		logger.Debug("stream opened")
		defer logger.Debug("stream closed")

		if _, err := c.Response().Write([]byte(": connected\n\n")); err != nil {
			return nil
		}
		flusher.Flush()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sub.Done():
				return nil
			case <-ticker.C:
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
			case data := <-sub.Events():
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
			}
			flusher.Flush()
		}
	}
}

// socketMessage is exchanged with websocket clients. Clients send
// join-project and leave-project; the server answers with joined, left or
// error. Task events are sent as their own JSON objects.
type socketMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
	Message   string `json:"message,omitempty"`
}

const (
	msgJoinProject  = "join-project"
	msgLeaveProject = "leave-project"
	msgJoined       = "joined"
	msgLeft         = "left"
	msgError        = "error"
)

// projectSocket upgrades to a websocket joined to the project in the path.
// Further projects can be joined over the same connection.
func projectSocket(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, d.Auth)
		if err != nil {
			return unauthorized(c, err)
		}
		projectID := c.Param("id")
		if err := d.Projects.Authorize(c.Request().Context(), userID, projectID); err != nil {
			_, err = respondError(c, d.Logger, err)
			return err
		}

		opts := &websocket.AcceptOptions{OriginPatterns: d.WSOriginPatterns}
		conn, err := websocket.Accept(c.Response(), c.Request(), opts)
		if err != nil {
			d.Logger.WithError(err).Warn("websocket accept")
			return nil
		}
		defer conn.CloseNow()
		conn.SetReadLimit(maxSocketMessage)

		sub := broadcast.NewSubscriber(nextConnID("ws"), d.MailboxSize)
		d.Hub.Subscribe(projectID, sub)
		defer d.Hub.Disconnect(sub)
		logger := d.Logger.WithFields(log.Fields{"user": userID, "conn": sub.ID()})
		logger.WithField("project", projectID).Debug("socket opened")

		ctx, cancel := context.WithCancel(c.Request().Context())
		readerDone := make(chan struct{})
		go func() {
			defer close(readerDone)
			defer cancel()
			readSocket(ctx, conn, d, userID, sub, logger)
		}()
		// the reader may still be joining rooms; stop it before Disconnect runs
		defer func() {
			cancel()
			<-readerDone
		}()

		writeSocket(ctx, conn, socketMessage{Type: msgJoined, ProjectID: projectID})
		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				logger.Debug("socket closed")
				return nil
			case <-sub.Done():
				conn.Close(websocket.StatusGoingAway, "")
				return nil
			case data := <-sub.Events():
				wctx, wcancel := context.WithTimeout(ctx, socketWriteWait)
				err := conn.Write(wctx, websocket.MessageText, data)
				wcancel()
				if err != nil {
					logger.WithError(err).Debug("socket write failed")
					return nil
				}
			}
		}
	}
}

func readSocket(ctx context.Context, conn *websocket.Conn, d Deps, userID string, sub *broadcast.Subscriber, logger *log.Entry) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg socketMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			writeSocket(ctx, conn, socketMessage{Type: msgError, Message: "invalid message"})
			continue
		}
		if msg.Type != msgJoinProject && msg.Type != msgLeaveProject {
			writeSocket(ctx, conn, socketMessage{Type: msgError, Message: "unknown message type"})
			continue
		}
		if msg.ProjectID == "" {
			writeSocket(ctx, conn, socketMessage{Type: msgError, Message: "projectId is required"})
			continue
		}
		switch msg.Type {
		case msgJoinProject:
			if err := d.Projects.Authorize(ctx, userID, msg.ProjectID); err != nil {
				_, text := errorStatus(err)
				writeSocket(ctx, conn, socketMessage{Type: msgError, ProjectID: msg.ProjectID, Message: text})
				continue
			}
			d.Hub.Subscribe(msg.ProjectID, sub)
			logger.WithField("project", msg.ProjectID).Debug("socket joined project")
			writeSocket(ctx, conn, socketMessage{Type: msgJoined, ProjectID: msg.ProjectID})
		case msgLeaveProject:
			d.Hub.Unsubscribe(msg.ProjectID, sub)
			writeSocket(ctx, conn, socketMessage{Type: msgLeft, ProjectID: msg.ProjectID})
		}
	}
}

func writeSocket(ctx context.Context, conn *websocket.Conn, msg socketMessage) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, socketWriteWait)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, data)
}
