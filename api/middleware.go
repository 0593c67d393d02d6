package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// GzipRequestMiddleware decompresses gzip-encoded request bodies so handlers
// see plain JSON. Invalid gzip payloads are rejected with a 400 response.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}
			gr, err := gzip.NewReader(req.Body)
			if err != nil {
				_ = req.Body.Close()
				return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid gzip body"})
			}
			req.Body = &gzipReadCloser{Reader: gr, body: req.Body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for header != "" {
		var enc string
		enc, header, _ = strings.Cut(header, ",")
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// RequestLogger logs one structured entry per request.
func RequestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"route":      v.RoutePath,
				"status":     v.Status,
				"latency_ms": durationToMillis(v.Latency),
				"remote_ip":  v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	})
}

// SonicSerializer encodes echo responses and binds request bodies with sonic.
type SonicSerializer struct{}

func (SonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (SonicSerializer) Deserialize(c echo.Context, i any) error {
	err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
	}
	return nil
}
