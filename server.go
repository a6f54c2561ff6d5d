package main

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vrewexport/internal/metrics"
	"vrewexport/internal/service"
)

type exporter interface {
	Export(ctx context.Context, req service.Request) (*service.Result, error)
}

type routerDeps struct {
	Exporter      exporter
	Tool          einotool.InvokableTool
	AllowOrigins  []string
	ExportTimeout time.Duration
	// MaxBodyBytes caps request bodies; inline data: assets make them large.
	MaxBodyBytes int64
	Log          logrus.FieldLogger
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Log))
	router.Use(cors.New(corsConfig(d.AllowOrigins)))

	router.POST("/api/export-vrew", limitBody(d.MaxBodyBytes), handleExport(d.Exporter, d.ExportTimeout))
	router.GET("/api/export-vrew/plan", handlePlan())
	if d.Tool != nil {
		router.POST("/tools/vrew-export", limitBody(d.MaxBodyBytes), handleTool(d.Tool, d.ExportTimeout))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.ExposeHeaders = []string{"Content-Disposition", "X-Vrew-Windows", "X-Vrew-Failed-Windows"}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("request")
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// bodyError renders a body read failure, 413 when the cap was hit.
func bodyError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "request body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
			"stage": service.StageDecode,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "stage": service.StageDecode})
}

// attachment builds a Content-Disposition value; non-ASCII names use the
// RFC 2231 filename* form.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// handleExport returns the archive as a download, or {"error","stage"}.
func handleExport(exp exporter, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			bodyError(c, err)
			return
		}

		ctx, cancel := withTimeout(c.Request.Context(), timeout)
		defer cancel()

		res, err := exp.Export(ctx, req)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrNoScenes) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error(), "stage": service.StageOf(err)})
			return
		}

		c.Header("Content-Disposition", attachment(res.FileName))
		c.Header("X-Vrew-Windows", strconv.Itoa(res.Windows))
		c.Header("X-Vrew-Failed-Windows", strconv.Itoa(res.FailedWindows))
		c.Data(http.StatusOK, res.ContentType, res.Data)
	}
}

type planWindow struct {
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Scenes int    `json:"scenes"`
	File   string `json:"file"`
}

// handlePlan previews how a storyboard would be split without fetching anything.
func handlePlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		total, err := strconv.Atoi(c.Query("scenes"))
		if err != nil || total <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scenes must be a positive integer"})
			return
		}
		batch := 0
		if s := c.Query("batchSize"); s != "" {
			if batch, err = strconv.Atoi(s); err != nil || batch < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "batchSize must be a non-negative integer"})
				return
			}
		}

		windows := service.PlanWindows(total, batch)
		out := make([]planWindow, 0, len(windows))
		for _, w := range windows {
			out = append(out, planWindow{Index: w.Index, Start: w.Start, End: w.End, Scenes: w.Len(), File: w.FileName()})
		}
		c.JSON(http.StatusOK, gin.H{
			"scenes":    total,
			"batchSize": batch,
			"download":  service.DownloadName(service.DefaultTitle(time.Now()), len(windows)),
			"windows":   out,
		})
	}
}

// handleTool passes the raw body to the eino tool as its JSON arguments.
func handleTool(tool einotool.InvokableTool, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			bodyError(c, err)
			return
		}
		if len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		ctx, cancel := withTimeout(c.Request.Context(), timeout)
		defer cancel()

		result, err := tool.InvokableRun(ctx, string(body))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stage": service.StageOf(err)})
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(result))
	}
}
