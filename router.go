package main

import (
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"strings"
	"time"

	"github.com/ataraxie68/pixelscope/engine"
	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	timeout "github.com/vearne/gin-timeout"
)

type Router struct {
	*appbase.Router
	config        *Config
	engine        *engine.Engine
	backupsLogger *BackupLogger
}

func NewRouter(appContext *Context) *Router {
	authTokens := strings.Split(appContext.config.AuthTokens, ",")
	tokenSecrets := strings.Split(appContext.config.TokenSecrets, ",")
	base := appbase.NewRouterBase(authTokens, tokenSecrets, []string{
		"/health",
	})

	router := &Router{
		Router:        base,
		config:        appContext.config,
		engine:        appContext.engine,
		backupsLogger: appContext.backupsLogger,
	}
	ginEngine := router.Engine()
	fast := ginEngine.Group("")
	fast.Use(timeout.Timeout(timeout.WithTimeout(5 * time.Second)))
	fast.POST("/v1/flow/request", router.RequestHandler)
	fast.POST("/v1/flow/response", router.ResponseHandler)

	ginEngine.GET("/stats", router.StatsHandler)
	ginEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "pass"})
	})

	ginEngine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	ginEngine.GET("/debug/pprof/heap", gin.WrapF(pprof.Handler("heap").ServeHTTP))
	ginEngine.GET("/debug/pprof/goroutine", gin.WrapF(pprof.Handler("goroutine").ServeHTTP))
	ginEngine.GET("/debug/pprof/block", gin.WrapF(pprof.Handler("block").ServeHTTP))
	ginEngine.GET("/debug/pprof/threadcreate", gin.WrapF(pprof.Handler("threadcreate").ServeHTTP))
	ginEngine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Handler("cmdline").ServeHTTP))
	ginEngine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Handler("symbol").ServeHTTP))
	ginEngine.GET("/debug/pprof/trace", gin.WrapF(pprof.Handler("trace").ServeHTTP))
	ginEngine.GET("/debug/pprof/mutex", gin.WrapF(pprof.Handler("mutex").ServeHTTP))
	ginEngine.GET("/debug/pprof", gin.WrapF(pprof.Index))

	return router
}

// RequestHandler accepts the request phase of an intercepted flow and runs
// it through the detection pipeline. Processing errors never fail the
// interception layer: the reply is 200 as long as the payload parses.
func (r *Router) RequestHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = r.ResponseError(c, http.StatusBadRequest, "error reading HTTP body", false, err, "")
		FlowHandlerRequests("request", "error", "error reading HTTP body").Inc()
		return
	}
	var req engine.RequestInfo
	err = jsoniter.Unmarshal(body, &req)
	if err != nil {
		_ = r.ResponseError(c, http.StatusBadRequest, "error parsing flow payload", false, err, "")
		FlowHandlerRequests("request", "error", "error parsing flow payload").Inc()
		return
	}
	normalizeRequest(&req)
	if req.Host == "" {
		_ = r.ResponseError(c, http.StatusUnprocessableEntity, "malformed flow payload", false, nil, "flow request without host or url")
		FlowHandlerRequests("request", "error", "malformed flow payload").Inc()
		return
	}
	_ = r.backupsLogger.Log("requests", body)
	r.engine.ProcessRequest(&req)
	FlowHandlerRequests("request", "success", "").Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ResponseHandler accepts the response phase of a flow and runs correlation
// and cookie monitoring.
func (r *Router) ResponseHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = r.ResponseError(c, http.StatusBadRequest, "error reading HTTP body", false, err, "")
		FlowHandlerRequests("response", "error", "error reading HTTP body").Inc()
		return
	}
	var resp engine.ResponseInfo
	err = jsoniter.Unmarshal(body, &resp)
	if err != nil {
		_ = r.ResponseError(c, http.StatusBadRequest, "error parsing flow payload", false, err, "")
		FlowHandlerRequests("response", "error", "error parsing flow payload").Inc()
		return
	}
	normalizeRequest(&resp.Request)
	_ = r.backupsLogger.Log("responses", body)
	r.engine.ProcessResponse(&resp)
	FlowHandlerRequests("response", "success", "").Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"detection_cache_size":  r.engine.Detector.CacheSize(),
		"pending_correlations":  r.engine.Correlator.PendingCount(),
		"registered_platforms":  r.engine.Registry.Size(),
		"detection_cache_hits":  r.engine.Detector.CacheHits.Load(),
		"detection_cache_drops": r.engine.Detector.CacheEvictions.Load(),
	})
}

// normalizeRequest fills Host and Path from URL when the interception layer
// sends only the full url.
func normalizeRequest(req *engine.RequestInfo) {
	if req.URL == "" {
		return
	}
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return
	}
	if req.Host == "" {
		req.Host = parsed.Host
	}
	if req.Path == "" {
		req.Path = parsed.Path
	}
}
