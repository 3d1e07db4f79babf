package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/backend"
	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/domains"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
	"github.com/GriffinCanCode/jobscan/internal/tabs"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

type scanRequest struct {
	URL   string `json:"url"`
	HTML  string `json:"html"`
	Track bool   `json:"track"`
}

type frameRequest struct {
	ID   string `json:"id"`
	Top  bool   `json:"top"`
	URL  string `json:"url"`
	HTML string `json:"html"`
}

type framesRequest struct {
	Frames []frameRequest `json:"frames"`
	Track  bool           `json:"track"`
}

type scanResponse struct {
	Scan    *types.PageScan `json:"scan"`
	Session *types.Session  `json:"session,omitempty"`
	Outcome session.Outcome `json:"outcome,omitempty"`
}

type dispatchRequest struct {
	Domain    string `json:"domain" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

type rulesRequest struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

type navigateRequest struct {
	URL string `json:"url"`
}

type applyRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type forceApplyRequest struct {
	ResultRef string `json:"result_ref" binding:"required"`
	JobID     string `json:"job_id" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"sessions": len(s.deps.Sessions.List(c.Request.Context())),
		"tabs":     s.deps.Tabs.Len(),
	}
	if s.deps.Backend != nil {
		body["backend"] = gin.H{"breaker": s.deps.Backend.Breaker().State().String()}
	}
	c.JSON(http.StatusOK, body)
}

// scanPage accepts either a JSON scanRequest or a raw HTML body with the
// page URL in ?url= and tracking in ?track=.
func (s *Server) scanPage(c *gin.Context) {
	req, ok := s.readScanRequest(c)
	if !ok {
		return
	}

	doc, status, err := s.loadDocument([]byte(req.HTML), req.URL)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	scan := s.deps.Scanner.ScanDocument(doc)
	if scan.Empty() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": scanner.ErrNoData.Error()})
		return
	}
	c.JSON(http.StatusOK, s.respond(c, scan, req.Track))
}

func (s *Server) scanFrames(c *gin.Context) {
	var req framesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if len(req.Frames) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frames required"})
		return
	}

	frames := make([]scanner.Frame, 0, len(req.Frames))
	for i, f := range req.Frames {
		id := f.ID
		if id == "" {
			id = "frame_" + strconv.Itoa(i)
		}
		doc, _, err := s.loadDocument([]byte(f.HTML), f.URL)
		if err != nil {
			s.logger.Debug("skipping frame", zap.String("frame", id), zap.Error(err))
			continue
		}
		frames = append(frames, scanner.Frame{ID: id, Top: f.Top, Source: scanner.StaticSource{Doc: doc}})
	}

	scan := s.deps.Scanner.ScanFrames(c.Request.Context(), frames)
	if scan == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": scanner.ErrNoData.Error()})
		return
	}
	c.JSON(http.StatusOK, s.respond(c, scan, req.Track))
}

func (s *Server) respond(c *gin.Context, scan *types.PageScan, track bool) scanResponse {
	resp := scanResponse{Scan: scan}
	if track {
		resp.Session, resp.Outcome = s.deps.Sessions.Track(c.Request.Context(), scan)
	}
	return resp
}

func (s *Server) readScanRequest(c *gin.Context) (scanRequest, bool) {
	var req scanRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return req, s.bindJSON(c, &req)
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return req, false
	}
	req.HTML = string(data)
	req.URL = c.Query("url")
	req.Track, _ = strconv.ParseBool(c.Query("track"))
	return req, true
}

// loadDocument parses markup after checking it is text at all.
func (s *Server) loadDocument(data []byte, rawURL string) (*dom.Document, int, error) {
	if err := dom.Validate(data); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if mt := mimetype.Detect(data); !isText(mt) {
		return nil, http.StatusUnsupportedMediaType, errors.New("expected HTML, got " + mt.String())
	}
	doc, err := dom.Load(data, rawURL)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return doc, http.StatusOK, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/html") {
			return true
		}
	}
	return false
}

func (s *Server) bindJSON(c *gin.Context, v any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) createSession(c *gin.Context) {
	var scan types.PageScan
	if !s.bindJSON(c, &scan) {
		return
	}
	if scan.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	c.JSON(http.StatusCreated, s.deps.Sessions.Create(c.Request.Context(), &scan))
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.deps.Sessions.List(c.Request.Context())})
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) getSessionByDomain(c *gin.Context) {
	sess, ok := s.deps.Sessions.GetByDomain(c.Request.Context(), hostParam(c.Param("domain")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for domain"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.deps.Sessions.Delete(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) saveDispatch(c *gin.Context) {
	var req dispatchRequest
	if !s.bindJSON(c, &req) {
		return
	}
	d := s.deps.Sessions.SaveDispatch(c.Request.Context(), hostParam(req.Domain), req.SessionID)
	c.JSON(http.StatusCreated, d)
}

func (s *Server) getDispatch(c *gin.Context) {
	host := c.Query("domain")
	if host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain required"})
		return
	}
	d, ok := s.deps.Sessions.GetDispatch(c.Request.Context(), hostParam(host))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending dispatch"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) clearDispatch(c *gin.Context) {
	s.deps.Sessions.ClearDispatch(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (s *Server) getDomainRules(c *gin.Context) {
	if s.deps.Policy == nil {
		c.JSON(http.StatusOK, rulesRequest{Allow: []string{}, Deny: []string{}})
		return
	}
	allow, deny := s.deps.Policy.Rules()
	c.JSON(http.StatusOK, rulesRequest{Allow: allow, Deny: deny})
}

func (s *Server) setDomainRules(c *gin.Context) {
	var req rulesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if s.deps.Policy == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "domain policy disabled"})
		return
	}
	if err := s.deps.Policy.Set(req.Allow, req.Deny); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.getDomainRules(c)
}

func (s *Server) checkDomain(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host required"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Policy.Check(hostParam(host)))
}

func (s *Server) listTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": s.deps.Tabs.List()})
}

func (s *Server) attachOverlay(c *gin.Context) {
	var o tabs.Overlay
	if !s.bindJSON(c, &o) {
		return
	}
	o.TabID = c.Param("id")
	c.JSON(http.StatusOK, s.deps.Tabs.Attach(o))
}

func (s *Server) closeTab(c *gin.Context) {
	s.deps.Tabs.Close(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) navigateTab(c *gin.Context) {
	var req navigateRequest
	if !s.bindJSON(c, &req) {
		return
	}
	_, cleared := s.deps.Tabs.Navigate(c.Param("id"), req.URL)
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (s *Server) apply(c *gin.Context) {
	if s.deps.Backend == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matching backend not configured"})
		return
	}
	var req applyRequest
	if !s.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	sess, ok := s.deps.Sessions.Get(ctx, req.SessionID)
	if !ok || sess.LastScan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var fields []backend.FieldValue
	outcome, err := s.deps.Backend.Apply(ctx, backend.PayloadFrom(sess.LastScan, sess), func(fv []backend.FieldValue) {
		fields = fv
	})
	if err != nil {
		s.logger.Warn("apply failed", zap.String("session", sess.ID), zap.Error(err))
		body := gin.H{"error": err.Error(), "immediate_fields": fields}
		c.JSON(backendStatus(err), body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"initiation":       outcome.Initiation,
		"immediate_fields": fields,
		"result":           outcome.Result,
	})
}

func (s *Server) forceApply(c *gin.Context) {
	if s.deps.Backend == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matching backend not configured"})
		return
	}
	var req forceApplyRequest
	if !s.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	jobID, err := s.deps.Backend.ForceApply(ctx, req.ResultRef, req.JobID)
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": err.Error()})
		return
	}
	result, err := s.deps.Backend.WaitForResult(ctx, jobID)
	if err != nil {
		c.JSON(backendStatus(err), gin.H{"error": err.Error(), "job_id": jobID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "result": result})
}

func (s *Server) listHistory(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusOK, gin.H{"artifacts": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": s.deps.History.List(c.Request.Context())})
}

// hostParam accepts a bare host or a full URL.
func hostParam(v string) string {
	if strings.Contains(v, "://") {
		return session.HostOf(v)
	}
	return domains.NormalizeHost(v)
}

func backendStatus(err error) int {
	var se *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrUnavailable), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, backend.ErrJobFailed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError:
		return se.StatusCode
	default:
		return http.StatusBadGateway
	}
}
