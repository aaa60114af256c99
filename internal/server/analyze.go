package server

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	core "github.com/rcabanilla/gridseer/internal/agent/core"
)

// Analyzer is the handler's view of the orchestrator
type Analyzer interface {
	Analyze(ctx context.Context, question string) (core.AnalysisResult, error)
}

// AnalyzeHandler serves POST /analyze
type AnalyzeHandler struct {
	Orchestrator Analyzer
	Cache        *ResponseCache
	Logger       *log.Logger
}

type analyzeRequest struct {
	Question string `json:"question"`
}

type analyzeResponse struct {
	Question string         `json:"question"`
	Forecast string         `json:"forecast"`
	Sources  analyzeSources `json:"sources"`
	Rounds   int            `json:"rounds"`
	Model    string         `json:"model,omitempty"`
}

type analyzeSources struct {
	Websites []sourceEntry `json:"websites"`
}

type sourceEntry struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

func (h *AnalyzeHandler) Register(e *echo.Echo) {
	e.POST("/analyze", h.Analyze)
}

// Analyze runs one analysis for the posted question
func (h *AnalyzeHandler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	ctx := c.Request().Context()
	if result, ok := h.Cache.Get(ctx, req.Question); ok {
		return c.JSON(http.StatusOK, toResponse(result))
	}

	result, err := h.Orchestrator.Analyze(ctx, req.Question)
	if err != nil {
		// fault details stay in the log; the client gets a generic message
		h.Logger.Printf("analysis failed for %q: %v", req.Question, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.Cache.Set(ctx, req.Question, result)
	return c.JSON(http.StatusOK, toResponse(result))
}

func toResponse(result core.AnalysisResult) analyzeResponse {
	websites := make([]sourceEntry, len(result.Sources))
	for i, s := range result.Sources {
		websites[i] = sourceEntry{Title: s.Title, URL: s.URL, Source: s.Origin}
	}
	return analyzeResponse{
		Question: result.Question,
		Forecast: result.Forecast,
		Sources:  analyzeSources{Websites: websites},
		Rounds:   result.Rounds,
		Model:    result.ModelUsed,
	}
}
