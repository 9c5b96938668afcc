package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/internal/metrics"
	"github.com/lovendo/analytics-service/internal/models"
)

// insightWindow is how far back the activity summary fed to the model reaches.
const insightWindow = 7 * 24 * time.Hour

// GenerateInsights summarizes recent activity, asks the configured LLM
// for findings, and parses its response. Insights are advisory: a
// malformed model response yields an empty result, not an error.
func (s *Service) GenerateInsights(ctx context.Context) ([]models.Insight, error) {
	if s.llm == nil {
		return nil, ErrInsightsUnavailable
	}

	since := s.now().UTC().Add(-insightWindow)
	summary, err := s.Summarize(ctx, since)
	if err != nil {
		metrics.InsightRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("building activity summary: %w", err)
	}

	resp, err := s.llm.Complete(ctx, buildInsightPrompt(summary))
	if err != nil {
		metrics.InsightRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("llm completion: %w", err)
	}

	insights, err := parseInsights(resp)
	if err != nil {
		metrics.InsightRequests.WithLabelValues("parse_error").Inc()
		s.logger.Warn("discarding unparseable insight response", logging.Error(err))
		return []models.Insight{}, nil
	}
	metrics.InsightRequests.WithLabelValues("ok").Inc()
	return insights, nil
}

func buildInsightPrompt(summary *Summary) string {
	var b strings.Builder
	b.WriteString("You are a product analytics assistant. Given the activity summary below, ")
	b.WriteString("identify notable trends, anomalies, and opportunities.\n\n")
	fmt.Fprintf(&b, "Window start: %s\n", summary.Since.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total events: %d\n", summary.TotalEvents)
	fmt.Fprintf(&b, "Distinct users: %d\n", summary.DistinctUsers)
	b.WriteString("Top events:\n")
	for _, e := range summary.TopEvents {
		fmt.Fprintf(&b, "  %s: %d\n", e.Name, e.Count)
	}
	b.WriteString("\nRespond with ONLY a JSON array. Each element must have the fields: ")
	b.WriteString(`"type" (trend|anomaly|opportunity), "title", "description", `)
	b.WriteString(`"impact" (high|medium|low), "confidence" (0..1), "recommendations" (array of strings).`)
	return b.String()
}

// parseInsights extracts the first JSON array from the model response.
// Models wrap output in prose or code fences often enough that strict
// parsing of the whole body is not workable.
func parseInsights(resp string) ([]models.Insight, error) {
	start := strings.Index(resp, "[")
	end := strings.LastIndex(resp, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model response")
	}
	var insights []models.Insight
	if err := json.Unmarshal([]byte(resp[start:end+1]), &insights); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	return insights, nil
}
