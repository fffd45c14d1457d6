package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/config"
	"github.com/fincaops/incident-service/internal/domain"
)

// Intent enumerates what an inbound text is trying to do.
type Intent string

const (
	IntentNewIncident Intent = "NEW_INCIDENT"
	IntentProvideInfo Intent = "PROVIDE_INFO"
	IntentCheckStatus Intent = "CHECK_STATUS"
	IntentOther       Intent = "OTHER"
)

// ExtractedFields holds structured data pulled from free text.
type ExtractedFields struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

// Classification is the gateway's judgement over one text, optionally
// against the summary of an existing ticket.
type Classification struct {
	Intent        Intent          `json:"intent"`
	Category      domain.Category `json:"category"`
	Urgency       domain.Urgency  `json:"urgency"`
	Summary       string          `json:"summary"`
	Extracted     ExtractedFields `json:"extracted_fields"`
	SameAsContext *bool           `json:"same_as_context,omitempty"`
	Confidence    float64         `json:"confidence"`
}

// Classifier turns raw incident text into a Classification. priorContext,
// when non-empty, is the summary of an existing open ticket; implementations
// must then populate SameAsContext with a same-problem/different-problem
// judgement.
type Classifier interface {
	Classify(ctx context.Context, text, priorContext string) (*Classification, error)
}

// NewClassifier builds the configured gateway: the remote endpoint with a
// keyword fallback when one is configured, the keyword classifier alone
// otherwise.
func NewClassifier(cfg config.ClassifierConfig, logger *zap.Logger) Classifier {
	keyword := NewKeywordClassifier()
	if cfg.Endpoint == "" {
		logger.Info("classifier endpoint not configured; using keyword classifier")
		return keyword
	}
	return &fallbackClassifier{
		primary:  NewHTTPClassifier(cfg),
		fallback: keyword,
		logger:   logger,
	}
}

// fallbackClassifier tries the primary and falls back on error, mirroring
// how intake keeps working when the external model is down. Continuation
// judgements do NOT fall back: SameAsContext from keywords alone is too
// weak a signal to merge tickets on, so the error propagates and the
// resolver fails open.
type fallbackClassifier struct {
	primary  Classifier
	fallback Classifier
	logger   *zap.Logger
}

func (c *fallbackClassifier) Classify(ctx context.Context, text, priorContext string) (*Classification, error) {
	result, err := c.primary.Classify(ctx, text, priorContext)
	if err == nil {
		return result, nil
	}
	if priorContext != "" {
		return nil, err
	}
	c.logger.Warn("primary classifier failed, using keyword fallback", zap.Error(err))
	return c.fallback.Classify(ctx, text, priorContext)
}
