package services

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
	"github.com/querylens-ai/querylens-engine/pkg/audit"
	"github.com/querylens-ai/querylens-engine/pkg/jobs"
	"github.com/querylens-ai/querylens-engine/pkg/models"
	"github.com/querylens-ai/querylens-engine/pkg/provider"
	"github.com/querylens-ai/querylens-engine/pkg/safety"
)

// Generator is the slice of the provider adapter this service needs.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (*provider.Result, error)
}

// GenerationService turns a natural-language question into a policy-filtered
// SQL statement: provider generation first, then both safety stages.
type GenerationService interface {
	// Generate produces a safe statement for the question, or a classified
	// error when generation is disabled, exhausted, or the output is refused.
	Generate(ctx context.Context, question, role, clientIP string) (*models.GeneratedStatement, error)

	// Validate runs a caller-supplied statement through the safety engine
	// without touching any provider.
	Validate(ctx context.Context, statement, role, clientIP string) (*models.GeneratedStatement, error)
}

type generationService struct {
	generator Generator
	engine    *safety.Engine
	cache     *redis.Client
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewGenerationService creates a GenerationService. The cache client may be
// nil; prompts are then built without schema context.
func NewGenerationService(
	generator Generator,
	engine *safety.Engine,
	cache *redis.Client,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) GenerationService {
	return &generationService{
		generator: generator,
		engine:    engine,
		cache:     cache,
		auditor:   auditor,
		logger:    logger.Named("generation"),
	}
}

var _ GenerationService = (*generationService)(nil)

func (s *generationService) Generate(ctx context.Context, question, role, clientIP string) (*models.GeneratedStatement, error) {
	schemaContext := s.schemaContext(ctx)

	result, err := s.generator.Generate(ctx, provider.Request{
		Question:      question,
		SchemaContext: schemaContext,
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindGenerationDisabled {
			s.auditor.LogGenerationDisabled(role, apperrors.CorrelationOf(err), clientIP, "")
		}
		return nil, err
	}

	stmt, err := s.evaluate(result.SQL, role, clientIP)
	if stmt != nil {
		stmt.EndpointID = result.EndpointID
		stmt.Model = result.Model
		stmt.Confidence = result.Confidence
	}
	return stmt, err
}

func (s *generationService) Validate(ctx context.Context, statement, role, clientIP string) (*models.GeneratedStatement, error) {
	return s.evaluate(statement, role, clientIP)
}

// evaluate runs both safety stages and emits audit events for refusals.
func (s *generationService) evaluate(statement, role, clientIP string) (*models.GeneratedStatement, error) {
	stmt, err := s.engine.Evaluate(statement, role)
	if err == nil {
		return stmt, nil
	}

	details := audit.RejectionDetails{
		Reason:        stmt.RejectionReason,
		PolicyVersion: stmt.PolicyVersion,
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindFirewallRejected:
		s.auditor.LogFirewallRejection(role, apperrors.CorrelationOf(err), clientIP, details)
	case apperrors.KindPolicyDenied:
		s.auditor.LogPolicyDenial(role, apperrors.CorrelationOf(err), clientIP, details)
	}
	return stmt, err
}

// schemaContext reads the retrain job's published schema summary. A missing
// key or unavailable cache degrades to an empty context rather than failing
// the request.
func (s *generationService) schemaContext(ctx context.Context) string {
	if s.cache == nil {
		return ""
	}
	val, err := s.cache.Get(ctx, jobs.SchemaContextKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("schema context unavailable", zap.Error(err))
		}
		return ""
	}
	return val
}
