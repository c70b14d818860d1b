package careplan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/intake-engine/internal/intake"
	"github.com/carebridge/intake-engine/pkg/circuitbreaker"
)

// Plan is the generated care-plan draft published for clinician review.
type Plan struct {
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Generator turns care-plan request events into drafted plans. LLM calls
// go through a circuit breaker so a degraded provider does not stall the
// whole worker.
type Generator struct {
	llm     LLMClient
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time
}

// NewGenerator creates a Generator. The breaker is optional; without one
// LLM calls are made directly.
func NewGenerator(llm LLMClient, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		llm:     llm,
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate drafts a care plan for the given request.
func (g *Generator) Generate(ctx context.Context, req intake.CarePlanRequestedData) (*Plan, error) {
	prompt := buildPrompt(req)

	var summary string
	var err error
	if g.breaker != nil {
		var result interface{}
		result, err = g.breaker.Execute(ctx, func() (interface{}, error) {
			return g.llm.Generate(ctx, prompt)
		})
		if err == nil {
			summary = result.(string)
		}
	} else {
		summary, err = g.llm.Generate(ctx, prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("generate care plan for patient %s: %w", req.PatientID, err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("generate care plan for patient %s: empty completion", req.PatientID)
	}

	g.logger.Info("care plan generated",
		zap.String("patient_id", req.PatientID),
		zap.Int("summary_length", len(summary)))

	return &Plan{
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Summary:     summary,
		GeneratedAt: g.now().UTC(),
	}, nil
}

func buildPrompt(req intake.CarePlanRequestedData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", req.PatientName)
	if req.MedicationName != "" {
		fmt.Fprintf(&b, "Medication: %s\n", req.MedicationName)
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "Intake notes:\n%s\n", req.Notes)
	}
	b.WriteString("\nDraft a care-plan summary for the care team.")
	return b.String()
}
