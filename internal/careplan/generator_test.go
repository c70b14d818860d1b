package careplan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carebridge/intake-engine/internal/intake"
)

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestGeneratePlan(t *testing.T) {
	llm := &fakeLLM{response: "  Review metformin dosing with patient.  "}
	gen := NewGenerator(llm, nil, nil)

	req := intake.CarePlanRequestedData{
		PatientID:      "p-1",
		PatientName:    "Maria Gonzalez",
		MedicationName: "Metformin",
		Notes:          "Newly diagnosed, needs dietary counseling.",
	}

	plan, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if plan.PatientID != "p-1" {
		t.Errorf("patient id = %q, want p-1", plan.PatientID)
	}
	if plan.Summary != "Review metformin dosing with patient." {
		t.Errorf("summary not trimmed: %q", plan.Summary)
	}
	if plan.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}

	if len(llm.prompts) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(llm.prompts))
	}
	prompt := llm.prompts[0]
	for _, want := range []string{"Maria Gonzalez", "Metformin", "dietary counseling"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGeneratePlanLLMError(t *testing.T) {
	llmErr := errors.New("provider unavailable")
	gen := NewGenerator(&fakeLLM{err: llmErr}, nil, nil)

	_, err := gen.Generate(context.Background(), intake.CarePlanRequestedData{PatientID: "p-2"})
	if !errors.Is(err, llmErr) {
		t.Fatalf("expected wrapped LLM error, got %v", err)
	}
}

func TestGeneratePlanEmptyCompletion(t *testing.T) {
	gen := NewGenerator(&fakeLLM{response: "   "}, nil, nil)

	_, err := gen.Generate(context.Background(), intake.CarePlanRequestedData{PatientID: "p-3"})
	if err == nil {
		t.Fatal("expected error for empty completion")
	}
}
