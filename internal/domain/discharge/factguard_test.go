package discharge

import (
	"strings"
	"testing"
)

func TestGuardFactsAcceptsExpandedDiagnosis(t *testing.T) {
	src := &DischargeRecord{FinalDiagnosis: "Hypertension"}
	doc := &StructuredDocument{
		Diagnoses: DiagnosisBlock{Final: "Essential hypertension (I10)"},
	}

	GuardFacts(doc, src)

	if len(doc.Warnings) != 0 {
		t.Errorf("expansion of an original diagnosis must not warn, got %v", doc.Warnings)
	}
}

func TestGuardFactsFlagsIntroducedMedication(t *testing.T) {
	src := &DischargeRecord{Medications: "Tab. Aspirin 75mg OD"}
	doc := &StructuredDocument{
		Medications: []Medication{
			{Name: "Aspirin", Dose: "75mg"},
			{Name: "Clopidogrel", Dose: "75mg"},
		},
	}

	GuardFacts(doc, src)

	if len(doc.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", doc.Warnings)
	}
	want := `Potential hallucination: medication "Clopidogrel" introduced by AI`
	if doc.Warnings[0] != want {
		t.Errorf("warning = %q, want %q", doc.Warnings[0], want)
	}
}

func TestGuardFactsSkipsEmptySourceCategory(t *testing.T) {
	// No procedures in the original input: generated procedures must pass
	// unflagged, the guard has nothing to compare against.
	src := &DischargeRecord{FinalDiagnosis: "Acute MI"}
	doc := &StructuredDocument{
		Diagnoses:  DiagnosisBlock{Final: "Acute MI"},
		Procedures: ProcedureSection{Items: []ProcedureEntry{{Name: "Coronary angioplasty"}}},
	}

	GuardFacts(doc, src)

	if len(doc.Warnings) != 0 {
		t.Errorf("empty source category must not warn, got %v", doc.Warnings)
	}
}

func TestGuardFactsFlagsICD10Codes(t *testing.T) {
	src := &DischargeRecord{ICD10Codes: "I10, E11.9"}
	doc := &StructuredDocument{
		Diagnoses: DiagnosisBlock{ICD10Codes: []string{"I10", "J44.1"}},
	}

	GuardFacts(doc, src)

	if len(doc.Warnings) != 1 || !strings.Contains(doc.Warnings[0], `"J44.1"`) {
		t.Errorf("expected one warning for J44.1, got %v", doc.Warnings)
	}
}

func TestGuardFactsNeverMutatesValues(t *testing.T) {
	src := &DischargeRecord{Medications: "Metformin"}
	doc := &StructuredDocument{
		Medications: []Medication{{Name: "Insulin Glargine", Dose: "10 units"}},
	}

	GuardFacts(doc, src)

	if doc.Medications[0].Name != "Insulin Glargine" || doc.Medications[0].Dose != "10 units" {
		t.Error("guard must not mutate clinical values")
	}
	if len(doc.Warnings) != 1 {
		t.Errorf("expected the introduced medication to be flagged, got %v", doc.Warnings)
	}
}

func TestGuardFactsProcedureTextBranch(t *testing.T) {
	src := &DischargeRecord{Procedures: "Appendectomy"}
	doc := &StructuredDocument{
		Procedures: ProcedureSection{Text: "Laparoscopic appendectomy; Chest tube insertion"},
	}

	GuardFacts(doc, src)

	if len(doc.Warnings) != 1 || !strings.Contains(doc.Warnings[0], "Chest tube insertion") {
		t.Errorf("expected only the unsupported procedure flagged, got %v", doc.Warnings)
	}
}

func TestGuardFactsCaseInsensitive(t *testing.T) {
	src := &DischargeRecord{Medications: "TAB. METFORMIN 500MG BD"}
	doc := &StructuredDocument{Medications: []Medication{{Name: "Metformin"}}}

	GuardFacts(doc, src)

	if len(doc.Warnings) != 0 {
		t.Errorf("matching must be case-insensitive, got %v", doc.Warnings)
	}
}

func TestGuardFactsNilInputs(t *testing.T) {
	if GuardFacts(nil, &DischargeRecord{}) != nil {
		t.Error("nil doc should pass through")
	}
	doc := &StructuredDocument{}
	if GuardFacts(doc, nil) != doc {
		t.Error("nil source should pass doc through unchanged")
	}
}
