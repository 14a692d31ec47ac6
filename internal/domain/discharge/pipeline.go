package discharge

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dischargehq/discharge/internal/platform/genai"
)

// systemInstruction is the fixed system prompt sent with every generation
// attempt. It pins the output contract: expand terse clinical notes into
// full sentences without inventing facts, and reply with nothing but the
// structured document JSON.
const systemInstruction = `You are a clinical documentation assistant preparing a hospital discharge summary.
Expand the doctor's terse notes into complete, professional sentences.
Preserve every clinical fact exactly as given. Never invent diagnoses, procedures, medications, devices or results that are not present in the input.
If information for a field is absent, leave the field empty and list its name in "missingFields".
Respond with a single JSON object and nothing else, using exactly this shape:
{"patient":{"uhid":"","ipid":"","name":"","age":"","gender":"","mobile":"","address":""},
"admission":{"admissionDate":"","dischargeDate":"","department":"","dischargeCondition":"","consultant":"","wardBed":""},
"diagnoses":{"provisional":"","final":"","icd10Codes":[]},
"reasonForAdmission":"","examinationFindings":"","significantFindings":"","imaging":"","hospitalCourse":"",
"investigations":"" or [{"name":"","result":"","date":"","notes":""}],
"procedures":"" or [{"name":"","date":"","performer":"","notes":""}],
"devices":[{"name":"","site":"","date":"","notes":""}],
"medications":[{"name":"","dose":"","route":"","frequency":"","duration":"","notes":""}],
"instructions":{"diet":"","activity":"","woundCare":"","followUp":"","redFlags":"","advice":""},
"missingFields":[],"warnings":[],"finalNarrativeText":""}`

// fallbackNotice is the fixed warning attached when the deterministic
// formatter produced the document instead of the generative service.
const fallbackNotice = "Note: Content generated from structured data (AI generation unavailable)."

const (
	defaultGenTimeout = 45 * time.Second
	genTemperature    = 0.2
	genMaxTokens      = 4096
)

// EnhanceResult is everything the pipeline hands back to the workflow. The
// pipeline always produces a renderable result; degradation is reported
// through Warnings and MissingFields, never through an error.
type EnhanceResult struct {
	NarrativeText string
	RenderedHTML  string
	Document      *StructuredDocument
	MissingFields []string
	Warnings      []string
}

// Enhancer orchestrates the enhancement pipeline: prompt assembly, the
// generative call, JSON extraction, schema validation, fact guarding and
// rendering, with one simplified-prompt retry and a deterministic
// fallback when generation cannot produce a valid document.
type Enhancer struct {
	gen     genai.TextGenerator
	timeout time.Duration
	logger  zerolog.Logger
}

// NewEnhancer builds an Enhancer. gen may be nil when no generative
// service is configured; every Enhance call then takes the fallback path.
func NewEnhancer(gen genai.TextGenerator, timeout time.Duration, logger zerolog.Logger) *Enhancer {
	if timeout <= 0 {
		timeout = defaultGenTimeout
	}
	return &Enhancer{gen: gen, timeout: timeout, logger: logger}
}

// Enhance runs the strategy chain over the record: full prompt, then a
// reduced prompt, then the deterministic fallback formatter. External
// failure of any kind (timeout, cancellation, malformed payload, schema
// mismatch) is absorbed; the caller always receives a usable result.
func (e *Enhancer) Enhance(ctx context.Context, rec *DischargeRecord) *EnhanceResult {
	if e.gen != nil && hasUsableInput(rec) {
		for _, prompt := range []string{buildFullPrompt(rec), buildReducedPrompt(rec)} {
			doc, err := e.attempt(ctx, prompt, rec)
			if err != nil {
				e.logger.Warn().Err(err).Str("uhid", rec.UHID).Msg("enhancement attempt failed")
				continue
			}
			return resultFromDocument(doc)
		}
	}

	doc := FallbackDocument(rec)
	return resultFromDocument(doc)
}

// attempt runs one generation round: call, extract, parse, guard,
// validate. Any failure is returned as an error for the chain to absorb.
func (e *Enhancer) attempt(ctx context.Context, prompt string, rec *DischargeRecord) (*StructuredDocument, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.gen.Generate(callCtx, genai.Request{
		System:      systemInstruction,
		User:        prompt,
		Temperature: genTemperature,
		MaxTokens:   genMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	payload, err := ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("parse generated JSON: %w", err)
	}

	doc, errs := ValidateDocument(raw)
	if doc == nil {
		return nil, fmt.Errorf("generated document failed validation: %s", strings.Join(errs, "; "))
	}

	return GuardFacts(doc, rec), nil
}

func resultFromDocument(doc *StructuredDocument) *EnhanceResult {
	narrative := doc.FinalNarrativeText
	if narrative == "" {
		narrative = SynthesizeNarrative(doc)
		doc.FinalNarrativeText = narrative
	}
	return &EnhanceResult{
		NarrativeText: narrative,
		RenderedHTML:  RenderDocument(doc),
		Document:      doc,
		MissingFields: doc.MissingFields,
		Warnings:      doc.Warnings,
	}
}

// hasUsableInput reports whether the record carries enough clinical
// content to be worth a generative call at all.
func hasUsableInput(rec *DischargeRecord) bool {
	return firstNonEmpty(rec.DoctorDraftText, rec.FinalDiagnosis, rec.ProvisionalDiagnosis,
		rec.HospitalCourse, rec.Medications) != ""
}

// promptField appends one labeled line to the prompt when the value is
// non-empty.
func promptField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

// buildFullPrompt concatenates every known field of the record under
// fixed labels.
func buildFullPrompt(rec *DischargeRecord) string {
	var b strings.Builder
	promptField(&b, "UHID", rec.UHID)
	promptField(&b, "IP NUMBER", rec.IPID)
	promptField(&b, "MOBILE", rec.Mobile)
	promptField(&b, "PATIENT NAME", rec.PatientName)
	promptField(&b, "AGE", rec.Age)
	promptField(&b, "GENDER", rec.Gender)
	promptField(&b, "ADDRESS", rec.Address)
	promptField(&b, "ADMISSION DATE", rec.AdmissionDate)
	promptField(&b, "DISCHARGE DATE", rec.DischargeDate)
	promptField(&b, "DEPARTMENT", rec.Department)
	promptField(&b, "CONSULTANT", rec.Consultant)
	promptField(&b, "WARD/BED", rec.WardBed)
	promptField(&b, "PROVISIONAL DIAGNOSIS", rec.ProvisionalDiagnosis)
	promptField(&b, "FINAL DIAGNOSIS", rec.FinalDiagnosis)
	promptField(&b, "ICD-10 CODES", rec.ICD10Codes)
	promptField(&b, "HOSPITAL COURSE", rec.HospitalCourse)
	promptField(&b, "INVESTIGATIONS", rec.Investigations)
	promptField(&b, "PROCEDURES", rec.Procedures)
	promptField(&b, "DEVICES/IMPLANTS", rec.Devices)
	promptField(&b, "MEDICATIONS", rec.Medications)
	promptField(&b, "DISCHARGE CONDITION", rec.DischargeCondition)
	promptField(&b, "DIET ADVICE", rec.DietAdvice)
	promptField(&b, "ACTIVITY ADVICE", rec.ActivityAdvice)
	promptField(&b, "WOUND CARE", rec.WoundCare)
	promptField(&b, "FOLLOW UP", rec.FollowUp)
	promptField(&b, "RED FLAGS", rec.RedFlags)
	promptField(&b, "OTHER ADVICE", rec.OtherAdvice)
	promptField(&b, "DOCTOR DRAFT", rec.DoctorDraftText)
	return b.String()
}

// buildReducedPrompt is the simplified retry prompt: identity, diagnosis
// and the draft text only.
func buildReducedPrompt(rec *DischargeRecord) string {
	var b strings.Builder
	promptField(&b, "UHID", rec.UHID)
	promptField(&b, "IP NUMBER", rec.IPID)
	promptField(&b, "PATIENT NAME", rec.PatientName)
	promptField(&b, "PROVISIONAL DIAGNOSIS", rec.ProvisionalDiagnosis)
	promptField(&b, "FINAL DIAGNOSIS", rec.FinalDiagnosis)
	promptField(&b, "DOCTOR DRAFT", rec.DoctorDraftText)
	return b.String()
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSONObject pulls the first fenced code block or raw JSON object
// out of a generated text payload.
func ExtractJSONObject(text string) (string, error) {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("response JSON is malformed")
	}
	return candidate, nil
}

// SynthesizeNarrative builds a plain-text narrative from the populated
// fields of a document in a fixed order, used when the generator did not
// supply finalNarrativeText and on the fallback path.
func SynthesizeNarrative(doc *StructuredDocument) string {
	var b strings.Builder

	p := doc.Patient
	promptField(&b, "Patient", joinNonEmpty(", ", p.Name, joinNonEmpty("/", p.Age, p.Gender)))
	promptField(&b, "UHID", p.UHID)
	promptField(&b, "IP Number", p.IPID)

	a := doc.Admission
	promptField(&b, "Admitted", a.AdmissionDate)
	promptField(&b, "Discharged", a.DischargeDate)
	promptField(&b, "Department", a.Department)
	promptField(&b, "Consultant", a.Consultant)

	d := doc.Diagnoses
	promptField(&b, "Final Diagnosis", d.Final)
	promptField(&b, "Provisional Diagnosis", d.Provisional)
	if len(d.ICD10Codes) > 0 {
		promptField(&b, "ICD-10", strings.Join(d.ICD10Codes, ", "))
	}

	promptField(&b, "Reason for Admission", doc.ReasonForAdmission)
	promptField(&b, "Examination", doc.ExaminationFindings)
	promptField(&b, "Significant Findings", doc.SignificantFindings)
	promptField(&b, "Hospital Course", doc.HospitalCourse)

	if !doc.Investigations.IsEmpty() {
		promptField(&b, "Investigations", flattenInvestigations(doc.Investigations))
	}
	promptField(&b, "Imaging", doc.Imaging)
	if !doc.Procedures.IsEmpty() {
		promptField(&b, "Procedures", flattenProcedures(doc.Procedures))
	}
	if len(doc.Medications) > 0 {
		names := make([]string, 0, len(doc.Medications))
		for _, m := range doc.Medications {
			names = append(names, joinNonEmpty(" ", m.Name, m.Dose, m.Frequency))
		}
		promptField(&b, "Medications", strings.Join(names, "; "))
	}

	condition := doc.Admission.DischargeCondition
	promptField(&b, "Condition at Discharge", condition)

	ins := doc.Instructions
	promptField(&b, "Diet", ins.Diet)
	promptField(&b, "Activity", ins.Activity)
	promptField(&b, "Wound Care", ins.WoundCare)
	promptField(&b, "Follow Up", ins.FollowUp)
	promptField(&b, "Red Flags", ins.RedFlags)
	promptField(&b, "Advice", ins.Advice)

	return strings.TrimSpace(b.String())
}

func flattenInvestigations(s InvestigationSection) string {
	if s.Text != "" {
		return s.Text
	}
	parts := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		parts = append(parts, joinNonEmpty(": ", item.Name, item.Result))
	}
	return strings.Join(parts, "; ")
}

func flattenProcedures(s ProcedureSection) string {
	if s.Text != "" {
		return s.Text
	}
	parts := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		parts = append(parts, joinNonEmpty(" on ", item.Name, item.Date))
	}
	return strings.Join(parts, "; ")
}
