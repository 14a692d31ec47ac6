package discharge

import (
	"fmt"
	"strings"
)

// maxGuardedProcedures caps how many generated procedure names the guard
// inspects on a single document.
const maxGuardedProcedures = 15

// GuardFacts compares generated clinical content against the author's
// original input and appends a warning for every generated diagnosis,
// ICD-10 code, procedure or medication that cannot be traced back to it.
// The guard is purely additive: it never mutates clinical values and never
// blocks the document. Matching is bidirectional substring containment on
// normalized text, which tolerates abbreviation drift but is a heuristic,
// not a hard gate.
//
// A category is only guarded when the original input actually had entries
// in that category; the guard cannot call out inventions against an empty
// source.
func GuardFacts(doc *StructuredDocument, src *DischargeRecord) *StructuredDocument {
	if doc == nil || src == nil {
		return doc
	}

	srcDiagnoses := normalizedEntries(src.ProvisionalDiagnosis, src.FinalDiagnosis)
	srcCodes := normalizedEntries(src.ICD10Codes)
	srcProcedures := normalizedEntries(src.Procedures)
	srcMedications := normalizedEntries(src.Medications)

	for _, generated := range []string{doc.Diagnoses.Provisional, doc.Diagnoses.Final} {
		if generated == "" {
			continue
		}
		if flagUnsupported(generated, srcDiagnoses) {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("Potential hallucination: diagnosis %q introduced by AI", generated))
		}
	}

	for _, code := range doc.Diagnoses.ICD10Codes {
		if code == "" {
			continue
		}
		if flagUnsupported(code, srcCodes) {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("Potential hallucination: ICD-10 code %q introduced by AI", code))
		}
	}

	for i, name := range generatedProcedureNames(doc) {
		if i >= maxGuardedProcedures {
			break
		}
		if name == "" {
			continue
		}
		if flagUnsupported(name, srcProcedures) {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("Potential hallucination: procedure %q introduced by AI", name))
		}
	}

	for _, med := range doc.Medications {
		if med.Name == "" {
			continue
		}
		if flagUnsupported(med.Name, srcMedications) {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("Potential hallucination: medication %q introduced by AI", med.Name))
		}
	}

	return doc
}

// flagUnsupported reports whether value should be flagged: the source
// category is non-empty and no original entry overlaps the value.
func flagUnsupported(value string, originals []string) bool {
	if len(originals) == 0 {
		return false
	}
	needle := normalizeToken(value)
	if needle == "" {
		return false
	}
	for _, original := range originals {
		if strings.Contains(original, needle) || strings.Contains(needle, original) {
			return false
		}
	}
	return true
}

func generatedProcedureNames(doc *StructuredDocument) []string {
	if len(doc.Procedures.Items) > 0 {
		names := make([]string, 0, len(doc.Procedures.Items))
		for _, p := range doc.Procedures.Items {
			names = append(names, p.Name)
		}
		return names
	}
	if doc.Procedures.Text != "" {
		return splitEntries(doc.Procedures.Text)
	}
	return nil
}

// normalizedEntries splits free-text fields on commas, semicolons and
// newlines and lower-cases/trims the pieces.
func normalizedEntries(fields ...string) []string {
	var out []string
	for _, field := range fields {
		for _, entry := range splitEntries(field) {
			if n := normalizeToken(entry); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

func splitEntries(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
