package discharge

import "strings"

// FallbackDocument maps a record's existing fields directly onto the
// structured-document shape without any generative call. It is fully
// reproducible from the record alone: free-text list fields are split per
// line into typed records, scalars pass through unchanged, and the fixed
// fallback notice is the only warning. Its output always passes
// ValidateDocument.
func FallbackDocument(rec *DischargeRecord) *StructuredDocument {
	doc := &StructuredDocument{
		Patient: PatientBlock{
			UHID:    rec.UHID,
			IPID:    rec.IPID,
			Name:    rec.PatientName,
			Age:     rec.Age,
			Gender:  rec.Gender,
			Mobile:  rec.Mobile,
			Address: rec.Address,
		},
		Admission: AdmissionBlock{
			AdmissionDate:      rec.AdmissionDate,
			DischargeDate:      rec.DischargeDate,
			Department:         rec.Department,
			DischargeCondition: rec.DischargeCondition,
			Consultant:         rec.Consultant,
			WardBed:            rec.WardBed,
		},
		Diagnoses: DiagnosisBlock{
			Provisional: rec.ProvisionalDiagnosis,
			Final:       rec.FinalDiagnosis,
			ICD10Codes:  trimmedList(rec.ICD10Codes),
		},
		HospitalCourse: rec.HospitalCourse,
		Investigations: InvestigationSection{Text: rec.Investigations},
		Procedures:     ProcedureSection{Text: rec.Procedures},
		Devices:        parseDeviceLines(rec.Devices),
		Medications:    ParseMedicationText(rec.Medications),
		Instructions: InstructionBlock{
			Diet:      rec.DietAdvice,
			Activity:  rec.ActivityAdvice,
			WoundCare: rec.WoundCare,
			FollowUp:  rec.FollowUp,
			RedFlags:  rec.RedFlags,
			Advice:    rec.OtherAdvice,
		},
		MissingFields: missingFields(rec),
		Warnings:      []string{fallbackNotice},
	}
	return doc
}

// ParseMedicationText splits a free-text medication field into one record
// per non-empty line, pulling out the dose token (digits + unit) and a
// recognized frequency abbreviation. Whatever precedes the dose token is
// the medication name.
func ParseMedicationText(text string) []Medication {
	var meds []Medication
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" {
			continue
		}
		meds = append(meds, parseMedicationLine(line))
	}
	if meds == nil {
		return []Medication{}
	}
	return meds
}

// frequencyCodes are the dosing abbreviations recognized in free text.
var frequencyCodes = map[string]bool{
	"OD": true, "BD": true, "TDS": true, "QID": true,
	"HS": true, "SOS": true, "PRN": true, "STAT": true,
	"QHS": true, "BID": true, "TID": true,
}

func parseMedicationLine(line string) Medication {
	med := Medication{}

	var nameParts []string
	for _, token := range strings.Fields(line) {
		upper := strings.ToUpper(strings.Trim(token, ".,"))
		switch {
		case med.Frequency == "" && frequencyCodes[upper]:
			med.Frequency = upper
		case med.Dose == "" && looksLikeDose(token):
			med.Dose = strings.Trim(token, ",")
		case med.Dose == "" && med.Frequency == "":
			nameParts = append(nameParts, token)
		default:
			med.Notes = strings.TrimSpace(med.Notes + " " + token)
		}
	}

	med.Name = strings.Join(nameParts, " ")
	if med.Name == "" {
		med.Name = line
	}
	return med
}

// looksLikeDose matches tokens such as "75mg", "500mg", "5ml" or
// "2.5mcg": a leading digit with a recognized unit suffix.
func looksLikeDose(token string) bool {
	token = strings.Trim(token, ",")
	if token == "" || token[0] < '0' || token[0] > '9' {
		return false
	}
	lower := strings.ToLower(token)
	for _, unit := range []string{"mg", "mcg", "ml", "g", "iu", "units", "%"} {
		if strings.HasSuffix(lower, unit) {
			return true
		}
	}
	return false
}

func parseDeviceLines(text string) []DeviceEntry {
	devices := []DeviceEntry{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" {
			continue
		}
		devices = append(devices, DeviceEntry{Name: line})
	}
	return devices
}

func trimmedList(text string) []string {
	out := []string{}
	for _, entry := range splitEntries(text) {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// missingFields names the clinically important fields the record leaves
// blank, mirroring what the generative path reports for sparse inputs.
func missingFields(rec *DischargeRecord) []string {
	missing := []string{}
	checks := []struct {
		name  string
		value string
	}{
		{"patientName", rec.PatientName},
		{"admissionDate", rec.AdmissionDate},
		{"dischargeDate", rec.DischargeDate},
		{"finalDiagnosis", rec.FinalDiagnosis},
		{"hospitalCourse", rec.HospitalCourse},
		{"investigations", rec.Investigations},
		{"medications", rec.Medications},
		{"followUp", rec.FollowUp},
	}
	for _, check := range checks {
		if strings.TrimSpace(check.value) == "" {
			missing = append(missing, check.name)
		}
	}
	return missing
}
