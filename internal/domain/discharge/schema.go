package discharge

import (
	"encoding/json"
	"fmt"
)

// StructuredDocument is the canonical validated shape of an enhanced
// discharge summary. It is embedded in, and owned exclusively by, a
// DischargeRecord; it has no identity or lifecycle of its own.
type StructuredDocument struct {
	Patient   PatientBlock   `json:"patient"`
	Admission AdmissionBlock `json:"admission"`
	Diagnoses DiagnosisBlock `json:"diagnoses"`

	ReasonForAdmission  string `json:"reasonForAdmission"`
	ExaminationFindings string `json:"examinationFindings"`
	SignificantFindings string `json:"significantFindings"`
	Imaging             string `json:"imaging"`
	HospitalCourse      string `json:"hospitalCourse"`

	Investigations InvestigationSection `json:"investigations"`
	Procedures     ProcedureSection     `json:"procedures"`
	Devices        []DeviceEntry        `json:"devices"`
	Medications    []Medication         `json:"medications"`

	Instructions InstructionBlock `json:"instructions"`

	MissingFields      []string `json:"missingFields"`
	Warnings           []string `json:"warnings"`
	FinalNarrativeText string   `json:"finalNarrativeText"`
}

type PatientBlock struct {
	UHID    string `json:"uhid"`
	IPID    string `json:"ipid"`
	Name    string `json:"name"`
	Age     string `json:"age"`
	Gender  string `json:"gender"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
}

type AdmissionBlock struct {
	AdmissionDate      string `json:"admissionDate"`
	DischargeDate      string `json:"dischargeDate"`
	Department         string `json:"department"`
	DischargeCondition string `json:"dischargeCondition"`
	Consultant         string `json:"consultant"`
	WardBed            string `json:"wardBed"`
}

type DiagnosisBlock struct {
	Provisional string   `json:"provisional"`
	Final       string   `json:"final"`
	ICD10Codes  []string `json:"icd10Codes"`
}

type Medication struct {
	Name      string `json:"name"`
	Dose      string `json:"dose"`
	Route     string `json:"route"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
	Notes     string `json:"notes"`
}

type InvestigationResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
	Date   string `json:"date"`
	Notes  string `json:"notes"`
}

type ProcedureEntry struct {
	Name      string `json:"name"`
	Date      string `json:"date"`
	Performer string `json:"performer"`
	Notes     string `json:"notes"`
}

type DeviceEntry struct {
	Name  string `json:"name"`
	Site  string `json:"site"`
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

type InstructionBlock struct {
	Diet      string `json:"diet"`
	Activity  string `json:"activity"`
	WoundCare string `json:"woundCare"`
	FollowUp  string `json:"followUp"`
	RedFlags  string `json:"redFlags"`
	Advice    string `json:"advice"`
}

// InvestigationSection holds laboratory investigations that may arrive
// either as free prose or as a typed list, depending on the producer.
type InvestigationSection struct {
	Text  string
	Items []InvestigationResult
}

func (s InvestigationSection) IsEmpty() bool { return s.Text == "" && len(s.Items) == 0 }

func (s InvestigationSection) MarshalJSON() ([]byte, error) {
	if len(s.Items) > 0 {
		return json.Marshal(s.Items)
	}
	return json.Marshal(s.Text)
}

func (s *InvestigationSection) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Text = text
		s.Items = nil
		return nil
	}
	var items []InvestigationResult
	if err := json.Unmarshal(data, &items); err == nil {
		s.Text = ""
		s.Items = items
		return nil
	}
	return fmt.Errorf("investigations must be a string or a list of records")
}

// ProcedureSection is the same text-or-list duality for procedures.
type ProcedureSection struct {
	Text  string
	Items []ProcedureEntry
}

func (s ProcedureSection) IsEmpty() bool { return s.Text == "" && len(s.Items) == 0 }

func (s ProcedureSection) MarshalJSON() ([]byte, error) {
	if len(s.Items) > 0 {
		return json.Marshal(s.Items)
	}
	return json.Marshal(s.Text)
}

func (s *ProcedureSection) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Text = text
		s.Items = nil
		return nil
	}
	var items []ProcedureEntry
	if err := json.Unmarshal(data, &items); err == nil {
		s.Text = ""
		s.Items = items
		return nil
	}
	return fmt.Errorf("procedures must be a string or a list of records")
}

// ValidateDocument checks a candidate value (the parsed JSON object a
// generator returned) against the canonical document shape. Missing
// optional strings normalize to "", missing optional lists to empty
// slices. Any wrong type at a known key fails closed: the caller gets a
// nil document and must not persist the candidate.
func ValidateDocument(raw map[string]any) (*StructuredDocument, []string) {
	v := &docValidator{}

	doc := &StructuredDocument{}

	if patient := v.object(raw, "patient"); patient != nil {
		doc.Patient = PatientBlock{
			UHID:    v.str(patient, "patient.uhid"),
			IPID:    v.str(patient, "patient.ipid"),
			Name:    v.str(patient, "patient.name"),
			Age:     v.str(patient, "patient.age"),
			Gender:  v.str(patient, "patient.gender"),
			Mobile:  v.str(patient, "patient.mobile"),
			Address: v.str(patient, "patient.address"),
		}
	}
	if admission := v.object(raw, "admission"); admission != nil {
		doc.Admission = AdmissionBlock{
			AdmissionDate:      v.str(admission, "admission.admissionDate"),
			DischargeDate:      v.str(admission, "admission.dischargeDate"),
			Department:         v.str(admission, "admission.department"),
			DischargeCondition: v.str(admission, "admission.dischargeCondition"),
			Consultant:         v.str(admission, "admission.consultant"),
			WardBed:            v.str(admission, "admission.wardBed"),
		}
	}
	if diagnoses := v.object(raw, "diagnoses"); diagnoses != nil {
		doc.Diagnoses = DiagnosisBlock{
			Provisional: v.str(diagnoses, "diagnoses.provisional"),
			Final:       v.str(diagnoses, "diagnoses.final"),
			ICD10Codes:  v.strList(diagnoses, "diagnoses.icd10Codes"),
		}
	}

	doc.ReasonForAdmission = v.topStr(raw, "reasonForAdmission")
	doc.ExaminationFindings = v.topStr(raw, "examinationFindings")
	doc.SignificantFindings = v.topStr(raw, "significantFindings")
	doc.Imaging = v.topStr(raw, "imaging")
	doc.HospitalCourse = v.topStr(raw, "hospitalCourse")

	doc.Investigations = v.investigations(raw)
	doc.Procedures = v.procedures(raw)
	doc.Devices = v.devices(raw)
	doc.Medications = v.medications(raw)

	if instructions := v.object(raw, "instructions"); instructions != nil {
		doc.Instructions = InstructionBlock{
			Diet:      v.str(instructions, "instructions.diet"),
			Activity:  v.str(instructions, "instructions.activity"),
			WoundCare: v.str(instructions, "instructions.woundCare"),
			FollowUp:  v.str(instructions, "instructions.followUp"),
			RedFlags:  v.str(instructions, "instructions.redFlags"),
			Advice:    v.str(instructions, "instructions.advice"),
		}
	}

	doc.MissingFields = v.topStrList(raw, "missingFields")
	doc.Warnings = v.topStrList(raw, "warnings")
	doc.FinalNarrativeText = v.topStr(raw, "finalNarrativeText")

	if len(v.errs) > 0 {
		return nil, v.errs
	}
	return doc, nil
}

// docValidator accumulates path-qualified errors while walking a
// candidate document.
type docValidator struct {
	errs []string
}

func (v *docValidator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

// object returns raw[key] as a JSON object. Missing or null is tolerated
// (the zero block applies); any other type fails closed.
func (v *docValidator) object(raw map[string]any, key string) map[string]any {
	val, ok := raw[key]
	if !ok || val == nil {
		return nil
	}
	obj, ok := val.(map[string]any)
	if !ok {
		v.fail("%s: expected object, got %T", key, val)
		return nil
	}
	return obj
}

// str reads an optional string field from an object; missing or null
// normalizes to "".
func (v *docValidator) str(obj map[string]any, path string) string {
	key := path
	if i := lastDot(path); i >= 0 {
		key = path[i+1:]
	}
	val, ok := obj[key]
	if !ok || val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.fail("%s: expected string, got %T", path, val)
		return ""
	}
	return s
}

func (v *docValidator) topStr(raw map[string]any, key string) string {
	return v.str(raw, key)
}

func (v *docValidator) strList(obj map[string]any, path string) []string {
	key := path
	if i := lastDot(path); i >= 0 {
		key = path[i+1:]
	}
	val, ok := obj[key]
	if !ok || val == nil {
		return []string{}
	}
	list, ok := val.([]any)
	if !ok {
		v.fail("%s: expected list of strings, got %T", path, val)
		return []string{}
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			v.fail("%s[%d]: expected string, got %T", path, i, item)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (v *docValidator) topStrList(raw map[string]any, key string) []string {
	return v.strList(raw, key)
}

func (v *docValidator) investigations(raw map[string]any) InvestigationSection {
	val, ok := raw["investigations"]
	if !ok || val == nil {
		return InvestigationSection{}
	}
	switch t := val.(type) {
	case string:
		return InvestigationSection{Text: t}
	case []any:
		items := make([]InvestigationResult, 0, len(t))
		for i, entry := range t {
			obj, ok := entry.(map[string]any)
			if !ok {
				v.fail("investigations[%d]: expected record, got %T", i, entry)
				continue
			}
			items = append(items, InvestigationResult{
				Name:   v.str(obj, fmt.Sprintf("investigations[%d].name", i)),
				Result: v.str(obj, fmt.Sprintf("investigations[%d].result", i)),
				Date:   v.str(obj, fmt.Sprintf("investigations[%d].date", i)),
				Notes:  v.str(obj, fmt.Sprintf("investigations[%d].notes", i)),
			})
		}
		return InvestigationSection{Items: items}
	default:
		v.fail("investigations: expected string or list, got %T", val)
		return InvestigationSection{}
	}
}

func (v *docValidator) procedures(raw map[string]any) ProcedureSection {
	val, ok := raw["procedures"]
	if !ok || val == nil {
		return ProcedureSection{}
	}
	switch t := val.(type) {
	case string:
		return ProcedureSection{Text: t}
	case []any:
		items := make([]ProcedureEntry, 0, len(t))
		for i, entry := range t {
			obj, ok := entry.(map[string]any)
			if !ok {
				v.fail("procedures[%d]: expected record, got %T", i, entry)
				continue
			}
			items = append(items, ProcedureEntry{
				Name:      v.str(obj, fmt.Sprintf("procedures[%d].name", i)),
				Date:      v.str(obj, fmt.Sprintf("procedures[%d].date", i)),
				Performer: v.str(obj, fmt.Sprintf("procedures[%d].performer", i)),
				Notes:     v.str(obj, fmt.Sprintf("procedures[%d].notes", i)),
			})
		}
		return ProcedureSection{Items: items}
	default:
		v.fail("procedures: expected string or list, got %T", val)
		return ProcedureSection{}
	}
}

func (v *docValidator) devices(raw map[string]any) []DeviceEntry {
	val, ok := raw["devices"]
	if !ok || val == nil {
		return []DeviceEntry{}
	}
	list, ok := val.([]any)
	if !ok {
		v.fail("devices: expected list, got %T", val)
		return []DeviceEntry{}
	}
	items := make([]DeviceEntry, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			v.fail("devices[%d]: expected record, got %T", i, entry)
			continue
		}
		items = append(items, DeviceEntry{
			Name:  v.str(obj, fmt.Sprintf("devices[%d].name", i)),
			Site:  v.str(obj, fmt.Sprintf("devices[%d].site", i)),
			Date:  v.str(obj, fmt.Sprintf("devices[%d].date", i)),
			Notes: v.str(obj, fmt.Sprintf("devices[%d].notes", i)),
		})
	}
	return items
}

func (v *docValidator) medications(raw map[string]any) []Medication {
	val, ok := raw["medications"]
	if !ok || val == nil {
		return []Medication{}
	}
	list, ok := val.([]any)
	if !ok {
		v.fail("medications: expected list, got %T", val)
		return []Medication{}
	}
	items := make([]Medication, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			v.fail("medications[%d]: expected record, got %T", i, entry)
			continue
		}
		items = append(items, Medication{
			Name:      v.str(obj, fmt.Sprintf("medications[%d].name", i)),
			Dose:      v.str(obj, fmt.Sprintf("medications[%d].dose", i)),
			Route:     v.str(obj, fmt.Sprintf("medications[%d].route", i)),
			Frequency: v.str(obj, fmt.Sprintf("medications[%d].frequency", i)),
			Duration:  v.str(obj, fmt.Sprintf("medications[%d].duration", i)),
			Notes:     v.str(obj, fmt.Sprintf("medications[%d].notes", i)),
		})
	}
	return items
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
