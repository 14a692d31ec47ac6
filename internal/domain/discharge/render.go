package discharge

import (
	"html"
	"strings"
)

// defaultDischargeCondition is emitted when the document carries no
// condition-at-discharge text. The block itself is always rendered.
const defaultDischargeCondition = "Stable and ambulant at the time of discharge."

// pageBreak is the pagination hint the print layer keys on. It is attached
// at fixed section boundaries so long summaries paginate predictably.
const pageBreak = `<div class="page-break"></div>`

// RenderDocument converts a validated structured document into the fixed
// hospital discharge summary markup. It is a pure function: identical
// input yields byte-identical output. Every field value is escaped before
// insertion; sections back onto data and are omitted when that data is
// empty, except the condition-at-discharge block which always appears.
func RenderDocument(doc *StructuredDocument) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<article class="discharge-summary">`)

	renderHeader(&b, doc)
	renderClinicalSummary(&b, doc)
	renderSignificantFindings(&b, doc)
	renderInvestigations(&b, doc)
	renderImaging(&b, doc)
	renderDiagnosis(&b, doc)
	courseRendered := renderHospitalCourse(&b, doc)
	proceduresRendered := renderProcedures(&b, doc)
	if courseRendered || proceduresRendered {
		b.WriteString(pageBreak)
	}
	renderDevices(&b, doc)
	renderDischargeCondition(&b, doc)
	renderMedications(&b, doc)
	renderInstructions(&b, doc)
	renderFooter(&b, doc)

	b.WriteString(`</article>`)
	return b.String()
}

func renderHeader(b *strings.Builder, doc *StructuredDocument) {
	p := doc.Patient
	a := doc.Admission

	b.WriteString(`<header class="summary-header"><h1>DISCHARGE SUMMARY</h1>`)
	b.WriteString(`<table class="identity-table"><tbody>`)
	identityRow(b, "Patient Name", p.Name, "UHID", p.UHID)
	identityRow(b, "Age / Gender", joinNonEmpty(" / ", p.Age, p.Gender), "IP No.", p.IPID)
	identityRow(b, "Mobile", p.Mobile, "Ward / Bed", a.WardBed)
	identityRow(b, "Date of Admission", a.AdmissionDate, "Date of Discharge", a.DischargeDate)
	identityRow(b, "Department", a.Department, "Consultant", a.Consultant)
	if p.Address != "" {
		b.WriteString(`<tr><th>Address</th><td colspan="3">` + esc(p.Address) + `</td></tr>`)
	}
	b.WriteString(`</tbody></table></header>`)
}

func identityRow(b *strings.Builder, label1, value1, label2, value2 string) {
	b.WriteString(`<tr><th>` + esc(label1) + `</th><td>` + esc(value1) +
		`</td><th>` + esc(label2) + `</th><td>` + esc(value2) + `</td></tr>`)
}

func renderClinicalSummary(b *strings.Builder, doc *StructuredDocument) {
	if doc.ReasonForAdmission == "" && doc.ExaminationFindings == "" {
		return
	}
	b.WriteString(`<section class="clinical-summary"><h2>Clinical Summary</h2>`)
	if doc.ReasonForAdmission != "" {
		b.WriteString(`<p><strong>Reason for Admission:</strong> ` + esc(doc.ReasonForAdmission) + `</p>`)
	}
	if doc.ExaminationFindings != "" {
		b.WriteString(`<p><strong>Examination:</strong> ` + esc(doc.ExaminationFindings) + `</p>`)
	}
	b.WriteString(`</section>`)
}

func renderSignificantFindings(b *strings.Builder, doc *StructuredDocument) {
	if doc.SignificantFindings == "" {
		return
	}
	b.WriteString(`<section class="significant-findings"><h2>Significant Findings</h2><p>` +
		esc(doc.SignificantFindings) + `</p></section>`)
}

func renderInvestigations(b *strings.Builder, doc *StructuredDocument) {
	if doc.Investigations.IsEmpty() {
		return
	}
	b.WriteString(`<section class="lab-investigations"><h2>Laboratory Investigations</h2>`)
	if len(doc.Investigations.Items) > 0 {
		b.WriteString(`<table class="data-table"><thead><tr><th>Investigation</th><th>Result</th><th>Date</th><th>Remarks</th></tr></thead><tbody>`)
		for _, item := range doc.Investigations.Items {
			b.WriteString(`<tr><td>` + esc(item.Name) + `</td><td>` + esc(item.Result) +
				`</td><td>` + esc(item.Date) + `</td><td>` + esc(item.Notes) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
	} else {
		b.WriteString(`<p>` + esc(doc.Investigations.Text) + `</p>`)
	}
	b.WriteString(`</section>`)
}

func renderImaging(b *strings.Builder, doc *StructuredDocument) {
	if doc.Imaging == "" {
		return
	}
	b.WriteString(`<section class="imaging"><h2>Imaging</h2><p>` + esc(doc.Imaging) + `</p></section>`)
}

func renderDiagnosis(b *strings.Builder, doc *StructuredDocument) {
	d := doc.Diagnoses
	if d.Provisional == "" && d.Final == "" && len(d.ICD10Codes) == 0 {
		return
	}
	b.WriteString(`<section class="final-diagnosis"><h2>Diagnosis</h2>`)
	if d.Final != "" {
		b.WriteString(`<p class="diagnosis-primary"><strong>Final Diagnosis:</strong> ` + esc(d.Final) + `</p>`)
	}
	if d.Provisional != "" {
		b.WriteString(`<p class="diagnosis-secondary"><strong>Provisional Diagnosis:</strong> ` + esc(d.Provisional) + `</p>`)
	}
	if len(d.ICD10Codes) > 0 {
		b.WriteString(`<ul class="icd10-codes">`)
		for _, code := range d.ICD10Codes {
			b.WriteString(`<li>` + esc(code) + `</li>`)
		}
		b.WriteString(`</ul>`)
	}
	b.WriteString(`</section>`)
	b.WriteString(pageBreak)
}

func renderHospitalCourse(b *strings.Builder, doc *StructuredDocument) bool {
	if doc.HospitalCourse == "" {
		return false
	}
	b.WriteString(`<section class="hospital-course"><h2>Course in Hospital</h2><p>` +
		esc(doc.HospitalCourse) + `</p></section>`)
	return true
}

func renderProcedures(b *strings.Builder, doc *StructuredDocument) bool {
	if doc.Procedures.IsEmpty() {
		return false
	}
	b.WriteString(`<section class="procedures"><h2>Procedures Performed</h2>`)
	if len(doc.Procedures.Items) > 0 {
		b.WriteString(`<table class="data-table"><thead><tr><th>Procedure</th><th>Date</th><th>Performed By</th><th>Remarks</th></tr></thead><tbody>`)
		for _, item := range doc.Procedures.Items {
			b.WriteString(`<tr><td>` + esc(item.Name) + `</td><td>` + esc(item.Date) +
				`</td><td>` + esc(item.Performer) + `</td><td>` + esc(item.Notes) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
	} else {
		b.WriteString(`<p>` + esc(doc.Procedures.Text) + `</p>`)
	}
	b.WriteString(`</section>`)
	return true
}

func renderDevices(b *strings.Builder, doc *StructuredDocument) {
	if len(doc.Devices) == 0 {
		return
	}
	b.WriteString(`<section class="devices"><h2>Devices / Implants</h2>`)
	b.WriteString(`<table class="data-table"><thead><tr><th>Device</th><th>Site</th><th>Date</th><th>Remarks</th></tr></thead><tbody>`)
	for _, item := range doc.Devices {
		b.WriteString(`<tr><td>` + esc(item.Name) + `</td><td>` + esc(item.Site) +
			`</td><td>` + esc(item.Date) + `</td><td>` + esc(item.Notes) + `</td></tr>`)
	}
	b.WriteString(`</tbody></table></section>`)
}

func renderDischargeCondition(b *strings.Builder, doc *StructuredDocument) {
	condition := doc.Admission.DischargeCondition
	if condition == "" {
		condition = defaultDischargeCondition
	}
	b.WriteString(`<section class="discharge-condition"><h2>Condition at Discharge</h2><p>` +
		esc(condition) + `</p></section>`)
}

func renderMedications(b *strings.Builder, doc *StructuredDocument) {
	if len(doc.Medications) == 0 {
		return
	}
	b.WriteString(`<section class="medications"><h2>Discharge Medications</h2>`)
	b.WriteString(`<table class="data-table"><thead><tr><th>Medication</th><th>Dose</th><th>Route</th><th>Frequency</th><th>Duration</th><th>Remarks</th></tr></thead><tbody>`)
	for _, med := range doc.Medications {
		b.WriteString(`<tr><td>` + esc(med.Name) + `</td><td>` + esc(med.Dose) +
			`</td><td>` + esc(med.Route) + `</td><td>` + esc(med.Frequency) +
			`</td><td>` + esc(med.Duration) + `</td><td>` + esc(med.Notes) + `</td></tr>`)
	}
	b.WriteString(`</tbody></table></section>`)
}

func renderInstructions(b *strings.Builder, doc *StructuredDocument) {
	ins := doc.Instructions
	blocks := []struct {
		class, title, text string
	}{
		{"follow-up", "Follow Up", ins.FollowUp},
		{"red-flags", "Report Immediately If", ins.RedFlags},
		{"diet-advice", "Diet", ins.Diet},
		{"activity-advice", "Activity", ins.Activity},
		{"wound-care", "Wound Care", ins.WoundCare},
		{"general-advice", "Advice", ins.Advice},
	}
	for _, block := range blocks {
		if block.text == "" {
			continue
		}
		b.WriteString(`<section class="` + block.class + `"><h2>` + block.title + `</h2><p>` +
			esc(block.text) + `</p></section>`)
	}
}

func renderFooter(b *strings.Builder, doc *StructuredDocument) {
	b.WriteString(`<footer class="signature-block">`)
	b.WriteString(`<div class="signatory"><p class="signature-line"></p><p>` +
		esc(doc.Admission.Consultant) + `</p><p>Consultant, ` + esc(doc.Admission.Department) + `</p></div>`)
	b.WriteString(`<p class="footer-note">This is an electronically generated document. ` +
		`Please bring this summary on every follow-up visit.</p>`)
	b.WriteString(`</footer>`)
}

func joinNonEmpty(sep string, values ...string) string {
	var parts []string
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func esc(s string) string {
	return html.EscapeString(s)
}
