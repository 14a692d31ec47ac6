package discharge

import (
	"time"

	"github.com/google/uuid"
)

// Status is the workflow state of a discharge summary.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusAIEnhanced      Status = "AI_ENHANCED"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusChiefEdited     Status = "CHIEF_EDITED"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// allowedTransitions is the full workflow table. APPROVED is terminal;
// REJECTED can only reopen back to DRAFT for resubmission.
var allowedTransitions = map[Status][]Status{
	StatusDraft:           {StatusAIEnhanced, StatusDraft},
	StatusAIEnhanced:      {StatusPendingApproval, StatusDraft},
	StatusPendingApproval: {StatusChiefEdited, StatusApproved, StatusRejected},
	StatusChiefEdited:     {StatusApproved, StatusRejected},
	StatusRejected:        {StatusDraft},
	StatusApproved:        {},
}

// Valid reports whether s is one of the known workflow statuses.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether the workflow table permits moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowsFieldEdits reports whether the author may still mutate the
// free-form clinical fields in this status.
func (s Status) AllowsFieldEdits() bool {
	return s == StatusDraft || s == StatusAIEnhanced
}

// DischargeRecord is one discharge summary per patient episode. The
// identity triplet (UHID, IPID, Mobile) is immutable once created.
type DischargeRecord struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UHID   string    `db:"uhid" json:"uhid"`
	IPID   string    `db:"ipid" json:"ipid"`
	Mobile string    `db:"mobile" json:"mobile"`

	Status Status `db:"status" json:"status"`

	// Free-form clinical fields, author-owned. Mutable only while the
	// record is in DRAFT or AI_ENHANCED.
	PatientName          string `db:"patient_name" json:"patientName"`
	Age                  string `db:"age" json:"age"`
	Gender               string `db:"gender" json:"gender"`
	Address              string `db:"address" json:"address"`
	AdmissionDate        string `db:"admission_date" json:"admissionDate"`
	DischargeDate        string `db:"discharge_date" json:"dischargeDate"`
	Department           string `db:"department" json:"department"`
	Consultant           string `db:"consultant" json:"consultant"`
	WardBed              string `db:"ward_bed" json:"wardBed"`
	ProvisionalDiagnosis string `db:"provisional_diagnosis" json:"provisionalDiagnosis"`
	FinalDiagnosis       string `db:"final_diagnosis" json:"finalDiagnosis"`
	ICD10Codes           string `db:"icd10_codes" json:"icd10Codes"`
	HospitalCourse       string `db:"hospital_course" json:"hospitalCourse"`
	Investigations       string `db:"investigations" json:"investigations"`
	Procedures           string `db:"procedures" json:"procedures"`
	Devices              string `db:"devices" json:"devices"`
	Medications          string `db:"medications" json:"medications"`
	DischargeCondition   string `db:"discharge_condition" json:"dischargeCondition"`
	DietAdvice           string `db:"diet_advice" json:"dietAdvice"`
	ActivityAdvice       string `db:"activity_advice" json:"activityAdvice"`
	WoundCare            string `db:"wound_care" json:"woundCare"`
	FollowUp             string `db:"follow_up" json:"followUp"`
	RedFlags             string `db:"red_flags" json:"redFlags"`
	OtherAdvice          string `db:"other_advice" json:"otherAdvice"`

	// Ordered chain of textual snapshots. Each stage's output becomes the
	// next stage's default input.
	DoctorDraftText   string `db:"doctor_draft_text" json:"doctorDraftText"`
	AIEnhancedText    string `db:"ai_enhanced_text" json:"aiEnhancedText"`
	DoctorEditedText  string `db:"doctor_edited_text" json:"doctorEditedText"`
	ChiefEditedText   string `db:"chief_edited_text" json:"chiefEditedText"`
	FinalVerifiedText string `db:"final_verified_text" json:"finalVerifiedText"`

	// Outputs of the enhancement pipeline.
	StructuredDoc *StructuredDocument `db:"structured_document" json:"structuredDocument,omitempty"`
	MissingFields []string            `db:"missing_fields" json:"missingFields"`
	Warnings      []string            `db:"warnings" json:"warnings"`
	RenderedHTML  string              `db:"rendered_html" json:"renderedOutput"`

	SubmittedAt      *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ChiefEditedAt    *time.Time `db:"chief_edited_at" json:"chiefEditedAt,omitempty"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedAt       *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectionRemarks string     `db:"rejection_remarks" json:"rejectionRemarks,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ResolveFinalText returns the text frozen into FinalVerifiedText at
// approval: the first non-empty snapshot among chief edit, AI enhancement
// and the author's own edit, in that order.
func (r *DischargeRecord) ResolveFinalText() string {
	return firstNonEmpty(r.ChiefEditedText, r.AIEnhancedText, r.DoctorEditedText)
}

// DisplayText returns the most authoritative text available for rendering
// when no structured document exists.
func (r *DischargeRecord) DisplayText() string {
	return firstNonEmpty(r.FinalVerifiedText, r.ChiefEditedText, r.DoctorEditedText, r.AIEnhancedText, r.DoctorDraftText)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
