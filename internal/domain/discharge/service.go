package discharge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dischargehq/discharge/internal/platform/notification"
)

// TransitionError reports a status-transition request the workflow table
// does not permit. Handlers surface it as a client error; the record is
// left untouched.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition from %s to %s is not allowed", e.From, e.To)
}

// ErrFieldsLocked is returned when clinical fields are mutated outside of
// DRAFT or AI_ENHANCED.
var ErrFieldsLocked = errors.New("clinical fields can only be edited in DRAFT or AI_ENHANCED status")

// ErrRemarksRequired is returned when a rejection carries no remarks.
var ErrRemarksRequired = errors.New("rejection remarks are required")

// Service is the workflow state machine over discharge records: it owns
// every status transition and the side effects each one triggers.
type Service struct {
	repo     Repository
	enhancer *Enhancer
	sms      notification.SMSSender
	logger   zerolog.Logger
}

func NewService(repo Repository, enhancer *Enhancer, sms notification.SMSSender, logger zerolog.Logger) *Service {
	return &Service{repo: repo, enhancer: enhancer, sms: sms, logger: logger}
}

// Create validates the immutable identity triplet and stores a new record
// in DRAFT.
func (s *Service) Create(ctx context.Context, rec *DischargeRecord) error {
	if rec.UHID == "" {
		return fmt.Errorf("uhid is required")
	}
	if rec.IPID == "" {
		return fmt.Errorf("ipid is required")
	}
	if rec.Mobile == "" {
		return fmt.Errorf("mobile is required")
	}
	rec.Status = StatusDraft
	return s.repo.Create(ctx, rec)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DischargeRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUHID(ctx context.Context, uhid string) (*DischargeRecord, error) {
	return s.repo.GetByUHID(ctx, uhid)
}

func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*DischargeRecord, int, error) {
	if !status.Valid() {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*DischargeRecord, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// FieldUpdate carries the author-editable clinical fields. Identity
// (UHID, IPID, Mobile) is deliberately absent: it is immutable.
type FieldUpdate struct {
	PatientName          *string `json:"patientName,omitempty"`
	Age                  *string `json:"age,omitempty"`
	Gender               *string `json:"gender,omitempty"`
	Address              *string `json:"address,omitempty"`
	AdmissionDate        *string `json:"admissionDate,omitempty"`
	DischargeDate        *string `json:"dischargeDate,omitempty"`
	Department           *string `json:"department,omitempty"`
	Consultant           *string `json:"consultant,omitempty"`
	WardBed              *string `json:"wardBed,omitempty"`
	ProvisionalDiagnosis *string `json:"provisionalDiagnosis,omitempty"`
	FinalDiagnosis       *string `json:"finalDiagnosis,omitempty"`
	ICD10Codes           *string `json:"icd10Codes,omitempty"`
	HospitalCourse       *string `json:"hospitalCourse,omitempty"`
	Investigations       *string `json:"investigations,omitempty"`
	Procedures           *string `json:"procedures,omitempty"`
	Devices              *string `json:"devices,omitempty"`
	Medications          *string `json:"medications,omitempty"`
	DischargeCondition   *string `json:"dischargeCondition,omitempty"`
	DietAdvice           *string `json:"dietAdvice,omitempty"`
	ActivityAdvice       *string `json:"activityAdvice,omitempty"`
	WoundCare            *string `json:"woundCare,omitempty"`
	FollowUp             *string `json:"followUp,omitempty"`
	RedFlags             *string `json:"redFlags,omitempty"`
	OtherAdvice          *string `json:"otherAdvice,omitempty"`
	DoctorDraftText      *string `json:"doctorDraftText,omitempty"`
}

// UpdateFields mutates the free-form clinical fields. Permitted only
// while the record is in DRAFT or AI_ENHANCED.
func (s *Service) UpdateFields(ctx context.Context, id uuid.UUID, update FieldUpdate) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.AllowsFieldEdits() {
		return nil, ErrFieldsLocked
	}

	applyUpdate(rec, update)

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func applyUpdate(rec *DischargeRecord, u FieldUpdate) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&rec.PatientName, u.PatientName)
	set(&rec.Age, u.Age)
	set(&rec.Gender, u.Gender)
	set(&rec.Address, u.Address)
	set(&rec.AdmissionDate, u.AdmissionDate)
	set(&rec.DischargeDate, u.DischargeDate)
	set(&rec.Department, u.Department)
	set(&rec.Consultant, u.Consultant)
	set(&rec.WardBed, u.WardBed)
	set(&rec.ProvisionalDiagnosis, u.ProvisionalDiagnosis)
	set(&rec.FinalDiagnosis, u.FinalDiagnosis)
	set(&rec.ICD10Codes, u.ICD10Codes)
	set(&rec.HospitalCourse, u.HospitalCourse)
	set(&rec.Investigations, u.Investigations)
	set(&rec.Procedures, u.Procedures)
	set(&rec.Devices, u.Devices)
	set(&rec.Medications, u.Medications)
	set(&rec.DischargeCondition, u.DischargeCondition)
	set(&rec.DietAdvice, u.DietAdvice)
	set(&rec.ActivityAdvice, u.ActivityAdvice)
	set(&rec.WoundCare, u.WoundCare)
	set(&rec.FollowUp, u.FollowUp)
	set(&rec.RedFlags, u.RedFlags)
	set(&rec.OtherAdvice, u.OtherAdvice)
	set(&rec.DoctorDraftText, u.DoctorDraftText)
}

// Enhance runs the enhancement pipeline and advances the record to
// AI_ENHANCED, persisting the pipeline's four outputs. The pipeline
// itself never fails; only repository errors surface.
func (s *Service) Enhance(ctx context.Context, id uuid.UUID) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(StatusAIEnhanced) {
		return nil, &TransitionError{From: rec.Status, To: StatusAIEnhanced}
	}

	result := s.enhancer.Enhance(ctx, rec)

	rec.AIEnhancedText = result.NarrativeText
	rec.StructuredDoc = result.Document
	rec.MissingFields = result.MissingFields
	rec.Warnings = result.Warnings
	rec.RenderedHTML = result.RenderedHTML
	rec.Status = StatusAIEnhanced

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Submit moves an enhanced record to PENDING_APPROVAL, stamping
// submittedAt. The author may hand over an edited version of the text.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, editedText string) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(StatusPendingApproval) {
		return nil, &TransitionError{From: rec.Status, To: StatusPendingApproval}
	}

	if editedText != "" {
		rec.DoctorEditedText = editedText
	}
	now := time.Now().UTC()
	rec.SubmittedAt = &now
	rec.Status = StatusPendingApproval

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ChiefEdit records the reviewer's edited text and stamps chiefEditedAt.
func (s *Service) ChiefEdit(ctx context.Context, id uuid.UUID, editedText string) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(StatusChiefEdited) {
		return nil, &TransitionError{From: rec.Status, To: StatusChiefEdited}
	}
	if editedText == "" {
		return nil, fmt.Errorf("chief edited text is required")
	}

	rec.ChiefEditedText = editedText
	now := time.Now().UTC()
	rec.ChiefEditedAt = &now
	rec.Status = StatusChiefEdited

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Approve freezes finalVerifiedText, stamps approvedAt and notifies the
// patient. Notification is best effort: its failure is logged and never
// undoes the approval.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(StatusApproved) {
		return nil, &TransitionError{From: rec.Status, To: StatusApproved}
	}

	rec.FinalVerifiedText = rec.ResolveFinalText()
	now := time.Now().UTC()
	rec.ApprovedAt = &now
	rec.Status = StatusApproved

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	if s.sms != nil {
		msg := fmt.Sprintf("Dear %s, your discharge summary (UHID %s) has been approved and is ready for collection.",
			firstNonEmpty(rec.PatientName, "patient"), rec.UHID)
		if err := s.sms.SendSMS(ctx, rec.Mobile, msg); err != nil {
			s.logger.Error().Err(err).Str("uhid", rec.UHID).Msg("approval notification failed")
		}
	}

	return rec, nil
}

// Reject moves the record to REJECTED with mandatory remarks.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, remarks string) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(StatusRejected) {
		return nil, &TransitionError{From: rec.Status, To: StatusRejected}
	}
	if remarks == "" {
		return nil, ErrRemarksRequired
	}

	rec.RejectionRemarks = remarks
	now := time.Now().UTC()
	rec.RejectedAt = &now
	rec.Status = StatusRejected

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reopen returns a rejected record to DRAFT for resubmission. The
// rejection audit trail (timestamp, remarks) is retained.
func (s *Service) Reopen(ctx context.Context, id uuid.UUID) (*DischargeRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusDraft {
		return rec, nil
	}
	if !rec.Status.CanTransitionTo(StatusDraft) {
		return nil, &TransitionError{From: rec.Status, To: StatusDraft}
	}

	rec.Status = StatusDraft

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
