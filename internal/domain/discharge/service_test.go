package discharge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dischargehq/discharge/internal/platform/notification"
)

// mockRepo is an in-memory Repository for service tests.
type mockRepo struct {
	records map[uuid.UUID]*DischargeRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*DischargeRecord)}
}

func (m *mockRepo) Create(_ context.Context, rec *DischargeRecord) error {
	rec.ID = uuid.New()
	clone := *rec
	m.records[rec.ID] = &clone
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*DischargeRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *rec
	return &clone, nil
}

func (m *mockRepo) GetByUHID(_ context.Context, uhid string) (*DischargeRecord, error) {
	for _, rec := range m.records {
		if rec.UHID == uhid {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) Update(_ context.Context, rec *DischargeRecord) error {
	if _, ok := m.records[rec.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *rec
	m.records[rec.ID] = &clone
	return nil
}

func (m *mockRepo) ListByStatus(_ context.Context, status Status, limit, offset int) ([]*DischargeRecord, int, error) {
	var out []*DischargeRecord
	for _, rec := range m.records {
		if rec.Status == status {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*DischargeRecord, int, error) {
	var out []*DischargeRecord
	for _, rec := range m.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, len(out), nil
}

func newTestService(repo Repository, sms notification.SMSSender) *Service {
	enhancer := NewEnhancer(nil, 0, zerolog.Nop())
	return NewService(repo, enhancer, sms, zerolog.Nop())
}

func createTestRecord(t *testing.T, svc *Service) *DischargeRecord {
	t.Helper()
	rec := testRecord()
	if err := svc.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestCreateRequiresIdentity(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	cases := []*DischargeRecord{
		{IPID: "IP1", Mobile: "9"},
		{UHID: "UH1", Mobile: "9"},
		{UHID: "UH1", IPID: "IP1"},
	}
	for _, rec := range cases {
		if err := svc.Create(ctx, rec); err == nil {
			t.Errorf("expected identity error for %+v", rec)
		}
	}

	rec := &DischargeRecord{UHID: "UH1", IPID: "IP1", Mobile: "9"}
	if err := svc.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != StatusDraft {
		t.Errorf("new record status = %s, want DRAFT", rec.Status)
	}
}

func TestFullApprovalLifecycle(t *testing.T) {
	repo := newMockRepo()
	sms := &notification.MockSMSSender{}
	svc := newTestService(repo, sms)
	ctx := context.Background()

	rec := createTestRecord(t, svc)

	rec, err := svc.Enhance(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if rec.Status != StatusAIEnhanced {
		t.Fatalf("status = %s, want AI_ENHANCED", rec.Status)
	}
	if rec.AIEnhancedText == "" || rec.StructuredDoc == nil || rec.RenderedHTML == "" {
		t.Error("enhance must persist narrative, document and rendered output")
	}

	rec, err = svc.Submit(ctx, rec.ID, "doctor touched this up")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Status != StatusPendingApproval || rec.SubmittedAt == nil {
		t.Fatalf("submit: status=%s submittedAt=%v", rec.Status, rec.SubmittedAt)
	}
	if rec.DoctorEditedText != "doctor touched this up" {
		t.Errorf("doctor edit not stored: %q", rec.DoctorEditedText)
	}

	rec, err = svc.ChiefEdit(ctx, rec.ID, "chief final wording")
	if err != nil {
		t.Fatalf("ChiefEdit: %v", err)
	}
	if rec.Status != StatusChiefEdited || rec.ChiefEditedAt == nil {
		t.Fatalf("chief edit: status=%s", rec.Status)
	}

	rec, err = svc.Approve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Status != StatusApproved || rec.ApprovedAt == nil {
		t.Fatalf("approve: status=%s", rec.Status)
	}
	if rec.FinalVerifiedText != "chief final wording" {
		t.Errorf("frozen text = %q, want the chief edit", rec.FinalVerifiedText)
	}

	calls := sms.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one SMS, got %d", len(calls))
	}
	if calls[0].To != rec.Mobile || !strings.Contains(calls[0].Body, rec.UHID) {
		t.Errorf("sms call = %+v", calls[0])
	}
}

func TestApproveWithoutChiefEditFreezesAIText(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	rec := createTestRecord(t, svc)
	rec, _ = svc.Enhance(ctx, rec.ID)
	rec, _ = svc.Submit(ctx, rec.ID, "")

	rec, err := svc.Approve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.FinalVerifiedText != rec.AIEnhancedText {
		t.Errorf("without a chief edit the AI text freezes, got %q", rec.FinalVerifiedText)
	}
}

func TestApproveSMSFailureDoesNotUndoApproval(t *testing.T) {
	repo := newMockRepo()
	sms := &notification.MockSMSSender{ShouldFail: true, FailError: "gateway down"}
	svc := newTestService(repo, sms)
	ctx := context.Background()

	rec := createTestRecord(t, svc)
	rec, _ = svc.Enhance(ctx, rec.ID)
	rec, _ = svc.Submit(ctx, rec.ID, "")

	rec, err := svc.Approve(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Approve must succeed despite SMS failure: %v", err)
	}

	stored, _ := repo.GetByID(ctx, rec.ID)
	if stored.Status != StatusApproved {
		t.Errorf("persisted status = %s, want APPROVED", stored.Status)
	}
}

func TestRejectRequiresRemarks(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	rec := createTestRecord(t, svc)
	rec, _ = svc.Enhance(ctx, rec.ID)
	rec, _ = svc.Submit(ctx, rec.ID, "")

	if _, err := svc.Reject(ctx, rec.ID, ""); !errors.Is(err, ErrRemarksRequired) {
		t.Fatalf("expected ErrRemarksRequired, got %v", err)
	}

	rec, err := svc.Reject(ctx, rec.ID, "diagnosis section incomplete")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rec.Status != StatusRejected || rec.RejectedAt == nil {
		t.Fatalf("reject: status=%s", rec.Status)
	}
	if rec.RejectionRemarks != "diagnosis section incomplete" {
		t.Errorf("remarks = %q", rec.RejectionRemarks)
	}
}

func TestReopenKeepsAuditTrail(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	rec := createTestRecord(t, svc)
	rec, _ = svc.Enhance(ctx, rec.ID)
	rec, _ = svc.Submit(ctx, rec.ID, "")
	rec, _ = svc.Reject(ctx, rec.ID, "needs work")

	rec, err := svc.Reopen(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if rec.Status != StatusDraft {
		t.Fatalf("status = %s, want DRAFT", rec.Status)
	}
	if rec.RejectionRemarks != "needs work" || rec.RejectedAt == nil {
		t.Error("reopen must keep the rejection audit trail")
	}
}

func TestIllegalTransitionsReturnTransitionError(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	rec := createTestRecord(t, svc)

	// DRAFT cannot be submitted or approved directly.
	var te *TransitionError
	if _, err := svc.Submit(ctx, rec.ID, ""); !errors.As(err, &te) {
		t.Errorf("Submit from DRAFT: expected TransitionError, got %v", err)
	}
	if _, err := svc.Approve(ctx, rec.ID); !errors.As(err, &te) {
		t.Errorf("Approve from DRAFT: expected TransitionError, got %v", err)
	}

	// Approved records are terminal.
	rec, _ = svc.Enhance(ctx, rec.ID)
	rec, _ = svc.Submit(ctx, rec.ID, "")
	rec, _ = svc.Approve(ctx, rec.ID)

	if _, err := svc.Enhance(ctx, rec.ID); !errors.As(err, &te) {
		t.Errorf("Enhance from APPROVED: expected TransitionError, got %v", err)
	}
	if _, err := svc.Reject(ctx, rec.ID, "too late"); !errors.As(err, &te) {
		t.Errorf("Reject from APPROVED: expected TransitionError, got %v", err)
	}
	if _, err := svc.Reopen(ctx, rec.ID); !errors.As(err, &te) {
		t.Errorf("Reopen from APPROVED: expected TransitionError, got %v", err)
	}
}

func TestUpdateFieldsLockedAfterSubmit(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	rec := createTestRecord(t, svc)

	name := "Updated Name"
	updated, err := svc.UpdateFields(ctx, rec.ID, FieldUpdate{PatientName: &name})
	if err != nil {
		t.Fatalf("UpdateFields in DRAFT: %v", err)
	}
	if updated.PatientName != "Updated Name" {
		t.Errorf("patient name = %q", updated.PatientName)
	}
	// Untouched fields keep their values.
	if updated.FinalDiagnosis != rec.FinalDiagnosis {
		t.Error("partial update must not clear other fields")
	}

	rec, _ = svc.Enhance(ctx, rec.ID)
	if _, err := svc.UpdateFields(ctx, rec.ID, FieldUpdate{PatientName: &name}); err != nil {
		t.Fatalf("UpdateFields in AI_ENHANCED: %v", err)
	}

	rec, _ = svc.Submit(ctx, rec.ID, "")
	if _, err := svc.UpdateFields(ctx, rec.ID, FieldUpdate{PatientName: &name}); !errors.Is(err, ErrFieldsLocked) {
		t.Fatalf("expected ErrFieldsLocked after submit, got %v", err)
	}
}

func TestEnhanceReRunInDraftAfterReopen(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	ctx := context.Background()

	rec := createTestRecord(t, svc)
	rec, _ = svc.Enhance(ctx, rec.ID)
	rec, _ = svc.Submit(ctx, rec.ID, "")
	rec, _ = svc.Reject(ctx, rec.ID, "fix course")
	rec, _ = svc.Reopen(ctx, rec.ID)

	rec, err := svc.Enhance(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Enhance after reopen: %v", err)
	}
	if rec.Status != StatusAIEnhanced {
		t.Errorf("status = %s", rec.Status)
	}
}

func TestListByStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	if _, _, err := svc.ListByStatus(context.Background(), Status("BOGUS"), 10, 0); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
