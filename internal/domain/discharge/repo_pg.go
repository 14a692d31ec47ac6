package discharge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the PostgreSQL-backed Repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const recordCols = `id, uhid, ipid, mobile, status,
	patient_name, age, gender, address,
	admission_date, discharge_date, department, consultant, ward_bed,
	provisional_diagnosis, final_diagnosis, icd10_codes,
	hospital_course, investigations, procedures, devices, medications,
	discharge_condition, diet_advice, activity_advice, wound_care, follow_up, red_flags, other_advice,
	doctor_draft_text, ai_enhanced_text, doctor_edited_text, chief_edited_text, final_verified_text,
	structured_document, missing_fields, warnings, rendered_html,
	submitted_at, chief_edited_at, approved_at, rejected_at, rejection_remarks,
	created_at, updated_at`

func scanRecord(row pgx.Row) (*DischargeRecord, error) {
	var r DischargeRecord
	var structured []byte
	err := row.Scan(&r.ID, &r.UHID, &r.IPID, &r.Mobile, &r.Status,
		&r.PatientName, &r.Age, &r.Gender, &r.Address,
		&r.AdmissionDate, &r.DischargeDate, &r.Department, &r.Consultant, &r.WardBed,
		&r.ProvisionalDiagnosis, &r.FinalDiagnosis, &r.ICD10Codes,
		&r.HospitalCourse, &r.Investigations, &r.Procedures, &r.Devices, &r.Medications,
		&r.DischargeCondition, &r.DietAdvice, &r.ActivityAdvice, &r.WoundCare, &r.FollowUp, &r.RedFlags, &r.OtherAdvice,
		&r.DoctorDraftText, &r.AIEnhancedText, &r.DoctorEditedText, &r.ChiefEditedText, &r.FinalVerifiedText,
		&structured, &r.MissingFields, &r.Warnings, &r.RenderedHTML,
		&r.SubmittedAt, &r.ChiefEditedAt, &r.ApprovedAt, &r.RejectedAt, &r.RejectionRemarks,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(structured) > 0 {
		var doc StructuredDocument
		if err := json.Unmarshal(structured, &doc); err != nil {
			return nil, fmt.Errorf("decode structured document: %w", err)
		}
		r.StructuredDoc = &doc
	}
	return &r, nil
}

func marshalStructured(rec *DischargeRecord) ([]byte, error) {
	if rec.StructuredDoc == nil {
		return nil, nil
	}
	return json.Marshal(rec.StructuredDoc)
}

func (r *repoPG) Create(ctx context.Context, rec *DischargeRecord) error {
	rec.ID = uuid.New()
	structured, err := marshalStructured(rec)
	if err != nil {
		return fmt.Errorf("encode structured document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO discharge_record (id, uhid, ipid, mobile, status,
			patient_name, age, gender, address,
			admission_date, discharge_date, department, consultant, ward_bed,
			provisional_diagnosis, final_diagnosis, icd10_codes,
			hospital_course, investigations, procedures, devices, medications,
			discharge_condition, diet_advice, activity_advice, wound_care, follow_up, red_flags, other_advice,
			doctor_draft_text, ai_enhanced_text, doctor_edited_text, chief_edited_text, final_verified_text,
			structured_document, missing_fields, warnings, rendered_html,
			submitted_at, chief_edited_at, approved_at, rejected_at, rejection_remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,
			$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38,$39,$40,$41,$42,$43)`,
		rec.ID, rec.UHID, rec.IPID, rec.Mobile, rec.Status,
		rec.PatientName, rec.Age, rec.Gender, rec.Address,
		rec.AdmissionDate, rec.DischargeDate, rec.Department, rec.Consultant, rec.WardBed,
		rec.ProvisionalDiagnosis, rec.FinalDiagnosis, rec.ICD10Codes,
		rec.HospitalCourse, rec.Investigations, rec.Procedures, rec.Devices, rec.Medications,
		rec.DischargeCondition, rec.DietAdvice, rec.ActivityAdvice, rec.WoundCare, rec.FollowUp, rec.RedFlags, rec.OtherAdvice,
		rec.DoctorDraftText, rec.AIEnhancedText, rec.DoctorEditedText, rec.ChiefEditedText, rec.FinalVerifiedText,
		structured, rec.MissingFields, rec.Warnings, rec.RenderedHTML,
		rec.SubmittedAt, rec.ChiefEditedAt, rec.ApprovedAt, rec.RejectedAt, rec.RejectionRemarks)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*DischargeRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordCols+` FROM discharge_record WHERE id = $1`, id))
}

func (r *repoPG) GetByUHID(ctx context.Context, uhid string) (*DischargeRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM discharge_record WHERE uhid = $1 ORDER BY created_at DESC LIMIT 1`, uhid))
}

func (r *repoPG) Update(ctx context.Context, rec *DischargeRecord) error {
	structured, err := marshalStructured(rec)
	if err != nil {
		return fmt.Errorf("encode structured document: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE discharge_record SET status=$2,
			patient_name=$3, age=$4, gender=$5, address=$6,
			admission_date=$7, discharge_date=$8, department=$9, consultant=$10, ward_bed=$11,
			provisional_diagnosis=$12, final_diagnosis=$13, icd10_codes=$14,
			hospital_course=$15, investigations=$16, procedures=$17, devices=$18, medications=$19,
			discharge_condition=$20, diet_advice=$21, activity_advice=$22, wound_care=$23,
			follow_up=$24, red_flags=$25, other_advice=$26,
			doctor_draft_text=$27, ai_enhanced_text=$28, doctor_edited_text=$29,
			chief_edited_text=$30, final_verified_text=$31,
			structured_document=$32, missing_fields=$33, warnings=$34, rendered_html=$35,
			submitted_at=$36, chief_edited_at=$37, approved_at=$38, rejected_at=$39, rejection_remarks=$40,
			updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.Status,
		rec.PatientName, rec.Age, rec.Gender, rec.Address,
		rec.AdmissionDate, rec.DischargeDate, rec.Department, rec.Consultant, rec.WardBed,
		rec.ProvisionalDiagnosis, rec.FinalDiagnosis, rec.ICD10Codes,
		rec.HospitalCourse, rec.Investigations, rec.Procedures, rec.Devices, rec.Medications,
		rec.DischargeCondition, rec.DietAdvice, rec.ActivityAdvice, rec.WoundCare,
		rec.FollowUp, rec.RedFlags, rec.OtherAdvice,
		rec.DoctorDraftText, rec.AIEnhancedText, rec.DoctorEditedText,
		rec.ChiefEditedText, rec.FinalVerifiedText,
		structured, rec.MissingFields, rec.Warnings, rec.RenderedHTML,
		rec.SubmittedAt, rec.ChiefEditedAt, rec.ApprovedAt, rec.RejectedAt, rec.RejectionRemarks)
	return err
}

func (r *repoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*DischargeRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM discharge_record WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordCols+` FROM discharge_record WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*DischargeRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM discharge_record`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordCols+` FROM discharge_record ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func collectRecords(rows pgx.Rows) ([]*DischargeRecord, error) {
	var records []*DischargeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
