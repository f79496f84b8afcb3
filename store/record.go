package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/jobclip/idgen"
)

// JobRecord is a captured job posting.
type JobRecord struct {
	ID             string `json:"id"`
	OwnerID        string `json:"-"`
	JobTitle       string `json:"jobTitle"`
	CompanyName    string `json:"companyName"`
	JobURL         string `json:"jobUrl"`
	JobDescription string `json:"jobDescription"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// InsertRecord saves a new job record for an owner. A missing ID is
// generated.
func (s *Store) InsertRecord(ctx context.Context, rec *JobRecord) error {
	if rec.OwnerID == "" {
		return fmt.Errorf("store: record has no owner")
	}
	if rec.ID == "" {
		rec.ID = idgen.Record()
	}
	now := time.Now().UnixMilli()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO job_records (id, owner_id, job_title, company_name, job_url,
		job_description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.JobTitle, rec.CompanyName, rec.JobURL,
		rec.JobDescription, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// GetRecord retrieves one of owner's records by ID. Returns nil if the
// record does not exist or belongs to someone else.
func (s *Store) GetRecord(ctx context.Context, ownerID, id string) (*JobRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, owner_id, job_title, company_name, job_url, job_description,
		created_at, updated_at
		FROM job_records WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanRecord(row)
}

// ListRecords returns all of owner's records, newest first.
func (s *Store) ListRecords(ctx context.Context, ownerID string) ([]*JobRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, owner_id, job_title, company_name, job_url, job_description,
		created_at, updated_at
		FROM job_records WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*JobRecord
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdateRecord updates the mutable fields of one of owner's records.
// Returns sql.ErrNoRows if the record does not exist for that owner.
func (s *Store) UpdateRecord(ctx context.Context, rec *JobRecord) error {
	rec.UpdatedAt = time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`UPDATE job_records SET job_title=?, company_name=?, job_url=?,
		job_description=?, updated_at=?
		WHERE id=? AND owner_id=?`,
		rec.JobTitle, rec.CompanyName, rec.JobURL,
		rec.JobDescription, rec.UpdatedAt, rec.ID, rec.OwnerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteRecord removes one of owner's records.
func (s *Store) DeleteRecord(ctx context.Context, ownerID, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM job_records WHERE id = ? AND owner_id = ?`, id, ownerID)
	return err
}

// CountRecords returns the number of records owner has saved.
func (s *Store) CountRecords(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_records WHERE owner_id = ?`, ownerID).Scan(&count)
	return count, err
}

func scanRecord(row *sql.Row) (*JobRecord, error) {
	var rec JobRecord
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.JobTitle, &rec.CompanyName, &rec.JobURL,
		&rec.JobDescription, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return &rec, nil
}

func scanRecordRows(rows *sql.Rows) (*JobRecord, error) {
	var rec JobRecord
	err := rows.Scan(
		&rec.ID, &rec.OwnerID, &rec.JobTitle, &rec.CompanyName, &rec.JobURL,
		&rec.JobDescription, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return &rec, nil
}
