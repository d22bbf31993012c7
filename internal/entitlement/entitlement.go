// Package entitlement records which user may sit which assessment. A session
// cannot be created without a matching grant.
package entitlement

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotEntitled = errors.New("entitlement: user is not entitled to this assessment")
	ErrExists      = errors.New("entitlement: grant already exists")
)

type Entitlement struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	AssessmentID string `json:"assessment_id"`
	PurchaseRef  string `json:"purchase_ref,omitempty"`
	GrantedAt    int64  `json:"granted_at"`
}

type Store interface {
	Grant(ctx context.Context, e Entitlement) error
	// Lookup returns the grant for (userID, assessmentID) or ErrNotEntitled.
	Lookup(ctx context.Context, userID, assessmentID string) (Entitlement, error)
	ListForUser(ctx context.Context, userID string) ([]Entitlement, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Grant(ctx context.Context, e Entitlement) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO entitlements (id,user_id,assessment_id,purchase_ref,granted_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id,assessment_id) DO NOTHING`,
		e.ID, e.UserID, e.AssessmentID, e.PurchaseRef, e.GrantedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLStore) Lookup(ctx context.Context, userID, assessmentID string) (Entitlement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,user_id,assessment_id,purchase_ref,granted_at
		FROM entitlements WHERE user_id=$1 AND assessment_id=$2`, userID, assessmentID)
	var e Entitlement
	if err := row.Scan(&e.ID, &e.UserID, &e.AssessmentID, &e.PurchaseRef, &e.GrantedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entitlement{}, ErrNotEntitled
		}
		return Entitlement{}, err
	}
	return e, nil
}

func (s *SQLStore) ListForUser(ctx context.Context, userID string) ([]Entitlement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,user_id,assessment_id,purchase_ref,granted_at
		FROM entitlements WHERE user_id=$1 ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entitlement{}
	for rows.Next() {
		var e Entitlement
		if err := rows.Scan(&e.ID, &e.UserID, &e.AssessmentID, &e.PurchaseRef, &e.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
