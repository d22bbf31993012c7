package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
		(id,assessment_id,user_id,entitlement_id,mode,status,started_at,elapsed_sec,current_index,completed_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sess.ID, sess.AssessmentID, sess.UserID, sess.EntitlementID, string(sess.Mode), string(sess.Status),
		sess.StartedAt, sess.ElapsedSec, sess.CurrentIndex, sess.CompletedAt, sess.CreatedAt)
	return err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,assessment_id,user_id,entitlement_id,mode,status,started_at,elapsed_sec,current_index,completed_at,created_at
		FROM sessions WHERE id=$1`, id)
	var sess Session
	var mode, status string
	if err := row.Scan(&sess.ID, &sess.AssessmentID, &sess.UserID, &sess.EntitlementID, &mode, &status,
		&sess.StartedAt, &sess.ElapsedSec, &sess.CurrentIndex, &sess.CompletedAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	sess.Mode = Mode(mode)
	sess.Status = Status(status)
	return sess, nil
}

// UpdateSession writes status, timing and position. The elapsed snapshot is
// guarded in SQL so a late heartbeat can never move it backward.
func (s *SQLStore) UpdateSession(ctx context.Context, sess Session) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET
		status=$1,
		started_at=$2,
		elapsed_sec=CASE WHEN $3 > elapsed_sec THEN $3 ELSE elapsed_sec END,
		current_index=$4,
		completed_at=$5
		WHERE id=$6`,
		string(sess.Status), sess.StartedAt, sess.ElapsedSec, sess.CurrentIndex, sess.CompletedAt, sess.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertAnswer replaces a prior selection for the same question only when the
// incoming seq is not behind the stored one. Background writes run with retry
// and can land out of issue order; without the guard a slow first write would
// overwrite the taker's later correction.
func (s *SQLStore) UpsertAnswer(ctx context.Context, a Answer) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO answers
		(session_id,question_id,selected,is_correct,time_spent_sec,answered_at,seq)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (session_id,question_id) DO UPDATE SET
			selected=EXCLUDED.selected, is_correct=EXCLUDED.is_correct,
			time_spent_sec=EXCLUDED.time_spent_sec, answered_at=EXCLUDED.answered_at,
			seq=EXCLUDED.seq
		WHERE EXCLUDED.seq >= answers.seq`,
		a.SessionID, a.QuestionID, a.Selected, a.IsCorrect, a.TimeSpentSec, a.AnsweredAt, a.Seq)
	return err
}

func (s *SQLStore) GetAnswers(ctx context.Context, sessionID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id,question_id,selected,is_correct,time_spent_sec,answered_at,seq
		FROM answers WHERE session_id=$1 ORDER BY question_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Selected, &a.IsCorrect, &a.TimeSpentSec, &a.AnsweredAt, &a.Seq); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateResult(ctx context.Context, r Result) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO results
		(session_id,assessment_id,user_id,total_score,max_score,percentage,correct_count,wrong_count,unanswered_count,passed,completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (session_id) DO NOTHING`,
		r.SessionID, r.AssessmentID, r.UserID, r.TotalScore, r.MaxScore, r.Percentage,
		r.CorrectCount, r.WrongCount, r.UnansweredCount, r.Passed, r.CompletedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrResultExists
	}
	return nil
}

func (s *SQLStore) GetResult(ctx context.Context, sessionID string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT session_id,assessment_id,user_id,total_score,max_score,percentage,correct_count,wrong_count,unanswered_count,passed,completed_at
		FROM results WHERE session_id=$1`, sessionID)
	var r Result
	if err := row.Scan(&r.SessionID, &r.AssessmentID, &r.UserID, &r.TotalScore, &r.MaxScore, &r.Percentage,
		&r.CorrectCount, &r.WrongCount, &r.UnansweredCount, &r.Passed, &r.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrResultNotFound
		}
		return Result{}, err
	}
	return r, nil
}

func (s *SQLStore) ListCompletedResults(ctx context.Context, assessmentID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id,assessment_id,user_id,total_score,max_score,percentage,correct_count,wrong_count,unanswered_count,passed,completed_at
		FROM results WHERE assessment_id=$1 ORDER BY total_score DESC, completed_at ASC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.SessionID, &r.AssessmentID, &r.UserID, &r.TotalScore, &r.MaxScore, &r.Percentage,
			&r.CorrectCount, &r.WrongCount, &r.UnansweredCount, &r.Passed, &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListSessions(ctx context.Context, opts ListOpts) ([]Session, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, cond+placeholder(len(args)))
	}
	if opts.AssessmentID != "" {
		add("assessment_id=", opts.AssessmentID)
	}
	if opts.UserID != "" {
		add("user_id=", opts.UserID)
	}
	if opts.Status != "" {
		add("status=", opts.Status)
	}
	q := `SELECT id,assessment_id,user_id,entitlement_id,mode,status,started_at,elapsed_sec,current_index,completed_at,created_at FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += " LIMIT " + placeholder(len(args))
	args = append(args, opts.Offset)
	q += " OFFSET " + placeholder(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		var sess Session
		var mode, status string
		if err := rows.Scan(&sess.ID, &sess.AssessmentID, &sess.UserID, &sess.EntitlementID, &mode, &status,
			&sess.StartedAt, &sess.ElapsedSec, &sess.CurrentIndex, &sess.CompletedAt, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sess.Mode = Mode(mode)
		sess.Status = Status(status)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func placeholder(n int) string { return fmt.Sprintf("$%d", n) }
