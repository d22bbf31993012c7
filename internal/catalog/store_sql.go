package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutAssessment(ctx context.Context, a Assessment) error {
	qj, err := json.Marshal(a.Questions)
	if err != nil {
		return err
	}
	sj, err := json.Marshal(a.Sections)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments (id,title,duration_min,passing_grade,sections_json,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, duration_min=EXCLUDED.duration_min,
			passing_grade=EXCLUDED.passing_grade, sections_json=EXCLUDED.sections_json, questions_json=EXCLUDED.questions_json`,
		a.ID, a.Title, a.DurationMin, a.PassingGrade, string(sj), string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	a, err := s.GetAssessmentFull(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	return a.StripAnswerKeys(), nil
}

func (s *SQLStore) GetAssessmentFull(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,duration_min,passing_grade,sections_json,questions_json,created_at
		FROM assessments WHERE id=$1`, id)
	var a Assessment
	var sjson, qjson string
	if err := row.Scan(&a.ID, &a.Title, &a.DurationMin, &a.PassingGrade, &sjson, &qjson, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assessment{}, ErrNotFound
		}
		return Assessment{}, err
	}
	if sjson != "" {
		if err := json.Unmarshal([]byte(sjson), &a.Sections); err != nil {
			return Assessment{}, err
		}
	}
	if err := json.Unmarshal([]byte(qjson), &a.Questions); err != nil {
		return Assessment{}, err
	}
	return a, nil
}

func (s *SQLStore) ListAssessments(ctx context.Context, opts ListOpts) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id,title,duration_min,passing_grade,sections_json,questions_json,created_at FROM assessments`
	args := []any{}
	if term := strings.TrimSpace(opts.Q); term != "" {
		q += ` WHERE title LIKE $1`
		args = append(args, "%"+term+"%")
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	skip := opts.Offset
	for rows.Next() {
		var a Assessment
		var sjson, qjson string
		if err := rows.Scan(&a.ID, &a.Title, &a.DurationMin, &a.PassingGrade, &sjson, &qjson, &a.CreatedAt); err != nil {
			return nil, err
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(out) == limit {
			break
		}
		var secs []Section
		var qs []Question
		_ = json.Unmarshal([]byte(sjson), &secs)
		_ = json.Unmarshal([]byte(qjson), &qs)
		out = append(out, Summary{
			ID:            a.ID,
			Title:         a.Title,
			QuestionCount: len(qs),
			SectionCount:  len(secs),
			DurationMin:   a.DurationMin,
			PassingGrade:  a.PassingGrade,
			CreatedAt:     a.CreatedAt,
		})
	}
	return out, rows.Err()
}
