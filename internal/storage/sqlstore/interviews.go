package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/prepx/backend/internal/model/interview"
)

// InterviewStore implements interview.Store.
type InterviewStore struct {
	db *DB
}

var _ interview.Store = (*InterviewStore)(nil)

const interviewColumns = `id, user_id, role, type, level, techstack, questions, finalized, created_at`

func (s *InterviewStore) ListByUser(ctx context.Context, userID string) ([]interview.Interview, error) {
	rows, err := s.db.query(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE user_id = ? ORDER BY created_at DESC, id ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	return scanInterviews(rows)
}

func (s *InterviewStore) ListLatest(ctx context.Context, excludeUserID string, limit int) ([]interview.Interview, error) {
	query := `SELECT ` + interviewColumns + ` FROM interviews WHERE finalized = 1 AND user_id <> ? ORDER BY created_at DESC, id ASC`
	args := []any{excludeUserID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list latest interviews: %w", err)
	}
	return scanInterviews(rows)
}

func (s *InterviewStore) FindByID(ctx context.Context, id string) (interview.Interview, error) {
	rows, err := s.db.query(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	if err != nil {
		return interview.Interview{}, fmt.Errorf("find interview: %w", err)
	}
	items, err := scanInterviews(rows)
	if err != nil {
		return interview.Interview{}, err
	}
	if len(items) == 0 {
		return interview.Interview{}, interview.ErrNotFound
	}
	return items[0], nil
}

func (s *InterviewStore) Save(ctx context.Context, item interview.Interview) error {
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("interview id is required")
	}
	techstack, err := encodeList(item.Techstack)
	if err != nil {
		return err
	}
	questions, err := encodeList(item.Questions)
	if err != nil {
		return err
	}

	_, err = s.db.exec(ctx, `
		INSERT INTO interviews (`+interviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			role = excluded.role,
			type = excluded.type,
			level = excluded.level,
			techstack = excluded.techstack,
			questions = excluded.questions,
			finalized = excluded.finalized,
			created_at = excluded.created_at`,
		item.ID, item.UserID, item.Role, item.Type, item.Level, techstack, questions,
		boolToInt(item.Finalized), formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save interview: %w", err)
	}
	return nil
}

// Seed inserts items that are not stored yet and leaves existing rows alone.
func (s *InterviewStore) Seed(ctx context.Context, items []interview.Interview) error {
	for _, item := range items {
		if _, err := s.FindByID(ctx, item.ID); err == nil {
			continue
		} else if !errors.Is(err, interview.ErrNotFound) {
			return err
		}
		if err := s.Save(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *InterviewStore) SaveFeedback(ctx context.Context, fb interview.Feedback) error {
	if _, err := s.FindByID(ctx, fb.InterviewID); err != nil {
		return err
	}

	scores, err := json.Marshal(orEmpty(fb.CategoryScores))
	if err != nil {
		return fmt.Errorf("encode category scores: %w", err)
	}
	strengths, err := encodeList(fb.Strengths)
	if err != nil {
		return err
	}
	areas, err := encodeList(fb.AreasForImprovement)
	if err != nil {
		return err
	}

	_, err = s.db.exec(ctx, `
		INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (interview_id, user_id) DO UPDATE SET
			id = excluded.id,
			total_score = excluded.total_score,
			category_scores = excluded.category_scores,
			strengths = excluded.strengths,
			areas_for_improvement = excluded.areas_for_improvement,
			final_assessment = excluded.final_assessment,
			created_at = excluded.created_at`,
		fb.ID, fb.InterviewID, fb.UserID, fb.TotalScore, string(scores), strengths, areas,
		fb.FinalAssessment, formatTime(fb.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (s *InterviewStore) FindFeedback(ctx context.Context, interviewID, userID string) (interview.Feedback, error) {
	var (
		fb                       interview.Feedback
		scores, strengths, areas string
		created                  string
	)
	err := s.db.queryRow(ctx, `
		SELECT id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at
		FROM feedback WHERE interview_id = ? AND user_id = ?`,
		interviewID, userID,
	).Scan(&fb.ID, &fb.InterviewID, &fb.UserID, &fb.TotalScore, &scores, &strengths, &areas, &fb.FinalAssessment, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return interview.Feedback{}, interview.ErrFeedbackNotFound
	}
	if err != nil {
		return interview.Feedback{}, fmt.Errorf("query feedback: %w", err)
	}

	if err := json.Unmarshal([]byte(scores), &fb.CategoryScores); err != nil {
		return interview.Feedback{}, fmt.Errorf("decode category scores: %w", err)
	}
	if fb.Strengths, err = decodeList(strengths); err != nil {
		return interview.Feedback{}, err
	}
	if fb.AreasForImprovement, err = decodeList(areas); err != nil {
		return interview.Feedback{}, err
	}
	if fb.CreatedAt, err = parseTime(created); err != nil {
		return interview.Feedback{}, fmt.Errorf("parse feedback created_at: %w", err)
	}
	return fb, nil
}

func scanInterviews(rows *sql.Rows) ([]interview.Interview, error) {
	defer rows.Close()

	var out []interview.Interview
	for rows.Next() {
		var (
			item                 interview.Interview
			techstack, questions string
			finalized            int
			created              string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Role, &item.Type, &item.Level,
			&techstack, &questions, &finalized, &created); err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}

		var err error
		if item.Techstack, err = decodeList(techstack); err != nil {
			return nil, err
		}
		if item.Questions, err = decodeList(questions); err != nil {
			return nil, err
		}
		item.Finalized = finalized != 0
		if item.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse interview created_at: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interviews: %w", err)
	}
	return out, nil
}

func encodeList(values []string) (string, error) {
	raw, err := json.Marshal(orEmpty(values))
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

func orEmpty[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
