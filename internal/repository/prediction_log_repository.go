package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/scorecast/internal/model"
)

type PredictionLogRepository struct {
	pool *pgxpool.Pool
}

func NewPredictionLogRepository(pool *pgxpool.Pool) *PredictionLogRepository {
	if pool == nil {
		return nil
	}
	return &PredictionLogRepository{pool: pool}
}

// InsertBatch writes all entries in one statement. Duplicate IDs are ignored so
// a requeued batch can be replayed safely.
func (r *PredictionLogRepository) InsertBatch(ctx context.Context, batch []*model.PredictionLog) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	ids := make([]uuid.UUID, n)
	requestIDs := make([]string, n)
	genders := make([]string, n)
	studyHours := make([]float64, n)
	attendance := make([]float64, n)
	pastScores := make([]float64, n)
	parentEdu := make([]string, n)
	internet := make([]string, n)
	extra := make([]string, n)
	scores := make([]float64, n)
	labels := make([]string, n)
	createdAts := make([]time.Time, n)
	for i, p := range batch {
		ids[i] = p.ID
		requestIDs[i] = p.RequestID
		genders[i] = p.Gender
		studyHours[i] = p.StudyHoursPerWeek
		attendance[i] = p.AttendanceRate
		pastScores[i] = p.PastExamScores
		parentEdu[i] = p.ParentalEducationLevel
		internet[i] = p.InternetAccessAtHome
		extra[i] = p.ExtracurricularActivities
		scores[i] = p.FinalExamScore
		labels[i] = p.PassFail
		createdAts[i] = p.CreatedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO prediction_logs (
			id, request_id, gender, study_hours_per_week, attendance_rate, past_exam_scores,
			parental_education_level, internet_access_at_home, extracurricular_activities,
			final_exam_score, pass_fail, created_at
		)
		SELECT * FROM UNNEST(
			$1::uuid[], $2::text[], $3::text[], $4::float8[], $5::float8[], $6::float8[],
			$7::text[], $8::text[], $9::text[], $10::float8[], $11::text[], $12::timestamptz[]
		)
		ON CONFLICT (id) DO NOTHING`,
		ids, requestIDs, genders, studyHours, attendance, pastScores,
		parentEdu, internet, extra, scores, labels, createdAts,
	)
	return err
}

// Insert writes a single entry; used as the fallback when a batch fails.
func (r *PredictionLogRepository) Insert(ctx context.Context, p *model.PredictionLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO prediction_logs (
			id, request_id, gender, study_hours_per_week, attendance_rate, past_exam_scores,
			parental_education_level, internet_access_at_home, extracurricular_activities,
			final_exam_score, pass_fail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.RequestID, p.Gender, p.StudyHoursPerWeek, p.AttendanceRate, p.PastExamScores,
		p.ParentalEducationLevel, p.InternetAccessAtHome, p.ExtracurricularActivities,
		p.FinalExamScore, p.PassFail, p.CreatedAt,
	)
	return err
}

// ListRecent returns the newest entries first.
func (r *PredictionLogRepository) ListRecent(ctx context.Context, limit int) ([]model.PredictionLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, gender, study_hours_per_week, attendance_rate, past_exam_scores,
		       parental_education_level, internet_access_at_home, extracurricular_activities,
		       final_exam_score, pass_fail, created_at
		FROM prediction_logs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.PredictionLog{}
	for rows.Next() {
		var p model.PredictionLog
		if err := rows.Scan(
			&p.ID, &p.RequestID, &p.Gender, &p.StudyHoursPerWeek, &p.AttendanceRate, &p.PastExamScores,
			&p.ParentalEducationLevel, &p.InternetAccessAtHome, &p.ExtracurricularActivities,
			&p.FinalExamScore, &p.PassFail, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, p)
	}
	return logs, rows.Err()
}
