package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"appointment-chatbot-api/internal/model"
	"appointment-chatbot-api/internal/store"
)

const appointmentColumns = `id, user_id, title, description, scheduled_at, duration_minutes,
	status, appointment_type, location, notes, created_at, updated_at`

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO appointments
		   (id, user_id, title, description, scheduled_at, duration_minutes, status, appointment_type, location, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.Title, nullable(a.Description), a.ScheduledAt, a.DurationMinutes,
		a.Status, a.Type, nullable(a.Location), nullable(a.Notes),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) GetAppointment(ctx context.Context, ownerID, id string) (*model.Appointment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments WHERE id = $1 AND user_id = $2`, id, ownerID,
	)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, ownerID string, f store.AppointmentFilter) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE user_id = $1`
	args := []any{ownerID}
	if f.Status != "" {
		q += ` AND status = $2`
		args = append(args, f.Status)
	}
	q += ` ORDER BY scheduled_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += ` LIMIT $` + strconv.Itoa(len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments
		 SET title=$1, description=$2, scheduled_at=$3, duration_minutes=$4, status=$5,
		     appointment_type=$6, location=$7, notes=$8, updated_at=NOW()
		 WHERE id=$9 AND user_id=$10`,
		a.Title, nullable(a.Description), a.ScheduledAt, a.DurationMinutes, a.Status,
		a.Type, nullable(a.Location), nullable(a.Notes), a.ID, a.UserID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAppointment(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM appointments WHERE id=$1 AND user_id=$2`, id, ownerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppointmentStats(ctx context.Context, ownerID string) (store.AppointmentStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM appointments WHERE user_id = $1 GROUP BY status`, ownerID,
	)
	if err != nil {
		return store.AppointmentStats{}, err
	}
	defer rows.Close()

	stats := store.AppointmentStats{ByStatus: map[string]int{}}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return store.AppointmentStats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (*model.Appointment, error) {
	a := &model.Appointment{}
	var description, location, notes *string
	err := row.Scan(
		&a.ID, &a.UserID, &a.Title, &description, &a.ScheduledAt, &a.DurationMinutes,
		&a.Status, &a.Type, &location, &notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		a.Description = *description
	}
	if location != nil {
		a.Location = *location
	}
	if notes != nil {
		a.Notes = *notes
	}
	return a, nil
}
