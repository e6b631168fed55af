package snipes

import (
	"context"
	"time"

	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/snipe"
)

// Record is one persisted snipe request and, once finished, its outcome.
// Status moves pending -> scheduled -> booked|conflict|exhausted|failed.
type Record struct {
	ID     int64
	UserID int64

	VenueID         int64
	PartySize       int
	ReservationDate time.Time
	DesiredTime     string
	ReleaseTime     string

	Status    string
	Outcome   *string
	BookedFor *time.Time

	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Request converts the stored row back into the workflow's request value.
func (rec Record) Request() snipe.Request {
	return snipe.Request{
		VenueID:     rec.VenueID,
		PartySize:   rec.PartySize,
		Date:        rec.ReservationDate,
		DesiredTime: rec.DesiredTime,
		ReleaseTime: rec.ReleaseTime,
	}
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO snipes(user_id,venue_id,party_size,reservation_date,desired_time,release_time,status)
VALUES ($1,$2,$3,$4,$5,$6,'pending')
RETURNING id`,
		rec.UserID, rec.VenueID, rec.PartySize, rec.ReservationDate, rec.DesiredTime, rec.ReleaseTime,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

const recordColumns = `id,user_id,venue_id,party_size,reservation_date,desired_time,release_time,status,outcome,booked_for,started_at,finished_at,created_at,updated_at`

func scanRecord(row db.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.VenueID, &rec.PartySize, &rec.ReservationDate,
		&rec.DesiredTime, &rec.ReleaseTime, &rec.Status, &rec.Outcome, &rec.BookedFor,
		&rec.StartedAt, &rec.FinishedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Record, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+recordColumns+`
FROM snipes
WHERE user_id=$1
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClaimPending atomically marks up to limit pending snipes as scheduled and
// returns them, so concurrent dispatchers never double-run a snipe.
func (r *Repo) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, `
UPDATE snipes
SET status='scheduled', started_at=now(), updated_at=now()
WHERE id IN (
  SELECT id FROM snipes
  WHERE status='pending'
  ORDER BY created_at ASC
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING `+recordColumns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Finish records the single outcome of a snipe.
func (r *Repo) Finish(ctx context.Context, id int64, out snipe.Outcome) error {
	var bookedFor *time.Time
	if out.Status == snipe.StatusBooked {
		t := out.BookedAt
		bookedFor = &t
	}
	msg := out.Message()
	return r.db.Exec(ctx, `
UPDATE snipes
SET status=$2, outcome=$3, booked_for=$4, finished_at=now(), updated_at=now()
WHERE id=$1`,
		id, string(out.Status), msg, bookedFor)
}

// Requeue puts a claimed-but-unfinished snipe back to pending, used on
// shutdown so an interrupted wait is retried by the next dispatcher.
func (r *Repo) Requeue(ctx context.Context, id int64) error {
	return r.db.Exec(ctx, `
UPDATE snipes
SET status='pending', started_at=NULL, updated_at=now()
WHERE id=$1 AND status='scheduled'`, id)
}
