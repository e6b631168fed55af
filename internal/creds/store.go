package creds

import (
	"context"
	"errors"
	"time"

	"github.com/example/resy-sniper/internal/db"
)

// ErrNotFound means the user never registered API credentials. The workflow
// must not start in that case; callers tell the user to register first.
var ErrNotFound = errors.New("credentials not registered")

// Credentials is the read-only view the snipe workflow borrows for one run.
type Credentials struct {
	APIKey    string
	AuthToken string
	TimeZone  string // named zone, see ResolveZone
}

// Store keeps per-user Resy credentials, with the API key and auth token
// encrypted at rest.
type Store struct {
	db  *db.DB
	enc *aead
}

func NewStore(d *db.DB, encKey []byte) (*Store, error) {
	e, err := newAEAD(encKey)
	if err != nil {
		return nil, err
	}
	return &Store{db: d, enc: e}, nil
}

// Lookup returns the credentials for a user, or ErrNotFound if the user has
// not registered (no row, or a row with empty tokens).
func (s *Store) Lookup(ctx context.Context, userID int64) (Credentials, error) {
	var c Credentials
	err := s.db.QueryRow(ctx,
		`SELECT api_key, auth_token, timezone FROM credentials WHERE user_id=$1`,
		userID).Scan(&c.APIKey, &c.AuthToken, &c.TimeZone)
	if err != nil {
		if errors.Is(db.WrapNotFound(err), db.ErrNotFound) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, err
	}
	if c.APIKey == "" || c.AuthToken == "" {
		return Credentials{}, ErrNotFound
	}
	if c.APIKey, err = s.enc.open(c.APIKey); err != nil {
		return Credentials{}, err
	}
	if c.AuthToken, err = s.enc.open(c.AuthToken); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// Save upserts a user's credentials, encrypting the sensitive fields.
func (s *Store) Save(ctx context.Context, userID int64, c Credentials) error {
	apiKey, err := s.enc.seal(c.APIKey)
	if err != nil {
		return err
	}
	authToken, err := s.enc.seal(c.AuthToken)
	if err != nil {
		return err
	}
	return s.db.Exec(ctx, `
INSERT INTO credentials(user_id, api_key, auth_token, timezone, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id) DO UPDATE
SET api_key=EXCLUDED.api_key, auth_token=EXCLUDED.auth_token, timezone=EXCLUDED.timezone, updated_at=EXCLUDED.updated_at`,
		userID, apiKey, authToken, c.TimeZone, time.Now().UTC())
}
