package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

// PGRepository implements Repository against the Depth Studio user store.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindSubject fetches role, status and verification flag for one subject.
func (r *PGRepository) FindSubject(ctx context.Context, subjectID string) (identity.Principal, error) {
	const query = `
		SELECT subject_id, email, role, status, is_verified
		FROM users
		WHERE subject_id = $1`

	var p identity.Principal
	var role, status string
	err := r.pool.QueryRow(ctx, query, subjectID).Scan(
		&p.SubjectID, &p.Email, &role, &status, &p.IsVerified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Principal{}, ErrSubjectNotFound
		}
		return identity.Principal{}, err
	}
	p.Role = identity.Role(role)
	p.Status = identity.AccountStatus(status)
	return p, nil
}

// TouchActivity bumps the subject's last-seen timestamp.
func (r *PGRepository) TouchActivity(ctx context.Context, subjectID string) error {
	const query = `UPDATE users SET last_seen_at = now() WHERE subject_id = $1`
	_, err := r.pool.Exec(ctx, query, subjectID)
	return err
}

var _ Repository = (*PGRepository)(nil)
