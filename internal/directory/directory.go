// Package directory adapts the external User Directory: it resolves a
// verified subject id to a full principal and reports activity back,
// best-effort.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

// ErrSubjectNotFound indicates the directory has no record for the subject.
var ErrSubjectNotFound = errors.New("directory: subject not found")

// Repository defines the directory reads and the activity write-through.
type Repository interface {
	FindSubject(ctx context.Context, subjectID string) (identity.Principal, error)
	TouchActivity(ctx context.Context, subjectID string) error
}

// Service wraps the repository with the per-call timeout discipline the
// request path requires.
type Service struct {
	repo    Repository
	timeout time.Duration
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{repo: repo, timeout: timeout, logger: logger}
}

// Resolve maps a subject id to a principal. Lookup faults and timeouts are
// reported as ErrSubjectNotFound so callers fail closed.
func (s *Service) Resolve(ctx context.Context, subjectID string) (identity.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	principal, err := s.repo.FindSubject(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, ErrSubjectNotFound) && s.logger != nil {
			s.logger.Warn("directory lookup failed",
				slog.String("subject_id", subjectID), slog.Any("error", err))
		}
		return identity.Principal{}, ErrSubjectNotFound
	}
	principal.ResolvedAt = time.Now()
	return principal, nil
}

// MarkActivity records last-seen activity for the subject. Fire and
// forget: it runs detached from the request, failures are logged and never
// propagated.
func (s *Service) MarkActivity(subjectID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.repo.TouchActivity(ctx, subjectID); err != nil && s.logger != nil {
			s.logger.Warn("mark activity failed",
				slog.String("subject_id", subjectID), slog.Any("error", err))
		}
	}()
}
