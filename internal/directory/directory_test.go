package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/directory"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
)

type stubRepo struct {
	mu       sync.Mutex
	subjects map[string]identity.Principal
	findErr  error
	touchErr error
	touched  []string
	touchCh  chan string
}

func (s *stubRepo) FindSubject(ctx context.Context, subjectID string) (identity.Principal, error) {
	if s.findErr != nil {
		return identity.Principal{}, s.findErr
	}
	p, ok := s.subjects[subjectID]
	if !ok {
		return identity.Principal{}, directory.ErrSubjectNotFound
	}
	return p, nil
}

func (s *stubRepo) TouchActivity(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	s.touched = append(s.touched, subjectID)
	s.mu.Unlock()
	if s.touchCh != nil {
		s.touchCh <- subjectID
	}
	return s.touchErr
}

func TestResolveKnownSubject(t *testing.T) {
	repo := &stubRepo{subjects: map[string]identity.Principal{
		"user-1": {SubjectID: "user-1", Role: identity.RolePhotographer, Status: identity.StatusActive, IsVerified: true},
	}}
	svc := directory.NewService(repo, time.Second, nil)

	principal, err := svc.Resolve(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, identity.RolePhotographer, principal.Role)
	require.False(t, principal.ResolvedAt.IsZero())
}

func TestResolveUnknownSubject(t *testing.T) {
	svc := directory.NewService(&stubRepo{}, time.Second, nil)

	_, err := svc.Resolve(context.Background(), "ghost")
	require.ErrorIs(t, err, directory.ErrSubjectNotFound)
}

func TestResolveFaultFailsClosed(t *testing.T) {
	repo := &stubRepo{findErr: errors.New("directory unreachable")}
	svc := directory.NewService(repo, time.Second, nil)

	_, err := svc.Resolve(context.Background(), "user-1")
	require.ErrorIs(t, err, directory.ErrSubjectNotFound)
}

func TestMarkActivityBestEffort(t *testing.T) {
	repo := &stubRepo{touchCh: make(chan string, 1), touchErr: errors.New("write failed")}
	svc := directory.NewService(repo, time.Second, nil)

	// Must not block or propagate the failure.
	svc.MarkActivity("user-1")

	select {
	case id := <-repo.touchCh:
		require.Equal(t, "user-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("activity write never happened")
	}
}
