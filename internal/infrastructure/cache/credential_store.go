package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
)

// CredentialStore keeps the last-known-good credential records, their
// organization index, the active selection and in-flight authentication locks.
type CredentialStore struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCredentialStore stores records for ttl after their last save; zero keeps
// them indefinitely.
func NewCredentialStore(c Cache, ttl time.Duration, logger *zap.Logger) *CredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialStore{cache: c, ttl: ttl, logger: logger.Named("credential_store")}
}

func credentialKey(id uuid.UUID) string { return CredentialPrefix + id.String() }

func (s *CredentialStore) SaveCredential(ctx context.Context, c *gst.Credential) error {
	if c == nil || c.ID == uuid.Nil {
		return apperrors.NewInternalError("cannot store a credential without an id")
	}
	if err := s.cache.SetJSON(ctx, credentialKey(c.ID), c, s.ttl); err != nil {
		return apperrors.NewTransientFailure("save credential", err)
	}
	if err := s.cache.AddToSet(ctx, OrgCredentialsPrefix+c.OrganizationID.String(), c.ID.String()); err != nil {
		return apperrors.NewTransientFailure("index credential", err)
	}
	if err := s.cache.AddToSet(ctx, AllCredentialsIndex, c.ID.String()); err != nil {
		return apperrors.NewTransientFailure("index credential", err)
	}
	return nil
}

func (s *CredentialStore) GetCredential(ctx context.Context, id uuid.UUID) (*gst.Credential, error) {
	var c gst.Credential
	if err := s.cache.GetJSON(ctx, credentialKey(id), &c); err != nil {
		var missing ErrCacheKeyNotFound
		if errors.As(err, &missing) {
			return nil, apperrors.NewNotFoundError("credential")
		}
		return nil, apperrors.NewTransientFailure("load credential", err)
	}
	return &c, nil
}

func (s *CredentialStore) ListCredentials(ctx context.Context, orgID uuid.UUID) ([]*gst.Credential, error) {
	return s.load(ctx, OrgCredentialsPrefix+orgID.String())
}

// WatchedCredentials lists every stored credential for the expiry watcher.
func (s *CredentialStore) WatchedCredentials(ctx context.Context) ([]*gst.Credential, error) {
	return s.load(ctx, AllCredentialsIndex)
}

// load resolves an index set. Ids whose record has expired are skipped.
func (s *CredentialStore) load(ctx context.Context, index string) ([]*gst.Credential, error) {
	ids, err := s.cache.SetMembers(ctx, index)
	if err != nil {
		return nil, apperrors.NewTransientFailure("list credentials", err)
	}

	out := make([]*gst.Credential, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logger.Warn("skipping malformed credential id in index",
				zap.String("index", index), zap.String("id", raw))
			continue
		}
		c, err := s.GetCredential(ctx, id)
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *CredentialStore) SetActive(ctx context.Context, orgID, credentialID uuid.UUID) error {
	if err := s.cache.Set(ctx, ActiveCredentialKey+orgID.String(), credentialID.String(), 0); err != nil {
		return apperrors.NewTransientFailure("select active credential", err)
	}
	return nil
}

func (s *CredentialStore) GetActive(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	raw, err := s.cache.Get(ctx, ActiveCredentialKey+orgID.String())
	if err != nil {
		var missing ErrCacheKeyNotFound
		if errors.As(err, &missing) {
			return uuid.Nil, nil
		}
		return uuid.Nil, apperrors.NewTransientFailure("load active credential", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewInternalError(fmt.Sprintf("stored active credential %q is not a uuid", raw))
	}
	return id, nil
}

func (s *CredentialStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.cache.SetNX(ctx, LockPrefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl)
	if err != nil {
		return false, apperrors.NewTransientFailure("acquire lock", err)
	}
	return ok, nil
}

func (s *CredentialStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, LockPrefix+key); err != nil {
		return apperrors.NewTransientFailure("release lock", err)
	}
	return nil
}
