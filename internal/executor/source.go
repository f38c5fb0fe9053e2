package executor

import (
	"context"
	"errors"

	"github.com/challenges/scheduler/internal/models"
	"github.com/challenges/scheduler/internal/store"
)

var errNoCredential = errors.New("no stored credential for owner")

// credentialSource is where a schedule's encrypted triple lives. It is
// resolved once per schedule and then used for both the initial read and any
// refresh write-back, so the legacy/current distinction exists in exactly one
// place.
type credentialSource interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, envelope string) error
}

// embeddedSource serves legacy rows that carry their credential inline.
// Refreshed triples are written back onto the row, never migrated to the
// owner_credentials table.
type embeddedSource struct {
	store    *store.Store
	schedule *models.ScheduledChallenge
}

func (s *embeddedSource) Read(ctx context.Context) (string, error) {
	return s.schedule.EmbeddedCredential, nil
}

func (s *embeddedSource) Write(ctx context.Context, envelope string) error {
	return s.store.UpdateEmbeddedCredential(ctx, s.schedule.ID, envelope)
}

// ownerSource serves current rows whose credential is stored per owner.
type ownerSource struct {
	store    *store.Store
	ownerID  string
	envelope string
}

func (s *ownerSource) Read(ctx context.Context) (string, error) {
	return s.envelope, nil
}

func (s *ownerSource) Write(ctx context.Context, envelope string) error {
	return s.store.UpsertCredential(ctx, s.ownerID, envelope)
}

// resolveSource picks the credential source for a schedule: the embedded
// credential when present, the owner's stored credential otherwise.
func resolveSource(ctx context.Context, st *store.Store, schedule *models.ScheduledChallenge) (credentialSource, error) {
	if schedule.EmbeddedCredential != "" {
		return &embeddedSource{store: st, schedule: schedule}, nil
	}

	cred, err := st.GetCredential(ctx, schedule.OwnerID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errNoCredential
	}
	return &ownerSource{store: st, ownerID: schedule.OwnerID, envelope: cred.EncryptedToken}, nil
}
