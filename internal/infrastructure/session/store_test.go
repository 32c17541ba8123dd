package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/core/apperror"
	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/documents/facture"
	"facturation/internal/domain/documents/facture/lines"
)

func newEditor() *facture.Editor {
	return facture.NewEditor(lines.DefaultConfig(), catalogs.Empty(), facture.NewFacture("ACME"), facture.EditorOptions{})
}

func TestStore_CreateGetDelete(t *testing.T) {
	s := NewStore(time.Hour, nil)
	ed := newEditor()

	sess := s.Create(context.Background(), ed)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, 1, s.Count())

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, ed, got.Editor)

	require.NoError(t, s.Delete(sess.ID))
	assert.Equal(t, 0, s.Count())

	_, err = s.Get(sess.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeSessionExpired))

	err = s.Delete(sess.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeSessionExpired))
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(50*time.Millisecond, nil)
	sess := s.Create(context.Background(), newEditor())

	time.Sleep(30 * time.Millisecond)
	_, err := s.Get(sess.ID)
	require.NoError(t, err, "access extends the session")

	time.Sleep(30 * time.Millisecond)
	_, err = s.Get(sess.ID)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	_, err = s.Get(sess.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeSessionExpired))
}

func TestStore_DistinctIDs(t *testing.T) {
	s := NewStore(time.Hour, nil)
	a := s.Create(context.Background(), newEditor())
	b := s.Create(context.Background(), newEditor())
	assert.NotEqual(t, a.ID, b.ID)
}
