package service

import (
	"context"
	"testing"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_CreateAndModerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obit := f.seed(t, &domain.Obituary{Status: domain.StatusPublished, PublishedAt: ptrTime(baseNow), AllowTributes: true})

	comment, err := f.comments.Create(ctx, domain.Actor{}, obit.ID, &domain.CreateCommentRequest{
		AuthorName: " Sam ",
		Message:    "Deepest condolences",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommentKindComment, comment.Kind)
	assert.False(t, comment.Approved)
	assert.Equal(t, "Sam", comment.AuthorName)

	tribute, err := f.comments.Create(ctx, strangerActor, obit.ID, &domain.CreateCommentRequest{
		Kind:       domain.CommentKindTribute,
		AuthorName: "Alex",
		Message:    "She taught me to read",
	})
	require.NoError(t, err)
	assert.True(t, tribute.Approved)

	visible, meta, err := f.comments.ListApproved(ctx, domain.Actor{}, obit.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), meta.Total)
	assert.Equal(t, tribute.ID, visible[0].ID)

	_, _, err = f.comments.ListPending(ctx, ownerActor, 1, 20)
	assert.ErrorIs(t, err, common.ErrForbidden)
	queue, _, err := f.comments.ListPending(ctx, adminActor, 1, 20)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	approved, err := f.comments.Approve(ctx, adminActor, comment.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	_, meta, err = f.comments.ListApproved(ctx, domain.Actor{}, obit.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Total)

	_, err = f.comments.Approve(ctx, adminActor, 999)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentService_TributesDisabled(t *testing.T) {
	f := newFixture(t)
	obit := f.seed(t, &domain.Obituary{Status: domain.StatusPublished, AllowTributes: false})

	_, err := f.comments.Create(context.Background(), domain.Actor{}, obit.ID, &domain.CreateCommentRequest{
		Kind: domain.CommentKindTribute, AuthorName: "A", Message: "m",
	})
	assert.ErrorIs(t, err, ErrTributesDisabled)

	_, err = f.comments.Create(context.Background(), domain.Actor{}, obit.ID, &domain.CreateCommentRequest{
		AuthorName: "A", Message: "m",
	})
	assert.NoError(t, err)
}

func TestCommentService_ClosedStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &domain.CreateCommentRequest{AuthorName: "A", Message: "m"}

	memorial := f.seed(t, &domain.Obituary{Status: domain.StatusMemorialized, AllowTributes: true})
	_, err := f.comments.Create(ctx, domain.Actor{}, memorial.ID, req)
	assert.ErrorIs(t, err, ErrCommentsClosed)

	pending := f.seed(t, &domain.Obituary{Status: domain.StatusPending, AllowTributes: true})
	_, err = f.comments.Create(ctx, domain.Actor{}, pending.ID, req)
	assert.ErrorIs(t, err, ErrObituaryNotFound)

	_, _, err = f.comments.ListApproved(ctx, strangerActor, pending.ID, 1, 20)
	assert.ErrorIs(t, err, ErrObituaryNotFound)
	_, _, err = f.comments.ListApproved(ctx, ownerActor, pending.ID, 1, 20)
	assert.NoError(t, err)
}
