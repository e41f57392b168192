package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/store"
	"github.com/punchamoorthee/lendingledger/internal/store/storetest"
)

func Test_MemberStore_Create_Defaults(t *testing.T) {
	ctx := context.Background()
	members := store.NewMemberStore(storetest.New(t))

	id, err := members.Create(ctx, domain.MemberInput{
		MemberCode: "LIB-001",
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
	})
	require.NoError(t, err)

	got, err := members.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "LIB-001", got.MemberCode)
	assert.Equal(t, domain.MemberActive, got.Status)
	assert.Equal(t, domain.Today(), got.JoinDate)
	assert.Empty(t, got.Address)
}

func Test_MemberStore_Create_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	members := store.NewMemberStore(storetest.New(t))
	_, err := members.Create(ctx, domain.MemberInput{MemberCode: "A1", Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = members.Create(ctx, domain.MemberInput{MemberCode: "A1", Name: "B", Email: "b@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = members.Create(ctx, domain.MemberInput{MemberCode: "B1", Name: "B", Email: "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func Test_MemberStore_Create_RequiresFields(t *testing.T) {
	members := store.NewMemberStore(storetest.New(t))

	_, err := members.Create(context.Background(), domain.MemberInput{Name: "Nobody"})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "email, member_id")
}

func Test_MemberStore_SearchAndFilter(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	members := store.NewMemberStore(db)
	ada, err := members.Create(ctx, domain.MemberInput{MemberCode: "X-1", Name: "Ada", Email: "ada@lib.org"})
	require.NoError(t, err)
	_, err = members.Create(ctx, domain.MemberInput{MemberCode: "X-2", Name: "Grace", Email: "grace@navy.mil"})
	require.NoError(t, err)

	got, err := members.Search(ctx, "LIB.ORG")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ada, got[0].ID)

	got, err = members.Search(ctx, "x-")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	suspended := domain.MemberSuspended
	_, err = members.Update(ctx, ada, domain.MemberPatch{Status: &suspended})
	require.NoError(t, err)

	got, err = members.FilterByStatus(ctx, domain.MemberSuspended)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0].Name)

	_, err = members.FilterByStatus(ctx, "banned")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func Test_MemberStore_Update_Partial(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	members := store.NewMemberStore(db)
	id := storetest.AddMember(t, db, "Alan")
	before, err := members.Get(ctx, id)
	require.NoError(t, err)

	after, err := members.Update(ctx, id, domain.MemberPatch{Phone: strPtr("555-0100")})
	require.NoError(t, err)

	assert.Equal(t, "555-0100", after.Phone)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.Email, after.Email)
	assert.Equal(t, before.JoinDate, after.JoinDate)

	_, err = members.Update(ctx, 999, domain.MemberPatch{Phone: strPtr("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_MemberStore_DeleteAndStats(t *testing.T) {
	// arrange
	ctx := context.Background()
	db := storetest.New(t)
	members := store.NewMemberStore(db)
	memberID := storetest.AddMember(t, db, "Mary")
	first := storetest.AddBook(t, db, "Frankenstein", 2)
	second := storetest.AddBook(t, db, "The Last Man", 2)
	closed := openLoan(t, db, memberID, first)
	closeLoan(t, db, closed, first)
	open := openLoan(t, db, memberID, second)

	// act
	stats, err := members.Stats(ctx, memberID)
	require.NoError(t, err)

	// assert
	assert.Equal(t, 1, stats.CurrentlyBorrowed)
	assert.Equal(t, 2, stats.TotalBorrowed)

	assert.ErrorIs(t, members.Delete(ctx, memberID), domain.ErrReferential)

	closeLoan(t, db, open, second)
	require.NoError(t, members.Delete(ctx, memberID))

	_, err = members.Stats(ctx, memberID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
