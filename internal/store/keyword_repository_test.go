package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tg-guard-bot-go/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&models.GroupSetting{}, &models.Keyword{}))

	return &DB{DB: gormDB}
}

func seedKeyword(t *testing.T, keywords *KeywordRepository, groupID uint, phrase string) *models.Keyword {
	t.Helper()
	rule := &models.Keyword{GroupID: groupID, Phrase: phrase, ResponseText: "reply"}
	require.NoError(t, keywords.Create(context.Background(), rule))
	return rule
}

func TestKeywordListByChatID(t *testing.T) {
	db := testDB(t)
	groups := NewGroupRepository(db)
	keywords := NewKeywordRepository(db)
	ctx := context.Background()

	group, err := groups.Ensure(ctx, -1)
	require.NoError(t, err)
	other, err := groups.Ensure(ctx, -2)
	require.NoError(t, err)

	first := seedKeyword(t, keywords, group.ID, "first")
	second := seedKeyword(t, keywords, group.ID, "second")
	seedKeyword(t, keywords, other.ID, "elsewhere")

	rules, err := keywords.ListByChatID(ctx, -1)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, first.ID, rules[0].ID)
	assert.Equal(t, second.ID, rules[1].ID)

	rules, err = keywords.ListByChatID(ctx, -99)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestKeywordCreateValidation(t *testing.T) {
	db := testDB(t)
	keywords := NewKeywordRepository(db)
	ctx := context.Background()

	assert.Error(t, keywords.Create(ctx, &models.Keyword{Phrase: "no response"}))
	assert.Error(t, keywords.Create(ctx, &models.Keyword{
		Phrase:           "both responses",
		ResponseText:     "text",
		ResponseFileID:   "f1",
		ResponseFileType: models.FileTypePhoto,
	}))
	assert.Error(t, keywords.Create(ctx, &models.Keyword{ResponseText: "no phrase"}))
}

func TestKeywordDeleteScopedToChat(t *testing.T) {
	db := testDB(t)
	groups := NewGroupRepository(db)
	keywords := NewKeywordRepository(db)
	ctx := context.Background()

	groupA, err := groups.Ensure(ctx, -1)
	require.NoError(t, err)
	groupB, err := groups.Ensure(ctx, -2)
	require.NoError(t, err)

	ruleA := seedKeyword(t, keywords, groupA.ID, "ours")
	ruleB := seedKeyword(t, keywords, groupB.ID, "theirs")

	// Deleting another chat's rule by id must fail and leave it intact.
	assert.Error(t, keywords.Delete(ctx, -1, ruleB.ID))
	rules, err := keywords.ListByChatID(ctx, -2)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	require.NoError(t, keywords.Delete(ctx, -1, ruleA.ID))
	rules, err = keywords.ListByChatID(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, rules)

	// A second delete of the same id reports not found.
	assert.Error(t, keywords.Delete(ctx, -1, ruleA.ID))
}

func TestGroupEnsureAndUpdate(t *testing.T) {
	db := testDB(t)
	groups := NewGroupRepository(db)
	ctx := context.Background()

	group, err := groups.GetByChatID(ctx, -1)
	require.NoError(t, err)
	assert.Nil(t, group)

	group, err = groups.Ensure(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 5, group.SpamLimit)
	assert.True(t, group.LinkSpamEnabled)

	// Ensure is idempotent.
	again, err := groups.Ensure(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, group.ID, again.ID)

	err = groups.UpdateSettings(ctx, -1, func(g *models.GroupSetting) {
		g.SpamLimit = 8
	})
	require.NoError(t, err)

	group, err = groups.GetByChatID(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 8, group.SpamLimit)

	// Updating an unknown chat rolls back with an error.
	assert.Error(t, groups.UpdateSettings(ctx, -99, func(g *models.GroupSetting) {
		g.SpamLimit = 1
	}))
}
