package handlers

import (
	"context"
	"errors"
	"io"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tg-guard-bot-go/internal/models"
)

const testBotID int64 = 777

type fakeGroupStore struct {
	ensured   []int64
	deleted   []int64
	ensureErr error
}

func (f *fakeGroupStore) Ensure(ctx context.Context, chatID int64) (*models.GroupSetting, error) {
	f.ensured = append(f.ensured, chatID)
	return &models.GroupSetting{ChatID: chatID}, f.ensureErr
}

func (f *fakeGroupStore) Delete(ctx context.Context, chatID int64) error {
	f.deleted = append(f.deleted, chatID)
	return nil
}

func newTestGroupEventHandler(store *fakeGroupStore) *GroupEventHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGroupEventHandler(store, testBotID, logger)
}

func membershipEvent(chatType, oldStatus, newStatus string) *tgbotapi.ChatMemberUpdated {
	return &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -100200, Type: chatType},
		OldChatMember: tgbotapi.ChatMember{Status: oldStatus, User: &tgbotapi.User{ID: testBotID}},
		NewChatMember: tgbotapi.ChatMember{Status: newStatus, User: &tgbotapi.User{ID: testBotID}},
	}
}

func TestGroupEventJoinEnsuresSettings(t *testing.T) {
	store := &fakeGroupStore{}
	h := newTestGroupEventHandler(store)

	err := h.HandleMyChatMember(context.Background(), membershipEvent("supergroup", "left", "member"))
	require.NoError(t, err)
	assert.Equal(t, []int64{-100200}, store.ensured)
	assert.Empty(t, store.deleted)
}

func TestGroupEventPromotionEnsuresSettings(t *testing.T) {
	store := &fakeGroupStore{}
	h := newTestGroupEventHandler(store)

	err := h.HandleMyChatMember(context.Background(), membershipEvent("group", "member", "administrator"))
	require.NoError(t, err)
	assert.Equal(t, []int64{-100200}, store.ensured)
}

func TestGroupEventRemovalDropsSettings(t *testing.T) {
	for _, status := range []string{"left", "kicked"} {
		store := &fakeGroupStore{}
		h := newTestGroupEventHandler(store)

		err := h.HandleMyChatMember(context.Background(), membershipEvent("supergroup", "member", status))
		require.NoError(t, err)
		assert.Equal(t, []int64{-100200}, store.deleted, "status %s", status)
		assert.Empty(t, store.ensured)
	}
}

func TestGroupEventIgnoresPrivateChats(t *testing.T) {
	store := &fakeGroupStore{}
	h := newTestGroupEventHandler(store)

	err := h.HandleMyChatMember(context.Background(), membershipEvent("private", "left", "member"))
	require.NoError(t, err)
	assert.Empty(t, store.ensured)
	assert.Empty(t, store.deleted)
}

func TestGroupEventIgnoresOtherUsers(t *testing.T) {
	store := &fakeGroupStore{}
	h := newTestGroupEventHandler(store)

	event := membershipEvent("supergroup", "left", "member")
	event.NewChatMember.User = &tgbotapi.User{ID: testBotID + 1}

	err := h.HandleMyChatMember(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, store.ensured)
}

func TestGroupEventEnsureErrorPropagates(t *testing.T) {
	store := &fakeGroupStore{ensureErr: errors.New("db down")}
	h := newTestGroupEventHandler(store)

	err := h.HandleMyChatMember(context.Background(), membershipEvent("supergroup", "left", "member"))
	assert.Error(t, err)
}

func TestGroupEventNilEvent(t *testing.T) {
	h := newTestGroupEventHandler(&fakeGroupStore{})
	assert.NoError(t, h.HandleMyChatMember(context.Background(), nil))
}
