package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"collegebot/internal/models"
)

type sinkStub struct {
	sent    []models.Subscriber
	failOn  int64
	lastMsg string
}

func (s *sinkStub) Send(ctx context.Context, sub models.Subscriber, text string, rich bool) error {
	if sub.ChatID == s.failOn {
		return errors.New("blocked by user")
	}
	s.sent = append(s.sent, sub)
	s.lastMsg = text
	return nil
}

func TestBroadcastRoutesByPlatform(t *testing.T) {
	tg := &sinkStub{}
	vk := &sinkStub{}
	router := NewRouter(0, nil)
	router.Register(models.PlatformTelegram, tg)
	router.Register(models.PlatformVK, vk)

	subs := []models.Subscriber{
		{ChatID: 1, Platform: models.PlatformTelegram},
		{ChatID: 2, Platform: models.PlatformVK},
		{ChatID: 3, Platform: models.PlatformTelegram},
	}
	sent, failed := router.Broadcast(context.Background(), subs, "hi", false)

	require.Equal(t, 3, sent)
	require.Zero(t, failed)
	require.Len(t, tg.sent, 2)
	require.Len(t, vk.sent, 1)
	require.Equal(t, "hi", tg.lastMsg)
}

func TestBroadcastContinuesPastFailures(t *testing.T) {
	tg := &sinkStub{failOn: 2}
	router := NewRouter(0, nil)
	router.Register(models.PlatformTelegram, tg)

	subs := []models.Subscriber{
		{ChatID: 1, Platform: models.PlatformTelegram},
		{ChatID: 2, Platform: models.PlatformTelegram},
		{ChatID: 3, Platform: models.PlatformTelegram},
	}
	sent, failed := router.Broadcast(context.Background(), subs, "hi", true)

	require.Equal(t, 2, sent)
	require.Equal(t, 1, failed)
	require.Equal(t, []models.Subscriber{subs[0], subs[2]}, tg.sent)
}

func TestBroadcastCountsUnroutablePlatform(t *testing.T) {
	router := NewRouter(0, nil)
	router.Register(models.PlatformTelegram, &sinkStub{})

	subs := []models.Subscriber{
		{ChatID: 1, Platform: models.PlatformVK},
		{ChatID: 2, Platform: models.PlatformTelegram},
	}
	sent, failed := router.Broadcast(context.Background(), subs, "hi", false)

	require.Equal(t, 1, sent)
	require.Equal(t, 1, failed)
}

func TestBroadcastStopsOnCancelledContext(t *testing.T) {
	tg := &sinkStub{}
	router := NewRouter(time.Second, nil)
	router.Register(models.PlatformTelegram, tg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	subs := []models.Subscriber{
		{ChatID: 1, Platform: models.PlatformTelegram},
		{ChatID: 2, Platform: models.PlatformTelegram},
	}
	sent, failed := router.Broadcast(ctx, subs, "hi", false)

	require.Equal(t, 1, sent)
	require.Equal(t, 1, failed)
	require.Len(t, tg.sent, 1)
}
