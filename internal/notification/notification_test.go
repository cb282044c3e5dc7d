package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "taskflow-backend/internal/auth/domain"
	authrepo "taskflow-backend/internal/auth/repository"
	"taskflow-backend/internal/testutil"
	"taskflow-backend/pkg/fcm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type recorder struct {
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (r *recorder) handle(_ context.Context, channelID, state string) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.calls = append(r.calls, channelID+"/"+state)
	r.mu.Unlock()
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestLocalDispatcher_ProcessesAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	d := NewLocalDispatcher(rec.handle, 8, zap.NewNop())
	d.Start()

	require.NoError(t, d.Publish(context.Background(), "ch-1", "exists"))
	require.NoError(t, d.Publish(context.Background(), "ch-2", "exists"))
	require.NoError(t, d.Close())

	assert.ElementsMatch(t, []string{"ch-1/exists", "ch-2/exists"}, rec.seen())
	assert.ErrorIs(t, d.Publish(context.Background(), "ch-3", "exists"), ErrQueueFull)
	assert.NoError(t, d.Close())
}

func TestLocalDispatcher_CoalescesWaitingChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{release: make(chan struct{})}
	d := NewLocalDispatcher(rec.handle, 1, zap.NewNop())
	d.Start()

	// first one is picked up by the worker and blocks there
	require.NoError(t, d.Publish(context.Background(), "busy", "exists"))
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return !d.pending["busy"]
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Publish(context.Background(), "ch-1", "exists"))
	require.NoError(t, d.Publish(context.Background(), "ch-1", "exists"))
	assert.ErrorIs(t, d.Publish(context.Background(), "ch-2", "exists"), ErrQueueFull)

	close(rec.release)
	require.NoError(t, d.Close())
	assert.Equal(t, []string{"busy/exists", "ch-1/exists"}, rec.seen())
}

func TestPubSubDispatcher_HandleMessage(t *testing.T) {
	rec := &recorder{}
	d := &PubSubDispatcher{handler: rec.handle, logger: zap.NewNop()}

	data, err := json.Marshal(CalendarNotification{ChannelID: "ch-9", ResourceState: "exists"})
	require.NoError(t, err)

	d.handleMessage(context.Background(), data)
	d.handleMessage(context.Background(), []byte("{not json"))

	assert.Equal(t, []string{"ch-9/exists"}, rec.seen())
}

type fakeSender struct {
	fail   []string
	err    error
	tokens []string
	sent   fcm.NotificationData
}

func (s *fakeSender) SendToDevices(_ context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	s.tokens = tokens
	s.sent = n
	return s.fail, s.err
}

func TestPushNotifier_PrunesRejectedTokens(t *testing.T) {
	db := testutil.NewDB(t, &authdomain.Device{})
	tokens := authrepo.NewDeviceRepository(db)
	require.NoError(t, tokens.Register("user-1", "good-token", "chrome"))
	require.NoError(t, tokens.Register("user-1", "stale-token", "firefox"))
	require.NoError(t, tokens.Register("user-2", "other-token", "safari"))

	sender := &fakeSender{fail: []string{"stale-token"}}
	p := NewPushNotifier(sender, tokens, zap.NewNop())

	err := p.Push(context.Background(), "user-1", fcm.NotificationData{Title: "Research ready"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"good-token", "stale-token"}, sender.tokens)
	assert.Equal(t, "Research ready", sender.sent.Title)

	left, err := tokens.ListByOwner("user-1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "good-token", left[0].Token)
}

func TestPushNotifier_NoDevicesIsNotAnError(t *testing.T) {
	db := testutil.NewDB(t, &authdomain.Device{})
	sender := &fakeSender{}
	p := NewPushNotifier(sender, authrepo.NewDeviceRepository(db), zap.NewNop())

	require.NoError(t, p.Push(context.Background(), "nobody", fcm.NotificationData{Title: "x"}))
	assert.Nil(t, sender.tokens)
}

func TestPushNotifier_SendErrorKeepsTokens(t *testing.T) {
	db := testutil.NewDB(t, &authdomain.Device{})
	tokens := authrepo.NewDeviceRepository(db)
	require.NoError(t, tokens.Register("user-1", "t1", ""))

	p := NewPushNotifier(&fakeSender{err: errors.New("unavailable"), fail: []string{"t1"}}, tokens, zap.NewNop())
	assert.Error(t, p.Push(context.Background(), "user-1", fcm.NotificationData{}))

	left, err := tokens.ListByOwner("user-1")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
