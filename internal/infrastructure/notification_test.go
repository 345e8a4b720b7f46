package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
)

type recordedCommand struct {
	name string
	args []string
}

func newTestNotifier(cfg domain.NotificationConfig) (*NotificationService, *[]recordedCommand) {
	var calls []recordedCommand
	n := NewNotificationService(&cfg, zap.NewNop())
	n.run = func(name string, args ...string) error {
		calls = append(calls, recordedCommand{name: name, args: args})
		return nil
	}
	return n, &calls
}

func TestNotificationService_WatchNotifiesTerminalStates(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: true, Method: "notify-send"})

	events := make(chan domain.Event, 4)
	events <- domain.Event{StateChanged: &domain.StateChangedPayload{TaskID: "1", State: domain.StateDownloading}}
	events <- domain.Event{StateChanged: &domain.StateChangedPayload{TaskID: "1", State: domain.StateCompleted, OutputPath: "/out/clip.mp4"}}
	events <- domain.Event{Progress: &domain.DownloadProgressPayload{TaskID: "2"}}
	events <- domain.Event{StateChanged: &domain.StateChangedPayload{TaskID: "2", State: domain.StateFailed, Error: "exit status 1"}}
	close(events)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n.Watch(ctx, events)

	require.Len(t, *calls, 2)
	assert.Equal(t, []string{"Download Completed", "clip.mp4"}, (*calls)[0].args)
	assert.Equal(t, []string{"Download Failed", "exit status 1"}, (*calls)[1].args)
}

func TestNotificationService_Disabled(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: false, Method: "notify-send"})
	require.NoError(t, n.Send("t", "m"))
	assert.Empty(t, *calls)
}

func TestNotificationService_OSAScriptQuoting(t *testing.T) {
	n, calls := newTestNotifier(domain.NotificationConfig{Enabled: true, Method: "osascript"})
	require.NoError(t, n.Send(`Say "hi"`, `a\b`))

	require.Len(t, *calls, 1)
	assert.Equal(t, "osascript", (*calls)[0].name)
	assert.Equal(t, `display notification "a\\b" with title "Say \"hi\""`, (*calls)[0].args[1])
}
