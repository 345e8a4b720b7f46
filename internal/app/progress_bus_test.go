package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediaq-go/internal/domain"
)

func TestProgressBus_FanOut(t *testing.T) {
	bus := NewProgressBus(nil)
	first := bus.Subscribe(4)
	second := bus.Subscribe(4)
	defer first.Close()
	defer second.Close()

	bus.Publish(domain.NewInstallEvent(domain.ToolYTDLP, 10, nil))

	for _, sub := range []*Subscription{first, second} {
		e := <-sub.C
		require.NotNil(t, e.Install)
		assert.Equal(t, domain.EventBinaryInstall, e.Type)
		assert.Equal(t, domain.ToolYTDLP, e.Install.Tool)
		assert.Equal(t, int64(10), e.Install.DownloadedBytes)
	}
}

func TestProgressBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewProgressBus(nil)
	slow := bus.Subscribe(1)
	defer slow.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(domain.NewInstallEvent(domain.ToolFFmpeg, int64(i), nil))
	}

	assert.Equal(t, int64(4), slow.Dropped())
	e := <-slow.C
	assert.Equal(t, int64(0), e.Install.DownloadedBytes)
}

func TestProgressBus_CloseUnsubscribes(t *testing.T) {
	bus := NewProgressBus(nil)
	sub := bus.Subscribe(1)
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-sub.C
	assert.False(t, open)

	bus.Publish(domain.NewInstallEvent(domain.ToolYTDLP, 1, nil))
}

func TestProgressBus_CloseAll(t *testing.T) {
	bus := NewProgressBus(nil)
	sub := bus.Subscribe(1)

	bus.Close()
	_, open := <-sub.C
	assert.False(t, open)
	sub.Close()

	late := bus.Subscribe(1)
	_, open = <-late.C
	assert.False(t, open)
	late.Close()
}
