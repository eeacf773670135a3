package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusStopsAtFirstHandler(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first, second := "first", "second"

	assert.True(t, bus.Register(EVENT_CODE_RESIZED, &first, func(_ SystemEventCode, _ interface{}, _ interface{}, ctx EventContext) bool {
		calls = append(calls, first)
		return ctx.Data.U32[0] == 0
	}))
	assert.True(t, bus.Register(EVENT_CODE_RESIZED, &second, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		calls = append(calls, second)
		return true
	}))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, &first, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }))

	ctx := EventContext{}
	ctx.Data.U32[0] = 640
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{}))
	assert.Equal(t, []string{"first"}, calls)
}

func TestEventBusUnregisterAndShutdown(t *testing.T) {
	bus := NewEventBus()
	listener := "l"
	fired := 0
	bus.Register(EVENT_CODE_APPLICATION_QUIT, &listener, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		fired++
		return true
	})

	assert.True(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, &listener))
	assert.False(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, &listener))
	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))

	bus.Register(EVENT_CODE_APPLICATION_QUIT, &listener, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		fired++
		return true
	})
	bus.Shutdown()
	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
	assert.Zero(t, fired)
	assert.False(t, bus.Register(-1, nil, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }))
}
