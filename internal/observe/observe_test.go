package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubPublishOrderAndCancel(t *testing.T) {
	var h Hub[int]
	var got []string

	h.Subscribe(func(v int) { got = append(got, "a") })
	cancel := h.Subscribe(func(v int) { got = append(got, "b") })
	h.Subscribe(func(v int) { got = append(got, "c") })

	h.Publish(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	cancel()
	got = nil
	h.Publish(2)
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestHubListenerMaySubscribe(t *testing.T) {
	var h Hub[string]
	calls := 0
	h.Subscribe(func(string) {
		calls++
		h.Subscribe(func(string) {})
	})
	h.Publish("x")
	assert.Equal(t, 1, calls)
}
