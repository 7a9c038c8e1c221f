package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLines(t *testing.T) {
	a, b := uuid.MustParse("00000000-0000-0000-0000-00000000000a"), uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	n := NewEmail(b, "Event deleted", "gone")
	n.UserParams[a.String()] = UserParams{Subject: "Event deleted", Body: "gone"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	lines := formatLines(n, at)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[2026-01-02T03:04:05Z] send_notification | channels=email | user="+a.String()))
	assert.Contains(t, lines[1], `subject="Event deleted"`)
}

func TestLogConsumerHandleAppends(t *testing.T) {
	c := NewLogConsumer("amqp://unused", "notifications", "email")
	c.Path = filepath.Join(t.TempDir(), "nested", "notifications.log")

	body, err := json.Marshal(NewEmail(uuid.New(), "hello", "world"))
	require.NoError(t, err)
	require.NoError(t, c.handle(body))
	require.NoError(t, c.handle(body))

	raw, err := os.ReadFile(c.Path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))

	assert.Error(t, c.handle([]byte("not json")))
}
