package queue

import (
	"sync"
	"testing"
	"time"

	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch(n int) []*models.Property {
	batch := make([]*models.Property, n)
	for i := 0; i < n; i++ {
		batch[i] = &models.Property{
			ID:     "p" + string(rune('a'+i)),
			Source: "synthetic",
			URL:    "https://example.com/" + string(rune('a'+i)),
			Price:  200000,
		}
	}
	return batch
}

func TestPushAndLen(t *testing.T) {
	q := NewIngestQueue(4, logrus.New())
	defer q.Close()

	require.NoError(t, q.Push(testBatch(2)))
	require.NoError(t, q.Push(testBatch(3)))
	assert.Equal(t, 2, q.Len())
}

func TestPushFullQueue(t *testing.T) {
	q := NewIngestQueue(1, logrus.New())
	defer q.Close()

	require.NoError(t, q.Push(testBatch(1)))
	err := q.Push(testBatch(1))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPushClosedQueue(t *testing.T) {
	q := NewIngestQueue(4, logrus.New())
	require.NoError(t, q.Close())

	err := q.Push(testBatch(1))
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.True(t, q.IsClosed())
}

func TestCloseIsIdempotent(t *testing.T) {
	q := NewIngestQueue(4, logrus.New())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}

func TestSubscribeReceivesBatches(t *testing.T) {
	q := NewIngestQueue(4, logrus.New())
	defer q.Close()

	var mu sync.Mutex
	var received [][]*models.Property
	done := make(chan struct{}, 2)

	q.Subscribe(func(batch []*models.Property) error {
		mu.Lock()
		received = append(received, batch)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	q.Start()

	require.NoError(t, q.Push(testBatch(2)))
	require.NoError(t, q.Push(testBatch(1)))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for batch dispatch")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Len(t, received[0], 2)
	assert.Len(t, received[1], 1)
}

func TestNilLoggerDefaults(t *testing.T) {
	q := NewIngestQueue(1, nil)
	defer q.Close()
	require.NoError(t, q.Push(testBatch(1)))
}
