package anisystemd

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChangeConditionConcurrentRaise(t *testing.T) {
	const n = 64

	c := NewChangeCondition()
	assert.False(t, c.IsSet())
	assert.Nil(t, c.Paths())

	var wakeups int32
	waiterDone := make(chan struct{})
	go func() {
		defer close(waiterDone)
		<-c.Done()
		atomic.AddInt32(&wakeups, 1)
	}()

	var wg sync.WaitGroup
	var raised int32

	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if c.Raise("x_plugin.so") {
				atomic.AddInt32(&raised, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	select {
	case <-waiterDone:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken up")
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&raised), "transitions")
	assert.EqualValues(t, 1, atomic.LoadInt32(&wakeups), "wakeups")
	assert.True(t, c.IsSet())
}

func TestChangeConditionSecondRaise(t *testing.T) {
	c := NewChangeCondition()

	assert.True(t, c.Raise("a_plugin.so"))
	assert.False(t, c.Raise("b_service.dll"))

	assert.Equal(t, []string{"a_plugin.so"}, c.Paths())
}
