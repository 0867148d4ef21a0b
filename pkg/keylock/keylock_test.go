package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	kl := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("user-1/group")
			defer kl.Unlock("user-1/group")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, kl.Size(), "idle entries are evicted")
}

func TestKeyLock_DifferentKeysDoNotBlock(t *testing.T) {
	kl := New()

	kl.Lock("a")
	done := make(chan struct{})
	go func() {
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()

	<-done // would deadlock if "b" waited on "a"
	kl.Unlock("a")
}

func TestKeyLock_Do(t *testing.T) {
	kl := New()
	ran := false

	err := kl.Do("key", func() error {
		ran = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 0, kl.Size())
}

func TestKeyLock_DoPropagatesError(t *testing.T) {
	kl := New()

	err := kl.Do("key", func() error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
}

func TestKeyLock_UnlockUnheldPanics(t *testing.T) {
	kl := New()
	assert.Panics(t, func() { kl.Unlock("never-locked") })
}

func TestKeyLock_ConcurrentMixedKeys(t *testing.T) {
	kl := New()
	counters := make(map[string]*int)
	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		n := 0
		counters[k] = &n
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		key := keys[i%len(keys)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = kl.Do(key, func() error {
				*counters[key]++
				return nil
			})
		}()
	}
	wg.Wait()

	for _, k := range keys {
		assert.Equal(t, 50, *counters[k])
	}
}
