package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/schedule-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProjectLocker_Serializes 测试同一项目串行执行
func TestProjectLocker_Serializes(t *testing.T) {
	locker := service.NewProjectLocker()
	var (
		wg      sync.WaitGroup
		running int32
		maxSeen int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "org-1/prj-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, 0, locker.Len())
}

// TestProjectLocker_IndependentProjects 测试不同项目互不阻塞
func TestProjectLocker_IndependentProjects(t *testing.T) {
	locker := service.NewProjectLocker()
	unlock, err := locker.Lock(context.Background(), "org-1/prj-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := locker.Lock(ctx, "org-1/prj-2")
	require.NoError(t, err)
	assert.Equal(t, 2, locker.Len())
	other()
	// 重复释放无副作用
	other()
	assert.Equal(t, 1, locker.Len())
}

// TestProjectLocker_ContextDeadline 测试等待超时
func TestProjectLocker_ContextDeadline(t *testing.T) {
	locker := service.NewProjectLocker()
	unlock, err := locker.Lock(context.Background(), "org-1/prj-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "org-1/prj-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locker.Len())

	unlock()
	assert.Equal(t, 0, locker.Len())
}
