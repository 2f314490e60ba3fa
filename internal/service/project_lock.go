package service

import (
	"context"
	"sync"
)

// ProjectLocker 进程内按项目串行化写操作
// 多实例部署时由数据库咨询锁补充
type ProjectLocker struct {
	mu    sync.Mutex
	locks map[string]*projectLock
}

type projectLock struct {
	ch   chan struct{}
	refs int
}

// NewProjectLocker 创建项目锁
func NewProjectLocker() *ProjectLocker {
	return &ProjectLocker{locks: make(map[string]*projectLock)}
}

// Lock 获取项目锁,ctx 结束前未获取到则返回 ctx 错误
func (l *ProjectLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &projectLock{ch: make(chan struct{}, 1)}
		l.locks[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	select {
	case pl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, pl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-pl.ch
			l.release(key, pl)
		})
	}, nil
}

func (l *ProjectLocker) release(key string, pl *projectLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, key)
	}
}

// Len 当前持有或等待中的项目数
func (l *ProjectLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
