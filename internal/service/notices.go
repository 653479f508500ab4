package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

const maxPendingNotices = 20

// NoticeQueue buffers toast messages until the browser drains them.
// The oldest notice is dropped once the queue is full.
type NoticeQueue struct {
	mu       sync.Mutex
	items    []domain.Notice
	onNotice func(domain.Notice)
	now      func() time.Time
}

// NewNoticeQueue creates an empty queue. onNotice, if set, sees every
// notice and must not block.
func NewNoticeQueue(onNotice func(domain.Notice)) *NoticeQueue {
	return &NoticeQueue{onNotice: onNotice, now: time.Now}
}

// Notify implements port.Notifier.
func (q *NoticeQueue) Notify(level domain.NoticeLevel, message string) {
	n := domain.Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: q.now(),
	}

	q.mu.Lock()
	if len(q.items) >= maxPendingNotices {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
	q.mu.Unlock()

	if q.onNotice != nil {
		q.onNotice(n)
	}
}

// Drain returns and removes every pending notice, oldest first.
func (q *NoticeQueue) Drain() []domain.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	if out == nil {
		out = []domain.Notice{}
	}
	return out
}
