// Package notify collects transient user-visible notifications (toasts) for a session.
package notify

import (
	"sync"
	"time"

	"github.com/hyperjump/vibetex/internal/models"
	"go.uber.org/zap"
)

const defaultCapacity = 64

// Notifier reports user-visible outcomes.
type Notifier interface {
	Notify(level models.Level, message string)
}

// Center is a bounded queue of notifications. When full, the oldest entry is dropped.
type Center struct {
	mu       sync.Mutex
	items    []models.Notification
	nextID   uint64
	capacity int
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Center.
type Option func(*Center)

// WithCapacity bounds the number of undrained notifications.
func WithCapacity(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger mirrors every notification to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *Center) { c.logger = l }
}

// NewCenter creates an empty notification center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		capacity: defaultCapacity,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify enqueues a notification.
func (c *Center) Notify(level models.Level, message string) {
	c.mu.Lock()
	c.nextID++
	n := models.Notification{ID: c.nextID, Level: level, Message: message, CreatedAt: c.now()}
	c.items = append(c.items, n)
	if over := len(c.items) - c.capacity; over > 0 {
		c.items = append([]models.Notification(nil), c.items[over:]...)
	}
	c.mu.Unlock()

	switch level {
	case models.LevelError:
		c.logger.Warn("notification", zap.String("level", string(level)), zap.String("message", message))
	default:
		c.logger.Debug("notification", zap.String("level", string(level)), zap.String("message", message))
	}
}

// Drain returns and clears all pending notifications, oldest first.
func (c *Center) Drain() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	if out == nil {
		out = []models.Notification{}
	}
	return out
}

// Pending returns a copy of the undrained notifications.
func (c *Center) Pending() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Notification{}, c.items...)
}
