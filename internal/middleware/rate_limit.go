package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"
)

// UserRateLimiter ограничивает частоту запросов одного пользователя
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter допускает perMinute запросов в минуту на пользователя; 0 – без ограничения
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	l := &UserRateLimiter{limiters: make(map[string]*rate.Limiter), limit: rate.Inf, burst: 1}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = max(perMinute/6, 1)
	}
	return l
}

func (l *UserRateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Handler возвращает middleware. Ставится после AuthMiddleware; без uid ключом служит IP.
func (l *UserRateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.IP()
		}
		if !l.limiter(key).Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "rate_limited",
				"message": "Слишком много запросов, попробуйте позже",
			})
		}
		return c.Next()
	}
}
