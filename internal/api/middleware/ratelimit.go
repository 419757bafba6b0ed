// ratelimit.go — ограничение частоты запросов по адресу клиента.
//
// Используется маршрутом отправки писем: не чаще одного письма с
// одного IP за интервал. Состояние только в памяти — после рестарта
// лимит обнуляется, что для защиты от спама приемлемо.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
)

// CooldownLimiter — лимит "не чаще одного запроса за интервал" на IP.
type CooldownLimiter struct {
	cooldown time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
	now      func() time.Time
}

// NewCooldownLimiter создаёт лимитер с указанным интервалом.
func NewCooldownLimiter(cooldown time.Duration) *CooldownLimiter {
	return &CooldownLimiter{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow фиксирует обращение с адреса и сообщает, разрешено ли оно.
// Попутно вычищает устаревшие записи, карта не растёт бесконечно.
func (l *CooldownLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	for key, ts := range l.last {
		if now.Sub(ts) >= l.cooldown {
			delete(l.last, key)
		}
	}

	if ts, ok := l.last[addr]; ok && now.Sub(ts) < l.cooldown {
		return false
	}

	l.last[addr] = now
	return true
}

// Middleware возвращает HTTP middleware, отклоняющее запросы чаще лимита.
func (l *CooldownLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			apierrors.TooManyRequests(w, "Please wait before sending another email")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP возвращает IP клиента без порта.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
