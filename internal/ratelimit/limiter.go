// Package ratelimit throttles public submissions (bookings, challenge
// listings) per contact and per client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/clock"
)

const (
	defaultCooldown     = 10 * time.Second
	defaultMaxIPPerHour = 30
	cleanupInterval     = 5 * time.Minute
)

type Config struct {
	// Minimum time between two submissions from the same contact.
	Cooldown time.Duration
	// Max submissions per client IP per rolling hour.
	MaxIPPerHour int

	Clock clock.Clock
}

func DefaultConfig() *Config {
	return &Config{
		Cooldown:     defaultCooldown,
		MaxIPPerHour: defaultMaxIPPerHour,
	}
}

// Result is the outcome of a Check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

type entry struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

// Limiter keeps in-process counters keyed by hashed contact or IP.
type Limiter struct {
	config *Config
	clock  clock.Clock

	mu   sync.RWMutex
	byID map[string]*entry
	byIP map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.MaxIPPerHour <= 0 {
		cfg.MaxIPPerHour = defaultMaxIPPerHour
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New(time.UTC)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clk,
		byID:          make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Check reports whether a submission from identifier/ip may proceed. It does
// not count the attempt; call Record once the submission was accepted.
func (l *Limiter) Check(identifier, ip string) Result {
	l.startCleanup()
	now := l.clock.Now()
	idKey := hashKey("id:", normalizeIdentifier(identifier))
	ipKey := hashKey("ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if identifier != "" {
		if e := l.byID[idKey]; e != nil {
			if elapsed := now.Sub(e.lastAt); elapsed < l.config.Cooldown {
				return Result{RetryAfter: l.config.Cooldown - elapsed, Reason: "cooldown"}
			}
		}
	}
	if e := l.byIP[ipKey]; e != nil {
		if window := now.Sub(e.firstAt); window < time.Hour && e.count >= l.config.MaxIPPerHour {
			return Result{RetryAfter: time.Hour - window, Reason: "ip_hourly_limit"}
		}
	}
	return Result{Allowed: true}
}

// Record counts an accepted submission.
func (l *Limiter) Record(identifier, ip string) {
	now := l.clock.Now()
	idKey := hashKey("id:", normalizeIdentifier(identifier))
	ipKey := hashKey("ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	if identifier != "" {
		bump(l.byID, idKey, now)
	}
	bump(l.byIP, ipKey, now)
}

func bump(m map[string]*entry, key string, now time.Time) {
	e := m[key]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		m[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.byID {
		if now.Sub(e.lastAt) > l.config.Cooldown {
			delete(l.byID, k)
		}
	}
	for k, e := range l.byIP {
		if now.Sub(e.firstAt) >= time.Hour {
			delete(l.byIP, k)
		}
	}
}

// GetClientIP extracts the caller address. With trustProxy the rightmost public
// X-Forwarded-For hop wins; otherwise forwarding headers are ignored.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 && net.ParseIP(r.RemoteAddr) == nil {
		if candidate := r.RemoteAddr[:idx]; net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return r.RemoteAddr
}

var privateNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		out = append(out, network)
	}
	return out
}

func isPrivateIP(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks a phone number or email for logs.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeIdentifier(identifier)
	if local, domain, ok := strings.Cut(identifier, "@"); ok {
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogExceeded records a rejected submission without the raw contact.
func LogExceeded(ctx context.Context, kind, identifier, ip string, res Result) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", kind).
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", res.Reason).
		Dur("retry_after", res.RetryAfter).
		Msg("Submission rate limit exceeded")
}
