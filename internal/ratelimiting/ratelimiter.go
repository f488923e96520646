package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	limiterByKey    *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burstSize       int
}

func (rateLimiter *tokenBucketRateLimiter) Consume(key string) bool {
	limiter, _ := rateLimiter.limiterByKey.GetOrSet(key, rate.NewLimiter(rate.Limit(rateLimiter.refillPerSecond), rateLimiter.burstSize))
	return limiter.Value().Allow()
}

type RefillPerSecond float64
type BurstSize int

// NewTokenBucketRateLimiter returns a limiter with one token bucket per key.
// Buckets of keys that have been idle for a while are dropped. Call the returned
// function to stop the expiry loop.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	limiterTTLCache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](30 * time.Minute),
	)
	go limiterTTLCache.Start()

	return &tokenBucketRateLimiter{
		limiterByKey:    limiterTTLCache,
		refillPerSecond: float64(refillPerSecond),
		burstSize:       int(burstSize),
	}, limiterTTLCache.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (rateLimiter *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return rateLimiter.limiter.Consume(rateLimiter.keyFunc(r))
}

func (rateLimiter *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return rateLimiter.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPKeyFunc keys on the address of the peer connected to the server
func IPKeyFunc(r *http.Request) string {
	return fmt.Sprintf("ip: %s", remoteHost(r))
}

// NewForwardedIPKeyFunc keys on the client address recorded by trusted proxies.
//
// trustedHops is the number of rightmost X-Forwarded-For entries appended by our own
// infrastructure, and the client is the leftmost of those. Entries further left are
// client controlled and never used. Google Cloud load balancers append "<client>,<lb>",
// which is two hops. Zero or a malformed header falls back to IPKeyFunc.
func NewForwardedIPKeyFunc(trustedHops int) func(r *http.Request) string {
	if trustedHops <= 0 {
		return IPKeyFunc
	}

	return func(r *http.Request) string {
		var entries []string
		for _, value := range r.Header.Values("X-Forwarded-For") {
			for entry := range strings.SplitSeq(value, ",") {
				entries = append(entries, strings.TrimSpace(entry))
			}
		}

		if len(entries) < trustedHops {
			return IPKeyFunc(r)
		}

		client := net.ParseIP(entries[len(entries)-trustedHops])
		if client == nil {
			return IPKeyFunc(r)
		}

		return fmt.Sprintf("ip: %s", client.String())
	}
}

func UserIDKeyFunc(r *http.Request) string {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = "<missing>"
	}
	return fmt.Sprintf("user-id: %.50s", userID)
}

// CoachingKeyFunc keys on the coaching the request is for
//
// NOTE: Must be used on a handler registered on a pattern with a {coachingID} wildcard
func CoachingKeyFunc(r *http.Request) string {
	coachingID := r.PathValue("coachingID")
	if coachingID == "" {
		coachingID = "<missing>"
	}
	return fmt.Sprintf("coaching-id: %.50s", coachingID)
}
