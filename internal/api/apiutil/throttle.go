package apiutil

import (
	"net/http"

	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/ratelimit"
)

// Throttle is the public submission gate shared by booking and challenge
// creation. A nil Throttle admits everything.
type Throttle struct {
	Limiter     *ratelimit.Limiter
	TrustProxy  bool
	PhoneRegion string
}

// Admit checks identifier and the client IP against the limiter. When the
// submission is refused it writes the 429 response and returns false.
// The returned done func counts the submission and should be called once it
// was accepted.
func (t *Throttle) Admit(w http.ResponseWriter, r *http.Request, kind, identifier string) (done func(), ok bool) {
	if t == nil || t.Limiter == nil {
		return func() {}, true
	}

	// Spellings of the same phone share one cooldown.
	if phone, err := contact.NormalizePhone(identifier, t.PhoneRegion); err == nil {
		identifier = phone
	}
	ip := ratelimit.GetClientIP(r, t.TrustProxy)
	res := t.Limiter.Check(identifier, ip)
	if !res.Allowed {
		ratelimit.LogExceeded(r.Context(), kind, identifier, ip, res)
		WriteTooManyRequests(w, r, res.RetryAfter)
		return nil, false
	}
	return func() { t.Limiter.Record(identifier, ip) }, true
}
