// Package fallback synthesizes placeholder subscriber names.
//
// Some listmonk setups reject a subscriber without a name. When the form omits
// one, the forwarding client fills the field with a short pseudo-random token.
// The token is NOT an identifier: it is neither unique nor unpredictable and
// must never be used for identity, dedup or anything security sensitive.
package fallback

import (
	"hash/fnv"
	"math/rand"
	"time"
)

const (
	alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	defaultLength = 10
)

// Generator produces fixed-length alphanumeric names.
type Generator struct {
	length int
	now    func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLength overrides the token length.
func WithLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.length = n
		}
	}
}

// WithClock overrides the time source mixed into the seed.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New returns a Generator producing 10-character names.
func New(opts ...Option) *Generator {
	g := &Generator{length: defaultLength, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns a token seeded from the email and the current time.
func (g *Generator) Name(email string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(email))

	seed := int64(h.Sum64()) ^ g.now().UnixNano()

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // placeholder text, not a secret
	buf := make([]byte, g.length)
	for i := range buf {
		buf[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(buf)
}
