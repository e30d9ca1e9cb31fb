package cart

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

const (
	SessionCookie = "awesomeshop_session"
	// sessionMaxAge bounds how long an encoded id verifies. The cookie
	// itself lives for the browser session only.
	sessionMaxAge = 7 * 24 * 60 * 60
)

// Sessions issues and reads the signed, encrypted session cookie that
// scopes a cart to one browser.
type Sessions struct {
	codec  *securecookie.SecureCookie
	secure bool
	log    *zap.Logger
}

// NewSessions takes a hash key (32 or 64 bytes) and an optional block key
// (16, 24 or 32 bytes) for encryption.
func NewSessions(hashKey, blockKey []byte, secure bool, log *zap.Logger) (*Sessions, error) {
	if len(hashKey) < 32 {
		return nil, errors.New("cart: session hash key must be at least 32 bytes")
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, errors.New("cart: session block key must be 16, 24 or 32 bytes")
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(sessionMaxAge)
	return &Sessions{codec: codec, secure: secure, log: log}, nil
}

// ID returns the request's session id, starting a new session when the
// cookie is absent or does not verify.
func (s *Sessions) ID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		var id string
		err := s.codec.Decode(SessionCookie, c.Value, &id)
		if err == nil && id != "" {
			return id
		}
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			s.log.Warn("session cookie invalid, using fresh session", zap.Error(err))
		} else if err != nil {
			s.log.Error("session cookie error, using fresh session", zap.Error(err))
		}
	}

	id := uuid.NewString()
	encoded, err := s.codec.Encode(SessionCookie, id)
	if err != nil {
		s.log.Error("encode session cookie failed", zap.Error(err))
		return id
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
