package enrollment

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "voicegate/pkg/domain"
	dErrors "voicegate/pkg/domain-errors"
)

// sessionClaims are the claims carried by a session token. The token scopes
// an enrollment session to one subject; the session itself is always
// resolved through the store, so a signed token is a pointer, not a bearer
// of session state.
type sessionClaims struct {
	SubjectID string `json:"subject_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenService mints and validates enrollment session tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     "voicegate",
	}
}

// Mint signs a token binding sessionID to subjectID for ttl.
func (s *TokenService) Mint(subjectID id.SubjectID, sessionID id.SessionID, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SubjectID: subjectID.String(),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Parse validates the signature and expiry and returns the bound subject and
// session IDs. Callers treat any error as "no usable token", which starts a
// fresh session rather than failing the request.
func (s *TokenService) Parse(tokenString string) (id.SubjectID, id.SessionID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.SubjectID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "session token has expired")
		}
		return id.SubjectID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return id.SubjectID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token claims")
	}

	subjectID, err := id.ParseSubjectID(claims.SubjectID)
	if err != nil {
		return id.SubjectID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token claims")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return id.SubjectID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session token claims")
	}
	return subjectID, sessionID, nil
}
