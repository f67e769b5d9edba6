package download

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"

	"github.com/JustinTDCT/CineGate/internal/audit"
	"github.com/JustinTDCT/CineGate/internal/cache"
	"github.com/JustinTDCT/CineGate/internal/metrics"
)

// Reason codes reported for rejected tokens.
const (
	ReasonMissing          = "missing_token"
	ReasonMalformed        = "malformed"
	ReasonInvalidSignature = "invalid_signature"
	ReasonExpired          = "expired"
	ReasonReused           = "reused"
	ReasonLinkNotFound     = "link_not_found"
	// ReasonUnavailable covers a ledger outage; the token is refused since
	// single use cannot be guaranteed.
	ReasonUnavailable = "unavailable"
)

const (
	tokenIssuer   = "cinegate"
	tokenAudience = "download"
	keyInfo       = "cinegate download token v1"
	ledgerOp      = "token"
)

var ErrWeakSecret = errors.New("token secret must be at least 32 bytes")

type TokenClaims struct {
	Slug    string `json:"slug"`
	Quality string `json:"quality"`
	Service string `json:"service"`
	jwt.RegisteredClaims
}

type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TokenMetadata struct {
	TokenID   string    `json:"tokenId"`
	Slug      string    `json:"slug"`
	Quality   string    `json:"quality"`
	Service   string    `json:"service"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TokenResult struct {
	Valid    bool           `json:"valid"`
	RealLink string         `json:"realLink,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Metadata *TokenMetadata `json:"metadata,omitempty"`
}

// Tokens issues and redeems single-use signed redirect tokens. The link is
// never embedded; it is looked up again when the token is redeemed.
type Tokens struct {
	key    []byte
	ttl    time.Duration
	ledger cache.Cache
	svc    *Service
	audit  audit.Recorder
	log    logrus.FieldLogger
	now    func() time.Time
}

// DeriveKey expands secret into a dedicated HMAC key for tokens.
func DeriveKey(secret string) ([]byte, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return key, nil
}

func NewTokens(secret string, ttl time.Duration, ledger cache.Cache, svc *Service, rec audit.Recorder, log logrus.FieldLogger) (*Tokens, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Tokens{key: key, ttl: ttl, ledger: ledger, svc: svc, audit: rec, log: log, now: time.Now}, nil
}

// Issue signs a token for an existing link.
func (t *Tokens) Issue(ctx context.Context, slug, quality, service string) (IssuedToken, error) {
	req, err := t.svc.check(Request{Slug: slug, Quality: quality, Service: service}, true, true)
	if err != nil {
		return IssuedToken{}, err
	}
	if _, err := t.svc.lookup(ctx, req); err != nil {
		return IssuedToken{}, err
	}

	now := t.now()
	exp := now.Add(t.ttl)
	claims := TokenClaims{
		Slug:    req.Slug,
		Quality: req.Quality,
		Service: req.Service,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	t.audit.Record(ctx, audit.Event{
		Type: audit.TokenIssued, Slug: req.Slug, Quality: req.Quality, Service: req.Service,
		Context: map[string]any{"jti": claims.ID},
	})
	return IssuedToken{Token: signed, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Validate redeems raw. A token is granted at most once.
func (t *Tokens) Validate(ctx context.Context, raw string) TokenResult {
	if raw == "" {
		return t.block(ctx, ReasonMissing, nil, nil)
	}

	var claims TokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return t.block(ctx, parseReason(err), nil, err)
	}
	meta := &TokenMetadata{
		TokenID: claims.ID,
		Slug:    claims.Slug,
		Quality: claims.Quality,
		Service: claims.Service,
	}
	if claims.ExpiresAt != nil {
		meta.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if claims.ID == "" || claims.Slug == "" || claims.Quality == "" || claims.Service == "" {
		return t.block(ctx, ReasonMalformed, meta, nil)
	}

	ttl := meta.ExpiresAt.Sub(t.now())
	if ttl < 0 {
		ttl = 0
	}
	fresh, err := t.ledger.SetNX(ctx, cache.Key(ledgerOp, claims.ID), []byte("1"), ttl+time.Minute)
	if err != nil {
		return t.block(ctx, ReasonUnavailable, meta, err)
	}
	if !fresh {
		return t.block(ctx, ReasonReused, meta, nil)
	}

	link, err := t.svc.lookup(ctx, Request{Slug: claims.Slug, Quality: claims.Quality, Service: claims.Service})
	if err != nil {
		return t.block(ctx, ReasonLinkNotFound, meta, err)
	}

	metrics.TokenDecisions.WithLabelValues("granted", "").Inc()
	t.audit.Record(ctx, audit.Event{
		Type: audit.TokenGranted, Slug: meta.Slug, Quality: meta.Quality, Service: meta.Service,
		Context: map[string]any{"jti": meta.TokenID},
	})
	return TokenResult{Valid: true, RealLink: link.DownloadLink, Metadata: meta}
}

func (t *Tokens) block(ctx context.Context, reason string, meta *TokenMetadata, cause error) TokenResult {
	metrics.TokenDecisions.WithLabelValues("blocked", reason).Inc()
	e := audit.Event{Type: audit.TokenBlocked, Reason: reason}
	fields := logrus.Fields{"reason": reason}
	if meta != nil {
		e.Slug, e.Quality, e.Service = meta.Slug, meta.Quality, meta.Service
		e.Context = map[string]any{"jti": meta.TokenID}
		fields["jti"] = meta.TokenID
	}
	entry := t.log.WithFields(fields)
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Info("download token blocked")
	t.audit.Record(ctx, e)
	return TokenResult{Valid: false, Reason: reason, Metadata: meta}
}

func parseReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	}
	return ReasonMalformed
}
