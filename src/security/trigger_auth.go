package security

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// CronHeader is set by the scheduler that calls the oracle update endpoint.
const CronHeader = "x-vercel-cron"

const (
	CallerCron   = "vercel-cron"
	CallerAPIKey = "api-key"
	CallerDev    = "development"
)

var ErrUnauthorized = errors.New("unauthorized. This endpoint is protected. Use Authorization header with API key for manual calls")

// TriggerAuth decides who may ask for an oracle push.
type TriggerAuth struct {
	keyHash    []byte
	trustCron  bool
	cronSecret string
	dev        bool
}

func NewTriggerAuth(cfg Config) *TriggerAuth {
	a := &TriggerAuth{trustCron: cfg.TrustCronHeader, cronSecret: cfg.CronSecret, dev: cfg.DevMode}
	if cfg.OracleAPIKeyHash != "" {
		a.keyHash = []byte(cfg.OracleAPIKeyHash)
	}
	if a.dev {
		logger.Warn("DEV_MODE is on: oracle updates are accepted without credentials")
	}
	return a
}

// Authorize returns the caller label recorded as updatedBy.
func (a *TriggerAuth) Authorize(r *http.Request) (string, error) {
	if a.cronAllowed(r.Header.Get(CronHeader)) {
		return CallerCron, nil
	}
	if token, ok := bearerToken(r); ok && a.keyHash != nil {
		if err := bcrypt.CompareHashAndPassword(a.keyHash, []byte(token)); err == nil {
			return CallerAPIKey, nil
		}
	}
	if a.dev {
		return CallerDev, nil
	}
	return "", ErrUnauthorized
}

func (a *TriggerAuth) cronAllowed(value string) bool {
	if !a.trustCron || value == "" {
		return false
	}
	if a.cronSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(a.cronSecret)) == 1
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// HashAPIKey produces the value for ORACLE_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty api key")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
