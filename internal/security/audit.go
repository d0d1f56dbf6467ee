package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/app"
	iauth "github.com/charlesng35/mentorlink/internal/auth"
	"github.com/charlesng35/mentorlink/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	CheckAdminPresent   = "admin_user_present"
	CheckJWTSecret      = "jwt_secret_strength"
	CheckAccessTokenTTL = "access_token_ttl"
	CheckAllowedOrigins = "allowed_origins"

	maxRecommendedTTL = 24 * time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates the deployment's security-relevant configuration.
type AuditService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. All dependencies are optional; missing
// inputs degrade specific checks to warnings.
func NewAuditService(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{
		db:  db,
		jwt: jwt,
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdminUser(ctx),
		s.checkJWTSecret(),
		s.checkAccessTokenTTL(),
		s.checkAllowedOrigins(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

// checkAdminUser warns when nobody can call the internal notification endpoint.
func (s *AuditService) checkAdminUser(ctx context.Context) Check {
	if s.db == nil {
		return Check{
			ID:          CheckAdminPresent,
			Status:      StatusWarn,
			Message:     "Database unavailable, unable to confirm an administrator exists",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return Check{
			ID:          CheckAdminPresent,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count administrators: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count == 0 {
		return Check{
			ID:          CheckAdminPresent,
			Status:      StatusWarn,
			Message:     "No ADMIN user exists; internal notifications and monitoring summaries are unreachable.",
			Remediation: "Promote a trusted account to the ADMIN role.",
		}
	}

	return Check{
		ID:      CheckAdminPresent,
		Status:  StatusPass,
		Message: "Administrator present.",
		Details: map[string]any{"count": count},
	}
}

func (s *AuditService) checkJWTSecret() Check {
	if s.jwt == nil {
		return Check{
			ID:          CheckJWTSecret,
			Status:      StatusWarn,
			Message:     "JWT service not initialised, unable to assess signing secret strength.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()
	switch {
	case length == 0:
		return Check{
			ID:          CheckJWTSecret,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide the secret shared with the authentication service (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          CheckJWTSecret,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
			Details:     map[string]any{"length": length},
		}
	case length < 48:
		return Check{
			ID:          CheckJWTSecret,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of MENTORLINK_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      CheckJWTSecret,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkAccessTokenTTL() Check {
	if s.cfg == nil {
		return Check{
			ID:          CheckAccessTokenTTL,
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to evaluate token lifetime.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	ttl := s.cfg.Auth.JWT.TTL
	if ttl <= 0 {
		ttl = iauth.DefaultAccessTokenTTL
	}
	if ttl > maxRecommendedTTL {
		return Check{
			ID:          CheckAccessTokenTTL,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedTTL),
			Remediation: "Reduce MENTORLINK_AUTH_JWT_ACCESS_TOKEN_TTL; websocket sessions outlive it anyway.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      CheckAccessTokenTTL,
		Status:  StatusPass,
		Message: fmt.Sprintf("Access token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkAllowedOrigins() Check {
	if s.cfg == nil {
		return Check{
			ID:          CheckAllowedOrigins,
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to evaluate allowed origins.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	origins := s.cfg.Server.AllowedOrigins
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          CheckAllowedOrigins,
				Status:      StatusWarn,
				Message:     "Any origin may call the API and open websocket connections.",
				Remediation: "List the frontend origins in MENTORLINK_SERVER_ALLOWED_ORIGINS.",
			}
		}
	}

	return Check{
		ID:      CheckAllowedOrigins,
		Status:  StatusPass,
		Message: "Cross-origin access is restricted.",
		Details: map[string]any{"origins": origins},
	}
}
