package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorlink/internal/app"
	iauth "github.com/charlesng35/mentorlink/internal/auth"
	testutil "github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
)

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	testutil.MustCreateUser(t, db, "Dee Admin", models.RoleAdmin)

	secret := "0123456789abcdef0123456789abcdef0123456789abcdef"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: secret, Issuer: "test-suite", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{AllowedOrigins: []string{"https://app.example.com"}},
		Auth:   app.AuthConfig{JWT: app.JWTSettings{Secret: secret, TTL: time.Hour}},
	}

	svc := NewAuditService(db, jwtSvc, cfg)
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 4)
	require.Equal(t, 4, result.Summary[string(StatusPass)])
}

func TestAuditServiceFlagsWeakDeployment(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "short-secret", Issuer: "test-suite"})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{AllowedOrigins: []string{"*"}},
		Auth:   app.AuthConfig{JWT: app.JWTSettings{TTL: 72 * time.Hour}},
	}

	result := NewAuditService(db, jwtSvc, cfg).Run(context.Background())
	require.Equal(t, StatusWarn, findCheck(t, result, CheckAdminPresent).Status)
	require.Equal(t, StatusFail, findCheck(t, result, CheckJWTSecret).Status)
	require.Equal(t, StatusWarn, findCheck(t, result, CheckAccessTokenTTL).Status)
	require.Equal(t, StatusWarn, findCheck(t, result, CheckAllowedOrigins).Status)
	require.Equal(t, 1, result.Summary[string(StatusFail)])
}

func TestAuditServiceWithoutDependencies(t *testing.T) {
	result := NewAuditService(nil, nil, nil).Run(context.Background())
	require.Equal(t, 4, result.Summary[string(StatusWarn)])
}
