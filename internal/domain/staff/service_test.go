package staff

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/pos-backoffice/internal/config"
)

func setupTest(t *testing.T) *Service {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "staff_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Staff{}))

	cfg := &config.Config{
		App: config.AppConfig{Name: "test"},
		JWT: config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
		Security: config.SecurityConfig{
			BcryptCost: 4, // keep hashing fast in tests
		},
	}
	return NewService(db, cfg)
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc := setupTest(t)

	member, err := svc.Create(&CreateRequest{
		Username: "clerk1",
		Password: "Sell4things",
		IsAdmin:  false,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, member.PasswordHash)
	assert.NotEqual(t, "Sell4things", member.PasswordHash)

	resp, err := svc.Authenticate(&LoginRequest{Username: "clerk1", Password: "Sell4things"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotNil(t, resp.Staff.LastLoginAt)

	_, err = svc.Authenticate(&LoginRequest{Username: "clerk1", Password: "WrongPass9"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateRejectsDuplicateUsername(t *testing.T) {
	svc := setupTest(t)

	_, err := svc.Create(&CreateRequest{Username: "clerk1", Password: "Sell4things"})
	require.NoError(t, err)

	_, err = svc.Create(&CreateRequest{Username: "clerk1", Password: "Other9pass"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestDisabledAccountCannotLogin(t *testing.T) {
	svc := setupTest(t)

	member, err := svc.Create(&CreateRequest{Username: "clerk1", Password: "Sell4things"})
	require.NoError(t, err)

	_, err = svc.SetActive(member.ID, false)
	require.NoError(t, err)

	_, err = svc.Authenticate(&LoginRequest{Username: "clerk1", Password: "Sell4things"})
	require.ErrorIs(t, err, ErrAccountDisabled)
}
