package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestPasswordHashing(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		hash, err := HashPassword("correct horse battery staple")
		assert.NoError(t, err)
		assert.Contains(t, hash, "$")

		assert.True(t, verifyPassword("correct horse battery staple", hash))
		assert.False(t, verifyPassword("wrong password", hash))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		h1, err := HashPassword("secret-pass")
		assert.NoError(t, err)
		h2, err := HashPassword("secret-pass")
		assert.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("malformed hash never verifies", func(t *testing.T) {
		assert.False(t, verifyPassword("anything", "not-a-hash"))
		assert.False(t, verifyPassword("anything", "a$b$c"))
	})
}

func TestGenerateTokens(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	defer viper.Set("jwt.secret_key", "")

	tokens, err := generateTokens(42, "user")
	assert.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEqual(t, tokens.AccessToken, tokens.RefreshToken)

	parse := func(raw string) jwt.MapClaims {
		token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		assert.NoError(t, err)
		assert.True(t, token.Valid)
		return token.Claims.(jwt.MapClaims)
	}

	access := parse(tokens.AccessToken)
	assert.Equal(t, float64(42), access["user_id"])
	assert.Equal(t, "user", access["role"])
	assert.Equal(t, "access", access["type"])

	refresh := parse(tokens.RefreshToken)
	assert.Equal(t, "refresh", refresh["type"])
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
	assert.Len(t, hashToken("abc"), 64)
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil, nil)

	valid := RegisterRequest{
		Email:     "owner@example.test",
		Phone:     "+2250701020304",
		Password:  "secret-pass",
		Firstname: "Awa",
		Lastname:  "Koné",
	}

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT email FROM users").
			WithArgs("owner@example.test").
			WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("owner@example.test"))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/register", valid, 0, "", nil)

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), CodeEmailExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate phone is a conflict", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT email FROM users").
			WithArgs("owner@example.test").
			WillReturnRows(sqlmock.NewRows([]string{"email"}))
		mock.ExpectQuery("SELECT phone FROM users").
			WithArgs("+2250701020304").
			WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow("+2250701020304"))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/register", valid, 0, "", nil)

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), CodePhoneExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown referral code is rejected", func(t *testing.T) {
		withRef := valid
		withRef.ReferralCode = "WIFINOPE1234"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT email FROM users").
			WithArgs("owner@example.test").
			WillReturnRows(sqlmock.NewRows([]string{"email"}))
		mock.ExpectQuery("SELECT phone FROM users").
			WithArgs("+2250701020304").
			WillReturnRows(sqlmock.NewRows([]string{"phone"}))
		mock.ExpectQuery("SELECT id FROM users WHERE referral_code").
			WithArgs("WIFINOPE1234").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/register", withRef, 0, "", nil)

		service.Register(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid referral code")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid payload is a validation error", func(t *testing.T) {
		bad := valid
		bad.Email = "not-an-email"

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/register", bad, 0, "", nil)

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeValidationError)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil, nil)

	hash, err := HashPassword("secret-pass")
	assert.NoError(t, err)

	t.Run("wrong password does not touch last_login", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, password, role, is_active, deleted_at").
			WithArgs("owner@example.test", "owner@example.test").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password", "role", "is_active", "deleted_at"}).
				AddRow(7, hash, "user", true, nil))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/login",
			LoginRequest{Identifier: "owner@example.test", Password: "wrong"}, 0, "", nil)

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), CodeInvalidCredentials)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivated account cannot log in", func(t *testing.T) {
		deleted := time.Now()
		mock.ExpectQuery("SELECT id, password, role, is_active, deleted_at").
			WithArgs("owner@example.test", "owner@example.test").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password", "role", "is_active", "deleted_at"}).
				AddRow(7, hash, "user", false, deleted))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/login",
			LoginRequest{Identifier: "owner@example.test", Password: "secret-pass"}, 0, "", nil)

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown identifier", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, password, role, is_active, deleted_at").
			WithArgs("ghost@example.test", "ghost@example.test").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		w := httptest.NewRecorder()
		r := newAuthedRequest(http.MethodPost, "/auth/login",
			LoginRequest{Identifier: "ghost@example.test", Password: "whatever"}, 0, "", nil)

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuthService_Logout(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewAuthService(db, redisClient, nil)

	viper.Set("jwt.expiry_hours", 24)
	redisMock.ExpectSet("blacklist:some-token", "1", 24*time.Hour).SetVal("OK")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer some-token")

	service.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, mock.ExpectationsWereMet())
}
