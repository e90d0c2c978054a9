package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rongwang/library-server/internal/api/testutils"
	"github.com/rongwang/library-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Test case 1: Successful registration
	registerReq := models.RegisterRequest{
		Email:    "newuser@example.com",
		Password: "Password123",
		Name:     "New User",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Token)
	assert.Equal(t, models.RoleUser, response.Role)

	// Test case 2: Duplicate email, differing only in case
	registerReq.Email = "NewUser@Example.com"
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		registerReq,
		nil,
	)

	assert.Equal(t, http.StatusConflict, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "EMAIL_TAKEN", errResp.Code)

	// Test case 3: Invalid request (missing required fields)
	invalidReq := models.RegisterRequest{
		Email: "invalid@example.com",
	}

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/register",
		invalidReq,
		nil,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Test case 1: Successful login
	loginReq := models.LoginRequest{
		Email:    "testuser@example.com",
		Password: "testpassword",
	}

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, testCtx.TestUserID, response.UserID)
	assert.NotEmpty(t, response.Token)

	// Test case 2: Wrong password
	loginReq.Password = "wrongpassword"
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		loginReq,
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Test case 3: Unknown email
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		models.LoginRequest{Email: "nobody@example.com", Password: "testpassword"},
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/auth/me", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "testuser@example.com", response.User.Email)
	assert.NotContains(t, w.Body.String(), "password")

	// No token
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/auth/me", nil,
		map[string]string{"Authorization": testCtx.TestUserJWT})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/auth/me", nil,
		testutils.AuthHeaders("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/all", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/all", nil,
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.UserListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Users, 2)
	assert.Equal(t, models.RoleAdmin, response.Users[0].Role)
}

func TestRoleChangeTakesEffectImmediately(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Promote the test user
	w := testutils.PerformRequest(testCtx.Router, http.MethodPut,
		"/api/users/"+testCtx.TestUserID+"/role",
		models.UpdateRoleRequest{Role: "admin"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	// The token issued before the promotion now passes the admin gate
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/all", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	// Demote again
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut,
		"/api/users/"+testCtx.TestUserID+"/role",
		models.UpdateRoleRequest{Role: "user"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/all", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unknown role is rejected by validation
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut,
		"/api/users/"+testCtx.TestUserID+"/role",
		models.UpdateRoleRequest{Role: "librarian"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown user
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut,
		"/api/users/does-not-exist/role",
		models.UpdateRoleRequest{Role: "admin"},
		testutils.AuthHeaders(testCtx.AdminJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthStoreFailureIsInternalError(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// The token is valid but the user lookup cannot reach the store
	require.NoError(t, testCtx.DB.Close())

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/books/borrowed", nil,
		testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "INTERNAL_ERROR", errResp.Code)

	// A forged token is still a bad token
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/books/borrowed", nil,
		testutils.AuthHeaders("not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
