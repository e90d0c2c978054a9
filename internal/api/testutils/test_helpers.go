package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/api"
	"github.com/rongwang/library-server/internal/catalog"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  *repository.SQLRepository
	Service     *service.DefaultService
	Catalog     *catalog.Proxy
	DB          *sqlx.DB
	AdminID     string
	AdminJWT    string
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext creates a new test context with initialized dependencies.
// Tests run on a throwaway sqlite file unless TEST_DB_DRIVER=postgres.
func SetupTestContext(t *testing.T, sources ...catalog.Source) *TestContext {
	t.Helper()

	db := OpenTestDB(t)
	repo := repository.NewSQLRepository(db)

	settings := service.DefaultSettings("test-secret-key")
	svc := service.NewDefaultService(repo, settings)

	proxy := catalog.NewProxy(repo, time.Minute, time.Second, nil, sources...)
	handler := api.NewHandler(svc, proxy, nil)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.SetupRoutes(router)

	tc := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Catalog:    proxy,
		DB:         db,
	}

	tc.AdminID, tc.AdminJWT = CreateUser(t, tc, "admin@example.com", "Test Admin", models.RoleAdmin)
	tc.TestUserID, tc.TestUserJWT = CreateUser(t, tc, "testuser@example.com", "Test User", models.RoleUser)

	return tc
}

// OpenTestDB returns an empty database with the schema applied
func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	if os.Getenv("TEST_DB_DRIVER") == "postgres" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DBName = cfg.Database.TestDBName
	} else {
		cfg.Database.Driver = "sqlite3"
		cfg.Database.Path = filepath.Join(t.TempDir(), "library_test.db")
	}

	db, err := config.SetupDatabase(cfg, utils.NopLogger())
	require.NoError(t, err, "Failed to set up test database")

	cleanupTestDatabase(t, db)
	t.Cleanup(func() {
		cleanupTestDatabase(t, db)
		db.Close()
	})

	return db
}

// cleanupTestDatabase removes rows left by earlier runs on a shared database
func cleanupTestDatabase(t *testing.T, db *sqlx.DB) {
	for _, table := range []string{"book_records", "books", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

// CreateUser inserts a user with the given role and returns its id and a token
func CreateUser(t *testing.T, tc *TestContext, email, name string, role models.Role) (string, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:    email,
		Name:     name,
		Password: string(hashedPassword),
		Role:     role,
	}
	require.NoError(t, tc.Repository.CreateUser(context.Background(), user), "Failed to create test user")

	token, _, err := tc.Service.IssueToken(user)
	require.NoError(t, err, "Failed to generate JWT token")

	return user.ID, token
}

// CreateBook adds a book with the given number of copies and returns it
func CreateBook(t *testing.T, tc *TestContext, title, externalID string, copies int) *models.Book {
	t.Helper()

	book, err := tc.Service.AddToLibrary(context.Background(), models.AddBookRequest{
		ExternalID:  externalID,
		Title:       title,
		Authors:     []string{"Test Author"},
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return book
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
