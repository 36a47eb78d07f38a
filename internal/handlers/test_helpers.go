package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/models"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/services"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   models.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc              func(ctx context.Context, email, password string, req services.LoginRequestContext) (*services.LoginResult, error)
	VerifySecondFactorFunc func(ctx context.Context, mfaToken, code string, req services.LoginRequestContext) (*services.LoginResult, error)
}

func (m *MockLoginService) Login(ctx context.Context, email, password string, req services.LoginRequestContext) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return &services.LoginResult{Status: services.StatusInvalidCredentials}, nil
	}
	return m.LoginFunc(ctx, email, password, req)
}

func (m *MockLoginService) VerifySecondFactor(ctx context.Context, mfaToken, code string, req services.LoginRequestContext) (*services.LoginResult, error) {
	if m.VerifySecondFactorFunc == nil {
		return &services.LoginResult{Status: services.StatusInvalidCredentials}, nil
	}
	return m.VerifySecondFactorFunc(ctx, mfaToken, code, req)
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc func(ctx context.Context, email, password, name string) (*models.User, error)
}

func (m *MockAccountService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, name)
}

// MockTwoFactorService implements TwoFactorServiceInterface for testing
type MockTwoFactorService struct {
	BeginSetupFunc      func(ctx context.Context, userID string) (*services.SetupResponse, error)
	VerifyAndEnableFunc func(ctx context.Context, userID, code string) ([]string, error)
	DisableFunc         func(ctx context.Context, userID, code string) error
	StatusFunc          func(ctx context.Context, userID string) (*services.StatusResponse, error)
}

func (m *MockTwoFactorService) BeginSetup(ctx context.Context, userID string) (*services.SetupResponse, error) {
	if m.BeginSetupFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.BeginSetupFunc(ctx, userID)
}

func (m *MockTwoFactorService) VerifyAndEnable(ctx context.Context, userID, code string) ([]string, error) {
	if m.VerifyAndEnableFunc == nil {
		return nil, models.ErrInvalidCode
	}
	return m.VerifyAndEnableFunc(ctx, userID, code)
}

func (m *MockTwoFactorService) Disable(ctx context.Context, userID, code string) error {
	if m.DisableFunc == nil {
		return models.ErrInvalidCode
	}
	return m.DisableFunc(ctx, userID, code)
}

func (m *MockTwoFactorService) Status(ctx context.Context, userID string) (*services.StatusResponse, error) {
	if m.StatusFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.StatusFunc(ctx, userID)
}
