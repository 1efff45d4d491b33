package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"galapa/internal/common"
	"galapa/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockProviderService struct {
	mock.Mock
}

func (m *MockProviderService) List(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Provider), args.Error(1)
}

func (m *MockProviderService) GetByID(ctx context.Context, id int64) (*models.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func (m *MockProviderService) Create(ctx context.Context, in *models.ProviderInput) (*models.Provider, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func (m *MockProviderService) Update(ctx context.Context, id int64, in *models.ProviderInput) (*models.Provider, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func (m *MockProviderService) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProviderService) WarmCache(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockAuditLogsService struct {
	mock.Mock
}

func (m *MockAuditLogsService) GetProviderHistory(ctx context.Context, providerID int64, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, providerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditLogsService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

type ProviderHandlersTestSuite struct {
	suite.Suite
	providerService *MockProviderService
	auditService    *MockAuditLogsService
	echo            *echo.Echo
}

func (suite *ProviderHandlersTestSuite) SetupTest() {
	suite.providerService = &MockProviderService{}
	suite.auditService = &MockAuditLogsService{}
	suite.echo = echo.New()

	h := NewProviderHandlers(suite.providerService, suite.auditService)
	h.Register(suite.echo.Group(""))
}

func (suite *ProviderHandlersTestSuite) TearDownTest() {
	suite.providerService.AssertExpectations(suite.T())
	suite.auditService.AssertExpectations(suite.T())
}

func TestProviderHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderHandlersTestSuite))
}

func (suite *ProviderHandlersTestSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorResponse {
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const providerJSON = `{"company":"Acme","contact":"Ana","type":"Goods","email":"a@acme.com","phone":"555","address":"Main St 1"}`

func (suite *ProviderHandlersTestSuite) TestListProviders_PassesFilter() {
	filter := models.ProviderFilter{Status: models.ProviderStatusActive, Type: "Goods"}
	suite.providerService.On("List", mock.Anything, filter).
		Return([]*models.Provider{{ID: 1, Company: "Acme", Status: models.ProviderStatusActive}}, nil).Once()

	rec := suite.do(http.MethodGet, "/providers?status=A&type=Goods", "")

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	var providers []models.Provider
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &providers))
	require.Len(suite.T(), providers, 1)
	assert.Equal(suite.T(), "Acme", providers[0].Company)
}

func (suite *ProviderHandlersTestSuite) TestListProviders_EmptyIsArray() {
	suite.providerService.On("List", mock.Anything, models.ProviderFilter{}).Return([]*models.Provider{}, nil).Once()

	rec := suite.do(http.MethodGet, "/providers", "")

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `[]`, rec.Body.String())
}

func (suite *ProviderHandlersTestSuite) TestListProviders_StorageFailure() {
	suite.providerService.On("List", mock.Anything, models.ProviderFilter{}).
		Return(nil, errors.Join(common.ErrStorageUnavailable, errors.New("dial tcp 10.0.0.1:5432"))).Once()

	rec := suite.do(http.MethodGet, "/providers", "")

	assert.Equal(suite.T(), http.StatusInternalServerError, rec.Code)
	resp := decodeError(suite.T(), rec)
	assert.Equal(suite.T(), "SERVER_ERROR", resp.Error.Code)
	assert.NotContains(suite.T(), rec.Body.String(), "10.0.0.1")
}

func (suite *ProviderHandlersTestSuite) TestGetProvider_Success() {
	suite.providerService.On("GetByID", mock.Anything, int64(4)).
		Return(&models.Provider{ID: 4, Company: "Acme"}, nil).Once()

	rec := suite.do(http.MethodGet, "/providers/4", "")

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"company":"Acme"`)
}

func (suite *ProviderHandlersTestSuite) TestGetProvider_NotFound() {
	suite.providerService.On("GetByID", mock.Anything, int64(4)).Return(nil, common.ErrNotFound).Once()

	rec := suite.do(http.MethodGet, "/providers/4", "")

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	resp := decodeError(suite.T(), rec)
	assert.Equal(suite.T(), "Provider not found", resp.Error.Message)
}

func (suite *ProviderHandlersTestSuite) TestGetProvider_InvalidID() {
	for _, id := range []string{"abc", "0", "-3"} {
		rec := suite.do(http.MethodGet, "/providers/"+id, "")
		assert.Equal(suite.T(), http.StatusBadRequest, rec.Code, id)
	}
}

func (suite *ProviderHandlersTestSuite) TestCreateProvider_Created() {
	suite.providerService.On("Create", mock.Anything, mock.MatchedBy(func(in *models.ProviderInput) bool {
		return in.Company == "Acme" && in.Email == "a@acme.com"
	})).Return(&models.Provider{ID: 1, Company: "Acme", Status: models.ProviderStatusActive}, nil).Once()

	rec := suite.do(http.MethodPost, "/providers", providerJSON)

	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	var provider models.Provider
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &provider))
	assert.Equal(suite.T(), int64(1), provider.ID)
	assert.Equal(suite.T(), models.ProviderStatusActive, provider.Status)
}

func (suite *ProviderHandlersTestSuite) TestCreateProvider_ValidationError() {
	suite.providerService.On("Create", mock.Anything, mock.Anything).
		Return(nil, common.NewValidationError(map[string]string{"company": "company is required"})).Once()

	rec := suite.do(http.MethodPost, "/providers", `{"company":""}`)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	resp := decodeError(suite.T(), rec)
	assert.Equal(suite.T(), "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(suite.T(), "company is required", resp.Error.Details["company"])
}

func (suite *ProviderHandlersTestSuite) TestCreateProvider_MalformedBody() {
	rec := suite.do(http.MethodPost, "/providers", `{"company":`)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	suite.providerService.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *ProviderHandlersTestSuite) TestCreateProvider_Conflict() {
	suite.providerService.On("Create", mock.Anything, mock.Anything).
		Return(nil, errors.Join(common.ErrConstraintViolation, errors.New("providers_status_check"))).Once()

	rec := suite.do(http.MethodPost, "/providers", providerJSON)

	assert.Equal(suite.T(), http.StatusConflict, rec.Code)
	assert.Equal(suite.T(), "CONFLICT", decodeError(suite.T(), rec).Error.Code)
}

func (suite *ProviderHandlersTestSuite) TestUpdateProvider_Success() {
	suite.providerService.On("Update", mock.Anything, int64(3), mock.MatchedBy(func(in *models.ProviderInput) bool {
		return in.Status != nil && *in.Status == "I"
	})).Return(&models.Provider{ID: 3, Status: models.ProviderStatusInactive}, nil).Once()

	body := strings.TrimSuffix(providerJSON, "}") + `,"status":"I"}`
	rec := suite.do(http.MethodPut, "/providers/3", body)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"status":"I"`)
}

func (suite *ProviderHandlersTestSuite) TestUpdateProvider_NotFound() {
	suite.providerService.On("Update", mock.Anything, int64(3), mock.Anything).Return(nil, common.ErrNotFound).Once()

	rec := suite.do(http.MethodPut, "/providers/3", providerJSON)

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *ProviderHandlersTestSuite) TestUpdateProvider_NullDateClears() {
	suite.providerService.On("Update", mock.Anything, int64(3), mock.MatchedBy(func(in *models.ProviderInput) bool {
		return in.LastPurchaseDateSet && in.ClearsLastPurchaseDate()
	})).Return(&models.Provider{ID: 3}, nil).Once()

	body := strings.TrimSuffix(providerJSON, "}") + `,"last_purchase_date":null}`
	rec := suite.do(http.MethodPut, "/providers/3", body)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"last_purchase_date":null`)
}

func (suite *ProviderHandlersTestSuite) TestUpdateProvider_OmittedDateKeeps() {
	suite.providerService.On("Update", mock.Anything, int64(3), mock.MatchedBy(func(in *models.ProviderInput) bool {
		return !in.LastPurchaseDateSet && !in.ClearsLastPurchaseDate()
	})).Return(&models.Provider{ID: 3}, nil).Once()

	rec := suite.do(http.MethodPut, "/providers/3", providerJSON)

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
}

func (suite *ProviderHandlersTestSuite) TestGetProvider_NotFoundIsLogged() {
	logs := captureLog(suite.T())
	suite.providerService.On("GetByID", mock.Anything, int64(9)).Return(nil, common.ErrNotFound).Once()

	rec := suite.do(http.MethodGet, "/providers/9", "")

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	assert.Contains(suite.T(), logs.String(), `"level":"warn"`)
	assert.Contains(suite.T(), logs.String(), `"kind":"not_found"`)
	assert.Contains(suite.T(), logs.String(), `"message":"get provider rejected"`)
}

func (suite *ProviderHandlersTestSuite) TestCreateProvider_ValidationIsLogged() {
	logs := captureLog(suite.T())
	suite.providerService.On("Create", mock.Anything, mock.Anything).
		Return(nil, common.NewValidationError(map[string]string{"email": "email must be a valid email address"})).Once()

	rec := suite.do(http.MethodPost, "/providers", providerJSON)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(suite.T(), logs.String(), `"kind":"invalid_input"`)
	assert.Contains(suite.T(), logs.String(), `"email":"email must be a valid email address"`)
}

func (suite *ProviderHandlersTestSuite) TestDeleteProvider_InvalidIDIsLogged() {
	logs := captureLog(suite.T())

	rec := suite.do(http.MethodDelete, "/providers/abc", "")

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(suite.T(), logs.String(), `"message":"delete provider rejected"`)
}

func (suite *ProviderHandlersTestSuite) TestDeleteProvider_Success() {
	suite.providerService.On("Delete", mock.Anything, int64(8)).Return(nil).Once()

	rec := suite.do(http.MethodDelete, "/providers/8", "")

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `{"message":"Provider deleted successfully"}`, rec.Body.String())
}

func (suite *ProviderHandlersTestSuite) TestDeleteProvider_NotFound() {
	suite.providerService.On("Delete", mock.Anything, int64(8)).Return(common.ErrNotFound).Once()

	rec := suite.do(http.MethodDelete, "/providers/8", "")

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *ProviderHandlersTestSuite) TestGetProviderHistory() {
	suite.auditService.On("GetProviderHistory", mock.Anything, int64(5), 10, 20).
		Return([]*models.AuditLog{{ID: 1, ProviderID: 5, Action: models.ActionInsert}}, nil).Once()

	rec := suite.do(http.MethodGet, "/providers/5/history?limit=10&offset=20", "")

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"action":"INSERT"`)
}

func TestRegister_WriteMiddlewareOnlyOnWrites(t *testing.T) {
	providerService := &MockProviderService{}
	e := echo.New()
	deny := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return c.NoContent(http.StatusUnauthorized)
		}
	}
	NewProviderHandlers(providerService, &MockAuditLogsService{}).Register(e.Group(""), deny)

	providerService.On("List", mock.Anything, models.ProviderFilter{}).Return([]*models.Provider{}, nil).Once()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/providers/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	providerService.AssertExpectations(t)
}
