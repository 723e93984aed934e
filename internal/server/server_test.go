package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/gstbill/internal/auth"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	integrationdomain "github.com/smallbiznis/gstbill/internal/integration/domain"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	profiledomain "github.com/smallbiznis/gstbill/internal/profile/domain"
	"github.com/smallbiznis/gstbill/internal/usercontext"
	"github.com/smallbiznis/gstbill/internal/validation"
)

const testUserID = snowflake.ID(4242)

type fakeInvoiceService struct {
	invoicedomain.Service

	lastID      string
	lastRevenue invoicedomain.RevenueRequest
	lastList    invoicedomain.ListInvoiceRequest
	err         error
}

func (f *fakeInvoiceService) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	f.lastID = id
	if f.err != nil {
		return invoicedomain.Invoice{}, f.err
	}
	parsed, _ := snowflake.ParseString(id)
	return invoicedomain.Invoice{ID: parsed, Status: invoicedomain.InvoiceStatusDraft}, nil
}

func (f *fakeInvoiceService) Send(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	f.lastID = id
	if f.err != nil {
		return invoicedomain.Invoice{}, f.err
	}
	return invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusSent}, nil
}

func (f *fakeInvoiceService) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.lastList = req
	return invoicedomain.ListInvoiceResponse{}, f.err
}

func (f *fakeInvoiceService) Revenue(ctx context.Context, req invoicedomain.RevenueRequest) (invoicedomain.RevenueSummary, error) {
	f.lastRevenue = req
	return invoicedomain.RevenueSummary{Start: req.Start, End: req.End}, nil
}

type fakeIntegrationService struct {
	integrationdomain.Service

	result    integrationdomain.Result
	lastGSTIN string
	userSeen  snowflake.ID
}

func (f *fakeIntegrationService) ValidateGSTIN(ctx context.Context, req integrationdomain.ValidateGSTINRequest) (integrationdomain.Result, error) {
	f.lastGSTIN = req.GSTIN
	f.userSeen, _ = usercontext.UserIDFromContext(ctx)
	return f.result, nil
}

func (f *fakeIntegrationService) SyncAccounting(ctx context.Context, req integrationdomain.SyncRequest) (integrationdomain.Result, error) {
	return f.result, nil
}

type fakeProfileService struct {
	profiledomain.Service

	lastUpdate profiledomain.UpdateProfileRequest
	lastAvatar profiledomain.UploadAvatarRequest
	avatarBody []byte
	deleteErr  error
}

func (f *fakeProfileService) Update(ctx context.Context, req profiledomain.UpdateProfileRequest) (profiledomain.User, error) {
	f.lastUpdate = req
	return profiledomain.User{ID: testUserID}, nil
}

func (f *fakeProfileService) UploadAvatar(ctx context.Context, req profiledomain.UploadAvatarRequest) (profiledomain.User, error) {
	f.lastAvatar = req
	f.avatarBody, _ = io.ReadAll(req.Body)
	return profiledomain.User{ID: testUserID}, nil
}

func (f *fakeProfileService) DeleteAccount(ctx context.Context, req profiledomain.DeleteAccountRequest) error {
	return f.deleteErr
}

type testServer struct {
	server      *Server
	tokens      *auth.TokenManager
	invoices    *fakeInvoiceService
	integration *fakeIntegrationService
	profile     *fakeProfileService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterGinBinding(); err != nil {
		t.Fatalf("register validation: %v", err)
	}

	tokens, err := auth.NewTokenManager(config.Config{AuthJWTSecret: "test-secret"}, clock.SystemClock{})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		tokens:      tokens,
		invoices:    &fakeInvoiceService{},
		integration: &fakeIntegrationService{},
		profile:     &fakeProfileService{},
	}
	ts.server = NewServer(ServerParams{
		Gin:            engine,
		Tokens:         tokens,
		InvoiceSvc:     ts.invoices,
		IntegrationSvc: ts.integration,
		ProfileSvc:     ts.profile,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := ts.tokens.Issue(testUserID, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/123", nil)
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Type; got != "unauthorized" {
		t.Fatalf("expected unauthorized, got %q", got)
	}
}

func TestAuthRequiredRejectsForeignSignature(t *testing.T) {
	ts := newTestServer(t)
	other, err := auth.NewTokenManager(config.Config{AuthJWTSecret: "another-secret"}, clock.SystemClock{})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	token, err := other.Issue(testUserID, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/123", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.err = invoicedomain.ErrInvoiceNotFound

	rec := ts.do(t, http.MethodGet, "/api/v1/invoices/1234567", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.invoices.lastID != "1234567" {
		t.Fatalf("expected id to reach service, got %q", ts.invoices.lastID)
	}
}

func TestGetInvoiceRejectsMalformedID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/invoices/not-an-id", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	payload := decodeError(t, rec)
	if len(payload.Errors) != 1 || payload.Errors[0].Field != "invoice_id" {
		t.Fatalf("unexpected errors: %+v", payload.Errors)
	}
	if ts.invoices.lastID != "" {
		t.Fatalf("service should not be called")
	}
}

func TestSendInvoiceTransitionConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.err = invoicedomain.ErrInvalidTransition

	rec := ts.do(t, http.MethodPost, "/api/v1/invoices/1234567/send", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Message; got != invoicedomain.ErrInvalidTransition.Error() {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInvoiceRevenueScopesToCaller(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/invoices/revenue?start=2024-04-01&end=2024-04-30", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := ts.invoices.lastRevenue
	if got.UserID == nil || *got.UserID != testUserID {
		t.Fatalf("expected revenue scoped to caller, got %v", got.UserID)
	}
	if got.End.Hour() != 23 || got.End.Day() != 30 {
		t.Fatalf("expected end of day, got %s", got.End)
	}
}

func TestListInvoicesLeavesPageSizeToService(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/invoices", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.invoices.lastList.PageSize != 0 {
		t.Fatalf("expected no default page size from binding, got %d", ts.invoices.lastList.PageSize)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/invoices?page_size=500", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized page, got %d", rec.Code)
	}
}

func TestInvoiceRevenueRequiresRange(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/invoices/revenue?start=2024-04-01", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if errs := decodeError(t, rec).Errors; len(errs) != 1 || errs[0].Field != "end" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestValidateGSTINBindingErrorsUseJSONNames(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/integrations/gst/validate-gstin",
		bytes.NewBufferString(`{"gstin":"NOT-A-GSTIN"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	errs := decodeError(t, rec).Errors
	if len(errs) != 1 || errs[0].Field != "gstin" || errs[0].Code != "gstin" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestIntegrationResultStatus(t *testing.T) {
	cases := []struct {
		name   string
		result integrationdomain.Result
		want   int
	}{
		{"ok", integrationdomain.OK(integrationdomain.CategoryTax, "gstn", nil), http.StatusOK},
		{"unsupported", integrationdomain.Failure(integrationdomain.CategoryTax, "acme", integrationdomain.CodeUnsupportedProvider, ""), http.StatusBadRequest},
		{"not supported", integrationdomain.Failure(integrationdomain.CategoryTax, "cleartax", integrationdomain.CodeNotSupported, ""), http.StatusBadRequest},
		{"provider error", integrationdomain.Failure(integrationdomain.CategoryTax, "gstn", integrationdomain.CodeProviderError, "boom"), http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.integration.result = tc.result

			rec := ts.do(t, http.MethodPost, "/api/v1/integrations/gst/validate-gstin",
				bytes.NewBufferString(`{"gstin":"27AAPFU0939F1ZV"}`), "application/json")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			if ts.integration.userSeen != testUserID {
				t.Fatalf("expected user in context, got %v", ts.integration.userSeen)
			}

			var body struct {
				Data integrationdomain.Result `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Data.Code != tc.result.Code {
				t.Fatalf("expected code %q, got %q", tc.result.Code, body.Data.Code)
			}
		})
	}
}

func TestSyncAccountingInProgressIsConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.integration.result = integrationdomain.Failure(integrationdomain.CategoryAccounting, "zoho", integrationdomain.CodeSyncInProgress, "")

	rec := ts.do(t, http.MethodPost, "/api/v1/integrations/accounting/sync", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestUploadAvatarMultipart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = writer.Close()

	rec := ts.do(t, http.MethodPost, "/api/v1/profile/avatar", &body, writer.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ts.profile.lastAvatar.Filename != "me.png" {
		t.Fatalf("unexpected filename %q", ts.profile.lastAvatar.Filename)
	}
	if !bytes.HasPrefix(ts.profile.avatarBody, []byte("\x89PNG")) {
		t.Fatalf("avatar body not forwarded")
	}
}

func TestUploadAvatarMissingFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/profile/avatar", bytes.NewBufferString("{}"), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if errs := decodeError(t, rec).Errors; len(errs) != 1 || errs[0].Code != "avatar_required" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestDeleteAccountWrongConfirmation(t *testing.T) {
	ts := newTestServer(t)
	ts.profile.deleteErr = profiledomain.ErrInvalidConfirmation

	rec := ts.do(t, http.MethodDelete, "/api/v1/profile",
		bytes.NewBufferString(`{"confirmation":"delete","password":"secret123"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if errs := decodeError(t, rec).Errors; len(errs) != 1 || errs[0].Field != "confirmation" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestDeleteAccountNoContent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/v1/profile",
		bytes.NewBufferString(`{"confirmation":"DELETE MY ACCOUNT","password":"secret123"}`), "application/json")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
