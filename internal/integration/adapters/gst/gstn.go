// Package gst holds the tax-category adapters.
package gst

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/integration/adapters/restclient"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/smallbiznis/gstbill/internal/integration/token"
	"github.com/smallbiznis/gstbill/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	KeyGSTN = "gstn"

	lookupTTL = 24 * time.Hour
)

var ErrInvalidGSTIN = errors.New("invalid_gstin")

type GSTNConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// TokenURL defaults to BaseURL + "/oauth/token".
	TokenURL string
	RetryMax int
}

// GSTN talks to a GST Suvidha Provider REST API.
type GSTN struct {
	api     *restclient.Client
	tokens  *token.Cache
	lookups *cache.Cache
	log     *zap.Logger
}

func NewGSTN(cfg GSTNConfig, clk clock.Clock, log *zap.Logger) *GSTN {
	if log == nil {
		log = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = base + "/oauth/token"
	}
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	return &GSTN{
		api:     restclient.New(restclient.Options{BaseURL: base, RetryMax: cfg.RetryMax, Log: log}),
		tokens:  token.NewCache(creds.Token, clk),
		lookups: cache.New(lookupTTL, time.Hour),
		log:     log.Named("gstn"),
	}
}

func (g *GSTN) Key() string { return KeyGSTN }

func (g *GSTN) Category() domain.Category { return domain.CategoryTax }

// ValidateGSTIN checks the checksum locally before asking the portal. Portal
// answers are cached per GSTIN.
func (g *GSTN) ValidateGSTIN(ctx context.Context, gstin string) (map[string]any, error) {
	gstin = strings.ToUpper(strings.TrimSpace(gstin))
	if !validation.ValidGSTIN(gstin) {
		return nil, ErrInvalidGSTIN
	}
	if cached, ok := g.lookups.Get(gstin); ok {
		out := copyMap(cached.(map[string]any))
		out["cached"] = true
		return out, nil
	}

	var resp map[string]any
	if err := g.call(ctx, http.MethodGet, "/taxpayers/"+url.PathEscape(gstin), nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = map[string]any{}
	}
	resp["gstin"] = gstin
	resp["state_code"] = validation.StateCode(gstin)
	g.lookups.Set(gstin, resp, cache.DefaultExpiration)

	out := copyMap(resp)
	out["cached"] = false
	return out, nil
}

func (g *GSTN) FileReturn(ctx context.Context, req domain.FileReturnRequest) (map[string]any, error) {
	body := map[string]any{
		"gstin":      strings.ToUpper(req.GSTIN),
		"ret_period": req.Period,
		"data":       req.Payload,
	}
	var resp map[string]any
	path := "/returns/" + url.PathEscape(strings.ToLower(req.ReturnType)) + "/file"
	if err := g.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *GSTN) GenerateEWayBill(ctx context.Context, req domain.EWayBillRequest) (map[string]any, error) {
	body := map[string]any{
		"fromGstin":       strings.ToUpper(req.SupplierGSTIN),
		"toGstin":         strings.ToUpper(req.RecipientGSTIN),
		"docNo":           req.DocumentNumber,
		"docDate":         req.DocumentDate,
		"totInvValue":     req.Value.StringFixed(2),
		"fromPincode":     req.FromPincode,
		"toPincode":       req.ToPincode,
		"transDistance":   req.DistanceKM,
		"vehicleNo":       req.VehicleNumber,
		"transMode":       req.TransportMode,
		"itemList":        req.Items,
		"supplyType":      "O",
		"docType":         "INV",
		"transactionType": 1,
	}
	var resp map[string]any
	if err := g.call(ctx, http.MethodPost, "/ewaybill", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *GSTN) ReturnStatus(ctx context.Context, req domain.ReturnStatusRequest) (map[string]any, error) {
	query := url.Values{}
	query.Set("gstin", strings.ToUpper(req.GSTIN))
	query.Set("ret_period", req.Period)
	query.Set("return_type", req.ReturnType)
	if req.ReferenceID != "" {
		query.Set("ref_id", req.ReferenceID)
	}
	var resp map[string]any
	if err := g.call(ctx, http.MethodGet, "/returns/status?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// call attaches the cached bearer token and retries once with a fresh token
// when the portal rejects the current one.
func (g *GSTN) call(ctx context.Context, method, path string, body any, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		tok, err := g.tokens.Token(ctx)
		if err != nil {
			return err
		}
		header := http.Header{}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)

		err = g.api.Do(ctx, method, path, header, body, out)
		var statusErr *restclient.StatusError
		if attempt == 0 && errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			g.log.Warn("gstn token rejected, refreshing")
			g.tokens.Invalidate()
			continue
		}
		return err
	}
	return nil
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
