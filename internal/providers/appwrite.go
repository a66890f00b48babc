package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
)

// appwritePageSize is the largest page the documents API returns
const appwritePageSize = 100

// AppwriteConfig addresses the collections holding asset-tracking data
type AppwriteConfig struct {
	Endpoint   string // e.g. https://cloud.appwrite.io/v1
	ProjectID  string
	APIKey     string
	DatabaseID string

	AssetsCollection   string
	RequestsCollection string
	IssuesCollection   string
	ReturnsCollection  string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// AppwriteProvider reads snapshots from an Appwrite database over REST
type AppwriteProvider struct {
	cfg        AppwriteConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewAppwriteProvider creates a snapshot provider backed by Appwrite
func NewAppwriteProvider(cfg AppwriteConfig) *AppwriteProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &AppwriteProvider{cfg: cfg, httpClient: httpClient, now: time.Now}
}

type appwriteAsset struct {
	ID                 string `json:"$id"`
	Name               string `json:"name"`
	AssetTag           string `json:"assetTag"`
	Department         string `json:"department"`
	Category           string `json:"category"`
	CurrentCondition   string `json:"currentCondition"`
	AvailableStatus    string `json:"availableStatus"`
	CustodianStaffID   string `json:"custodianStaffId"`
	NextMaintenanceDue string `json:"nextMaintenanceDue"`
	WarrantyExpiry     string `json:"warrantyExpiry"`
}

type appwriteRequest struct {
	ID          string `json:"$id"`
	CreatedAt   string `json:"$createdAt"`
	AssetID     string `json:"assetId"`
	RequesterID string `json:"requesterId"`
	Status      string `json:"status"`
	RequestedAt string `json:"requestedAt"`
}

type appwriteIssue struct {
	ID         string `json:"$id"`
	CreatedAt  string `json:"$createdAt"`
	AssetID    string `json:"assetId"`
	IssueType  string `json:"issueType"`
	Severity   string `json:"severity"`
	Status     string `json:"status"`
	ReportedAt string `json:"reportedAt"`
}

type appwriteReturn struct {
	ID                 string `json:"$id"`
	AssetID            string `json:"assetId"`
	AssetName          string `json:"assetName"`
	Department         string `json:"department"`
	StaffID            string `json:"staffId"`
	ExpectedReturnDate string `json:"expectedReturnDate"`
	ActualReturnDate   string `json:"actualReturnDate"`
}

func (p *AppwriteProvider) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	var docs []appwriteAsset
	if err := listDocuments(ctx, p, p.cfg.AssetsCollection, &docs); err != nil {
		return nil, err
	}

	out := make([]asset.Asset, 0, len(docs))
	for _, d := range docs {
		out = append(out, asset.Asset{
			ID:                 d.ID,
			Name:               d.Name,
			AssetTag:           d.AssetTag,
			Department:         d.Department,
			Category:           d.Category,
			CurrentCondition:   strings.ToUpper(d.CurrentCondition),
			AvailableStatus:    strings.ToUpper(d.AvailableStatus),
			CustodianStaffID:   d.CustodianStaffID,
			NextMaintenanceDue: parseDate(d.NextMaintenanceDue),
			WarrantyExpiry:     parseDate(d.WarrantyExpiry),
		})
	}
	return out, nil
}

func (p *AppwriteProvider) ListPendingRequests(ctx context.Context) ([]asset.Request, error) {
	var docs []appwriteRequest
	if err := listDocuments(ctx, p, p.cfg.RequestsCollection, &docs); err != nil {
		return nil, err
	}

	var out []asset.Request
	for _, d := range docs {
		if !strings.EqualFold(d.Status, asset.RequestPending) {
			continue
		}
		requestedAt := parseDate(firstNonEmpty(d.RequestedAt, d.CreatedAt))
		if requestedAt == nil {
			continue
		}
		out = append(out, asset.Request{
			ID:          d.ID,
			AssetID:     d.AssetID,
			RequesterID: d.RequesterID,
			Status:      asset.RequestPending,
			RequestedAt: *requestedAt,
		})
	}
	return out, nil
}

func (p *AppwriteProvider) ListOpenIssues(ctx context.Context) ([]asset.Issue, error) {
	var docs []appwriteIssue
	if err := listDocuments(ctx, p, p.cfg.IssuesCollection, &docs); err != nil {
		return nil, err
	}

	var out []asset.Issue
	for _, d := range docs {
		status := strings.ToUpper(d.Status)
		if status == "RESOLVED" || status == "CLOSED" {
			continue
		}
		is := asset.Issue{
			ID:        d.ID,
			AssetID:   d.AssetID,
			IssueType: strings.ToUpper(d.IssueType),
			Severity:  strings.ToUpper(d.Severity),
			Status:    status,
		}
		if t := parseDate(firstNonEmpty(d.ReportedAt, d.CreatedAt)); t != nil {
			is.ReportedAt = *t
		}
		out = append(out, is)
	}
	return out, nil
}

func (p *AppwriteProvider) ListOverdueReturns(ctx context.Context) ([]asset.Return, error) {
	var docs []appwriteReturn
	if err := listDocuments(ctx, p, p.cfg.ReturnsCollection, &docs); err != nil {
		return nil, err
	}

	now := p.now()
	var out []asset.Return
	for _, d := range docs {
		if d.ActualReturnDate != "" {
			continue
		}
		expected := parseDate(d.ExpectedReturnDate)
		if expected == nil || !expected.Before(now) {
			continue
		}
		out = append(out, asset.Return{
			ID:                 d.ID,
			AssetID:            d.AssetID,
			AssetName:          d.AssetName,
			Department:         d.Department,
			StaffID:            d.StaffID,
			ExpectedReturnDate: *expected,
		})
	}
	return out, nil
}

type documentPage[T any] struct {
	Total     int `json:"total"`
	Documents []T `json:"documents"`
}

// listDocuments reads every document of a collection page by page
func listDocuments[T any](ctx context.Context, p *AppwriteProvider, collection string, out *[]T) error {
	for offset := 0; ; offset += appwritePageSize {
		var page documentPage[T]
		if err := p.get(ctx, collection, offset, &page); err != nil {
			return errors.UpstreamError("appwrite:"+collection, err)
		}
		*out = append(*out, page.Documents...)
		if len(page.Documents) < appwritePageSize || len(*out) >= page.Total {
			return nil
		}
	}
}

func (p *AppwriteProvider) get(ctx context.Context, collection string, offset int, result interface{}) error {
	endpoint := fmt.Sprintf("%s/databases/%s/collections/%s/documents",
		p.cfg.Endpoint, url.PathEscape(p.cfg.DatabaseID), url.PathEscape(collection))

	q := url.Values{}
	q.Add("queries[]", fmt.Sprintf(`{"method":"limit","values":[%d]}`, appwritePageSize))
	q.Add("queries[]", fmt.Sprintf(`{"method":"offset","values":[%d]}`, offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Appwrite-Project", p.cfg.ProjectID)
	if p.cfg.APIKey != "" {
		req.Header.Set("X-Appwrite-Key", p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("appwrite error (status %d, %s): %s", resp.StatusCode, apiErr.Type, apiErr.Message)
		}
		return fmt.Errorf("appwrite error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-07:00", "2006-01-02"}

// parseDate accepts ISO timestamps and bare dates; anything else is treated as unset
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
