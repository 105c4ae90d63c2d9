package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/models"
)

const defaultSheetsBaseURL = "https://sheets.googleapis.com/v4"

// SheetsStore appends appraisal rows to a Google spreadsheet through the
// Sheets REST API. The first row is a header in schema order, created on
// first contact if the sheet is empty. Only append and read are used, never
// update-in-place.
type SheetsStore struct {
	spreadsheetID string
	sheetName     string
	token         string
	baseURL       string
	client        *http.Client
	logger        *slog.Logger

	headerMu   sync.Mutex
	headerSeen bool
}

type sheetsValues struct {
	Values [][]string `json:"values"`
}

func NewSheetsStore(spreadsheetID, sheetName, token string, timeout time.Duration, logger *slog.Logger) *SheetsStore {
	return &SheetsStore{
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		token:         token,
		baseURL:       defaultSheetsBaseURL,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// WithBaseURL points the store at an alternate API endpoint.
func (s *SheetsStore) WithBaseURL(base string) *SheetsStore {
	s.baseURL = base
	return s
}

func (s *SheetsStore) IsAvailable(ctx context.Context) bool {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s?fields=spreadsheetId",
		s.baseURL, url.PathEscape(s.spreadsheetID))

	resp, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		s.logger.Debug("Sheets availability probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (s *SheetsStore) Append(ctx context.Context, rec models.AnalysisRecord) bool {
	if !s.ensureHeader(ctx) {
		return false
	}
	if err := s.appendRows(ctx, [][]string{rec.Row()}); err != nil {
		s.logger.Error("Sheets append failed", "record_id", rec.ID, "error", err)
		return false
	}
	return true
}

// AppendBatch appends record by record so each outcome stays independent; a
// single values:append call would make the whole batch fail or succeed as one.
func (s *SheetsStore) AppendBatch(ctx context.Context, recs []models.AnalysisRecord) models.BatchResult {
	ok := make([]bool, len(recs))
	for i, rec := range recs {
		ok[i] = s.Append(ctx, rec)
	}
	return models.BatchResult{OK: ok}
}

func (s *SheetsStore) ReadAll(ctx context.Context) ([]models.AnalysisRecord, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(s.sheetName))

	resp, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("sheets read failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheets read status %d: %s", resp.StatusCode, string(body))
	}

	var payload sheetsValues
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("sheets read parse failed: %w", err)
	}

	records := []models.AnalysisRecord{}
	for i, row := range payload.Values {
		if i == 0 {
			continue // header
		}
		records = append(records, models.RecordFromRow(row))
	}
	return records, nil
}

// ensureHeader makes sure the sheet starts with the schema header. The check
// runs once per healthy session; a failed check is retried on the next append.
func (s *SheetsStore) ensureHeader(ctx context.Context) bool {
	s.headerMu.Lock()
	defer s.headerMu.Unlock()

	if s.headerSeen {
		return true
	}

	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(s.sheetName+"!A1:Z1"))

	resp, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		s.logger.Warn("Sheets header check failed", "error", err)
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Sheets header check rejected", "status", resp.StatusCode)
		return false
	}

	var payload sheetsValues
	_ = json.Unmarshal(body, &payload)
	if len(payload.Values) == 0 {
		if err := s.appendRows(ctx, [][]string{models.Header()}); err != nil {
			s.logger.Warn("Failed to write header row", "error", err)
			return false
		}
	}

	s.headerSeen = true
	return true
}

func (s *SheetsStore) appendRows(ctx context.Context, rows [][]string) error {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(s.sheetName))

	body, err := json.Marshal(sheetsValues{Values: rows})
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("append status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *SheetsStore) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}
