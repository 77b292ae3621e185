package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/AnTengye/contractchat/config"
	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
)

// maxErrorBody caps how much of a failed response is kept in a StatusError.
const maxErrorBody = 2048

// BackendClient talks to the contract analysis REST API. Every request
// carries the stored bearer token when there is one. A 401 clears the token
// before the error is returned, so concurrent flows fail closed on their
// next call.
type BackendClient struct {
	baseURL        string
	httpClient     *http.Client
	tokens         *TokenStore
	onUnauthorized func()
}

func NewBackendClient(cfg *config.BackendConfig, tokens *TokenStore) *BackendClient {
	return &BackendClient{
		baseURL: cfg.APIBaseURL(),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		tokens: tokens,
	}
}

// OnUnauthorized registers fn to run after a 401 has cleared the token.
func (c *BackendClient) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// URL returns the absolute URL for a backend path.
func (c *BackendClient) URL(path string) string {
	return c.baseURL + path
}

func (c *BackendClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *BackendClient) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, path, out)
}

func (c *BackendClient) do(req *http.Request, path string, out any) error {
	if token := c.tokens.Get(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID := logger.RequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if err := c.tokens.Clear(); err != nil {
			logger.Warn(req.Context(), "failed to clear token after 401", "error", err)
		}
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%s %s: %w", req.Method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusPaymentRequired, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", req.Method, path, ErrSubscriptionRequired)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Me fetches the current user profile.
func (c *BackendClient) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.getJSON(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshPremiumResponse may carry a rotated token.
type RefreshPremiumResponse struct {
	Token              string `json:"token,omitempty"`
	HasPremium         bool   `json:"has_premium"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

func (c *BackendClient) RefreshPremiumStatus(ctx context.Context) (*RefreshPremiumResponse, error) {
	var resp RefreshPremiumResponse
	if err := c.postJSON(ctx, "/auth/refresh-premium-status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceStatus fetches the backend's status report. It is free to call, so
// with a stored token it doubles as a check that the token is accepted.
func (c *BackendClient) ServiceStatus(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.getJSON(ctx, "/directories/service-status", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type jobsResponse struct {
	Jobs []model.Job `json:"jobs"`
}

func (c *BackendClient) Jobs(ctx context.Context) ([]model.Job, error) {
	var resp jobsResponse
	if err := c.getJSON(ctx, "/directories/jobs", &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

type contractsResponse struct {
	Contracts []model.Document `json:"contracts"`
}

func (c *BackendClient) JobContracts(ctx context.Context, jobNumber string) ([]model.Document, error) {
	var resp contractsResponse
	path := "/directories/jobs/" + url.PathEscape(jobNumber) + "/contracts"
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// UploadPart is one file of a multipart upload. Open is called while the
// request body is being streamed.
type UploadPart struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type UploadedFile struct {
	Filename string `json:"filename"`
	FileKey  string `json:"file_key"`
}

type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type UploadResponse struct {
	DirectoryName string         `json:"directory_name"`
	JobNumber     string         `json:"job_number"`
	UploadedFiles []UploadedFile `json:"uploaded_files"`
	FailedFiles   []FailedFile   `json:"failed_files"`
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload streams parts as files[] plus directory_name. The returned map holds,
// by index into parts, files that could not be read locally and were
// therefore not sent.
func (c *BackendClient) Upload(ctx context.Context, directoryName string, parts []UploadPart) (*UploadResponse, map[int]error, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	skipped := make(map[int]error)
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := writeUploadBody(mw, directoryName, parts, skipped)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL("/directories/upload"), pr)
	if err != nil {
		pr.Close()
		<-done
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp UploadResponse
	err = c.do(req, "/directories/upload", &resp)
	pr.Close()
	<-done
	if err != nil {
		return nil, nil, err
	}
	return &resp, skipped, nil
}

func writeUploadBody(mw *multipart.Writer, directoryName string, parts []UploadPart, skipped map[int]error) error {
	if err := mw.WriteField("directory_name", directoryName); err != nil {
		return err
	}
	for i, part := range parts {
		rc, err := part.Open()
		if err != nil {
			skipped[i] = err
			continue
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[]"; filename="%s"`, quoteEscaper.Replace(part.Filename)))
		contentType := part.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		w, err := mw.CreatePart(h)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to stream %s: %w", part.Filename, err)
		}
	}
	return nil
}

// AnalyzeFile describes a selected file in an analysis request.
type AnalyzeFile struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
}

type AnalyzeRequest struct {
	DirectoryPath string        `json:"directory_path"`
	Files         []AnalyzeFile `json:"files,omitempty"`
}

// Analyze triggers server-side analysis. The result shape is owned by the
// backend and passed through untouched.
func (c *BackendClient) Analyze(ctx context.Context, req AnalyzeRequest) (map[string]any, error) {
	var resp map[string]any
	if err := c.postJSON(ctx, "/directories/analyze", req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type documentRequest struct {
	JobNumber  string `json:"job_number"`
	DocumentID string `json:"document_id"`
}

type LoadDocumentResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func (c *BackendClient) LoadDocument(ctx context.Context, jobNumber, documentID string) (*LoadDocumentResponse, error) {
	var resp LoadDocumentResponse
	if err := c.postJSON(ctx, "/documents/load", documentRequest{jobNumber, documentID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type suggestionsResponse struct {
	Questions []string `json:"questions"`
}

func (c *BackendClient) SuggestQuestions(ctx context.Context, jobNumber, documentID string) ([]string, error) {
	var resp suggestionsResponse
	if err := c.postJSON(ctx, "/documents/suggest-questions", documentRequest{jobNumber, documentID}, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

type historyResponse struct {
	Messages []model.ChatMessage `json:"messages"`
}

func (c *BackendClient) ChatHistory(ctx context.Context, jobNumber, documentID string) ([]model.ChatMessage, error) {
	var resp historyResponse
	path := "/documents/chat-history/" + url.PathEscape(jobNumber) + "/" + url.PathEscape(documentID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// HistoryEntry is the wire form of a prior message sent with a chat request.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	JobNumber   string         `json:"job_number"`
	DocumentID  string         `json:"document_id"`
	Message     string         `json:"message"`
	ChatHistory []HistoryEntry `json:"chat_history"`
}

type ChatResponse struct {
	Response   string   `json:"response"`
	Confidence *float64 `json:"confidence,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

func (c *BackendClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.postJSON(ctx, "/documents/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func (c *BackendClient) CreateCheckoutSession(ctx context.Context) (string, error) {
	var resp checkoutResponse
	if err := c.postJSON(ctx, "/payments/create-checkout-session", nil, &resp); err != nil {
		return "", err
	}
	if resp.CheckoutURL == "" {
		return "", fmt.Errorf("checkout session response has no checkout_url")
	}
	return resp.CheckoutURL, nil
}

type verifySessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type VerifySessionResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status,omitempty"`
	Token    string `json:"token,omitempty"`
}

func (c *BackendClient) VerifySession(ctx context.Context, sessionID string) (*VerifySessionResponse, error) {
	var resp VerifySessionResponse
	if err := c.postJSON(ctx, "/payments/verify-session", verifySessionRequest{sessionID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
