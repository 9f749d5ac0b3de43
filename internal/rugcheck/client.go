// internal/rugcheck/client.go
package rugcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/token"
	"kothwatch/internal/wallet"
)

const defaultBaseURL = "https://api.rugcheck.xyz"

// Client talks to the third-party token auditor. Authentication is a
// one-time challenge-response; a failed login degrades the client to
// serving empty reports rather than failing the run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	wallet     *wallet.Wallet
	logger     *zap.Logger

	bearer string
}

// NewClient creates an auditor client. A nil wallet means the client
// stays unauthenticated and every report comes back empty.
func NewClient(w *wallet.Wallet, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		wallet:  w,
		logger:  logger.Named("rugcheck"),
	}
}

// Authenticate performs the signed login and stores the bearer token.
// Failures are reported but leave the client usable in degraded mode.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.wallet == nil {
		return fmt.Errorf("no wallet configured")
	}

	reqBody, err := buildLoginRequest(c.wallet, time.Now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode login payload: %w", err)
	}

	url := c.baseURL + "/auth/login/solana"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if loginResp.Token == "" {
		return fmt.Errorf("login succeeded but returned no token")
	}

	c.bearer = loginResp.Token
	c.logger.Info("Auditor login successful")
	return nil
}

// Authenticated reports whether a bearer token is held.
func (c *Client) Authenticated() bool {
	return c.bearer != ""
}

type reportResponse struct {
	Risks      []token.RiskFlag    `json:"risks"`
	TopHolders []token.HolderEntry `json:"topHolders"`
	Creator    string              `json:"creator"`
}

// Report fetches the audit report for a mint. Any failure, including
// an unauthenticated client, yields an empty report so the caller
// never blocks on the auditor.
func (c *Client) Report(ctx context.Context, mint string) *token.RiskReport {
	empty := &token.RiskReport{}
	if c.bearer == "" {
		return empty
	}

	url := fmt.Sprintf("%s/v1/tokens/%s/report", c.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("Failed to create report request", zap.String("mint", mint), zap.Error(err))
		return empty
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Report fetch failed", zap.String("mint", mint), zap.Error(err))
		return empty
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Report fetch returned error status",
			zap.String("mint", mint), zap.Int("status", resp.StatusCode))
		return empty
	}

	var report reportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		c.logger.Warn("Failed to decode report", zap.String("mint", mint), zap.Error(err))
		return empty
	}

	return &token.RiskReport{
		Risks:      report.Risks,
		TopHolders: report.TopHolders,
		Creator:    report.Creator,
	}
}
