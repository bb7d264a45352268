// Package client talks to a ledger server over HTTP, signing requests with
// the wallet it acts for.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/auth"
	"lottery-ledger/internal/models"
	"lottery-ledger/internal/services"
)

// ErrWrongSigner is returned when asked to buy for a wallet the client
// cannot sign for.
var ErrWrongSigner = errors.New("client: buyer is not the signing wallet")

// APIError is a failed request that did not carry a protocol error code.
type APIError struct {
	Status  int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s %s", e.Status, e.Name, e.Message)
}

// Client calls the ledger HTTP API.
type Client struct {
	BaseURL    string
	Signer     *auth.Signer
	HTTPClient *http.Client
	now        func() time.Time
}

// New returns a client for baseURL. signer may be nil for read-only and
// finalize calls.
func New(baseURL string, signer *auth.Signer) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Signer:  signer,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// Activate activates the signing wallet.
func (c *Client) Activate(ctx context.Context) (*models.UserProfile, error) {
	var out models.UserProfile
	if err := c.do(ctx, http.MethodPost, "/users/activate", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BuyTickets buys count tickets in roundNumber for buyer, which must be the
// signing wallet.
func (c *Client) BuyTickets(ctx context.Context, buyer address.Address, roundNumber uint64, count uint8) (*models.Receipt, error) {
	if c.Signer == nil || c.Signer.Address() != buyer {
		return nil, ErrWrongSigner
	}
	var out models.Receipt
	path := fmt.Sprintf("/rounds/%d/tickets", roundNumber)
	if err := c.do(ctx, http.MethodPost, path, map[string]uint8{"count": count}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finalize asks the server to close roundNumber.
func (c *Client) Finalize(ctx context.Context, roundNumber uint64) (*models.Round, error) {
	var out models.Round
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rounds/%d/finalize", roundNumber), nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim claims the prize of roundNumber with the given position.
func (c *Client) Claim(ctx context.Context, roundNumber uint64, position address.Address) (*models.Payout, error) {
	var out models.Payout
	body := map[string]address.Address{"position": position}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rounds/%d/claim", roundNumber), body, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentRound returns the round number buyers should target and the round
// itself when it exists.
func (c *Client) CurrentRound(ctx context.Context) (uint64, *models.Round, error) {
	var out struct {
		RoundNumber uint64        `json:"roundNumber"`
		Round       *models.Round `json:"round"`
	}
	if err := c.do(ctx, http.MethodGet, "/rounds/active", nil, false, &out); err != nil {
		return 0, nil, err
	}
	return out.RoundNumber, out.Round, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, signed bool, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		if c.Signer == nil {
			return ErrWrongSigner
		}
		if err := c.Signer.SignRequest(req, body, c.now()); err != nil {
			return err
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return nil
}

// decodeError maps a coded error body back to the protocol error so callers
// can use errors.Is on either side of the wire.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Code    int    `json:"code"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return &APIError{Status: resp.StatusCode, Message: string(raw)}
	}
	if le, ok := services.ErrorByCode(e.Code); ok {
		return fmt.Errorf("%s %s: %w", resp.Request.Method, resp.Request.URL.Path, le)
	}
	return &APIError{Status: resp.StatusCode, Name: e.Error, Message: e.Message}
}
