// Package client is a typed Go client for the shairing HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"shairing/internal/building"
	"shairing/internal/lifecycle"
	"shairing/internal/registry"
	"shairing/internal/residents"
)

// Client talks to a shairing server. The zero HTTPClient falls back to
// http.DefaultClient.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

// APIError is a non-2xx response decoded from the error payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Items

type AddItemRequest struct {
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	RiskLevel   string    `json:"risk_level,omitempty"`
}

func (c *Client) AddItem(ctx context.Context, req AddItemRequest) (*registry.Item, error) {
	var item registry.Item
	if err := c.do(ctx, http.MethodPost, "/api/items", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) GetItem(ctx context.Context, id uuid.UUID) (*registry.Item, error) {
	var item registry.Item
	if err := c.do(ctx, http.MethodGet, "/api/items/"+id.String(), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListItems(ctx context.Context) ([]*registry.Item, error) {
	var items []*registry.Item
	if err := c.do(ctx, http.MethodGet, "/api/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type UpdateItemRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Status      *string   `json:"status,omitempty"`
	RiskLevel   *string   `json:"risk_level,omitempty"`
}

func (c *Client) UpdateItem(ctx context.Context, id uuid.UUID, req UpdateItemRequest) (*registry.Item, error) {
	var item registry.Item
	if err := c.do(ctx, http.MethodPatch, "/api/items/"+id.String(), req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) RemoveItem(ctx context.Context, id, userID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+id.String()+"?user_id="+userID.String(), nil, nil)
}

// Residents

type AddResidentRequest struct {
	Name    string `json:"name"`
	Floor   int    `json:"floor"`
	Flat    string `json:"flat,omitempty"`
	Contact string `json:"contact,omitempty"`
}

func (c *Client) AddResident(ctx context.Context, req AddResidentRequest) (*residents.Resident, error) {
	var resident residents.Resident
	if err := c.do(ctx, http.MethodPost, "/api/residents", req, &resident); err != nil {
		return nil, err
	}
	return &resident, nil
}

func (c *Client) ListResidents(ctx context.Context) ([]*residents.Resident, error) {
	var out []*residents.Resident
	if err := c.do(ctx, http.MethodGet, "/api/residents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Borrowings

type RequestBorrowingRequest struct {
	ItemID     uuid.UUID `json:"item_id"`
	BorrowerID uuid.UUID `json:"borrower_id"`
	Start      time.Time `json:"start"`
	Due        time.Time `json:"due"`
}

func (c *Client) RequestBorrowing(ctx context.Context, req RequestBorrowingRequest) (*lifecycle.Borrowing, error) {
	var b lifecycle.Borrowing
	if err := c.do(ctx, http.MethodPost, "/api/borrowings", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) transition(ctx context.Context, borrowingID uuid.UUID, action, field string, actorID uuid.UUID) (*lifecycle.Borrowing, error) {
	var b lifecycle.Borrowing
	path := "/api/borrowings/" + borrowingID.String() + "/" + action
	if err := c.do(ctx, http.MethodPost, path, map[string]string{field: actorID.String()}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) ConfirmBorrowing(ctx context.Context, borrowingID, lenderID uuid.UUID) (*lifecycle.Borrowing, error) {
	return c.transition(ctx, borrowingID, "confirm", "lender_id", lenderID)
}

func (c *Client) RejectBorrowing(ctx context.Context, borrowingID, lenderID uuid.UUID) (*lifecycle.Borrowing, error) {
	return c.transition(ctx, borrowingID, "reject", "lender_id", lenderID)
}

func (c *Client) CancelBorrowing(ctx context.Context, borrowingID, borrowerID uuid.UUID) (*lifecycle.Borrowing, error) {
	return c.transition(ctx, borrowingID, "cancel", "borrower_id", borrowerID)
}

func (c *Client) RequestReturn(ctx context.Context, borrowingID, borrowerID uuid.UUID) (*lifecycle.Borrowing, error) {
	return c.transition(ctx, borrowingID, "request-return", "borrower_id", borrowerID)
}

func (c *Client) ConfirmReturn(ctx context.Context, borrowingID, lenderID uuid.UUID) (*lifecycle.Borrowing, error) {
	return c.transition(ctx, borrowingID, "confirm-return", "lender_id", lenderID)
}

// UserBorrowings is the GET /api/borrowings?user_id= payload.
type UserBorrowings struct {
	AsLender   []*lifecycle.Borrowing `json:"as_lender"`
	AsBorrower []*lifecycle.Borrowing `json:"as_borrower"`
}

func (c *Client) Borrowings(ctx context.Context, userID uuid.UUID) (*UserBorrowings, error) {
	var out UserBorrowings
	if err := c.do(ctx, http.MethodGet, "/api/borrowings?user_id="+userID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PendingBorrowings is the GET /api/borrowings/pending?user_id= payload.
type PendingBorrowings struct {
	AsLender       []*lifecycle.Borrowing `json:"as_lender"`
	ReturnRequests []*lifecycle.Borrowing `json:"return_requests"`
}

func (c *Client) Pending(ctx context.Context, userID uuid.UUID) (*PendingBorrowings, error) {
	var out PendingBorrowings
	if err := c.do(ctx, http.MethodGet, "/api/borrowings/pending?user_id="+userID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BorrowingEvents(ctx context.Context, borrowingID uuid.UUID) ([]lifecycle.TransitionEvent, error) {
	var out []lifecycle.TransitionEvent
	if err := c.do(ctx, http.MethodGet, "/api/borrowings/"+borrowingID.String()+"/events", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildingState fetches the dashboard projection.
func (c *Client) BuildingState(ctx context.Context) (*building.State, error) {
	var state building.State
	if err := c.do(ctx, http.MethodGet, "/api/building-state", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
