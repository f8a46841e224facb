// Package gateway wraps the gear backend's HTTP interface. The two
// reservation operations, checkout and checkin, are atomic on the server;
// the server's conflict response is authoritative over any locally computed
// availability.
package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germz92/gearbook/internal/model"
)

// Client talks to one gear backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the backend at baseURL. The token, if non-empty,
// is sent as a bearer credential on every request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient replaces the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// ReservationRequest is the body of both checkout and checkin calls.
type ReservationRequest struct {
	GearID       string    `json:"gearId"`
	EventID      string    `json:"eventId"`
	CheckOutDate model.Day `json:"checkOutDate"`
	CheckInDate  model.Day `json:"checkInDate"`
	Quantity     int       `json:"quantity,omitempty"`
}

// CheckoutResult is the successful checkout response: everything needed to
// append a gear list item referencing the unit.
type CheckoutResult struct {
	ReservationID string    `json:"reservationId"`
	GearID        string    `json:"gearId"`
	Label         string    `json:"label"`
	Category      string    `json:"category,omitempty"`
	Serial        string    `json:"serial,omitempty"`
	Quantity      int       `json:"quantity"`
	CheckOutDate  model.Day `json:"checkOutDate"`
	CheckInDate   model.Day `json:"checkInDate"`
}

// Checkout reserves a unit (or sub-units of a pool) for the event's window.
// A 409 becomes a *ConflictError carrying the server's reason and must not
// be retried automatically; other failures become *TransportError and must
// not mutate local list state.
func (c *Client) Checkout(ctx context.Context, req ReservationRequest) (*CheckoutResult, error) {
	rng := model.DateRange{Start: req.CheckOutDate, End: req.CheckInDate}
	if err := rng.Validate(); err != nil {
		return nil, &PreconditionError{Reason: "checkout requires a valid date window: " + err.Error()}
	}

	resp, err := c.post(ctx, "/api/gear-inventory/checkout", req)
	if err != nil {
		return nil, &TransportError{Op: "checkout", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result CheckoutResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, &TransportError{Op: "checkout", Err: fmt.Errorf("decoding response: %w", err)}
		}
		return &result, nil
	case http.StatusConflict:
		return nil, &ConflictError{GearID: req.GearID, Reason: errorReason(resp.Body)}
	default:
		return nil, &TransportError{Op: "checkout", Status: resp.StatusCode}
	}
}

// Checkin releases a previously held reservation. It is tolerant of the
// reservation already being gone (released by another actor): that case is
// reported as success so the caller's local removal still proceeds.
func (c *Client) Checkin(ctx context.Context, req ReservationRequest) error {
	resp, err := c.post(ctx, "/api/gear-inventory/checkin", req)
	if err != nil {
		return &TransportError{Op: "checkin", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusGone:
		return nil
	default:
		return &TransportError{Op: "checkin", Status: resp.StatusCode}
	}
}

// FetchEvent loads the whole gear document for an event.
func (c *Client) FetchEvent(ctx context.Context, eventID string) (*model.EventDocument, error) {
	resp, err := c.get(ctx, "/api/gear?eventId="+url.QueryEscape(eventID))
	if err != nil {
		return nil, &TransportError{Op: "fetch event", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "fetch event", Status: resp.StatusCode}
	}

	var doc model.EventDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &TransportError{Op: "fetch event", Err: fmt.Errorf("decoding document: %w", err)}
	}
	return &doc, nil
}

// SaveEvent replaces the whole gear document. The document's revision is
// checked server-side; a concurrent writer surfaces as ErrStaleDocument and
// the document must be re-fetched before retrying.
func (c *Client) SaveEvent(ctx context.Context, doc *model.EventDocument) (int64, error) {
	resp, err := c.do(ctx, http.MethodPut, "/api/gear", doc)
	if err != nil {
		return 0, &TransportError{Op: "save event", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Revision int64 `json:"revision"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return 0, &TransportError{Op: "save event", Err: fmt.Errorf("decoding response: %w", err)}
		}
		return body.Revision, nil
	case http.StatusPreconditionFailed:
		return 0, ErrStaleDocument
	default:
		return 0, &TransportError{Op: "save event", Status: resp.StatusCode}
	}
}

// FetchInventory loads the full gear inventory.
func (c *Client) FetchInventory(ctx context.Context) ([]model.GearUnit, error) {
	resp, err := c.get(ctx, "/api/gear-inventory")
	if err != nil {
		return nil, &TransportError{Op: "fetch inventory", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "fetch inventory", Status: resp.StatusCode}
	}

	var units []model.GearUnit
	if err := json.NewDecoder(resp.Body).Decode(&units); err != nil {
		return nil, &TransportError{Op: "fetch inventory", Err: fmt.Errorf("decoding inventory: %w", err)}
	}
	return units, nil
}

// ListPackages returns all saved packages.
func (c *Client) ListPackages(ctx context.Context) ([]model.Package, error) {
	resp, err := c.get(ctx, "/api/gear-packages")
	if err != nil {
		return nil, &TransportError{Op: "list packages", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "list packages", Status: resp.StatusCode}
	}

	var pkgs []model.Package
	if err := json.NewDecoder(resp.Body).Decode(&pkgs); err != nil {
		return nil, &TransportError{Op: "list packages", Err: fmt.Errorf("decoding packages: %w", err)}
	}
	return pkgs, nil
}

// GetPackage fetches one package by ID.
func (c *Client) GetPackage(ctx context.Context, id string) (*model.Package, error) {
	resp, err := c.get(ctx, "/api/gear-packages/"+url.PathEscape(id))
	if err != nil {
		return nil, &TransportError{Op: "get package", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "get package", Status: resp.StatusCode}
	}

	var pkg model.Package
	if err := json.NewDecoder(resp.Body).Decode(&pkg); err != nil {
		return nil, &TransportError{Op: "get package", Err: fmt.Errorf("decoding package: %w", err)}
	}
	return &pkg, nil
}

// SavePackage stores a package and returns it with its assigned ID.
func (c *Client) SavePackage(ctx context.Context, pkg *model.Package) (*model.Package, error) {
	resp, err := c.post(ctx, "/api/gear-packages", pkg)
	if err != nil {
		return nil, &TransportError{Op: "save package", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &TransportError{Op: "save package", Status: resp.StatusCode}
	}

	var saved model.Package
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return nil, &TransportError{Op: "save package", Err: fmt.Errorf("decoding package: %w", err)}
	}
	return &saved, nil
}

// DeletePackage removes a saved package.
func (c *Client) DeletePackage(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/gear-packages/"+url.PathEscape(id), nil)
	if err != nil {
		return &TransportError{Op: "delete package", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &TransportError{Op: "delete package", Status: resp.StatusCode}
	}
	return nil
}

// Watch subscribes to the backend's change feed and calls onChange with the
// event ID of every advisory change notification. Notifications carry no
// state; the consumer re-fetches. Watch blocks until the context is
// cancelled or the stream breaks.
func (c *Client) Watch(ctx context.Context, onChange func(eventID string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/gear-events", nil)
	if err != nil {
		return &TransportError{Op: "watch", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "watch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "watch", Status: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok && data != "" {
			onChange(data)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return &TransportError{Op: "watch", Err: err}
	}
	return ctx.Err()
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.http.Do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// errorReason extracts the human-readable reason from an error body.
func errorReason(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return ""
	}
	return body.Error
}
