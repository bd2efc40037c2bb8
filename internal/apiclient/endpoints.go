package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/presenze/internal/model"
)

// ListUsers handles GET /api/users.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.Do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListEmployees returns the users with the employee role.
func (c *Client) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return model.Employees(users), nil
}

// ListAttendance handles GET /api/attendance for an inclusive ISO date range.
func (c *Client) ListAttendance(ctx context.Context, startDate, endDate string) ([]model.AttendanceRecord, error) {
	q := url.Values{}
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)

	var records []model.AttendanceRecord
	if err := c.Do(ctx, http.MethodGet, "/api/attendance?"+q.Encode(), nil, &records); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// UpsertAttendance handles PUT /api/attendance.
func (c *Client) UpsertAttendance(ctx context.Context, req model.UpsertAttendance) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	if err := c.Do(ctx, http.MethodPut, "/api/attendance", req, &rec); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &rec, nil
}

// DeleteAttendance handles DELETE /api/attendance/{employeeId}/{date}.
func (c *Client) DeleteAttendance(ctx context.Context, employeeID, date string) error {
	path := "/api/attendance/" + url.PathEscape(employeeID) + "/" + url.PathEscape(date)
	if err := c.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// ListDailyReports handles GET /api/daily-reports. The backend returns every
// report visible to the caller; range filtering happens client side.
func (c *Client) ListDailyReports(ctx context.Context) ([]model.DailyReport, error) {
	var reports []model.DailyReport
	if err := c.Do(ctx, http.MethodGet, "/api/daily-reports", nil, &reports); err != nil {
		return nil, fmt.Errorf("list daily reports: %w", err)
	}
	return reports, nil
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// VAPIDPublicKey handles GET /api/push-subscription/vapid-public-key.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var resp vapidKeyResponse
	if err := c.Do(ctx, http.MethodGet, "/api/push-subscription/vapid-public-key", nil, &resp); err != nil {
		return "", fmt.Errorf("get vapid public key: %w", err)
	}
	if resp.PublicKey == "" {
		return "", fmt.Errorf("get vapid public key: empty key")
	}
	return resp.PublicKey, nil
}

type registerSubscriptionRequest struct {
	Subscription *webpush.Subscription `json:"subscription"`
}

// RegisterPushSubscription handles POST /api/push-subscription.
func (c *Client) RegisterPushSubscription(ctx context.Context, sub *webpush.Subscription) error {
	if err := c.Do(ctx, http.MethodPost, "/api/push-subscription", registerSubscriptionRequest{Subscription: sub}, nil); err != nil {
		return fmt.Errorf("register push subscription: %w", err)
	}
	return nil
}

// DeletePushSubscription handles DELETE /api/push-subscription.
func (c *Client) DeletePushSubscription(ctx context.Context) error {
	if err := c.Do(ctx, http.MethodDelete, "/api/push-subscription", nil, nil); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
