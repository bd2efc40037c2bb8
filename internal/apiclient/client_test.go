package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/presenze/internal/auth"
	"github.com/dukerupert/presenze/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "agent-token"}, srv.Client())
}

func TestListEmployeesFiltersRole(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "Bearer agent-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]model.User{
			{ID: "a1", FullName: "Admin", Role: "admin"},
			{ID: "e1", FullName: "Mario Rossi", Role: "employee"},
			{ID: "e2", FullName: "Luigi Verdi", Role: "employee"},
		})
	})

	employees, err := c.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "e1", employees[0].ID)
	assert.Equal(t, "e2", employees[1].ID)
}

func TestContextTokenWins(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.Write([]byte("[]"))
	})

	ctx := auth.WithCredentials(context.Background(), auth.Credentials{Token: "user-token"})
	_, err := c.ListUsers(ctx)
	require.NoError(t, err)
}

func TestListAttendanceQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/attendance", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2024-06-30", r.URL.Query().Get("endDate"))
		w.Write([]byte(`[{"id":"r1","employeeId":"e1","date":"2024-06-05","status":"Ferie","notes":"mare","createdAt":"2024-06-01T09:00:00Z","updatedAt":"2024-06-01T09:00:00Z"}]`))
	})

	records, err := c.ListAttendance(context.Background(), "2024-06-01", "2024-06-30")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ferie", records[0].Status)
	assert.Equal(t, "mare", records[0].Notes)
	assert.Equal(t, 2024, records[0].CreatedAt.Year())
}

func TestUpsertAttendanceBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "e1", body["employeeId"])
		assert.Equal(t, "2024-06-05", body["date"])
		assert.Equal(t, "Permesso", body["status"])
		_, hasNotes := body["notes"]
		assert.False(t, hasNotes, "empty notes should be omitted")
		json.NewEncoder(w).Encode(model.AttendanceRecord{ID: "r9", EmployeeID: "e1", Date: "2024-06-05", Status: "Permesso"})
	})

	rec, err := c.UpsertAttendance(context.Background(), model.UpsertAttendance{EmployeeID: "e1", Date: "2024-06-05", Status: "Permesso"})
	require.NoError(t, err)
	assert.Equal(t, "r9", rec.ID)
}

func TestDeleteAttendancePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/api/attendance/e1/2024-06-05", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteAttendance(context.Background(), "e1", "2024-06-05"))
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	})

	err := c.DeleteAttendance(context.Background(), "e1", "2024-06-05")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Message)
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestPushEndpoints(t *testing.T) {
	var registered registerSubscriptionRequest
	deleted := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /api/push-subscription/vapid-public-key":
			w.Write([]byte(`{"publicKey":"BPubKey"}`))
		case "POST /api/push-subscription":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
			w.WriteHeader(http.StatusCreated)
		case "DELETE /api/push-subscription":
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	key, err := c.VAPIDPublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BPubKey", key)

	sub := &webpush.Subscription{Endpoint: "https://agent.example/push/receive/1", Keys: webpush.Keys{P256dh: "p", Auth: "a"}}
	require.NoError(t, c.RegisterPushSubscription(ctx, sub))
	require.NotNil(t, registered.Subscription)
	assert.Equal(t, sub.Endpoint, registered.Subscription.Endpoint)
	assert.Equal(t, "p", registered.Subscription.Keys.P256dh)

	require.NoError(t, c.DeletePushSubscription(ctx))
	assert.True(t, deleted)
}

func TestVAPIDPublicKeyEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	_, err := c.VAPIDPublicKey(context.Background())
	assert.Error(t, err)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, nil)
	_, err := c.ListDailyReports(context.Background())
	assert.Error(t, err)
}

func TestDefaultClientHasNoTimeout(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://backend.invalid"}, nil)
	assert.Same(t, http.DefaultClient, c.httpClient)
	assert.Zero(t, c.httpClient.Timeout)
}

func TestRequestBoundedByContextOnly(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte("[]"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.ListUsers(ctx)
		errc <- err
	}()
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	close(release)
}
