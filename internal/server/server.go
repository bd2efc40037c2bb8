package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/presenze/internal/apiclient"
	"github.com/dukerupert/presenze/internal/calendar"
	"github.com/dukerupert/presenze/internal/config"
	"github.com/dukerupert/presenze/internal/handler"
	"github.com/dukerupert/presenze/internal/middleware"
	"github.com/dukerupert/presenze/internal/notify"
	"github.com/dukerupert/presenze/internal/push"
	"github.com/dukerupert/presenze/internal/query"
	"github.com/dukerupert/presenze/internal/store"
	ws "github.com/dukerupert/presenze/internal/websocket"
)

const (
	mutationLimit  = 30
	mutationWindow = time.Minute
)

// Assets are the embedded templates and static files.
type Assets struct {
	Templates fs.FS
	Static    fs.FS
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	cache         *query.Cache
	pushControl   *push.Controller
	notifications *store.NotificationStore
	calendarH     *handler.CalendarHandler
	pushH         *handler.PushHandler
	notificationH *handler.NotificationHandler
	rateLimiter   *middleware.RateLimiter
	static        fs.FS
	logger        *slog.Logger
}

// New wires the agent. httpClient is used for backend calls and loopback
// pushes; nil means http.DefaultClient.
func New(cfg *config.Config, db *sql.DB, assets Assets, httpClient *http.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	cache := query.New(cfg.CacheTTL)
	api := apiclient.NewClient(apiclient.Config{BaseURL: cfg.APIURL, Token: cfg.APIToken}, httpClient)

	calendarSvc := calendar.NewService(api, cache, logger.With("component", "calendar"), func(c calendar.Change) {
		hub.Broadcast(ws.NewMessage(ws.TypeAttendanceChanged, c))
	})

	device := push.NewDevice(store.NewDeviceStore(db), push.DeviceConfig{
		PublicURL:  cfg.PublicURL,
		Permission: push.Permission(cfg.NotificationPermission),
	})
	control := push.NewController(device, api, logger.With("component", "push"))
	control.OnChange(func(s push.State) {
		hub.Broadcast(ws.NewMessage(ws.TypePushState, s))
	})

	var sender *push.Sender
	if cfg.LoopbackEnabled() {
		sender = push.NewSender(push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		}, httpClient)
	}

	notifications := store.NewNotificationStore(db)
	notifySvc := notify.NewService(notifications, hub, logger.With("component", "notify"))

	return &Server{
		db:            db,
		hub:           hub,
		cache:         cache,
		pushControl:   control,
		notifications: notifications,
		calendarH:     handler.NewCalendarHandler(calendarSvc, control, assets.Templates, logger.With("component", "calendar_handler")),
		pushH:         handler.NewPushHandler(control, device, sender, logger.With("component", "push_handler")),
		notificationH: handler.NewNotificationHandler(push.NewReceiver(device), notifySvc, logger.With("component", "notification_handler")),
		rateLimiter:   middleware.NewRateLimiter(mutationLimit, mutationWindow),
		static:        assets.Static,
		logger:        logger,
	}
}

// PushControl returns the push state machine, resolved at startup.
func (s *Server) PushControl() *push.Controller {
	return s.pushControl
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// NotificationStore returns the inbox for pruning.
func (s *Server) NotificationStore() *store.NotificationStore {
	return s.notifications
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))
	mux.HandleFunc("GET /health", s.healthHandler)

	// Pages
	mux.HandleFunc("GET /{$}", s.calendarH.Root)
	mux.HandleFunc("GET /calendar", s.calendarH.Page)
	mux.HandleFunc("POST /calendar/attendance", s.limited(s.calendarH.FormSave))
	mux.HandleFunc("POST /calendar/attendance/delete", s.limited(s.calendarH.FormDelete))

	// Calendar API
	mux.HandleFunc("GET /api/calendar", s.calendarH.Month)
	mux.HandleFunc("PUT /api/attendance", s.limited(s.calendarH.Save))
	mux.HandleFunc("DELETE /api/attendance/{employeeId}/{date}", s.limited(s.calendarH.Delete))

	// Push opt-in
	mux.HandleFunc("GET /api/push/state", s.pushH.State)
	mux.HandleFunc("POST /api/push/subscription", s.limited(s.pushH.Subscribe))
	mux.HandleFunc("DELETE /api/push/subscription", s.limited(s.pushH.Unsubscribe))
	mux.HandleFunc("POST /api/push/test", s.limited(s.pushH.Test))

	// Push delivery and notifications
	mux.HandleFunc("POST /push/receive/{id}", s.notificationH.Receive)
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /notifications/{id}/open", s.notificationH.Open)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	var h http.Handler = mux
	h = middleware.ForwardCredentials(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return h
}

type healthResponse struct {
	Status   string     `json:"status"`
	Database string     `json:"database"`
	Push     push.State `json:"push"`
	Windows  int        `json:"windows"`
	Cached   int        `json:"cached_queries"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Push:     s.pushControl.State(),
		Windows:  s.hub.ClientCount(),
		Cached:   s.cache.Len(),
	}
	status := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.ClientKey)(h).ServeHTTP
}
