package httpserver

import (
	"net/http"
	"time"

	"github.com/yndnr/tokbroker/internal/infra/buildinfo"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Healthy reports liveness; nil is always healthy.
	Healthy func() bool

	// Ready reports whether the agent holds a valid token; nil is always
	// ready.
	Ready func() bool

	// Status returns a JSON-encodable snapshot served at /status.
	Status func() any

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Logger for request logging.
	Logger logger.Logger

	// AllowList restricts clients to these IPs or CIDR blocks.
	AllowList []string

	// RateLimit caps requests per second; zero disables it.
	RateLimit float64
}

// NewRouter builds the admin handler with its middleware chain:
// Recover, RequestID, AccessLog, NetworkACL, RateLimit.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	acl, err := NetworkACL(cfg.AllowList, log)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", probe(cfg.Healthy, "healthy", "unhealthy"))
	mux.HandleFunc("GET /readyz", probe(cfg.Ready, "ready", "not ready"))
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"version": buildinfo.Get().Version,
			"uptime":  time.Since(started).Round(time.Second).String(),
		}
		if cfg.Status != nil {
			body["keeper"] = cfg.Status()
		}
		writeJSON(w, http.StatusOK, body)
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return Chain(mux,
		Recover(log),
		RequestID(),
		AccessLog(log),
		acl,
		RateLimit(cfg.RateLimit),
	), nil
}

func probe(check func() bool, ok, failed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil && !check() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": ok,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
