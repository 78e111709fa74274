package handlers

import (
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health. Always 200: the body is a diagnostic report,
// the same one the degraded-mode error page points at.
func (h *Handler) Health(c *gin.Context) {
	report := gin.H{
		"status":           "ok",
		"database_url_set": h.cfg.DatabaseURL != "",
		"engine_created":   h.db != nil,
		"db_connected":     false,
		"env_vars_found":   databaseEnvVars(),
	}

	if host := databaseHost(h.cfg.DatabaseURL); host != "" {
		report["database_url_host"] = host
	}

	switch {
	case h.db != nil:
		if err := h.db.WithContext(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
			report["db_error"] = err.Error()
		} else {
			report["db_connected"] = true
		}
	case h.cfg.DatabaseURL == "":
		report["db_error"] = "DATABASE_URL is not set"
	default:
		report["db_error"] = "database engine was not created, see startup logs"
	}

	if h.rdb != nil {
		report["cache_connected"] = h.rdb.Ping(c.Request.Context()).Err() == nil
	}

	c.JSON(http.StatusOK, report)
}

// databaseHost pulls the host:port out of the connection URL so the report
// never echoes credentials.
func databaseHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// databaseEnvVars lists the names of database-looking environment variables,
// for diagnosing which of the platform-injected URLs is actually present.
func databaseEnvVars() []string {
	found := []string{}
	for _, env := range os.Environ() {
		name, _, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(name)
		if strings.Contains(upper, "DATABASE") || strings.Contains(upper, "POSTGRES") {
			found = append(found, name)
		}
	}
	sort.Strings(found)
	return found
}
