package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/publisher"
)

// initDataMaxAge bounds how old Mini App initData may be
const initDataMaxAge = 24 * time.Hour

// HTTPServer serves the catalog JSON API
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
	now         func() time.Time
}

// NewHTTPServer creates a new HTTP server for the catalog API
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
		now:         time.Now,
	}
}

// RegisterRoutes registers catalog API routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/search", hs.authMiddleware(hs.handleSearch))
	mux.HandleFunc("/api/browse", hs.authMiddleware(hs.handleBrowse))
	mux.HandleFunc("/api/random", hs.authMiddleware(hs.handleRandom))
	mux.HandleFunc("/api/stats", hs.authMiddleware(hs.handleStats))
	mux.HandleFunc("/api/pages", hs.authMiddleware(hs.handlePages))
}

// validateTelegramInitData validates the Telegram Mini App initData
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	// Parse the initData
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	// Extract hash
	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}

	// Remove hash from values
	values.Del("hash")

	// Create data-check-string
	var keys []string
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	// Create secret key
	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(hs.bot.token))
	secret := secretKey.Sum(nil)

	// Calculate hash
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataCheckString.String()))
	calculatedHash := hex.EncodeToString(h.Sum(nil))

	// Verify hash
	if !hmac.Equal([]byte(calculatedHash), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	// Check auth_date (data should be recent, within 24 hours)
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing or invalid auth_date")
	}
	if hs.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	// Extract user ID
	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}

	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}

	// Check if user is allowed
	if !hs.bot.isAllowed(userData.ID) {
		return 0, fmt.Errorf("user not allowed")
	}

	return userData.ID, nil
}

// authMiddleware validates Telegram Mini App authentication and restricts methods to GET.
// In polling mode (webhookMode=false), authentication is skipped for easier local development
func (hs *HTTPServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		// Skip authentication in polling mode (local development)
		if !hs.webhookMode {
			next(w, r)
			return
		}

		// Extract authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		initData := strings.TrimPrefix(authHeader, "tma ")

		// Validate initData
		userID, err := hs.validateTelegramInitData(initData)
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)

		next(w, r)
	}
}

// handleSearch returns search results for ?q=
func (hs *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := hs.bot.catalog.Search(r.URL.Query().Get("q"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleBrowse returns the books of ?letter=
func (hs *HTTPServer) handleBrowse(w http.ResponseWriter, r *http.Request) {
	page, err := hs.bot.catalog.Browse(r.URL.Query().Get("letter"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleRandom returns one random book
func (hs *HTTPServer) handleRandom(w http.ResponseWriter, r *http.Request) {
	book, err := hs.bot.catalog.Random()
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// StatsResponse is the /api/stats body
type StatsResponse struct {
	Total   int                   `json:"total"`
	Buckets []catalog.BucketCount `json:"buckets"`
}

// handleStats returns the per-letter histogram
func (hs *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	hist, err := hs.bot.catalog.Stats()
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Total: hist.Total(), Buckets: hist.Counts()})
}

// PagesResponse is the /api/pages body
type PagesResponse struct {
	State    string                 `json:"state"`
	Complete bool                   `json:"complete"`
	Failed   int                    `json:"failed"`
	Pages    []publisher.BucketLink `json:"pages"`
}

// handlePages returns the published letter pages
func (hs *HTTPServer) handlePages(w http.ResponseWriter, r *http.Request) {
	pages := hs.bot.pages
	if pages == nil {
		writeError(w, http.StatusNotFound, "Catalog pages are disabled")
		return
	}

	links, err := pages.Links()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "Catalog pages are not ready",
			"state": pages.State().String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, PagesResponse{
		State:    pages.State().String(),
		Complete: pages.Complete(),
		Failed:   pages.Failed(),
		Pages:    links,
	})
}

// writeQueryError maps catalog errors to HTTP statuses
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNoMatch):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrEmptyCatalog), errors.Is(err, catalog.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
