/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	maxSubmitBody = 16 << 10
	maxImportBody = 16 << 20

	defaultPageSize = 20
)

// wall bundles the pieces the API handlers share.
type wall struct {
	store *WishStore
	guard *SubmissionGuard
	hub   *BroadcastHub
	cards *CardRenderer
	now   func() time.Time
}

type submitRequest struct {
	Name string `json:"name"`
	Wish string `json:"wish"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type adminPage struct {
	Wishes     []Wish `json:"wishes"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

type importRequest struct {
	Wishes []importItem `json:"wishes"`
}

type importItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Wish      string `json:"wish"`
	Timestamp string `json:"timestamp"`
	IP        string `json:"ip"`
}

type mutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

// report forwards a handler error to the error log without blocking.
func report(errs chan<- error, err error) {
	if err == nil {
		return
	}

	select {
	case errs <- err:
	default:
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func serveWishes(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		report(errs, writeJSON(w, http.StatusOK, publicWishes(ww.store.All())))
	}
}

func serveSubmitWish(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		var req submitRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&req); err != nil {
			submissionsTotal.WithLabelValues("invalid").Inc()
			report(errs, writeError(cfg, w, &ValidationError{Field: "body", Message: "expected a JSON object with name and wish"}))
			return
		}

		name, text, err := validateSubmission(req.Name, req.Wish)
		if err != nil {
			submissionsTotal.WithLabelValues("invalid").Inc()
			report(errs, writeError(cfg, w, err))
			return
		}

		identity := realIP(r)

		if !ww.guard.TryAccept(identity, name, ww.now()) {
			submissionsTotal.WithLabelValues("rate_limited").Inc()
			logf(cfg, "WISH: Rate limited %q from %s", name, identity)
			report(errs, writeError(cfg, w, ErrRateLimited))
			return
		}

		wish := ww.store.Append(Wish{
			Name:   name,
			Text:   text,
			Source: identity,
		})

		if err := ww.hub.Publish(Event{Type: eventNewWish, Wish: wish.Public()}); err != nil {
			logf(cfg, "ERROR: publish wish %s: %v", wish.ID, err)
		}

		submissionsTotal.WithLabelValues("accepted").Inc()

		report(errs, writeJSON(w, http.StatusOK, submitResponse{
			Success: true,
			Message: "wish submitted",
			ID:      wish.ID,
		}))

		logf(cfg, "WISH: Accepted %s from %q (%s) in %s",
			wish.ID,
			wish.Name,
			identity,
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveStats(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		report(errs, writeJSON(w, http.StatusOK, summarize(ww.store.All(), ww.now())))
	}
}

func serveAdminWishes(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", defaultPageSize)

		wishes, total, totalPages := ww.store.Page(page, limit)

		report(errs, writeJSON(w, http.StatusOK, adminPage{
			Wishes:     wishes,
			Total:      total,
			Page:       page,
			TotalPages: totalPages,
		}))
	}
}

func serveDeleteWish(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		id := p.ByName("id")

		removed, err := ww.store.Delete(id)
		switch {
		case err != nil:
			report(errs, writeError(cfg, w, err))
			return
		case !removed:
			report(errs, writeError(cfg, w, ErrNotFound))
			return
		}

		logf(cfg, "WISH: Deleted %s by request from %s", id, realIP(r))

		report(errs, writeJSON(w, http.StatusOK, mutationResponse{
			Success: true,
			Message: "wish deleted",
		}))
	}
}

func serveClearWishes(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		count, err := ww.store.Clear()
		if err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		logf(cfg, "WISH: Cleared %d wishes by request from %s", count, realIP(r))

		report(errs, writeJSON(w, http.StatusOK, mutationResponse{
			Success: true,
			Message: "all wishes cleared",
			Count:   &count,
		}))
	}
}

// parseImport turns the request items into wishes. Structural problems are
// reported here; missing fields are left for the store to reject.
func parseImport(body io.Reader) ([]Wish, error) {
	var req importRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, &ImportError{Index: -1, Reason: "expected a JSON object with a wishes array"}
	}
	if req.Wishes == nil {
		return nil, &ImportError{Index: -1, Reason: "missing wishes array"}
	}

	items := make([]Wish, 0, len(req.Wishes))
	for i, item := range req.Wishes {
		var createdAt time.Time
		if ts := strings.TrimSpace(item.Timestamp); ts != "" {
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, &ImportError{Index: i, Reason: "invalid timestamp " + strconv.Quote(ts)}
			}
			createdAt = t
		}

		items = append(items, Wish{
			ID:        strings.TrimSpace(item.ID),
			Name:      item.Name,
			Text:      item.Wish,
			CreatedAt: createdAt,
			Source:    item.IP,
		})
	}

	return items, nil
}

func serveImportWishes(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		items, err := parseImport(http.MaxBytesReader(w, r.Body, maxImportBody))
		if err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		count, err := ww.store.Import(items)
		if err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		logf(cfg, "WISH: Imported %d wishes by request from %s", count, realIP(r))

		report(errs, writeJSON(w, http.StatusOK, mutationResponse{
			Success: true,
			Message: "wishes imported",
			Count:   &count,
		}))
	}
}

func serveCard(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		wish, ok := ww.store.Get(p.ByName("id"))
		if !ok {
			report(errs, writeError(cfg, w, ErrNotFound))
			return
		}

		var buf bytes.Buffer
		if err := ww.cards.Render(&buf, wish); err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

		written, err := w.Write(buf.Bytes())
		if err != nil {
			report(errs, err)
			return
		}

		logf(cfg, "SERVE: Card for %s (%s) to %s in %s",
			wish.ID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveExportCards builds the archive in a temporary file first, so a
// rendering failure can still be reported with a proper status.
func serveExportCards(cfg *Config, ww *wall, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		tmp, err := os.CreateTemp("", "wishwall-cards-*.zip")
		if err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}
		defer func() {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}()

		wishes := ww.store.All()

		if err := exportCards(tmp, ww.cards, wishes); err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		size, err := tmp.Seek(0, io.SeekCurrent)
		if err == nil {
			_, err = tmp.Seek(0, io.SeekStart)
		}
		if err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="wish-cards-`+ww.now().Format("20060102-150405")+`.zip"`)
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))

		if _, err := io.Copy(w, tmp); err != nil {
			report(errs, err)
			return
		}

		logf(cfg, "SERVE: %d cards (%s) to %s in %s",
			len(wishes),
			humanReadableSize(size),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveNotFound(cfg *Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		securityHeaders(cfg, w)

		_ = writeJSON(w, http.StatusNotFound, errorResponse{Error: "page not found"})
	})
}

func servePanic(cfg *Config) func(http.ResponseWriter, *http.Request, any) {
	return func(w http.ResponseWriter, r *http.Request, i any) {
		logf(cfg, "ERROR: panic serving %s: %v", r.URL.Path, i)

		securityHeaders(cfg, w)

		if strings.HasPrefix(r.URL.Path, cfg.prefix+"/api/") {
			_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage(cfg.prefix, "Server Error", "An error has occurred. Please try again."))
	}
}

// registerWishWall wires every API route onto mux.
func registerWishWall(cfg *Config, ww *wall, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/api/wishes", serveWishes(cfg, ww, errs))
	mux.GET(cfg.prefix+"/api/wishes/:id/card", serveCard(cfg, ww, errs))
	mux.POST(cfg.prefix+"/api/submit-wish", serveSubmitWish(cfg, ww, errs))
	mux.GET(cfg.prefix+"/api/stats", serveStats(cfg, ww, errs))

	mux.GET(cfg.prefix+"/api/admin/wishes", serveAdminWishes(cfg, ww, errs))
	mux.DELETE(cfg.prefix+"/api/admin/wishes/:id", serveDeleteWish(cfg, ww, errs))
	mux.POST(cfg.prefix+"/api/admin/import-wishes", serveImportWishes(cfg, ww, errs))
	mux.DELETE(cfg.prefix+"/api/admin/clear-wishes", serveClearWishes(cfg, ww, errs))
	mux.GET(cfg.prefix+"/api/admin/export-cards", serveExportCards(cfg, ww, errs))

	mux.GET(cfg.prefix+"/api/qrcode", serveQRCode(cfg, errs))
	mux.GET(cfg.prefix+"/api/qrcode.png", serveQRCodeImage(cfg, errs))

	mux.GET(cfg.prefix+"/ws", serveEvents(cfg, ww.hub))
}
