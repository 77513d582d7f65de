/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type qrResponse struct {
	Success bool   `json:"success"`
	QRCode  string `json:"qrcode"`
	URL     string `json:"url"`
}

// submitURL is the address phones should open to submit a wish, derived
// from the request so it works behind TLS terminating proxies.
func submitURL(cfg *Config, r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return scheme + "://" + host + cfg.prefix + "/"
	}

	return scheme + "://" + r.Host + cfg.prefix + "/"
}

func serveQRCode(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		url := submitURL(cfg, r)

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			report(errs, writeError(cfg, w, err))
			return
		}

		report(errs, writeJSON(w, http.StatusOK, qrResponse{
			Success: true,
			QRCode:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
			URL:     url,
		}))
	}
}

func serveQRCodeImage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		png, err := qrcode.Encode(submitURL(cfg, r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			report(errs, err)
			return
		}

		logf(cfg, "SERVE: QR code (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
