package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// 单页 HTML 上限，超出部分丢弃
const maxHTMLBytes = 4 << 20

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	OK    bool   `json:"ok"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

type renderFunc func(ctx context.Context, url string) (string, error)

// renderHandler 渲染失败也返回 200，由 ok/error 字段表达结果；只有请求本身不合法才返回 4xx
func renderHandler(render renderFunc, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, renderResponse{OK: false, Error: "invalid json"})
			return
		}
		u, err := url.Parse(strings.TrimSpace(req.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			writeJSON(w, http.StatusBadRequest, renderResponse{OK: false, Error: "url is required"})
			return
		}

		// 每个请求用独立的超时上下文
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		start := time.Now()
		html, err := render(ctx, u.String())
		if err != nil {
			slog.Warn("render failed", "url", u.String(), "error", err)
			writeJSON(w, http.StatusOK, renderResponse{OK: false, Error: err.Error()})
			return
		}
		if strings.TrimSpace(html) == "" {
			writeJSON(w, http.StatusOK, renderResponse{OK: false, Error: "empty content"})
			return
		}
		if len(html) > maxHTMLBytes {
			html = strings.ToValidUTF8(html[:maxHTMLBytes], "")
		}

		slog.Info("rendered", "url", u.String(), "bytes", len(html), "elapsed", time.Since(start))
		writeJSON(w, http.StatusOK, renderResponse{OK: true, HTML: html})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
