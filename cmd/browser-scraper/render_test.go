package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func post(t *testing.T, h http.Handler, body string) (int, renderResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/render", strings.NewReader(body)))
	var resp renderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestRenderHandlerReturnsHTML(t *testing.T) {
	var gotURL string
	h := renderHandler(func(_ context.Context, url string) (string, error) {
		gotURL = url
		return "<html><body><article>ok</article></body></html>", nil
	}, time.Second)

	code, resp := post(t, h, `{"url":"https://example.com/reports"}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.OK)
	require.Contains(t, resp.HTML, "<article>ok</article>")
	require.Equal(t, "https://example.com/reports", gotURL)
}

func TestRenderHandlerErrors(t *testing.T) {
	h := renderHandler(func(context.Context, string) (string, error) {
		return "", errors.New("net::ERR_NAME_NOT_RESOLVED")
	}, time.Second)

	code, resp := post(t, h, `{"url":"https://nowhere.invalid/"}`)
	require.Equal(t, http.StatusOK, code)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "ERR_NAME_NOT_RESOLVED")

	code, resp = post(t, h, `{"url":"ftp://example.com"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, resp.OK)

	code, _ = post(t, h, `not json`)
	require.Equal(t, http.StatusBadRequest, code)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/render", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRenderHandlerEmptyPage(t *testing.T) {
	h := renderHandler(func(context.Context, string) (string, error) { return "  ", nil }, time.Second)
	_, resp := post(t, h, `{"url":"https://example.com/"}`)
	require.False(t, resp.OK)
	require.Equal(t, "empty content", resp.Error)
}
