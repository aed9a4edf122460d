package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults. Write timeout is generous
// because an ask request waits for dozens of model calls to settle.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
}
