package main

import (
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// Sidecar liveness endpoint. It polls the teamfeed API's /healthz on the
// authenticated port and re-exposes the result, so load balancers can probe
// a stable port even while the API is restarting or keyed off.
func main() {
	addr := flag.String("addr", ":8081", "listen address for the health sidecar")
	upstream := flag.String("upstream", "http://127.0.0.1:8080/healthz", "teamfeed healthz URL to probe")
	every := flag.Duration("interval", 5*time.Second, "upstream probe interval")
	flag.Parse()

	var healthy atomic.Bool
	probe := func() {
		status, _, err := fasthttp.GetTimeout(nil, *upstream, 3*time.Second)
		healthy.Store(err == nil && status == fasthttp.StatusOK)
	}
	probe()
	go func() {
		t := time.NewTicker(*every)
		defer t.Stop()
		for range t.C {
			probe()
		}
	}()

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			if healthy.Load() {
				ctx.SetStatusCode(fasthttp.StatusOK)
				_, _ = ctx.WriteString(`{"status":"ok"}`)
			} else {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				_, _ = ctx.WriteString(`{"status":"degraded"}`)
			}
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("teamfeed health probe listening on %s, watching %s\n", *addr, *upstream)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "teamfeed-healthprobe",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("health probe exit: %v\n", err)
	}
}
