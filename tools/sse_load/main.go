// Command sse_load opens many concurrent connections to the dashboard's
// analysis event stream and reports connect/stream error counts and event
// throughput. Useful for sizing the dashboard before exposing it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type stats struct {
	connected   int64
	connectErrs int64
	streamErrs  int64
	events      int64
}

func main() {
	var (
		targetURL   string
		connections int
		duration    time.Duration
		rampUp      time.Duration
		lastEventID uint64
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/analyses/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&duration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.Uint64Var(&lastEventID, "last-event-id", 0, "resume the stream from this journal index on every connection")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if rampUp == 0 && connections > 100 {
		// default ramp-up: 1 second per 500 connections
		rampUp = time.Duration(connections/500) * time.Second
		if rampUp < time.Second {
			rampUp = time.Second
		}
		log.Printf("no ramp-up specified for high connection count, using %s", rampUp)
	}

	log.Printf("starting SSE load: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, duration, rampUp)

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
		Timeout: 0, // streaming
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	var st stats
	var wg sync.WaitGroup
	start := time.Now()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	for i := 0; i < connections; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, client, targetURL, lastEventID, &st)
		}()
	}

	go report(ctx, &st, start)

	wg.Wait()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d elapsed=%s events/s=%.2f\n",
		atomic.LoadInt64(&st.connected),
		atomic.LoadInt64(&st.connectErrs),
		atomic.LoadInt64(&st.streamErrs),
		atomic.LoadInt64(&st.events),
		elapsed.Truncate(time.Millisecond),
		float64(atomic.LoadInt64(&st.events))/elapsed.Seconds(),
	)
}

// stream holds one SSE connection open until the context is cancelled,
// counting data lines (heartbeat comments and blank lines are ignored).
func stream(ctx context.Context, client *http.Client, url string, lastEventID uint64, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		atomic.AddInt64(&st.connectErrs, 1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID > 0 {
		req.Header.Set("Last-Event-ID", fmt.Sprintf("%d", lastEventID))
	}

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&st.connectErrs, 1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&st.connectErrs, 1)
		return
	}
	atomic.AddInt64(&st.connected, 1)

	reader := bufio.NewReader(resp.Body)
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&st.streamErrs, 1)
			}
			return
		}
		if strings.HasPrefix(line, "data:") {
			atomic.AddInt64(&st.events, 1)
		}
	}
}

func report(ctx context.Context, st *stats, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("status: connected=%d connect_errs=%d stream_errs=%d events=%d elapsed=%s",
				atomic.LoadInt64(&st.connected),
				atomic.LoadInt64(&st.connectErrs),
				atomic.LoadInt64(&st.streamErrs),
				atomic.LoadInt64(&st.events),
				time.Since(start).Truncate(time.Second),
			)
		}
	}
}
