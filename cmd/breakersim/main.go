// breakersim drives a simulated flaky dependency through a circuit breaker
// and prints every state transition.
//
// Usage:
//
//	go run ./cmd/breakersim -requests 20 -threshold 3 -cooldown 10s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/angeloszaimis/eventguard/internal/circuitbreaker"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

const codeRateLimited = "rate_limit_exceeded"

// mode is how the simulated dependency answers during a phase.
type mode int

const (
	healthy mode = iota
	down
	rateLimited
)

type phase struct {
	title string
	mode  mode
}

var phases = []phase{
	{"PHASE 1: Normal Operation", healthy},
	{"PHASE 2: Dependency Outage", down},
	{"PHASE 3: Recovery", healthy},
	{"PHASE 4: Provider Rate Limiting", rateLimited},
}

type dependency struct {
	mode  mode
	calls int
}

func (d *dependency) call(_ context.Context, n int) (string, error) {
	d.calls++
	switch d.mode {
	case down:
		return "", errors.New("connection refused")
	case rateLimited:
		return "", circuitbreaker.NewCodedError(codeRateLimited, errors.New("429 too many requests"))
	default:
		return fmt.Sprintf("response #%d", n), nil
	}
}

type options struct {
	requests  int
	threshold int
	successes int
	cooldown  time.Duration
	interval  time.Duration
}

type result struct {
	ok, failed, rejected, ignored int
	transitions                   []string
	final                         circuitbreaker.State
}

func main() {
	var opts options
	flag.IntVar(&opts.requests, "requests", 20, "Requests per phase")
	flag.IntVar(&opts.threshold, "threshold", 3, "Failures that open the breaker")
	flag.IntVar(&opts.successes, "successes", 1, "Probe successes that close the breaker")
	flag.DurationVar(&opts.cooldown, "cooldown", 10*time.Second, "OPEN to HALF_OPEN cooldown")
	flag.DurationVar(&opts.interval, "interval", time.Second, "Simulated time between requests")
	flag.Parse()

	if _, err := simulate(os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, colorRed+"breakersim: %v\n"+colorReset, err)
		os.Exit(1)
	}
}

// simulate runs every phase on a mock clock so cooldowns elapse instantly.
func simulate(out io.Writer, opts options) (result, error) {
	var res result
	mock := clock.NewMock()
	dep := &dependency{}

	cfg := circuitbreaker.Config{
		FailureThreshold:  opts.threshold,
		SuccessThreshold:  opts.successes,
		Timeout:           opts.cooldown,
		RollingWindow:     time.Duration(opts.threshold+1) * opts.interval * 10,
		IgnoredErrorCodes: []string{codeRateLimited},
	}

	cb, err := circuitbreaker.Wrap("simulated.dependency", dep.call, cfg,
		circuitbreaker.WithClock(mock),
		circuitbreaker.WithListener(func(n circuitbreaker.Notification) {
			switch n.Event {
			case circuitbreaker.EventOpen, circuitbreaker.EventHalfOpen, circuitbreaker.EventClose:
				line := fmt.Sprintf("%s -> %s", n.Event, n.State)
				res.transitions = append(res.transitions, line)
				fmt.Fprintf(out, colorCyan+"  ⚡ %s at +%s\n"+colorReset, line, mock.Now().Sub(time.Unix(0, 0)))
			}
		}))
	if err != nil {
		return res, err
	}

	fmt.Fprintln(out, colorCyan+"╔════════════════════════════════════════════════════════════════╗"+colorReset)
	fmt.Fprintln(out, colorCyan+"║         CIRCUIT BREAKER SIMULATION                             ║"+colorReset)
	fmt.Fprintln(out, colorCyan+"╚════════════════════════════════════════════════════════════════╝"+colorReset)
	fmt.Fprintln(out)

	n := 0
	for _, p := range phases {
		fmt.Fprintln(out, colorBlue+"━━━ "+p.title+" ━━━"+colorReset)
		dep.mode = p.mode

		for i := 0; i < opts.requests; i++ {
			n++
			resp, err := cb.Fire(context.Background(), n)
			switch {
			case err == nil:
				res.ok++
				fmt.Fprintf(out, colorGreen+"  Request %d: %s [%s]\n"+colorReset, n, resp, cb.State())
			case errors.Is(err, circuitbreaker.ErrBreakerOpen):
				res.rejected++
				fmt.Fprintf(out, colorYellow+"  Request %d: short-circuited [%s]\n"+colorReset, n, cb.State())
			case circuitbreaker.ErrorCode(err) == codeRateLimited:
				res.ignored++
				fmt.Fprintf(out, colorYellow+"  Request %d: ignored (%v) [%s]\n"+colorReset, n, err, cb.State())
			default:
				res.failed++
				fmt.Fprintf(out, colorRed+"  Request %d: ERROR - %v [%s]\n"+colorReset, n, err, cb.State())
			}
			mock.Add(opts.interval)
		}

		// Let the breaker cool down before the dependency recovers.
		if p.mode == down {
			mock.Add(opts.cooldown)
		}
		fmt.Fprintln(out)
	}

	res.final = cb.State()

	fmt.Fprintln(out, colorCyan+"╔════════════════════════════════════════════════════════════════╗"+colorReset)
	fmt.Fprintln(out, colorCyan+"║                    SIMULATION COMPLETE                         ║"+colorReset)
	fmt.Fprintln(out, colorCyan+"╚════════════════════════════════════════════════════════════════╝"+colorReset)
	fmt.Fprintf(out, "  Succeeded: %d  Failed: %d  Short-circuited: %d  Ignored: %d\n",
		res.ok, res.failed, res.rejected, res.ignored)
	fmt.Fprintf(out, "  Dependency calls: %d  Final state: %s\n", dep.calls, res.final)

	return res, nil
}
