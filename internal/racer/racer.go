// Package racer implements the domestic-first race described in spec §4.4:
// fan out to every enabled transport of every configured upstream, accept
// the first domestic-classified success, else the first success from the
// foreign pool, cancelling everything else structurally.
package racer

import (
	"context"
	"errors"
	"time"

	"github.com/miekg/dns"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/edgegate/internal/config"
	"github.com/datawire/edgegate/internal/geo"
	"github.com/datawire/edgegate/internal/upstream"
)

// PoolTimeout is the wall-clock SLA per client query (spec §4.4).
const PoolTimeout = 5 * time.Second

// ErrNoAnswer is returned when neither pool produces a success within the
// pool timeout.
var ErrNoAnswer = errors.New("racer: no upstream answered in time")

// Racer holds the configured upstream set and the classifier used to
// decide whether the domestic pool's winner is genuinely domestic.
type Racer struct {
	Upstreams  []config.UpstreamDescriptor
	Classifier *geo.Classifier

	// candidatesFor resolves the lookup closures to race for one
	// upstream. It defaults to upstream.Candidates; tests substitute a
	// fake so the racer's selection and cancellation logic can be
	// exercised without opening real sockets on privileged ports.
	candidatesFor func(config.UpstreamDescriptor) []upstream.Lookup
}

// New partitions nothing up front; partitioning happens per race so the
// same Racer can be reused across queries (spec §3: settings are shared,
// immutable, process-wide).
func New(ups []config.UpstreamDescriptor, classifier *geo.Classifier) *Racer {
	return &Racer{Upstreams: ups, Classifier: classifier, candidatesFor: upstream.Candidates}
}

// task pairs a lookup closure with the upstream it targets, for logging.
type task struct {
	upstream config.UpstreamDescriptor
	lookup   upstream.Lookup
}

func (r *Racer) tasksFor(ups []config.UpstreamDescriptor) []task {
	var out []task
	for _, up := range ups {
		for _, l := range r.candidatesFor(up) {
			out = append(out, task{upstream: up, lookup: l})
		}
	}
	return out
}

// Race runs the spec §4.4 algorithm and returns the winning response along
// with whether it was classified domestic.
func (r *Racer) Race(ctx context.Context, req *dns.Msg) (upstream.Response, bool, error) {
	var domestic, foreign []config.UpstreamDescriptor
	for _, up := range r.Upstreams {
		if up.IsDomestic {
			domestic = append(domestic, up)
		} else {
			foreign = append(foreign, up)
		}
	}

	if len(domestic) > 0 {
		resp, err := firstOK(ctx, r.tasksFor(domestic), req)
		if err == nil && r.Classifier.IsDomestic(resp.Msg) {
			return resp, true, nil
		}
		if err != nil {
			dlog.Debugf(ctx, "domestic pool failed: %v", err)
		} else {
			dlog.Debugf(ctx, "domestic pool answer rejected as not domestic")
		}
	}

	resp, err := firstOK(ctx, r.tasksFor(foreign), req)
	if err != nil {
		return upstream.Response{}, false, ErrNoAnswer
	}
	return resp, false, nil
}

type result struct {
	resp upstream.Response
	err  error
}

// firstOK launches one goroutine per task and returns as soon as one
// succeeds, cancelling the shared context so every other in-flight task
// closes its socket (spec §4.4's first_ok combinator; spec §5's structural
// cancellation).
func firstOK(ctx context.Context, tasks []task, req *dns.Msg) (upstream.Response, error) {
	if len(tasks) == 0 {
		return upstream.Response{}, ErrNoAnswer
	}

	poolCtx, cancel := context.WithTimeout(ctx, PoolTimeout)
	defer cancel()

	results := make(chan result, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			resp, err := t.lookup(poolCtx, req, t.upstream)
			results <- result{resp: resp, err: err}
		}()
	}

	var lastErr error = ErrNoAnswer
	for i := 0; i < len(tasks); i++ {
		select {
		case res := <-results:
			if res.err == nil {
				cancel() // structurally cancel every other task in this pool
				return res.resp, nil
			}
			lastErr = res.err
		case <-poolCtx.Done():
			return upstream.Response{}, ErrNoAnswer
		}
	}
	return upstream.Response{}, lastErr
}
