package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/gridflow/core"
	"github.com/signalsfoundry/gridflow/internal/logging"
	"github.com/signalsfoundry/gridflow/internal/observability"
)

// maxCaseBytes caps /solve request bodies. Interconnect-scale cases
// run to a few tens of megabytes of JSON.
const maxCaseBytes = 64 << 20

const requestIDHeader = "X-Request-Id"

func newMux(cfg Config, log logging.Logger, collector *observability.SolverCollector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/solve", &solveHandler{
		defaults: cfg.Defaults,
		log:      log,
		metrics:  collector,
		tracer:   otel.Tracer("gridflow/server"),
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
	return withRequestLogging(log, mux)
}

// withRequestLogging ensures a request_id is present on the context,
// sourcing it from an inbound X-Request-Id header if provided, attaches
// a per-request logger annotated with request_id and route, and echoes
// the id on the response.
func withRequestLogging(base logging.Logger, next http.Handler) http.Handler {
	if base == nil {
		base = logging.Noop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if incoming := r.Header.Get(requestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}

		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// solveHandler answers POST /solve. The body is a JSON case; query
// parameters override the server's default solve options, so one
// deployment can serve AC and DC studies side by side.
type solveHandler struct {
	defaults core.Options
	log      logging.Logger
	metrics  *observability.SolverCollector
	tracer   trace.Tracer
}

func (h *solveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, errors.New("only POST is supported"))
		return
	}

	ctx := r.Context()
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = h.log
	}

	opts := h.defaults
	if err := optionsFromQuery(r.URL.Query(), &opts); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	network, err := core.LoadCase(http.MaxBytesReader(w, r.Body, maxCaseBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runner, err := core.NewRunner(opts,
		core.WithLogger(log),
		core.WithMetrics(h.metrics),
		core.WithTracer(h.tracer),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rep, err := runner.Run(ctx, network)
	if err != nil {
		// The case decoded and validated but the run hit a
		// structural fault, a singular system or a slack
		// conversion it cannot perform.
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, core.NewSolution(network, rep))
}

// optionsFromQuery applies ?algorithm=, ?dc=, ?init=, ?enforce_qlims=,
// ?tolerance=, ?max_iterations=, ?max_enforcement_passes= and
// ?recycle= onto opts. String-valued options are validated later by
// NewRunner; numeric ones fail here.
func optionsFromQuery(q url.Values, opts *core.Options) error {
	if v := q.Get("algorithm"); v != "" {
		opts.Algorithm = core.Algorithm(v)
	}
	if v := q.Get("init"); v != "" {
		opts.Init = core.InitMode(v)
	}
	if v := q.Get("enforce_qlims"); v != "" {
		opts.EnforceQLimits = core.QLimitMode(v)
	}
	if v := q.Get("dc"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("query dc: %w", err)
		}
		opts.DC = b
	}
	if v := q.Get("recycle"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("query recycle: %w", err)
		}
		opts.RecycleAdmittance = b
	}
	if v := q.Get("tolerance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("query tolerance: %w", err)
		}
		opts.Tolerance = f
	}
	if v := q.Get("max_iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("query max_iterations: %w", err)
		}
		opts.MaxIterations = n
	}
	if v := q.Get("max_enforcement_passes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("query max_enforcement_passes: %w", err)
		}
		opts.MaxEnforcementPasses = n
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
