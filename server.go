package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"autograd-explorer/autograd"
)

const tracerName = "autograd-explorer"

// Server owns HTTP handlers and shared application state.
//
// Model is "math + parameters"; Server is "request handling + state wiring".
type Server struct {
	mu     sync.RWMutex
	model  *Model
	data   *Dataset
	rng    *rand.Rand
	seed   int64
	logger *slog.Logger
	tracer trace.Tracer
}

// NewServer creates an API server with no model. A nil tp uses the global
// TracerProvider.
func NewServer(logger *slog.Logger, seed int64, tp trace.TracerProvider) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Server{
		rng:    rand.New(rand.NewSource(seed)),
		seed:   seed,
		logger: logger,
		tracer: tp.Tracer(tracerName),
	}
}

// RegisterRoutes attaches all endpoints to the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/init", s.handleInit)
	mux.HandleFunc("/api/train", s.handleTrain)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/gradcheck", s.handleGradCheck)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())
}

// snapshot reads current model/data atomically with shared lock.
func (s *Server) snapshot() (*Model, *Dataset) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.data
}

// setModel swaps active model/data atomically with exclusive lock.
func (s *Server) setModel(model *Model, data *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	s.data = data
}

// writeJSON is a helper to consistently send JSON responses. Nothing is
// written when payload cannot be encoded (NaN and Inf have no JSON form).
func writeJSON(w http.ResponseWriter, status int, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode response")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
	return nil
}

// respond writes a 200 payload and counts the request as ok, or fails with
// 422 when the payload cannot be encoded.
func (s *Server) respond(ctx context.Context, w http.ResponseWriter, endpoint string, payload any) {
	if err := writeJSON(w, http.StatusOK, payload); err != nil {
		s.fail(ctx, w, endpoint, http.StatusUnprocessableEntity, err)
		return
	}
	s.succeed(endpoint)
}

// decodeOptionalJSON decodes JSON when body is present.
// Empty bodies are treated as "use defaults" rather than errors.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

// fail records the error on the span, logs it and answers with status.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, endpoint string, status int, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, endpoint)
	requestsTotal.WithLabelValues(endpoint, "error").Inc()
	s.logger.WarnContext(ctx, "request_failed",
		slog.String("endpoint", endpoint),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	http.Error(w, err.Error(), status)
}

func (s *Server) succeed(endpoint string) {
	requestsTotal.WithLabelValues(endpoint, "ok").Inc()
}

// diverged counts a request that completed but left the model non-finite.
func (s *Server) diverged(endpoint string) {
	requestsTotal.WithLabelValues(endpoint, "diverged").Inc()
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "api.init")
	defer span.End()

	var req InitRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.fail(ctx, w, "init", http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	if req.Config.Seed == 0 {
		req.Config.Seed = s.seed
	}
	if req.Dataset == "" {
		req.Dataset = "xor"
	}
	if req.DatasetSize <= 0 {
		req.DatasetSize = 200
	}

	model, err := NewModel(req.Config)
	if err != nil {
		s.fail(ctx, w, "init", http.StatusBadRequest, err)
		return
	}
	data, err := GenerateDataset(req.Dataset, req.DatasetSize, req.Config.Seed)
	if err != nil {
		s.fail(ctx, w, "init", http.StatusBadRequest, err)
		return
	}
	if data.Features() != model.Config.Inputs {
		s.fail(ctx, w, "init", http.StatusBadRequest,
			errors.Errorf("dataset %q has %d features, model expects %d", req.Dataset, data.Features(), model.Config.Inputs))
		return
	}
	s.setModel(model, data)

	span.SetAttributes(
		attribute.Int("params", len(model.Params)),
		attribute.String("dataset", data.Name),
	)
	s.logger.InfoContext(ctx, "model_initialized",
		slog.String("model", model.Describe()),
		slog.String("dataset", data.Name),
		slog.Int("size", data.Len()),
	)
	s.respond(ctx, w, "init", InitResponse{
		Status:  "initialized",
		Params:  len(model.Params),
		Dataset: data.Name,
		Size:    data.Len(),
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "api.train")
	defer span.End()

	model, data := s.snapshot()
	if model == nil {
		s.fail(ctx, w, "train", http.StatusBadRequest, errors.New("model not initialized"))
		return
	}

	req := TrainRequest{}
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.fail(ctx, w, "train", http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	if req.StepsPerCall <= 0 {
		req.StepsPerCall = 10
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 8
	}

	// Lock model during forward/backward/update: parameters are shared by
	// every graph and gradient accumulation is not atomic.
	model.mu.Lock()
	defer model.mu.Unlock()

	s.mu.Lock()
	rng := rand.New(rand.NewSource(s.rng.Int63()))
	s.mu.Unlock()

	stats, err := TrainBatchedSteps(model, data, req.StepsPerCall, req.BatchSize, rng)
	if err != nil {
		s.fail(ctx, w, "train", http.StatusBadRequest, err)
		return
	}
	evalLoss, evalAccuracy, err := Evaluate(model, data)
	if err != nil {
		s.fail(ctx, w, "train", http.StatusInternalServerError, err)
		return
	}

	resp := TrainResponse{
		Step:          stats.Step,
		Loss:          finite(stats.Loss),
		BatchAccuracy: stats.BatchAccuracy,
		GraphNodes:    stats.GraphNodes,
		EvalLoss:      finite(evalLoss),
		EvalAccuracy:  evalAccuracy,
	}
	resp.Diverged = stats.Diverged() || resp.EvalLoss == nil
	span.SetAttributes(
		attribute.Int("step", stats.Step),
		attribute.Float64("loss", stats.Loss),
		attribute.Bool("diverged", resp.Diverged),
	)

	if resp.Diverged {
		span.SetStatus(codes.Error, "training diverged")
		s.logger.WarnContext(ctx, "train_diverged",
			slog.Int("step", stats.Step),
			slog.Float64("loss", stats.Loss),
			slog.Float64("eval_loss", evalLoss),
		)
		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			s.fail(ctx, w, "train", http.StatusUnprocessableEntity, err)
			return
		}
		s.diverged("train")
		return
	}

	s.logger.InfoContext(ctx, "train_steps",
		slog.Int("step", stats.Step),
		slog.Float64("loss", stats.Loss),
		slog.Float64("eval_accuracy", evalAccuracy),
	)
	s.respond(ctx, w, "train", resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "api.predict")
	defer span.End()

	model, _ := s.snapshot()
	if model == nil {
		s.fail(ctx, w, "predict", http.StatusBadRequest, errors.New("model not initialized"))
		return
	}

	var req PredictRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.fail(ctx, w, "predict", http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	model.mu.Lock()
	outputs, err := model.Predict(req.Features)
	model.mu.Unlock()
	if err != nil {
		s.fail(ctx, w, "predict", http.StatusBadRequest, err)
		return
	}
	s.respond(ctx, w, "predict", PredictResponse{Outputs: outputs})
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// handleGraph differentiates sigmoid(x1*w1 + x2*w2 + b) and returns every
// node with its value and gradient.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "api.graph")
	defer span.End()

	var req GraphRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.fail(ctx, w, "graph", http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	x1 := autograd.New(orDefault(req.X1, 2.0)).Named("x1")
	w1 := autograd.New(orDefault(req.W1, 0.5)).Named("w1")
	x2 := autograd.New(orDefault(req.X2, 1.25)).Named("x2")
	w2 := autograd.New(orDefault(req.W2, 0.75)).Named("w2")
	b := autograd.New(orDefault(req.B, -0.5)).Named("b")
	L := neuronExpression([]*autograd.Value{x1, w1, x2, w2, b}).Named("L")

	if err := L.Backward(); err != nil {
		s.fail(ctx, w, "graph", http.StatusInternalServerError, err)
		return
	}
	g, err := autograd.Export(L)
	if err != nil {
		s.fail(ctx, w, "graph", http.StatusInternalServerError, err)
		return
	}
	span.SetAttributes(attribute.Int("nodes", len(g.Nodes)))
	s.respond(ctx, w, "graph", GraphResponse{Graph: g, Edges: g.Edges()})
}

func (s *Server) handleGradCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "api.gradcheck")
	defer span.End()

	var req GradCheckRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.fail(ctx, w, "gradcheck", http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}
	if req.Expression == "" {
		req.Expression = "sigmoid_mul"
	}
	expr, ok := expressions[req.Expression]
	if !ok {
		names := make([]string, 0, len(expressions))
		for name := range expressions {
			names = append(names, name)
		}
		sort.Strings(names)
		s.fail(ctx, w, "gradcheck", http.StatusBadRequest,
			errors.Errorf("unknown expression %q, expected one of %v", req.Expression, names))
		return
	}
	point := req.Point
	if point == nil {
		point = expr.point
	}
	if len(point) != expr.arity {
		s.fail(ctx, w, "gradcheck", http.StatusBadRequest,
			errors.Errorf("expression %q takes %d inputs, got %d", req.Expression, expr.arity, len(point)))
		return
	}
	if req.Tolerance <= 0 {
		req.Tolerance = 1e-5
	}

	report, err := autograd.CheckGradients(expr.build, point, req.Tolerance)
	if err != nil {
		s.fail(ctx, w, "gradcheck", http.StatusInternalServerError, err)
		return
	}
	span.SetAttributes(
		attribute.String("expression", req.Expression),
		attribute.Bool("ok", report.OK),
	)
	s.respond(ctx, w, "gradcheck", report)
}
