// Package worker turns pricing requests read from Kafka into pricing results.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rzzdr/options-engine/internal/kafka"
	"github.com/rzzdr/options-engine/internal/valuation"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

// RequestIDHeader is the header that carries the request id on both topics
const RequestIDHeader = "request-id"

// Publisher is the subset of the Kafka producer the worker needs
type Publisher interface {
	ProduceJSON(ctx context.Context, key []byte, value interface{}, headers []kafka.MessageHeader) error
}

// Worker values each consumed request and publishes the outcome
type Worker struct {
	engine    *valuation.Engine
	publisher Publisher
	recorder  *metrics.Recorder
	topic     string
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new pricing worker
func New(engine *valuation.Engine, publisher Publisher, requestTopic string, recorder *metrics.Recorder) *Worker {
	return &Worker{
		engine:    engine,
		publisher: publisher,
		recorder:  recorder,
		topic:     requestTopic,
		log:       logger.GetLogger("worker.pricer"),
		now:       time.Now,
	}
}

// HandleMessage implements kafka.MessageHandler. Bad requests produce an
// error result rather than a handler error; only publish failures are returned.
func (w *Worker) HandleMessage(ctx context.Context, msg *kafka.Message) error {
	result := w.process(ctx, msg)

	err := w.publisher.ProduceJSON(ctx, []byte(result.RequestID), result, []kafka.MessageHeader{
		{Key: RequestIDHeader, Value: []byte(result.RequestID)},
	})
	w.recorder.RecordKafkaMessage(w.topic, err)
	if err != nil {
		return errors.Wrapf(err, "publish result for %s", result.RequestID)
	}

	if result.Error != "" {
		w.log.Warnw("pricing request rejected", "request_id", result.RequestID, "error", result.Error)
	} else {
		w.log.Debugw("pricing request served", "request_id", result.RequestID)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, msg *kafka.Message) PricingResult {
	var req PricingRequest
	decodeErr := json.Unmarshal(msg.Value, &req)

	if req.RequestID == "" {
		if v, ok := msg.Header(RequestIDHeader); ok {
			req.RequestID = string(v)
		} else if len(msg.Key) > 0 {
			req.RequestID = string(msg.Key)
		} else {
			req.RequestID = uuid.NewString()
		}
	}

	result := PricingResult{RequestID: req.RequestID}
	if decodeErr != nil {
		result.Error = "malformed pricing request: " + decodeErr.Error()
		result.ErrorType = errors.ErrorTypeInvalidArgument.String()
		result.ProcessedAt = w.now().UTC()
		return result
	}

	v, err := w.engine.PriceAll(ctx, req.Contract, req.Options)
	result.ProcessedAt = w.now().UTC()
	if err != nil {
		result.Error = err.Error()
		result.ErrorType = errors.TypeOf(err).String()
		return result
	}
	result.Valuation = &v
	return result
}
