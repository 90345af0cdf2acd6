package main

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/moleary1107/etownz-grants-sub007/internal/app/bootstrap"
	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/internal/progress"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		panic(errors.New("DATABASE_URL is required"))
	}

	pool, err := bootstrap.BuildPostgresPool(context.Background(), cfg, logger)
	if err != nil {
		panic(err)
	}

	sessions := forms.NewService(
		forms.NewPostgresRepository(pool),
		forms.NewSQLInteractionLog(bootstrap.OpenSQLDB(pool)),
		logger,
	)
	projector := progress.NewProjector(sessions, nil, logger)

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, projector, logger, evt), nil
	})
}

// handle applies every record and reports the ones that should be retried.
// Malformed bodies are logged and acknowledged so they never block the batch.
func handle(ctx context.Context, handler progress.BodyHandler, logger *logging.Logger, evt events.SQSEvent) events.SQSEventResponse {
	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, record := range evt.Records {
		err := handler.HandleBody(ctx, record.Body)
		switch {
		case err == nil:
		case errors.Is(err, progress.ErrMalformedEvent):
			logger.Error("discarding malformed progress event", "msg_id", record.MessageId, "error", err)
		default:
			logger.Warn("progress event failed, reporting for retry", "msg_id", record.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return resp
}
