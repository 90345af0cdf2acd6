package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/progress"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildProgressQueue returns the interaction event queue. Without an SQS URL
// (or with USE_MEMORY_QUEUE) it returns a *progress.MemoryQueue, which the
// caller must drain with an in-process worker.
func BuildProgressQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (progress.Queue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	if cfg.UseMemoryQueue {
		return progress.NewMemoryQueue(memoryQueueBuffer), nil
	}
	if strings.TrimSpace(cfg.ProgressQueueURL) == "" {
		logger.Warn("PROGRESS_QUEUE_URL not set; using in-memory progress queue")
		return progress.NewMemoryQueue(memoryQueueBuffer), nil
	}
	return progress.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ProgressQueueURL), nil
}
