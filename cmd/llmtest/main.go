package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/moleary1107/etownz-grants-sub007/cmd/mainconfig"
	"github.com/moleary1107/etownz-grants-sub007/internal/analysis"
	"github.com/moleary1107/etownz-grants-sub007/internal/app/bootstrap"
	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// sampleForm is a half-filled application used to probe the configured provider.
var sampleForm = disclosure.FormData{
	"organization_name": "Riverside Community Arts",
	"project_title":     "Youth Mural Programme",
	"requested_amount":  75000,
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Printf("failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	client, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		fmt.Printf("failed to build LLM client: %v\n", err)
		os.Exit(1)
	}
	if client == nil {
		fmt.Println("no provider configured: set BEDROCK_MODEL_ID and/or GEMINI_API_KEY")
		os.Exit(1)
	}

	visibility := disclosure.ComputeVisibility(sampleForm, nil, analysis.DefaultFields, "")
	gc := recommendations.BuildContext("llmtest", sampleForm, visibility)

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Recommendation generator probe")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("completed: %s\n", strings.Join(gc.CompletedFields, ", "))
	fmt.Printf("pending:   %s\n", strings.Join(gc.PendingFields, ", "))

	start := time.Now()
	result, err := bootstrap.BuildGenerator(client, cfg, logger).Generate(ctx, gc)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		fmt.Printf("\ngeneration failed after %v: %v\n", elapsed, err)
		os.Exit(1)
	}

	fmt.Printf("\n%d recommendations from %s in %v\n", len(result.Items), result.Model, elapsed)
	for i, item := range result.Items {
		fmt.Printf("  %d. [%s] %s (%.2f)\n     %s\n", i+1, item.Type, item.FieldName, item.Confidence, item.Text)
	}
}
