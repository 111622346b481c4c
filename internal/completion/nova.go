package completion

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

// ConverseAPI is the part of the Bedrock runtime client Nova needs.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Nova calls Amazon Nova models through the Bedrock Converse API.
type Nova struct {
	model  string
	client ConverseAPI
}

// NewNova loads the default AWS config and creates a Bedrock client.
func NewNova(ctx context.Context, model string) (*Nova, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return NewNovaWithClient(model, client), nil
}

// NewNovaWithClient uses an existing Converse client.
func NewNovaWithClient(model string, client ConverseAPI) *Nova {
	return &Nova{model: model, client: client}
}

func (n *Nova) Name() string { return "bedrock" }

func (n *Nova) Complete(ctx context.Context, req Request) (string, error) {
	modelID := novaModels[n.model]
	if modelID == "" {
		modelID = novaModels["nova-lite"]
	}

	resp, err := n.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.User},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Bedrock Converse error: %w", err)
	}
	return extractNovaText(resp), nil
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
