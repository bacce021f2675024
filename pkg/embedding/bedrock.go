package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/levy-ai/levy/pkg/provider"
)

const defaultTitanModel = "amazon.titan-embed-text-v1"

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock embeds text with an Amazon Titan model.
type Bedrock struct {
	client  InvokeModelAPI
	modelID string
}

// NewBedrock wraps an existing Bedrock runtime client.
func NewBedrock(client InvokeModelAPI, modelID string) *Bedrock {
	if modelID == "" {
		modelID = defaultTitanModel
	}
	return &Bedrock{client: client, modelID: modelID}
}

// NewBedrockFromConfig loads AWS credentials from the environment.
func NewBedrockFromConfig(ctx context.Context, modelID, region string) (*Bedrock, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), modelID), nil
}

func (b *Bedrock) Name() string { return "bedrock" }

// Dimension reports the Titan v1 output size.
func (b *Bedrock) Dimension() int { return 1536 }

func (b *Bedrock) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{"inputText": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, &provider.Error{Provider: "bedrock", Message: "invoke model", Err: err}
	}

	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(out.Body, &result); err != nil {
		return nil, provider.Malformed(b.Name(), err.Error())
	}
	if len(result.Embedding) == 0 {
		return nil, provider.Malformed(b.Name(), "no embedding in response")
	}
	return result.Embedding, nil
}
