package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

var tracer = otel.Tracer("solforge.llm.openai")

// defaultRequestsPerMinute bounds API admission when the operator sets no limit.
const defaultRequestsPerMinute = 60

// OpenAICapabilities implements SchemaExtractor, CodeGenerator and CodeRefiner
// against the OpenAI chat completions API. Extraction uses JSON mode;
// generation streams tokens into an mlocked accumulator.
type OpenAICapabilities struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewOpenAICapabilities() (*OpenAICapabilities, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	rpm := defaultRequestsPerMinute
	if v := os.Getenv("OPENAI_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rpm = n
		} else {
			slog.Warn("Invalid OPENAI_REQUESTS_PER_MINUTE, using default", "value", v, "default", rpm)
		}
	}

	slog.Info("Initializing OpenAI capabilities", "model", model, "requests_per_minute", rpm)
	return &OpenAICapabilities{
		client:  openai.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}, nil
}

// Extract implements SchemaExtractor via a JSON-mode completion.
func (o *OpenAICapabilities) Extract(ctx context.Context, text string, typeHint string) (datatypes.ContractSchema, error) {
	ctx, span := tracer.Start(ctx, "llm.openai.extract")
	defer span.End()
	span.SetAttributes(attribute.Int("text_length", len(text)))

	if err := o.limiter.Wait(ctx); err != nil {
		return datatypes.ContractSchema{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildExtractionPrompt(text, typeHint)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction call failed")
		slog.Error("OpenAI API call failed", "error", err)
		return datatypes.ContractSchema{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return datatypes.ContractSchema{}, fmt.Errorf("OpenAI returned no choices")
	}

	var schema datatypes.ContractSchema
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &schema); err != nil {
		span.RecordError(err)
		return datatypes.ContractSchema{}, fmt.Errorf("decoding schema JSON: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return datatypes.ContractSchema{}, fmt.Errorf("extracted schema invalid: %w", err)
	}

	slog.Debug("Extracted contract schema via OpenAI",
		"contract_type", schema.ContractType,
		"parties", len(schema.Parties),
	)
	return schema, nil
}

// Generate implements CodeGenerator. Tokens stream into a secure accumulator
// so contract source never sits in swappable memory mid-flight.
func (o *OpenAICapabilities) Generate(ctx context.Context, schema datatypes.ContractSchema, examples []Example) (datatypes.GeneratedCode, error) {
	ctx, span := tracer.Start(ctx, "llm.openai.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("examples", len(examples)))

	if err := o.limiter.Wait(ctx); err != nil {
		return datatypes.GeneratedCode{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	acc, err := NewSecureTokenAccumulator()
	if err != nil {
		return datatypes.GeneratedCode{}, fmt.Errorf("allocating token accumulator: %w", err)
	}
	defer acc.Destroy()

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildGenerationPrompt(schema, examples)},
		},
		Stream: true,
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation stream failed")
		slog.Error("OpenAI API call failed", "error", err)
		return datatypes.GeneratedCode{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			span.RecordError(recvErr)
			return datatypes.GeneratedCode{}, fmt.Errorf("OpenAI stream receive failed: %w", recvErr)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if writeErr := acc.Write(chunk.Choices[0].Delta.Content); writeErr != nil {
			return datatypes.GeneratedCode{}, fmt.Errorf("accumulating streamed tokens: %w", writeErr)
		}
	}

	reply, hashStr, err := acc.Finalize()
	if err != nil {
		return datatypes.GeneratedCode{}, fmt.Errorf("finalizing streamed response: %w", err)
	}
	slog.Debug("Generation stream complete", "bytes", len(reply), "sha256", hashStr[:16])

	source := extractSolidityBlock(reply)
	if source == "" {
		return datatypes.GeneratedCode{}, fmt.Errorf("model reply contained no Solidity source")
	}
	return datatypes.GeneratedCode{
		Source:          source,
		SolidityVersion: detectPragmaVersion(source),
	}, nil
}

// Refine implements CodeRefiner. The reply is preferentially a unified diff;
// a full-source block is accepted as fallback.
func (o *OpenAICapabilities) Refine(ctx context.Context, code datatypes.GeneratedCode, report *datatypes.SecurityAuditReport) (datatypes.RefinementPatch, error) {
	ctx, span := tracer.Start(ctx, "llm.openai.refine")
	defer span.End()
	span.SetAttributes(attribute.Int("findings", len(report.Findings)))

	if err := o.limiter.Wait(ctx); err != nil {
		return datatypes.RefinementPatch{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: refinementSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRefinementPrompt(code, report)},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refinement call failed")
		slog.Error("OpenAI API call failed", "error", err)
		return datatypes.RefinementPatch{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return datatypes.RefinementPatch{}, fmt.Errorf("OpenAI returned no choices")
	}

	reply := resp.Choices[0].Message.Content
	if diff, ok := extractUnifiedDiff(reply); ok {
		return datatypes.RefinementPatch{Mode: datatypes.PatchModeDiff, Content: diff}, nil
	}
	if source := extractSolidityBlock(reply); source != "" {
		return datatypes.RefinementPatch{Mode: datatypes.PatchModeFull, Content: source}, nil
	}
	return datatypes.RefinementPatch{}, fmt.Errorf("model reply contained neither a diff nor Solidity source")
}
