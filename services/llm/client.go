package llm

import (
	"context"
	"fmt"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// SchemaExtractor turns normalized contract text into a structured schema.
type SchemaExtractor interface {
	Extract(ctx context.Context, text string, typeHint string) (datatypes.ContractSchema, error)
}

// CodeGenerator produces Solidity source from a contract schema.
type CodeGenerator interface {
	Generate(ctx context.Context, schema datatypes.ContractSchema, examples []Example) (datatypes.GeneratedCode, error)
}

// CodeRefiner proposes a patch for generated code that failed an audit.
type CodeRefiner interface {
	Refine(ctx context.Context, code datatypes.GeneratedCode, report *datatypes.SecurityAuditReport) (datatypes.RefinementPatch, error)
}

// Example is a requirement/code pair included in generation prompts.
type Example struct {
	Requirement string `json:"requirement"`
	Code        string `json:"code"`
}

// Capabilities bundles the three translation capabilities of one backend.
type Capabilities struct {
	Backend   string
	Extractor SchemaExtractor
	Generator CodeGenerator
	Refiner   CodeRefiner
}

// NewCapabilities builds the capability set for the named backend.
// Supported backends are "openai" and "static"; empty selects "static".
func NewCapabilities(backend string) (*Capabilities, error) {
	switch backend {
	case "openai":
		client, err := NewOpenAICapabilities()
		if err != nil {
			return nil, err
		}
		return &Capabilities{Backend: "openai", Extractor: client, Generator: client, Refiner: client}, nil
	case "static", "":
		static := NewStaticCapabilities()
		return &Capabilities{Backend: "static", Extractor: static, Generator: static, Refiner: static}, nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q (want openai or static)", backend)
	}
}
