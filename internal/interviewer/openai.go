package interviewer

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const defaultOpenAIModel = "gpt-4.1-mini"

// OpenAICompleter вызывает OpenAI Responses API
type OpenAICompleter struct {
	client openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, model string, opts ...option.RequestOption) *OpenAICompleter {
	if model == "" {
		model = defaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (Response, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(withSystem(req))},
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			props, required := schemaProperties(t)
			toolParams = append(toolParams, responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": props,
						"required":   required,
					}),
				},
			})
		}
		params.Tools = toolParams
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("ошибка вызова OpenAI: %w", err)
	}
	if resp == nil {
		return Response{}, fmt.Errorf("пустой ответ от OpenAI")
	}

	var out Response
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		args, err := parseArguments(call.Arguments)
		if err != nil {
			return Response{}, err
		}
		out.ToolCalls = append(out.ToolCalls, toolCall(call.ID, call.Name, args))
	}
	out.Text = resp.OutputText()

	return out, nil
}
