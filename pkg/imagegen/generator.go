package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/imgsmith/imgsmith/pkg/logging"
)

const systemPrompt = "You are an image generation assistant. " +
	"Produce a single image for the user's prompt and respond with only " +
	"the base64-encoded image data."

// InputImage is a reference image attached to a generation request.
type InputImage struct {
	MimeType string
	Data     []byte
}

// Output is one generated image.
type Output struct {
	Data     []byte
	MimeType string
}

// Generator produces or edits an image from a text prompt plus optional
// reference images. One-shot: no retries, no caching.
type Generator interface {
	Generate(ctx context.Context, prompt string, images []InputImage) (*Output, error)
}

// LLMGenerator drives a multimodal model through langchaingo.
type LLMGenerator struct {
	model  llms.Model
	logger *logging.Logger
}

// NewOllamaGenerator builds a generator on a local ollama model.
func NewOllamaGenerator(model string, logger *logging.Logger) (*LLMGenerator, error) {
	llm, err := ollama.New(ollama.WithModel(model))
	if err != nil {
		return nil, err
	}
	return &LLMGenerator{model: llm, logger: logger}, nil
}

// NewLLMGenerator wraps an existing model. Used by tests.
func NewLLMGenerator(model llms.Model, logger *logging.Logger) *LLMGenerator {
	return &LLMGenerator{model: model, logger: logger}
}

// Generate sends the prompt and any reference images to the model and
// decodes the returned image payload.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string, images []InputImage) (*Output, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt must not be empty")
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	for _, image := range images {
		content = append(content, llms.MessageContent{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(image.MimeType, image.Data),
			},
		})
	}

	g.logger.Debug("requesting image generation", "promptLen", len(prompt), "inputImages", len(images))

	response, err := g.model.GenerateContent(ctx, content)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) < 1 {
		return nil, errors.New("empty response from model")
	}

	return decodeOutput(response.Choices[0].Content)
}

// decodeOutput turns the model's base64 reply into image bytes. Data URI
// prefixes ("data:image/png;base64,...") are honored for the MIME type.
func decodeOutput(reply string) (*Output, error) {
	reply = strings.TrimSpace(reply)
	mimeType := "image/png"

	if strings.HasPrefix(reply, "data:") {
		header, rest, ok := strings.Cut(reply, ",")
		if !ok {
			return nil, errors.New("malformed data URI in model response")
		}
		header = strings.TrimPrefix(header, "data:")
		if mt, _, found := strings.Cut(header, ";"); found && mt != "" {
			mimeType = mt
		}
		reply = rest
	}

	data, err := base64.StdEncoding.DecodeString(reply)
	if err != nil {
		return nil, errors.New("model response is not valid base64 image data")
	}
	if len(data) == 0 {
		return nil, errors.New("model returned no image data")
	}

	return &Output{Data: data, MimeType: mimeType}, nil
}
