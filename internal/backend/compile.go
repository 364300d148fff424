package backend

import (
	"context"

	"github.com/hyperjump/vibetex/internal/models"
)

// Compile posts source as the `file` part and returns the rendered artifact bytes.
func (c *Client) Compile(ctx context.Context, source *models.File) ([]byte, error) {
	data, _, err := c.post(ctx, c.config.CompilePath, []formPart{{Field: "file", File: source}})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ClientError{Kind: KindDecode, Endpoint: c.config.CompilePath, Message: "empty artifact"}
	}
	return data, nil
}

// CompileSource packages content as main.tex and compiles it.
func (c *Client) CompileSource(ctx context.Context, content string) ([]byte, error) {
	return c.Compile(ctx, models.SourceFile(content))
}
