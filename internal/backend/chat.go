package backend

import (
	"context"
	"encoding/json"

	"github.com/hyperjump/vibetex/internal/models"
)

// Chat sends prompt with the current document as `source` and an optional
// `attached` file. A reply whose error field is set is returned as a
// KindApplication error, never as a reply.
func (c *Client) Chat(ctx context.Context, prompt string, source, attached *models.File) (*models.ChatReply, error) {
	endpoint := c.config.ChatPath
	parts := []formPart{
		{Field: "prompt", Value: prompt},
		{Field: "source", File: source},
	}
	if attached != nil {
		parts = append(parts, formPart{Field: "attached", File: attached})
	}
	data, resp, err := c.post(ctx, endpoint, parts)
	if err != nil {
		return nil, err
	}
	var reply models.ChatReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, &ClientError{Kind: KindDecode, Endpoint: endpoint, Status: resp.StatusCode, Message: "decode reply", Cause: err}
	}
	if reply.Failed() {
		return nil, &ClientError{Kind: KindApplication, Endpoint: endpoint, Status: resp.StatusCode, Message: *reply.Error}
	}
	return &reply, nil
}
