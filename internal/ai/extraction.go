package ai

import (
	"context"
	"encoding/base64"
	"strings"
)

const extractionInstruction = "Extract all the text content from this document. Return ONLY the extracted text. " +
	"If it is an image or a spreadsheet, describe the data in detail structurally. " +
	"Do not add markdown formatting like ```text."

// FilePart renders file bytes as a multimodal content part: images as an
// image_url data URL, anything else as an inline file.
func FilePart(name, mimeType string, data []byte) ContentPart {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	if strings.HasPrefix(mimeType, "image/") {
		return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}}
	}
	return ContentPart{Type: "file", File: &FileData{Filename: name, FileData: dataURL}}
}

// ExtractText asks the chat model to transcribe the file.
func (c *OpenAICompatibleClient) ExtractText(ctx context.Context, cfg ChatConfig, name, mimeType string, data []byte) (string, error) {
	messages := []ChatMessage{{
		Role: RoleUser,
		Parts: []ContentPart{
			FilePart(name, mimeType, data),
			{Type: "text", Text: extractionInstruction},
		},
	}}
	return c.Complete(ctx, cfg, messages)
}
