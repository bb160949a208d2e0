package models

import (
	"strings"
	"testing"
)

func TestMessageContent_Normalize(t *testing.T) {
	img := "abc123"
	empty := ""

	tests := []struct {
		name     string
		content  MessageContent
		wantErr  bool
		wantType MessageType
	}{
		{"Defaults to text", MessageContent{Content: "hi"}, false, MessageTypeText},
		{"Image with id", MessageContent{Content: "photo", Type: MessageTypeImage, ImageID: &img}, false, MessageTypeImage},
		{"Image without id", MessageContent{Content: "photo", Type: MessageTypeImage}, true, ""},
		{"Image with empty id", MessageContent{Content: "photo", Type: MessageTypeImage, ImageID: &empty}, true, ""},
		{"Text with image id", MessageContent{Content: "hi", ImageID: &img}, true, ""},
		{"Unknown type", MessageContent{Content: "hi", Type: "video"}, true, ""},
		{"Whitespace content", MessageContent{Content: "  \n "}, true, ""},
		{"Too long", MessageContent{Content: strings.Repeat("x", MaxMessageLength+1)}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.content
			err := c.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && c.Type != tt.wantType {
				t.Errorf("type: expected %q, got %q", tt.wantType, c.Type)
			}
		})
	}
}
