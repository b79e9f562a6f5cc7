package chat

import "strings"

// ImagePreview is the index preview of a message carrying only an image.
const ImagePreview = "[Image]"

// PreviewText is the lastMessage shown in chat lists for a message.
func PreviewText(text, imageRef string) string {
	if strings.TrimSpace(text) == "" && imageRef != "" {
		return ImagePreview
	}
	return text
}
