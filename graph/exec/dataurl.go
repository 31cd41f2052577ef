package exec

import (
	"encoding/base64"
	"strings"
)

const textURLPrefix = "data:text/plain;base64,"

// EncodeTextURL wraps generated text in a data URL so text-producing
// executors can return it through the URL-based result channel.
func EncodeTextURL(text string) string {
	return textURLPrefix + base64.StdEncoding.EncodeToString([]byte(text))
}

// DecodeTextURL extracts the text from a data URL produced by
// EncodeTextURL. The second return is false for any other URL shape,
// letting executors tell inline text apart from media references.
func DecodeTextURL(url string) (string, bool) {
	if !strings.HasPrefix(url, textURLPrefix) {
		return "", false
	}
	data, err := base64.StdEncoding.DecodeString(url[len(textURLPrefix):])
	if err != nil {
		return "", false
	}
	return string(data), true
}
