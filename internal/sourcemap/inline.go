package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// InlinePrefix is the exact comment prefix the host's trace machinery and
// external tooling look for at the end of emitted output.
const InlinePrefix = "//# sourceMappingURL=data:application/json;charset=utf-8;base64,"

// InlineComment renders the document as a trailing inline comment:
// a newline, the data-URL prefix, and the base64-encoded JSON payload.
func InlineComment(doc *Document) (string, error) {
	raw, err := doc.Marshal()
	if err != nil {
		return "", err
	}
	return "\n" + InlinePrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// ParseInline extracts and decodes an inline source map comment from emitted
// output. Returns false when the output carries none.
func ParseInline(outputText string) (*Document, bool) {
	idx := strings.LastIndex(outputText, InlinePrefix)
	if idx < 0 {
		return nil, false
	}
	payload := outputText[idx+len(InlinePrefix):]
	if nl := strings.IndexByte(payload, '\n'); nl >= 0 {
		payload = payload[:nl]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, false
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// StripInline returns the output text without its trailing inline source map
// comment. Needed by the REPL, which diffs consecutive emits.
func StripInline(outputText string) string {
	idx := strings.LastIndex(outputText, InlinePrefix)
	if idx < 0 {
		return outputText
	}
	cut := idx
	if cut > 0 && outputText[cut-1] == '\n' {
		cut--
	}
	return outputText[:cut]
}
