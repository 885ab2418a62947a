package upload

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of the content is read to detect its type.
const sniffLen = 3072

// DetectType returns the MIME type of content from its leading bytes.
func DetectType(content Content) *mimetype.MIME {
	if content == nil || content.Size() == 0 {
		return mimetype.Lookup("text/plain")
	}

	buf := make([]byte, min(int64(sniffLen), content.Size()))
	n, err := content.ReadAt(buf, 0)
	if n == 0 && err != nil && err != io.EOF {
		return mimetype.Lookup("application/octet-stream")
	}
	return mimetype.Detect(buf[:n])
}

// UseResumable reports whether content should be sent to uiPath through the
// resumable endpoint. Directory creation, disabled resumable support, content
// below the minimum size and text that fits in a single chunk all take the
// simple path.
func UseResumable(uiPath string, content Content, s Settings) bool {
	if !s.Enabled || strings.HasSuffix(uiPath, "/") {
		return false
	}
	if content == nil || content.Size() == 0 || content.Size() < s.MinSize {
		return false
	}
	if content.Size() <= s.ChunkSize && isText(DetectType(content)) {
		return false
	}
	return true
}

func isText(mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}
