package docstore

import "strings"

// Join builds a slash-separated path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func split(path string) ([]string, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// Parent returns the collection a document path belongs to.
func Parent(docPath string) string {
	idx := strings.LastIndex(docPath, "/")
	if idx < 0 {
		return ""
	}
	return docPath[:idx]
}

func validDocPath(path string) bool {
	parts, ok := split(path)
	return ok && len(parts)%2 == 0
}

func validCollection(path string) bool {
	parts, ok := split(path)
	return ok && len(parts)%2 == 1
}

func lastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}
