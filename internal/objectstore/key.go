package objectstore

import "strings"

// JoinPrefix joins a configured key prefix with an artifact-relative key,
// normalizing slashes so "scraped_data/" + "/2025/01/..." never produces a
// doubled separator. An s3://bucket/ prefix is reduced to its key part.
func JoinPrefix(prefix, rel string) string {
	if strings.HasPrefix(prefix, "s3://") {
		trimmed := strings.TrimPrefix(prefix, "s3://")
		if parts := strings.SplitN(trimmed, "/", 2); len(parts) == 2 {
			prefix = parts[1]
		} else {
			prefix = ""
		}
	}
	prefix = strings.Trim(prefix, "/")
	rel = strings.TrimPrefix(rel, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}
