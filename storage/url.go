package storage

import "strings"

// 对象路径按前缀分桶目录存放：audio/、covers/、avatars/。
// 这里的 URL 拼接只是简单的字符串拼接，真正的访问控制在存储端。

// PublicURL turns a stored relative object path into a fully-qualified
// fetchable URL. Paths that are already absolute are returned untouched,
// so callers can mix stored objects and external sources freely.
func PublicURL(baseURL, objectPath string) string {
	if objectPath == "" {
		return ""
	}
	if strings.HasPrefix(objectPath, "http://") || strings.HasPrefix(objectPath, "https://") {
		return objectPath
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(objectPath, "/")
}

// AudioURL resolves a stored audio path.
func AudioURL(baseURL, path string) string {
	return PublicURL(baseURL, prefixed("audio", path))
}

// CoverURL resolves a stored cover art path.
func CoverURL(baseURL, path string) string {
	return PublicURL(baseURL, prefixed("covers", path))
}

// AvatarURL resolves a stored avatar path.
func AvatarURL(baseURL, path string) string {
	return PublicURL(baseURL, prefixed("avatars", path))
}

func prefixed(dir, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, dir+"/") {
		return path
	}
	return dir + "/" + strings.TrimLeft(path, "/")
}
