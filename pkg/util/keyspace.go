package util

import "strings"

// redisKey 拼接带前缀的 Redis key，prefix 为空时省略
func redisKey(prefix string, parts ...string) string {
	if prefix == "" {
		return strings.Join(parts, ":")
	}
	return prefix + ":" + strings.Join(parts, ":")
}
