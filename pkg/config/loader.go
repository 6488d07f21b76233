package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source 分层配置的位置：<Dir>/base.yaml，<Dir>/<Env>.yaml，<Dir>/secrets.env
type Source struct {
	Dir string
	Env string
}

// SourceFromEnv 读取 CONFIG_DIR 与 CONFIG_ENV，默认 config/ 和 local
func SourceFromEnv() Source {
	return Source{
		Dir: GetEnv("CONFIG_DIR", "config"),
		Env: GetEnv("CONFIG_ENV", "local"),
	}
}

// Load 环境文件覆盖 base.yaml，再展开 ${VAR}。
// 占位符先查 secrets.env，再查进程环境变量。
func (s Source) Load() (map[string]any, error) {
	dir := s.Dir
	if dir == "" {
		dir = "config"
	}

	merged, err := readYAML(filepath.Join(dir, "base.yaml"))
	if err != nil {
		return nil, err
	}
	if s.Env != "" && s.Env != "base" {
		overlay, err := readYAML(filepath.Join(dir, s.Env+".yaml"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			merged = deepMerge(merged, overlay)
		}
	}

	secrets, err := godotenv.Read(filepath.Join(dir, "secrets.env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read secrets.env: %w", err)
	}
	lookup := func(key string) string {
		if v, ok := secrets[key]; ok {
			return v
		}
		return os.Getenv(key)
	}
	return expand(merged, lookup).(map[string]any), nil
}

// Decode 加载并解码到 out，out 中已有的值作为默认值
func (s Source) Decode(out any) error {
	raw, err := s.Load()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := yaml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("re-encode config: %w", err)
	}
	if err := yaml.NewDecoder(&buf).Decode(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// deepMerge 返回新 map；两边都是 map 时递归，否则 over 的值胜出
func deepMerge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		bm, ok1 := out[k].(map[string]any)
		om, ok2 := v.(map[string]any)
		if ok1 && ok2 {
			out[k] = deepMerge(bm, om)
		} else {
			out[k] = v
		}
	}
	return out
}

// expand 递归展开字符串里的 ${VAR}
func expand(v any, lookup func(string) string) any {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "${") {
			return val
		}
		return os.Expand(val, lookup)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expand(item, lookup)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expand(item, lookup)
		}
		return out
	default:
		return v
	}
}

func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
