package config

import (
	"slices"
	"testing"
	"time"
)

func TestDBConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DBConfig
		want string
	}{
		{
			name: "default sslmode",
			cfg:  DBConfig{Host: "db", Port: 5432, User: "ph", Password: "pw", Name: "projecthub"},
			want: "postgres://ph:pw@db:5432/projecthub?sslmode=disable",
		},
		{
			name: "escapes password",
			cfg:  DBConfig{Host: "db", Port: 6543, User: "ph", Password: "p@ss/word", Name: "x", SSLMode: "require"},
			want: "postgres://ph:p%40ss%2Fword@db:6543/x?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Fatalf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("REDIS_DB", "3")

	db := DBConfig{Host: "localhost", Port: 5432}
	jwt := JWTConfig{TTL: time.Hour}
	rc := RedisConfig{}

	var bindings []EnvBinding
	bindings = append(bindings, db.EnvBindings()...)
	bindings = append(bindings, jwt.EnvBindings()...)
	bindings = append(bindings, rc.EnvBindings()...)
	applied := ApplyEnv(bindings...)

	if db.Host != "pg.internal" {
		t.Errorf("host = %q", db.Host)
	}
	if db.Port != 5432 {
		t.Errorf("unparsable port should be ignored, got %d", db.Port)
	}
	if jwt.TTL != 2*time.Hour {
		t.Errorf("jwt ttl = %v", jwt.TTL)
	}
	if rc.DB != 3 {
		t.Errorf("redis db = %d", rc.DB)
	}
	for _, key := range []string{"DB_HOST", "JWT_TTL", "REDIS_DB"} {
		if !slices.Contains(applied, key) {
			t.Errorf("%s missing from applied %v", key, applied)
		}
	}
	if slices.Contains(applied, "DB_USER") {
		t.Error("unset variables must not be reported")
	}
}
