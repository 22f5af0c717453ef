package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOptions(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Options
	}{
		{
			name: "defaults",
			want: Options{Addr: "localhost:6379"},
		},
		{
			name: "overrides",
			env:  map[string]string{"REDIS_URL": "cache:6380", "REDIS_PASSWORD": "secret", "REDIS_DB": "2"},
			want: Options{Addr: "cache:6380", Password: "secret", DB: 2},
		},
		{
			name: "unparsable db falls back to zero",
			env:  map[string]string{"REDIS_DB": "two"},
			want: Options{Addr: "localhost:6379"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"REDIS_URL", "REDIS_PASSWORD", "REDIS_DB"} {
				t.Setenv(key, tt.env[key])
			}
			assert.Equal(t, tt.want, EnvOptions())
		})
	}
}

func TestNew_NoRedis(t *testing.T) {
	_, err := New(Options{Addr: "invalid_host:9999"})
	assert.Error(t, err)
}

func TestService_Interface(t *testing.T) {
	var _ Service = (*service)(nil)
}
