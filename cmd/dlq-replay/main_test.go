package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

func lookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := readConfig(nil, lookup(map[string]string{envKafkaBrokers: "kafka1:9092, kafka2:9092"}))
	require.NoError(t, err)

	require.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.brokers)
	require.Equal(t, kafka.TopicDeadLetterQueue, cfg.sourceTopic)
	require.Equal(t, kafka.TopicOrderEvents, cfg.targetTopic)
	require.Equal(t, defaultReplayLimit, cfg.limit)
	require.Equal(t, defaultIdleTimeout, cfg.idleTimeout)
	require.False(t, cfg.execute)
}

func TestReadConfig_Flags(t *testing.T) {
	cfg, err := readConfig([]string{
		"-brokers=localhost:9092",
		"-source-topic=custom.dlq",
		"-target-topic=custom",
		"-limit=5",
		"-execute",
		"-idle-timeout=500ms",
	}, lookup(map[string]string{envKafkaBrokers: "ignored:9092"}))
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:9092"}, cfg.brokers)
	require.Equal(t, "custom.dlq", cfg.sourceTopic)
	require.Equal(t, "custom", cfg.targetTopic)
	require.Equal(t, 5, cfg.limit)
	require.True(t, cfg.execute)
	require.Equal(t, 500*time.Millisecond, cfg.idleTimeout)
}

func TestReadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{name: "no brokers", want: "kafka brokers are required"},
		{name: "empty source", args: []string{"-brokers=k:9092", "-source-topic="}, want: "source-topic is required"},
		{name: "same topics", args: []string{"-brokers=k:9092", "-source-topic=a", "-target-topic=a"}, want: "must differ"},
		{name: "bad limit", args: []string{"-brokers=k:9092", "-limit=0"}, want: "limit must be > 0"},
		{name: "bad idle", args: []string{"-brokers=k:9092", "-idle-timeout=0s"}, want: "idle-timeout must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readConfig(tt.args, lookup(tt.env))
			require.ErrorContains(t, err, tt.want)
		})
	}
}
