package scheduler_config

import (
	"time"

	"pagewatch/internal/obs"
	pginfra "pagewatch/internal/repository/postgres"
)

type KafkaCfg struct {
	Brokers      []string `mapstructure:"brokers"`
	CheckTopic   string   `mapstructure:"check_topic"`
	DigestTopic  string   `mapstructure:"digest_topic"`
	EnsureTopics bool     `mapstructure:"ensure_topics"`
}

type SchedCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	BatchLimit  int           `mapstructure:"batch_limit"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "pagewatch/scheduler",
	}
}

type Config struct {
	DB    pginfra.Config `mapstructure:"db"`
	Kafka KafkaCfg       `mapstructure:"kafka"`
	Sched SchedCfg       `mapstructure:"sched"`
	OTEL  OTEL           `mapstructure:"otel"`
	Log   Log            `mapstructure:"log"`
}
