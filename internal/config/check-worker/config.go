package check_worker_config

import (
	"time"

	"pagewatch/internal/obs"
	"pagewatch/internal/repository/kafka"
	pginfra "pagewatch/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

func (k *KafkaIn) AsConsumerConfig() *kafka.ConsumerConfig {
	return &kafka.ConsumerConfig{
		Brokers: k.Brokers,
		Topic:   k.Topic,
		GroupID: k.GroupID,
	}
}

type HTTPCheck struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxBody   int64         `mapstructure:"max_body"`
}

type Digest struct {
	Weekday int `mapstructure:"weekday"`
	Hour    int `mapstructure:"hour"`
}

type Lock struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
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
		App:    "pagewatch/check-worker",
	}
}

type Config struct {
	DB     pginfra.Config `mapstructure:"db"`
	In     KafkaIn        `mapstructure:"kafka_in"`
	HTTP   HTTPCheck      `mapstructure:"http"`
	Digest Digest         `mapstructure:"digest"`
	Lock   Lock           `mapstructure:"lock"`
	Server Server         `mapstructure:"server"`
	OTEL   OTEL           `mapstructure:"otel"`
	Log    Log            `mapstructure:"log"`
}
