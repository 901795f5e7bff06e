package main

import (
	"time"

	"github.com/smppgw/gateway/internal/pipeline"
	"github.com/smppgw/gateway/internal/resolver"
	"github.com/smppgw/gateway/internal/server"
	"github.com/smppgw/gateway/internal/session"
)

const (
	svcName = "smppgw"

	envPrefixSMPP    = "SMPP_"
	envPrefixMetrics = "METRICS_"
	envPrefixDB      = "DB_"
	envPrefixCache   = "CACHE_"

	defSMPPPort    = "2776"
	defMetricsPort = "9100"
	defDBName      = "smppgw"
	defWarmupDays  = 7
	defWarmupLimit = 10000
)

// config is the top-level process configuration: everything that is not
// already scoped to one of the component Config structs below.
type config struct {
	LogLevel      string  `env:"LOG_LEVEL"          envDefault:"info"`
	InstanceID    string  `env:"INSTANCE_ID"        envDefault:""`
	JaegerURL     string  `env:"JAEGER_URL"         envDefault:"http://localhost:4318/v1/traces"`
	TraceRatio    float64 `env:"JAEGER_TRACE_RATIO" envDefault:"1.0"`
	SendTelemetry bool    `env:"SEND_TELEMETRY"     envDefault:"true"`

	CacheURL  string        `env:"CACHE_URL"          envDefault:"redis://localhost:6379/0"`
	CacheTTL  time.Duration `env:"HLR_CACHE_TTL"      envDefault:"300s"`
	DBEnabled bool          `env:"DB_ENABLED"         envDefault:"true"`

	WarmupEnabled bool `env:"WARMUP_ENABLED" envDefault:"true"`
	WarmupDays    int  `env:"WARMUP_DAYS"    envDefault:"7"`
	WarmupLimit   int  `env:"WARMUP_LIMIT"   envDefault:"10000"`
}

// componentConfigs bundles every sub-component's own Config, each parsed
// with its own environment prefix.
type componentConfigs struct {
	smppServer    server.Config
	metricsServer server.Config
	session       session.Config
	resolver      resolver.Config
	pipeline      pipeline.Config
}
