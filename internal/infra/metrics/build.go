package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "billing_build_info",
		Help: "A constant metric labeled with version, commit and the configured payment gateway.",
	},
	[]string{"version", "commit", "gateway"},
)

func SetBuildInfo(version, commit, gateway string) {
	buildInfo.WithLabelValues(version, commit, norm(gateway)).Set(1)
}
