// Command nimbusd is the daemon: it owns one Session, accepts peer
// connections, and serves the RPC and HTTP-metrics endpoints used by
// cmd/nimbus and by operators.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nimbus "github.com/nimbus-bt/nimbus"
	"github.com/nimbus-bt/nimbus/internal/logger"
	"github.com/nimbus-bt/nimbus/internal/rpc"
	"github.com/nimbus-bt/nimbus/session"
)

var (
	torrentsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nimbus_torrents",
		Help: "Number of torrents currently managed by the daemon.",
	})
)

func init() {
	prometheus.MustRegister(torrentsGauge)
}

func main() {
	configFile := flag.String("config", "", "path to a YAML config file; defaults are used for anything it omits")
	flag.Parse()

	log := logger.New("nimbusd")

	cfg, err := nimbus.LoadConfig(*configFile)
	if err != nil {
		log.Errorln("failed loading config:", err)
		os.Exit(1)
	}

	sess, err := session.New(cfg)
	if err != nil {
		log.Errorln("failed starting session:", err)
		os.Exit(1)
	}

	rpcLn, err := net.Listen("tcp", cfg.RPCAddr)
	if err != nil {
		log.Errorln("failed binding rpc listener:", err)
		os.Exit(1)
	}
	rpcServer := rpc.NewServer(rpcLn, sess.Handler(), logger.New("rpc"))
	go func() {
		if err := rpcServer.Serve(); err != nil {
			log.Warningln("rpc server stopped:", err)
		}
	}()
	log.Infoln("rpc listening on", cfg.RPCAddr)

	var metricsSrv *http.Server
	metricsStopC := make(chan struct{})
	if cfg.MetricsAddr != "" {
		metricsSrv = newMetricsServer(cfg.MetricsAddr)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warningln("metrics server stopped:", err)
			}
		}()
		go reportTorrentCount(sess, metricsStopC)
		log.Infoln("metrics listening on", cfg.MetricsAddr)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	log.Infoln("shutting down")
	rpcServer.Close()
	if metricsSrv != nil {
		close(metricsStopC)
		metricsSrv.Close()
	}
	if err := sess.Close(); err != nil {
		log.Errorln("error during shutdown:", err)
		os.Exit(1)
	}
}

// newMetricsServer builds the operator-facing HTTP surface: /healthz for
// liveness and /metrics for Prometheus scraping. Neither is reachable by
// peers or trackers.
func newMetricsServer(addr string) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: r}
}

// reportTorrentCount keeps torrentsGauge in sync until stopC closes.
func reportTorrentCount(sess *session.Session, stopC chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			torrentsGauge.Set(float64(len(sess.ListTorrents())))
		case <-stopC:
			return
		}
	}
}
