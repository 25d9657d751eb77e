// Command echo-operator watches Echo resources and echoes their messages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/imjasonh/echo-operator/config"
	"github.com/imjasonh/echo-operator/controller"
	"github.com/imjasonh/echo-operator/echo"
	"github.com/imjasonh/echo-operator/generic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/record"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

const component = "echo-operator"

func main() {
	if err := newRootCmd().ExecuteContext(signals.SetupSignalHandler()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          component,
		Short:        "A simple Kubernetes operator that watches Echo custom resources and echoes their messages",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	config.AddFlags(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive(config.FlagNamespace, config.FlagAllNamespaces)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v, err := config.NewViper(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		klog.SetSlogLogger(logger)

		ctx := clog.WithLogger(cmd.Context(), clog.New(logger.Handler()))
		return run(ctx, cfg, cmd.OutOrStdout())
	}
	return cmd
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = kubeconfig
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("loading cluster config: %w", err)
	}
	cfg.UserAgent = rest.DefaultKubernetesUserAgent() + " " + component
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	rc, err := restConfig(cfg.Kubeconfig)
	if err != nil {
		return err
	}
	dyn, err := dynamic.NewForConfig(rc)
	if err != nil {
		return fmt.Errorf("creating dynamic client: %w", err)
	}
	kc, err := kubernetes.NewForConfig(rc)
	if err != nil {
		return fmt.Errorf("creating kubernetes client: %w", err)
	}

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return err
	}
	if err := echo.AddToScheme(scheme); err != nil {
		return err
	}

	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: kc.CoreV1().Events(cfg.WatchNamespace())})
	defer broadcaster.Shutdown()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := generic.NewClient[*echo.Echo](echo.Resource, dyn)
	shared := &echo.Context{
		Status:   controller.NewStatusPatcher(client, controller.StatusPatchOptions{}),
		Recorder: broadcaster.NewRecorder(scheme, corev1.EventSource{Component: component}),
		Out:      out,
	}
	ctrl, err := controller.New[*echo.Echo, echo.Context](client, echo.Reconciler{}, echo.ErrorPolicy{Backoff: cfg.ErrorBackoff}, shared, &controller.Options{
		Name:             component,
		Namespace:        cfg.WatchNamespace(),
		Concurrency:      cfg.Workers,
		Finalizer:        echo.Finalizer,
		ResyncPeriod:     cfg.ResyncPeriod,
		ReconcileTimeout: cfg.ReconcileTimeout,
		Metrics:          controller.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	clog.InfoContext(ctx, "starting echo operator",
		"namespace", cfg.WatchNamespace(),
		"all_namespaces", cfg.AllNamespaces,
		"workers", cfg.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(ctx) })
	if cfg.MetricsAddr != "0" {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr, reg) })
	}
	return g.Wait()
}

// serveMetrics serves /metrics and /healthz until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			clog.WarnContext(ctx, "shutting down metrics server", "error", err)
		}
	}()

	clog.InfoContext(ctx, "serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}
	return nil
}
