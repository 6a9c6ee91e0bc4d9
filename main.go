/*
Copyright 2022 The Kruise Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	gamev1alpha1 "github.com/beebs-dev/dorch-sub000/apis/v1alpha1"
	controller "github.com/beebs-dev/dorch-sub000/pkg/controllers"
	"github.com/beebs-dev/dorch-sub000/pkg/logging"
	"github.com/beebs-dev/dorch-sub000/pkg/tracing"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	//+kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")

	apiServerSustainedQPSFlag, apiServerBurstQPSFlag int
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(gamev1alpha1.AddToScheme(scheme))
	//+kubebuilder:scaffold:scheme
}

func main() {
	var metricsAddr string
	var enableLeaderElection bool
	var probeAddr string
	var namespace string
	var syncPeriodStr string
	var scaleServerAddr string
	logOptions := logging.NewOptions()
	logOptions.AddFlags(flag.CommandLine)
	tracingOptions := tracing.NewOptions()
	tracingOptions.AddFlags(flag.CommandLine)
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8082", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	flag.StringVar(&namespace, "namespace", "",
		"Namespace if specified restricts the manager's cache to watch objects in the desired namespace. Defaults to all namespaces.")
	flag.StringVar(&syncPeriodStr, "sync-period", "", "Determines the minimum frequency at which watched resources are reconciled.")
	flag.StringVar(&scaleServerAddr, "scale-server-bind-address", ":6000", "Reserved for the companion autoscaler hint server; not served by this binary.")
	flag.IntVar(&apiServerSustainedQPSFlag, "api-server-qps", 0, "Maximum sustained queries per second to send to the API server")
	flag.IntVar(&apiServerBurstQPSFlag, "api-server-qps-burst", 0, "Maximum burst queries per second to send to the API server")

	flag.Parse()

	logResult, err := logOptions.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	setupLog = ctrl.Log.WithName("setup")
	if logResult.Warning != "" {
		setupLog.Info(logResult.Warning)
	}

	// Initialize tracing (non-blocking - falls back to no-op on failure)
	if err := tracingOptions.Apply(); err != nil {
		setupLog.Info("Tracing initialization failed, using no-op tracer", tracing.FieldError, err.Error())
	} else if tracingOptions.Enabled {
		setupLog.Info("Tracing initialized successfully", tracing.FieldCollector, tracingOptions.CollectorEndpoint)

		// Send a hello-world trace to verify the pipeline
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tracer := otel.Tracer("dorch-reconciler")
			_, span := tracer.Start(ctx, "controller-startup-test")
			span.SetAttributes(
				attribute.String("test.type", "smoke-test"),
				attribute.String("test.purpose", "verify-tracing-pipeline"),
			)
			setupLog.Info("Sent hello-world trace span", tracing.FieldSpanName, "controller-startup-test")
			span.End()

			// Give exporter time to send the span
			time.Sleep(2 * time.Second)
		}()

		// Register shutdown hook
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				setupLog.Error(err, "failed to shutdown tracer")
			}
		}()
	}

	// syncPeriod parsed
	var syncPeriod *time.Duration
	if syncPeriodStr != "" {
		d, err := time.ParseDuration(syncPeriodStr)
		if err != nil {
			setupLog.Error(err, "invalid sync period flag")
		} else {
			syncPeriod = &d
		}
	}

	leaseDuration := 15 * time.Second
	renewDeadline := 10 * time.Second
	retryPeriod := 5 * time.Second

	restConfig := ctrl.GetConfigOrDie()
	setRestConfig(restConfig)
	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "dorch-reconciler",
		LeaseDuration:          &leaseDuration,
		RenewDeadline:          &renewDeadline,
		RetryPeriod:            &retryPeriod,
		// LeaderElectionReleaseOnCancel defines if the leader should step down voluntarily
		// when the Manager ends. This requires the binary to immediately end when the
		// Manager is stopped, otherwise, this setting is unsafe. Setting this significantly
		// speeds up voluntary leader transitions as the new leader don't have to wait
		// LeaseDuration time first.
		LeaderElectionReleaseOnCancel: true,

		// In the default scaffold provided, the program ends immediately after
		// the manager stops, so would be fine to enable this option. However,
		// if you are doing or is intended to do any operation such as perform cleanups
		// after the manager stops then its usage might be unsafe.
		// LeaderElectionReleaseOnCancel: true,
		Cache: cache.Options{
			SyncPeriod:        syncPeriod,
			DefaultNamespaces: getCacheNamespacesFromFlag(namespace),
		},
	})
	if err != nil {
		setupLog.Error(err, "unable to start dorch reconciler manager")
		os.Exit(1)
	}

	//+kubebuilder:scaffold:builder
	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}

	// Add a readiness check that confirms the manager is ready to serve traffic if leader election is enabled.
	var isLeader atomic.Bool
	if enableLeaderElection {
		if err := mgr.Add(manager.RunnableFunc(func(ctx context.Context) error {
			<-mgr.Elected()
			isLeader.Store(true)
			<-ctx.Done()
			return nil
		})); err != nil {
			setupLog.Error(err, "unable to add leader check runnable")
			os.Exit(1)
		}
	}

	if err := mgr.AddReadyzCheck("readyz", func(req *http.Request) error {
		if !enableLeaderElection {
			// If leader election is not enabled, we can always return ready
			return healthz.Ping(req)
		}
		if isLeader.Load() {
			return nil
		}
		return fmt.Errorf("not ready yet")
	}); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("setup controllers", tracing.FieldEvent, "controller.setup")
	if err = controller.SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to setup controllers")
		os.Exit(1)
	}

	signal := ctrl.SetupSignalHandler()

	logServiceReadySummary(setupLog, serviceSummary{
		MetricsAddr:     metricsAddr,
		HealthAddr:      probeAddr,
		Namespace:       namespace,
		SyncPeriodRaw:   syncPeriodStr,
		LeaderElection:  enableLeaderElection,
		LogFormat:       logResult.Format,
		LogJSONPreset:   logResult.JSONPreset,
		ScaleServerAddr: scaleServerAddr,
	})

	setupLog.Info("starting dorch reconciler manager", tracing.FieldEvent, "service.start")

	if err := mgr.Start(signal); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

func setRestConfig(c *rest.Config) {
	if apiServerSustainedQPSFlag > 0 {
		c.QPS = float32(apiServerSustainedQPSFlag)
	}
	if apiServerBurstQPSFlag > 0 {
		c.Burst = apiServerBurstQPSFlag
	}
}

func getCacheNamespacesFromFlag(ns string) map[string]cache.Config {
	if ns == "" {
		return nil
	}
	return map[string]cache.Config{
		ns: {},
	}
}

type serviceSummary struct {
	MetricsAddr     string
	HealthAddr      string
	Namespace       string
	SyncPeriodRaw   string
	LeaderElection  bool
	LogFormat       string
	LogJSONPreset   logging.JSONPreset
	ScaleServerAddr string
}

func logServiceReadySummary(logger logr.Logger, summary serviceSummary) {
	fields := []interface{}{
		tracing.FieldEvent, "service.ready",
		"leader_election", summary.LeaderElection,
	}
	if summary.MetricsAddr != "" {
		fields = append(fields, "metrics.bind_address", summary.MetricsAddr)
	}
	if summary.HealthAddr != "" {
		fields = append(fields, "healthz.bind_address", summary.HealthAddr)
	}
	if summary.Namespace != "" {
		fields = append(fields, "namespace_scope", summary.Namespace)
	}
	if summary.SyncPeriodRaw != "" {
		fields = append(fields, "sync_period", summary.SyncPeriodRaw)
	}
	if summary.LogFormat != "" {
		fields = append(fields, "log.format", summary.LogFormat)
	}
	if summary.LogJSONPreset != "" {
		fields = append(fields, "log.json_preset", string(summary.LogJSONPreset))
	}
	if summary.ScaleServerAddr != "" {
		fields = append(fields, "scale_server.bind_address", summary.ScaleServerAddr)
	}
	logger.Info("service configuration snapshot", fields...)
}
