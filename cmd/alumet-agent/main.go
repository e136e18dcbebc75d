// Copyright 2025 The Alumet Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alumet-dev/alumet-go/pkg/config"
	"github.com/alumet-dev/alumet-go/pkg/instrumentation"
	logger "github.com/alumet-dev/alumet-go/pkg/log"
	"github.com/alumet-dev/alumet-go/pkg/pidfile"
	"github.com/alumet-dev/alumet-go/pkg/pipeline"
	"github.com/alumet-dev/alumet-go/pkg/plugin"
	"github.com/alumet-dev/alumet-go/pkg/version"
)

var log = logger.Default()

func main() {
	printConfig := flag.Bool("print-config", false, "Describe configuration and exit.")
	printVersion := flag.Bool("version", false, "Print version and exit.")
	configFile := flag.String("config", "", "Agent configuration file.")
	pidFile := flag.String("pidfile", "", "PID file path (empty for the default).")
	flag.Parse()

	switch {
	case *printVersion:
		fmt.Printf("alumet-agent version %s, build %s\n", version.Version, version.Build)
		os.Exit(0)
	case *printConfig:
		config.Describe()
		os.Exit(0)
	}

	if args := flag.Args(); len(args) > 0 {
		log.Error("unexpected command line arguments: %v", args)
		flag.Usage()
		os.Exit(pipeline.ExitStartupFailure)
	}

	agent, err := newAgent(*configFile, *pidFile)
	if err != nil {
		log.Error("startup failed: %v", err)
		logger.Flush()
		os.Exit(pipeline.ExitStartupFailure)
	}

	os.Exit(agent.run())
}

// agent ties the configured plugins, the pipeline and the process lifecycle
// together.
type agent struct {
	logger.Logger
	host       *plugin.Host
	pipe       *pipeline.Pipeline
	configFile string
	signals    chan os.Signal
}

// newAgent loads the configuration, initializes the plugins and builds the
// pipeline. Any failure here is a startup failure for the whole process.
func newAgent(configFile, pidFilePath string) (*agent, error) {
	a := &agent{
		Logger:     logger.NewLogger("agent"),
		configFile: configFile,
	}

	a.Info("alumet-agent (version %s, build %s) starting...", version.Version, version.Build)

	pluginConfigs, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	if pidFilePath != "" {
		pidfile.SetPath(pidFilePath)
	}
	if pid, err := pidfile.OwnerPid(); err == nil && pid > 0 {
		return nil, fmt.Errorf("an instance is already running as pid %d", pid)
	}

	if err := instrumentation.Start(); err != nil {
		return nil, err
	}

	a.host = plugin.NewHost()
	if err := a.host.InitAll(pluginConfigs); err != nil {
		return nil, err
	}

	builder := pipeline.NewBuilder(pipeline.DefaultConfig())
	if err := a.host.StartAll(builder); err != nil {
		return nil, err
	}

	a.pipe, err = builder.Build()
	if err != nil {
		return nil, err
	}

	return a, nil
}

// run starts the pipeline and blocks until shutdown, returning the process
// exit code.
func (a *agent) run() int {
	if err := a.pipe.Start(); err != nil {
		a.Error("failed to start pipeline: %v", err)
		logger.Flush()
		return pipeline.ExitStartupFailure
	}

	instrumentation.RegisterGatherer(a.pipe.Gatherer())
	pipeline.RegisterIntrospection(instrumentation.GetHTTPMux(), a.pipe)

	a.host.PostPipelineStartAll(a.pipe)

	if err := pidfile.Remove(); err != nil {
		a.Warn("failed to remove stale PID file: %v", err)
	}
	if err := pidfile.Write(); err != nil {
		a.Warn("failed to write PID file: %v", err)
	}

	a.signals = make(chan os.Signal, 1)
	signal.Notify(a.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go a.handleSignals()

	a.Info("up and running")

	code := a.pipe.Wait()

	a.host.StopAll()
	instrumentation.Stop()
	if err := pidfile.Remove(); err != nil {
		a.Warn("failed to remove PID file: %v", err)
	}
	logger.Flush()

	return code
}

// handleSignals maps process signals to lifecycle actions: TERM/INT start a
// graceful shutdown, HUP reloads the configuration file.
func (a *agent) handleSignals() {
	for sig := range a.signals {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			a.Info("received %s, shutting down...", sig)
			a.pipe.Shutdown()
			return

		case syscall.SIGHUP:
			if a.configFile == "" {
				a.Warn("received SIGHUP but no configuration file to reload")
				continue
			}
			a.Info("received SIGHUP, reloading configuration %s...", a.configFile)
			if _, err := loadConfig(a.configFile); err != nil {
				a.Error("configuration reload failed: %v", err)
			}
		}
	}
}
