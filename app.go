package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ataraxie68/pixelscope/engine"
	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/ataraxie68/pixelscope/pixelbase/logging"
)

type Context struct {
	config        *Config
	registry      *engine.Registry
	engine        *engine.Engine
	outputFile    *os.File
	server        *http.Server
	metricsServer *MetricsServer
	backupsLogger *BackupLogger
}

func (a *Context) InitContext(settings *appbase.AppSettings) error {
	var err error
	a.config = &Config{}
	err = appbase.InitAppConfig(a.config, settings)
	if err != nil {
		return err
	}
	if a.config.RegistryPath != "" {
		a.registry, err = engine.LoadRegistry(a.config.RegistryPath)
		if err != nil {
			return fmt.Errorf("failed to load platform registry from %s: %v", a.config.RegistryPath, err)
		}
	} else {
		a.registry = engine.DefaultRegistry()
	}
	var sink engine.RecordSink
	if a.config.OutputPath != "" {
		a.outputFile, err = os.OpenFile(a.config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open output file %s: %v", a.config.OutputPath, err)
		}
		sink = engine.NewStreamSink(a.outputFile)
	} else {
		sink = engine.NewStreamSink(os.Stdout)
	}
	a.engine = engine.NewEngine(a.registry, sink, a.config.TargetDomain)
	logging.Infof("Platform registry loaded: %d platforms, %d hosts, %d path rules",
		a.registry.Size(), a.registry.AllHosts().Size(), a.registry.AllPaths().Size())
	if a.config.TargetDomain != "" {
		logging.Infof("Target domain: %s", a.config.TargetDomain)
	}
	a.backupsLogger = NewBackupLogger(a.config)
	router := NewRouter(a)
	a.server = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.config.HTTPPort),
		Handler:           router.Engine(),
		ReadTimeout:       time.Second * 5,
		ReadHeaderTimeout: time.Second * 5,
		IdleTimeout:       time.Second * 65,
	}
	a.metricsServer = NewMetricsServer(a.config)
	return nil
}

func (a *Context) Cleanup() error {
	_ = a.engine.Close()
	_ = a.backupsLogger.Close()
	if a.outputFile != nil {
		_ = a.outputFile.Close()
	}
	if a.config.ShutdownExtraDelay > 0 {
		logging.Infof("Waiting %d seconds before http server shutdown...", a.config.ShutdownExtraDelay)
		time.Sleep(time.Duration(a.config.ShutdownExtraDelay) * time.Second)
	}
	_ = a.metricsServer.Stop()
	return nil
}

func (a *Context) ShutdownSignal() error {
	_ = a.server.Shutdown(context.Background())
	return nil
}

func (a *Context) Server() *http.Server {
	return a.server
}

func (a *Context) Config() *Config {
	return a.config
}
