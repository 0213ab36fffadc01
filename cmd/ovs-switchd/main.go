/*
 * openvswitch - an OpenFlow software switch core
 *
 * Copyright (C) 2015 The openvswitch authors. All rights reserved.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yamahata/openvswitch/datapath"
	"github.com/yamahata/openvswitch/netdev"
	"github.com/yamahata/openvswitch/netdev/memory"
	"github.com/yamahata/openvswitch/ofproto"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	programName     = "ovs-switchd"
	programVersion  = "1.0.0"
	defaultLogLevel = logging.INFO

	// pollInterval paces the switch housekeeping loop.
	pollInterval = 500 * time.Millisecond
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	useSyslog         = flag.Bool("syslog", false, "Send logs to syslog instead of stderr")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	initConfig()
	if err := initLog(getLogLevel(viper.GetString("default.log_level"))); err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	devices := memory.NewRegistry()
	monitor := netdev.NewMonitor()
	devices.Watch(monitor)

	registry := ofproto.NewRegistry(devices)
	registry.Register(datapath.NewFactory(devices))

	sw, err := createSwitch(registry, devices, monitor)
	if err != nil {
		logger.Fatalf("failed to create the switch: %v", err)
	}

	initSignalHandler(sw, cancel)
	run(ctx, sw)
}

func initConfig() {
	viper.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatalf("failed to read the config file: %v", err)
	}
	// Watching and re-reading config file whenever it changes.
	viper.OnConfigChange(func(e fsnotify.Event) {
		// Ignore the WRITE operation to avoid reading empty config.
		if e.Op != fsnotify.Write {
			return
		}

		if loggerLeveled != nil {
			// Set log level for all modules
			loggerLeveled.SetLevel(getLogLevel(viper.GetString("default.log_level")), "")
		}
	})
	viper.WatchConfig()
	if err := validateConfig(); err != nil {
		logger.Fatalf("failed to validate the configuration: %v", err)
	}
}

func validateConfig() error {
	if len(viper.GetString("default.log_level")) == 0 {
		return errors.New("invalid default.log_level")
	}
	if len(viper.GetString("default.switch_name")) == 0 {
		return errors.New("invalid default.switch_name")
	}
	if len(viper.GetString("default.provider")) == 0 {
		return errors.New("invalid default.provider")
	}
	if dpid := viper.GetString("default.datapath_id"); len(dpid) > 0 {
		if _, err := strconv.ParseUint(dpid, 16, 64); err != nil {
			return errors.New("invalid default.datapath_id")
		}
	}

	return nil
}

func createSwitch(registry *ofproto.Registry, devices *memory.Registry, monitor *netdev.Monitor) (*ofproto.OFProto, error) {
	name := viper.GetString("default.switch_name")
	// The device named after the switch becomes the local port.
	if !devices.Exists(name) {
		devices.Create(memory.DeviceConfig{Name: name, Type: "internal", HWAddr: randomHWAddr()})
	}

	sw, err := registry.Open(name, viper.GetString("default.provider"), monitor)
	if err != nil {
		return nil, err
	}
	if dpid := viper.GetString("default.datapath_id"); len(dpid) > 0 {
		v, err := strconv.ParseUint(dpid, 16, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing default.datapath_id")
		}
		sw.SetDatapathID(v)
	}
	sw.SetDescriptions(ofproto.Descriptions{
		Manufacturer: "The openvswitch authors",
		Hardware:     sw.Type(),
		Software:     programName + " " + programVersion,
		SerialNumber: "None",
		Datapath:     name,
	})

	for _, devName := range viper.GetStringSlice("default.ports") {
		if !devices.Exists(devName) {
			devices.Create(memory.DeviceConfig{Name: devName, HWAddr: randomHWAddr()})
		}
		number, err := sw.PortAdd(devName, "system")
		if err != nil {
			return nil, errors.Wrapf(err, "adding port %v", devName)
		}
		logger.Infof("added port %v as number %v", devName, number)
	}
	// Pick the changes up right away instead of waiting for the loop.
	if err := sw.Run(); err != nil {
		return nil, err
	}

	return sw, nil
}

func randomHWAddr() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	for i := range mac {
		mac[i] = byte(time.Now().UnixNano() >> uint(8*i))
	}
	mac[0] &^= 0x01 // unicast
	mac[0] |= 0x02  // locally administered

	return mac
}

func initSignalHandler(sw *ofproto.OFProto, shutdown context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		// All incoming signals will be transferred to the channel
		signal.Notify(c)

		for {
			s := <-c
			if s == syscall.SIGTERM || s == syscall.SIGINT {
				// Graceful shutdown
				logger.Info("Shutting down...")
				shutdown()
				// Timeout for cancelation
				time.Sleep(5 * time.Second)
				os.Exit(0)
			} else if s == syscall.SIGHUP {
				fmt.Printf("* Switch %v (dpid=%016x): %v ports, %v rules\n",
					sw.Name(), sw.DatapathID(), len(sw.Ports()), sw.RuleCount())
				for _, port := range sw.Ports() {
					logger.Debugf("port dump: %v", spew.Sdump(port.Desc()))
				}
			}
		}
	}()
}

func run(ctx context.Context, sw *ofproto.OFProto) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Destroy()
			return
		case <-ticker.C:
		}

		if err := sw.Run(); err != nil {
			if errors.Cause(err) == ofproto.ErrDatapathGone {
				sw.Destroy()
				logger.Fatalf("datapath of %v was destroyed; exiting", sw.Name())
			}
			logger.Errorf("switch %v: %v", sw.Name(), err)
		}
	}
}

func initLog(level logging.Level) error {
	var backend logging.Backend
	if *useSyslog {
		v, err := newSyslogBackend(programName)
		if err != nil {
			return err
		}
		backend = v
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	backend = logging.NewBackendFormatter(backend, logging.MustStringFormatter(`%{level}: %{shortpkg}.%{shortfunc}: %{message}`))

	loggerLeveled = logging.AddModuleLevel(backend)
	// Set log level for all modules
	loggerLeveled.SetLevel(level, "")
	logging.SetBackend(loggerLeveled)

	return nil
}

func getLogLevel(level string) logging.Level {
	level = strings.ToUpper(level)
	ret, err := logging.LogLevel(level)
	if err != nil {
		logger.Infof("invalid log level=%v, defaulting to %v..", level, defaultLogLevel)
		return defaultLogLevel
	}

	return ret
}
