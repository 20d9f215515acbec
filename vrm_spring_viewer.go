package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/mogaika/vrm_spring_bones/config"
	"github.com/mogaika/vrm_spring_bones/preview"
	"github.com/mogaika/vrm_spring_bones/status"
	"github.com/mogaika/vrm_spring_bones/vrm"
	"github.com/mogaika/vrm_spring_bones/web"
)

func main() {
	var addr, vrmpath, cfgpath string
	var check, watch bool
	flag.StringVar(&addr, "i", "", "Address of server, overrides config")
	flag.StringVar(&vrmpath, "vrm", "", "Path to .vrm or .glb file")
	flag.StringVar(&cfgpath, "config", "", "Path to .yaml or .toml config")
	flag.BoolVar(&check, "check", false, "Print spring bone diagnostic of every file argument and exit")
	flag.BoolVar(&watch, "watch", true, "Reload config on change")
	flag.Parse()

	if check {
		if !checkFiles(flag.Args()) {
			os.Exit(1)
		}
		return
	}

	if vrmpath == "" {
		flag.PrintDefaults()
		return
	}

	cfg := config.Default()
	if cfgpath != "" {
		var err error
		if cfg, err = config.Load(cfgpath); err != nil {
			log.Fatal(err)
		}
	}
	if addr != "" {
		cfg.Preview.Addr = addr
	}
	if level, err := log.ParseLevel(cfg.Preview.LogLevel); err != nil {
		log.Warnf("[main] %v", err)
	} else {
		log.SetLevel(level)
	}
	config.SetCurrent(cfg)

	doc, err := vrm.Load(vrmpath)
	if err != nil {
		log.Fatal(err)
	}
	model, err := vrm.Build(doc, cfg.Import.Options())
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("[main] Loaded %v: %v, %d springs", vrmpath, model.Spring.Version, len(model.Spring.Springs))

	host, err := preview.New(model, cfg, status.Default)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if watch && cfgpath != "" {
		w, err := config.Watch(cfgpath)
		if err != nil {
			log.Fatal(err)
		}
		defer w.Close()
		go host.Watch(ctx, w)
	}
	go host.Run(ctx)

	status.Info("Loaded %v", vrmpath)
	go func() {
		if err := web.StartServer(cfg.Preview.Addr, host, status.Default); err != nil {
			log.Fatal(err)
		}
	}()
	<-ctx.Done()
}
