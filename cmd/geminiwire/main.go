// Command geminiwire is a thin demo over the library: it issues one unary
// or streaming generate call and prints the completion text.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	log "github.com/nghyane/gemini-wire/internal/logging"
	"github.com/nghyane/gemini-wire/pkg/geminiwire"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	model := flag.String("model", "gemini-2.5-flash", "model to call")
	stream := flag.Bool("stream", false, "use the streaming endpoint")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: geminiwire [flags] <prompt>")
		os.Exit(2)
	}
	prompt := flag.Arg(0)

	var cfg *geminiwire.Config
	if *configPath != "" {
		loaded, err := geminiwire.LoadConfig(*configPath)
		if err != nil {
			log.Errorf("load config: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = geminiwire.NewConfig()
	}
	if *debug {
		cfg.Debug = true
	}
	log.ApplyDebug(cfg.Debug)
	if cfg.LoggingToFile {
		if err := log.ConfigureOutput(true, ""); err != nil {
			log.Errorf("configure log output: %v", err)
		}
		defer log.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := geminiwire.NewService(cfg)
	req := &geminiwire.GenerateContentRequest{Contents: geminiwire.Text(prompt)}

	if *stream {
		if err := runStream(ctx, svc, *model, req); err != nil {
			log.Errorf("stream generate: %v", err)
			os.Exit(1)
		}
		return
	}

	resp, err := svc.GenerateContent(ctx, *model, req)
	if err != nil {
		log.Errorf("generate: %v", err)
		os.Exit(1)
	}
	fmt.Println(resp.Text())
}

func runStream(ctx context.Context, svc *geminiwire.Service, model string, req *geminiwire.GenerateContentRequest) error {
	stream, err := svc.StreamGenerateContent(ctx, model, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		fmt.Print(chunk.Text())
	}
	fmt.Println()
	if serr := stream.Err(); serr != nil {
		return serr
	}
	return nil
}
