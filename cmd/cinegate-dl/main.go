// Command cinegate-dl walks the download negotiation against a running
// gateway and prints the revealed link or a redirect URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/download"
	"github.com/JustinTDCT/CineGate/internal/logger"
)

type options struct {
	baseURL string
	slug    string
	quality string
	service string
	token   bool
	delay   time.Duration
	clock   download.Clock
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "base", envOr("CINEGATE_URL", "http://localhost:8080"), "gateway base URL")
	flag.StringVar(&opts.slug, "slug", "", "content slug (required)")
	flag.StringVar(&opts.quality, "quality", "", "quality label; first offered when empty")
	flag.StringVar(&opts.service, "service", "", "service name; first offered when empty")
	flag.BoolVar(&opts.token, "token", false, "print a single-use redirect URL instead of the link")
	flag.DurationVar(&opts.delay, "delay", download.DefaultRevealDelay, "reveal delay used when the gateway advertises none")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := download.NewClient(opts.baseURL, nil)
	if err := run(ctx, client, opts, os.Stdout, log); err != nil {
		log.WithError(err).Error("download negotiation failed")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func pick(want string, offered []string) string {
	if want != "" {
		return want
	}
	return offered[0]
}

func run(ctx context.Context, client *download.Client, opts options, out io.Writer, log logrus.FieldLogger) error {
	if opts.slug == "" {
		return errors.New("-slug is required")
	}
	var nopts []download.NegotiatorOption
	if opts.clock != nil {
		nopts = append(nopts, download.WithClock(opts.clock))
	}
	n := download.NewNegotiator(client, opts.slug, opts.delay, nopts...)

	qualities, err := n.Load(ctx)
	if err != nil {
		return err
	}
	log.WithField("qualities", qualities).Debug("qualities offered")

	services, err := n.ChooseQuality(ctx, pick(opts.quality, qualities))
	if err != nil {
		return err
	}
	log.WithField("services", services).Debug("services offered")

	if err := n.ChooseService(ctx, pick(opts.service, services)); err != nil {
		return err
	}

	log.WithField("wait", n.RevealIn().String()).Debug("waiting for reveal")
	if opts.token {
		if err := n.WaitGate(ctx); err != nil {
			return err
		}
		issued, err := client.Token(ctx, opts.slug, n.Quality(), n.Service())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", client.RedirectURL(issued.Token))
		return nil
	}

	link, err := n.Reveal(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", link.Quality, link.ServiceName, link.DownloadLink)
	return nil
}
