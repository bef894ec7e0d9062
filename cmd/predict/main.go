// Command predict classifies local street photos with the configured model.
//
//	predict [-out dir] image...
//	predict -check-model
//	predict -check-notifier
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/street-inspector-go/internal/config"
	"github.com/anime-shed/street-inspector-go/internal/container"
	"github.com/anime-shed/street-inspector-go/internal/imaging"
	"github.com/anime-shed/street-inspector-go/internal/logger"
	"github.com/anime-shed/street-inspector-go/internal/notify"
)

const (
	testSubject = "Test Email from Garbage Detection System"
	testBody    = "This is a test email from your Garbage Detection System.\n" +
		"If you receive this, your notification configuration is working correctly."
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outDir := fs.String("out", "", "directory for annotated JPEGs")
	checkModel := fs.Bool("check-model", false, "load the model and print where it was found")
	checkNotifier := fs.Bool("check-notifier", false, "send a test notification")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !*checkModel && !*checkNotifier && fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: predict [-out dir] image... | -check-model | -check-notifier")
		return 2
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	// The CLI keeps no history and uploads nothing.
	cfg.DatabasePath = ""
	cfg.Storage.Backend = "none"

	c, err := container.NewContainer(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	defer c.Close()

	switch {
	case *checkModel:
		return runCheckModel(c, stdout, stderr)
	case *checkNotifier:
		return runCheckNotifier(ctx, c, cfg, stdout, stderr)
	}

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintf(stderr, "out: %v\n", err)
			return 1
		}
	}

	status := 0
	for _, path := range fs.Args() {
		if err := predictFile(ctx, c, path, *outDir, stdout); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			status = 1
		}
	}
	return status
}

func runCheckModel(c *container.Container, stdout, stderr io.Writer) int {
	clf := c.Classifier()
	if !clf.Available() {
		fmt.Fprintf(stderr, "Model not loaded: %v\n", clf.Err())
		return 1
	}
	fmt.Fprintf(stdout, "Model loaded from %s (%s)\n", clf.ModelPath(), clf.Backend())
	return 0
}

func runCheckNotifier(ctx context.Context, c *container.Container, cfg *config.Config, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, cfg.Notifier.Timeout)
	defer cancel()

	if err := c.Notifier().Send(ctx, testSubject, testBody); err != nil {
		fmt.Fprintf(stderr, "Notification failed via %s: %v\n", cfg.Notifier.Transport, err)
		return 1
	}
	fmt.Fprintf(stdout, "Test notification sent via %s\n", cfg.Notifier.Transport)
	return 0
}

func predictFile(ctx context.Context, c *container.Container, path, outDir string, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := c.Pipeline().Analyze(ctx, imaging.RawImage{
		Data:     data,
		MIMEType: http.DetectContentType(data),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Prediction: %s (%.2f)\n", result.Classification.Label, result.Classification.Confidence)

	log := logger.WithFields(logrus.Fields{
		"file":         path,
		"class_label":  result.Classification.Label,
		"confidence":   result.Classification.Confidence,
		"notification": result.Notification.Status.String(),
	})
	if result.Notification.Status == notify.Failed {
		log = log.WithField("notification_error", result.Notification.Reason)
	}
	log.Debug("File classified")

	if outDir == "" {
		return nil
	}
	if result.AnnotationError != "" {
		return fmt.Errorf("annotation: %s", result.AnnotationError)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return os.WriteFile(filepath.Join(outDir, base+"_annotated.jpg"), result.AnnotatedImage, 0o644)
}
