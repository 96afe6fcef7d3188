// Copyright 2025 Poiesic Systems
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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docai"
	"github.com/poiesic/docai/ai"
	"github.com/poiesic/docai/queue"
	queueredis "github.com/poiesic/docai/queue/redis"
)

func main() {
	app := &cli.App{
		Name:  "docai",
		Usage: "Document question-answering pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "docai-db",
			},
			&cli.StringFlag{
				Name:  "ai-host",
				Usage: "OpenAI-compatible service host URL",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: "embeddinggemma",
			},
			&cli.StringFlag{
				Name:  "generator-model",
				Usage: "Answer generation model name",
				Value: "qwen2.5:3b",
			},
			&cli.StringFlag{
				Name:  "redis",
				Usage: "Redis address for the shared event queue (empty = in-process queue)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a PDF document and process it to completion",
				ArgsUsage: "<file.pdf>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for processing",
						Value: 5 * time.Minute,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question over the ingested documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for an answer",
						Value: 5 * time.Minute,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "List documents and their lifecycle status",
				Action: statusCommand,
			},
			{
				Name:   "worker",
				Usage:  "Run a dedicated worker processing queued events",
				Action: workerCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openEngine assembles an engine from the global flags.
func openEngine(c *cli.Context) (*docai.Engine, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	)

	opts := []docai.EngineOption{docai.WithAIConfig(aiConfig)}
	if addr := c.String("redis"); addr != "" {
		q, err := redisQueue(addr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, docai.WithQueue(q))
	}
	return docai.NewEngine(c.String("db"), opts...)
}

func redisQueue(addr string) (queue.EventQueue, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	q, err := queueredis.NewQueue(client, consumer)
	if err != nil {
		return nil, fmt.Errorf("connect event queue: %w", err)
	}
	return q, nil
}

func ingestCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: docai ingest <file.pdf>")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.StartWorker()

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	doc, err := engine.IngestDocument(ctx, filepath.Base(path), raw)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Printf("document %s created\n", doc.ID)

	// Poll until the document settles so the command is self-contained.
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		current, err := engine.Document(ctx, doc.ID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			fmt.Printf("document %s is %s (%d pages)\n", current.ID, current.Status, len(current.Pages))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("document %s still %s: %w", doc.ID, current.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("usage: docai ask <question>")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.StartWorker()

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	q, err := engine.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "query %s created, waiting for answer...\n", q.ID)

	result, err := engine.WaitForQuery(ctx, q.ID, 200*time.Millisecond)
	if err != nil {
		return err
	}
	switch {
	case result.Answer != "":
		fmt.Println(result.Answer)
		return nil
	default:
		return fmt.Errorf("query %s ended %s: %s", result.ID, result.Status, result.Extra["failure_reason"])
	}
}

func statusCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	docs, err := engine.Documents(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no documents")
		return nil
	}
	for _, d := range docs {
		view := d.Minimal()
		fmt.Printf("%s  %-10s  %-20s  updated %s\n",
			view.ID, view.Status, d.FileName, view.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func workerCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "worker running; Ctrl-C to stop")
	return engine.RunWorker(ctx)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
