// ABOUTME: Minimal fake agent for E2E testing: serves the A2A task endpoints and echoes messages with markdown.
// ABOUTME: Usage: fake-agent [-addr localhost:9000] [-name echo_agent] [-streaming]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/2389/coven-supervisor/internal/a2a"
)

type agentConfig struct {
	name        string
	description string
	streaming   bool
	delay       time.Duration
	failOn      string
}

func main() {
	addr := flag.String("addr", "localhost:9000", "HTTP listen address")
	name := flag.String("name", "echo_agent", "Agent name reported in its card")
	description := flag.String("description", "Echoes every message back with some formatting", "Agent description")
	streaming := flag.Bool("streaming", true, "Advertise and serve /task/stream")
	delay := flag.Duration("delay", 50*time.Millisecond, "Pause between streamed events")
	failOn := flag.String("fail-on", "", "Fail any task whose text contains this word")
	flag.Parse()

	cfg := agentConfig{
		name:        *name,
		description: *description,
		streaming:   *streaming,
		delay:       *delay,
		failOn:      *failOn,
	}
	if err := run(*addr, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, cfg agentConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	e := newServer(cfg, addr)
	srv := &http.Server{Addr: addr, Handler: e, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "%s listening on http://%s (streaming: %t)\n", cfg.name, addr, cfg.streaming)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func newServer(cfg agentConfig, addr string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	card := a2a.AgentCard{
		Name:         cfg.name,
		Description:  cfg.description,
		Version:      "1.0.0",
		URL:          "http://" + addr,
		Capabilities: a2a.Capabilities{Streaming: cfg.streaming},
	}

	e.GET(a2a.CardPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, card)
	})

	e.POST(a2a.TaskPath, func(c echo.Context) error {
		task, err := decodeTask(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		log.Printf("received task [%s]: %s", task.ID, task.Message.JoinText(" "))
		return c.JSON(http.StatusOK, a2a.TaskEnvelope{Result: cfg.answer(task)})
	})

	if cfg.streaming {
		e.POST(a2a.TaskStreamPath, func(c echo.Context) error {
			task, err := decodeTask(c)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}
			log.Printf("received streaming task [%s]: %s", task.ID, task.Message.JoinText(" "))
			return cfg.stream(c, task)
		})
	}

	return e
}

func decodeTask(c echo.Context) (*a2a.TaskRequest, error) {
	var task a2a.TaskRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	return &task, nil
}

// answer builds the final task result.
func (cfg agentConfig) answer(task *a2a.TaskRequest) *a2a.Task {
	text := task.Message.JoinText(" ")
	result := &a2a.Task{ID: task.ID, SessionID: task.SessionID}
	if cfg.failOn != "" && strings.Contains(strings.ToLower(text), strings.ToLower(cfg.failOn)) {
		result.Status = a2a.TaskStatus{State: a2a.StateFailed, Error: fmt.Sprintf("%s refuses to handle %q", cfg.name, cfg.failOn)}
		return result
	}
	result.Status = a2a.TaskStatus{State: a2a.StateCompleted, Message: a2a.NewTextMessage("agent", echoReply(text))}
	return result
}

// stream sends a working update, the final result, then [DONE].
func (cfg agentConfig) stream(c echo.Context, task *a2a.TaskRequest) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	working := a2a.StreamEvent{Result: &a2a.Task{
		ID:     task.ID,
		Status: a2a.TaskStatus{State: a2a.StateRunning, Message: a2a.NewTextMessage("agent", cfg.name+" is thinking...")},
	}}
	if err := send(working); err != nil {
		return nil
	}

	// Small delay to simulate streaming
	select {
	case <-time.After(cfg.delay):
	case <-c.Request().Context().Done():
		return nil
	}

	if err := send(a2a.StreamEvent{Result: cfg.answer(task), Final: true}); err != nil {
		return nil
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", a2a.DoneSentinel)
	w.Flush()
	return nil
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}
